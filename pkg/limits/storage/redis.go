package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// evictAndCountScript removes all sorted-set members scored before the
// window start, then reports how many remain up to the window end and the
// score of the oldest survivor. Running it as one script is what makes
// the count trustworthy under concurrent checkers: Redis serializes
// script execution per instance, so no caller can observe a count that
// includes expired entries or misses a concurrent eviction.
//
// KEYS[1] = sorted-set key
// ARGV[1] = window start (unix milliseconds, exclusive lower bound for eviction)
// ARGV[2] = window end (unix milliseconds, inclusive)
//
// Returns {count, oldest-score-as-string}.
var evictAndCountScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
local count = redis.call('ZCOUNT', KEYS[1], '-inf', ARGV[2])
if count == 0 then
  return {0, '0'}
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
return {count, oldest[2]}
`)

// RedisBackend implements Backend on a shared Redis instance or cluster.
//
// This is the production backend: every server process points at the same
// Redis, and all coordination happens through Redis's own serialization
// of commands and scripts. Window entries live in a per-key sorted set
// scored by unix-millisecond timestamp; token counters are plain integer
// keys with a TTL.
type RedisBackend struct {
	client redis.UniversalClient
}

// RedisBackendConfig configures the Redis backend.
type RedisBackendConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password authenticates to Redis. Empty means no auth.
	Password string

	// DB selects the Redis logical database.
	DB int

	// DialTimeout bounds connection establishment. Default: 1 second.
	DialTimeout time.Duration

	// PoolSize is the maximum number of pooled connections.
	// Default: 10 per CPU (go-redis default).
	PoolSize int
}

// NewRedisBackend creates a Redis backend from configuration.
func NewRedisBackend(cfg RedisBackendConfig) *RedisBackend {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    cfg.PoolSize,
	})

	return &RedisBackend{client: client}
}

// NewRedisBackendFromClient wraps an existing client. The caller retains
// ownership of the client's lifecycle when constructed this way; Close
// still closes it. Used by tests and callers that manage their own
// client options.
func NewRedisBackendFromClient(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

// CountInWindow runs the atomic evict-and-count script.
func (r *RedisBackend) CountInWindow(ctx context.Context, key string, windowStart, windowEnd time.Time) (WindowStats, error) {
	result, err := evictAndCountScript.Run(ctx, r.client, []string{key},
		windowStart.UnixMilli(), windowEnd.UnixMilli()).Result()
	if err != nil {
		return WindowStats{}, classifyRedisErr("evict-and-count", err)
	}

	reply, ok := result.([]interface{})
	if !ok || len(reply) != 2 {
		return WindowStats{}, fmt.Errorf("%w: unexpected script reply %T", ErrUnavailable, result)
	}

	count, ok := reply[0].(int64)
	if !ok {
		return WindowStats{}, fmt.Errorf("%w: unexpected count type %T", ErrUnavailable, reply[0])
	}
	if count == 0 {
		return WindowStats{}, nil
	}

	oldestStr, ok := reply[1].(string)
	if !ok {
		return WindowStats{}, fmt.Errorf("%w: unexpected oldest type %T", ErrUnavailable, reply[1])
	}
	oldestMS, err := strconv.ParseFloat(oldestStr, 64)
	if err != nil {
		return WindowStats{}, fmt.Errorf("%w: malformed oldest score %q", ErrUnavailable, oldestStr)
	}

	return WindowStats{
		Count:  count,
		Oldest: time.UnixMilli(int64(oldestMS)),
	}, nil
}

// Insert adds one entry to the key's sorted set and refreshes its TTL.
// Members get a uuid suffix so two entries recorded in the same
// millisecond never collapse into one.
func (r *RedisBackend) Insert(ctx context.Context, key string, ts time.Time, ttl time.Duration) error {
	tsMS := ts.UnixMilli()
	member := strconv.FormatInt(tsMS, 10) + ":" + uuid.NewString()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(tsMS), Member: member})
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return classifyRedisErr("insert", err)
	}
	return nil
}

// GetCounter returns the counter value, 0 if the key is absent.
func (r *RedisBackend) GetCounter(ctx context.Context, key string) (int64, error) {
	value, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, classifyRedisErr("get-counter", err)
	}
	return value, nil
}

// IncrCounter increments the counter and refreshes its TTL.
func (r *RedisBackend) IncrCounter(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.IncrBy(ctx, key, amount)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, classifyRedisErr("incr-counter", err)
	}
	return incr.Val(), nil
}

// Delete removes all state for key.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return classifyRedisErr("delete", err)
	}
	return nil
}

// Cleanup is a no-op: Redis reclaims expired keys natively.
func (r *RedisBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

// Ping verifies the Redis connection.
func (r *RedisBackend) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return classifyRedisErr("ping", err)
	}
	return nil
}

// Close releases the underlying client's connections.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// classifyRedisErr maps client errors onto the backend error taxonomy.
func classifyRedisErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
