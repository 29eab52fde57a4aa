package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for backend failures. Backends wrap these so callers
// can classify failures with errors.Is and apply fail-open/fail-closed
// policy without knowing which backend is in use.
var (
	// ErrTimeout indicates the bounded timeout elapsed before the store
	// responded.
	ErrTimeout = errors.New("store operation timed out")

	// ErrUnavailable indicates a connection-level failure reaching the
	// store.
	ErrUnavailable = errors.New("store unavailable")
)

// WindowStats is the result of an atomic evict-and-count operation.
type WindowStats struct {
	// Count is the number of entries remaining in the window after
	// eviction.
	Count int64

	// Oldest is the timestamp of the oldest surviving entry. Zero when
	// Count is 0. Callers use it to compute when the window frees a slot.
	Oldest time.Time
}

// Backend is the shared-store contract for rate-limit state.
// Implementations must be safe for concurrent use from multiple
// goroutines and, for the non-memory backends, from multiple processes.
type Backend interface {
	// CountInWindow atomically removes all entries for key with a
	// timestamp before windowStart, then returns the count (and oldest
	// timestamp) of the remaining entries up to windowEnd. An unseen key
	// yields a zero WindowStats, not an error.
	//
	// Eviction and counting MUST happen as one atomic operation against
	// the store.
	CountInWindow(ctx context.Context, key string, windowStart, windowEnd time.Time) (WindowStats, error)

	// Insert adds one timestamped entry to key's collection and refreshes
	// the key's expiry to ttl, so idle keys are reclaimed without manual
	// cleanup.
	Insert(ctx context.Context, key string, ts time.Time, ttl time.Duration) error

	// GetCounter returns the current value of the integer counter at key,
	// 0 if absent or expired.
	GetCounter(ctx context.Context, key string) (int64, error)

	// IncrCounter increments the integer counter at key by amount,
	// refreshes its TTL, and returns the new value. An expired counter
	// restarts from amount.
	IncrCounter(ctx context.Context, key string, amount int64, ttl time.Duration) (int64, error)

	// Delete removes all state for key. Administrative only; never called
	// on the hot path.
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries eagerly. Backends with native TTL
	// may make this a no-op. Returns the number of entries removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend. The backend must not
	// be used after Close.
	Close() error
}
