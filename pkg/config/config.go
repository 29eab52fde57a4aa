package config

import "time"

// Config is the root configuration for floodgate.
type Config struct {
	// Server configures the admission API server.
	Server ServerConfig `yaml:"server"`

	// Store selects and configures the shared state backend.
	Store StoreConfig `yaml:"store"`

	// Limiter configures the rate limiter policy.
	Limiter LimiterConfig `yaml:"limiter"`

	// Providers is the static quota table: provider name to quotas.
	Providers map[string]ProviderLimits `yaml:"providers"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Maintenance configures background store maintenance.
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// ServerConfig configures the HTTP admission API.
type ServerConfig struct {
	// ListenAddress is the host:port the server binds to.
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading one request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing one response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout bounds idle keep-alive connections.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the shared state backend.
type StoreConfig struct {
	// Backend is one of "redis", "sqlite", "memory".
	//
	// "memory" cannot enforce a global quota across processes; it exists
	// for tests and single-instance deployments.
	Backend string `yaml:"backend"`

	// Timeout bounds the store calls of one limiter operation.
	Timeout time.Duration `yaml:"timeout"`

	// KeyPrefix namespaces all store keys.
	KeyPrefix string `yaml:"key_prefix"`

	// Redis configures the Redis backend.
	Redis RedisConfig `yaml:"redis"`

	// SQLite configures the SQLite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string `yaml:"addr"`

	// Password authenticates to Redis. Empty means no auth.
	Password string `yaml:"password"`

	// DB selects the Redis logical database.
	DB int `yaml:"db"`

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// PoolSize is the maximum number of pooled connections.
	PoolSize int `yaml:"pool_size"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file shared by the limiter processes.
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for locks before failing.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// LimiterConfig configures limiter policy.
type LimiterConfig struct {
	// FailOpen selects the degradation policy for store failures during
	// checks: true admits, false denies with a fixed 60s retry.
	// Defaults to true.
	FailOpen *bool `yaml:"fail_open"`
}

// ProviderLimits is the per-provider quota entry.
type ProviderLimits struct {
	// RequestsPerMinute is the rolling 60-second request quota.
	RequestsPerMinute int64 `yaml:"requests_per_minute"`

	// TokensPerMinute is the rolling token-budget quota. 0 or absent
	// means the provider has no token limit.
	TokensPerMinute int64 `yaml:"tokens_per_minute,omitempty"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is the output format: json, text, console.
	Format string `yaml:"format"`
}

// MaintenanceConfig configures background store maintenance.
type MaintenanceConfig struct {
	// CleanupSchedule is a cron expression for the store cleanup sweep.
	// Empty disables the janitor. Backends with native TTL (Redis)
	// ignore cleanup regardless.
	CleanupSchedule string `yaml:"cleanup_schedule"`
}
