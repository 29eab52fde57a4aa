package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// validBackends are the accepted store.backend values.
var validBackends = map[string]bool{
	"redis":  true,
	"sqlite": true,
	"memory": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"text":    true,
	"console": true,
}

// Validate checks the configuration for operator mistakes. It is called
// after defaults are applied, so zero values for defaulted fields never
// reach it.
func Validate(cfg *Config) error {
	if cfg.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address cannot be empty")
	}

	if !validBackends[cfg.Store.Backend] {
		return fmt.Errorf("store.backend must be one of redis, sqlite, memory; got %q", cfg.Store.Backend)
	}
	if cfg.Store.Timeout <= 0 {
		return fmt.Errorf("store.timeout must be positive, got %v", cfg.Store.Timeout)
	}
	if cfg.Store.Timeout > time.Second {
		return fmt.Errorf("store.timeout above 1s defeats the limiter's latency target, got %v", cfg.Store.Timeout)
	}
	if cfg.Store.Backend == "redis" && cfg.Store.Redis.Addr == "" {
		return fmt.Errorf("store.redis.addr cannot be empty when backend is redis")
	}
	if cfg.Store.Backend == "sqlite" && cfg.Store.SQLite.Path == "" {
		return fmt.Errorf("store.sqlite.path cannot be empty when backend is sqlite")
	}

	for name, limits := range cfg.Providers {
		if limits.RequestsPerMinute <= 0 {
			return fmt.Errorf("providers.%s.requests_per_minute must be positive, got %d",
				name, limits.RequestsPerMinute)
		}
		if limits.TokensPerMinute < 0 {
			return fmt.Errorf("providers.%s.tokens_per_minute cannot be negative, got %d",
				name, limits.TokensPerMinute)
		}
	}

	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	if !validLogFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be one of json, text, console; got %q", cfg.Logging.Format)
	}

	if cfg.Maintenance.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Maintenance.CleanupSchedule); err != nil {
			return fmt.Errorf("maintenance.cleanup_schedule is not a valid cron expression: %w", err)
		}
	}

	return nil
}
