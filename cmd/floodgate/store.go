package main

import (
	"fmt"

	"mercator-hq/floodgate/pkg/config"
	"mercator-hq/floodgate/pkg/limits"
	"mercator-hq/floodgate/pkg/limits/storage"
)

// buildBackend constructs the shared-state backend selected by the
// configuration.
func buildBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Store.Backend {
	case "redis":
		return storage.NewRedisBackend(storage.RedisBackendConfig{
			Addr:        cfg.Store.Redis.Addr,
			Password:    cfg.Store.Redis.Password,
			DB:          cfg.Store.Redis.DB,
			DialTimeout: cfg.Store.Redis.DialTimeout,
			PoolSize:    cfg.Store.Redis.PoolSize,
		}), nil
	case "sqlite":
		return storage.NewSQLiteBackendWithConfig(storage.SQLiteBackendConfig{
			DBPath:      cfg.Store.SQLite.Path,
			BusyTimeout: cfg.Store.SQLite.BusyTimeout,
		})
	case "memory":
		return storage.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// buildQuotaTable converts the configured provider limits into the
// limiter's quota table.
func buildQuotaTable(cfg *config.Config) (*limits.Table, error) {
	quotas := make(map[string]limits.ProviderQuota, len(cfg.Providers))
	for name, p := range cfg.Providers {
		quotas[name] = limits.ProviderQuota{
			RequestsPerMinute: p.RequestsPerMinute,
			TokensPerMinute:   p.TokensPerMinute,
		}
	}
	return limits.NewTable(quotas)
}
