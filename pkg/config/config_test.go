package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

// ============================================================================
// Loading Tests
// ============================================================================

func TestLoadConfig_Full(t *testing.T) {
	path := writeConfigFile(t, `
server:
  listen_address: "0.0.0.0:9000"
store:
  backend: redis
  timeout: 50ms
  key_prefix: fg
  redis:
    addr: "redis.internal:6379"
    db: 2
limiter:
  fail_open: false
providers:
  openai:
    requests_per_minute: 60
    tokens_per_minute: 90000
  anthropic:
    requests_per_minute: 50
logging:
  level: debug
  format: text
maintenance:
  cleanup_schedule: "*/5 * * * *"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("Unexpected listen address: %s", cfg.Server.ListenAddress)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.Timeout != 50*time.Millisecond {
		t.Errorf("Unexpected store config: %+v", cfg.Store)
	}
	if cfg.Store.Redis.Addr != "redis.internal:6379" || cfg.Store.Redis.DB != 2 {
		t.Errorf("Unexpected redis config: %+v", cfg.Store.Redis)
	}
	if cfg.Limiter.FailOpen == nil || *cfg.Limiter.FailOpen {
		t.Error("Expected fail_open false")
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("Expected 2 providers, got %d", len(cfg.Providers))
	}
	if cfg.Providers["openai"].TokensPerMinute != 90000 {
		t.Errorf("Unexpected openai quota: %+v", cfg.Providers["openai"])
	}
	if cfg.Providers["anthropic"].TokensPerMinute != 0 {
		t.Errorf("Expected anthropic to have no token limit, got %d", cfg.Providers["anthropic"].TokensPerMinute)
	}
	if cfg.Maintenance.CleanupSchedule != "*/5 * * * *" {
		t.Errorf("Unexpected cleanup schedule: %s", cfg.Maintenance.CleanupSchedule)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "store: [not a mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

// ============================================================================
// Defaults Tests
// ============================================================================

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("Expected default listen address, got %s", cfg.Server.ListenAddress)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Expected default backend memory, got %s", cfg.Store.Backend)
	}
	if cfg.Store.Timeout != DefaultStoreTimeout {
		t.Errorf("Expected default store timeout, got %v", cfg.Store.Timeout)
	}
	if cfg.Store.KeyPrefix != "floodgate" {
		t.Errorf("Expected default key prefix, got %s", cfg.Store.KeyPrefix)
	}
	if cfg.Limiter.FailOpen == nil || !*cfg.Limiter.FailOpen {
		t.Error("Expected fail_open to default to true")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	failOpen := false
	cfg := &Config{
		Server:  ServerConfig{ListenAddress: "0.0.0.0:9999"},
		Store:   StoreConfig{Backend: "redis", Timeout: 30 * time.Millisecond},
		Limiter: LimiterConfig{FailOpen: &failOpen},
	}
	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != "0.0.0.0:9999" {
		t.Error("ApplyDefaults overrode an explicit listen address")
	}
	if cfg.Store.Backend != "redis" || cfg.Store.Timeout != 30*time.Millisecond {
		t.Error("ApplyDefaults overrode explicit store settings")
	}
	if *cfg.Limiter.FailOpen {
		t.Error("ApplyDefaults overrode an explicit fail_open=false")
	}
}

// ============================================================================
// Validation Tests
// ============================================================================

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		ApplyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, true},
		{"zero timeout", func(c *Config) { c.Store.Timeout = 0 }, true},
		{"timeout above ceiling", func(c *Config) { c.Store.Timeout = 2 * time.Second }, true},
		{"redis without addr", func(c *Config) {
			c.Store.Backend = "redis"
			c.Store.Redis.Addr = ""
		}, true},
		{"sqlite without path", func(c *Config) { c.Store.Backend = "sqlite" }, true},
		{"sqlite with path", func(c *Config) {
			c.Store.Backend = "sqlite"
			c.Store.SQLite.Path = "/var/lib/floodgate.db"
		}, false},
		{"zero provider quota", func(c *Config) {
			c.Providers = map[string]ProviderLimits{"openai": {RequestsPerMinute: 0}}
		}, true},
		{"negative token quota", func(c *Config) {
			c.Providers = map[string]ProviderLimits{"openai": {RequestsPerMinute: 60, TokensPerMinute: -1}}
		}, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad cron expression", func(c *Config) { c.Maintenance.CleanupSchedule = "not cron" }, true},
		{"valid cron expression", func(c *Config) { c.Maintenance.CleanupSchedule = "*/10 * * * *" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
		})
	}
}

// ============================================================================
// Environment Override Tests
// ============================================================================

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
store:
  backend: memory
logging:
  level: info
`)

	t.Setenv("FLOODGATE_STORE_BACKEND", "redis")
	t.Setenv("FLOODGATE_STORE_REDIS_ADDR", "override:6379")
	t.Setenv("FLOODGATE_LOGGING_LEVEL", "debug")
	t.Setenv("FLOODGATE_LIMITER_FAIL_OPEN", "false")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides failed: %v", err)
	}

	if cfg.Store.Backend != "redis" {
		t.Errorf("Expected env to override backend, got %s", cfg.Store.Backend)
	}
	if cfg.Store.Redis.Addr != "override:6379" {
		t.Errorf("Expected env to override redis addr, got %s", cfg.Store.Redis.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected env to override log level, got %s", cfg.Logging.Level)
	}
	if cfg.Limiter.FailOpen == nil || *cfg.Limiter.FailOpen {
		t.Error("Expected env to override fail_open to false")
	}
}

func TestLoadConfigWithEnvOverrides_InvalidValueFailsValidation(t *testing.T) {
	path := writeConfigFile(t, "store:\n  backend: memory\n")

	t.Setenv("FLOODGATE_STORE_BACKEND", "etcd")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Error("Expected validation to reject the overridden backend")
	}
}
