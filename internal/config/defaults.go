package config

import (
	"path/filepath"
	"strings"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
)

// Default values not covered by core.
const (
	DefaultMetricsPort = 9464
	DefaultBackendType = "memory"
)

// ApplyDefaults fills zero values with defaults. Explicit values are kept.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStoreDefaults(&cfg.Store)
	applyCacheDefaults(&cfg.Cache)
	applyQueueDefaults(&cfg.Queue)
	applyBackendDefaults(&cfg.Backend)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Path == "" {
		switch cfg.Type {
		case "filesystem":
			cfg.Path = filepath.Join(core.DataRoot(), "store")
		case "badger":
			cfg.Path = filepath.Join(core.DataRoot(), "badger")
		case "sqlite":
			cfg.Path = filepath.Join(core.DataRoot(), "homeiq.db")
		}
	}
	if cfg.Type == "redis" && cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Prefix == "" {
		cfg.Prefix = core.CachePrefix
	}
	if cfg.DefaultExpiry <= 0 {
		cfg.DefaultExpiry = core.DefaultCacheExpiry
	}
}

func applyQueueDefaults(cfg *QueueConfig) {
	if cfg.Key == "" {
		cfg.Key = core.QueueKey
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = core.MaxQueueSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = core.MaxRetries
	}
}

func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.Type == "" {
		cfg.Type = DefaultBackendType
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Type == "sqlite" && cfg.Path == "" {
		cfg.Path = filepath.Join(core.DataRoot(), "backend.db")
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// GetDefaultConfig returns a configuration with every default applied.
// homeiq init writes it out as the starting config file.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Backend: BackendConfig{
			Type: "rest",
			URL:  "https://example.supabase.co",
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
