// Package config loads the homeiq configuration.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (HOMEIQ_*)
//  2. Configuration file
//  3. Default values
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore"
)

// Config is the root configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Queue   QueueConfig   `mapstructure:"queue" yaml:"queue"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is DEBUG, INFO, WARN or ERROR.
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	// Format is text or json.
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// StoreConfig selects the durable key-value store shared by cache and queue.
type StoreConfig struct {
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory filesystem badger sqlite postgres redis"`

	// Path is the directory (filesystem, badger) or database file (sqlite).
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// DSN is the PostgreSQL connection string.
	DSN string `mapstructure:"dsn" yaml:"dsn,omitempty" validate:"required_if=Type postgres"`

	Redis RedisConfig `mapstructure:"redis" yaml:"redis,omitempty"`
}

// RedisConfig configures the redis store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db,omitempty" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix,omitempty"`
}

// CacheConfig configures the read cache.
type CacheConfig struct {
	Prefix        string        `mapstructure:"prefix" yaml:"prefix" validate:"required"`
	DefaultExpiry time.Duration `mapstructure:"default_expiry" yaml:"default_expiry" validate:"gt=0"`
}

// QueueConfig configures the offline action queue.
type QueueConfig struct {
	Key        string `mapstructure:"key" yaml:"key" validate:"required"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size" validate:"gt=0"`
	MaxRetries int    `mapstructure:"max_retries" yaml:"max_retries" validate:"gt=0"`
}

// SyncConfig configures queue draining.
type SyncConfig struct {
	// UserID scopes replayed operations. HOMEIQ_USER_ID overrides it.
	UserID string `mapstructure:"user_id" yaml:"user_id,omitempty"`

	// CommitEachItem persists every outcome as soon as it is known.
	CommitEachItem bool `mapstructure:"commit_each_item" yaml:"commit_each_item"`
}

// BackendConfig selects where queued actions are replayed.
type BackendConfig struct {
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=rest sqlite postgres memory"`

	URL         string        `mapstructure:"url" yaml:"url,omitempty" validate:"required_if=Type rest"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout,omitempty" validate:"gte=0"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts,omitempty" validate:"gte=0"`

	// Path is the database file for the sqlite backend.
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// DSN is the connection string for the postgres backend.
	DSN string `mapstructure:"dsn" yaml:"dsn,omitempty" validate:"required_if=Type postgres"`
}

// MetricsConfig controls the Prometheus listener used by watch.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
}

// KVStore converts the store section for kvstore.Open.
func (s StoreConfig) KVStore() kvstore.Config {
	return kvstore.Config{
		Type: kvstore.Type(s.Type),
		Path: s.Path,
		DSN:  s.DSN,
		Redis: kvstore.RedisConfig{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
			Prefix:   s.Redis.Prefix,
		},
	}
}

// Load loads configuration from file, environment and defaults. An empty
// configPath searches the default location; a missing file yields defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if found {
		if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}
	applyEnvOverrides(v, &cfg)

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load with user-facing instructions when an explicit config
// file does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  homeiq init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating the parent directory.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold an API key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks struct constraints.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	// Keys present in the file can be overridden, e.g. HOMEIQ_QUEUE_MAX_SIZE=50.
	v.SetEnvPrefix(core.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reports whether a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// applyEnvOverrides covers the settings commonly passed through the
// environment even without a config file; AutomaticEnv only affects keys
// viper already knows about.
func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	for key, dst := range map[string]*string{
		"logging.level":   &cfg.Logging.Level,
		"store.type":      &cfg.Store.Type,
		"store.path":      &cfg.Store.Path,
		"store.dsn":       &cfg.Store.DSN,
		"backend.type":    &cfg.Backend.Type,
		"backend.url":     &cfg.Backend.URL,
		"backend.api_key": &cfg.Backend.APIKey,
	} {
		_ = v.BindEnv(key)
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}

	_ = v.BindEnv("sync.user_id", core.UserEnvVar, core.EnvPrefix+"_SYNC_USER_ID")
	if s := v.GetString("sync.user_id"); s != "" {
		cfg.Sync.UserID = s
	}
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
	)
}

// durationDecodeHook accepts "30s"-style strings and raw nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML numbers may arrive as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir uses XDG_CONFIG_HOME, then ~/.config, then the working
// directory.
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "homeiq")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "homeiq")
}

// GetDefaultConfigPath returns the default config file location.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
