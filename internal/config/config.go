package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Store   StoreConfig   `yaml:"store"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	DefaultPageSize int           `yaml:"default_page_size"`
	MaxPageSize     int           `yaml:"max_page_size"`
}

// StoreConfig tunes the in-memory record store.
type StoreConfig struct {
	LockTimeout time.Duration `yaml:"lock_timeout"`
	IDStart     int64         `yaml:"id_start"`
}

// ExportConfig sizes the background export job queue.
type ExportConfig struct {
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ConfigFileEnv names the environment variable holding an optional YAML file.
const ConfigFileEnv = "TXLEDGER_CONFIG"

const (
	defaultPort            = 8080
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultPageSize        = 20
	defaultMaxPageSize     = 100
	defaultLockTimeout     = time.Second
	defaultIDStart         = 1000
	defaultExportWorkers   = 2
	defaultExportQueueSize = 16
	defaultExportRetries   = 1
	defaultExportBackoff   = time.Second
	defaultLoggingLevel    = "info"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:            defaultPort,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
			DefaultPageSize: defaultPageSize,
			MaxPageSize:     defaultMaxPageSize,
		},
		Store: StoreConfig{
			LockTimeout: defaultLockTimeout,
			IDStart:     defaultIDStart,
		},
		Export: ExportConfig{
			Workers:      defaultExportWorkers,
			QueueSize:    defaultExportQueueSize,
			MaxRetries:   defaultExportRetries,
			RetryBackoff: defaultExportBackoff,
		},
		Logging: LoggingConfig{Level: defaultLoggingLevel},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// TXLEDGER_CONFIG if set, then environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.overlayEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.HTTP.Port)
	}
	if c.HTTP.MaxPageSize < 1 {
		return fmt.Errorf("max page size must be positive, got %d", c.HTTP.MaxPageSize)
	}
	if c.HTTP.DefaultPageSize < 1 || c.HTTP.DefaultPageSize > c.HTTP.MaxPageSize {
		return fmt.Errorf("default page size %d must be within [1, %d]", c.HTTP.DefaultPageSize, c.HTTP.MaxPageSize)
	}
	if c.Store.IDStart < 0 {
		return fmt.Errorf("id start must not be negative, got %d", c.Store.IDStart)
	}
	if c.Export.Workers < 1 {
		return fmt.Errorf("export workers must be positive, got %d", c.Export.Workers)
	}
	if c.Export.QueueSize < 0 || c.Export.MaxRetries < 0 {
		return fmt.Errorf("export queue size and retries must not be negative")
	}
	return nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

func (c *Config) overlayEnv() error {
	var err error

	if c.HTTP.Port, err = parseInt("HTTP_PORT", c.HTTP.Port); err != nil {
		return err
	}
	if c.HTTP.ReadTimeout, err = parseDuration("HTTP_READ_TIMEOUT", c.HTTP.ReadTimeout); err != nil {
		return err
	}
	if c.HTTP.WriteTimeout, err = parseDuration("HTTP_WRITE_TIMEOUT", c.HTTP.WriteTimeout); err != nil {
		return err
	}
	if c.HTTP.IdleTimeout, err = parseDuration("HTTP_IDLE_TIMEOUT", c.HTTP.IdleTimeout); err != nil {
		return err
	}
	if c.HTTP.ShutdownTimeout, err = parseDuration("HTTP_SHUTDOWN_TIMEOUT", c.HTTP.ShutdownTimeout); err != nil {
		return err
	}
	if c.HTTP.DefaultPageSize, err = parseInt("PAGE_SIZE_DEFAULT", c.HTTP.DefaultPageSize); err != nil {
		return err
	}
	if c.HTTP.MaxPageSize, err = parseInt("PAGE_SIZE_MAX", c.HTTP.MaxPageSize); err != nil {
		return err
	}
	if c.Store.LockTimeout, err = parseDuration("STORE_LOCK_TIMEOUT", c.Store.LockTimeout); err != nil {
		return err
	}

	start, err := parseInt("ID_COUNTER_START", int(c.Store.IDStart))
	if err != nil {
		return err
	}
	c.Store.IDStart = int64(start)

	if c.Export.Workers, err = parseInt("EXPORT_WORKERS", c.Export.Workers); err != nil {
		return err
	}
	if c.Export.QueueSize, err = parseInt("EXPORT_QUEUE_SIZE", c.Export.QueueSize); err != nil {
		return err
	}
	if c.Export.MaxRetries, err = parseInt("EXPORT_MAX_RETRIES", c.Export.MaxRetries); err != nil {
		return err
	}
	if c.Export.RetryBackoff, err = parseDuration("EXPORT_RETRY_BACKOFF", c.Export.RetryBackoff); err != nil {
		return err
	}

	c.Logging.Level = valueOrDefault("LOG_LEVEL", c.Logging.Level)
	return nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
