// Package config reads the memctx application configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverBadger = "badger"
	DriverJSON   = "json"
	DriverMemory = "memory"
)

// Environment variables that override the file.
const (
	EnvDatabase = "MEMCTX_DB"
	EnvStorage  = "MEMCTX_STORAGE"
)

// StorageConfig selects the durable backend.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// CaptureConfig configures the auto-capture policy.
type CaptureConfig struct {
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	ExtractThreshold int           `yaml:"extract_threshold"`
	PoolSize         int           `yaml:"pool_size"`
}

// ContextConfig configures context assembly.
type ContextConfig struct {
	MaxItems int `yaml:"max_items"`
	MaxChars int `yaml:"max_chars"`
}

// AIConfig configures the optional summarizer used for extracted knowledge.
type AIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Model   string `yaml:"model"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Storage StorageConfig `yaml:"storage"`
	Capture CaptureConfig `yaml:"capture"`
	Context ContextConfig `yaml:"context"`
	AI      AIConfig      `yaml:"ai"`
}

// Load reads a config from path. If the file does not exist, returns defaults.
// Unset fields take their default values.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv overrides storage settings from MEMCTX_DB and MEMCTX_STORAGE.
func (c *AppConfig) ApplyEnv() {
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(EnvStorage); v != "" {
		c.Storage.Driver = v
	}
}

// Validate checks the values a caller could not have meant.
func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case DriverBadger, DriverJSON:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage driver %q requires a path", c.Storage.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Capture.IdleTimeout <= 0 {
		return fmt.Errorf("capture idle_timeout must be positive, got %s", c.Capture.IdleTimeout)
	}
	if c.Capture.SweepInterval <= 0 {
		return fmt.Errorf("capture sweep_interval must be positive, got %s", c.Capture.SweepInterval)
	}
	if c.Capture.ExtractThreshold < 0 {
		return fmt.Errorf("capture extract_threshold cannot be negative")
	}
	if c.Context.MaxItems < 1 {
		return fmt.Errorf("context max_items must be at least 1, got %d", c.Context.MaxItems)
	}
	if c.Context.MaxChars < 0 {
		return fmt.Errorf("context max_chars cannot be negative")
	}
	return nil
}

// Default returns the configuration used when no file exists.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverBadger
	}
	if cfg.Storage.Path == "" && cfg.Storage.Driver != DriverMemory {
		cfg.Storage.Path = "memory"
	}
	if cfg.Capture.IdleTimeout == 0 {
		cfg.Capture.IdleTimeout = 5 * time.Minute
	}
	if cfg.Capture.SweepInterval == 0 {
		cfg.Capture.SweepInterval = time.Minute
	}
	if cfg.Capture.ExtractThreshold == 0 {
		cfg.Capture.ExtractThreshold = 500
	}
	if cfg.Context.MaxItems == 0 {
		cfg.Context.MaxItems = 5
	}
	if cfg.AI.Host == "" {
		cfg.AI.Host = "http://localhost:11434"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "qwen2.5:3b"
	}
}
