// Package config loads runtime configuration for a swarm process from a
// single YAML file. The file is the only source of truth; environment
// variables never override values, only AGENTSWARM_CONFIG selects which file
// to read.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for a swarm process.
type Config struct {
	// Supervisor configures worker lifecycle management.
	Supervisor SupervisorConfig `yaml:"supervisor"`

	// Mailbox configures message routing.
	Mailbox MailboxConfig `yaml:"mailbox"`

	// Store configures the persistence backend.
	Store StoreConfig `yaml:"store"`

	// Logging configures diagnostic output.
	Logging LoggingConfig `yaml:"logging"`
}

// SupervisorConfig configures worker lifecycle management.
type SupervisorConfig struct {
	// StartupTimeout bounds the wait for a worker's ready signal.
	// Duration string, default "30s".
	StartupTimeout string `yaml:"startup_timeout"`
}

// MailboxConfig configures message routing.
type MailboxConfig struct {
	// QueueSize is the per-agent inbound queue capacity. Default 16.
	QueueSize int `yaml:"queue_size"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	// Driver selects the backend: "memory" or "sqlite". Default "memory".
	Driver string `yaml:"driver"`

	// Path is the SQLite database file. Required when Driver is "sqlite".
	Path string `yaml:"path"`

	// PoolSize is the SQLite connection pool size. Default 4.
	PoolSize int `yaml:"pool_size"`
}

// LoggingConfig configures diagnostic output.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error". Default "info".
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is loaded.
func Default() *Config {
	return &Config{
		Supervisor: SupervisorConfig{StartupTimeout: "30s"},
		Mailbox:    MailboxConfig{QueueSize: 16},
		Store:      StoreConfig{Driver: "memory", PoolSize: 4},
		Logging:    LoggingConfig{Level: "info"},
	}
}

// Load reads the file named by the AGENTSWARM_CONFIG environment variable.
// Fails if the variable is not set; there is no automatic discovery.
func Load() (*Config, error) {
	path := os.Getenv("AGENTSWARM_CONFIG")
	if path == "" {
		return nil, errors.New("AGENTSWARM_CONFIG environment variable not set")
	}
	return LoadFile(path)
}

// LoadFile reads cfg from path, merged over Default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StartupTimeout parses the supervisor startup timeout.
func (c *Config) StartupTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Supervisor.StartupTimeout)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, err := time.ParseDuration(c.Supervisor.StartupTimeout); err != nil {
		errs = append(errs, fmt.Errorf("supervisor.startup_timeout: %w", err))
	}

	if c.Mailbox.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("mailbox.queue_size must be positive, got %d", c.Mailbox.QueueSize))
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
		if c.Store.PoolSize < 1 {
			errs = append(errs, fmt.Errorf("store.pool_size must be positive, got %d", c.Store.PoolSize))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver must be memory or sqlite, got %q", c.Store.Driver))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
