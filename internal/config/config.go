package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Config holds all hugin configuration.
type Config struct {
	// Clone detector invocation
	Detector DetectorConfig `yaml:"detector"`

	// Filesystem locations
	Paths PathsConfig `yaml:"paths"`

	// Job scheduling
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Result persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig locates shared data.
type PathsConfig struct {
	// Database is the root of the library database. Archives live in
	// <database>/libraries.
	Database string `yaml:"database"`
}

// DispatchConfig configures the job dispatcher.
type DispatchConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// StoreConfig configures where results are written. Empty values disable
// the corresponding sink.
type StoreConfig struct {
	Path    string `yaml:"path"`     // sqlite database
	JSONDir string `yaml:"json_dir"` // one JSON document per job
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Detector: DefaultDetectorConfig(),
		Paths: PathsConfig{
			Database: "~/.hugin/database",
		},
		Dispatch: DispatchConfig{
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HUGIN_DETECTOR_PATH"); v != "" {
		c.Detector.ExecutablePath = v
	}
	if v := os.Getenv("HUGIN_DATABASE"); v != "" {
		c.Paths.Database = v
	}
	if v := os.Getenv("HUGIN_STORE"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("HUGIN_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dispatch.Concurrency = n
		}
	}
	if v := os.Getenv("HUGIN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetDetectorTimeout returns the detector timeout as a duration.
// Zero means the detector may run indefinitely.
func (c *Config) GetDetectorTimeout() time.Duration {
	if c.Detector.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Detector.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// DatabasePath returns the database root with a leading ~ expanded.
func (c *Config) DatabasePath() (string, error) {
	return ExpandPath(c.Paths.Database)
}

// StorePath returns the sqlite path with a leading ~ expanded, or "" when
// persistence is disabled.
func (c *Config) StorePath() (string, error) {
	return ExpandPath(c.Store.Path)
}

// JSONDir returns the JSON output directory with a leading ~ expanded, or ""
// when JSON output is disabled.
func (c *Config) JSONDir() (string, error) {
	return ExpandPath(c.Store.JSONDir)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand %q: %w", path, err)
	}
	return expanded, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Paths.Database) == "" {
		return fmt.Errorf("paths.database is required")
	}
	if c.Dispatch.Concurrency < 1 {
		return fmt.Errorf("dispatch.concurrency must be at least 1, got %d", c.Dispatch.Concurrency)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return nil
}
