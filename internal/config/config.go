// Package config loads and validates finsight configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all finsight configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Sample dataset configuration
	Data DataConfig `yaml:"data"`

	// Durable storage
	Storage StorageConfig `yaml:"storage"`

	// Permission policy
	Policy PolicyConfig `yaml:"policy"`

	// Date interpretation
	Dates DatesConfig `yaml:"dates"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig configures the sample dataset loader.
type DataConfig struct {
	// Directory holding the JSON sample files
	Dir string `yaml:"dir"`

	// Reload datasets when the files change on disk
	WatchFiles bool `yaml:"watch_files"`
}

// StorageConfig configures SQLite persistence of sessions and tickets.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// PolicyConfig configures the permission gate.
type PolicyConfig struct {
	// Optional extra rules file appended to the built-in policy
	RulesPath string `yaml:"rules_path"`
}

// DatesConfig configures relative-date resolution.
type DatesConfig struct {
	// Anchor mode for phrases like "last month": "calendar" resolves to
	// full calendar months; "rolling" resolves to the trailing 30 days.
	Anchor string `yaml:"anchor"`
}

// LoggingConfig configures the categorized file logger's verbosity.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "finsight",
		Version: "0.3.0",

		Data: DataConfig{
			Dir:        "sample_data",
			WatchFiles: true,
		},

		Storage: StorageConfig{
			DatabasePath: filepath.Join(".finsight", "finsight.db"),
		},

		Policy: PolicyConfig{},

		Dates: DatesConfig{
			Anchor: "calendar",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
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
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

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

// Validate checks the configuration for values the rest of the system
// cannot work with.
func (c *Config) Validate() error {
	switch c.Dates.Anchor {
	case "", "calendar", "rolling":
	default:
		return fmt.Errorf("dates.anchor must be \"calendar\" or \"rolling\", got %q", c.Dates.Anchor)
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must not be empty")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("FINSIGHT_DATA_DIR"); dir != "" {
		c.Data.Dir = dir
	}
	if path := os.Getenv("FINSIGHT_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if rules := os.Getenv("FINSIGHT_POLICY_RULES"); rules != "" {
		c.Policy.RulesPath = rules
	}
	if anchor := os.Getenv("FINSIGHT_DATE_ANCHOR"); anchor != "" {
		c.Dates.Anchor = anchor
	}
}
