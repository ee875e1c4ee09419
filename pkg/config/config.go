// Package config provides configuration loading and management for niftiloader.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Loader parameters
	Loader struct {
		// Threads is the number of worker threads used for parallel I/O
		Threads int `yaml:"threads"`

		// ChunkSize is the number of bytes covered by each positional read
		ChunkSize int `yaml:"chunkSize"`

		// DirectMemory reads into page-aligned memory outside the Go heap
		DirectMemory bool `yaml:"directMemory"`
	} `yaml:"loader"`

	// Comparison parameters
	Compare struct {
		// Tolerance is the absolute and relative elementwise bound
		Tolerance float64 `yaml:"tolerance"`
	} `yaml:"compare"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// SlicesDir is where extracted slices are written
		SlicesDir string `yaml:"slicesDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Loader.Threads = runtime.NumCPU()
	cfg.Loader.ChunkSize = 4 << 20
	cfg.Loader.DirectMemory = true

	cfg.Compare.Tolerance = 1e-5

	cfg.Output.Verbose = false
	cfg.Output.SlicesDir = "slices"

	return cfg
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if c.Loader.Threads < 1 {
		return fmt.Errorf("loader.threads must be positive, got %d", c.Loader.Threads)
	}
	if c.Loader.ChunkSize < 1 {
		return fmt.Errorf("loader.chunkSize must be positive, got %d", c.Loader.ChunkSize)
	}
	if c.Compare.Tolerance < 0 {
		return fmt.Errorf("compare.tolerance must not be negative, got %g", c.Compare.Tolerance)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path.
// An existing file is left untouched and reported as an error.
func CreateDefaultConfigFile(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file %s already exists", configPath)
	}
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
