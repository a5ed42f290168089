// Package config loads the scenario engine's declarative settings. Only
// compression_threshold is consumed by the core (spec.md §6); everything
// else here is ambient (data directory, logging) the way the teacher's
// manager.Config carries DataDir/BindAddr alongside domain settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hydroframe/scenario-engine/pkg/log"
)

// DefaultCompressionThreshold matches spec.md §4.1's default of 5000
// bytes.
const DefaultCompressionThreshold = 5000

// Config holds scenario-engine configuration.
type Config struct {
	DataDir              string `yaml:"data_dir"`
	CompressionThreshold int    `yaml:"compression_threshold"`
	LogLevel             log.Level `yaml:"log_level"`
	LogJSON              bool      `yaml:"log_json"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		DataDir:              "./data",
		CompressionThreshold: DefaultCompressionThreshold,
		LogLevel:             log.InfoLevel,
	}
}

// Load reads and parses a YAML configuration file at path, filling in
// defaults for anything left unset.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.CompressionThreshold <= 0 {
		cfg.CompressionThreshold = DefaultCompressionThreshold
	}

	return cfg, nil
}
