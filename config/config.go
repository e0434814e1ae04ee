// Package config loads process configuration from YAML, the same format
// the teacher's CLI uses for its apply manifests.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes how to open a backend and configure logging for a
// process embedding this module, e.g. an application's own main package.
// The objectstore CLI reads only the Backend section, through its --config
// flag; its logging comes from command-line flags.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Log     LogConfig     `yaml:"log"`
}

// BackendConfig selects and parameterizes a kvstore.Backend.
type BackendConfig struct {
	Kind string `yaml:"kind"` // memory, fsstore, boltdb
	Path string `yaml:"path"`
}

// LogConfig mirrors log.Config in a YAML-friendly shape.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration a process should fall back to when no
// file is given: an in-process memory backend and info-level text logging.
func Default() Config {
	return Config{
		Backend: BackendConfig{Kind: "memory"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads and parses a Config from path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
