package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global
// config, defaults. Missing files are not errors; malformed YAML is.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: $XDG_CONFIG_HOME/romulus/config.yaml
// Project: romulus.yaml (relative to cwd), so a course file can travel
// with the binary it was tuned for.
func LoadDefault() (*Config, error) {
	globalPath := filepath.Join(xdg.ConfigHome, "romulus", "config.yaml")
	return Load(globalPath, "romulus.yaml")
}

// mergeConfigFile decodes a YAML file over the base config. Scalars
// and structs merge field by field; sequences (the course phase list,
// sensor offsets, sim segments) replace the base value wholesale, so
// a file that names a course supplies all of it. Missing files are
// silently skipped.
func mergeConfigFile(base *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, base); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
