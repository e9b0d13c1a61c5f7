// Package config loads pipeline tuning from a YAML or JSON file, layered
// over embedded defaults. Everything here is optional: a missing file means
// defaults, and defaults reproduce the fixed contract values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Config tunes the run without changing pipeline semantics.
type Config struct {
	// Parallelism bounds concurrent classification. 0 means one worker per
	// CPU. Classification output order is deterministic either way.
	Parallelism int `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`

	// RulesPath points at a launch-rules file evaluated before the
	// decision chain. Empty disables the rules engine.
	RulesPath string `json:"rules_path,omitempty" yaml:"rules_path,omitempty"`

	// Calibration toggles confidence calibration. On by default; turning
	// it off leaves seed scores untouched for A/B comparison of runs.
	Calibration *bool `json:"calibration,omitempty" yaml:"calibration,omitempty"`

	// ExtraVolatileKeys extends the determinism comparator's built-in
	// volatility rules with project-specific field names.
	ExtraVolatileKeys []string `json:"extra_volatile_keys,omitempty" yaml:"extra_volatile_keys,omitempty"`
}

// Default returns the embedded defaults.
func Default() *Config {
	on := true
	return &Config{Calibration: &on}
}

// CalibrationEnabled reports the effective calibration toggle.
func (c *Config) CalibrationEnabled() bool {
	return c.Calibration == nil || *c.Calibration
}

// LoadFromPath reads a config file, detected by extension then content.
// An empty path returns defaults.
func LoadFromPath(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses config bytes over the defaults. ext is a format hint; empty
// means detect from content.
func Load(data []byte, ext string) (*Config, error) {
	cfg := Default()
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}

	switch ext {
	case ".yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config json: %w", err)
		}
	default:
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "{") {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config json: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}
	return cfg, nil
}
