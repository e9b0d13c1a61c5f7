package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// LoadFromPath reads and compiles a rule file (YAML or JSON). Format is
// detected by extension, then by content for unknown extensions.
func LoadFromPath(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses a rule set from bytes and compiles it. ext is the file
// extension used as a format hint; empty means detect from content.
func Load(data []byte, ext string) (*RuleSet, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}

	var rs RuleSet
	switch ext {
	case ".yaml":
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("parse rules yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("parse rules json: %w", err)
		}
	default:
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "{") {
			if err := json.Unmarshal(data, &rs); err != nil {
				return nil, fmt.Errorf("parse rules json: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("parse rules yaml: %w", err)
		}
	}

	if err := rs.Compile(); err != nil {
		return nil, err
	}
	return &rs, nil
}
