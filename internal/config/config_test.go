package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.CalibrationEnabled() {
		t.Error("calibration should default to enabled")
	}
	if cfg.Parallelism != 0 {
		t.Errorf("parallelism = %d, want 0 (auto)", cfg.Parallelism)
	}
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load([]byte("parallelism: 4\ncalibration: false\nextra_volatile_keys: [browser_build]\n"), ".yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Parallelism != 4 {
		t.Errorf("parallelism = %d, want 4", cfg.Parallelism)
	}
	if cfg.CalibrationEnabled() {
		t.Error("calibration should be disabled")
	}
	if len(cfg.ExtraVolatileKeys) != 1 || cfg.ExtraVolatileKeys[0] != "browser_build" {
		t.Errorf("extra volatile keys = %v", cfg.ExtraVolatileKeys)
	}
}

func TestLoad_JSONByContent(t *testing.T) {
	cfg, err := Load([]byte(`{"rules_path":"launch-rules.yaml"}`), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RulesPath != "launch-rules.yaml" {
		t.Errorf("rules path = %q", cfg.RulesPath)
	}
	if !cfg.CalibrationEnabled() {
		t.Error("unset calibration should keep the default")
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := LoadFromPath("")
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !cfg.CalibrationEnabled() {
			t.Error("want defaults")
		}
	})

	t.Run("missing file errors", func(t *testing.T) {
		if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("want error for missing file")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vigil.yaml")
		if err := os.WriteFile(path, []byte("parallelism: 2\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadFromPath(path)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Parallelism != 2 {
			t.Errorf("parallelism = %d, want 2", cfg.Parallelism)
		}
	})
}
