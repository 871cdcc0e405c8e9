package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conquest.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
map:
  grid_size: 64
  num_civs: 4
war:
  max_wars: 2
run:
  steps_per_frame: 0
  tick_interval_ms: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Map.GridSize != 64 || cfg.Map.NumCivs != 4 || cfg.War.MaxWars != 2 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Expansion.ScaleFactor != 500 || cfg.War.PeaceTreatyCooldown != 100 {
		t.Errorf("omitted keys lost their defaults: %+v", cfg)
	}
	if cfg.Run.StepsPerFrame != 1 {
		t.Errorf("steps_per_frame = %d, want normalized to 1", cfg.Run.StepsPerFrame)
	}
	if cfg.TickInterval() != 10*time.Millisecond {
		t.Errorf("TickInterval = %v", cfg.TickInterval())
	}
}

func TestLoadShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "conquest.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Map.Seed != 42 {
		t.Errorf("seed = %d, want 42", cfg.Map.Seed)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"threshold above one", "annexation:\n  threshold: 1.5\n"},
		{"negative cooldown", "war:\n  war_cooldown: -1\n"},
		{"negative treaty", "war:\n  peace_treaty_cooldown: -5\n"},
		{"peace chance", "war:\n  peace_chance: 2\n"},
		{"no civs", "map:\n  num_civs: 0\n"},
		{"too many civs", "map:\n  grid_size: 2\n  num_civs: 5\n"},
		{"zero scale factor", "expansion:\n  scale_factor: 0\n"},
		{"negative push limit", "expansion:\n  group_push_limit: -1\n"},
		{"empty log", "annexation:\n  log_capacity: 0\n"},
	}
	for _, tt := range tests {
		_, err := Load(writeFile(t, tt.body))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: err = %v, want ErrInvalidConfig", tt.name, err)
		}
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeFile(t, "map: [unclosed"))
	if err == nil || errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want a parse error", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not-exist", err)
	}
}

func TestGenConfig(t *testing.T) {
	cfg := Default()
	cfg.Map.Seed = 9
	g := cfg.GenConfig()
	if g.Size != 250 || g.Seed != 9 || g.Octaves != 6 || g.LandThreshold != 0.4 {
		t.Errorf("GenConfig = %+v", g)
	}
}
