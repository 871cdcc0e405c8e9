// Package config loads simulation parameters from YAML.
// Every value is a read-only input to the simulation core.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full configuration surface.
type Config struct {
	Map        MapConfig        `yaml:"map"`
	Expansion  ExpansionConfig  `yaml:"expansion"`
	War        WarConfig        `yaml:"war"`
	Annexation AnnexationConfig `yaml:"annexation"`
	Run        RunConfig        `yaml:"run"`
}

// MapConfig covers grid dimensions, civilization count and terrain noise.
type MapConfig struct {
	GridSize      int     `yaml:"grid_size"`
	NumCivs       int     `yaml:"num_civs"`
	Seed          int64   `yaml:"seed"` // 0 = random
	Scale         float64 `yaml:"scale"`
	Octaves       int     `yaml:"octaves"`
	Persistence   float64 `yaml:"persistence"`
	Lacunarity    float64 `yaml:"lacunarity"`
	LandThreshold float64 `yaml:"land_threshold"`
}

// ExpansionConfig covers peaceful growth.
type ExpansionConfig struct {
	BaseChance     float64 `yaml:"base_chance"`
	ScaleFactor    float64 `yaml:"scale_factor"`     // How much size boosts expansion chance
	GroupPushLimit int     `yaml:"group_push_limit"` // Max claims per civ per tick, 0 = unbounded
}

// WarConfig covers war declaration, escalation and peace.
type WarConfig struct {
	IntensityGrowth     float64 `yaml:"intensity_growth"`
	MultiFrontScaling   float64 `yaml:"multi_front_scaling"`
	WarCooldown         int     `yaml:"war_cooldown"`          // Frames before a civ may declare again after peace
	PeaceTreatyCooldown int     `yaml:"peace_treaty_cooldown"` // Frames before the same pair may fight again
	PeaceChance         float64 `yaml:"peace_chance"`
	MaxWars             int     `yaml:"max_wars"`
}

// AnnexationConfig covers dissolution of occupied civilizations.
type AnnexationConfig struct {
	Threshold   float64 `yaml:"threshold"`
	LogCapacity int     `yaml:"log_capacity"`
}

// RunConfig covers the driver loop, not the simulation rules.
type RunConfig struct {
	StepsPerFrame  int `yaml:"steps_per_frame"`
	TickIntervalMs int `yaml:"tick_interval_ms"` // 0 = as fast as possible
	SampleEvery    int `yaml:"sample_every"`
	SaveEvery      int `yaml:"save_every"`
	MaxTicks       int `yaml:"max_ticks"` // 0 = until one civilization remains
}

// Default returns the standard configuration.
func Default() Config {
	return Config{
		Map: MapConfig{
			GridSize:      250,
			NumCivs:       20,
			Seed:          0,
			Scale:         75.0,
			Octaves:       6,
			Persistence:   0.5,
			Lacunarity:    2.0,
			LandThreshold: 0.4,
		},
		Expansion: ExpansionConfig{
			BaseChance:     0.5,
			ScaleFactor:    500,
			GroupPushLimit: 60,
		},
		War: WarConfig{
			IntensityGrowth:     0.1,
			MultiFrontScaling:   0.2,
			WarCooldown:         50,
			PeaceTreatyCooldown: 100,
			PeaceChance:         0.005,
			MaxWars:             5,
		},
		Annexation: AnnexationConfig{
			Threshold:   0.3,
			LogCapacity: 5,
		},
		Run: RunConfig{
			StepsPerFrame:  1,
			TickIntervalMs: 50,
			SampleEvery:    10,
			SaveEvery:      500,
			MaxTicks:       0,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Normalize fills zero-valued driver settings with usable values.
func (c *Config) Normalize() {
	if c.Run.StepsPerFrame <= 0 {
		c.Run.StepsPerFrame = 1
	}
	if c.Run.SampleEvery <= 0 {
		c.Run.SampleEvery = 10
	}
	if c.Run.TickIntervalMs < 0 {
		c.Run.TickIntervalMs = 0
	}
}

// Validate rejects configurations that would make the simulation misbehave.
func (c Config) Validate() error {
	switch {
	case c.Map.GridSize <= 0:
		return invalid("map.grid_size must be positive, got %d", c.Map.GridSize)
	case c.Map.NumCivs < 1:
		return invalid("map.num_civs must be at least 1, got %d", c.Map.NumCivs)
	case c.Map.NumCivs > c.Map.GridSize*c.Map.GridSize:
		return invalid("map.num_civs %d exceeds %d cells", c.Map.NumCivs, c.Map.GridSize*c.Map.GridSize)
	case c.Map.Scale <= 0:
		return invalid("map.scale must be positive, got %g", c.Map.Scale)
	case c.Map.Octaves < 1:
		return invalid("map.octaves must be at least 1, got %d", c.Map.Octaves)
	case c.Map.LandThreshold < 0 || c.Map.LandThreshold > 1:
		return invalid("map.land_threshold must be in [0,1], got %g", c.Map.LandThreshold)
	case c.Expansion.BaseChance < 0:
		return invalid("expansion.base_chance must be non-negative, got %g", c.Expansion.BaseChance)
	case c.Expansion.ScaleFactor <= 0:
		return invalid("expansion.scale_factor must be positive, got %g", c.Expansion.ScaleFactor)
	case c.Expansion.GroupPushLimit < 0:
		return invalid("expansion.group_push_limit must be non-negative, got %d", c.Expansion.GroupPushLimit)
	case c.War.IntensityGrowth < 0:
		return invalid("war.intensity_growth must be non-negative, got %g", c.War.IntensityGrowth)
	case c.War.MultiFrontScaling < 0:
		return invalid("war.multi_front_scaling must be non-negative, got %g", c.War.MultiFrontScaling)
	case c.War.WarCooldown < 0:
		return invalid("war.war_cooldown must be non-negative, got %d", c.War.WarCooldown)
	case c.War.PeaceTreatyCooldown < 0:
		return invalid("war.peace_treaty_cooldown must be non-negative, got %d", c.War.PeaceTreatyCooldown)
	case c.War.PeaceChance < 0 || c.War.PeaceChance > 1:
		return invalid("war.peace_chance must be in [0,1], got %g", c.War.PeaceChance)
	case c.War.MaxWars < 0:
		return invalid("war.max_wars must be non-negative, got %d", c.War.MaxWars)
	case c.Annexation.Threshold < 0 || c.Annexation.Threshold > 1:
		return invalid("annexation.threshold must be in [0,1], got %g", c.Annexation.Threshold)
	case c.Annexation.LogCapacity < 1:
		return invalid("annexation.log_capacity must be at least 1, got %d", c.Annexation.LogCapacity)
	case c.Run.SaveEvery < 0:
		return invalid("run.save_every must be non-negative, got %d", c.Run.SaveEvery)
	case c.Run.MaxTicks < 0:
		return invalid("run.max_ticks must be non-negative, got %d", c.Run.MaxTicks)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// GenConfig converts the map section into terrain generation parameters.
func (c Config) GenConfig() world.GenConfig {
	return world.GenConfig{
		Size:          c.Map.GridSize,
		Seed:          c.Map.Seed,
		Scale:         c.Map.Scale,
		Octaves:       c.Map.Octaves,
		Persistence:   c.Map.Persistence,
		Lacunarity:    c.Map.Lacunarity,
		LandThreshold: c.Map.LandThreshold,
	}
}

// TickInterval returns the driver's base tick interval.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.Run.TickIntervalMs) * time.Millisecond
}
