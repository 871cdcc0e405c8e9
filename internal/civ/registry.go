// Package civ holds the cosmetic identity of civilizations: display names and
// map colors. Nothing here affects simulation outcomes.
package civ

import (
	"fmt"
	"image/color"
	"math/rand"

	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

// Civilization is the display identity of one civilization.
type Civilization struct {
	ID    world.Cell  `json:"id"`
	Name  string      `json:"name"`
	Color color.NRGBA `json:"color"`
}

// Registry maps civilization ids to their display identity.
type Registry struct {
	Civs []Civilization `json:"civs"`
}

// Water and neutral land colors.
var (
	WaterColor = rgb(0.2, 0.4, 1.0)
	LandColor  = rgb(0.8, 0.8, 0.7)
)

// palette is assigned in order; civilizations past its end get random colors.
var palette = []color.NRGBA{
	rgb(0.91, 0.30, 0.24), rgb(0.98, 0.77, 0.18),
	rgb(0.18, 0.80, 0.44), rgb(0.60, 0.40, 0.70),
	rgb(0.85, 0.33, 0.55), rgb(0.44, 0.62, 0.82),
	rgb(0.99, 0.60, 0.40), rgb(0.35, 0.70, 0.90),
	rgb(0.55, 0.40, 0.15), rgb(0.90, 0.85, 0.50),
	rgb(0.50, 0.75, 0.25), rgb(0.90, 0.45, 0.75),
	rgb(0.65, 0.85, 0.90), rgb(0.95, 0.95, 0.95),
	rgb(0.30, 0.50, 0.90), rgb(0.75, 0.25, 0.25),
	rgb(0.25, 0.75, 0.25), rgb(0.65, 0.65, 0.20),
	rgb(0.70, 0.40, 0.90), rgb(0.35, 0.85, 0.75),
}

// specialColors pins the color of specific names.
var specialColors = map[string]color.NRGBA{
	birmingham: rgb(1.0, 0.2, 0.2),
}

func rgb(r, g, b float64) color.NRGBA {
	return color.NRGBA{R: uint8(r*255 + 0.5), G: uint8(g*255 + 0.5), B: uint8(b*255 + 0.5), A: 255}
}

// NewRegistry names and colors numCivs civilizations.
func NewRegistry(numCivs int, rng *rand.Rand) *Registry {
	names := GenerateNames(rng, numCivs)
	reg := &Registry{Civs: make([]Civilization, numCivs)}
	for i := range reg.Civs {
		reg.Civs[i] = Civilization{
			ID:    world.CivID(i),
			Name:  names[i],
			Color: assignColor(names[i], i, rng),
		}
	}
	return reg
}

func assignColor(name string, i int, rng *rand.Rand) color.NRGBA {
	if c, ok := specialColors[name]; ok {
		return c
	}
	if i < len(palette) {
		return palette[i]
	}
	return rgb(rng.Float64(), rng.Float64(), rng.Float64())
}

// Get returns the civilization for id, or nil if id is not a known civilization.
func (r *Registry) Get(id world.Cell) *Civilization {
	if r == nil || !id.IsCiv() || id.Index() >= len(r.Civs) {
		return nil
	}
	return &r.Civs[id.Index()]
}

// Name returns the display name for id, falling back to "Civ <id>".
func (r *Registry) Name(id world.Cell) string {
	if c := r.Get(id); c != nil {
		return c.Name
	}
	return fmt.Sprintf("Civ %d", id)
}

// ColorOf returns the map color of a cell state.
func (r *Registry) ColorOf(v world.Cell) color.NRGBA {
	switch {
	case v == world.Water:
		return WaterColor
	case v == world.Land:
		return LandColor
	}
	if c := r.Get(v); c != nil {
		return c.Color
	}
	return LandColor
}

// Len returns the number of registered civilizations.
func (r *Registry) Len() int {
	return len(r.Civs)
}
