// Civilization placement: one starting cell per civilization on random land.
package world

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrNotEnoughLand is returned when the map cannot host every civilization.
var ErrNotEnoughLand = errors.New("not enough land cells for civilizations")

// SeedCivilizations shuffles the neutral land cells and places civilization
// i (id i+2) on the i-th of them. Returns the starting positions by index.
func SeedCivilizations(g *Grid, numCivs int, rng *rand.Rand) ([]Point, error) {
	var land []Point
	for i, v := range g.Cells {
		if v == Land {
			land = append(land, g.PointAt(i))
		}
	}
	if len(land) < numCivs {
		return nil, fmt.Errorf("seed %d civilizations on %d land cells: %w", numCivs, len(land), ErrNotEnoughLand)
	}

	rng.Shuffle(len(land), func(i, j int) {
		land[i], land[j] = land[j], land[i]
	})

	starts := land[:numCivs]
	for i, p := range starts {
		g.Set(p, CivID(i))
	}
	return starts, nil
}
