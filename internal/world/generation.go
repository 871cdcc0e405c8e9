// Terrain generation using layered simplex noise.
// Produces the static land/water mask the ownership grid is seeded from.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds terrain generation parameters.
type GenConfig struct {
	Size          int     // Grid side length
	Seed          int64   // Noise seed (0 = random)
	Scale         float64 // Zoom: higher samples a smaller patch of noise (closer)
	Octaves       int     // Fractal layers: 1 (simple) to 10 (complex)
	Persistence   float64 // Amplitude falloff per octave: 0 (smooth) to 1 (rough)
	Lacunarity    float64 // Frequency growth per octave
	LandThreshold float64 // Water level on the normalized field: 0 (all land) to 1 (all water)
}

// SmallTestConfig returns a tiny map for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Size:          40,
		Seed:          42,
		Scale:         12.0,
		Octaves:       4,
		Persistence:   0.5,
		Lacunarity:    2.0,
		LandThreshold: 0.35,
	}
}

// GenerateLandMask samples fractal noise over the grid, normalizes it to
// [0,1] and marks cells above the land threshold as land. Returns the
// row-major mask and the seed actually used.
func GenerateLandMask(cfg GenConfig) ([]bool, int64) {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	noise := opensimplex.NewNormalized(seed)
	n := cfg.Size
	field := make([]float64, n*n)

	lo, hi := math.Inf(1), math.Inf(-1)
	step := 1.0 / cfg.Scale
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := octaveNoise(noise, float64(x)*step, float64(y)*step, cfg.Octaves, cfg.Persistence, cfg.Lacunarity)
			field[y*n+x] = v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	mask := make([]bool, n*n)
	span := hi - lo
	for i, v := range field {
		norm := 1.0
		if span > 0 {
			norm = (v - lo) / span
		}
		mask[i] = norm > cfg.LandThreshold
	}
	return mask, seed
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, persistence, lacunarity float64) float64 {
	total := 0.0
	amplitude := 1.0
	frequency := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= lacunarity
	}

	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}

// LandCount returns the number of land cells in a mask.
func LandCount(mask []bool) int {
	n := 0
	for _, land := range mask {
		if land {
			n++
		}
	}
	return n
}
