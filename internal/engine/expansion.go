// Expansion and combat: each civilization claims neutral land along its
// frontier and, where at war, enemy cells.
package engine

import (
	"math/rand"

	"github.com/brighammerrick/Civilization-Simulation/internal/config"
	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

// expansionChance grows linearly with size and is not capped.
func expansionChance(cfg config.ExpansionConfig, size int) float64 {
	return cfg.BaseChance * (1 + float64(size)/cfg.ScaleFactor)
}

// captureChance is the raw probability that an attacker with friendly
// adjacent cells takes a contested cell. Defenders fighting on more fronts
// fall faster, and cells cut off from the defender's core fall twice as fast.
func captureChance(friendly, fronts int, intensity, multiFrontScaling float64, disconnected bool) float64 {
	multiFront := 1 + float64(fronts)*multiFrontScaling
	neighborBias := 0.3 + 0.15*float64(friendly-1)
	chance := neighborBias * intensity * multiFront
	if disconnected {
		chance *= 2.0
	}
	return chance
}

// clampChance bounds a probability to [0,1] before sampling.
func clampChance(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// resolver holds the per-tick read snapshot and write buffer.
type resolver struct {
	src   *world.Grid // start-of-tick state, read only
	dst   *world.Grid // claims land here
	st    *State
	cfg   config.Config
	rng   *rand.Rand
	frame uint64

	masks map[world.Cell][]bool // disconnected masks, computed on first use
	buf   []world.Point
}

// ExpandAndFight resolves one tick of expansion and combat for the
// civilizations in order. All decisions read src; claims are written to a
// copy, which is returned with the set of civilizations that claimed at
// least one cell. A cell claimed earlier in the tick cannot change hands
// again in the same tick.
func ExpandAndFight(src *world.Grid, st *State, cfg config.Config, rng *rand.Rand, frame uint64, order []world.Cell) (*world.Grid, map[world.Cell]bool) {
	r := &resolver{
		src:   src,
		dst:   src.Clone(),
		st:    st,
		cfg:   cfg,
		rng:   rng,
		frame: frame,
		masks: make(map[world.Cell][]bool),
		buf:   make([]world.Point, 0, 4),
	}

	sizes := make(map[world.Cell]int)
	for _, v := range src.Cells {
		if v.IsCiv() {
			sizes[v]++
		}
	}

	expanded := make(map[world.Cell]bool)
	for _, civ := range order {
		if sizes[civ] == 0 {
			continue
		}
		if r.expand(civ, sizes[civ]) {
			expanded[civ] = true
		}
	}
	return r.dst, expanded
}

// expand runs one civilization's frontier push. Returns true if any cell was claimed.
func (r *resolver) expand(civ world.Cell, size int) bool {
	frontier := world.FrontierCells(r.src, civ)
	if len(frontier) == 0 {
		return false
	}
	r.rng.Shuffle(len(frontier), func(i, j int) {
		frontier[i], frontier[j] = frontier[j], frontier[i]
	})

	chance := expansionChance(r.cfg.Expansion, size)
	limit := r.cfg.Expansion.GroupPushLimit
	claims := 0

	for _, cell := range frontier {
		if limit > 0 && claims >= limit {
			break
		}
		neighbors := r.src.AppendNeighbors(r.buf[:0], cell)
		r.rng.Shuffle(len(neighbors), func(i, j int) {
			neighbors[i], neighbors[j] = neighbors[j], neighbors[i]
		})
		for _, n := range neighbors {
			if r.tryClaim(civ, n, chance) {
				claims++
				break
			}
		}
	}
	return claims > 0
}

// tryClaim attempts to take cell for civ. At most one claim per frontier cell
// per tick; the caller stops at the first success.
func (r *resolver) tryClaim(civ world.Cell, cell world.Point, chance float64) bool {
	idx := r.src.Index(cell)
	target := r.src.Cells[idx]
	if r.dst.Cells[idx] != target {
		return false
	}

	switch {
	case target == world.Land:
		if r.rng.Float64() < clampChance(chance*1.5) {
			r.dst.Cells[idx] = civ
			return true
		}

	case target.IsCiv() && target != civ && r.st.AtWar(civ, target):
		p, ok := r.warChance(civ, target, cell)
		if !ok {
			return false
		}
		if r.rng.Float64() < clampChance(p) {
			r.dst.Cells[idx] = civ
			r.st.LastWarFrame[civ] = r.frame
			r.st.LastWarFrame[target] = r.frame
			return true
		}
	}
	return false
}

// warChance returns the raw capture probability of an enemy cell, or false
// when civ has no cell adjacent to it.
func (r *resolver) warChance(civ, target world.Cell, cell world.Point) (float64, bool) {
	friendly := 0
	for _, n := range r.src.Neighbors(cell) {
		if r.src.At(n) == civ {
			friendly++
		}
	}
	if friendly == 0 {
		return 0, false
	}

	pair := NewWarPair(civ, target)
	fronts := r.st.FrontCount(target, civ)
	disconnected := r.mask(target)[r.src.Index(cell)]
	return captureChance(friendly, fronts, r.st.WarIntensity(pair), r.cfg.War.MultiFrontScaling, disconnected), true
}

func (r *resolver) mask(civ world.Cell) []bool {
	m, ok := r.masks[civ]
	if !ok {
		m = world.DisconnectedMask(r.src, civ)
		r.masks[civ] = m
	}
	return m
}
