package engine

import (
	"math/rand"
	"sort"

	"github.com/brighammerrick/Civilization-Simulation/internal/config"
	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

// IncreaseWarIntensity escalates every active war by growth, capped at MaxWarIntensity.
func IncreaseWarIntensity(st *State, growth float64) {
	for p := range st.Wars {
		v := st.WarIntensity(p) + growth
		if v > MaxWarIntensity {
			v = MaxWarIntensity
		}
		st.Intensity[p] = v
	}
}

// onCooldown reports whether civ signed peace too recently to declare war.
func onCooldown(st *State, cfg config.WarConfig, civ world.Cell, frame uint64) bool {
	signed, ok := st.WarCooldown[civ]
	return ok && frame-signed < uint64(cfg.WarCooldown)
}

// underTreaty reports whether the pair's peace treaty is still in force.
func underTreaty(st *State, cfg config.WarConfig, p WarPair, frame uint64) bool {
	signed, ok := st.PeaceTreaties[p]
	return ok && frame-signed <= uint64(cfg.PeaceTreatyCooldown)
}

// DeclareWarIfIdle starts wars between bordering civilizations. A civilization
// under personal cooldown declares nothing; a pair under treaty is skipped;
// no war starts once MaxWars are active. Returns the wars declared, in order.
func DeclareWarIfIdle(g *world.Grid, st *State, cfg config.WarConfig, frame uint64) []WarPair {
	adj := world.Adjacency(g)

	civs := make([]world.Cell, 0, len(adj))
	for c := range adj {
		civs = append(civs, c)
	}
	sort.Slice(civs, func(i, j int) bool { return civs[i] < civs[j] })

	var declared []WarPair
	for _, civ := range civs {
		if onCooldown(st, cfg, civ, frame) {
			continue
		}

		rivals := make([]world.Cell, 0, len(adj[civ]))
		for r := range adj[civ] {
			rivals = append(rivals, r)
		}
		sort.Slice(rivals, func(i, j int) bool { return rivals[i] < rivals[j] })

		for _, rival := range rivals {
			p := NewWarPair(civ, rival)
			if st.Wars[p] || underTreaty(st, cfg, p, frame) {
				continue
			}
			if len(st.Wars) >= cfg.MaxWars {
				return declared
			}
			st.Wars[p] = true
			st.Intensity[p] = 1.0
			declared = append(declared, p)
		}
	}
	return declared
}

// MaybeEndWars ends each active war with probability PeaceChance. Ended wars
// record a treaty for the pair and a cooldown for both parties, and lose their
// intensity entry. Returns the wars ended, in order.
func MaybeEndWars(st *State, cfg config.WarConfig, rng *rand.Rand, frame uint64) []WarPair {
	var ended []WarPair
	for _, p := range st.ActiveWars() {
		if rng.Float64() < cfg.PeaceChance {
			ended = append(ended, p)
		}
	}
	for _, p := range ended {
		delete(st.Wars, p)
		delete(st.Intensity, p)
		st.PeaceTreaties[p] = frame
		st.WarCooldown[p.A] = frame
		st.WarCooldown[p.B] = frame
	}
	return ended
}
