// Annexation dissolves majority-occupied civilizations and hands their land
// to the occupiers in proportion to border contact, cluster by cluster.
package engine

import (
	"fmt"
	"sort"

	"github.com/brighammerrick/Civilization-Simulation/internal/config"
	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

// occupation tallies, for every cell of target, the neighbors held by other
// civilizations. Returns the per-occupier contact counts and the target's tiles.
func occupation(g *world.Grid, target world.Cell) (map[world.Cell]int, []world.Point) {
	tally := make(map[world.Cell]int)
	tiles := world.OwnedCells(g, target)
	buf := make([]world.Point, 0, 4)
	for _, p := range tiles {
		buf = g.AppendNeighbors(buf[:0], p)
		for _, n := range buf {
			v := g.At(n)
			if v.IsCiv() && v != target {
				tally[v]++
			}
		}
	}
	return tally, tiles
}

// apportion converts contact counts into integer tile quotas summing exactly
// to tiles: floor of each proportional share, then the remainder one tile at
// a time round-robin over order.
func apportion(order []world.Cell, tally map[world.Cell]int, tiles int) map[world.Cell]int {
	total := 0
	for _, c := range order {
		total += tally[c]
	}

	quotas := make(map[world.Cell]int, len(order))
	assigned := 0
	for _, c := range order {
		q := tally[c] * tiles / total
		quotas[c] = q
		assigned += q
	}
	for i := 0; i < tiles-assigned; i++ {
		quotas[order[i%len(order)]]++
	}
	return quotas
}

// redistribute hands the target's components to occupiers. Each pass gives
// the next parcel to the occupier with the largest remaining quota; a parcel
// larger than that quota is split and its leftover re-queued. Components are
// breadth-first ordered, so the granted prefix of a split stays connected.
func redistribute(g *world.Grid, comps [][]world.Point, order []world.Cell, quotas map[world.Cell]int) map[world.Cell]int {
	queue := make([][]world.Point, len(comps))
	copy(queue, comps)
	sort.SliceStable(queue, func(i, j int) bool { return len(queue[i]) > len(queue[j]) })

	remaining := make(map[world.Cell]int, len(quotas))
	for c, q := range quotas {
		remaining[c] = q
	}
	awarded := make(map[world.Cell]int, len(quotas))

	for len(queue) > 0 {
		occ := largestQuota(order, remaining)
		if remaining[occ] == 0 {
			break
		}
		parcel := queue[0]
		queue = queue[1:]

		n := min(len(parcel), remaining[occ])
		for _, p := range parcel[:n] {
			g.Set(p, occ)
		}
		remaining[occ] -= n
		awarded[occ] += n
		if n < len(parcel) {
			queue = append(queue, parcel[n:])
		}
	}

	if len(queue) > 0 {
		left := 0
		for _, parcel := range queue {
			left += len(parcel)
		}
		panic(fmt.Sprintf("engine: annexation left %d tiles unassigned", left))
	}
	return awarded
}

// largestQuota returns the occupier with the most remaining tiles; ties go to
// the earliest in order.
func largestQuota(order []world.Cell, remaining map[world.Cell]int) world.Cell {
	best := order[0]
	for _, c := range order[1:] {
		if remaining[c] > remaining[best] {
			best = c
		}
	}
	return best
}

// CheckForAnnexations dissolves at most one civilization per tick: the first,
// in ascending id order, whose occupied-border ratio reaches the threshold.
// The grid is modified in place. Returns nil when nothing was annexed.
func CheckForAnnexations(g *world.Grid, st *State, cfg config.AnnexationConfig, frame uint64, alive []world.Cell, name func(world.Cell) string) *AnnexationRecord {
	for _, target := range alive {
		tally, tiles := occupation(g, target)
		if len(tiles) == 0 {
			continue
		}

		occupied := 0
		for _, n := range tally {
			occupied += n
		}
		if occupied == 0 || float64(occupied)/float64(len(tiles)) < cfg.Threshold {
			continue
		}

		order := make([]world.Cell, 0, len(tally))
		for c := range tally {
			order = append(order, c)
		}
		sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

		quotas := apportion(order, tally, len(tiles))
		awarded := redistribute(g, world.Components(g, target), order, quotas)
		st.Purge(target)

		rec := AnnexationRecord{
			Frame:     frame,
			Target:    target,
			Tiles:     len(tiles),
			Occupiers: order,
			Awarded:   awarded,
			Text:      formatAnnexation(frame, target, order, name),
		}
		st.Annexations.Append(rec)
		return &rec
	}
	return nil
}
