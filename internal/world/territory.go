// Territory analysis: frontier detection and connected-component labeling.
package world

// OwnedCells returns every cell owned by civ in row-major order.
func OwnedCells(g *Grid, civ Cell) []Point {
	var cells []Point
	for i, v := range g.Cells {
		if v == civ {
			cells = append(cells, g.PointAt(i))
		}
	}
	return cells
}

// FrontierCells returns the cells owned by civ that touch at least one
// neighbor that is neither water nor owned by civ. Order is row-major;
// callers shuffle before iterating.
func FrontierCells(g *Grid, civ Cell) []Point {
	var frontier []Point
	buf := make([]Point, 0, 4)
	for i, v := range g.Cells {
		if v != civ {
			continue
		}
		p := g.PointAt(i)
		buf = g.AppendNeighbors(buf[:0], p)
		for _, n := range buf {
			nv := g.At(n)
			if nv != civ && nv != Water {
				frontier = append(frontier, p)
				break
			}
		}
	}
	return frontier
}

// Components splits civ's territory into maximal 4-connected components.
// Components are returned in discovery order (row-major scan of their first
// cell); cells within a component are in breadth-first order, so any prefix
// of a component is itself connected.
func Components(g *Grid, civ Cell) [][]Point {
	visited := make([]bool, len(g.Cells))
	var comps [][]Point
	buf := make([]Point, 0, 4)

	for i, v := range g.Cells {
		if v != civ || visited[i] {
			continue
		}
		visited[i] = true
		comp := []Point{g.PointAt(i)}
		for head := 0; head < len(comp); head++ {
			buf = g.AppendNeighbors(buf[:0], comp[head])
			for _, n := range buf {
				ni := g.Index(n)
				if visited[ni] || g.Cells[ni] != civ {
					continue
				}
				visited[ni] = true
				comp = append(comp, n)
			}
		}
		comps = append(comps, comp)
	}
	return comps
}

// DisconnectedMask marks civ's cells that lie outside its largest connected
// component. Ties for largest go to the first component found. A civilization
// with at most one component gets an all-false mask.
// The mask is row-major and sized to the grid.
func DisconnectedMask(g *Grid, civ Cell) []bool {
	mask := make([]bool, len(g.Cells))
	comps := Components(g, civ)
	if len(comps) <= 1 {
		return mask
	}

	core := 0
	for i, c := range comps {
		if len(c) > len(comps[core]) {
			core = i
		}
	}
	for i, c := range comps {
		if i == core {
			continue
		}
		for _, p := range c {
			mask[g.Index(p)] = true
		}
	}
	return mask
}

// Adjacency returns, for every civilization, the set of rival civilizations
// touching its border anywhere on the grid.
func Adjacency(g *Grid) map[Cell]map[Cell]bool {
	adj := make(map[Cell]map[Cell]bool)
	buf := make([]Point, 0, 4)
	for i, v := range g.Cells {
		if !v.IsCiv() {
			continue
		}
		buf = g.AppendNeighbors(buf[:0], g.PointAt(i))
		for _, n := range buf {
			nv := g.At(n)
			if !nv.IsCiv() || nv == v {
				continue
			}
			if adj[v] == nil {
				adj[v] = make(map[Cell]bool)
			}
			adj[v][nv] = true
		}
	}
	return adj
}
