// Package world provides the square ownership grid, neighbor lookup,
// territory analysis, and terrain/seed placement for the conquest map.
package world

import "fmt"

// Cell is the state of one grid square.
// 0 is water, 1 is neutral land, 2..N+1 is owned by civilization (id-2).
type Cell int32

const (
	Water    Cell = 0 // Never claimable
	Land     Cell = 1 // Neutral, claimable by any civilization
	FirstCiv Cell = 2 // Lowest civilization id
)

// IsCiv reports whether the cell is owned by a civilization.
func (c Cell) IsCiv() bool {
	return c >= FirstCiv
}

// CivID returns the civilization id for zero-based civilization index i.
func CivID(i int) Cell {
	return FirstCiv + Cell(i)
}

// Index returns the zero-based civilization index for an owned cell.
func (c Cell) Index() int {
	return int(c - FirstCiv)
}

// Point is a grid coordinate. X is the column, Y the row.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Grid is a fixed-size square array of cell states stored row-major.
type Grid struct {
	Size  int    `json:"size"`
	Cells []Cell `json:"cells"`
}

// NewGrid creates a size×size grid filled with water.
func NewGrid(size int) *Grid {
	return &Grid{
		Size:  size,
		Cells: make([]Cell, size*size),
	}
}

// NewGridFromMask seeds ownership from a land mask: land → Land, else Water.
// The mask is row-major and must hold size*size entries.
func NewGridFromMask(size int, mask []bool) *Grid {
	if len(mask) != size*size {
		panic(fmt.Sprintf("world: land mask has %d cells, want %d", len(mask), size*size))
	}
	g := NewGrid(size)
	for i, land := range mask {
		if land {
			g.Cells[i] = Land
		}
	}
	return g
}

// InBounds returns true if the point lies on the grid.
func (g *Grid) InBounds(p Point) bool {
	return p.X >= 0 && p.X < g.Size && p.Y >= 0 && p.Y < g.Size
}

// Index returns the row-major offset of p. Out-of-grid points are an
// internal consistency fault and panic.
func (g *Grid) Index(p Point) int {
	if !g.InBounds(p) {
		panic(fmt.Sprintf("world: cell (%d,%d) outside %dx%d grid", p.X, p.Y, g.Size, g.Size))
	}
	return p.Y*g.Size + p.X
}

// PointAt converts a row-major offset back into a point.
func (g *Grid) PointAt(i int) Point {
	return Point{X: i % g.Size, Y: i / g.Size}
}

// At returns the cell state at p.
func (g *Grid) At(p Point) Cell {
	return g.Cells[g.Index(p)]
}

// Set writes the cell state at p.
func (g *Grid) Set(p Point, c Cell) {
	g.Cells[g.Index(p)] = c
}

// Clone returns an independent copy of the grid.
func (g *Grid) Clone() *Grid {
	cells := make([]Cell, len(g.Cells))
	copy(cells, g.Cells)
	return &Grid{Size: g.Size, Cells: cells}
}

// neighborOffsets is the fixed orthogonal neighborhood: west, east, north, south.
var neighborOffsets = [4]Point{
	{X: -1, Y: 0},
	{X: 1, Y: 0},
	{X: 0, Y: -1},
	{X: 0, Y: 1},
}

// AppendNeighbors appends the in-bounds orthogonal neighbors of p to dst.
func (g *Grid) AppendNeighbors(dst []Point, p Point) []Point {
	for _, d := range neighborOffsets {
		n := Point{X: p.X + d.X, Y: p.Y + d.Y}
		if g.InBounds(n) {
			dst = append(dst, n)
		}
	}
	return dst
}

// Neighbors returns the in-bounds orthogonal neighbors of p.
func (g *Grid) Neighbors(p Point) []Point {
	return g.AppendNeighbors(make([]Point, 0, 4), p)
}

// Count returns how many cells hold the given state.
func (g *Grid) Count(c Cell) int {
	n := 0
	for _, v := range g.Cells {
		if v == c {
			n++
		}
	}
	return n
}

// Sizes returns the tile count per civilization index for numCivs civilizations.
func (g *Grid) Sizes(numCivs int) []int {
	sizes := make([]int, numCivs)
	for _, v := range g.Cells {
		if v.IsCiv() {
			i := v.Index()
			if i >= numCivs {
				panic(fmt.Sprintf("world: cell value %d outside [0,%d]", v, numCivs+1))
			}
			sizes[i]++
		}
	}
	return sizes
}

// Alive returns the ids of civilizations owning at least one cell, ascending.
func (g *Grid) Alive(numCivs int) []Cell {
	var alive []Cell
	for i, n := range g.Sizes(numCivs) {
		if n > 0 {
			alive = append(alive, CivID(i))
		}
	}
	return alive
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(size=%d, land=%d, water=%d)", g.Size, len(g.Cells)-g.Count(Water), g.Count(Water))
}
