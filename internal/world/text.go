package world

import (
	"fmt"
	"strings"
)

// ParseGrid builds a grid from rows of text: '~' is water, '.' neutral land,
// and 'A', 'B', ... the civilizations with index 0, 1, .... Rows must form a square.
func ParseGrid(rows ...string) (*Grid, error) {
	g := NewGrid(len(rows))
	for y, row := range rows {
		if len(row) != len(rows) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", y, len(row), len(rows))
		}
		for x, ch := range []byte(row) {
			switch {
			case ch == '~':
				g.Cells[y*g.Size+x] = Water
			case ch == '.':
				g.Cells[y*g.Size+x] = Land
			case ch >= 'A' && ch <= 'Z':
				g.Cells[y*g.Size+x] = CivID(int(ch - 'A'))
			default:
				return nil, fmt.Errorf("row %d: unknown cell %q", y, ch)
			}
		}
	}
	return g, nil
}

// MustParseGrid is ParseGrid for fixtures; it panics on malformed input.
func MustParseGrid(rows ...string) *Grid {
	g, err := ParseGrid(rows...)
	if err != nil {
		panic(err)
	}
	return g
}

// Rows renders the grid in the ParseGrid notation. Civilizations past 'Z' print as '?'.
func (g *Grid) Rows() []string {
	rows := make([]string, g.Size)
	var b strings.Builder
	for y := 0; y < g.Size; y++ {
		b.Reset()
		for x := 0; x < g.Size; x++ {
			v := g.Cells[y*g.Size+x]
			switch {
			case v == Water:
				b.WriteByte('~')
			case v == Land:
				b.WriteByte('.')
			case v.Index() < 26:
				b.WriteByte(byte('A' + v.Index()))
			default:
				b.WriteByte('?')
			}
		}
		rows[y] = b.String()
	}
	return rows
}
