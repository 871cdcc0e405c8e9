package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/brighammerrick/Civilization-Simulation/internal/civ"
	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

// Row is one leaderboard entry.
type Row struct {
	Rank  int        `json:"rank"`
	ID    world.Cell `json:"id"`
	Name  string     `json:"name"`
	Tiles int        `json:"tiles"`
	Share float64    `json:"share"` // Fraction of all claimed tiles
	Color string     `json:"color"`
}

// Leaderboard ranks living civilizations by size, largest first; equal sizes
// rank by id. sizes is indexed by civilization index. maxRows <= 0 returns all.
func Leaderboard(sizes []int, reg *civ.Registry, maxRows int) []Row {
	claimed := 0
	rows := make([]Row, 0, len(sizes))
	for i, n := range sizes {
		if n == 0 {
			continue
		}
		claimed += n
		id := world.CivID(i)
		c := opaque(reg.ColorOf(id))
		rows = append(rows, Row{
			ID:    id,
			Name:  reg.Name(id),
			Tiles: n,
			Color: fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Tiles != rows[j].Tiles {
			return rows[i].Tiles > rows[j].Tiles
		}
		return rows[i].ID < rows[j].ID
	})
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	for i := range rows {
		rows[i].Rank = i + 1
		rows[i].Share = float64(rows[i].Tiles) / float64(claimed)
	}
	return rows
}

// FormatLeaderboard renders rows as aligned text, one civilization per line.
func FormatLeaderboard(rows []Row) string {
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%2d. %-28s %8s tiles (%.1f%%)\n",
			r.Rank, r.Name, humanize.Comma(int64(r.Tiles)), r.Share*100)
	}
	return b.String()
}
