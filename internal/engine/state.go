package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

// MaxWarIntensity caps the combat multiplier of a long-running war.
const MaxWarIntensity = 3.0

// WarPair is an unordered pair of civilizations, stored canonically with A < B.
type WarPair struct {
	A world.Cell `json:"a"`
	B world.Cell `json:"b"`
}

// NewWarPair returns the canonical (min, max) pair.
func NewWarPair(a, b world.Cell) WarPair {
	if a > b {
		a, b = b, a
	}
	return WarPair{A: a, B: b}
}

// Involves reports whether civ is a party to the war.
func (p WarPair) Involves(civ world.Cell) bool {
	return p.A == civ || p.B == civ
}

// Other returns the opposing party to civ.
func (p WarPair) Other(civ world.Cell) world.Cell {
	if p.A == civ {
		return p.B
	}
	return p.A
}

func (p WarPair) String() string {
	return fmt.Sprintf("(%d,%d)", p.A, p.B)
}

// State is the mutable bookkeeping shared by every phase of a tick.
// The grid itself lives on the Simulation.
type State struct {
	Wars          map[WarPair]bool      // Active wars
	Intensity     map[WarPair]float64   // Active war → multiplier in [1, MaxWarIntensity]
	PeaceTreaties map[WarPair]uint64    // Pair → frame peace was signed
	WarCooldown   map[world.Cell]uint64 // Civ → frame of its latest peace signing
	LastExpansion map[world.Cell]uint64 // Civ → last frame it claimed a cell
	LastWarFrame  map[world.Cell]uint64 // Civ → last frame it won or lost a contested cell
	Annexations   *AnnexationLog
}

// NewState creates empty bookkeeping with an annexation log of logCapacity entries.
func NewState(logCapacity int) *State {
	return &State{
		Wars:          make(map[WarPair]bool),
		Intensity:     make(map[WarPair]float64),
		PeaceTreaties: make(map[WarPair]uint64),
		WarCooldown:   make(map[world.Cell]uint64),
		LastExpansion: make(map[world.Cell]uint64),
		LastWarFrame:  make(map[world.Cell]uint64),
		Annexations:   NewAnnexationLog(logCapacity),
	}
}

// ActiveWars returns the active war pairs in ascending order.
func (s *State) ActiveWars() []WarPair {
	pairs := make([]WarPair, 0, len(s.Wars))
	for p := range s.Wars {
		pairs = append(pairs, p)
	}
	sortPairs(pairs)
	return pairs
}

// AtWar reports whether a and b are actively fighting.
func (s *State) AtWar(a, b world.Cell) bool {
	return s.Wars[NewWarPair(a, b)]
}

// WarIntensity returns the current multiplier for a pair, 1.0 if unset.
func (s *State) WarIntensity(p WarPair) float64 {
	if v, ok := s.Intensity[p]; ok {
		return v
	}
	return 1.0
}

// FrontCount returns how many active wars target is fighting that do not involve civ.
func (s *State) FrontCount(target, civ world.Cell) int {
	n := 0
	for p := range s.Wars {
		if p.Involves(target) && !p.Involves(civ) {
			n++
		}
	}
	return n
}

// Purge removes every trace of a civilization that no longer exists.
func (s *State) Purge(civ world.Cell) {
	for p := range s.Wars {
		if p.Involves(civ) {
			delete(s.Wars, p)
		}
	}
	for p := range s.Intensity {
		if p.Involves(civ) {
			delete(s.Intensity, p)
		}
	}
	for p := range s.PeaceTreaties {
		if p.Involves(civ) {
			delete(s.PeaceTreaties, p)
		}
	}
	delete(s.WarCooldown, civ)
	delete(s.LastExpansion, civ)
	delete(s.LastWarFrame, civ)
}

// References reports whether any war, intensity or treaty entry names civ.
func (s *State) References(civ world.Cell) bool {
	for p := range s.Wars {
		if p.Involves(civ) {
			return true
		}
	}
	for p := range s.Intensity {
		if p.Involves(civ) {
			return true
		}
	}
	for p := range s.PeaceTreaties {
		if p.Involves(civ) {
			return true
		}
	}
	_, cooling := s.WarCooldown[civ]
	return cooling
}

func sortPairs(pairs []WarPair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
}

// AnnexationRecord describes one dissolved civilization.
type AnnexationRecord struct {
	Frame     uint64             `json:"frame"`
	Target    world.Cell         `json:"target"`
	Tiles     int                `json:"tiles"`
	Occupiers []world.Cell       `json:"occupiers"`
	Awarded   map[world.Cell]int `json:"awarded"`
	Text      string             `json:"text"`
}

// AnnexationLog is a bounded, insertion-ordered record list; the oldest entry
// is evicted once capacity is exceeded.
type AnnexationLog struct {
	capacity int
	entries  []AnnexationRecord
}

// NewAnnexationLog creates a log holding at most capacity records.
func NewAnnexationLog(capacity int) *AnnexationLog {
	if capacity < 1 {
		capacity = 1
	}
	return &AnnexationLog{capacity: capacity}
}

// Append records an entry, evicting the oldest if over capacity.
func (l *AnnexationLog) Append(r AnnexationRecord) {
	l.entries = append(l.entries, r)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// Entries returns a copy of the records, oldest first.
func (l *AnnexationLog) Entries() []AnnexationRecord {
	out := make([]AnnexationRecord, len(l.entries))
	copy(out, l.entries)
	return out
}

// Lines returns the human-readable text of each record, oldest first.
func (l *AnnexationLog) Lines() []string {
	lines := make([]string, len(l.entries))
	for i, e := range l.entries {
		lines[i] = e.Text
	}
	return lines
}

// Len returns the number of retained records.
func (l *AnnexationLog) Len() int {
	return len(l.entries)
}

// formatAnnexation renders "Frame 12: X annexed by A, B".
func formatAnnexation(frame uint64, target world.Cell, occupiers []world.Cell, name func(world.Cell) string) string {
	names := make([]string, len(occupiers))
	for i, o := range occupiers {
		names[i] = name(o)
	}
	return fmt.Sprintf("Frame %d: %s annexed by %s", frame, name(target), strings.Join(names, ", "))
}
