// Simulation ties together the grid, war bookkeeping and every per-tick phase.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/brighammerrick/Civilization-Simulation/internal/civ"
	"github.com/brighammerrick/Civilization-Simulation/internal/config"
	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

// maxEvents bounds the in-memory event ring.
const maxEvents = 1000

// Simulation owns all mutable world state. Step is the only writer; readers
// on other goroutines go through the accessor methods, which hold the lock.
type Simulation struct {
	mu sync.RWMutex

	Config config.Config
	Grid   *world.Grid
	State  *State
	Civs   *civ.Registry
	Seed   int64        // Terrain seed the map was generated from
	Frame  uint64       // Ticks completed
	Order  []world.Cell // Per-run civilization processing order

	Events []Event // Recent events, trimmed to maxEvents
	Stats  SimStats

	rng *rand.Rand

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "war", "peace", "annexation", "extinction"
}

// SimStats tracks aggregate statistics.
type SimStats struct {
	AliveCivs      int        `json:"alive_civs"`
	ActiveWars     int        `json:"active_wars"`
	NeutralTiles   int        `json:"neutral_tiles"`
	LeaderID       world.Cell `json:"leader_id"`
	LeaderTiles    int        `json:"leader_tiles"`
	WarsDeclared   int        `json:"wars_declared"`
	TreatiesSigned int        `json:"treaties_signed"`
	Annexations    int        `json:"annexations"`
}

// StepReport summarizes what happened in one tick.
type StepReport struct {
	Frame      uint64            `json:"frame"`
	Expanded   []world.Cell      `json:"expanded"`
	Declared   []WarPair         `json:"declared"`
	Ended      []WarPair         `json:"ended"`
	Annexation *AnnexationRecord `json:"annexation,omitempty"`
	Extinct    []world.Cell      `json:"extinct"`
}

// extinct returns the ids in before that are missing from after. Both are ascending.
func extinct(before, after []world.Cell) []world.Cell {
	var out []world.Cell
	j := 0
	for _, c := range before {
		for j < len(after) && after[j] < c {
			j++
		}
		if j >= len(after) || after[j] != c {
			out = append(out, c)
		}
	}
	return out
}

// NewSimulation creates a Simulation over a seeded grid. rng is the single
// random source for every phase; seed it for reproducible runs. The
// civilization processing order is drawn from it once, here.
func NewSimulation(cfg config.Config, g *world.Grid, reg *civ.Registry, rng *rand.Rand) *Simulation {
	order := make([]world.Cell, cfg.Map.NumCivs)
	for i, j := range rng.Perm(cfg.Map.NumCivs) {
		order[i] = world.CivID(j)
	}

	sim := &Simulation{
		Config: cfg,
		Grid:   g,
		State:  NewState(cfg.Annexation.LogCapacity),
		Civs:   reg,
		Order:  order,
		rng:    rng,
		subs:   make(map[int]chan Event),
	}
	sim.updateStats()
	return sim
}

// CurrentTick returns the number of ticks completed.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Frame
}

// name resolves display names; a nil registry yields "Civ <id>".
func (s *Simulation) name(id world.Cell) string {
	return s.Civs.Name(id)
}

// Step advances the simulation by one tick: escalate wars, resolve expansion
// and combat against a snapshot and swap in the result, declare and end wars,
// then annex at most one civilization.
func (s *Simulation) Step() StepReport {
	s.mu.Lock()
	frame := s.Frame
	report := StepReport{Frame: frame}
	before := s.Grid.Alive(s.Config.Map.NumCivs)

	IncreaseWarIntensity(s.State, s.Config.War.IntensityGrowth)

	next, expanded := ExpandAndFight(s.Grid, s.State, s.Config, s.rng, frame, s.Order)
	s.Grid = next
	for _, c := range s.Order {
		if expanded[c] {
			s.State.LastExpansion[c] = frame
			report.Expanded = append(report.Expanded, c)
		}
	}

	report.Declared = DeclareWarIfIdle(s.Grid, s.State, s.Config.War, frame)
	report.Ended = MaybeEndWars(s.State, s.Config.War, s.rng, frame)

	alive := s.Grid.Alive(s.Config.Map.NumCivs)
	report.Annexation = CheckForAnnexations(s.Grid, s.State, s.Config.Annexation, frame, alive, s.name)

	var events []Event
	for _, p := range report.Declared {
		events = append(events, Event{
			Tick:        frame,
			Description: fmt.Sprintf("%s declared war on %s", s.name(p.A), s.name(p.B)),
			Category:    "war",
		})
	}
	for _, p := range report.Ended {
		events = append(events, Event{
			Tick:        frame,
			Description: fmt.Sprintf("%s and %s signed a peace treaty", s.name(p.A), s.name(p.B)),
			Category:    "peace",
		})
	}
	if a := report.Annexation; a != nil {
		events = append(events, Event{Tick: frame, Description: a.Text, Category: "annexation"})
	}
	report.Extinct = extinct(before, s.Grid.Alive(s.Config.Map.NumCivs))
	for _, c := range report.Extinct {
		if a := report.Annexation; a != nil && a.Target == c {
			continue
		}
		s.State.Purge(c)
		events = append(events, Event{
			Tick:        frame,
			Description: fmt.Sprintf("%s was conquered", s.name(c)),
			Category:    "extinction",
		})
	}

	s.Stats.WarsDeclared += len(report.Declared)
	s.Stats.TreatiesSigned += len(report.Ended)
	if report.Annexation != nil {
		s.Stats.Annexations++
	}

	s.Frame++
	s.recordEvents(events)
	s.updateStats()
	s.mu.Unlock()

	for _, e := range events {
		if e.Category != "annexation" {
			slog.Info(e.Category, "tick", e.Tick, "event", e.Description)
		}
	}
	if report.Annexation != nil {
		slog.Info("annexation",
			"tick", frame,
			"target", s.name(report.Annexation.Target),
			"tiles", report.Annexation.Tiles,
			"occupiers", len(report.Annexation.Occupiers),
		)
	}
	s.publish(events)
	return report
}

// Advance runs n ticks, stopping early once the simulation is finished.
// Returns the number of ticks actually run.
func (s *Simulation) Advance(n int) int {
	ran := 0
	for ; ran < n; ran++ {
		if s.Finished() {
			break
		}
		s.Step()
	}
	return ran
}

// Finished reports whether at most one civilization remains.
func (s *Simulation) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats.AliveCivs <= 1
}

// Sizes returns the tile count per civilization index.
func (s *Simulation) Sizes() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Grid.Sizes(s.Config.Map.NumCivs)
}

// AliveCivs returns the ids of civilizations that still own land.
func (s *Simulation) AliveCivs() []world.Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Grid.Alive(s.Config.Map.NumCivs)
}

// ActiveWars returns the active wars in canonical order.
func (s *Simulation) ActiveWars() []WarPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State.ActiveWars()
}

// AnnexationLog returns the retained annexation messages, oldest first.
func (s *Simulation) AnnexationLog() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State.Annexations.Lines()
}

// RecentEvents returns up to limit of the newest events, oldest first.
func (s *Simulation) RecentEvents(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if len(s.Events) > limit {
		start = len(s.Events) - limit
	}
	out := make([]Event, len(s.Events)-start)
	copy(out, s.Events[start:])
	return out
}

// EventsSince returns the current tick and the retained events that occurred
// at or after tick from, read under one lock so no step falls between them.
func (s *Simulation) EventsSince(from uint64) (uint64, []Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.Events {
		if e.Tick >= from {
			out = append(out, e)
		}
	}
	return s.Frame, out
}

// View is a consistent copy of the state observers need each tick.
type View struct {
	Frame       uint64              `json:"frame"`
	Grid        *world.Grid         `json:"grid"`
	Sizes       []int               `json:"sizes"`
	Wars        []WarPair           `json:"wars"`
	Intensity   map[WarPair]float64 `json:"-"`
	Annexations []string            `json:"annexations"`
	Stats       SimStats            `json:"stats"`

	LastExpansion map[world.Cell]uint64 `json:"-"`
	LastWarFrame  map[world.Cell]uint64 `json:"-"`
}

// Snapshot returns a copy of the grid and war state safe to use while the
// simulation keeps running.
func (s *Simulation) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intensity := make(map[WarPair]float64, len(s.State.Intensity))
	for p, v := range s.State.Intensity {
		intensity[p] = v
	}
	return View{
		Frame:       s.Frame,
		Grid:        s.Grid.Clone(),
		Sizes:       s.Grid.Sizes(s.Config.Map.NumCivs),
		Wars:        s.State.ActiveWars(),
		Intensity:   intensity,
		Annexations: s.State.Annexations.Lines(),
		Stats:       s.Stats,

		LastExpansion: copyFrames(s.State.LastExpansion),
		LastWarFrame:  copyFrames(s.State.LastWarFrame),
	}
}

func copyFrames(m map[world.Cell]uint64) map[world.Cell]uint64 {
	out := make(map[world.Cell]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithLock runs fn while holding the write lock. Used by persistence to
// capture or restore state between ticks.
func (s *Simulation) WithLock(fn func(s *Simulation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Subscribe registers an event listener. Slow listeners miss events rather
// than stall the simulation.
func (s *Simulation) Subscribe() (int, <-chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, 64)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Simulation) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		for _, e := range events {
			select {
			case ch <- e:
			default:
			}
		}
	}
}

// recordEvents appends to the event ring. Caller holds the write lock.
func (s *Simulation) recordEvents(events []Event) {
	s.Events = append(s.Events, events...)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

// updateStats recomputes aggregates. Caller holds the write lock.
func (s *Simulation) updateStats() {
	sizes := s.Grid.Sizes(s.Config.Map.NumCivs)
	alive := 0
	leader, leaderTiles := world.Cell(0), 0
	for i, n := range sizes {
		if n == 0 {
			continue
		}
		alive++
		if n > leaderTiles {
			leader, leaderTiles = world.CivID(i), n
		}
	}

	s.Stats.AliveCivs = alive
	s.Stats.ActiveWars = len(s.State.Wars)
	s.Stats.NeutralTiles = s.Grid.Count(world.Land)
	s.Stats.LeaderID = leader
	s.Stats.LeaderTiles = leaderTiles
}
