package persistence

import (
	"errors"
	"math/rand"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/brighammerrick/Civilization-Simulation/internal/civ"
	"github.com/brighammerrick/Civilization-Simulation/internal/config"
	"github.com/brighammerrick/Civilization-Simulation/internal/engine"
	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "conquest.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// duel is a two-civilization run that declares war and annexes on its first tick.
func duel() *engine.Simulation {
	g := world.MustParseGrid("AB", "~~")
	cfg := config.Default()
	cfg.Map.GridSize = g.Size
	cfg.Map.NumCivs = 2
	cfg.War.PeaceChance = 0
	rng := rand.New(rand.NewSource(1))
	return engine.NewSimulation(cfg, g, civ.NewRegistry(2, rng), rng)
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	id, err := db.StartRun(42, 250, 20)
	if err != nil {
		t.Fatal(err)
	}
	run, err := db.GetRun(id)
	if err != nil {
		t.Fatal(err)
	}
	if run.Seed != 42 || run.GridSize != 250 || run.NumCivs != 20 || run.FinishedAt.Valid {
		t.Errorf("run = %+v", run)
	}

	if err := db.FinishRun(id, 900, "The Myrr Realm"); err != nil {
		t.Fatal(err)
	}
	run, _ = db.GetRun(id)
	if run.FinalTick != 900 || run.Winner.String != "The Myrr Realm" || !run.FinishedAt.Valid {
		t.Errorf("finished run = %+v", run)
	}

	other, _ := db.StartRun(42, 250, 20)
	if other == id {
		t.Error("run ids collide")
	}
}

func TestTerritoryHistory(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.StartRun(1, 10, 3)

	if err := db.SaveTerritorySample(id, 0, []int{1, 1, 1}); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveTerritorySample(id, 10, []int{5, 0, 9}); err != nil {
		t.Fatal(err)
	}

	all, err := db.LoadTerritoryHistory(id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("samples = %d, want 5 (dead civilizations skipped)", len(all))
	}
	if all[4] != (TerritorySample{Tick: 10, CivID: int(world.CivID(2)), Tiles: 9}) {
		t.Errorf("last sample = %+v", all[4])
	}

	one, _ := db.LoadTerritoryHistory(id, int(world.CivID(0)))
	if len(one) != 2 || one[1].Tiles != 5 {
		t.Errorf("civ history = %+v", one)
	}
}

func TestSaveCivilizationsReplaces(t *testing.T) {
	db := openTestDB(t)
	id, _ := db.StartRun(1, 10, 3)
	reg := civ.NewRegistry(3, rand.New(rand.NewSource(2)))

	for i := 0; i < 2; i++ {
		if err := db.SaveCivilizations(id, reg); err != nil {
			t.Fatal(err)
		}
	}
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM civilizations WHERE run_id = ?", id); err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
}

func TestSaveRunStateWritesEventsOnce(t *testing.T) {
	db := openTestDB(t)
	sim := duel()
	id, _ := db.StartRun(0, 2, 2)

	sim.Step()
	if err := db.SaveRunState(id, sim); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveRunState(id, sim); err != nil {
		t.Fatal(err)
	}

	events, err := db.RecentEvents(id, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %+v, want war and annexation once each", events)
	}
	if events[0].Category != "annexation" || events[1].Category != "war" {
		t.Errorf("newest first expected, got %+v", events)
	}

	if v, _ := db.GetMeta("last_tick"); v != "1" {
		t.Errorf("last_tick = %q", v)
	}
	if v, _ := db.GetMeta("run_id"); v != id {
		t.Errorf("run_id = %q", v)
	}
}

func TestConcurrentSaveRunState(t *testing.T) {
	db := openTestDB(t)
	sim := busySimulation(t, 100)
	id, _ := db.StartRun(sim.Seed, sim.Grid.Size, sim.Config.Map.NumCivs)

	// The engine loop and the admin API both save while the run advances.
	var wg sync.WaitGroup
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				sim.Step()
				if err := db.SaveRunState(id, sim); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
	if err := db.SaveRunState(id, sim); err != nil {
		t.Fatal(err)
	}

	var stored []engine.Event
	if err := db.conn.Select(&stored,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id", id); err != nil {
		t.Fatal(err)
	}
	want := sim.RecentEvents(1000)
	if len(stored) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(stored, want) {
		t.Errorf("stored %d events, simulation holds %d; each must be written exactly once", len(stored), len(want))
	}
}

func TestLatestSnapshot(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LatestSnapshot(); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}

	db.RecordSnapshot("r1", 500, "a.snap.zst")
	db.RecordSnapshot("r1", 1000, "b.snap.zst")

	row, err := db.LatestSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if row.Tick != 1000 || row.Path != "b.snap.zst" {
		t.Errorf("latest = %+v", row)
	}
}
