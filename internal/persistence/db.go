// Package persistence provides SQLite run history and snapshot files for resume.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/brighammerrick/Civilization-Simulation/internal/civ"
	"github.com/brighammerrick/Civilization-Simulation/internal/engine"
	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

// ErrNoSnapshot is returned when no snapshot has been recorded.
var ErrNoSnapshot = errors.New("persistence: no snapshot recorded")

// DB wraps a SQLite connection holding the history of every run.
type DB struct {
	conn *sqlx.DB

	// saveMu serializes SaveRunState, which is called from the engine loop
	// and from the admin API.
	saveMu sync.Mutex
	// First tick whose events have not been written yet, per run. Guarded by saveMu.
	eventsFrom map[string]uint64
}

// Run is one row of the runs table.
type Run struct {
	ID         string         `db:"id" json:"id"`
	Seed       int64          `db:"seed" json:"seed"`
	GridSize   int            `db:"grid_size" json:"grid_size"`
	NumCivs    int            `db:"num_civs" json:"num_civs"`
	StartedAt  string         `db:"started_at" json:"started_at"`
	FinishedAt sql.NullString `db:"finished_at" json:"-"`
	FinalTick  uint64         `db:"final_tick" json:"final_tick"`
	Winner     sql.NullString `db:"winner" json:"-"`
}

// TerritorySample is one civilization's size at one tick.
type TerritorySample struct {
	Tick  uint64 `db:"tick" json:"tick"`
	CivID int    `db:"civ_id" json:"civ_id"`
	Tiles int    `db:"tiles" json:"tiles"`
}

// SnapshotRow indexes a snapshot file.
type SnapshotRow struct {
	RunID     string `db:"run_id" json:"run_id"`
	Tick      uint64 `db:"tick" json:"tick"`
	Path      string `db:"path" json:"path"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, eventsFrom: make(map[string]uint64)}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		grid_size INTEGER NOT NULL,
		num_civs INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		final_tick INTEGER NOT NULL DEFAULT 0,
		winner TEXT
	);

	CREATE TABLE IF NOT EXISTS civilizations (
		run_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		name TEXT NOT NULL,
		color TEXT NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS territory_history (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		civ_id INTEGER NOT NULL,
		tiles INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick, civ_id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		path TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// StartRun registers a new run and returns its id.
func (db *DB) StartRun(seed int64, gridSize, numCivs int) (string, error) {
	id := uuid.New().String()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, grid_size, num_civs, started_at) VALUES (?, ?, ?, ?, ?)",
		id, seed, gridSize, numCivs, now(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// ResumeRun continues event bookkeeping for an existing run from tick.
func (db *DB) ResumeRun(runID string, tick uint64) {
	db.saveMu.Lock()
	defer db.saveMu.Unlock()
	db.eventsFrom[runID] = tick
}

// FinishRun marks a run concluded at tick. winner may be empty.
func (db *DB) FinishRun(runID string, tick uint64, winner string) error {
	var w sql.NullString
	if winner != "" {
		w = sql.NullString{String: winner, Valid: true}
	}
	_, err := db.conn.Exec(
		"UPDATE runs SET finished_at = ?, final_tick = ?, winner = ? WHERE id = ?",
		now(), tick, w, runID,
	)
	return err
}

// GetRun loads one run.
func (db *DB) GetRun(runID string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", runID)
	return r, err
}

// SaveCivilizations writes the run's civilization registry (full replace).
func (db *DB) SaveCivilizations(runID string, reg *civ.Registry) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM civilizations WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex("INSERT INTO civilizations (run_id, id, name, color) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range reg.Civs {
		hex := fmt.Sprintf("#%02x%02x%02x", c.Color.R, c.Color.G, c.Color.B)
		if _, err := stmt.Exec(runID, int(c.ID), c.Name, hex); err != nil {
			return fmt.Errorf("insert civilization %d: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// SaveTerritorySample records every living civilization's size at tick.
// sizes is indexed by civilization index.
func (db *DB) SaveTerritorySample(runID string, tick uint64, sizes []int) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, n := range sizes {
		if n == 0 {
			continue
		}
		_, err := tx.Exec(
			"INSERT OR REPLACE INTO territory_history (run_id, tick, civ_id, tiles) VALUES (?, ?, ?, ?)",
			runID, tick, int(world.CivID(i)), n,
		)
		if err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}

	return tx.Commit()
}

// LoadTerritoryHistory returns a run's samples ordered by tick then civilization.
// civID 0 selects every civilization.
func (db *DB) LoadTerritoryHistory(runID string, civID int) ([]TerritorySample, error) {
	var out []TerritorySample
	var err error
	if civID == 0 {
		err = db.conn.Select(&out,
			"SELECT tick, civ_id, tiles FROM territory_history WHERE run_id = ? ORDER BY tick, civ_id",
			runID)
	} else {
		err = db.conn.Select(&out,
			"SELECT tick, civ_id, tiles FROM territory_history WHERE run_id = ? AND civ_id = ? ORDER BY tick",
			runID, civID)
	}
	return out, err
}

// SaveEvents appends events to the run's history.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)",
			runID, e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// RecordSnapshot indexes a snapshot file written for runID at tick.
func (db *DB) RecordSnapshot(runID string, tick uint64, path string) error {
	_, err := db.conn.Exec(
		"INSERT INTO snapshots (run_id, tick, path, created_at) VALUES (?, ?, ?, ?)",
		runID, tick, path, now(),
	)
	return err
}

// LatestSnapshot returns the newest snapshot across all runs.
func (db *DB) LatestSnapshot() (SnapshotRow, error) {
	var row SnapshotRow
	err := db.conn.Get(&row,
		"SELECT run_id, tick, path, created_at FROM snapshots ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return row, ErrNoSnapshot
	}
	return row, err
}

// SaveRunState writes everything that changed since the previous save:
// new events, a territory sample and the last tick marker.
func (db *DB) SaveRunState(runID string, sim *engine.Simulation) error {
	db.saveMu.Lock()
	defer db.saveMu.Unlock()

	tick, fresh := sim.EventsSince(db.eventsFrom[runID])

	if err := db.SaveEvents(runID, fresh); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveTerritorySample(runID, tick, sim.Sizes()); err != nil {
		return fmt.Errorf("save territory: %w", err)
	}
	if err := db.SaveMeta("last_tick", strconv.FormatUint(tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("run_id", runID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	db.eventsFrom[runID] = tick

	slog.Info("run state saved", "run", runID, "tick", tick, "events", len(fresh))
	return nil
}
