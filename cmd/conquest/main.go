// Command conquest runs the grid conquest simulation until one civilization remains.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/brighammerrick/Civilization-Simulation/internal/api"
	"github.com/brighammerrick/Civilization-Simulation/internal/civ"
	"github.com/brighammerrick/Civilization-Simulation/internal/config"
	"github.com/brighammerrick/Civilization-Simulation/internal/engine"
	"github.com/brighammerrick/Civilization-Simulation/internal/persistence"
	"github.com/brighammerrick/Civilization-Simulation/internal/render"
	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults when empty)")
	seed := flag.Int64("seed", 0, "terrain and simulation seed (overrides config; 0 keeps config)")
	dataDir := flag.String("data", "data", "directory for the database and snapshots")
	dbPath := flag.String("db", "", "SQLite path (default <data>/conquest.db)")
	port := flag.Int("port", 8080, "HTTP API port, 0 disables the API")
	ticks := flag.Int("ticks", -1, "stop after this many ticks (overrides config; 0 = unbounded)")
	framesDir := flag.String("frames", "", "write a PNG frame every sample into this directory")
	resume := flag.Bool("resume", false, "resume from the latest snapshot")
	flag.Parse()

	setupLogging()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.Map.Seed = *seed
	}
	if *ticks >= 0 {
		cfg.Run.MaxTicks = *ticks
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		slog.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	if *dbPath == "" {
		*dbPath = filepath.Join(*dataDir, "conquest.db")
	}
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", *dbPath)

	// ── Load or Generate ─────────────────────────────────────────────
	var sim *engine.Simulation
	var runID string
	if *resume {
		sim, runID, err = restoreRun(db)
		if errors.Is(err, persistence.ErrNoSnapshot) {
			slog.Warn("no snapshot found, starting a new run")
		} else if err != nil {
			slog.Error("resume failed", "error", err)
			os.Exit(1)
		}
	}
	if sim == nil {
		sim, runID, err = newRun(db, cfg)
		if err != nil {
			slog.Error("failed to start run", "error", err)
			os.Exit(1)
		}
	}
	cfg = sim.Config
	if *ticks >= 0 {
		cfg.Run.MaxTicks = *ticks
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(cfg.TickInterval())
	eng.Tick = sim.CurrentTick()
	eng.StepsPerFrame = cfg.Run.StepsPerFrame
	eng.SampleEvery = uint64(cfg.Run.SampleEvery)
	eng.SaveEvery = uint64(cfg.Run.SaveEvery)
	eng.MaxTicks = uint64(cfg.Run.MaxTicks)

	eng.OnTick = func(uint64) { sim.Step() }
	eng.Done = sim.Finished
	eng.OnSample = func(tick uint64) {
		report(sim)
		if err := db.SaveTerritorySample(runID, tick, sim.Sizes()); err != nil {
			slog.Error("territory sample failed", "error", err)
		}
		if *framesDir != "" {
			view := sim.Snapshot()
			if _, err := render.WritePNG(*framesDir, tick, view.Grid, sim.Civs, 2); err != nil {
				slog.Error("frame export failed", "error", err)
			}
		}
	}
	eng.OnSave = func(uint64) {
		if _, _, err := api.SaveSnapshot(db, sim, runID, *dataDir); err != nil {
			slog.Error("periodic save failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	var apiServer *api.Server
	if *port > 0 {
		adminKey := os.Getenv("CONQUEST_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("CONQUEST_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		apiServer = &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			RunID:    runID,
			DataDir:  *dataDir,
			Port:     *port,
			AdminKey: adminKey,
		}
		apiServer.Start()
		defer apiServer.Close()
	}

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\n%d civilizations on a %dx%d map (run %s).\n",
		cfg.Map.NumCivs, cfg.Map.GridSize, cfg.Map.GridSize, runID)
	if *port > 0 {
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", *port)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run()

	// Final save on shutdown.
	slog.Info("final save...")
	if _, _, err := api.SaveSnapshot(db, sim, runID, *dataDir); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println()
	fmt.Print(render.FormatLeaderboard(render.Leaderboard(sim.Sizes(), sim.Civs, 10)))

	if sim.Finished() {
		winner := ""
		if alive := sim.AliveCivs(); len(alive) == 1 {
			winner = sim.Civs.Name(alive[0])
		}
		if err := db.FinishRun(runID, sim.CurrentTick(), winner); err != nil {
			slog.Error("finish run failed", "error", err)
		}
		fmt.Printf("\nConquest complete after %s ticks. Winner: %s\n",
			humanize.Comma(int64(sim.CurrentTick())), winner)
		return
	}
	fmt.Printf("\nSimulation stopped at tick %s. State saved.\n", humanize.Comma(int64(sim.CurrentTick())))
}

// setupLogging installs a text handler on terminals and JSON otherwise.
func setupLogging() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// newRun generates terrain, seeds the civilizations and registers the run.
func newRun(db *persistence.DB, cfg config.Config) (*engine.Simulation, string, error) {
	slog.Info("generating world map...", "size", cfg.Map.GridSize)
	mask, seed := world.GenerateLandMask(cfg.GenConfig())
	cfg.Map.Seed = seed
	slog.Info("terrain generated",
		"seed", seed,
		"land", humanize.Comma(int64(world.LandCount(mask))),
		"cells", humanize.Comma(int64(len(mask))),
	)

	grid := world.NewGridFromMask(cfg.Map.GridSize, mask)
	rng := rand.New(rand.NewSource(seed))
	reg := civ.NewRegistry(cfg.Map.NumCivs, rng)
	if _, err := world.SeedCivilizations(grid, cfg.Map.NumCivs, rng); err != nil {
		return nil, "", err
	}

	sim := engine.NewSimulation(cfg, grid, reg, rng)
	sim.Seed = seed

	runID, err := db.StartRun(seed, cfg.Map.GridSize, cfg.Map.NumCivs)
	if err != nil {
		return nil, "", err
	}
	if err := db.SaveCivilizations(runID, reg); err != nil {
		return nil, "", fmt.Errorf("save civilizations: %w", err)
	}
	if err := db.SaveTerritorySample(runID, 0, sim.Sizes()); err != nil {
		return nil, "", fmt.Errorf("save territory: %w", err)
	}

	for _, c := range reg.Civs {
		slog.Info("civilization founded", "id", c.ID, "name", c.Name)
	}
	slog.Info("run started", "run", runID)
	return sim, runID, nil
}

// restoreRun loads the newest snapshot.
func restoreRun(db *persistence.DB) (*engine.Simulation, string, error) {
	row, err := db.LatestSnapshot()
	if err != nil {
		return nil, "", err
	}
	snap, err := persistence.ReadSnapshot(row.Path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", row.Path, err)
	}
	sim, err := persistence.Restore(snap)
	if err != nil {
		return nil, "", fmt.Errorf("restore %s: %w", row.Path, err)
	}
	db.ResumeRun(row.RunID, snap.Header.Tick)

	slog.Info("run restored", "run", row.RunID, "tick", snap.Header.Tick, "path", row.Path)
	return sim, row.RunID, nil
}

// report logs the periodic progress line.
func report(sim *engine.Simulation) {
	view := sim.Snapshot()
	slog.Info("progress",
		"tick", view.Frame,
		"alive", view.Stats.AliveCivs,
		"wars", view.Stats.ActiveWars,
		"leader", sim.Civs.Name(view.Stats.LeaderID),
		"leader_tiles", humanize.Comma(int64(view.Stats.LeaderTiles)),
		"neutral", humanize.Comma(int64(view.Stats.NeutralTiles)),
	)
}
