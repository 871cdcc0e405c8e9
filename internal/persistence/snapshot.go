package persistence

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/brighammerrick/Civilization-Simulation/internal/civ"
	"github.com/brighammerrick/Civilization-Simulation/internal/config"
	"github.com/brighammerrick/Civilization-Simulation/internal/engine"
	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

// SnapshotVersion is bumped whenever SnapshotV1 changes incompatibly.
const SnapshotVersion = 1

// Header is written as a plain JSON line ahead of the gob body so a file can
// be identified without decoding it.
type Header struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 is everything needed to resume a run between ticks.
type SnapshotV1 struct {
	Header Header

	Seed   int64
	Config config.Config
	Size   int
	Cells  []int32
	Order  []int32
	Civs   []CivV1

	Wars          []WarV1
	Treaties      []TreatyV1
	WarCooldown   map[int32]uint64
	LastExpansion map[int32]uint64
	LastWarFrame  map[int32]uint64
	Annexations   []engine.AnnexationRecord

	Events []engine.Event
	Stats  engine.SimStats
}

type CivV1 struct {
	ID    int32
	Name  string
	Color [4]uint8
}

type WarV1 struct {
	A, B      int32
	Intensity float64
}

type TreatyV1 struct {
	A, B  int32
	Frame uint64
}

// FromSimulation captures the simulation state. It takes the write lock so
// the capture never straddles a tick.
func FromSimulation(sim *engine.Simulation, runID string) SnapshotV1 {
	var snap SnapshotV1
	sim.WithLock(func(s *engine.Simulation) {
		snap = SnapshotV1{
			Header: Header{Version: SnapshotVersion, RunID: runID, Tick: s.Frame},
			Seed:   s.Seed,
			Config: s.Config,
			Size:   s.Grid.Size,
			Cells:  make([]int32, len(s.Grid.Cells)),
			Order:  make([]int32, len(s.Order)),

			WarCooldown:   cellMap(s.State.WarCooldown),
			LastExpansion: cellMap(s.State.LastExpansion),
			LastWarFrame:  cellMap(s.State.LastWarFrame),
			Annexations:   s.State.Annexations.Entries(),
			Events:        append([]engine.Event(nil), s.Events...),
			Stats:         s.Stats,
		}
		for i, v := range s.Grid.Cells {
			snap.Cells[i] = int32(v)
		}
		for i, v := range s.Order {
			snap.Order[i] = int32(v)
		}
		for _, c := range s.Civs.Civs {
			snap.Civs = append(snap.Civs, CivV1{
				ID:    int32(c.ID),
				Name:  c.Name,
				Color: [4]uint8{c.Color.R, c.Color.G, c.Color.B, c.Color.A},
			})
		}
		for _, p := range s.State.ActiveWars() {
			snap.Wars = append(snap.Wars, WarV1{A: int32(p.A), B: int32(p.B), Intensity: s.State.WarIntensity(p)})
		}
		for p, f := range s.State.PeaceTreaties {
			snap.Treaties = append(snap.Treaties, TreatyV1{A: int32(p.A), B: int32(p.B), Frame: f})
		}
	})
	return snap
}

func cellMap(m map[world.Cell]uint64) map[int32]uint64 {
	out := make(map[int32]uint64, len(m))
	for k, v := range m {
		out[int32(k)] = v
	}
	return out
}

func restoreCellMap(dst map[world.Cell]uint64, src map[int32]uint64) {
	for k, v := range src {
		dst[world.Cell(k)] = v
	}
}

// Restore rebuilds a Simulation from a snapshot. The random source is reseeded
// from the run seed and tick, so a resumed run is reproducible but does not
// replay the exact sequence the uninterrupted run would have drawn.
func Restore(snap SnapshotV1) (*engine.Simulation, error) {
	if snap.Header.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if snap.Size*snap.Size != len(snap.Cells) {
		return nil, fmt.Errorf("snapshot grid is %d cells, want %d", len(snap.Cells), snap.Size*snap.Size)
	}
	if err := snap.Config.Validate(); err != nil {
		return nil, err
	}

	g := world.NewGrid(snap.Size)
	for i, v := range snap.Cells {
		g.Cells[i] = world.Cell(v)
	}

	reg := &civ.Registry{Civs: make([]civ.Civilization, len(snap.Civs))}
	for i, c := range snap.Civs {
		reg.Civs[i] = civ.Civilization{
			ID:    world.Cell(c.ID),
			Name:  c.Name,
			Color: color.NRGBA{R: c.Color[0], G: c.Color[1], B: c.Color[2], A: c.Color[3]},
		}
	}

	rng := rand.New(rand.NewSource(snap.Seed + int64(snap.Header.Tick)))
	sim := engine.NewSimulation(snap.Config, g, reg, rng)

	sim.WithLock(func(s *engine.Simulation) {
		s.Seed = snap.Seed
		s.Frame = snap.Header.Tick
		s.Order = make([]world.Cell, len(snap.Order))
		for i, v := range snap.Order {
			s.Order[i] = world.Cell(v)
		}

		for _, w := range snap.Wars {
			p := engine.NewWarPair(world.Cell(w.A), world.Cell(w.B))
			s.State.Wars[p] = true
			s.State.Intensity[p] = w.Intensity
		}
		for _, t := range snap.Treaties {
			s.State.PeaceTreaties[engine.NewWarPair(world.Cell(t.A), world.Cell(t.B))] = t.Frame
		}
		restoreCellMap(s.State.WarCooldown, snap.WarCooldown)
		restoreCellMap(s.State.LastExpansion, snap.LastExpansion)
		restoreCellMap(s.State.LastWarFrame, snap.LastWarFrame)
		for _, a := range snap.Annexations {
			s.State.Annexations.Append(a)
		}

		s.Events = append([]engine.Event(nil), snap.Events...)
		s.Stats = snap.Stats
	})
	return sim, nil
}

// WriteSnapshot writes snap to path as zstd(header line + gob body).
func WriteSnapshot(path string, snap SnapshotV1) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, f.Close()) }()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadHeader returns only the JSON header line of a snapshot file.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot.
func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// SnapshotPath is the file name used for a run's snapshot at tick.
func SnapshotPath(dir, runID string, tick uint64) string {
	return filepath.Join(dir, "snapshots", runID, fmt.Sprintf("%012d.snap.zst", tick))
}
