// Package engine provides the conquest simulation and the tick loop that drives it.
package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Engine drives a simulation forward at a configurable pace.
type Engine struct {
	Tick          uint64        // Driver ticks completed
	Interval      time.Duration // Base tick interval; 0 runs as fast as possible
	StepsPerFrame int           // OnTick calls per driver tick
	SampleEvery   uint64        // OnSample cadence in ticks, 0 disables
	SaveEvery     uint64        // OnSave cadence in ticks, 0 disables
	MaxTicks      uint64        // Stop after this many ticks, 0 means unbounded

	// Callbacks, populated during setup.
	OnTick   func(tick uint64) // Every simulation step
	OnSample func(tick uint64) // Every SampleEvery ticks
	OnSave   func(tick uint64) // Every SaveEvery ticks
	Done     func() bool       // Reports whether the run has concluded

	mu      sync.Mutex
	speed   float64
	running atomic.Bool
}

// NewEngine creates an engine at normal speed that advances one step per tick.
func NewEngine(interval time.Duration) *Engine {
	return &Engine{
		Interval:      interval,
		StepsPerFrame: 1,
		speed:         1.0,
	}
}

// Speed returns the pace multiplier: 1.0 is normal, 0 is paused.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the pace multiplier. Negative values pause.
func (e *Engine) SetSpeed(v float64) {
	if v < 0 {
		v = 0
	}
	e.mu.Lock()
	e.speed = v
	e.mu.Unlock()
	slog.Info("speed changed", "speed", v)
}

// Running reports whether the loop is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run starts the simulation loop. Blocks until Stop is called, Done reports
// true, or MaxTicks is reached.
func (e *Engine) Run() {
	e.running.Store(true)
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed(), "interval", e.Interval)

	for e.running.Load() {
		if e.finished() {
			break
		}

		speed := e.Speed()
		if speed <= 0 {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.step()

		if e.Interval > 0 {
			elapsed := time.Since(start)
			target := time.Duration(float64(e.Interval) / speed)
			if elapsed < target {
				time.Sleep(target - elapsed)
			}
		}
	}

	e.running.Store(false)
	slog.Info("simulation engine stopped", "tick", e.Tick)
}

// Stop halts the simulation loop after the current tick.
func (e *Engine) Stop() {
	e.running.Store(false)
}

func (e *Engine) finished() bool {
	if e.MaxTicks > 0 && e.Tick >= e.MaxTicks {
		return true
	}
	return e.Done != nil && e.Done()
}

// step advances the simulation by one driver tick.
func (e *Engine) step() {
	steps := e.StepsPerFrame
	if steps < 1 {
		steps = 1
	}

	for i := 0; i < steps; i++ {
		if e.finished() {
			return
		}
		e.Tick++

		if e.OnTick != nil {
			e.OnTick(e.Tick)
		}
		if e.SampleEvery > 0 && e.Tick%e.SampleEvery == 0 && e.OnSample != nil {
			e.OnSample(e.Tick)
		}
		if e.SaveEvery > 0 && e.Tick%e.SaveEvery == 0 && e.OnSave != nil {
			e.OnSave(e.Tick)
		}
	}
}
