package engine

import (
	"math/rand"
	"testing"

	"github.com/brighammerrick/Civilization-Simulation/internal/config"
	"github.com/brighammerrick/Civilization-Simulation/internal/world"
)

func TestWarPairCanonical(t *testing.T) {
	a, b := world.CivID(3), world.CivID(1)
	p := NewWarPair(a, b)
	if p.A != b || p.B != a {
		t.Errorf("NewWarPair(%d,%d) = %v, want (%d,%d)", a, b, p, b, a)
	}
	if p != NewWarPair(b, a) {
		t.Error("pair order should not matter")
	}
	if p.Other(a) != b || p.Other(b) != a {
		t.Error("Other returned the wrong party")
	}
	if !p.Involves(a) || p.Involves(world.CivID(7)) {
		t.Error("Involves is wrong")
	}
}

func TestIncreaseWarIntensityMonotonicAndCapped(t *testing.T) {
	st := NewState(5)
	p := NewWarPair(world.CivID(0), world.CivID(1))
	st.Wars[p] = true
	st.Intensity[p] = 1.0

	prev := st.WarIntensity(p)
	for i := 0; i < 40; i++ {
		IncreaseWarIntensity(st, 0.1)
		cur := st.WarIntensity(p)
		if cur < prev {
			t.Fatalf("intensity decreased from %v to %v", prev, cur)
		}
		if cur > MaxWarIntensity {
			t.Fatalf("intensity %v above cap", cur)
		}
		prev = cur
	}
	if prev != MaxWarIntensity {
		t.Errorf("intensity = %v after 40 ticks, want cap %v", prev, MaxWarIntensity)
	}
}

func TestDeclareWarBetweenNeighbors(t *testing.T) {
	g := world.MustParseGrid(
		"AB.",
		"...",
		"..C",
	)
	st := NewState(5)
	declared := DeclareWarIfIdle(g, st, config.Default().War, 0)

	want := NewWarPair(world.CivID(0), world.CivID(1))
	if len(declared) != 1 || declared[0] != want {
		t.Fatalf("declared = %v, want [%v]", declared, want)
	}
	if !st.AtWar(world.CivID(0), world.CivID(1)) {
		t.Error("war not recorded")
	}
	if st.Intensity[want] != 1.0 {
		t.Errorf("new war intensity = %v, want 1.0", st.Intensity[want])
	}
}

func TestDeclareWarRespectsMaxWars(t *testing.T) {
	// A touches B, C and D.
	g := world.MustParseGrid(
		"~B~",
		"CAD",
		"~~~",
	)
	cfg := config.Default().War
	cfg.MaxWars = 2
	st := NewState(5)

	declared := DeclareWarIfIdle(g, st, cfg, 0)
	if len(declared) != 2 || len(st.Wars) != 2 {
		t.Fatalf("declared %v, active %d; want 2", declared, len(st.Wars))
	}
	// Lowest ids first.
	if declared[0] != NewWarPair(world.CivID(0), world.CivID(1)) ||
		declared[1] != NewWarPair(world.CivID(0), world.CivID(2)) {
		t.Errorf("declared = %v", declared)
	}

	if more := DeclareWarIfIdle(g, st, cfg, 1); len(more) != 0 {
		t.Errorf("declared %v past the cap", more)
	}
}

func TestMaybeEndWars(t *testing.T) {
	st := NewState(5)
	a, b := world.CivID(0), world.CivID(1)
	p := NewWarPair(a, b)
	st.Wars[p] = true
	st.Intensity[p] = 2.0

	cfg := config.Default().War
	cfg.PeaceChance = 1.0
	ended := MaybeEndWars(st, cfg, rand.New(rand.NewSource(1)), 12)

	if len(ended) != 1 || ended[0] != p {
		t.Fatalf("ended = %v, want [%v]", ended, p)
	}
	if st.AtWar(a, b) {
		t.Error("war still active")
	}
	if _, ok := st.Intensity[p]; ok {
		t.Error("intensity entry left behind")
	}
	if st.PeaceTreaties[p] != 12 || st.WarCooldown[a] != 12 || st.WarCooldown[b] != 12 {
		t.Errorf("treaty = %v, cooldowns = %v", st.PeaceTreaties, st.WarCooldown)
	}
}

func TestMaybeEndWarsZeroChance(t *testing.T) {
	st := NewState(5)
	p := NewWarPair(world.CivID(0), world.CivID(1))
	st.Wars[p] = true

	cfg := config.Default().War
	cfg.PeaceChance = 0
	rng := rand.New(rand.NewSource(1))
	for frame := uint64(0); frame < 100; frame++ {
		if ended := MaybeEndWars(st, cfg, rng, frame); len(ended) != 0 {
			t.Fatalf("war ended with zero peace chance at %d", frame)
		}
	}
}

// After peace, the pair may fight again once both the treaty and the
// personal cooldowns have run out.
func TestWarRedeclarableAfterCooldowns(t *testing.T) {
	g := world.MustParseGrid(
		"AB",
		"~~",
	)
	a, b := world.CivID(0), world.CivID(1)
	p := NewWarPair(a, b)

	cfg := config.Default().War
	cfg.WarCooldown = 50
	cfg.PeaceTreatyCooldown = 100

	st := NewState(5)
	st.Wars[p] = true
	cfg.PeaceChance = 1.0
	MaybeEndWars(st, cfg, rand.New(rand.NewSource(1)), 0)

	tests := []struct {
		frame uint64
		want  bool
	}{
		{30, false},  // both parties cooling down
		{60, false},  // treaty still in force
		{100, false}, // treaty's last frame
		{101, true},
	}
	for _, tt := range tests {
		declared := DeclareWarIfIdle(g, st, cfg, tt.frame)
		if got := len(declared) == 1; got != tt.want {
			t.Errorf("frame %d: declared = %v, want war %v", tt.frame, declared, tt.want)
		}
	}
	if !st.AtWar(a, b) {
		t.Error("war should be active again")
	}
}

func TestFrontCount(t *testing.T) {
	st := NewState(5)
	a, b, c, d := world.CivID(0), world.CivID(1), world.CivID(2), world.CivID(3)
	st.Wars[NewWarPair(a, b)] = true
	st.Wars[NewWarPair(b, c)] = true
	st.Wars[NewWarPair(b, d)] = true
	st.Wars[NewWarPair(c, d)] = true

	if got := st.FrontCount(b, a); got != 2 {
		t.Errorf("FrontCount(b, a) = %d, want 2", got)
	}
	if got := st.FrontCount(a, b); got != 0 {
		t.Errorf("FrontCount(a, b) = %d, want 0", got)
	}
}
