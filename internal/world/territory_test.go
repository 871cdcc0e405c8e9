package world

import (
	"reflect"
	"testing"
)

func TestFrontierCells(t *testing.T) {
	g := MustParseGrid(
		"AA~",
		"AA.",
		"~~~",
	)
	// Only (1,1) touches neutral land; water neighbors do not count.
	got := FrontierCells(g, CivID(0))
	want := []Point{{1, 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FrontierCells = %v, want %v", got, want)
	}
}

func TestFrontierIncludesEnemyContact(t *testing.T) {
	g := MustParseGrid(
		"AB",
		"~~",
	)
	if got := FrontierCells(g, CivID(0)); len(got) != 1 {
		t.Errorf("expected enemy contact to make a frontier, got %v", got)
	}
}

func TestFrontierEmptyWhenLandlocked(t *testing.T) {
	g := MustParseGrid(
		"A~",
		"~~",
	)
	if got := FrontierCells(g, CivID(0)); len(got) != 0 {
		t.Errorf("FrontierCells = %v, want none", got)
	}
}

func TestComponentsBreadthFirst(t *testing.T) {
	g := MustParseGrid(
		"AAA~",
		"~~A~",
		"A~~~",
		"A~~A",
	)
	comps := Components(g, CivID(0))
	if len(comps) != 3 {
		t.Fatalf("got %d components, want 3", len(comps))
	}

	want := []Point{{0, 0}, {1, 0}, {2, 0}, {2, 1}}
	if !reflect.DeepEqual(comps[0], want) {
		t.Errorf("first component = %v, want %v", comps[0], want)
	}
	if len(comps[1]) != 2 || len(comps[2]) != 1 {
		t.Errorf("component sizes = %d, %d; want 2, 1", len(comps[1]), len(comps[2]))
	}

	// Every prefix of a component is connected.
	for _, c := range comps {
		for n := 1; n <= len(c); n++ {
			if !connected(g, c[:n]) {
				t.Fatalf("prefix %v is not connected", c[:n])
			}
		}
	}
}

func connected(g *Grid, cells []Point) bool {
	in := make(map[Point]bool, len(cells))
	for _, p := range cells {
		in[p] = true
	}
	seen := map[Point]bool{cells[0]: true}
	queue := []Point{cells[0]}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, n := range g.Neighbors(p) {
			if in[n] && !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return len(seen) == len(cells)
}

func TestDisconnectedMask(t *testing.T) {
	g := MustParseGrid(
		"AA~",
		"A~~",
		"~~A",
	)
	mask := DisconnectedMask(g, CivID(0))
	for i, v := range mask {
		want := i == g.Index(Point{2, 2})
		if v != want {
			t.Errorf("mask[%v] = %v, want %v", g.PointAt(i), v, want)
		}
	}
}

func TestDisconnectedMaskTieKeepsFirst(t *testing.T) {
	g := MustParseGrid(
		"A~",
		"~A",
	)
	mask := DisconnectedMask(g, CivID(0))
	if mask[g.Index(Point{0, 0})] {
		t.Error("first component should be the core")
	}
	if !mask[g.Index(Point{1, 1})] {
		t.Error("second component should be disconnected")
	}
}

func TestDisconnectedMaskSingleComponent(t *testing.T) {
	g := MustParseGrid(
		"AA",
		"..",
	)
	for i, v := range DisconnectedMask(g, CivID(0)) {
		if v {
			t.Errorf("cell %v marked disconnected", g.PointAt(i))
		}
	}
}

func TestAdjacency(t *testing.T) {
	g := MustParseGrid(
		"AB.",
		"~C.",
		"..D",
	)
	adj := Adjacency(g)
	a, b, c, d := CivID(0), CivID(1), CivID(2), CivID(3)

	if !adj[a][b] || !adj[b][a] {
		t.Error("A and B should be adjacent")
	}
	if !adj[b][c] || !adj[c][b] {
		t.Error("B and C should be adjacent")
	}
	if adj[a][c] {
		t.Error("A and C only touch diagonally")
	}
	if len(adj[d]) != 0 {
		t.Errorf("D should have no rivals, got %v", adj[d])
	}
}
