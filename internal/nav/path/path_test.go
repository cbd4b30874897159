package path

import (
	"context"
	"errors"
	"math"
	"testing"

	"minepath.ai/internal/nav/geom"
	"minepath.ai/internal/world/blocks"
	"minepath.ai/internal/world/store"
)

func testWorld(t *testing.T) (*store.Store, *blocks.Catalog) {
	t.Helper()
	s, err := store.New(store.Options{ChunkSize: [3]int{16, 16, 16}, DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	return s, blocks.Default()
}

func newTestFinder(t *testing.T, w World, c *blocks.Catalog, h HeuristicFunc) *Finder {
	t.Helper()
	f, err := New(Config{World: w, Classifier: c, Heuristic: h})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestStraightLineNoTurns(t *testing.T) {
	w, cat := testWorld(t)
	f := newTestFinder(t, w, cat, nil)

	start := geom.Vec3i{Y: 5}
	goal := geom.Vec3i{Y: 5, Z: -4}
	p, err := f.Find(context.Background(), goal, start, geom.North)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if p.Cost != 4 {
		t.Errorf("cost = %v, want 4 (four unturned moves)", p.Cost)
	}
	if len(p.Nodes) != 4 {
		t.Fatalf("path length = %d, want 4 (start excluded)", len(p.Nodes))
	}
	if p.Nodes[0] != goal {
		t.Errorf("first node = %s, want goal %s", p.Nodes[0], goal)
	}
	if geom.Manhattan(p.Nodes[len(p.Nodes)-1], start) != 1 {
		t.Errorf("last node %s not adjacent to start %s", p.Nodes[len(p.Nodes)-1], start)
	}
	fwd := p.Forward()
	if fwd[len(fwd)-1] != goal || geom.Manhattan(fwd[0], start) != 1 {
		t.Errorf("Forward order wrong: %v", fwd)
	}
}

func TestTurnCostCharged(t *testing.T) {
	w, cat := testWorld(t)
	f := newTestFinder(t, w, cat, nil)

	// Facing north, goal three cells east: one quarter turn then three
	// straight moves.
	p, err := f.Find(context.Background(), geom.Vec3i{X: 3, Y: 5}, geom.Vec3i{Y: 5}, geom.North)
	if err != nil {
		t.Fatal(err)
	}
	if p.Cost != 4 {
		t.Errorf("cost = %v, want 4 (3 moves + 1 quarter turn)", p.Cost)
	}
}

func TestObstructionCostVersusDetour(t *testing.T) {
	w, cat := testWorld(t)
	if err := w.Set(geom.Vec3i{Y: 5, Z: -1}, cat.Index["STONE"]); err != nil {
		t.Fatal(err)
	}
	f := newTestFinder(t, w, cat, nil)

	// Straight through the stone: 2 moves + 1 clearing = 3. Any detour
	// costs at least 4 moves plus turns.
	p, err := f.Find(context.Background(), geom.Vec3i{Y: 5, Z: -2}, geom.Vec3i{Y: 5}, geom.North)
	if err != nil {
		t.Fatal(err)
	}
	if p.Cost != 3 {
		t.Errorf("cost = %v, want 3 (clearing beats detouring)", p.Cost)
	}
}

func TestHeuristicsMatchDijkstra(t *testing.T) {
	w, cat := testWorld(t)
	stone := cat.Index["STONE"]
	obstacles := []geom.Vec3i{
		{X: 1, Y: 5, Z: -1}, {X: 2, Y: 5, Z: -1}, {X: 3, Y: 5, Z: -1},
		{X: 1, Y: 5, Z: -3}, {X: 2, Y: 5, Z: -2}, {X: 0, Y: 6, Z: -2},
		{X: 4, Y: 5, Z: -4}, {X: 3, Y: 5, Z: -3},
	}
	for _, o := range obstacles {
		if err := w.Set(o, stone); err != nil {
			t.Fatal(err)
		}
	}
	start := geom.Vec3i{Y: 5}
	goal := geom.Vec3i{X: 4, Y: 5, Z: -5}

	baseline := newTestFinder(t, w, cat, Zero)
	want, err := baseline.Find(context.Background(), goal, start, geom.North)
	if err != nil {
		t.Fatal(err)
	}
	for name, h := range map[string]HeuristicFunc{"manhattan": ManhattanDiag, "euclidean": EuclideanDist} {
		f := newTestFinder(t, w, cat, h)
		got, err := f.Find(context.Background(), goal, start, geom.North)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if math.Abs(got.Cost-want.Cost) > 1e-9 {
			t.Errorf("%s cost = %v, dijkstra = %v", name, got.Cost, want.Cost)
		}
	}
}

func TestUnreachableGoalReported(t *testing.T) {
	w, cat := testWorld(t)
	bedrock := cat.Index["BEDROCK"]
	start := geom.Vec3i{Y: 2}
	// Seal the start into a bedrock pocket low enough that the floor
	// exclusion applies to every wall.
	for _, face := range []geom.Facing{geom.North, geom.East, geom.South, geom.West, geom.Up, geom.Down} {
		if err := w.Set(start.Add(face.Delta()), bedrock); err != nil {
			t.Fatal(err)
		}
	}
	f := newTestFinder(t, w, cat, nil)
	_, err := f.Find(context.Background(), geom.Vec3i{X: 10, Y: 2}, start, geom.North)
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestHeightBandExcluded(t *testing.T) {
	w, cat := testWorld(t)
	f := newTestFinder(t, w, cat, nil)
	// A goal above the world ceiling can never be entered; the search
	// must fail rather than walk out of the band. Give it a sealed
	// start so the open set stays finite.
	bedrock := cat.Index["BEDROCK"]
	start := geom.Vec3i{Y: 2}
	for _, face := range []geom.Facing{geom.North, geom.East, geom.South, geom.West, geom.Up, geom.Down} {
		if err := w.Set(start.Add(face.Delta()), bedrock); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.Find(context.Background(), geom.Vec3i{Y: 300}, start, geom.North); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestFindHonorsContext(t *testing.T) {
	w, cat := testWorld(t)
	f := newTestFinder(t, w, cat, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Find(ctx, geom.Vec3i{X: 50, Y: 5}, geom.Vec3i{Y: 5}, geom.North)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestStartEqualsGoal(t *testing.T) {
	w, cat := testWorld(t)
	f := newTestFinder(t, w, cat, nil)
	p, err := f.Find(context.Background(), geom.Vec3i{Y: 5}, geom.Vec3i{Y: 5}, geom.North)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Nodes) != 0 || p.Cost != 0 {
		t.Errorf("degenerate path = %v cost %v, want empty/0", p.Nodes, p.Cost)
	}
}
