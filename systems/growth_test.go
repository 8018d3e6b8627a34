package systems

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/synaptic/components"
)

func testPlacement() PlacementParams {
	return PlacementParams{
		MinDistance:    2.0,
		SpawnRadius:    6.0,
		IdealSpacing:   3.2,
		ConnectRadius:  5.5,
		Samples:        24,
		NeighborBonus:  10.0,
		NeighborMin:    2,
		NeighborMax:    5,
		SpacingPenalty: 1.5,
	}
}

func testWiring() WiringParams {
	return WiringParams{
		ConnectRadius:  5.5,
		MinConnections: 1,
		MaxConnections: 3,
		MaxDegree:      6,
	}
}

// TestSeedRingExact verifies the jitter-free ring: even angles, exact radius,
// planar placement.
func TestSeedRingExact(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(7)),
		GenesisParams{RingNodes: 8, RingRadius: 5}, testPlacement(), testWiring())

	ring := gen.SeedRing()
	if len(ring) != 8 {
		t.Fatalf("SeedRing returned %d positions, want 8", len(ring))
	}
	for i, pos := range ring {
		angle := 2 * math.Pi * float64(i) / 8
		want := r3.Vec{X: 5 * math.Cos(angle), Y: 5 * math.Sin(angle)}
		if dist(pos, want) > 1e-9 {
			t.Errorf("ring[%d] = %v, want %v", i, pos, want)
		}
		if pos.Z != 0 {
			t.Errorf("ring[%d].Z = %v, want 0 without jitter", i, pos.Z)
		}
	}
}

// TestSeedRingEmpty verifies a zero-node ring yields nothing.
func TestSeedRingEmpty(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(7)),
		GenesisParams{RingNodes: 0, RingRadius: 5}, testPlacement(), testWiring())
	if ring := gen.SeedRing(); ring != nil {
		t.Errorf("SeedRing() = %v, want nil for zero nodes", ring)
	}
}

// TestSeedRingJitterSeeded verifies jitter is reproducible per seed.
func TestSeedRingJitterSeeded(t *testing.T) {
	genesis := GenesisParams{RingNodes: 6, RingRadius: 5, Jitter: 0.8}

	a := NewGenerator(rand.New(rand.NewSource(11)), genesis, testPlacement(), testWiring()).SeedRing()
	b := NewGenerator(rand.New(rand.NewSource(11)), genesis, testPlacement(), testWiring()).SeedRing()
	c := NewGenerator(rand.New(rand.NewSource(12)), genesis, testPlacement(), testWiring()).SeedRing()

	for i := range a {
		if a[i] != b[i] {
			t.Errorf("same seed diverged at ring[%d]: %v vs %v", i, a[i], b[i])
		}
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced an identical jittered ring")
	}
}

// TestOptimalPositionEmpty verifies the origin fallback with no nodes.
func TestOptimalPositionEmpty(t *testing.T) {
	gen := NewGenerator(rand.New(rand.NewSource(1)),
		GenesisParams{}, testPlacement(), testWiring())
	grid := NewSpatialGrid(5.5)

	if pos := gen.OptimalPosition(nil, grid); pos != (r3.Vec{}) {
		t.Errorf("OptimalPosition(empty) = %v, want origin", pos)
	}
}

// TestOptimalPositionMinDistance grows a graph position by position and
// checks the minimum-distance invariant holds for nearly all placements.
// The generator may accept a degraded placement after exhausting candidates,
// so the bound is 95%, not 100%.
func TestOptimalPositionMinDistance(t *testing.T) {
	placement := testPlacement()
	gen := NewGenerator(rand.New(rand.NewSource(42)),
		GenesisParams{}, placement, testWiring())
	grid := NewSpatialGrid(5.5)

	world := ecs.NewWorld()
	mapper := ecs.NewMap1[components.Soma](world)

	var positions []r3.Vec
	// Seed one node so the search has a centroid.
	first := r3.Vec{}
	grid.Insert(mapper.NewEntity(&components.Soma{ID: "n-0"}), first)
	positions = append(positions, first)

	const trials = 60
	violations := 0
	for i := 1; i <= trials; i++ {
		pos := gen.OptimalPosition(positions, grid)
		if grid.HasCollision(pos, placement.MinDistance, ecs.Entity{}) {
			violations++
		}
		grid.Insert(mapper.NewEntity(&components.Soma{ID: fmt.Sprintf("n-%d", i)}), pos)
		positions = append(positions, pos)
	}

	if limit := trials / 20; violations > limit {
		t.Errorf("%d of %d placements violated the minimum distance, want <= %d", violations, trials, limit)
	}
}

// TestOptimalPositionFallback verifies the degraded path: when every sample
// collides, the generator still returns a point on the spawn sphere.
func TestOptimalPositionFallback(t *testing.T) {
	placement := testPlacement()
	placement.SpawnRadius = 1.0
	placement.MinDistance = 10.0 // nothing inside the sphere can qualify
	gen := NewGenerator(rand.New(rand.NewSource(3)),
		GenesisParams{}, placement, testWiring())

	grid := NewSpatialGrid(5.5)
	world := ecs.NewWorld()
	mapper := ecs.NewMap1[components.Soma](world)
	center := r3.Vec{}
	grid.Insert(mapper.NewEntity(&components.Soma{ID: "n-0"}), center)

	pos := gen.OptimalPosition([]r3.Vec{center}, grid)

	for _, v := range []float64{pos.X, pos.Y, pos.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("fallback position not finite: %v", pos)
		}
	}
	// meanRadius is 0 with a single node, so the sphere radius is SpawnRadius.
	if r := r3.Norm(pos); math.Abs(r-1.0) > 1e-9 {
		t.Errorf("fallback radius = %v, want 1.0 (on the spawn sphere)", r)
	}
}

// TestPickPeersRanking verifies candidate ordering, caps, and dedupe.
func TestPickPeersRanking(t *testing.T) {
	wiring := testWiring()
	wiring.MinConnections = 2
	wiring.MaxConnections = 2 // fixed count keeps the test deterministic
	wiring.MaxDegree = 3

	world := ecs.NewWorld()
	somas := ecs.NewMap1[components.Soma](world)
	grid := NewSpatialGrid(5.5)

	add := func(id string, pos r3.Vec, peers ...string) ecs.Entity {
		e := somas.NewEntity(&components.Soma{ID: id, Peers: peers})
		grid.Insert(e, pos)
		return e
	}

	nearest := add("n-1", r3.Vec{X: 1})
	second := add("n-2", r3.Vec{X: 2})
	add("n-3", r3.Vec{X: 3, Y: 1}, "a", "b", "c") // at MaxDegree, must be skipped
	add("n-4", r3.Vec{X: 40})                     // outside ConnectRadius

	gen := NewGenerator(rand.New(rand.NewSource(5)), GenesisParams{}, testPlacement(), wiring)
	picked := gen.PickPeers(r3.Vec{}, ecs.Entity{}, grid, somas)

	if len(picked) != 2 {
		t.Fatalf("PickPeers returned %d peers, want 2", len(picked))
	}
	if picked[0] != nearest || picked[1] != second {
		t.Errorf("PickPeers order wrong: got %v, want [n-1 n-2]", picked)
	}
}

// TestPickPeersSkipsConnected verifies already-adjacent candidates are not
// offered again.
func TestPickPeersSkipsConnected(t *testing.T) {
	wiring := testWiring()
	wiring.MinConnections = 1
	wiring.MaxConnections = 1

	world := ecs.NewWorld()
	somas := ecs.NewMap1[components.Soma](world)
	grid := NewSpatialGrid(5.5)

	self := somas.NewEntity(&components.Soma{ID: "n-0", Peers: []string{"n-1"}})
	grid.Insert(self, r3.Vec{})

	connected := somas.NewEntity(&components.Soma{ID: "n-1", Peers: []string{"n-0"}})
	grid.Insert(connected, r3.Vec{X: 1})

	free := somas.NewEntity(&components.Soma{ID: "n-2"})
	grid.Insert(free, r3.Vec{X: 2})

	gen := NewGenerator(rand.New(rand.NewSource(5)), GenesisParams{}, testPlacement(), wiring)
	picked := gen.PickPeers(r3.Vec{}, self, grid, somas)

	if len(picked) != 1 || picked[0] != free {
		t.Errorf("PickPeers = %v, want only the unconnected candidate", picked)
	}
}

// TestPickPeersNoCandidates verifies an isolated node wires to nothing.
func TestPickPeersNoCandidates(t *testing.T) {
	world := ecs.NewWorld()
	somas := ecs.NewMap1[components.Soma](world)
	grid := NewSpatialGrid(5.5)

	gen := NewGenerator(rand.New(rand.NewSource(5)), GenesisParams{}, testPlacement(), testWiring())
	if picked := gen.PickPeers(r3.Vec{}, ecs.Entity{}, grid, somas); len(picked) != 0 {
		t.Errorf("PickPeers on empty grid = %v, want none", picked)
	}
}
