package systems

import (
	"math"
	"math/rand"
	"sort"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/synaptic/components"
)

// GenesisParams tunes initial ring construction for an empty graph.
type GenesisParams struct {
	RingNodes  int
	RingRadius float64
	Jitter     float64
}

// PlacementParams tunes the optimal-position search for new nodes.
type PlacementParams struct {
	MinDistance    float64
	SpawnRadius    float64
	IdealSpacing   float64
	ConnectRadius  float64
	Samples        int
	NeighborBonus  float64
	NeighborMin    int
	NeighborMax    int
	SpacingPenalty float64
}

// WiringParams tunes edge creation for new nodes.
type WiringParams struct {
	ConnectRadius  float64
	MinConnections int
	MaxConnections int
	MaxDegree      int
}

// Generator decides where new nodes go and which neighbors they wire to.
// All randomness flows through the injected rand.Rand, so a graph replayed
// with the same seed and operation order reproduces byte-identical placement.
type Generator struct {
	rng       *rand.Rand
	genesis   GenesisParams
	placement PlacementParams
	wiring    WiringParams
	scratch   []ecs.Entity
}

// NewGenerator creates a generator around a seeded RNG.
func NewGenerator(rng *rand.Rand, genesis GenesisParams, placement PlacementParams, wiring WiringParams) *Generator {
	if placement.Samples < 20 {
		placement.Samples = 20
	}
	return &Generator{
		rng:       rng,
		genesis:   genesis,
		placement: placement,
		wiring:    wiring,
	}
}

// SeedRing returns positions for the initial dormant filler ring: RingNodes
// points angle-evenly spaced on a circle of RingRadius, each nudged by a
// seeded jitter so the starting shape isn't perfectly flat. The caller wires
// consecutive positions into a closed cycle.
func (g *Generator) SeedRing() []r3.Vec {
	n := g.genesis.RingNodes
	if n <= 0 {
		return nil
	}
	out := make([]r3.Vec, 0, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		pos := r3.Vec{
			X: math.Cos(angle) * g.genesis.RingRadius,
			Y: math.Sin(angle) * g.genesis.RingRadius,
		}
		if g.genesis.Jitter > 0 {
			pos = r3.Add(pos, g.jitterVec(g.genesis.Jitter))
		}
		out = append(out, pos)
	}
	return out
}

// OptimalPosition finds a spot for a new node. With no existing nodes the
// origin is returned. Otherwise Samples candidates are drawn uniformly on a
// sphere of max(mean radius, SpawnRadius) around the centroid and scored:
// candidates violating MinDistance are disqualified outright, a comfortable
// neighbor count ([NeighborMin, NeighborMax] inside ConnectRadius) earns
// NeighborBonus, and deviation of the mean neighbor distance from
// IdealSpacing costs SpacingPenalty per unit. If every candidate is
// disqualified, one more point on the spawn sphere is accepted as-is so the
// operation always produces a position.
func (g *Generator) OptimalPosition(positions []r3.Vec, grid *SpatialGrid) r3.Vec {
	if len(positions) == 0 {
		return r3.Vec{}
	}

	centroid := r3.Vec{}
	for _, p := range positions {
		centroid = r3.Add(centroid, p)
	}
	centroid = r3.Scale(1/float64(len(positions)), centroid)

	meanRadius := 0.0
	for _, p := range positions {
		meanRadius += r3.Norm(r3.Sub(p, centroid))
	}
	meanRadius /= float64(len(positions))

	spawnRadius := math.Max(meanRadius, g.placement.SpawnRadius)

	best := r3.Vec{}
	bestScore := math.Inf(-1)
	found := false
	for i := 0; i < g.placement.Samples; i++ {
		cand := r3.Add(centroid, r3.Scale(spawnRadius, g.sphereDir()))
		if grid.HasCollision(cand, g.placement.MinDistance, ecs.Entity{}) {
			continue // score would be -inf
		}
		score := g.scoreCandidate(cand, grid)
		if score > bestScore {
			best = cand
			bestScore = score
			found = true
		}
	}
	if !found {
		// Degraded placement: everything was too crowded, take a point on
		// the spawn sphere anyway.
		return r3.Add(centroid, r3.Scale(spawnRadius, g.sphereDir()))
	}
	return best
}

// scoreCandidate rates a position by its neighborhood.
func (g *Generator) scoreCandidate(cand r3.Vec, grid *SpatialGrid) float64 {
	g.scratch = grid.QueryInto(g.scratch, cand, g.placement.ConnectRadius)
	score := 0.0
	count := len(g.scratch)
	if count >= g.placement.NeighborMin && count <= g.placement.NeighborMax {
		score += g.placement.NeighborBonus
	}
	if count > 0 {
		meanDist := 0.0
		for _, e := range g.scratch {
			p, _ := grid.Position(e)
			meanDist += r3.Norm(r3.Sub(p, cand))
		}
		meanDist /= float64(count)
		score -= g.placement.SpacingPenalty * math.Abs(meanDist-g.placement.IdealSpacing)
	}
	return score
}

// PickPeers selects the neighbors a node at pos should connect to: query
// ConnectRadius, drop self, anything at its MaxDegree cap, and anything
// already adjacent, rank whatever remains by distance (node id breaks ties),
// then take a seeded random count within [MinConnections, MaxConnections].
// Zero candidates is fine; the node simply starts unwired.
func (g *Generator) PickPeers(pos r3.Vec, self ecs.Entity, grid *SpatialGrid, somas *ecs.Map1[components.Soma]) []ecs.Entity {
	g.scratch = grid.QueryInto(g.scratch, pos, g.wiring.ConnectRadius)

	type candidate struct {
		e  ecs.Entity
		id string
		d2 float64
	}
	var selfSoma *components.Soma
	if self != (ecs.Entity{}) {
		selfSoma = somas.Get(self)
	}
	cands := make([]candidate, 0, len(g.scratch))
	for _, e := range g.scratch {
		if e == self {
			continue
		}
		soma := somas.Get(e)
		if soma == nil {
			continue
		}
		if soma.Degree() >= g.wiring.MaxDegree {
			continue
		}
		if selfSoma != nil && selfSoma.HasPeer(soma.ID) {
			continue
		}
		p, _ := grid.Position(e)
		cands = append(cands, candidate{e: e, id: soma.ID, d2: r3.Norm2(r3.Sub(p, pos))})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].d2 != cands[j].d2 {
			return cands[i].d2 < cands[j].d2
		}
		return cands[i].id < cands[j].id
	})

	want := g.wiring.MinConnections
	if spread := g.wiring.MaxConnections - g.wiring.MinConnections; spread > 0 {
		want += g.rng.Intn(spread + 1)
	}
	if want > len(cands) {
		want = len(cands)
	}
	if want <= 0 {
		return nil
	}
	out := make([]ecs.Entity, want)
	for i := range out {
		out[i] = cands[i].e
	}
	return out
}

// sphereDir draws a uniformly distributed unit vector.
func (g *Generator) sphereDir() r3.Vec {
	z := 2*g.rng.Float64() - 1
	theta := 2 * math.Pi * g.rng.Float64()
	r := math.Sqrt(1 - z*z)
	return r3.Vec{X: r * math.Cos(theta), Y: r * math.Sin(theta), Z: z}
}

// jitterVec draws a per-axis offset uniform in [-scale, scale].
func (g *Generator) jitterVec(scale float64) r3.Vec {
	return r3.Vec{
		X: (2*g.rng.Float64() - 1) * scale,
		Y: (2*g.rng.Float64() - 1) * scale,
		Z: (2*g.rng.Float64() - 1) * scale,
	}
}
