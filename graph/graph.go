// Package graph implements the neural graph engine: a deterministic, seeded
// 3D graph of task-linked neurons and decorative filler nodes, with spatial
// indexing, procedural placement and wiring, a force-directed layout pass per
// tick, delayed energy pulses, and density clustering.
//
// A Graph has a single logical owner: every method must be called from one
// goroutine (or behind one external lock). The engine never spawns
// goroutines; the only deferred behavior is the pulse queue, which is
// drained inside Tick.
package graph

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/synaptic/components"
	"github.com/pthm-cable/synaptic/config"
	"github.com/pthm-cable/synaptic/systems"
	"github.com/pthm-cable/synaptic/telemetry"
)

// DefaultSeed is used when Options.Seed is zero.
const DefaultSeed = 42

// Options configure a new Graph.
type Options struct {
	Config        *config.Config              // nil loads the embedded defaults
	Seed          int64                       // zero falls back to DefaultSeed
	Collector     *telemetry.Collector        // optional window stats collector
	Output        *telemetry.Output           // optional CSV output for flushed stats
	LogStats      bool                        // log flushed window stats via slog
	StatsCallback func(telemetry.WindowStats) // invoked on every flushed window
	TagLookup     systems.TagLookup           // optional task-tag source for clustering
}

// Graph owns all nodes, edges, and clusters and exposes the mutation API.
type Graph struct {
	world *ecs.World
	rng   *rand.Rand
	seed  int64
	cfg   *config.Config

	nodeMapper *ecs.Map4[
		components.Position,
		components.Motion,
		components.Soma,
		components.Energy,
	]
	nodeFilter *ecs.Filter4[
		components.Position,
		components.Motion,
		components.Soma,
		components.Energy,
	]
	connMapper *ecs.Map1[components.Connection]
	connFilter *ecs.Filter1[components.Connection]

	// Individual component mappers for lookups
	posMap    *ecs.Map1[components.Position]
	motionMap *ecs.Map1[components.Motion]
	somaMap   *ecs.Map1[components.Soma]
	energyMap *ecs.Map1[components.Energy]

	// Id registries. Task-linked nodes use their task id as node id, so
	// persisted adjacency stays resolvable across restores.
	nodes map[string]ecs.Entity // node id -> entity
	edges map[string]ecs.Entity // canonical edge id -> entity
	tasks map[string]string     // task id -> node id

	grid      *systems.SpatialGrid
	generator *systems.Generator
	layout    *systems.Layout
	clusterer *systems.Clusterer
	clusters  []systems.Cluster

	pulses   pulseQueue
	pulseSeq uint64

	collector     *telemetry.Collector
	output        *telemetry.Output
	logStats      bool
	statsCallback func(telemetry.WindowStats)

	tick       int64
	now        float64 // simulation seconds since start or reset
	fillerSeq  uint64  // decorative node id sequence
	lastUpdate int64   // unix ms of the last mutation

	// Layout scratch, reused across ticks
	layoutEntities []ecs.Entity
	layoutNodes    []systems.LayoutNode
	layoutEdges    []systems.LayoutEdge
	layoutIndex    map[string]int
}

// New creates a graph engine and seeds the initial dormant ring.
func New(opts Options) *Graph {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	world := ecs.NewWorld()

	g := &Graph{
		world: world,
		cfg:   cfg,
		nodeMapper: ecs.NewMap4[
			components.Position,
			components.Motion,
			components.Soma,
			components.Energy,
		](world),
		nodeFilter: ecs.NewFilter4[
			components.Position,
			components.Motion,
			components.Soma,
			components.Energy,
		](world),
		connMapper:    ecs.NewMap1[components.Connection](world),
		connFilter:    ecs.NewFilter1[components.Connection](world),
		posMap:        ecs.NewMap1[components.Position](world),
		motionMap:     ecs.NewMap1[components.Motion](world),
		somaMap:       ecs.NewMap1[components.Soma](world),
		energyMap:     ecs.NewMap1[components.Energy](world),
		nodes:         make(map[string]ecs.Entity),
		edges:         make(map[string]ecs.Entity),
		tasks:         make(map[string]string),
		collector:     opts.Collector,
		output:        opts.Output,
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
		layoutIndex:   make(map[string]int),
	}

	g.grid = systems.NewSpatialGrid(cfg.Grid.CellSize)
	g.layout = systems.NewLayout(layoutParams(cfg))
	g.clusterer = systems.NewClusterer(clusterParams(cfg))
	if opts.TagLookup != nil {
		g.clusterer.SetTagLookup(opts.TagLookup)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	g.reseed(seed)
	g.genesis()
	return g
}

// Retune rebuilds the layout solver and clusterer from the current config,
// picking up edits made through the Config pointer since construction.
// Placement and wiring parameters are deliberately left alone: changing
// them mid-run would break seeded replay.
func (g *Graph) Retune() {
	g.layout = systems.NewLayout(layoutParams(g.cfg))
	clusterer := systems.NewClusterer(clusterParams(g.cfg))
	if g.clusterer != nil {
		clusterer.SetTagLookup(g.clusterer.TagLookup())
	}
	g.clusterer = clusterer
	g.recluster()
}

// reseed re-arms the RNG and the generator that consumes it.
func (g *Graph) reseed(seed int64) {
	g.seed = seed
	g.rng = rand.New(rand.NewSource(seed))
	g.generator = systems.NewGenerator(g.rng,
		genesisParams(g.cfg), placementParams(g.cfg), wiringParams(g.cfg))
}

// genesis seeds the starter ring on an empty graph: dormant nodes evenly
// spaced on a circle, each wired to its ring neighbor, so the initial graph
// is a connected closed cycle.
func (g *Graph) genesis() {
	if len(g.nodes) > 0 {
		return
	}
	ring := g.generator.SeedRing()
	if len(ring) == 0 {
		return
	}
	ids := make([]string, len(ring))
	for i, pos := range ring {
		ids[i] = g.fillerID()
		g.spawnNode(ids[i], "", pos, components.NodeDormant,
			g.cfg.Nodes.SeedSize, g.cfg.Nodes.FloorDormant)
	}
	if len(ids) > 1 {
		for i := range ids {
			g.addEdge(ids[i], ids[(i+1)%len(ids)])
		}
	}
	g.recluster()
	slog.Debug("genesis_ring", "nodes", len(ids), "seed", g.seed)
}

// fillerID allocates the next decorative node id.
func (g *Graph) fillerID() string {
	id := fmt.Sprintf("seed-%d", g.fillerSeq)
	g.fillerSeq++
	return id
}

// spawnNode creates a node entity under the given id and registers it in
// the id maps and the spatial index. taskID is empty for decorative filler
// nodes.
func (g *Graph) spawnNode(id, taskID string, at r3.Vec, state components.NodeState, size, energy float64) ecs.Entity {
	pos := components.Position{Vec: at}
	motion := components.Motion{}
	soma := components.Soma{ID: id, Task: taskID, State: state, Size: size}
	level := components.Energy{Level: energy}

	entity := g.nodeMapper.NewEntity(&pos, &motion, &soma, &level)
	g.nodes[id] = entity
	if taskID != "" {
		g.tasks[taskID] = id
	}
	g.grid.Insert(entity, at)
	return entity
}

// touch bumps the mutation timestamp, kept strictly increasing even when
// successive mutations land in the same millisecond.
func (g *Graph) touch() {
	now := time.Now().UnixMilli()
	if now <= g.lastUpdate {
		now = g.lastUpdate + 1
	}
	g.lastUpdate = now
}

// Reset discards all state and regenerates the starter ring. A zero seed
// reuses the current seed.
func (g *Graph) Reset(seed int64) {
	if seed == 0 {
		seed = g.seed
	}
	g.clear(seed)
	g.genesis()
	g.touch()
	slog.Info("graph_reset", "seed", seed)
}

// clear removes every entity and resets RNG, clocks, and bookkeeping.
func (g *Graph) clear(seed int64) {
	var doomed []ecs.Entity
	query := g.nodeFilter.Query()
	for query.Next() {
		doomed = append(doomed, query.Entity())
	}
	for _, entity := range doomed {
		g.nodeMapper.Remove(entity)
	}

	doomed = doomed[:0]
	equery := g.connFilter.Query()
	for equery.Next() {
		doomed = append(doomed, equery.Entity())
	}
	for _, entity := range doomed {
		g.connMapper.Remove(entity)
	}

	g.nodes = make(map[string]ecs.Entity)
	g.edges = make(map[string]ecs.Entity)
	g.tasks = make(map[string]string)
	g.grid = systems.NewSpatialGrid(g.cfg.Grid.CellSize)
	g.clusters = nil
	g.pulses = g.pulses[:0]
	g.pulseSeq = 0
	g.tick = 0
	g.now = 0
	g.fillerSeq = 0
	g.reseed(seed)
}

// Seed returns the seed driving all procedural randomness.
func (g *Graph) Seed() int64 {
	return g.seed
}

// Ticks returns the number of completed simulation ticks.
func (g *Graph) Ticks() int64 {
	return g.tick
}

// Now returns the accumulated simulation time in seconds.
func (g *Graph) Now() float64 {
	return g.now
}

// LastUpdateAt returns the unix-ms timestamp of the most recent mutation.
func (g *Graph) LastUpdateAt() int64 {
	return g.lastUpdate
}

// Neuron is a read-only snapshot of one node.
type Neuron struct {
	ID          string
	TaskID      string // empty for decorative filler nodes
	State       components.NodeState
	Position    r3.Vec
	Size        float64
	Energy      float64
	Peers       []string
	Cluster     string
	CompletedAt int64 // unix ms, zero until completed
}

// Edge is a read-only snapshot of one connection.
type Edge struct {
	ID       string
	Source   string
	Target   string
	State    components.EdgeState
	Strength float64
	Progress float64 // forming/fading transition, 0..1
	Pulse    float64 // pulse position along the edge, 0..1 while pulsing
}

func (g *Graph) neuronView(entity ecs.Entity) Neuron {
	pos := g.posMap.Get(entity)
	soma := g.somaMap.Get(entity)
	level := g.energyMap.Get(entity)
	return Neuron{
		ID:          soma.ID,
		TaskID:      soma.Task,
		State:       soma.State,
		Position:    pos.Vec,
		Size:        soma.Size,
		Energy:      level.Level,
		Peers:       append([]string(nil), soma.Peers...),
		Cluster:     soma.Cluster,
		CompletedAt: soma.CompletedAt,
	}
}

func (g *Graph) edgeView(entity ecs.Entity) Edge {
	conn := g.connMapper.Get(entity)
	return Edge{
		ID:       conn.ID,
		Source:   conn.Source,
		Target:   conn.Target,
		State:    conn.State,
		Strength: conn.Strength,
		Progress: conn.Progress,
		Pulse:    conn.Pulse,
	}
}

func genesisParams(cfg *config.Config) systems.GenesisParams {
	return systems.GenesisParams{
		RingNodes:  cfg.Genesis.RingNodes,
		RingRadius: cfg.Genesis.RingRadius,
		Jitter:     cfg.Genesis.Jitter,
	}
}

func placementParams(cfg *config.Config) systems.PlacementParams {
	return systems.PlacementParams{
		MinDistance:    cfg.Placement.MinDistance,
		SpawnRadius:    cfg.Placement.SpawnRadius,
		IdealSpacing:   cfg.Placement.IdealSpacing,
		ConnectRadius:  cfg.Wiring.ConnectRadius,
		Samples:        cfg.Placement.Samples,
		NeighborBonus:  cfg.Placement.NeighborBonus,
		NeighborMin:    cfg.Placement.NeighborMin,
		NeighborMax:    cfg.Placement.NeighborMax,
		SpacingPenalty: cfg.Placement.SpacingPenalty,
	}
}

func wiringParams(cfg *config.Config) systems.WiringParams {
	return systems.WiringParams{
		ConnectRadius:  cfg.Wiring.ConnectRadius,
		MinConnections: cfg.Wiring.MinConnections,
		MaxConnections: cfg.Wiring.MaxConnections,
		MaxDegree:      cfg.Wiring.MaxDegree,
	}
}

func layoutParams(cfg *config.Config) systems.LayoutParams {
	return systems.LayoutParams{
		Repulsion:  cfg.Layout.Repulsion,
		Attraction: cfg.Layout.Attraction,
		Centering:  cfg.Layout.Centering,
		Damping:    cfg.Layout.Damping,
		Epsilon:    cfg.Layout.Epsilon,
		MaxSpeed:   cfg.Layout.MaxSpeed,
	}
}

func clusterParams(cfg *config.Config) systems.ClusterParams {
	return systems.ClusterParams{
		Mode:          cfg.Clusters.Mode,
		Radius:        cfg.Clusters.Radius,
		MinSize:       cfg.Clusters.MinSize,
		MergeDistance: cfg.Clusters.MergeDistance,
	}
}
