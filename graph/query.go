package graph

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/synaptic/systems"
)

// Neuron returns a snapshot of one node by id.
func (g *Graph) Neuron(id string) (Neuron, bool) {
	entity, ok := g.nodes[id]
	if !ok {
		return Neuron{}, false
	}
	return g.neuronView(entity), true
}

// NeuronByTask returns the node linked to a task id.
func (g *Graph) NeuronByTask(taskID string) (Neuron, bool) {
	nodeID, ok := g.tasks[taskID]
	if !ok {
		return Neuron{}, false
	}
	return g.Neuron(nodeID)
}

// Neurons returns a snapshot of every node, sorted by id.
func (g *Graph) Neurons() []Neuron {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Neuron, len(ids))
	for i, id := range ids {
		out[i] = g.neuronView(g.nodes[id])
	}
	return out
}

// NeuronsNear returns every node within radius of a point, sorted by id.
func (g *Graph) NeuronsNear(at r3.Vec, radius float64) []Neuron {
	entities := g.grid.Query(at, radius)
	out := make([]Neuron, 0, len(entities))
	for _, entity := range entities {
		out = append(out, g.neuronView(entity))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns a snapshot of every connection, fading included, sorted by id.
func (g *Graph) Edges() []Edge {
	ids := make([]string, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Edge, len(ids))
	for i, id := range ids {
		out[i] = g.edgeView(g.edges[id])
	}
	return out
}

// Clusters returns a snapshot of the current cluster set.
func (g *Graph) Clusters() []systems.Cluster {
	out := make([]systems.Cluster, len(g.clusters))
	for i, cluster := range g.clusters {
		cluster.Members = append([]string(nil), cluster.Members...)
		out[i] = cluster
	}
	return out
}

// Metrics summarizes the graph for hosts and dashboards.
type Metrics struct {
	Neurons       int
	TaskLinked    int
	Active        int
	Completed     int
	Dormant       int
	Edges         int // live edges, fading excluded
	Clusters      int
	PendingPulses int
	MeanDegree    float64
	MeanEnergy    float64
	MeanStrength  float64
	Tick          int64
	SimTime       float64
}

// Metrics computes summary statistics over the whole graph.
func (g *Graph) Metrics() Metrics {
	s := g.sample()
	m := Metrics{
		Neurons:       s.Neurons,
		TaskLinked:    s.TaskLinked,
		Active:        s.Active,
		Completed:     s.Completed,
		Dormant:       s.Dormant,
		Edges:         s.Edges,
		Clusters:      s.Clusters,
		PendingPulses: s.PendingPulses,
		Tick:          g.tick,
		SimTime:       g.now,
	}
	if len(s.Energies) > 0 {
		m.MeanEnergy = stat.Mean(s.Energies, nil)
		m.MeanDegree = stat.Mean(s.Degrees, nil)
	}
	if len(s.Strengths) > 0 {
		m.MeanStrength = stat.Mean(s.Strengths, nil)
	}
	return m
}

// allPositions snapshots every node position for centroid computation.
func (g *Graph) allPositions() []r3.Vec {
	positions := make([]r3.Vec, 0, len(g.nodes))
	query := g.nodeFilter.Query()
	for query.Next() {
		pos, _, _, _ := query.Get()
		positions = append(positions, pos.Vec)
	}
	return positions
}
