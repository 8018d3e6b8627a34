package graph

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/synaptic/components"
	"github.com/pthm-cable/synaptic/systems"
)

// AddTaskNeuron creates a task-linked node, places it near the graph's
// natural frontier, and wires it to nearby nodes. Adding a task that already
// has a node returns the existing node unchanged.
func (g *Graph) AddTaskNeuron(taskID string) Neuron {
	if taskID == "" {
		slog.Warn("add_task_neuron_empty_task")
		return Neuron{}
	}
	if nodeID, ok := g.tasks[taskID]; ok {
		slog.Warn("duplicate_task_neuron", "task", taskID, "node", nodeID)
		return g.neuronView(g.nodes[nodeID])
	}
	if _, taken := g.nodes[taskID]; taken {
		// Task ids double as node ids; a clash with a filler id is a
		// caller error, not something to silently rename around.
		slog.Warn("task_id_collides_with_node_id", "task", taskID)
		return Neuron{}
	}

	at := g.generator.OptimalPosition(g.allPositions(), g.grid)
	entity := g.spawnNode(taskID, taskID, at, components.NodeActive,
		g.cfg.Nodes.TaskSize, g.cfg.Nodes.InitialEnergy)

	peers := g.generator.PickPeers(at, entity, g.grid, g.somaMap)
	for _, peer := range peers {
		g.addEdge(taskID, g.somaMap.Get(peer).ID)
	}
	g.recluster()
	g.touch()

	if g.collector != nil {
		g.collector.RecordAdd()
	}
	slog.Debug("neuron_added", "id", taskID, "peers", len(peers))
	return g.neuronView(entity)
}

// CompleteNeuron marks an active node completed and fires a celebratory
// propagating pulse. Completing an already-completed node is a no-op.
func (g *Graph) CompleteNeuron(id string) {
	entity, ok := g.nodes[id]
	if !ok {
		slog.Warn("complete_unknown_neuron", "id", id)
		return
	}
	soma := g.somaMap.Get(entity)
	switch soma.State {
	case components.NodeCompleted:
		slog.Debug("complete_already_completed", "id", id)
		return
	case components.NodeDormant:
		slog.Warn("complete_dormant_neuron", "id", id)
		return
	}

	soma.State = components.NodeCompleted
	soma.CompletedAt = time.Now().UnixMilli()
	g.touch()
	if g.collector != nil {
		g.collector.RecordCompletion()
	}
	slog.Debug("neuron_completed", "id", id)
	g.PulseNeuron(id, 1.0, true)
}

// DeleteNeuron removes a node: its edges start fading, adjacency is scrubbed
// on both sides, pending pulses aimed at it are canceled, and clusters are
// rebuilt. Unknown ids are a no-op.
func (g *Graph) DeleteNeuron(id string) {
	entity, ok := g.nodes[id]
	if !ok {
		slog.Warn("delete_unknown_neuron", "id", id)
		return
	}
	soma := g.somaMap.Get(entity)

	peers := append([]string(nil), soma.Peers...)
	for _, peerID := range peers {
		if edgeEntity, ok := g.edges[components.EdgeID(id, peerID)]; ok {
			conn := g.connMapper.Get(edgeEntity)
			if conn.State != components.EdgeFading {
				conn.State = components.EdgeFading
				conn.Progress = 0
			}
		}
		if peerEntity, ok := g.nodes[peerID]; ok {
			g.somaMap.Get(peerEntity).RemovePeer(id)
		}
	}
	soma.Peers = nil

	canceled := g.cancelPulses(id)
	g.grid.Remove(entity)
	delete(g.nodes, id)
	if soma.Task != "" {
		delete(g.tasks, soma.Task)
	}
	g.nodeMapper.Remove(entity)
	g.recluster()
	g.touch()

	if g.collector != nil {
		g.collector.RecordDeletion()
	}
	slog.Debug("neuron_deleted",
		"id", id, "fading_edges", len(peers), "canceled_pulses", canceled)
}

// PulseNeuron injects energy into a node. With propagate set, the pulse also
// travels one hop to each conducting neighbor after the configured delay, at
// damped intensity. Unknown ids are a no-op.
func (g *Graph) PulseNeuron(id string, intensity float64, propagate bool) {
	entity, ok := g.nodes[id]
	if !ok {
		slog.Warn("pulse_unknown_neuron", "id", id)
		return
	}
	if intensity < 0 {
		intensity = 0
	}
	g.applyPulse(entity, intensity)
	g.touch()
	if !propagate {
		return
	}

	soma := g.somaMap.Get(entity)
	for _, peerID := range soma.Peers {
		edgeEntity, ok := g.edges[components.EdgeID(id, peerID)]
		if !ok {
			// Adjacency without a matching edge is an inconsistency;
			// skip the hop rather than fail the pulse.
			if g.collector != nil {
				g.collector.RecordAnomaly()
			}
			continue
		}
		conn := g.connMapper.Get(edgeEntity)
		switch conn.State {
		case components.EdgeActive:
			conn.State = components.EdgePulsing
			conn.Pulse = 0
		case components.EdgePulsing:
			conn.Pulse = 0
		default:
			// Forming and fading edges don't conduct.
			continue
		}
		g.schedulePulse(peerID, intensity*g.cfg.Pulse.Damping, g.cfg.Pulse.Delay)
	}
}

// DemoteNeuron moves an active node back to dormant, e.g. when its task is
// archived. Completion is terminal; completed nodes are never demoted.
func (g *Graph) DemoteNeuron(id string) {
	entity, ok := g.nodes[id]
	if !ok {
		slog.Warn("demote_unknown_neuron", "id", id)
		return
	}
	soma := g.somaMap.Get(entity)
	switch soma.State {
	case components.NodeActive:
		soma.State = components.NodeDormant
		g.touch()
		slog.Debug("neuron_demoted", "id", id)
	case components.NodeDormant:
		slog.Debug("demote_already_dormant", "id", id)
	default:
		slog.Warn("demote_completed_neuron", "id", id)
	}
}

// ActivateNeuron wakes a dormant node. Celebrating a completed node again is
// a pulse, not a state change.
func (g *Graph) ActivateNeuron(id string) {
	entity, ok := g.nodes[id]
	if !ok {
		slog.Warn("activate_unknown_neuron", "id", id)
		return
	}
	soma := g.somaMap.Get(entity)
	switch soma.State {
	case components.NodeDormant:
		soma.State = components.NodeActive
		g.touch()
		slog.Debug("neuron_activated", "id", id)
	case components.NodeActive:
		slog.Debug("activate_already_active", "id", id)
	default:
		slog.Warn("activate_completed_neuron", "id", id)
	}
}

// applyPulse adds pulse energy to a node, clamped to the energy ceiling.
func (g *Graph) applyPulse(entity ecs.Entity, intensity float64) {
	level := g.energyMap.Get(entity)
	level.Level = math.Min(1, level.Level+intensity*g.cfg.Pulse.Gain)
	if g.collector != nil {
		g.collector.RecordPulse()
	}
}

// addEdge creates a forming edge between two nodes, if one doesn't exist.
func (g *Graph) addEdge(a, b string) bool {
	return g.addEdgeAs(a, b, components.EdgeForming, g.cfg.Edges.InitialStrength)
}

// addEdgeAs creates an edge in a given state, linking adjacency on both
// endpoints. Re-adding a fading edge revives it instead of duplicating it.
func (g *Graph) addEdgeAs(a, b string, state components.EdgeState, strength float64) bool {
	if a == b {
		return false
	}
	entityA, ok := g.nodes[a]
	if !ok {
		return false
	}
	entityB, ok := g.nodes[b]
	if !ok {
		return false
	}

	id := components.EdgeID(a, b)
	if existing, ok := g.edges[id]; ok {
		conn := g.connMapper.Get(existing)
		if conn.State != components.EdgeFading {
			return false
		}
		conn.State = state
		conn.Strength = strength
		conn.Progress = 0
		conn.Pulse = 0
	} else {
		lo, hi := a, b
		if lo > hi {
			lo, hi = hi, lo
		}
		conn := components.Connection{
			ID:       id,
			Source:   lo,
			Target:   hi,
			State:    state,
			Strength: strength,
		}
		g.edges[id] = g.connMapper.NewEntity(&conn)
	}

	g.somaMap.Get(entityA).AddPeer(b)
	g.somaMap.Get(entityB).AddPeer(a)
	if g.collector != nil {
		g.collector.RecordEdgeFormed()
	}
	return true
}

// recluster rebuilds cluster assignments from scratch. Clusters are always
// regenerated whole, never patched in place.
func (g *Graph) recluster() {
	members := make([]systems.ClusterMember, 0, len(g.nodes))
	query := g.nodeFilter.Query()
	for query.Next() {
		pos, _, soma, _ := query.Get()
		members = append(members, systems.ClusterMember{
			ID:   soma.ID,
			Pos:  pos.Vec,
			Task: soma.Task,
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	clusters := g.clusterer.Identify(members)
	clusters = g.clusterer.Merge(clusters, g.cfg.Clusters.MergeDistance)

	assigned := make(map[string]string, len(members))
	for _, cluster := range clusters {
		for _, memberID := range cluster.Members {
			assigned[memberID] = cluster.ID
		}
	}
	wquery := g.nodeFilter.Query()
	for wquery.Next() {
		_, _, soma, _ := wquery.Get()
		soma.Cluster = assigned[soma.ID]
	}
	g.clusters = clusters
}
