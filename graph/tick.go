package graph

import (
	"log/slog"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/synaptic/components"
	"github.com/pthm-cable/synaptic/systems"
	"github.com/pthm-cable/synaptic/telemetry"
)

// Tick advances the simulation by dt seconds. The host calls this once per
// frame; all deferred work (propagated pulses, edge lifecycle, layout)
// happens here, never on a background goroutine.
func (g *Graph) Tick(dt float64) {
	if dt <= 0 {
		return
	}
	g.tick++
	g.now += dt

	// 1. Deliver due propagated pulses
	g.firePulses()

	// 2. Drift node energy toward its resting level
	g.driftEnergy(dt)

	// 3. Advance edge lifecycles and drop fully faded edges
	g.advanceEdges(dt)

	// 4. One force-directed layout pass
	if g.cfg.Layout.Enabled {
		g.stepLayout(dt)
	}

	// 5. Telemetry window
	g.flushStats(dt)
}

// driftEnergy moves each node's energy toward the resting level for its
// state at the configured rate.
func (g *Graph) driftEnergy(dt float64) {
	step := g.cfg.Nodes.DecayRate * dt
	query := g.nodeFilter.Query()
	for query.Next() {
		_, _, soma, level := query.Get()
		rest := g.restingEnergy(soma.State)
		switch {
		case level.Level > rest:
			level.Level = math.Max(rest, level.Level-step)
		case level.Level < rest:
			level.Level = math.Min(rest, level.Level+step)
		}
	}
}

// restingEnergy returns the level a node's energy drifts toward.
func (g *Graph) restingEnergy(state components.NodeState) float64 {
	switch state {
	case components.NodeActive:
		return g.cfg.Nodes.FloorActive
	case components.NodeCompleted:
		return g.cfg.Nodes.FloorCompleted
	default:
		return g.cfg.Nodes.FloorDormant
	}
}

// advanceEdges progresses every edge through its lifecycle: forming edges
// grow in, active edges strengthen, pulsing edges play out their highlight,
// fading edges burn down and are removed at the end.
func (g *Graph) advanceEdges(dt float64) {
	var faded []ecs.Entity

	query := g.connFilter.Query()
	for query.Next() {
		conn := query.Get()
		switch conn.State {
		case components.EdgeForming:
			conn.Progress += dt / g.cfg.Edges.FormingTime
			if conn.Progress >= 1 {
				conn.Progress = 1
				conn.State = components.EdgeActive
			}
		case components.EdgeActive:
			if conn.Strength < 1 {
				conn.Strength = math.Min(1, conn.Strength+g.cfg.Edges.StrengthRate*dt)
			}
		case components.EdgePulsing:
			conn.Pulse += dt / g.cfg.Edges.PulseTime
			if conn.Pulse >= 1 {
				conn.Pulse = 0
				conn.State = components.EdgeActive
			}
		case components.EdgeFading:
			conn.Progress += dt / g.cfg.Edges.FadeTime
			if conn.Progress >= 1 {
				faded = append(faded, query.Entity())
			}
		}
	}

	// Structural removal only after the query is fully consumed.
	for _, entity := range faded {
		g.removeEdgeEntity(entity)
	}
}

// removeEdgeEntity drops a fully faded edge. The delete path scrubs
// adjacency up front, so the unlink here is usually a no-op.
func (g *Graph) removeEdgeEntity(entity ecs.Entity) {
	conn := g.connMapper.Get(entity)
	if conn == nil {
		return
	}
	if nodeEntity, ok := g.nodes[conn.Source]; ok {
		g.somaMap.Get(nodeEntity).RemovePeer(conn.Target)
	}
	if nodeEntity, ok := g.nodes[conn.Target]; ok {
		g.somaMap.Get(nodeEntity).RemovePeer(conn.Source)
	}
	delete(g.edges, conn.ID)
	g.connMapper.Remove(entity)
	if g.collector != nil {
		g.collector.RecordEdgeFaded()
	}
}

// stepLayout runs one force-directed pass over all nodes and syncs the
// spatial index with the moved positions.
func (g *Graph) stepLayout(dt float64) {
	entities := g.layoutEntities[:0]
	nodes := g.layoutNodes[:0]
	for id := range g.layoutIndex {
		delete(g.layoutIndex, id)
	}

	query := g.nodeFilter.Query()
	for query.Next() {
		pos, motion, soma, _ := query.Get()
		g.layoutIndex[soma.ID] = len(nodes)
		nodes = append(nodes, systems.LayoutNode{Pos: pos.Vec, Vel: motion.Vel})
		entities = append(entities, query.Entity())
	}

	edges := g.layoutEdges[:0]
	equery := g.connFilter.Query()
	for equery.Next() {
		conn := equery.Get()
		if conn.State == components.EdgeFading {
			continue
		}
		ia, okA := g.layoutIndex[conn.Source]
		ib, okB := g.layoutIndex[conn.Target]
		if !okA || !okB {
			// Edge referencing a missing endpoint: skip it this tick.
			if g.collector != nil {
				g.collector.RecordAnomaly()
			}
			continue
		}
		edges = append(edges, systems.LayoutEdge{A: ia, B: ib})
	}

	g.layout.Step(nodes, edges, dt, 1)

	for i, entity := range entities {
		g.posMap.Get(entity).Vec = nodes[i].Pos
		g.motionMap.Get(entity).Vel = nodes[i].Vel
		g.grid.Insert(entity, nodes[i].Pos)
	}
	g.layoutEntities, g.layoutNodes, g.layoutEdges = entities, nodes, edges
}

// flushStats advances the stats window and flushes it when it elapses.
func (g *Graph) flushStats(dt float64) {
	if g.collector == nil || !g.collector.Advance(dt) {
		return
	}
	stats := g.collector.Flush(g.tick, g.now, g.sample())
	if g.logStats {
		stats.LogStats()
	}
	if err := g.output.WriteStats(stats); err != nil {
		slog.Error("failed to write stats", "error", err)
	}
	if g.statsCallback != nil {
		g.statsCallback(stats)
	}
}

// sample gathers the point-in-time values the collector needs at flush.
func (g *Graph) sample() telemetry.Sample {
	s := telemetry.Sample{
		Clusters:      len(g.clusters),
		PendingPulses: len(g.pulses),
	}

	query := g.nodeFilter.Query()
	for query.Next() {
		_, _, soma, level := query.Get()
		s.Neurons++
		if soma.Task != "" {
			s.TaskLinked++
		}
		switch soma.State {
		case components.NodeActive:
			s.Active++
		case components.NodeCompleted:
			s.Completed++
		default:
			s.Dormant++
		}
		s.Energies = append(s.Energies, level.Level)
		s.Degrees = append(s.Degrees, float64(soma.Degree()))
	}

	equery := g.connFilter.Query()
	for equery.Next() {
		conn := equery.Get()
		if conn.State == components.EdgeFading {
			continue
		}
		s.Edges++
		s.Strengths = append(s.Strengths, conn.Strength)
	}
	return s
}
