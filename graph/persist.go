package graph

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/synaptic/components"
)

// Persisted is the compact wire snapshot of the task-linked subgraph.
// Decorative filler nodes are never persisted; they regrow from the seed.
type Persisted struct {
	Seed       int64                      `json:"seed"`
	Neurons    map[string]PersistedNeuron `json:"neurons"`
	LastSyncAt int64                      `json:"last_sync_at,omitempty"` // unix ms
}

// PersistedNeuron is one task-linked node in the wire snapshot, keyed in
// Persisted.Neurons by its node id.
type PersistedNeuron struct {
	TaskID      string         `json:"task_id"`
	Position    PersistedPoint `json:"position"`
	ClusterID   string         `json:"cluster_id,omitempty"`
	Connections []string       `json:"connections,omitempty"` // peer node ids at save time
}

// PersistedPoint is a 3D position in the wire snapshot.
type PersistedPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DecodeError reports a malformed persistence payload.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decoding graph snapshot: %s: %v", e.Reason, e.Err)
	}
	return "decoding graph snapshot: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrMissingSeed is returned when a payload carries no seed. A graph cannot
// be restored without one; callers usually fall back to fresh generation.
var ErrMissingSeed = &DecodeError{Reason: "missing seed"}

// Decode parses a JSON payload into a Persisted snapshot.
func Decode(data []byte) (Persisted, error) {
	var p Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return Persisted{}, &DecodeError{Reason: "invalid json", Err: err}
	}
	if p.Seed == 0 {
		return Persisted{}, ErrMissingSeed
	}
	return p, nil
}

// Snapshot captures the task-linked subgraph in the wire format. It can be
// called between any two ticks and observes a consistent state.
func (g *Graph) Snapshot() Persisted {
	p := Persisted{
		Seed:       g.seed,
		Neurons:    make(map[string]PersistedNeuron, len(g.tasks)),
		LastSyncAt: time.Now().UnixMilli(),
	}

	for taskID, nodeID := range g.tasks {
		entity := g.nodes[nodeID]
		pos := g.posMap.Get(entity)
		soma := g.somaMap.Get(entity)

		conns := append([]string(nil), soma.Peers...)
		sort.Strings(conns)

		p.Neurons[nodeID] = PersistedNeuron{
			TaskID:      taskID,
			Position:    PersistedPoint{X: pos.X, Y: pos.Y, Z: pos.Z},
			ClusterID:   soma.Cluster,
			Connections: conns,
		}
	}
	return p
}

// Restore replaces all graph state with a persisted snapshot: every
// persisted node comes back Active at its saved position under its saved
// node id, adjacency among restored nodes is rebuilt exactly once per
// canonical edge id, and clusters are recomputed. Connection refs to nodes
// that weren't persisted (decorative fillers, deleted nodes) are dropped.
func (g *Graph) Restore(p Persisted) error {
	if p.Seed == 0 {
		return ErrMissingSeed
	}
	g.clear(p.Seed)

	// Sorted ids keep entity creation order, and with it replay, stable.
	ids := make([]string, 0, len(p.Neurons))
	for id := range p.Neurons {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	spawned := ids[:0]
	for _, id := range ids {
		pn := p.Neurons[id]
		switch {
		case id == "":
			slog.Warn("restore_skipping_unnamed_neuron", "task", pn.TaskID)
			continue
		case pn.TaskID == "":
			slog.Warn("restore_skipping_taskless_neuron", "node", id)
			continue
		}
		if _, dup := g.tasks[pn.TaskID]; dup {
			slog.Warn("restore_duplicate_task", "node", id, "task", pn.TaskID)
			continue
		}
		at := r3.Vec{X: pn.Position.X, Y: pn.Position.Y, Z: pn.Position.Z}
		g.spawnNode(id, pn.TaskID, at, components.NodeActive,
			g.cfg.Nodes.TaskSize, g.cfg.Nodes.FloorActive)
		spawned = append(spawned, id)
	}

	restored := 0
	skipped := 0
	for _, id := range spawned {
		for _, ref := range p.Neurons[id].Connections {
			if _, ok := g.nodes[ref]; !ok {
				skipped++
				continue
			}
			if g.addEdgeAs(id, ref, components.EdgeActive, g.cfg.Edges.RestoredStrength) {
				restored++
			}
		}
	}
	g.recluster()
	g.touch()

	slog.Info("graph_restored",
		"seed", p.Seed,
		"neurons", len(g.nodes),
		"edges", restored,
		"skipped_refs", skipped,
	)
	return nil
}

// Save writes the snapshot to disk as indented JSON.
func (g *Graph) Save(path string) error {
	data, err := json.MarshalIndent(g.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal graph snapshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write graph snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot file and restores it.
func (g *Graph) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read graph snapshot: %w", err)
	}
	p, err := Decode(data)
	if err != nil {
		return err
	}
	return g.Restore(p)
}
