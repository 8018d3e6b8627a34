// Package components defines ECS components for the neural graph simulation.
package components

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// NodeState describes where a neuron is in its lifecycle.
type NodeState uint8

const (
	NodeActive    NodeState = iota // Linked to live work, fully lit
	NodeCompleted                  // Finished, terminal
	NodeDormant                    // Decorative or demoted, dimmed
)

// String returns the lowercase state name used in logs and metrics.
func (s NodeState) String() string {
	switch s {
	case NodeActive:
		return "active"
	case NodeCompleted:
		return "completed"
	case NodeDormant:
		return "dormant"
	}
	return "unknown"
}

// EdgeState describes where a connection is in its lifecycle.
type EdgeState uint8

const (
	EdgeForming EdgeState = iota // Growing in after creation
	EdgeActive                   // Settled, strength climbing
	EdgePulsing                  // Transient signal highlight
	EdgeFading                   // Being removed
)

// String returns the lowercase state name used in logs and metrics.
func (s EdgeState) String() string {
	switch s {
	case EdgeForming:
		return "forming"
	case EdgeActive:
		return "active"
	case EdgePulsing:
		return "pulsing"
	case EdgeFading:
		return "fading"
	}
	return "unknown"
}

// Position is an entity's world position.
type Position struct {
	r3.Vec
}

// Motion carries the velocity state integrated by the layout solver.
type Motion struct {
	Vel r3.Vec
}

// Soma is the core identity and graph state of a neuron.
type Soma struct {
	ID          string
	Task        string // external task id; empty for decorative nodes
	State       NodeState
	Size        float64
	Peers       []string // adjacent node ids
	Cluster     string   // current cluster id, empty if unclustered
	CompletedAt int64    // unix ms, zero until first completion
}

// Degree returns the number of adjacent neurons.
func (s *Soma) Degree() int {
	return len(s.Peers)
}

// HasPeer reports whether id is already adjacent.
func (s *Soma) HasPeer(id string) bool {
	for _, p := range s.Peers {
		if p == id {
			return true
		}
	}
	return false
}

// AddPeer records an adjacency. Returns false if id was already present.
func (s *Soma) AddPeer(id string) bool {
	if s.HasPeer(id) {
		return false
	}
	s.Peers = append(s.Peers, id)
	return true
}

// RemovePeer drops an adjacency by swapping with the last entry.
// Returns false if id was not present.
func (s *Soma) RemovePeer(id string) bool {
	for i, p := range s.Peers {
		if p == id {
			last := len(s.Peers) - 1
			s.Peers[i] = s.Peers[last]
			s.Peers = s.Peers[:last]
			return true
		}
	}
	return false
}

// Energy is the activation level a renderer reads as glow. Pulses raise it,
// decay pulls it back toward the state-dependent floor.
type Energy struct {
	Level float64 // 0..1
}

// Connection holds a single edge between two neurons.
// Source and Target are stored in canonical (lexical) order.
type Connection struct {
	ID       string
	Source   string
	Target   string
	Strength float64   // 0..1, climbs while EdgeActive
	State    EdgeState
	Progress float64   // Forming/Fading completion, 0..1
	Pulse    float64   // Pulsing highlight phase, 0..1
}

// Other returns the endpoint opposite to id, or "" if id is not an endpoint.
func (c *Connection) Other(id string) string {
	switch id {
	case c.Source:
		return c.Target
	case c.Target:
		return c.Source
	}
	return ""
}

// Touches reports whether id is one of the edge's endpoints.
func (c *Connection) Touches(id string) bool {
	return c.Source == id || c.Target == id
}

// EdgeID derives the canonical edge id for a node pair. The endpoints are
// sorted lexically first, so EdgeID(a, b) == EdgeID(b, a) for all pairs.
func EdgeID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
