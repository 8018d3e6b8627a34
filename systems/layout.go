package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// LayoutParams tunes the force-directed solver.
type LayoutParams struct {
	Repulsion  float64 // pairwise push, k / d^2
	Attraction float64 // edge spring pull, d * k
	Centering  float64 // pull toward origin, -pos * k
	Damping    float64 // velocity retained after integration, < 1
	Epsilon    float64 // added to squared distance in repulsion
	MaxSpeed   float64 // velocity magnitude clamp, 0 disables
}

// LayoutNode is one node's mutable physics state for a solver pass.
// The caller collects these from its store, runs Step, and writes them back.
type LayoutNode struct {
	Pos r3.Vec
	Vel r3.Vec
}

// LayoutEdge references two pass nodes by index.
type LayoutEdge struct {
	A, B int
}

// Layout runs force-directed passes over a node set: all-pairs repulsion,
// spring attraction along edges, and a weak centering pull, integrated with
// semi-implicit Euler. The solver is pure state-in/state-out; it knows
// nothing about entities or adjacency bookkeeping.
type Layout struct {
	params LayoutParams
	forces []r3.Vec // scratch, reused between passes
}

// NewLayout creates a solver with the given parameters.
func NewLayout(params LayoutParams) *Layout {
	if params.Epsilon <= 0 {
		params.Epsilon = 0.01
	}
	return &Layout{params: params}
}

// Params returns the current solver parameters.
func (l *Layout) Params() LayoutParams {
	return l.params
}

// SetParams replaces the solver parameters.
func (l *Layout) SetParams(params LayoutParams) {
	if params.Epsilon <= 0 {
		params.Epsilon = 0.01
	}
	l.params = params
}

// Step advances the solver by iterations passes of duration dt each.
// Edges must reference valid node indices; the caller resolves and drops
// anything dangling before the pass.
func (l *Layout) Step(nodes []LayoutNode, edges []LayoutEdge, dt float64, iterations int) {
	n := len(nodes)
	if n == 0 || dt <= 0 || iterations <= 0 {
		return
	}
	if cap(l.forces) < n {
		l.forces = make([]r3.Vec, n)
	}
	forces := l.forces[:n]

	for it := 0; it < iterations; it++ {
		for i := range forces {
			forces[i] = r3.Vec{}
		}

		// Repulsion: k / (d^2 + eps) along the separating line. The epsilon
		// keeps the magnitude finite for near-coincident nodes; a pair at the
		// exact same point contributes zero direction rather than NaN.
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				delta := r3.Sub(nodes[i].Pos, nodes[j].Pos)
				d2 := r3.Norm2(delta) + l.params.Epsilon
				mag := l.params.Repulsion / d2
				dir := r3.Scale(1/math.Sqrt(d2), delta)
				push := r3.Scale(mag, dir)
				forces[i] = r3.Add(forces[i], push)
				forces[j] = r3.Sub(forces[j], push)
			}
		}

		// Attraction: spring of magnitude d * k along each edge, which is
		// just k * delta.
		for _, e := range edges {
			delta := r3.Sub(nodes[e.B].Pos, nodes[e.A].Pos)
			pull := r3.Scale(l.params.Attraction, delta)
			forces[e.A] = r3.Add(forces[e.A], pull)
			forces[e.B] = r3.Sub(forces[e.B], pull)
		}

		// Centering: -pos * k keeps the structure from drifting away.
		for i := 0; i < n; i++ {
			forces[i] = r3.Add(forces[i], r3.Scale(-l.params.Centering, nodes[i].Pos))
		}

		// Semi-implicit Euler: velocity first, then position, then damping.
		for i := 0; i < n; i++ {
			vel := r3.Add(nodes[i].Vel, r3.Scale(dt, forces[i]))
			if l.params.MaxSpeed > 0 {
				if speed := r3.Norm(vel); speed > l.params.MaxSpeed {
					vel = r3.Scale(l.params.MaxSpeed/speed, vel)
				}
			}
			nodes[i].Pos = r3.Add(nodes[i].Pos, r3.Scale(dt, vel))
			nodes[i].Vel = r3.Scale(l.params.Damping, vel)
		}
	}
}
