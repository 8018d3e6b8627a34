package graph

import "container/heap"

// pendingPulse is a propagated pulse waiting for its arrival time.
type pendingPulse struct {
	fireAt    float64 // simulation seconds
	seq       uint64  // insertion order, tie-break for equal arrival times
	target    string  // node id
	intensity float64
}

// pulseQueue implements heap.Interface ordered by arrival time.
type pulseQueue []*pendingPulse

func (q pulseQueue) Len() int { return len(q) }
func (q pulseQueue) Less(i, j int) bool {
	if q[i].fireAt != q[j].fireAt {
		return q[i].fireAt < q[j].fireAt
	}
	return q[i].seq < q[j].seq
}
func (q pulseQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *pulseQueue) Push(x any) {
	*q = append(*q, x.(*pendingPulse))
}

func (q *pulseQueue) Pop() any {
	old := *q
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	*q = old[0 : n-1]
	return p
}

// schedulePulse queues a pulse to arrive at target after delay sim-seconds.
func (g *Graph) schedulePulse(target string, intensity, delay float64) {
	p := &pendingPulse{
		fireAt:    g.now + delay,
		seq:       g.pulseSeq,
		target:    target,
		intensity: intensity,
	}
	g.pulseSeq++
	heap.Push(&g.pulses, p)
}

// cancelPulses drops every pending pulse aimed at target and returns how
// many were dropped. Deleting a node must invalidate its in-flight pulses.
func (g *Graph) cancelPulses(target string) int {
	removed := 0
	kept := g.pulses[:0]
	for _, p := range g.pulses {
		if p.target == target {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	if removed == 0 {
		return 0
	}
	g.pulses = kept
	heap.Init(&g.pulses)
	return removed
}

// firePulses delivers every pulse whose arrival time has passed.
func (g *Graph) firePulses() {
	for len(g.pulses) > 0 && g.pulses[0].fireAt <= g.now {
		p := heap.Pop(&g.pulses).(*pendingPulse)
		entity, ok := g.nodes[p.target]
		if !ok {
			// Deletion cancels pending pulses, so an unknown target here
			// is an inconsistency; skip it and keep the tick going.
			if g.collector != nil {
				g.collector.RecordAnomaly()
			}
			continue
		}
		g.applyPulse(entity, p.intensity)
	}
}
