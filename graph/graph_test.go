package graph

import (
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/synaptic/components"
	"github.com/pthm-cable/synaptic/config"
)

// quietConfig disables the layout pass so fixture positions stay put.
func quietConfig() *config.Config {
	cfg := config.Default()
	cfg.Layout.Enabled = false
	return cfg
}

// lineFixture is a minimal restored topology: t-a and t-b connected, t-c
// isolated and far away.
func lineFixture(seed int64) Persisted {
	return Persisted{
		Seed: seed,
		Neurons: map[string]PersistedNeuron{
			"t-a": {TaskID: "t-a", Position: PersistedPoint{X: 0, Y: 0, Z: 0}, Connections: []string{"t-b"}},
			"t-b": {TaskID: "t-b", Position: PersistedPoint{X: 3, Y: 0, Z: 0}, Connections: []string{"t-a"}},
			"t-c": {TaskID: "t-c", Position: PersistedPoint{X: 30, Y: 0, Z: 0}},
		},
	}
}

func restoreFixture(t *testing.T, p Persisted) *Graph {
	t.Helper()
	g := New(Options{Config: quietConfig(), Seed: 1})
	if err := g.Restore(p); err != nil {
		t.Fatalf("restore fixture: %v", err)
	}
	return g
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// verifySymmetry checks the adjacency invariant: every peer entry has a
// matching live edge, and every live edge is mirrored on both endpoints.
func verifySymmetry(t *testing.T, g *Graph) {
	t.Helper()
	edges := make(map[string]Edge)
	for _, e := range g.Edges() {
		edges[e.ID] = e
	}

	for _, n := range g.Neurons() {
		for _, peer := range n.Peers {
			e, ok := edges[components.EdgeID(n.ID, peer)]
			if !ok {
				t.Errorf("%s lists peer %s with no edge", n.ID, peer)
				continue
			}
			if e.State == components.EdgeFading {
				t.Errorf("%s adjacency points at fading edge %s", n.ID, e.ID)
			}
			other, ok := g.Neuron(peer)
			if !ok {
				t.Errorf("%s lists unknown peer %s", n.ID, peer)
				continue
			}
			if !containsString(other.Peers, n.ID) {
				t.Errorf("adjacency %s -> %s is one-sided", n.ID, peer)
			}
		}
	}

	for _, e := range edges {
		if e.State == components.EdgeFading {
			continue
		}
		src, okS := g.Neuron(e.Source)
		dst, okT := g.Neuron(e.Target)
		if !okS || !okT {
			t.Errorf("live edge %s references a missing endpoint", e.ID)
			continue
		}
		if !containsString(src.Peers, e.Target) || !containsString(dst.Peers, e.Source) {
			t.Errorf("edge %s not mirrored in adjacency", e.ID)
		}
	}
}

func TestGenesisRing(t *testing.T) {
	g := New(Options{Seed: 1})

	neurons := g.Neurons()
	if len(neurons) != 12 {
		t.Fatalf("genesis neurons = %d, want 12", len(neurons))
	}
	for _, n := range neurons {
		if n.State != components.NodeDormant {
			t.Errorf("%s state = %v, want dormant", n.ID, n.State)
		}
		if n.TaskID != "" {
			t.Errorf("%s carries task id %q, want none", n.ID, n.TaskID)
		}
		if !strings.HasPrefix(n.ID, "seed-") {
			t.Errorf("decorative node id = %q, want seed- prefix", n.ID)
		}
		if len(n.Peers) != 2 {
			t.Errorf("%s degree = %d, want 2", n.ID, len(n.Peers))
		}
		if math.Abs(n.Energy-0.15) > 1e-9 {
			t.Errorf("%s energy = %g, want dormant floor 0.15", n.ID, n.Energy)
		}
	}

	edges := g.Edges()
	if len(edges) != 12 {
		t.Fatalf("genesis edges = %d, want 12", len(edges))
	}
	byID := make(map[string]Edge, len(edges))
	for _, e := range edges {
		if e.State != components.EdgeForming {
			t.Errorf("edge %s state = %v, want forming", e.ID, e.State)
		}
		if math.Abs(e.Strength-0.25) > 1e-9 {
			t.Errorf("edge %s strength = %g, want 0.25", e.ID, e.Strength)
		}
		byID[e.ID] = e
	}
	// Closed cycle in spawn order.
	for i := 0; i < 12; i++ {
		a := fmt.Sprintf("seed-%d", i)
		b := fmt.Sprintf("seed-%d", (i+1)%12)
		if _, ok := byID[components.EdgeID(a, b)]; !ok {
			t.Errorf("missing ring edge %s <-> %s", a, b)
		}
	}
	verifySymmetry(t, g)
}

func TestDefaultSeed(t *testing.T) {
	g := New(Options{})
	if g.Seed() != DefaultSeed {
		t.Fatalf("seed = %d, want %d", g.Seed(), DefaultSeed)
	}
}

func runScenario(seed int64) *Graph {
	g := New(Options{Seed: seed})
	for _, task := range []string{"t-1", "t-2", "t-3", "t-4", "t-5"} {
		g.AddTaskNeuron(task)
		g.Tick(0.1)
	}
	g.CompleteNeuron("t-2")
	g.Tick(0.25)
	g.Tick(0.25)
	g.DeleteNeuron("t-4")
	for i := 0; i < 8; i++ {
		g.Tick(0.25)
	}
	g.PulseNeuron("t-1", 0.8, true)
	g.Tick(0.25)
	return g
}

// scrubTimes zeroes the wall-clock completion stamps, which are the only
// nondeterministic part of a neuron snapshot.
func scrubTimes(neurons []Neuron) []Neuron {
	for i := range neurons {
		neurons[i].CompletedAt = 0
	}
	return neurons
}

func TestDeterministicReplay(t *testing.T) {
	a := runScenario(7)
	b := runScenario(7)

	if !reflect.DeepEqual(scrubTimes(a.Neurons()), scrubTimes(b.Neurons())) {
		t.Error("same seed and ops produced different neurons")
	}
	if !reflect.DeepEqual(a.Edges(), b.Edges()) {
		t.Error("same seed and ops produced different edges")
	}
	if !reflect.DeepEqual(a.Clusters(), b.Clusters()) {
		t.Error("same seed and ops produced different clusters")
	}

	c := runScenario(8)
	if reflect.DeepEqual(scrubTimes(a.Neurons()), scrubTimes(c.Neurons())) {
		t.Error("different seeds produced identical graphs")
	}
}

func TestAddTaskNeuron(t *testing.T) {
	g := New(Options{Seed: 3})

	n := g.AddTaskNeuron("task-1")
	if n.ID != "task-1" {
		t.Fatalf("node id = %q, want task id", n.ID)
	}
	if n.TaskID != "task-1" {
		t.Errorf("task id = %q, want task-1", n.TaskID)
	}
	if n.State != components.NodeActive {
		t.Errorf("state = %v, want active", n.State)
	}
	if math.Abs(n.Energy-0.8) > 1e-9 {
		t.Errorf("energy = %g, want initial 0.8", n.Energy)
	}
	if math.Abs(n.Size-1.0) > 1e-9 {
		t.Errorf("size = %g, want task size 1.0", n.Size)
	}
	if len(n.Peers) > g.cfg.Wiring.MaxConnections {
		t.Errorf("wired %d peers, cap is %d", len(n.Peers), g.cfg.Wiring.MaxConnections)
	}

	got, ok := g.NeuronByTask("task-1")
	if !ok || got.ID != "task-1" {
		t.Errorf("NeuronByTask = %+v, %v", got, ok)
	}
	verifySymmetry(t, g)
}

func TestAddTaskNeuronDuplicate(t *testing.T) {
	g := New(Options{Seed: 3})

	first := g.AddTaskNeuron("task-1")
	second := g.AddTaskNeuron("task-1")
	if second.ID != first.ID {
		t.Errorf("duplicate add returned %q, want existing %q", second.ID, first.ID)
	}
	if got := g.Metrics().TaskLinked; got != 1 {
		t.Errorf("task-linked count = %d, want 1", got)
	}
	if got := len(g.Neurons()); got != 13 {
		t.Errorf("neuron count = %d, want 13", got)
	}
}

func TestAddTaskNeuronRejects(t *testing.T) {
	g := New(Options{Seed: 3})

	if n := g.AddTaskNeuron(""); n.ID != "" {
		t.Errorf("empty task id produced node %q", n.ID)
	}
	// Task ids share the node id namespace with decorative fillers.
	if n := g.AddTaskNeuron("seed-0"); n.ID != "" {
		t.Errorf("filler id collision produced node %q", n.ID)
	}
	if got := len(g.Neurons()); got != 12 {
		t.Errorf("neuron count = %d, want untouched 12", got)
	}
}

func TestAddTaskNeuronWiring(t *testing.T) {
	g := New(Options{Seed: 11})

	wired := 0
	for i := 0; i < 8; i++ {
		n := g.AddTaskNeuron(fmt.Sprintf("task-%d", i))
		if len(n.Peers) > 0 {
			wired++
		}
		g.Tick(0.1)
	}
	if wired == 0 {
		t.Error("no task neuron got wired into the graph")
	}
	for _, n := range g.Neurons() {
		if len(n.Peers) > g.cfg.Wiring.MaxDegree {
			t.Errorf("%s degree = %d, exceeds cap %d", n.ID, len(n.Peers), g.cfg.Wiring.MaxDegree)
		}
	}
	verifySymmetry(t, g)
}

func TestPulsePropagation(t *testing.T) {
	g := New(Options{Seed: 2})

	// Forming edges don't conduct: the pulse lands locally only.
	g.PulseNeuron("seed-0", 1.0, true)
	if got := g.Metrics().PendingPulses; got != 0 {
		t.Fatalf("pending pulses through forming edges = %d, want 0", got)
	}
	n, _ := g.Neuron("seed-0")
	if math.Abs(n.Energy-0.45) > 1e-9 {
		t.Errorf("pulsed energy = %g, want 0.45", n.Energy)
	}

	// One second matures the whole ring to active edges.
	g.Tick(1.0)

	g.PulseNeuron("seed-0", 1.0, true)
	if got := g.Metrics().PendingPulses; got != 2 {
		t.Fatalf("pending pulses = %d, want one per ring neighbor", got)
	}
	for _, peer := range []string{"seed-1", "seed-11"} {
		found := false
		for _, e := range g.Edges() {
			if e.ID == components.EdgeID("seed-0", peer) {
				found = true
				if e.State != components.EdgePulsing {
					t.Errorf("edge to %s state = %v, want pulsing", peer, e.State)
				}
			}
		}
		if !found {
			t.Fatalf("ring edge to %s missing", peer)
		}
	}

	// The delay elapses inside this tick; neighbors receive the damped pulse
	// and then drift one step back toward the floor.
	g.Tick(0.2)
	for _, peer := range []string{"seed-1", "seed-11"} {
		n, _ := g.Neuron(peer)
		if math.Abs(n.Energy-0.25) > 1e-9 {
			t.Errorf("%s energy = %g, want 0.25", peer, n.Energy)
		}
	}
	if n2, _ := g.Neuron("seed-2"); math.Abs(n2.Energy-0.15) > 1e-9 {
		t.Errorf("pulse traveled two hops: seed-2 energy = %g", n2.Energy)
	}
	if got := g.Metrics().PendingPulses; got != 0 {
		t.Errorf("pending pulses after delivery = %d, want 0", got)
	}

	// The pulsing highlight plays out and the edge settles back to active.
	g.Tick(0.3)
	for _, e := range g.Edges() {
		if e.State == components.EdgePulsing {
			t.Errorf("edge %s still pulsing after highlight window", e.ID)
		}
	}
}

func TestPulseUnknownAndNegative(t *testing.T) {
	g := New(Options{Seed: 2})

	g.PulseNeuron("missing", 1.0, true) // no panic, no state change
	if got := g.Metrics().PendingPulses; got != 0 {
		t.Errorf("pending pulses = %d, want 0", got)
	}

	g.PulseNeuron("seed-0", -3.0, false)
	n, _ := g.Neuron("seed-0")
	if math.Abs(n.Energy-0.15) > 1e-9 {
		t.Errorf("negative intensity moved energy to %g", n.Energy)
	}
}

func TestCompleteNeuron(t *testing.T) {
	g := New(Options{Seed: 5})
	g.AddTaskNeuron("t-1")

	g.CompleteNeuron("t-1")
	n, _ := g.NeuronByTask("t-1")
	if n.State != components.NodeCompleted {
		t.Fatalf("state = %v, want completed", n.State)
	}
	if n.CompletedAt == 0 {
		t.Error("completion timestamp not set")
	}
	if math.Abs(n.Energy-1.0) > 1e-9 {
		t.Errorf("celebration energy = %g, want clamped 1.0", n.Energy)
	}

	// Completing again is a pure no-op.
	first := n.CompletedAt
	g.CompleteNeuron("t-1")
	again, _ := g.NeuronByTask("t-1")
	if again.CompletedAt != first {
		t.Error("repeat completion moved the timestamp")
	}
	if math.Abs(again.Energy-1.0) > 1e-9 {
		t.Errorf("repeat completion re-pulsed energy to %g", again.Energy)
	}

	// Completion is terminal.
	g.ActivateNeuron("t-1")
	g.DemoteNeuron("t-1")
	got, _ := g.NeuronByTask("t-1")
	if got.State != components.NodeCompleted {
		t.Errorf("state after activate/demote = %v, want completed", got.State)
	}
}

func TestCompleteDormantNeuron(t *testing.T) {
	g := New(Options{Seed: 5})

	g.CompleteNeuron("seed-0")
	n, _ := g.Neuron("seed-0")
	if n.State != components.NodeDormant {
		t.Errorf("state = %v, want still dormant", n.State)
	}
	if n.CompletedAt != 0 {
		t.Error("dormant completion set a timestamp")
	}
	g.CompleteNeuron("missing") // no panic
}

func TestDemoteActivate(t *testing.T) {
	g := New(Options{Seed: 5})
	g.AddTaskNeuron("t-1")

	g.DemoteNeuron("t-1")
	if n, _ := g.NeuronByTask("t-1"); n.State != components.NodeDormant {
		t.Fatalf("state = %v, want dormant", n.State)
	}
	g.DemoteNeuron("t-1") // repeat is a no-op
	if n, _ := g.NeuronByTask("t-1"); n.State != components.NodeDormant {
		t.Errorf("repeat demote changed state to %v", n.State)
	}

	g.ActivateNeuron("t-1")
	if n, _ := g.NeuronByTask("t-1"); n.State != components.NodeActive {
		t.Fatalf("state = %v, want active", n.State)
	}
	g.ActivateNeuron("t-1")
	if n, _ := g.NeuronByTask("t-1"); n.State != components.NodeActive {
		t.Errorf("repeat activate changed state to %v", n.State)
	}

	g.DemoteNeuron("missing")
	g.ActivateNeuron("missing")
}

func TestEnergyDrift(t *testing.T) {
	g := restoreFixture(t, lineFixture(21))

	// Restored nodes sit at the active floor; a pulse lifts them off it.
	g.PulseNeuron("t-c", 1.0, false)
	n, _ := g.Neuron("t-c")
	if math.Abs(n.Energy-0.8) > 1e-9 {
		t.Fatalf("pulsed energy = %g, want 0.8", n.Energy)
	}

	// decay_rate 0.25 at dt 0.4 steps energy by 0.1 per tick.
	for i, want := range []float64{0.7, 0.6, 0.5, 0.5} {
		g.Tick(0.4)
		n, _ := g.Neuron("t-c")
		if math.Abs(n.Energy-want) > 1e-9 {
			t.Fatalf("after tick %d energy = %g, want %g", i+1, n.Energy, want)
		}
	}

	// Completion re-pulses, then the energy drifts to the lower completed floor.
	g.CompleteNeuron("t-c")
	n, _ = g.Neuron("t-c")
	if math.Abs(n.Energy-0.8) > 1e-9 {
		t.Fatalf("completion energy = %g, want 0.8", n.Energy)
	}
	for i, want := range []float64{0.7, 0.6, 0.5, 0.4, 0.3, 0.3} {
		g.Tick(0.4)
		n, _ := g.Neuron("t-c")
		if math.Abs(n.Energy-want) > 1e-9 {
			t.Fatalf("after tick %d energy = %g, want %g", i+1, n.Energy, want)
		}
	}
}

func TestDeleteNeuron(t *testing.T) {
	g := New(Options{Seed: 6})

	g.DeleteNeuron("seed-0")
	if _, ok := g.Neuron("seed-0"); ok {
		t.Fatal("deleted neuron still queryable")
	}
	if got := len(g.Neurons()); got != 11 {
		t.Fatalf("neuron count = %d, want 11", got)
	}

	edges := g.Edges()
	if len(edges) != 12 {
		t.Fatalf("edge count = %d, want 12 with two fading", len(edges))
	}
	fading := 0
	for _, e := range edges {
		if e.State == components.EdgeFading {
			fading++
			if e.Source != "seed-0" && e.Target != "seed-0" {
				t.Errorf("unrelated edge %s is fading", e.ID)
			}
		}
	}
	if fading != 2 {
		t.Fatalf("fading edges = %d, want 2", fading)
	}
	if got := g.Metrics().Edges; got != 10 {
		t.Errorf("live edge count = %d, want 10", got)
	}

	n1, _ := g.Neuron("seed-1")
	if containsString(n1.Peers, "seed-0") {
		t.Error("neighbor adjacency not scrubbed")
	}
	if len(n1.Peers) != 1 {
		t.Errorf("seed-1 degree = %d, want 1", len(n1.Peers))
	}

	// fade_time 0.6 at dt 0.25: removal lands on the third tick.
	g.Tick(0.25)
	g.Tick(0.25)
	if got := len(g.Edges()); got != 12 {
		t.Fatalf("fading edges removed early, count = %d", got)
	}
	g.Tick(0.25)
	if got := len(g.Edges()); got != 10 {
		t.Fatalf("edge count after fade = %d, want 10", got)
	}
	verifySymmetry(t, g)

	g.DeleteNeuron("missing") // no panic
	if got := len(g.Neurons()); got != 11 {
		t.Errorf("unknown delete changed neuron count to %d", got)
	}
}

func TestDeleteCancelsPendingPulses(t *testing.T) {
	g := restoreFixture(t, lineFixture(31))

	g.PulseNeuron("t-a", 1.0, true)
	if got := g.Metrics().PendingPulses; got != 1 {
		t.Fatalf("pending pulses = %d, want 1", got)
	}

	g.DeleteNeuron("t-b")
	if got := g.Metrics().PendingPulses; got != 0 {
		t.Fatalf("pending pulses after delete = %d, want 0", got)
	}

	g.Tick(0.2) // past the delivery time; nothing should fire
	if _, ok := g.Neuron("t-b"); ok {
		t.Error("deleted neuron came back")
	}
}

// TestAdjacencySymmetryUnderChurn drives a seeded random mix of adds,
// deletes, and completions and checks the adjacency mirror after every
// operation.
func TestAdjacencySymmetryUnderChurn(t *testing.T) {
	g := New(Options{Seed: 11})
	rng := rand.New(rand.NewSource(99))

	var tasks []string
	next := 0
	for i := 0; i < 120; i++ {
		roll := rng.Float64()
		switch {
		case roll < 0.5 || len(tasks) == 0:
			id := fmt.Sprintf("t-%d", next)
			next++
			g.AddTaskNeuron(id)
			tasks = append(tasks, id)
		case roll < 0.75:
			pick := rng.Intn(len(tasks))
			g.DeleteNeuron(tasks[pick])
			tasks = append(tasks[:pick], tasks[pick+1:]...)
		default:
			g.CompleteNeuron(tasks[rng.Intn(len(tasks))])
		}
		g.Tick(0.1)
		verifySymmetry(t, g)
		if t.Failed() {
			t.Fatalf("adjacency broken after %d operations", i+1)
		}
	}
}

func TestFadingEdgeRevival(t *testing.T) {
	g := restoreFixture(t, lineFixture(71))

	g.DeleteNeuron("t-a")
	e := g.Edges()[0]
	if e.State != components.EdgeFading {
		t.Fatalf("edge state = %v, want fading", e.State)
	}

	// Re-adding the same id while its old edge is still fading revives the
	// edge instead of duplicating it.
	g.spawnNode("t-a", "t-a", r3.Vec{}, components.NodeActive, 1.0, 0.5)
	if !g.addEdgeAs("t-a", "t-b", components.EdgeForming, 0.25) {
		t.Fatal("revival refused")
	}
	edges := g.Edges()
	if len(edges) != 1 {
		t.Fatalf("edge count = %d, want 1", len(edges))
	}
	if edges[0].State != components.EdgeForming {
		t.Errorf("revived state = %v, want forming", edges[0].State)
	}
	if math.Abs(edges[0].Strength-0.25) > 1e-9 {
		t.Errorf("revived strength = %g, want 0.25", edges[0].Strength)
	}
	verifySymmetry(t, g)

	// Live edges are never re-added.
	if g.addEdgeAs("t-a", "t-b", components.EdgeForming, 0.25) {
		t.Error("duplicate edge accepted")
	}
	if g.addEdgeAs("t-a", "t-a", components.EdgeForming, 0.25) {
		t.Error("self edge accepted")
	}
	if g.addEdgeAs("t-a", "ghost", components.EdgeForming, 0.25) {
		t.Error("edge to unknown node accepted")
	}

	// The revived edge matures cleanly from its reset progress.
	g.Tick(1.0)
	if got := g.Edges()[0].State; got != components.EdgeActive {
		t.Errorf("revived edge state after maturing = %v, want active", got)
	}
}

func TestEdgeStrengthClimbs(t *testing.T) {
	g := restoreFixture(t, lineFixture(81))

	g.Tick(1.0)
	e := g.Edges()[0]
	if math.Abs(e.Strength-0.65) > 1e-9 {
		t.Fatalf("strength = %g, want 0.65", e.Strength)
	}
	for i := 0; i < 10; i++ {
		g.Tick(1.0)
	}
	e = g.Edges()[0]
	if math.Abs(e.Strength-1.0) > 1e-9 {
		t.Errorf("strength = %g, want clamped 1.0", e.Strength)
	}
}

func TestReset(t *testing.T) {
	g := New(Options{Seed: 5})
	g.AddTaskNeuron("t-1")
	g.Tick(0.5)
	g.CompleteNeuron("t-1")

	g.Reset(0) // zero keeps the current seed
	if g.Seed() != 5 {
		t.Fatalf("seed after reset = %d, want 5", g.Seed())
	}
	if g.Ticks() != 0 || g.Now() != 0 {
		t.Errorf("clocks after reset = %d/%g, want 0/0", g.Ticks(), g.Now())
	}
	if _, ok := g.NeuronByTask("t-1"); ok {
		t.Error("task survived reset")
	}

	fresh := New(Options{Seed: 5})
	if !reflect.DeepEqual(g.Neurons(), fresh.Neurons()) {
		t.Error("reset ring differs from a fresh graph with the same seed")
	}
	if !reflect.DeepEqual(g.Edges(), fresh.Edges()) {
		t.Error("reset edges differ from a fresh graph with the same seed")
	}

	g.Reset(9)
	if g.Seed() != 9 {
		t.Fatalf("seed after reset = %d, want 9", g.Seed())
	}
	if reflect.DeepEqual(g.Neurons(), fresh.Neurons()) {
		t.Error("different seed produced an identical ring")
	}
}

func TestLastUpdateAt(t *testing.T) {
	g := New(Options{Seed: 3})
	if g.LastUpdateAt() != 0 {
		t.Fatalf("fresh graph lastUpdate = %d, want 0 before any mutation", g.LastUpdateAt())
	}

	g.AddTaskNeuron("t-1")
	first := g.LastUpdateAt()
	if first == 0 {
		t.Fatal("mutation left no timestamp")
	}

	g.Tick(0.1)
	if g.LastUpdateAt() != first {
		t.Error("tick moved the mutation timestamp")
	}

	g.PulseNeuron("t-1", 0.5, false)
	second := g.LastUpdateAt()
	if second <= first {
		t.Errorf("timestamps not strictly increasing: %d then %d", first, second)
	}

	g.PulseNeuron("missing", 1.0, true)
	g.DemoteNeuron("missing")
	if g.LastUpdateAt() != second {
		t.Error("refused mutation bumped the timestamp")
	}

	g.Reset(0)
	if g.LastUpdateAt() <= second {
		t.Error("reset did not stamp the timestamp")
	}
}

func TestTickIgnoresNonPositiveDt(t *testing.T) {
	g := New(Options{Seed: 1})

	g.Tick(0)
	g.Tick(-0.5)
	if g.Ticks() != 0 {
		t.Errorf("tick count = %d, want 0", g.Ticks())
	}
	if g.Now() != 0 {
		t.Errorf("sim time = %g, want 0", g.Now())
	}
}

func TestTickLayoutKeepsIndexConsistent(t *testing.T) {
	g := New(Options{Seed: 13})

	before := g.Neurons()
	for i := 0; i < 20; i++ {
		g.Tick(1.0 / 60.0)
	}
	after := g.Neurons()
	if len(after) != len(before) {
		t.Fatalf("neuron count changed from %d to %d", len(before), len(after))
	}

	moved := false
	for i := range after {
		p := after[i].Position
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) ||
			math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) || math.IsInf(p.Z, 0) {
			t.Fatalf("%s position blew up: %+v", after[i].ID, p)
		}
		if r3.Norm(r3.Sub(p, before[i].Position)) > 1e-12 {
			moved = true
		}
	}
	if !moved {
		t.Error("layout never moved any node")
	}

	// The spatial index must track moved positions.
	if got := len(g.NeuronsNear(r3.Vec{}, 1000)); got != len(after) {
		t.Errorf("spatial query found %d of %d nodes", got, len(after))
	}
}

func TestNeuronsNear(t *testing.T) {
	g := restoreFixture(t, lineFixture(41))

	ids := func(neurons []Neuron) []string {
		out := make([]string, len(neurons))
		for i, n := range neurons {
			out[i] = n.ID
		}
		return out
	}

	if got := ids(g.NeuronsNear(r3.Vec{}, 5)); !reflect.DeepEqual(got, []string{"t-a", "t-b"}) {
		t.Errorf("near origin r=5: %v, want [t-a t-b]", got)
	}
	if got := ids(g.NeuronsNear(r3.Vec{}, 1)); !reflect.DeepEqual(got, []string{"t-a"}) {
		t.Errorf("near origin r=1: %v, want [t-a]", got)
	}
	if got := ids(g.NeuronsNear(r3.Vec{X: 30}, 1)); !reflect.DeepEqual(got, []string{"t-c"}) {
		t.Errorf("near t-c r=1: %v, want [t-c]", got)
	}
}

func TestMetrics(t *testing.T) {
	g := restoreFixture(t, lineFixture(51))

	m := g.Metrics()
	if m.Neurons != 3 || m.TaskLinked != 3 {
		t.Errorf("counts = %d/%d, want 3/3", m.Neurons, m.TaskLinked)
	}
	if m.Active != 3 || m.Completed != 0 || m.Dormant != 0 {
		t.Errorf("states = %d/%d/%d, want 3/0/0", m.Active, m.Completed, m.Dormant)
	}
	if m.Edges != 1 {
		t.Errorf("edges = %d, want 1", m.Edges)
	}
	if m.Clusters != 0 {
		t.Errorf("clusters = %d, want 0 below min size", m.Clusters)
	}
	if m.PendingPulses != 0 {
		t.Errorf("pending pulses = %d, want 0", m.PendingPulses)
	}
	if math.Abs(m.MeanEnergy-0.5) > 1e-9 {
		t.Errorf("mean energy = %g, want 0.5", m.MeanEnergy)
	}
	if math.Abs(m.MeanStrength-0.5) > 1e-9 {
		t.Errorf("mean strength = %g, want restored 0.5", m.MeanStrength)
	}
	if math.Abs(m.MeanDegree-2.0/3.0) > 1e-9 {
		t.Errorf("mean degree = %g, want 2/3", m.MeanDegree)
	}
	if m.Tick != 0 {
		t.Errorf("tick = %d, want 0", m.Tick)
	}
}

func TestClusterAssignment(t *testing.T) {
	p := Persisted{
		Seed: 61,
		Neurons: map[string]PersistedNeuron{
			"t-a": {TaskID: "t-a", Position: PersistedPoint{X: 0, Y: 0, Z: 0}},
			"t-b": {TaskID: "t-b", Position: PersistedPoint{X: 2}},
			"t-c": {TaskID: "t-c", Position: PersistedPoint{Y: 2}},
			"t-d": {TaskID: "t-d", Position: PersistedPoint{X: 40}},
		},
	}
	g := restoreFixture(t, p)

	clusters := g.Clusters()
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(clusters))
	}
	c := clusters[0]
	if c.ID != "c-0" {
		t.Errorf("cluster id = %q, want c-0", c.ID)
	}
	if !reflect.DeepEqual(c.Members, []string{"t-a", "t-b", "t-c"}) {
		t.Errorf("members = %v, want [t-a t-b t-c]", c.Members)
	}
	want := r3.Vec{X: 2.0 / 3.0, Y: 2.0 / 3.0, Z: 0}
	if r3.Norm(r3.Sub(c.Centroid, want)) > 1e-9 {
		t.Errorf("centroid = %+v, want %+v", c.Centroid, want)
	}

	for _, id := range c.Members {
		n, _ := g.Neuron(id)
		if n.Cluster != c.ID {
			t.Errorf("%s cluster = %q, want %q", id, n.Cluster, c.ID)
		}
	}
	d, _ := g.Neuron("t-d")
	if d.Cluster != "" {
		t.Errorf("straggler cluster = %q, want none", d.Cluster)
	}
}
