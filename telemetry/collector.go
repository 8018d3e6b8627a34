package telemetry

// Sample holds point-in-time graph values the engine supplies at flush time.
type Sample struct {
	Neurons       int
	TaskLinked    int
	Active        int
	Completed     int
	Dormant       int
	Edges         int
	Clusters      int
	PendingPulses int

	Energies  []float64
	Strengths []float64
	Degrees   []float64
}

// Collector accumulates events within sim-time windows and produces
// WindowStats. It is driven by the engine's tick: Advance reports when a
// window has elapsed, Flush closes it.
type Collector struct {
	windowSec float64
	elapsed   float64

	// Event counters for the current window
	adds        int
	completions int
	deletions   int
	pulses      int
	edgesFormed int
	edgesFaded  int
	anomalies   int
}

// NewCollector creates a stats collector.
// windowSec: how long each stats window lasts in simulation seconds.
func NewCollector(windowSec float64) *Collector {
	if windowSec <= 0 {
		windowSec = 5
	}
	return &Collector{windowSec: windowSec}
}

// RecordAdd records a node creation.
func (c *Collector) RecordAdd() {
	c.adds++
}

// RecordCompletion records a task completion.
func (c *Collector) RecordCompletion() {
	c.completions++
}

// RecordDeletion records a node removal.
func (c *Collector) RecordDeletion() {
	c.deletions++
}

// RecordPulse records one applied energy pulse, direct or propagated.
func (c *Collector) RecordPulse() {
	c.pulses++
}

// RecordEdgeFormed records a new connection.
func (c *Collector) RecordEdgeFormed() {
	c.edgesFormed++
}

// RecordEdgeFaded records a connection that finished fading out.
func (c *Collector) RecordEdgeFaded() {
	c.edgesFaded++
}

// RecordAnomaly records a recovered inconsistency, such as an edge whose
// endpoint went missing mid-tick.
func (c *Collector) RecordAnomaly() {
	c.anomalies++
}

// Advance accumulates sim time and reports whether the current window has
// elapsed. The caller is expected to Flush when it returns true.
func (c *Collector) Advance(dt float64) bool {
	c.elapsed += dt
	return c.elapsed >= c.windowSec
}

// WindowSec returns the configured window length in simulation seconds.
func (c *Collector) WindowSec() float64 {
	return c.windowSec
}

// Flush produces a WindowStats from the window's counters and the supplied
// sample, then resets for the next window. The leftover beyond the window
// boundary carries over so the cadence stays aligned.
func (c *Collector) Flush(tick int64, simTime float64, sample Sample) WindowStats {
	energyMean, energyP10, energyP50, energyP90 := distribution(sample.Energies)
	strengthMean, _, _, _ := distribution(sample.Strengths)
	degreeMean, _, _, _ := distribution(sample.Degrees)

	stats := WindowStats{
		Tick:    tick,
		SimTime: simTime,

		Neurons:       sample.Neurons,
		TaskLinked:    sample.TaskLinked,
		Active:        sample.Active,
		Completed:     sample.Completed,
		Dormant:       sample.Dormant,
		Edges:         sample.Edges,
		Clusters:      sample.Clusters,
		PendingPulses: sample.PendingPulses,

		Adds:        c.adds,
		Completions: c.completions,
		Deletions:   c.deletions,
		Pulses:      c.pulses,
		EdgesFormed: c.edgesFormed,
		EdgesFaded:  c.edgesFaded,
		Anomalies:   c.anomalies,

		EnergyMean:   energyMean,
		EnergyP10:    energyP10,
		EnergyP50:    energyP50,
		EnergyP90:    energyP90,
		StrengthMean: strengthMean,
		DegreeMean:   degreeMean,
	}

	c.elapsed -= c.windowSec
	if c.elapsed < 0 || c.elapsed >= c.windowSec {
		c.elapsed = 0
	}
	c.adds = 0
	c.completions = 0
	c.deletions = 0
	c.pulses = 0
	c.edgesFormed = 0
	c.edgesFaded = 0
	c.anomalies = 0

	return stats
}
