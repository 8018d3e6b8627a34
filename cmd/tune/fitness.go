package main

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/pthm-cable/synaptic/config"
	"github.com/pthm-cable/synaptic/graph"
	"github.com/pthm-cable/synaptic/telemetry"
)

// FitnessEvaluator runs headless graph simulations and scores the resulting
// layout. Fitness is negative quality, so lower is better.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int
	seeds      []int64
	baseConfig *config.Config

	// Best run tracking
	mu           sync.Mutex
	bestFitness  float64
	bestSnapshot *graph.Persisted
	lastQuality  float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// BestSnapshot returns the final graph snapshot from the best evaluation.
func (fe *FitnessEvaluator) BestSnapshot() *graph.Persisted {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestSnapshot
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// runResult holds the measurements from a single simulation run.
type runResult struct {
	windowStats []telemetry.WindowStats
	spacing     spacingSummary
	settle      float64 // mean node displacement per second over the final second

	// Targets from the run's config, for scoring
	idealSpacing float64
	minDistance  float64
	spawnRadius  float64

	snapshot graph.Persisted
}

// spacingSummary captures the geometry of the final node cloud.
type spacingSummary struct {
	meanNearest float64 // mean nearest-neighbor distance
	violations  float64 // fraction of nodes with a neighbor inside min distance
	rmsRadius   float64 // RMS distance from the centroid
	nodes       int
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness  float64
	quality  float64
	snapshot graph.Persisted
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	// Run all seeds in parallel
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			result := fe.runSimulation(x, s)
			quality := computeQuality(result)
			results[idx] = seedResult{
				fitness:  -quality,
				quality:  quality,
				snapshot: result.snapshot,
			}
		}(i, seed)
	}
	wg.Wait()

	// Aggregate results
	var totalFitness, totalQuality float64
	bestSeedFitness := math.Inf(1)
	var bestSeedSnapshot graph.Persisted

	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
		if r.fitness < bestSeedFitness {
			bestSeedFitness = r.fitness
			bestSeedSnapshot = r.snapshot
		}
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	// Update best tracking
	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
		snapshot := bestSeedSnapshot
		fe.bestSnapshot = &snapshot
	}
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single headless run: grow a task population over
// the first half, churn it over the second, and measure the layout at the
// end.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) *runResult {
	// Fresh config copy with the candidate parameters applied
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	result := &runResult{
		idealSpacing: cfg.Placement.IdealSpacing,
		minDistance:  cfg.Placement.MinDistance,
		spawnRadius:  cfg.Placement.SpawnRadius,
	}

	g := graph.New(graph.Options{
		Config:    cfg,
		Seed:      seed,
		Collector: telemetry.NewCollector(cfg.Telemetry.StatsWindow),
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, stats)
		},
	})

	const dt = 1.0 / 60.0
	script := newWorkload(seed)

	// Main run, holding back the final second for the settle measurement
	settleTicks := 60
	if fe.maxTicks <= settleTicks {
		settleTicks = 0
	}
	for tick := 0; tick < fe.maxTicks-settleTicks; tick++ {
		script.step(g, tick)
		g.Tick(dt)
	}

	// Final second: no more operations, just the layout settling
	before := nodePositions(g)
	for tick := 0; tick < settleTicks; tick++ {
		g.Tick(dt)
	}
	result.settle = meanDisplacement(before, g)
	result.spacing = measureSpacing(g, cfg.Placement.MinDistance)
	result.snapshot = g.Snapshot()
	return result
}

// copyConfig copies the base config. All config sections are value types,
// so a struct copy is a deep copy.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Layout.Enabled = true
	return &cfg
}

// workload drives a deterministic task script: adds dominate early so the
// graph grows, then completions, deletions, and pulses mix in.
type workload struct {
	rng   *rand.Rand
	tasks []string
	seq   int
}

func newWorkload(seed int64) *workload {
	return &workload{rng: rand.New(rand.NewSource(seed))}
}

// step issues at most one operation, roughly every half sim-second.
func (w *workload) step(g *graph.Graph, tick int) {
	if tick%30 != 0 {
		return
	}

	roll := w.rng.Float64()
	switch {
	case roll < 0.55 || len(w.tasks) < 4:
		w.seq++
		id := fmt.Sprintf("t-%d", w.seq)
		g.AddTaskNeuron(id)
		w.tasks = append(w.tasks, id)
	case roll < 0.75:
		g.CompleteNeuron(w.tasks[w.rng.Intn(len(w.tasks))])
	case roll < 0.85:
		i := w.rng.Intn(len(w.tasks))
		g.DeleteNeuron(w.tasks[i])
		w.tasks[i] = w.tasks[len(w.tasks)-1]
		w.tasks = w.tasks[:len(w.tasks)-1]
	default:
		g.PulseNeuron(w.tasks[w.rng.Intn(len(w.tasks))], 1.0, true)
	}
}

// nodePositions snapshots every node position keyed by id.
func nodePositions(g *graph.Graph) map[string][3]float64 {
	out := make(map[string][3]float64)
	for _, n := range g.Neurons() {
		out[n.ID] = [3]float64{n.Position.X, n.Position.Y, n.Position.Z}
	}
	return out
}

// meanDisplacement measures how far nodes moved since the snapshot, per
// second of sim time.
func meanDisplacement(before map[string][3]float64, g *graph.Graph) float64 {
	var sum float64
	var count int
	for _, n := range g.Neurons() {
		p, ok := before[n.ID]
		if !ok {
			continue
		}
		dx := n.Position.X - p[0]
		dy := n.Position.Y - p[1]
		dz := n.Position.Z - p[2]
		sum += math.Sqrt(dx*dx + dy*dy + dz*dz)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// measureSpacing computes nearest-neighbor and centroid statistics over the
// final node cloud.
func measureSpacing(g *graph.Graph, minDist float64) spacingSummary {
	neurons := g.Neurons()
	s := spacingSummary{nodes: len(neurons)}
	if len(neurons) < 2 {
		return s
	}

	var cx, cy, cz float64
	for _, n := range neurons {
		cx += n.Position.X
		cy += n.Position.Y
		cz += n.Position.Z
	}
	inv := 1.0 / float64(len(neurons))
	cx, cy, cz = cx*inv, cy*inv, cz*inv

	var nearestSum, radiusSq float64
	var tooClose int
	for i, a := range neurons {
		nearest := math.Inf(1)
		for j, b := range neurons {
			if i == j {
				continue
			}
			dx := a.Position.X - b.Position.X
			dy := a.Position.Y - b.Position.Y
			dz := a.Position.Z - b.Position.Z
			d := math.Sqrt(dx*dx + dy*dy + dz*dz)
			if d < nearest {
				nearest = d
			}
		}
		nearestSum += nearest
		if nearest < minDist {
			tooClose++
		}

		dx := a.Position.X - cx
		dy := a.Position.Y - cy
		dz := a.Position.Z - cz
		radiusSq += dx*dx + dy*dy + dz*dz
	}

	s.meanNearest = nearestSum * inv
	s.violations = float64(tooClose) * inv
	s.rmsRadius = math.Sqrt(radiusSq * inv)
	return s
}

// Quality component weights.
const (
	qualityWeightSpacing   = 0.30
	qualityWeightSeparated = 0.25
	qualityWeightSettle    = 0.20
	qualityWeightStability = 0.15
	qualityWeightCompact   = 0.10

	qualityWarmupWindows = 1 // skip first N windows (warmup)
)

// computeQuality computes layout quality in [0, 1] from a finished run.
func computeQuality(r *runResult) float64 {
	if r.spacing.nodes < 2 {
		return 0
	}

	// 1. Spacing: mean nearest-neighbor distance near the ideal
	spacingErr := (r.spacing.meanNearest - r.idealSpacing) / (0.5 * r.idealSpacing)
	spacingScore := math.Exp(-spacingErr * spacingErr)

	// 2. Separation: no pair inside the hard minimum
	separatedScore := 1.0 - r.spacing.violations

	// 3. Settle: the layout should be nearly still by the end
	settleScore := math.Exp(-math.Pow(r.settle/0.5, 2))

	// 4. Stability: degree distribution steady across windows, no anomalies
	stabilityScore := 0.0
	if len(r.windowStats) > qualityWarmupWindows {
		valid := r.windowStats[qualityWarmupWindows:]
		degrees := make([]float64, 0, len(valid))
		anomalies := 0
		for _, w := range valid {
			degrees = append(degrees, w.DegreeMean)
			anomalies += w.Anomalies
		}
		if len(degrees) >= 2 {
			c := cv(degrees)
			stabilityScore = math.Exp(-4 * c * c)
		}
		if anomalies > 0 {
			stabilityScore = 0
		}
	}

	// 5. Compactness: cloud radius near the spawn shell
	targetRadius := 1.15 * r.spawnRadius
	compactErr := (r.spacing.rmsRadius - targetRadius) / targetRadius
	compactScore := math.Exp(-compactErr * compactErr)

	quality := qualityWeightSpacing*spacingScore +
		qualityWeightSeparated*separatedScore +
		qualityWeightSettle*settleScore +
		qualityWeightStability*stabilityScore +
		qualityWeightCompact*compactScore

	return clamp01(quality)
}

// cv computes the coefficient of variation (std/mean) for a slice of values.
func cv(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n
	if mean == 0 {
		return 0
	}
	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	return math.Sqrt(sqDiff/n) / mean
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
