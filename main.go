package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/synaptic/components"
	"github.com/pthm-cable/synaptic/config"
	"github.com/pthm-cable/synaptic/graph"
	"github.com/pthm-cable/synaptic/telemetry"
	"github.com/pthm-cable/synaptic/viewer"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	snapshotPath := flag.String("snapshot", "", "Graph snapshot file for restore on start and save on exit")
	outputDir := flag.String("output-dir", "", "Output directory for CSV stats and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	churn := flag.Bool("churn", false, "Drive a seeded synthetic task workload")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	output, err := telemetry.NewOutput(*outputDir)
	if err != nil {
		slog.Error("failed to create output dir", "error", err)
		os.Exit(1)
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		slog.Warn("failed to write config snapshot", "error", err)
	}

	g := graph.New(graph.Options{
		Config:    cfg,
		Seed:      rngSeed,
		Collector: telemetry.NewCollector(cfg.Telemetry.StatsWindow),
		Output:    output,
		LogStats:  *logStats,
	})

	// Resume from an earlier snapshot when one exists; the snapshot's seed
	// wins over the -seed flag.
	if *snapshotPath != "" {
		if _, statErr := os.Stat(*snapshotPath); statErr == nil {
			if err := g.Load(*snapshotPath); err != nil {
				slog.Warn("snapshot restore failed", "path", *snapshotPath, "error", err)
			}
		}
	}

	if *headless {
		runHeadless(g, cfg, rngSeed, *maxTicks, *churn, *snapshotPath)
		return
	}
	runViewer(g, cfg, rngSeed, *snapshotPath, *maxTicks, *churn)
}

// runHeadless drives the simulation without graphics at a fixed timestep.
func runHeadless(g *graph.Graph, cfg *config.Config, seed int64, maxTicks int, churn bool, snapshotPath string) {
	const dt = 1.0 / 60.0
	const auditInterval = 600 // ticks between invariant audits

	slog.Info("starting headless run",
		"seed", seed,
		"max_ticks", maxTicks,
		"churn", churn,
	)

	driver := newChurnDriver(seed)
	for {
		if churn {
			driver.step(g)
		}
		g.Tick(dt)

		if g.Ticks()%auditInterval == 0 {
			auditGraph(g, cfg.Placement.MinDistance)
		}
		if maxTicks > 0 && int(g.Ticks()) >= maxTicks {
			slog.Info("max ticks reached", "tick", g.Ticks())
			break
		}
	}

	if snapshotPath != "" {
		if err := g.Save(snapshotPath); err != nil {
			slog.Error("snapshot save failed", "path", snapshotPath, "error", err)
			return
		}
		slog.Info("snapshot saved", "path", snapshotPath)
	}
}

// auditGraph checks the structural invariants that should hold between any
// two ticks: every peer entry is backed by a live mirrored edge, every live
// edge has both endpoints, and no two nodes have collapsed onto each other.
func auditGraph(g *graph.Graph, minDistance float64) {
	edges := make(map[string]graph.Edge)
	for _, e := range g.Edges() {
		edges[e.ID] = e
	}
	neurons := g.Neurons()
	byID := make(map[string]graph.Neuron, len(neurons))
	for _, n := range neurons {
		byID[n.ID] = n
	}

	broken := 0
	for _, n := range neurons {
		for _, peer := range n.Peers {
			e, ok := edges[components.EdgeID(n.ID, peer)]
			if !ok || e.State == components.EdgeFading {
				broken++
				continue
			}
			other, ok := byID[peer]
			if !ok {
				broken++
				continue
			}
			mirrored := false
			for _, back := range other.Peers {
				if back == n.ID {
					mirrored = true
					break
				}
			}
			if !mirrored {
				broken++
			}
		}
	}
	for _, e := range edges {
		if e.State == components.EdgeFading {
			continue
		}
		if _, ok := byID[e.Source]; !ok {
			broken++
		}
		if _, ok := byID[e.Target]; !ok {
			broken++
		}
	}

	// Layout spacing is soft, but pairs collapsing well inside the placement
	// minimum mean the solver is diverging.
	crowded := 0
	limit := minDistance / 2
	for _, n := range neurons {
		for _, near := range g.NeuronsNear(n.Position, limit) {
			if near.ID > n.ID {
				crowded++
			}
		}
	}

	if broken > 0 || crowded > 0 {
		slog.Warn("graph_audit_failed",
			"tick", g.Ticks(),
			"broken_adjacency", broken,
			"crowded_pairs", crowded,
		)
		return
	}
	slog.Debug("graph_audit_ok",
		"tick", g.Ticks(), "neurons", len(neurons), "edges", len(edges))
}

// runViewer opens the raylib window and runs the interactive loop.
func runViewer(g *graph.Graph, cfg *config.Config, seed int64, snapshotPath string, maxTicks int, churn bool) {
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "Synaptic")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	v := viewer.New(g, cfg, snapshotPath)
	driver := newChurnDriver(seed)
	for !rl.WindowShouldClose() {
		if churn && !v.Paused() {
			driver.step(g)
		}
		v.Update()
		v.Draw()

		if maxTicks > 0 && int(g.Ticks()) >= maxTicks {
			break
		}
	}
}

// churnDriver feeds a deterministic synthetic task workload into the graph,
// for soak runs and telemetry capture.
type churnDriver struct {
	rng      *rand.Rand
	tasks    []string
	seq      int
	cooldown int
}

func newChurnDriver(seed int64) *churnDriver {
	return &churnDriver{rng: rand.New(rand.NewSource(seed))}
}

// step runs every tick and occasionally issues one graph operation.
func (d *churnDriver) step(g *graph.Graph) {
	if d.cooldown > 0 {
		d.cooldown--
		return
	}
	d.cooldown = 30 + d.rng.Intn(90)

	roll := d.rng.Float64()
	switch {
	case roll < 0.45 || len(d.tasks) == 0:
		d.seq++
		id := fmt.Sprintf("job-%d", d.seq)
		g.AddTaskNeuron(id)
		d.tasks = append(d.tasks, id)
	case roll < 0.70:
		g.CompleteNeuron(d.pick())
	case roll < 0.80:
		g.DeleteNeuron(d.removeOne())
	default:
		g.PulseNeuron(d.pick(), 0.6+0.4*d.rng.Float64(), true)
	}
}

func (d *churnDriver) pick() string {
	return d.tasks[d.rng.Intn(len(d.tasks))]
}

func (d *churnDriver) removeOne() string {
	i := d.rng.Intn(len(d.tasks))
	id := d.tasks[i]
	d.tasks[i] = d.tasks[len(d.tasks)-1]
	d.tasks = d.tasks[:len(d.tasks)-1]
	return id
}
