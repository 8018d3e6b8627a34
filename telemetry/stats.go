// Package telemetry aggregates engine events into periodic window stats for
// structured logging and CSV output.
package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for one stats window.
type WindowStats struct {
	Tick    int64   `csv:"tick"`
	SimTime float64 `csv:"sim_time"`

	// Graph shape at window end
	Neurons       int `csv:"neurons"`
	TaskLinked    int `csv:"task_linked"`
	Active        int `csv:"active"`
	Completed     int `csv:"completed"`
	Dormant       int `csv:"dormant"`
	Edges         int `csv:"edges"`
	Clusters      int `csv:"clusters"`
	PendingPulses int `csv:"pending_pulses"`

	// Events during the window
	Adds        int `csv:"adds"`
	Completions int `csv:"completions"`
	Deletions   int `csv:"deletions"`
	Pulses      int `csv:"pulses"`
	EdgesFormed int `csv:"edges_formed"`
	EdgesFaded  int `csv:"edges_faded"`
	Anomalies   int `csv:"anomalies"`

	// Distributions (sampled at window end)
	EnergyMean   float64 `csv:"energy_mean"`
	EnergyP10    float64 `csv:"energy_p10"`
	EnergyP50    float64 `csv:"energy_p50"`
	EnergyP90    float64 `csv:"energy_p90"`
	StrengthMean float64 `csv:"strength_mean"`
	DegreeMean   float64 `csv:"degree_mean"`
}

// distribution computes the mean and the 10th/50th/90th percentiles.
// Returns zeros for an empty slice.
func distribution(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mean = stat.Mean(sorted, nil)
	p10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	return mean, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("tick", s.Tick),
		slog.Float64("sim_time", s.SimTime),
		slog.Int("neurons", s.Neurons),
		slog.Int("task_linked", s.TaskLinked),
		slog.Int("active", s.Active),
		slog.Int("completed", s.Completed),
		slog.Int("dormant", s.Dormant),
		slog.Int("edges", s.Edges),
		slog.Int("clusters", s.Clusters),
		slog.Int("pending_pulses", s.PendingPulses),
		slog.Int("adds", s.Adds),
		slog.Int("completions", s.Completions),
		slog.Int("deletions", s.Deletions),
		slog.Int("pulses", s.Pulses),
		slog.Int("edges_formed", s.EdgesFormed),
		slog.Int("edges_faded", s.EdgesFaded),
		slog.Int("anomalies", s.Anomalies),
		slog.Float64("energy_mean", s.EnergyMean),
		slog.Float64("energy_p10", s.EnergyP10),
		slog.Float64("energy_p50", s.EnergyP50),
		slog.Float64("energy_p90", s.EnergyP90),
		slog.Float64("strength_mean", s.StrengthMean),
		slog.Float64("degree_mean", s.DegreeMean),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"tick", s.Tick,
		"sim_time", s.SimTime,
		"neurons", s.Neurons,
		"task_linked", s.TaskLinked,
		"active", s.Active,
		"completed", s.Completed,
		"dormant", s.Dormant,
		"edges", s.Edges,
		"clusters", s.Clusters,
		"pending_pulses", s.PendingPulses,
		"adds", s.Adds,
		"completions", s.Completions,
		"deletions", s.Deletions,
		"pulses", s.Pulses,
		"edges_formed", s.EdgesFormed,
		"edges_faded", s.EdgesFaded,
		"anomalies", s.Anomalies,
		"energy_mean", s.EnergyMean,
		"energy_p10", s.EnergyP10,
		"energy_p50", s.EnergyP50,
		"energy_p90", s.EnergyP90,
		"strength_mean", s.StrengthMean,
		"degree_mean", s.DegreeMean,
	)
}
