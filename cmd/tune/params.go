// Package main provides CMA-ES tuning for layout and placement parameters.
package main

import (
	"github.com/pthm-cable/synaptic/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all tunable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Layout forces
			{Name: "repulsion", Path: "layout.repulsion", Min: 2.0, Max: 40.0, Default: 14.0},
			{Name: "attraction", Path: "layout.attraction", Min: 0.1, Max: 3.0, Default: 0.9},
			{Name: "centering", Path: "layout.centering", Min: 0.001, Max: 0.10, Default: 0.02},
			{Name: "damping", Path: "layout.damping", Min: 0.50, Max: 0.98, Default: 0.85},
			{Name: "max_speed", Path: "layout.max_speed", Min: 2.0, Max: 20.0, Default: 8.0},
			// Placement (min_distance locked at 2.0, samples locked at 24)
			{Name: "ideal_spacing", Path: "placement.ideal_spacing", Min: 2.2, Max: 5.0, Default: 3.2},
			{Name: "neighbor_bonus", Path: "placement.neighbor_bonus", Min: 2.0, Max: 20.0, Default: 10.0},
			{Name: "spacing_penalty", Path: "placement.spacing_penalty", Min: 0.2, Max: 4.0, Default: 1.5},
			// Wiring
			{Name: "connect_radius", Path: "wiring.connect_radius", Min: 3.5, Max: 8.0, Default: 5.5},
			// Edges
			{Name: "strength_rate", Path: "edges.strength_rate", Min: 0.05, Max: 0.50, Default: 0.15},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	// Clamp values to ensure they're within bounds
	clamped := pv.Clamp(values)

	// Apply each parameter to the config
	// Order must match Specs order
	i := 0

	// Layout forces
	cfg.Layout.Repulsion = clamped[i]
	i++
	cfg.Layout.Attraction = clamped[i]
	i++
	cfg.Layout.Centering = clamped[i]
	i++
	cfg.Layout.Damping = clamped[i]
	i++
	cfg.Layout.MaxSpeed = clamped[i]
	i++

	// Placement (min_distance and samples locked)
	cfg.Placement.MinDistance = 2.0
	cfg.Placement.Samples = 24
	cfg.Placement.IdealSpacing = clamped[i]
	i++
	cfg.Placement.NeighborBonus = clamped[i]
	i++
	cfg.Placement.SpacingPenalty = clamped[i]
	i++

	// Wiring
	cfg.Wiring.ConnectRadius = clamped[i]
	i++

	// Edges
	cfg.Edges.StrengthRate = clamped[i]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		// Layout forces
		cfg.Layout.Repulsion,
		cfg.Layout.Attraction,
		cfg.Layout.Centering,
		cfg.Layout.Damping,
		cfg.Layout.MaxSpeed,
		// Placement
		cfg.Placement.IdealSpacing,
		cfg.Placement.NeighborBonus,
		cfg.Placement.SpacingPenalty,
		// Wiring
		cfg.Wiring.ConnectRadius,
		// Edges
		cfg.Edges.StrengthRate,
	}
}
