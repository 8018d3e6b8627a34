// Package config provides configuration loading for the graph engine.
//
// Configuration is plain data: Load returns an explicit *Config that callers
// pass to whoever needs it. There is no package-level instance.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all engine and host tuning parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Grid      GridConfig      `yaml:"grid"`
	Genesis   GenesisConfig   `yaml:"genesis"`
	Placement PlacementConfig `yaml:"placement"`
	Wiring    WiringConfig    `yaml:"wiring"`
	Layout    LayoutConfig    `yaml:"layout"`
	Nodes     NodesConfig     `yaml:"nodes"`
	Edges     EdgesConfig     `yaml:"edges"`
	Pulse     PulseConfig     `yaml:"pulse"`
	Clusters  ClustersConfig  `yaml:"clusters"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ScreenConfig holds viewer display settings. The engine never reads these.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// GridConfig holds spatial index parameters.
type GridConfig struct {
	CellSize float64 `yaml:"cell_size"` // Uniform grid cell edge length (world units)
}

// GenesisConfig holds initial ring generation parameters.
type GenesisConfig struct {
	RingNodes  int     `yaml:"ring_nodes"`  // Dormant filler nodes seeded on an empty graph
	RingRadius float64 `yaml:"ring_radius"` // Circle radius the ring is placed on
	Jitter     float64 `yaml:"jitter"`      // Seeded per-axis offset so the ring isn't perfectly flat
}

// PlacementConfig holds optimal-position search parameters.
type PlacementConfig struct {
	MinDistance    float64 `yaml:"min_distance"`    // Hard lower bound between any two nodes
	SpawnRadius    float64 `yaml:"spawn_radius"`    // Minimum sphere radius for candidate sampling
	IdealSpacing   float64 `yaml:"ideal_spacing"`   // Preferred mean distance to nearby nodes
	Samples        int     `yaml:"samples"`         // Candidate points per placement (min 20)
	NeighborBonus  float64 `yaml:"neighbor_bonus"`  // Score bonus for a comfortable neighbor count
	NeighborMin    int     `yaml:"neighbor_min"`    // Lower edge of the comfortable neighbor band
	NeighborMax    int     `yaml:"neighbor_max"`    // Upper edge of the comfortable neighbor band
	SpacingPenalty float64 `yaml:"spacing_penalty"` // Score penalty per unit of spacing deviation
}

// WiringConfig holds connection creation parameters.
type WiringConfig struct {
	ConnectRadius  float64 `yaml:"connect_radius"`  // Neighbor search radius for new edges
	MinConnections int     `yaml:"min_connections"` // Lower bound on edges for a new node
	MaxConnections int     `yaml:"max_connections"` // Upper bound on edges for a new node
	MaxDegree      int     `yaml:"max_degree"`      // Per-node adjacency cap
}

// LayoutConfig holds force-directed solver parameters.
type LayoutConfig struct {
	Enabled    bool    `yaml:"enabled"`    // Run a layout pass every tick
	Repulsion  float64 `yaml:"repulsion"`  // Pairwise push, k / d^2
	Attraction float64 `yaml:"attraction"` // Edge spring pull, d * k
	Centering  float64 `yaml:"centering"`  // Pull toward origin, -pos * k
	Damping    float64 `yaml:"damping"`    // Velocity retained per tick, < 1
	Epsilon    float64 `yaml:"epsilon"`    // Added to squared distance in repulsion
	MaxSpeed   float64 `yaml:"max_speed"`  // Velocity magnitude clamp
}

// NodesConfig holds node sizing and energy parameters.
type NodesConfig struct {
	TaskSize       float64 `yaml:"task_size"`       // Scale for task-linked nodes
	SeedSize       float64 `yaml:"seed_size"`       // Scale for dormant filler nodes
	InitialEnergy  float64 `yaml:"initial_energy"`  // Energy for freshly created task nodes
	DecayRate      float64 `yaml:"decay_rate"`      // Energy drift toward the floor, per second
	FloorActive    float64 `yaml:"floor_active"`    // Resting energy while active
	FloorCompleted float64 `yaml:"floor_completed"` // Resting energy once completed
	FloorDormant   float64 `yaml:"floor_dormant"`   // Resting energy while dormant
}

// EdgesConfig holds edge lifecycle timing parameters.
type EdgesConfig struct {
	FormingTime      float64 `yaml:"forming_time"`      // Seconds to grow in
	FadeTime         float64 `yaml:"fade_time"`         // Seconds to fade out
	PulseTime        float64 `yaml:"pulse_time"`        // Seconds for one pulse highlight
	StrengthRate     float64 `yaml:"strength_rate"`     // Strength gain per second while active
	InitialStrength  float64 `yaml:"initial_strength"`  // Strength at creation
	RestoredStrength float64 `yaml:"restored_strength"` // Strength for edges rebuilt from a snapshot
}

// PulseConfig holds energy pulse parameters.
type PulseConfig struct {
	Gain    float64 `yaml:"gain"`    // Energy gained per unit intensity
	Delay   float64 `yaml:"delay"`   // Seconds before a propagated pulse reaches a neighbor
	Damping float64 `yaml:"damping"` // Intensity multiplier per propagation hop
}

// ClustersConfig holds density clustering parameters.
type ClustersConfig struct {
	Mode          string  `yaml:"mode"`           // proximity | tags | hybrid
	Radius        float64 `yaml:"radius"`         // Density-reachability distance
	MinSize       int     `yaml:"min_size"`       // Smallest group emitted as a cluster
	MergeDistance float64 `yaml:"merge_distance"` // Centroid distance for coalescing clusters
}

// TelemetryConfig holds stats collection parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // Seconds of sim time per stats row
}

// Cluster mode values accepted by ClustersConfig.Mode.
const (
	ClusterModeProximity = "proximity"
	ClusterModeTags      = "tags"
	ClusterModeHybrid    = "hybrid"
)

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// The embedded defaults are part of the build; failing to parse them
		// is a programming error, not a runtime condition.
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging it over the embedded
// defaults. An empty path loads the defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into the same struct - only fields present in the file
		// overwrite defaults.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.normalize()
	return cfg, nil
}

// normalize clamps and backfills values a user file may have left out of range.
func (c *Config) normalize() {
	if c.Grid.CellSize <= 0 {
		c.Grid.CellSize = c.Wiring.ConnectRadius
	}
	if c.Grid.CellSize <= 0 {
		c.Grid.CellSize = 1
	}
	if c.Placement.Samples < 20 {
		c.Placement.Samples = 20
	}
	if c.Wiring.MinConnections < 0 {
		c.Wiring.MinConnections = 0
	}
	if c.Wiring.MaxConnections < c.Wiring.MinConnections {
		c.Wiring.MaxConnections = c.Wiring.MinConnections
	}
	if c.Wiring.MaxDegree < c.Wiring.MaxConnections {
		c.Wiring.MaxDegree = c.Wiring.MaxConnections
	}
	if c.Layout.Epsilon <= 0 {
		c.Layout.Epsilon = 0.01
	}
	if c.Layout.Damping <= 0 || c.Layout.Damping >= 1 {
		c.Layout.Damping = 0.85
	}
	switch c.Clusters.Mode {
	case ClusterModeProximity, ClusterModeTags, ClusterModeHybrid:
	default:
		c.Clusters.Mode = ClusterModeProximity
	}
	if c.Clusters.MinSize < 2 {
		c.Clusters.MinSize = 2
	}
	if c.Pulse.Delay < 0 {
		c.Pulse.Delay = 0
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
