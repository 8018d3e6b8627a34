package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/synaptic/config"
)

// Output handles structured run output with CSV logging.
// A nil *Output is valid and disables all writes.
type Output struct {
	dir       string
	statsFile *os.File

	statsHeaderWritten bool
}

// NewOutput creates an output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutput(dir string) (*Output, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	o := &Output{dir: dir}

	statsPath := filepath.Join(dir, "stats.csv")
	f, err := os.Create(statsPath)
	if err != nil {
		return nil, fmt.Errorf("creating stats.csv: %w", err)
	}
	o.statsFile = f

	return o, nil
}

// WriteConfig saves the current configuration as YAML alongside the stats.
func (o *Output) WriteConfig(cfg *config.Config) error {
	if o == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(o.dir, "config.yaml"))
}

// WriteStats appends a window stats record to stats.csv.
func (o *Output) WriteStats(stats WindowStats) error {
	if o == nil {
		return nil
	}

	records := []WindowStats{stats}

	if !o.statsHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, o.statsFile); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
		o.statsHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, o.statsFile); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
	}

	return nil
}

// Dir returns the output directory path.
func (o *Output) Dir() string {
	if o == nil {
		return ""
	}
	return o.dir
}

// Close flushes and closes the output files.
func (o *Output) Close() error {
	if o == nil || o.statsFile == nil {
		return nil
	}
	return o.statsFile.Close()
}
