// Package viewer renders the graph with raylib and drives it with keyboard
// and mouse input. Engine packages never touch the GPU: each frame the
// viewer reads snapshots through the graph query API and issues commands
// through the mutation API.
package viewer

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/synaptic/camera"
	"github.com/pthm-cable/synaptic/config"
	"github.com/pthm-cable/synaptic/graph"
)

// maxFrameDt caps per-frame simulation time so a render hitch cannot fling
// nodes across the layout.
const maxFrameDt = 1.0 / 30.0

// Viewer is the interactive shell around a graph.
type Viewer struct {
	g   *graph.Graph
	cfg *config.Config
	cam *camera.Camera

	screenWidth  float32
	screenHeight float32

	paused         bool
	stepsPerUpdate int
	showHelp       bool

	panel *panel

	selected     string // node id, empty when nothing is selected
	taskSeq      int
	snapshotPath string
	status       string
}

// New creates a viewer for the given graph. snapshotPath may be empty to
// disable quicksave and quickload.
func New(g *graph.Graph, cfg *config.Config, snapshotPath string) *Viewer {
	w := float32(cfg.Screen.Width)
	h := float32(cfg.Screen.Height)
	return &Viewer{
		g:              g,
		cfg:            cfg,
		cam:            camera.New(w, h),
		screenWidth:    w,
		screenHeight:   h,
		stepsPerUpdate: 1,
		panel:          newPanel(cfg),
		snapshotPath:   snapshotPath,
	}
}

// Update processes input and, unless paused, advances the simulation.
func (v *Viewer) Update() {
	v.handleInput()

	if v.paused {
		return
	}
	dt := float64(rl.GetFrameTime())
	if dt <= 0 {
		return
	}
	if dt > maxFrameDt {
		dt = maxFrameDt
	}
	for i := 0; i < v.stepsPerUpdate; i++ {
		v.g.Tick(dt)
	}
}

// Paused reports whether simulation stepping is suspended.
func (v *Viewer) Paused() bool {
	return v.paused
}

// addTask creates a fresh interactively-named task neuron and selects it.
func (v *Viewer) addTask() {
	for {
		v.taskSeq++
		id := fmt.Sprintf("task-%d", v.taskSeq)
		if _, exists := v.g.NeuronByTask(id); exists {
			continue
		}
		n := v.g.AddTaskNeuron(id)
		if n.ID != "" {
			v.selected = n.ID
			v.status = "added " + id
		}
		return
	}
}

// quicksave writes the current graph to the snapshot path.
func (v *Viewer) quicksave() {
	if v.snapshotPath == "" {
		v.status = "no snapshot path configured"
		return
	}
	if err := v.g.Save(v.snapshotPath); err != nil {
		v.status = "save failed: " + err.Error()
		return
	}
	v.status = "saved " + v.snapshotPath
}

// quickload restores the graph from the snapshot path.
func (v *Viewer) quickload() {
	if v.snapshotPath == "" {
		v.status = "no snapshot path configured"
		return
	}
	if err := v.g.Load(v.snapshotPath); err != nil {
		v.status = "load failed: " + err.Error()
		return
	}
	v.selected = ""
	v.status = "loaded " + v.snapshotPath
}
