package viewer

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/synaptic/config"
)

const (
	panelWidth  = 260
	panelHeight = 540
)

// panel is the raygui side panel for live parameter tuning.
type panel struct {
	visible bool
	x, y    float32
}

func newPanel(cfg *config.Config) *panel {
	return &panel{
		x: float32(cfg.Screen.Width) - panelWidth - 20,
		y: 20,
	}
}

// resize repins the panel to the right edge.
func (p *panel) resize(screenW float32) {
	p.x = screenW - panelWidth - 20
}

// contains reports whether a screen point falls inside the visible panel,
// so clicks on controls do not double as node selection.
func (p *panel) contains(mx, my float32) bool {
	if !p.visible {
		return false
	}
	return mx >= p.x-10 && mx <= p.x+panelWidth+10 && my >= p.y-10 && my <= p.y+panelHeight
}

// draw renders the tuning sliders and command buttons. Slider edits write
// straight into the shared config; the graph re-reads force parameters
// after Retune.
func (p *panel) draw(v *Viewer) {
	if !p.visible {
		return
	}

	rl.DrawRectangle(int32(p.x)-10, int32(p.y)-10, panelWidth+20, panelHeight, rl.Color{R: 0, G: 0, B: 0, A: 180})
	rl.DrawRectangleLines(int32(p.x)-10, int32(p.y)-10, panelWidth+20, panelHeight, rl.DarkGray)

	panelX := p.x
	panelY := p.y
	sliderW := float32(panelWidth - 80)

	rl.DrawText("Tuning [Tab]", int32(panelX), int32(panelY), 20, rl.RayWhite)
	panelY += 35

	layout := &v.cfg.Layout
	changed := false

	// Repulsion slider
	rl.DrawText("Repulsion (pairwise push)", int32(panelX), int32(panelY), 14, rl.Gray)
	panelY += 18
	newRepulsion := gui.SliderBar(
		rl.Rectangle{X: panelX, Y: panelY, Width: sliderW, Height: 20},
		"2", "40",
		float32(layout.Repulsion), 2, 40,
	)
	rl.DrawText(fmt.Sprintf("%.1f", layout.Repulsion), int32(panelX+sliderW+10), int32(panelY+2), 16, rl.RayWhite)
	if newRepulsion != float32(layout.Repulsion) {
		layout.Repulsion = float64(newRepulsion)
		changed = true
	}
	panelY += 32

	// Attraction slider
	rl.DrawText("Attraction (edge spring pull)", int32(panelX), int32(panelY), 14, rl.Gray)
	panelY += 18
	newAttraction := gui.SliderBar(
		rl.Rectangle{X: panelX, Y: panelY, Width: sliderW, Height: 20},
		"0.1", "3.0",
		float32(layout.Attraction), 0.1, 3.0,
	)
	rl.DrawText(fmt.Sprintf("%.2f", layout.Attraction), int32(panelX+sliderW+10), int32(panelY+2), 16, rl.RayWhite)
	if newAttraction != float32(layout.Attraction) {
		layout.Attraction = float64(newAttraction)
		changed = true
	}
	panelY += 32

	// Centering slider
	rl.DrawText("Centering (pull toward origin)", int32(panelX), int32(panelY), 14, rl.Gray)
	panelY += 18
	newCentering := gui.SliderBar(
		rl.Rectangle{X: panelX, Y: panelY, Width: sliderW, Height: 20},
		"0", "0.10",
		float32(layout.Centering), 0, 0.10,
	)
	rl.DrawText(fmt.Sprintf("%.3f", layout.Centering), int32(panelX+sliderW+10), int32(panelY+2), 16, rl.RayWhite)
	if newCentering != float32(layout.Centering) {
		layout.Centering = float64(newCentering)
		changed = true
	}
	panelY += 32

	// Damping slider
	rl.DrawText("Damping (velocity retained)", int32(panelX), int32(panelY), 14, rl.Gray)
	panelY += 18
	newDamping := gui.SliderBar(
		rl.Rectangle{X: panelX, Y: panelY, Width: sliderW, Height: 20},
		"0.50", "0.99",
		float32(layout.Damping), 0.50, 0.99,
	)
	rl.DrawText(fmt.Sprintf("%.2f", layout.Damping), int32(panelX+sliderW+10), int32(panelY+2), 16, rl.RayWhite)
	if newDamping != float32(layout.Damping) {
		layout.Damping = float64(newDamping)
		changed = true
	}
	panelY += 32

	// Max speed slider
	rl.DrawText("Max speed (velocity clamp)", int32(panelX), int32(panelY), 14, rl.Gray)
	panelY += 18
	newMaxSpeed := gui.SliderBar(
		rl.Rectangle{X: panelX, Y: panelY, Width: sliderW, Height: 20},
		"1", "20",
		float32(layout.MaxSpeed), 1, 20,
	)
	rl.DrawText(fmt.Sprintf("%.1f", layout.MaxSpeed), int32(panelX+sliderW+10), int32(panelY+2), 16, rl.RayWhite)
	if newMaxSpeed != float32(layout.MaxSpeed) {
		layout.MaxSpeed = float64(newMaxSpeed)
		changed = true
	}
	panelY += 32

	// Cluster radius slider
	rl.DrawText("Cluster radius (density reach)", int32(panelX), int32(panelY), 14, rl.Gray)
	panelY += 18
	newRadius := gui.SliderBar(
		rl.Rectangle{X: panelX, Y: panelY, Width: sliderW, Height: 20},
		"1", "10",
		float32(v.cfg.Clusters.Radius), 1, 10,
	)
	rl.DrawText(fmt.Sprintf("%.1f", v.cfg.Clusters.Radius), int32(panelX+sliderW+10), int32(panelY+2), 16, rl.RayWhite)
	if newRadius != float32(v.cfg.Clusters.Radius) {
		v.cfg.Clusters.Radius = float64(newRadius)
		changed = true
	}
	panelY += 40

	if changed {
		v.g.Retune()
	}

	// Buttons
	if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, toggleText(layout.Enabled, "Layout: ON", "Layout: OFF")) {
		layout.Enabled = !layout.Enabled
	}
	if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset Params") {
		def := config.Default()
		v.cfg.Layout = def.Layout
		v.cfg.Clusters = def.Clusters
		v.g.Retune()
	}
	panelY += 45

	if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Add Task") {
		v.addTask()
	}
	if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Pulse") {
		v.withSelected(func(id string) { v.g.PulseNeuron(id, 1.0, true) })
	}
	panelY += 45

	if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Complete") {
		v.withSelected(func(id string) { v.g.CompleteNeuron(id) })
	}
	if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Delete") {
		v.withSelected(func(id string) {
			v.g.DeleteNeuron(id)
			v.selected = ""
		})
	}
	panelY += 45

	if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Reset Graph") {
		v.g.Reset(0)
		v.selected = ""
		v.status = "graph reset"
	}
	if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Save") {
		v.quicksave()
	}
}

func toggleText(cond bool, whenTrue, whenFalse string) string {
	if cond {
		return whenTrue
	}
	return whenFalse
}
