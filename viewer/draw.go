package viewer

import (
	"fmt"
	"sort"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/synaptic/components"
	"github.com/pthm-cable/synaptic/graph"
)

// Node and edge palette, against a black background.
var (
	ColorDormant   = rl.Color{R: 84, G: 92, B: 110, A: 255}
	ColorActive    = rl.Color{R: 80, G: 170, B: 255, A: 255}
	ColorCompleted = rl.Color{R: 110, G: 210, B: 130, A: 255}
	ColorOutline   = rl.Color{R: 100, G: 100, B: 100, A: 255}
	ColorEdge      = rl.Color{R: 130, G: 140, B: 160, A: 100}
	ColorPulse     = rl.Color{R: 255, G: 235, B: 140, A: 255}
	ColorSelection = rl.Color{R: 255, G: 200, B: 80, A: 255}
	ColorLabelDim  = rl.Color{R: 120, G: 120, B: 120, A: 255}
)

var nodeStateNames = map[components.NodeState]string{
	components.NodeActive:    "active",
	components.NodeCompleted: "completed",
	components.NodeDormant:   "dormant",
}

// sprite is a node projected and ready for painter's-order drawing.
type sprite struct {
	pos    rl.Vector2
	depth  float64
	radius float32
	neuron graph.Neuron
}

// projected is a screen-space node endpoint for edge drawing.
type projected struct {
	pos   rl.Vector2
	depth float64
}

// Draw renders one frame.
func (v *Viewer) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	sprites, screen := v.projectNeurons()

	// Edges go under the nodes; nodes draw far-to-near
	v.drawEdges(screen)
	v.drawNodes(sprites)
	v.drawClusterLabels()

	v.drawHUD()
	v.drawSelectionInfo()
	if v.showHelp {
		v.drawHelp()
	}
	v.panel.draw(v)

	rl.EndDrawing()
}

// projectNeurons projects every node once. The screen map covers all nodes
// in front of the camera so edges to off-screen nodes still draw; sprites
// hold only the discs worth rasterizing, sorted far to near.
func (v *Viewer) projectNeurons() ([]sprite, map[string]projected) {
	neurons := v.g.Neurons()
	screen := make(map[string]projected, len(neurons))
	sprites := make([]sprite, 0, len(neurons))

	for _, n := range neurons {
		sx, sy, depth, ok := v.cam.Project(n.Position)
		if !ok {
			continue
		}
		pos := rl.Vector2{X: sx, Y: sy}
		screen[n.ID] = projected{pos: pos, depth: depth}

		radius := v.cam.ScreenRadius(0.5*n.Size, depth)
		if radius < 2 {
			radius = 2
		}
		if sx+radius < 0 || sx-radius > v.screenWidth || sy+radius < 0 || sy-radius > v.screenHeight {
			continue
		}
		sprites = append(sprites, sprite{pos: pos, depth: depth, radius: radius, neuron: n})
	}

	sort.Slice(sprites, func(i, j int) bool { return sprites[i].depth > sprites[j].depth })
	return sprites, screen
}

// drawEdges renders every connection between projected endpoints.
func (v *Viewer) drawEdges(screen map[string]projected) {
	for _, e := range v.g.Edges() {
		from, okA := screen[e.Source]
		to, okB := screen[e.Target]
		if !okA || !okB {
			continue
		}

		thickness := 0.5 + float32(e.Strength)*2.5
		if thickness > 3 {
			thickness = 3
		}

		color := ColorEdge
		alpha := 40 + e.Strength*80
		switch e.State {
		case components.EdgeForming:
			// Fade in while forming
			alpha *= e.Progress
		case components.EdgeFading:
			alpha *= 1 - e.Progress
		case components.EdgePulsing:
			color = ColorPulse
			alpha = 200
			thickness = 2.5
		}
		if alpha > 150 && e.State != components.EdgePulsing {
			alpha = 150
		}
		color.A = uint8(alpha)

		rl.DrawLineEx(from.pos, to.pos, thickness, color)

		// Traveling signal dot
		if e.State == components.EdgePulsing {
			dot := rl.Vector2{
				X: from.pos.X + (to.pos.X-from.pos.X)*float32(e.Pulse),
				Y: from.pos.Y + (to.pos.Y-from.pos.Y)*float32(e.Pulse),
			}
			rl.DrawCircleV(dot, 4, ColorPulse)
		}
	}
}

// drawNodes renders the sorted node discs.
func (v *Viewer) drawNodes(sprites []sprite) {
	for _, s := range sprites {
		rl.DrawCircleV(s.pos, s.radius, stateColor(s.neuron.State, s.neuron.Energy))
		rl.DrawCircleLinesV(s.pos, s.radius, ColorOutline)

		if s.neuron.ID == v.selected {
			rl.DrawCircleLinesV(s.pos, s.radius+3, ColorSelection)
		}
	}
}

// drawClusterLabels marks each cluster at its projected centroid.
func (v *Viewer) drawClusterLabels() {
	for _, c := range v.g.Clusters() {
		sx, sy, _, ok := v.cam.Project(c.Centroid)
		if !ok {
			continue
		}
		label := c.ID
		if c.Theme != "" {
			label = c.Theme
		}
		text := fmt.Sprintf("%s (%d)", label, len(c.Members))
		rl.DrawText(text, int32(sx)-rl.MeasureText(text, 10)/2, int32(sy), 10, ColorLabelDim)
	}
}

// drawHUD renders the stats lines in the top-left corner.
func (v *Viewer) drawHUD() {
	m := v.g.Metrics()
	rl.DrawText(fmt.Sprintf("Tick: %d", m.Tick), 10, 10, 20, rl.White)
	rl.DrawText(fmt.Sprintf("Neurons: %d  Edges: %d  Clusters: %d", m.Neurons, m.Edges, m.Clusters), 10, 35, 20, rl.White)
	rl.DrawText(fmt.Sprintf("Energy: %.2f  Pulses: %d  Speed: %dx  [</>]", m.MeanEnergy, m.PendingPulses, v.stepsPerUpdate), 10, 60, 20, rl.White)
	if v.paused {
		rl.DrawText("PAUSED", 10, 85, 20, rl.Yellow)
	}

	rl.DrawText("[H] help  [Tab] panel", 10, int32(v.screenHeight)-22, 14, ColorLabelDim)
	if v.status != "" {
		rl.DrawText(v.status, 10, int32(v.screenHeight)-44, 14, ColorLabelDim)
	}
}

// drawSelectionInfo renders details for the selected node.
func (v *Viewer) drawSelectionInfo() {
	if v.selected == "" {
		return
	}
	n, ok := v.g.Neuron(v.selected)
	if !ok {
		return
	}

	panelX := int32(10)
	panelY := int32(v.screenHeight) - 170
	rl.DrawRectangle(panelX, panelY, 230, 112, rl.Color{R: 0, G: 0, B: 0, A: 180})
	rl.DrawRectangleLines(panelX, panelY, 230, 112, ColorSelection)

	rl.DrawText(n.ID, panelX+10, panelY+8, 14, ColorSelection)
	y := panelY + 28
	lines := []string{
		fmt.Sprintf("state: %s", nodeStateNames[n.State]),
		fmt.Sprintf("energy: %.2f", n.Energy),
		fmt.Sprintf("degree: %d", len(n.Peers)),
	}
	if n.Cluster != "" {
		lines = append(lines, fmt.Sprintf("cluster: %s", n.Cluster))
	} else {
		lines = append(lines, "cluster: -")
	}
	if n.TaskID == "" {
		lines = append(lines, "decorative seed node")
	}
	for _, line := range lines {
		rl.DrawText(line, panelX+10, y, 12, rl.White)
		y += 18
	}
}

// drawHelp renders the key binding overlay.
func (v *Viewer) drawHelp() {
	panelX := int32(v.screenWidth)/2 - 170
	panelY := int32(80)
	panelW := int32(340)
	panelH := int32(320)

	rl.DrawRectangle(panelX, panelY, panelW, panelH, rl.Color{R: 0, G: 0, B: 0, A: 200})
	rl.DrawRectangleLines(panelX, panelY, panelW, panelH, rl.Yellow)
	rl.DrawText("KEYS [H to close]", panelX+10, panelY+8, 14, rl.Yellow)

	lines := []string{
		"Space      pause / resume",
		"< >        simulation speed",
		"N          add task neuron",
		"C          complete selected",
		"X          delete selected",
		"P          pulse selected",
		"A / D      activate / demote selected",
		"R          reset graph (same seed)",
		"F5 / F9    save / load snapshot",
		"Click      select node",
		"Arrows     orbit camera",
		"Shift+Arr  pan camera",
		"Wheel, -=  dolly in / out",
		"Home       reset camera",
		"Tab        tuning panel",
		"F11        fullscreen",
	}
	y := panelY + 32
	for _, line := range lines {
		rl.DrawText(line, panelX+10, y, 12, rl.White)
		y += 18
	}
}

// stateColor maps a node state to its fill color, dimmed at low energy.
func stateColor(state components.NodeState, energy float64) rl.Color {
	base := ColorDormant
	switch state {
	case components.NodeActive:
		base = ColorActive
	case components.NodeCompleted:
		base = ColorCompleted
	}

	t := energy
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	scale := 0.45 + 0.55*t
	return rl.Color{
		R: uint8(float64(base.R) * scale),
		G: uint8(float64(base.G) * scale),
		B: uint8(float64(base.B) * scale),
		A: 255,
	}
}
