package viewer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
)

const (
	// Per-frame camera steps, tuned at 60 FPS.
	orbitStep = 0.035
	panStep   = 6.0

	// Max screen distance for click selection, in pixels.
	pickRadius = 16.0
)

// handleInput processes keyboard and mouse input.
func (v *Viewer) handleInput() {
	v.handleResize()

	// Fullscreen toggle
	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		v.paused = !v.paused
	}

	// Steps-per-update control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) && v.stepsPerUpdate > 1 {
		v.stepsPerUpdate--
	}
	if rl.IsKeyPressed(rl.KeyPeriod) && v.stepsPerUpdate < 10 {
		v.stepsPerUpdate++
	}

	if rl.IsKeyPressed(rl.KeyH) {
		v.showHelp = !v.showHelp
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		v.panel.visible = !v.panel.visible
	}

	// Graph commands
	if rl.IsKeyPressed(rl.KeyN) {
		v.addTask()
	}
	if rl.IsKeyPressed(rl.KeyC) {
		v.withSelected(func(id string) { v.g.CompleteNeuron(id) })
	}
	if rl.IsKeyPressed(rl.KeyX) {
		v.withSelected(func(id string) {
			v.g.DeleteNeuron(id)
			v.selected = ""
		})
	}
	if rl.IsKeyPressed(rl.KeyP) {
		v.withSelected(func(id string) { v.g.PulseNeuron(id, 1.0, true) })
	}
	if rl.IsKeyPressed(rl.KeyD) {
		v.withSelected(func(id string) { v.g.DemoteNeuron(id) })
	}
	if rl.IsKeyPressed(rl.KeyA) {
		v.withSelected(func(id string) { v.g.ActivateNeuron(id) })
	}
	if rl.IsKeyPressed(rl.KeyR) {
		v.g.Reset(0)
		v.selected = ""
		v.status = "graph reset"
	}
	if rl.IsKeyPressed(rl.KeyF5) {
		v.quicksave()
	}
	if rl.IsKeyPressed(rl.KeyF9) {
		v.quickload()
	}

	v.handleCameraInput()

	// Click selection; right click clears it
	if rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		mousePos := rl.GetMousePosition()
		if !v.panel.contains(mousePos.X, mousePos.Y) {
			if id, found := v.pickNeuron(mousePos.X, mousePos.Y); found {
				v.selected = id
			}
		}
	}
	if rl.IsMouseButtonPressed(rl.MouseButtonRight) {
		v.selected = ""
	}

	// Drop the selection if the node went away underneath us
	if v.selected != "" {
		if _, ok := v.g.Neuron(v.selected); !ok {
			v.selected = ""
		}
	}
}

// withSelected runs fn against the current selection, if any.
func (v *Viewer) withSelected(fn func(id string)) {
	if v.selected == "" {
		v.status = "nothing selected"
		return
	}
	fn(v.selected)
}

// handleResize checks for window resize and propagates new dimensions.
func (v *Viewer) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == v.screenWidth && h == v.screenHeight {
		return
	}
	v.screenWidth = w
	v.screenHeight = h

	v.cam.Resize(w, h)
	v.panel.resize(w)
}

// handleCameraInput processes camera orbit, pan, and dolly controls.
func (v *Viewer) handleCameraInput() {
	// Arrow keys orbit; with shift held they pan instead
	shift := rl.IsKeyDown(rl.KeyLeftShift) || rl.IsKeyDown(rl.KeyRightShift)
	if shift {
		if rl.IsKeyDown(rl.KeyRight) {
			v.cam.Pan(panStep, 0)
		}
		if rl.IsKeyDown(rl.KeyLeft) {
			v.cam.Pan(-panStep, 0)
		}
		if rl.IsKeyDown(rl.KeyDown) {
			v.cam.Pan(0, panStep)
		}
		if rl.IsKeyDown(rl.KeyUp) {
			v.cam.Pan(0, -panStep)
		}
	} else {
		if rl.IsKeyDown(rl.KeyRight) {
			v.cam.Orbit(orbitStep, 0)
		}
		if rl.IsKeyDown(rl.KeyLeft) {
			v.cam.Orbit(-orbitStep, 0)
		}
		if rl.IsKeyDown(rl.KeyUp) {
			v.cam.Orbit(0, orbitStep)
		}
		if rl.IsKeyDown(rl.KeyDown) {
			v.cam.Orbit(0, -orbitStep)
		}
	}

	// Dolly with the mouse wheel; wheel up moves closer
	wheelMove := rl.GetMouseWheelMove()
	if wheelMove != 0 {
		v.cam.Dolly(1.0 - float64(wheelMove)*0.1)
	}

	// Keyboard dolly with +/- (= and - keys)
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		v.cam.Dolly(0.8)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		v.cam.Dolly(1.25)
	}

	// Home key to reset camera
	if rl.IsKeyPressed(rl.KeyHome) {
		v.cam.Reset()
	}
}

// pickNeuron returns the node whose projection is closest to the cursor,
// within the pick radius.
func (v *Viewer) pickNeuron(mouseX, mouseY float32) (string, bool) {
	var closestID string
	closestDist := float32(math.MaxFloat32)
	found := false

	for _, n := range v.g.Neurons() {
		sx, sy, depth, ok := v.cam.Project(n.Position)
		if !ok {
			continue
		}
		dx := mouseX - sx
		dy := mouseY - sy
		dist := float32(math.Sqrt(float64(dx*dx + dy*dy)))

		// A hit lands inside the drawn disc plus a small margin
		if dist > v.cam.ScreenRadius(n.Size, depth)+pickRadius {
			continue
		}
		if dist < closestDist {
			closestDist = dist
			closestID = n.ID
			found = true
		}
	}

	return closestID, found
}
