// Package camera provides an orbiting 3D camera with perspective projection.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Default orbit, chosen to frame the seed ring and spawn shell.
const (
	defaultYaw      = 0.6
	defaultPitch    = 0.45
	defaultDistance = 26.0
	defaultFOV      = 50.0 * math.Pi / 180.0

	// nearPlane rejects points at or behind the eye during projection.
	nearPlane = 0.1

	// pitchLimit keeps the view axis off the world up vector, which would
	// degenerate the camera basis.
	pitchLimit = 1.45
)

// Camera orbits a target point and projects world points to screen space.
// Yaw and Pitch are radians, Distance is world units; screen coordinates
// use raylib's convention with the origin top-left and Y growing downward.
type Camera struct {
	// Target is the orbit center in world coordinates
	Target r3.Vec

	// Orbit angles and radius
	Yaw, Pitch, Distance float64

	// FOV is the vertical field of view in radians
	FOV float64

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Distance constraints
	MinDistance, MaxDistance float64
}

// New creates a camera orbiting the origin at the default framing.
func New(viewportW, viewportH float32) *Camera {
	return &Camera{
		Yaw:         defaultYaw,
		Pitch:       defaultPitch,
		Distance:    defaultDistance,
		FOV:         defaultFOV,
		ViewportW:   viewportW,
		ViewportH:   viewportH,
		MinDistance: 4.0,
		MaxDistance: 120.0,
	}
}

// Eye returns the camera position in world coordinates.
// The eye sits on a sphere of radius Distance around Target, with Yaw
// sweeping around the Y axis and Pitch lifting toward it.
func (c *Camera) Eye() r3.Vec {
	cp := math.Cos(c.Pitch)
	offset := r3.Vec{
		X: c.Distance * cp * math.Sin(c.Yaw),
		Y: c.Distance * math.Sin(c.Pitch),
		Z: c.Distance * cp * math.Cos(c.Yaw),
	}
	return r3.Add(c.Target, offset)
}

// Basis returns the view axes: forward toward the target, right, and up.
func (c *Camera) Basis() (forward, right, up r3.Vec) {
	forward = r3.Unit(r3.Sub(c.Target, c.Eye()))
	right = r3.Unit(r3.Cross(forward, r3.Vec{Y: 1}))
	up = r3.Cross(right, forward)
	return forward, right, up
}

// Project converts a world point to screen coordinates.
// depth is the distance along the view axis, used for painter's-order
// sorting; ok is false when the point is at or behind the near plane.
func (c *Camera) Project(p r3.Vec) (sx, sy float32, depth float64, ok bool) {
	forward, right, up := c.Basis()
	v := r3.Sub(p, c.Eye())

	z := r3.Dot(v, forward)
	if z <= nearPlane {
		return 0, 0, 0, false
	}

	// Perspective divide, then center on the viewport. Screen Y grows
	// downward so the view-space Y flips sign.
	f := c.focal()
	sx = c.ViewportW/2 + float32(r3.Dot(v, right)*f/z)
	sy = c.ViewportH/2 - float32(r3.Dot(v, up)*f/z)
	return sx, sy, z, true
}

// ScreenRadius converts a world-space radius at the given depth to pixels.
func (c *Camera) ScreenRadius(worldRadius, depth float64) float32 {
	if depth <= nearPlane {
		return 0
	}
	return float32(worldRadius * c.focal() / depth)
}

// IsVisible returns true if a sphere at p with the given radius could be
// visible on screen (conservative check for culling).
func (c *Camera) IsVisible(p r3.Vec, radius float64) bool {
	sx, sy, depth, ok := c.Project(p)
	if !ok {
		return false
	}
	margin := c.ScreenRadius(radius, depth)
	return sx+margin >= 0 && sx-margin <= c.ViewportW &&
		sy+margin >= 0 && sy-margin <= c.ViewportH
}

// Orbit rotates the camera around the target by the given angle deltas.
// Yaw wraps; pitch is clamped short of the poles.
func (c *Camera) Orbit(dyaw, dpitch float64) {
	c.Yaw = wrapAngle(c.Yaw + dyaw)
	c.Pitch = clamp(c.Pitch+dpitch, -pitchLimit, pitchLimit)
}

// Dolly scales the orbit distance by the given factor, clamped to the
// distance constraints. Factors below 1 move closer.
func (c *Camera) Dolly(factor float64) {
	c.Distance = clamp(c.Distance*factor, c.MinDistance, c.MaxDistance)
}

// Pan moves the orbit target by the given delta in screen pixels,
// sliding it along the view plane at the target's depth.
func (c *Camera) Pan(dx, dy float32) {
	_, right, up := c.Basis()
	worldPerPixel := c.Distance / c.focal()
	c.Target = r3.Add(c.Target, r3.Scale(float64(dx)*worldPerPixel, right))
	c.Target = r3.Add(c.Target, r3.Scale(-float64(dy)*worldPerPixel, up))
}

// Resize updates the viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float32) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Reset returns the camera to the default orbit around the origin.
func (c *Camera) Reset() {
	c.Target = r3.Vec{}
	c.Yaw = defaultYaw
	c.Pitch = defaultPitch
	c.Distance = defaultDistance
}

// focal is the projection scale factor: a unit offset at depth 1 spans
// this many pixels.
func (c *Camera) focal() float64 {
	return float64(c.ViewportH) / 2 / math.Tan(c.FOV/2)
}

// wrapAngle normalizes an angle to (-pi, pi].
func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// clamp restricts a value to a range.
func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
