// Package camera provides an orbit camera around the simulation domain.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// maxPitch keeps the camera just short of the poles so the up vector stays valid.
const maxPitch = 1.5

// Camera orbits a target point at a distance, looking at it.
// Angles are in radians; yaw 0 looks down -Z from +Z.
type Camera struct {
	// Target is the orbit center in grid coordinates
	Target mgl32.Vec3

	Yaw, Pitch float32

	// Distance from target to eye
	Distance float32

	// Distance constraints
	MinDistance, MaxDistance float32

	// Domain extents the defaults are derived from
	domain mgl32.Vec3
}

// New creates a camera looking at the center of a domain of the given grid size.
func New(dims [3]int) *Camera {
	c := &Camera{}
	c.Resize(dims)
	c.Reset()
	return c
}

// Position returns the eye position.
func (c *Camera) Position() mgl32.Vec3 {
	return c.Target.Add(c.Forward().Mul(-c.Distance))
}

// Forward returns the unit view direction from eye to target.
func (c *Camera) Forward() mgl32.Vec3 {
	sy, cy := math.Sincos(float64(c.Yaw))
	sp, cp := math.Sincos(float64(c.Pitch))
	// Eye sits on the sphere at (cp*sy, sp, cp*cy) around the target
	return mgl32.Vec3{float32(-cp * sy), float32(-sp), float32(-cp * cy)}
}

// Right returns the horizontal unit vector to the right of the view.
func (c *Camera) Right() mgl32.Vec3 {
	sy, cy := math.Sincos(float64(c.Yaw))
	return mgl32.Vec3{float32(cy), 0, float32(-sy)}
}

// Orbit rotates the eye around the target. Yaw wraps, pitch is clamped.
func (c *Camera) Orbit(dYaw, dPitch float32) {
	c.Yaw = mod(c.Yaw+dYaw, 2*math.Pi)
	c.Pitch = clamp(c.Pitch+dPitch, -maxPitch, maxPitch)
}

// Pan moves the target along the view's right vector and world up, scaled by distance.
func (c *Camera) Pan(dx, dy float32) {
	scale := c.Distance * 0.002
	c.Target = c.Target.
		Add(c.Right().Mul(dx * scale)).
		Add(mgl32.Vec3{0, dy * scale, 0})
}

// SetDistance sets the orbit distance, clamped to min/max.
func (c *Camera) SetDistance(d float32) {
	c.Distance = clamp(d, c.MinDistance, c.MaxDistance)
}

// ZoomBy divides the distance by factor, so factors above 1 move closer.
func (c *Camera) ZoomBy(factor float32) {
	if factor <= 0 {
		return
	}
	c.SetDistance(c.Distance / factor)
}

// Resize recomputes distance limits for a new domain and re-clamps the distance.
// The target and angles are kept.
func (c *Camera) Resize(dims [3]int) {
	c.domain = mgl32.Vec3{float32(dims[0]), float32(dims[1]), float32(dims[2])}
	extent := c.domain.Len()
	c.MinDistance = extent * 0.1
	c.MaxDistance = extent * 4
	if c.Distance != 0 {
		c.SetDistance(c.Distance)
	}
}

// Reset returns the camera to the default view of the whole domain.
func (c *Camera) Reset() {
	c.Target = c.domain.Mul(0.5)
	c.Yaw = math.Pi / 4
	c.Pitch = 0.45
	c.SetDistance(c.domain.Len() * 1.4)
}

// mod computes the positive modulo (Go's % can return negative).
func mod(x, m float32) float32 {
	r := float32(math.Mod(float64(x), float64(m)))
	if r < 0 {
		r += m
	}
	return r
}

// clamp restricts a value to a range.
func clamp(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
