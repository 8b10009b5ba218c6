package mpm

import "github.com/go-gl/mathgl/mgl32"

// Particle is one Lagrangian sample of the continuum.
type Particle struct {
	Position         mgl32.Vec3
	Velocity         mgl32.Vec3
	Mass             float32 // constant for the particle's lifetime
	Volume           float32 // re-estimated every step
	Material         Material
	VelocityGradient mgl32.Mat3 // affine (APIC) term, column-major
}

// NewParticle creates a particle with volume derived from the material rest density.
func NewParticle(position, velocity mgl32.Vec3, mass float32, material Material) Particle {
	return Particle{
		Position: position,
		Velocity: velocity,
		Mass:     mass,
		Volume:   mass / material.RestDensity,
		Material: material,
	}
}

// Momentum returns mass * velocity.
func (p *Particle) Momentum() mgl32.Vec3 {
	return p.Velocity.Mul(p.Mass)
}
