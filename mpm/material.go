package mpm

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Material holds the physical parameters shared by particles spawned together.
type Material struct {
	Name                string
	Mass                float32 // kg represented by one particle
	RestDensity         float32
	Viscosity           float32 // dynamic viscosity
	EOSStiffness        float32
	EOSPower            float32
	MaxNegativePressure float32 // pressure floor, keeps particles from clumping
	Color               mgl32.Vec3
}

// DefaultMaterial returns a mildly viscous, soft water-like material.
func DefaultMaterial() Material {
	return Material{
		Name:                "default",
		Mass:                125,
		RestDensity:         1000,
		Viscosity:           0.1,
		EOSStiffness:        10,
		EOSPower:            4,
		MaxNegativePressure: -0.1,
		Color:               mgl32.Vec3{0, 0.1, 0.9},
	}
}

// Pressure evaluates the equation of state for the given density:
// stiffness * ((density/rest)^power - 1), floored at MaxNegativePressure.
func (m *Material) Pressure(density float32) float32 {
	ratio := float64(density / m.RestDensity)
	p := m.EOSStiffness * (float32(math.Pow(ratio, float64(m.EOSPower))) - 1)
	if p < m.MaxNegativePressure {
		p = m.MaxNegativePressure
	}
	return p
}
