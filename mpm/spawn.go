package mpm

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Shape selects a spawn distribution.
type Shape int

const (
	ShapeSphere Shape = iota
	ShapeCube
)

func (s Shape) String() string {
	switch s {
	case ShapeSphere:
		return "sphere"
	case ShapeCube:
		return "cube"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// ParseShape maps "sphere" or "cube" (case-insensitive) to a Shape.
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sphere":
		return ShapeSphere, nil
	case "cube":
		return ShapeCube, nil
	}
	return 0, fmt.Errorf("unknown spawn shape %q", name)
}

// Spawn dispatches to SpawnSphere or SpawnCube and returns the number of particles added.
func (s *Simulation) Spawn(shape Shape, n int, m Material) int {
	if shape == ShapeCube {
		return s.SpawnCube(n, m)
	}
	return s.SpawnSphere(n, m)
}

// SpawnSphere adds exactly n particles sampled uniformly inside a ball centered in the grid.
// The radius is chosen so the ball holds n particles of m.Mass at m.RestDensity.
func (s *Simulation) SpawnSphere(n int, m Material) int {
	if n <= 0 {
		return 0
	}

	volume := float64(n) * float64(m.Mass) / float64(m.RestDensity)
	radius := math.Cbrt(0.75 * volume / math.Pi)
	center := s.gridCenter()

	s.particles = growParticles(s.particles, n)
	for i := 0; i < n; i++ {
		pos := center.Add(s.ballSample(radius))
		s.particles = append(s.particles, NewParticle(s.grid.clampPosition(pos), mgl32.Vec3{}, m.Mass, m))
	}
	return n
}

// SpawnCube adds side^3 particles on a regular lattice centered in the grid, where side is
// the integer cube root of n rounded down. Lattice spacing gives the material's rest density.
func (s *Simulation) SpawnCube(n int, m Material) int {
	side := intCbrt(n)
	if side == 0 {
		return 0
	}
	total := side * side * side

	step := float32(1 / math.Cbrt(float64(m.RestDensity)/float64(m.Mass)))
	origin := s.gridCenter().Sub(mgl32.Vec3{1, 1, 1}.Mul(float32(side) * step / 2))

	s.particles = growParticles(s.particles, total)
	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			for z := 0; z < side; z++ {
				pos := origin.Add(mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(step))
				s.particles = append(s.particles, NewParticle(s.grid.clampPosition(pos), mgl32.Vec3{}, m.Mass, m))
			}
		}
	}
	return total
}

func (s *Simulation) gridCenter() mgl32.Vec3 {
	d := s.grid.dims
	return mgl32.Vec3{float32(d[0]) / 2, float32(d[1]) / 2, float32(d[2]) / 2}
}

// ballSample returns a point uniformly distributed inside a ball of the given radius.
func (s *Simulation) ballSample(radius float64) mgl32.Vec3 {
	var dir [3]float64
	var norm float64
	for norm == 0 {
		for a := range dir {
			dir[a] = s.rng.NormFloat64()
		}
		norm = math.Sqrt(dir[0]*dir[0] + dir[1]*dir[1] + dir[2]*dir[2])
	}
	r := radius * math.Cbrt(s.rng.Float64()) / norm
	return mgl32.Vec3{float32(dir[0] * r), float32(dir[1] * r), float32(dir[2] * r)}
}

// growParticles reserves room for n more particles without touching existing ones.
func growParticles(ps []Particle, n int) []Particle {
	if cap(ps)-len(ps) >= n {
		return ps
	}
	grown := make([]Particle, len(ps), len(ps)+n)
	copy(grown, ps)
	return grown
}

// intCbrt returns the largest k with k^3 <= n.
func intCbrt(n int) int {
	if n <= 0 {
		return 0
	}
	k := int(math.Cbrt(float64(n)))
	for k*k*k > n {
		k--
	}
	for (k+1)*(k+1)*(k+1) <= n {
		k++
	}
	return k
}
