package mpm

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// Phase names reported to a PhaseTimer during Step.
const (
	PhaseGridReset   = "grid_reset"
	PhaseP2GMomentum = "p2g_momentum"
	PhaseP2GStress   = "p2g_stress"
	PhaseGridUpdate  = "grid_update"
	PhaseG2P         = "g2p"
)

// Phases lists the step phases in execution order.
var Phases = []string{PhaseGridReset, PhaseP2GMomentum, PhaseP2GStress, PhaseGridUpdate, PhaseG2P}

// gradientScale is the inverse of the quadratic kernel's second moment (1/4 per axis for unit cells).
const gradientScale = 4

// PhaseTimer is notified when each step phase begins.
type PhaseTimer interface {
	StartPhase(phase string)
}

// Params holds the construction inputs of a Simulation.
type Params struct {
	GridSize           [3]int
	Timestep           float32 // seconds per step
	Boundary           float32 // thickness of the soft velocity-damping zone
	BoundaryElasticity float32
	Gravity            mgl32.Vec3
	Material           Material // default material for callers that do not pick one

	Workers           int // <= 1 runs single-threaded
	ParallelThreshold int // 0 uses ParallelThreshold
	Seed              int64
}

// DefaultParams returns the parameters of the reference scene.
func DefaultParams() Params {
	return Params{
		GridSize:           [3]int{64, 64, 64},
		Timestep:           0.016,
		Boundary:           1.0,
		BoundaryElasticity: 0.3,
		Gravity:            mgl32.Vec3{0, -9.81, 0},
		Material:           DefaultMaterial(),
		Workers:            1,
		Seed:               1,
	}
}

// Simulation owns the grid and particles and advances them by a fixed timestep.
type Simulation struct {
	grid      *Grid
	particles []Particle

	timestep           float32
	boundary           float32
	boundaryElasticity float32
	gravity            mgl32.Vec3
	material           Material

	rng       *rand.Rand
	steps     uint64
	diverged  *DivergenceError
	timer     PhaseTimer
	pool      *workerPool
	threshold int
}

// New creates a simulation. Grid dimensions below MinGridDim are raised to it.
func New(p Params) *Simulation {
	s := &Simulation{
		grid:               NewGrid(p.GridSize[0], p.GridSize[1], p.GridSize[2]),
		timestep:           p.Timestep,
		boundary:           p.Boundary,
		boundaryElasticity: p.BoundaryElasticity,
		gravity:            p.Gravity,
		material:           p.Material,
		rng:                rand.New(rand.NewSource(p.Seed)),
		threshold:          p.ParallelThreshold,
	}
	if s.threshold <= 0 {
		s.threshold = ParallelThreshold
	}
	if p.Workers > 1 {
		s.pool = newWorkerPool(p.Workers)
	}
	return s
}

// Close stops the worker goroutines, if any. The simulation stays usable but every later
// Step runs single-threaded.
func (s *Simulation) Close() {
	if s.pool != nil {
		s.pool.stop()
		s.pool = nil
	}
}

// SetPhaseTimer installs a callback notified at each phase boundary. nil disables it.
func (s *Simulation) SetPhaseTimer(t PhaseTimer) {
	s.timer = t
}

func (s *Simulation) Timestep() float32 { return s.timestep }
func (s *Simulation) Grid() *Grid { return s.grid }
func (s *Simulation) Cells() []Cell { return s.grid.cells }
func (s *Simulation) CellCount() int { return s.grid.Len() }
func (s *Simulation) GridSize() [3]int { return s.grid.dims }
func (s *Simulation) Cell(x, y, z int) *Cell { return s.grid.Cell(x, y, z) }
func (s *Simulation) CellAt(idx [3]int) *Cell { return s.grid.CellAt(idx) }
func (s *Simulation) Particles() []Particle { return s.particles }
func (s *Simulation) ParticleCount() int { return len(s.particles) }
func (s *Simulation) Gravity() mgl32.Vec3 { return s.gravity }
func (s *Simulation) StepCount() uint64 { return s.steps }
func (s *Simulation) DefaultMaterial() Material { return s.material }
func (s *Simulation) Boundary() (float32, float32) { return s.boundary, s.boundaryElasticity }

// AddParticle appends p after clamping its position into the domain.
// A NaN coordinate is kept as is and makes the next Step report divergence.
func (s *Simulation) AddParticle(p Particle) {
	p.Position = s.grid.clampPosition(p.Position)
	s.particles = append(s.particles, p)
}

// SetGravity changes the gravity acceleration applied in grid resolution.
func (s *Simulation) SetGravity(g mgl32.Vec3) {
	s.gravity = g
}

// SetBoundary changes the soft boundary thickness and elasticity.
func (s *Simulation) SetBoundary(thickness, elasticity float32) {
	s.boundary = thickness
	s.boundaryElasticity = elasticity
}

// UpdateMaterial replaces the material of every particle whose material has the same name
// and returns how many particles changed. Mass is per particle and is left untouched.
func (s *Simulation) UpdateMaterial(m Material) int {
	if s.material.Name == m.Name {
		s.material = m
	}
	n := 0
	for i := range s.particles {
		if s.particles[i].Material.Name == m.Name {
			s.particles[i].Material = m
			n++
		}
	}
	return n
}

// ResizeGrid reallocates the grid and clamps existing particles into the new domain.
func (s *Simulation) ResizeGrid(x, y, z int) {
	s.grid = NewGrid(x, y, z)
	for i := range s.particles {
		s.particles[i].Position = s.grid.clampPosition(s.particles[i].Position)
	}
}

// Reset drops every particle and clears the grid and any divergence.
func (s *Simulation) Reset() {
	s.particles = s.particles[:0]
	s.grid.Reset()
	s.steps = 0
	s.diverged = nil
}

// TotalMomentum sums mass * velocity over all particles.
func (s *Simulation) TotalMomentum() mgl32.Vec3 {
	var m mgl32.Vec3
	for i := range s.particles {
		m = m.Add(s.particles[i].Momentum())
	}
	return m
}

// KineticEnergy sums 0.5 * m * |v|^2 over all particles.
func (s *Simulation) KineticEnergy() float32 {
	var e float32
	for i := range s.particles {
		v := s.particles[i].Velocity
		e += 0.5 * s.particles[i].Mass * v.Dot(v)
	}
	return e
}

func (s *Simulation) startPhase(name string) {
	if s.timer != nil {
		s.timer.StartPhase(name)
	}
}

func (s *Simulation) parallel() bool {
	return s.pool != nil && len(s.particles) >= s.threshold
}

// Step advances the simulation by exactly one timestep.
// It returns a *DivergenceError if any particle position became NaN; after that every call
// returns the same error until Reset.
func (s *Simulation) Step() error {
	if s.diverged != nil {
		return s.diverged
	}
	// A NaN position survives clamping and would index outside the grid.
	for i := range s.particles {
		if hasNaN(s.particles[i].Position) {
			s.diverged = &DivergenceError{Step: s.steps, Particle: i, Position: s.particles[i].Position}
			return s.diverged
		}
	}

	s.startPhase(PhaseGridReset)
	s.grid.Reset()

	s.startPhase(PhaseP2GMomentum)
	s.scatter(s.scatterMomentum)

	s.startPhase(PhaseP2GStress)
	s.scatter(s.scatterStress)

	s.startPhase(PhaseGridUpdate)
	if s.parallel() {
		s.pool.run(s.grid.dims[0], s.resolveGrid)
	} else {
		s.resolveGrid(0, 0, s.grid.dims[0])
	}

	s.startPhase(PhaseG2P)
	bad := s.gather()

	s.steps++
	if bad >= 0 {
		s.diverged = &DivergenceError{Step: s.steps, Particle: bad, Position: s.particles[bad].Position}
		return s.diverged
	}
	return nil
}

func (s *Simulation) scatter(fn func(start, end int, out []Cell)) {
	if s.parallel() {
		s.pool.scatter(len(s.particles), s.grid.cells, fn)
		return
	}
	fn(0, len(s.particles), s.grid.cells)
}

// scatterMomentum deposits particle mass and APIC momentum onto out.
// out[i].Velocity holds momentum until resolveGrid divides by mass.
func (s *Simulation) scatterMomentum(start, end int, out []Cell) {
	g := s.grid
	for i := start; i < end; i++ {
		p := &s.particles[i]
		st := newStencil(p.Position)

		for x := 0; x < 3; x++ {
			for y := 0; y < 3; y++ {
				for z := 0; z < 3; z++ {
					idx := st.neighbor(x, y, z)
					dist := cellDistance(idx, p.Position)
					affine := p.VelocityGradient.Mul3x1(dist)

					weightedMass := p.Mass * st.weight(x, y, z)

					c := &out[g.Index(idx[0], idx[1], idx[2])]
					c.Mass += weightedMass
					c.Velocity = c.Velocity.Add(p.Velocity.Add(affine).Mul(weightedMass))
				}
			}
		}
	}
}

// scatterStress estimates particle density from the deposited grid mass, evaluates the
// constitutive model and adds the resulting force impulse to out as momentum.
func (s *Simulation) scatterStress(start, end int, out []Cell) {
	g := s.grid
	for i := start; i < end; i++ {
		p := &s.particles[i]
		st := newStencil(p.Position)

		var density float32
		for x := 0; x < 3; x++ {
			for y := 0; y < 3; y++ {
				for z := 0; z < 3; z++ {
					idx := st.neighbor(x, y, z)
					density += g.cells[g.Index(idx[0], idx[1], idx[2])].Mass * st.weight(x, y, z)
				}
			}
		}
		p.Volume = p.Mass / density

		pressure := p.Material.Pressure(density)
		strain := p.VelocityGradient.Add(p.VelocityGradient.Transpose()).Mul(p.Material.Viscosity)
		stress := mgl32.Ident3().Mul(-pressure).Add(strain)
		impulse := stress.Mul(-p.Volume * gradientScale * s.timestep)

		for x := 0; x < 3; x++ {
			for y := 0; y < 3; y++ {
				for z := 0; z < 3; z++ {
					idx := st.neighbor(x, y, z)
					dist := cellDistance(idx, p.Position)

					c := &out[g.Index(idx[0], idx[1], idx[2])]
					c.Velocity = c.Velocity.Add(impulse.Mul(st.weight(x, y, z)).Mul3x1(dist))
				}
			}
		}
	}
}

// resolveGrid converts momentum to velocity for cells in the x-slab [x0, x1), applies gravity
// and zeroes velocity components within two cells of the domain edges.
func (s *Simulation) resolveGrid(_, x0, x1 int) {
	g := s.grid
	dx, dy, dz := g.dims[0], g.dims[1], g.dims[2]
	dv := s.gravity.Mul(s.timestep)

	for x := x0; x < x1; x++ {
		for y := 0; y < dy; y++ {
			for z := 0; z < dz; z++ {
				c := &g.cells[g.Index(x, y, z)]
				if c.Mass <= 0 {
					continue
				}

				c.Velocity = c.Velocity.Mul(1 / c.Mass).Add(dv)

				if x < 2 || x > dx-3 {
					c.Velocity[0] = 0
				}
				if y < 2 || y > dy-3 {
					c.Velocity[1] = 0
				}
				if z < 2 || z > dz-3 {
					c.Velocity[2] = 0
				}
			}
		}
	}
}

// gather runs G2P and advection over all particles and returns the lowest index of a
// particle whose position became NaN, or -1.
func (s *Simulation) gather() int {
	if !s.parallel() {
		return s.gatherRange(0, len(s.particles))
	}

	bad := make([]int, s.pool.numWorkers)
	for i := range bad {
		bad[i] = -1
	}
	s.pool.run(len(s.particles), func(chunk, start, end int) {
		bad[chunk] = s.gatherRange(start, end)
	})
	for _, b := range bad {
		if b >= 0 {
			return b
		}
	}
	return -1
}

func (s *Simulation) gatherRange(start, end int) int {
	g := s.grid
	dt := s.timestep
	lower := s.boundary
	upper := mgl32.Vec3{
		float32(g.dims[0]) - 1 - s.boundary,
		float32(g.dims[1]) - 1 - s.boundary,
		float32(g.dims[2]) - 1 - s.boundary,
	}
	bad := -1

	for i := start; i < end; i++ {
		p := &s.particles[i]
		st := newStencil(p.Position)

		var vel mgl32.Vec3
		var grad mgl32.Mat3
		for x := 0; x < 3; x++ {
			for y := 0; y < 3; y++ {
				for z := 0; z < 3; z++ {
					idx := st.neighbor(x, y, z)
					dist := cellDistance(idx, p.Position)

					weighted := g.cells[g.Index(idx[0], idx[1], idx[2])].Velocity.Mul(st.weight(x, y, z))
					vel = vel.Add(weighted)
					addOuter(&grad, weighted, dist)
				}
			}
		}
		p.Velocity = vel
		p.VelocityGradient = grad.Mul(gradientScale)

		p.Position = g.clampPosition(p.Position.Add(p.Velocity.Mul(dt)))

		// Predictive soft boundary: push back velocities that would enter the boundary zone.
		predicted := p.Position.Add(p.Velocity.Mul(dt))
		for a := 0; a < 3; a++ {
			if predicted[a] < lower {
				p.Velocity[a] += (lower - predicted[a]) * s.boundaryElasticity
			}
			if predicted[a] > upper[a] {
				p.Velocity[a] += (upper[a] - predicted[a]) * s.boundaryElasticity
			}
		}

		if bad < 0 && hasNaN(p.Position) {
			bad = i
		}
	}
	return bad
}

func hasNaN(v mgl32.Vec3) bool {
	return math.IsNaN(float64(v[0])) || math.IsNaN(float64(v[1])) || math.IsNaN(float64(v[2]))
}
