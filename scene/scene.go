// Package scene holds scripted particle emitters that fire at configured simulation steps.
package scene

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/mpmfluid/config"
	"github.com/pthm-cable/mpmfluid/mpm"
)

// Emitter describes what an emitter spawns.
type Emitter struct {
	Shape    mpm.Shape
	Count    int
	Material string // empty = the runner's default material
}

// Trigger describes when an emitter fires.
type Trigger struct {
	AtStep    uint64 // next step at which the emitter fires
	Every     uint64 // steps between firings (0 = fire once)
	Remaining int    // firings left after the next one
}

// Spawner adds particles to a simulation.
type Spawner interface {
	Spawn(shape mpm.Shape, count int, material string) (int, error)
}

// Scene stores emitters as entities in an ECS world.
type Scene struct {
	world   *ecs.World
	mapper  *ecs.Map2[Emitter, Trigger]
	filter  *ecs.Filter2[Emitter, Trigger]
	pending int
}

type firing struct {
	entity  ecs.Entity
	emitter Emitter
	done    bool
}

// New creates a scene from configured emitters.
func New(emitters []config.EmitterConfig) (*Scene, error) {
	world := ecs.NewWorld()
	s := &Scene{
		world:  world,
		mapper: ecs.NewMap2[Emitter, Trigger](world),
		filter: ecs.NewFilter2[Emitter, Trigger](world),
	}

	for i, ec := range emitters {
		shape, err := mpm.ParseShape(ec.Shape)
		if err != nil {
			return nil, fmt.Errorf("emitter %d: %w", i, err)
		}
		s.Add(
			Emitter{Shape: shape, Count: ec.Count, Material: ec.Material},
			Trigger{AtStep: ec.AtStep, Every: ec.Every, Remaining: ec.Repeat},
		)
	}
	return s, nil
}

// Add registers an emitter.
func (s *Scene) Add(e Emitter, t Trigger) {
	if t.Every == 0 {
		t.Remaining = 0
	}
	s.mapper.NewEntity(&e, &t)
	s.pending++
}

// Pending returns the number of emitters that have not been exhausted.
func (s *Scene) Pending() int {
	return s.pending
}

// Update fires every emitter due at step and returns the number of particles spawned.
// Exhausted emitters are removed once the query completes.
func (s *Scene) Update(step uint64, sp Spawner) (int, error) {
	var due []firing

	query := s.filter.Query()
	for query.Next() {
		em, tr := query.Get()
		if step < tr.AtStep {
			continue
		}

		f := firing{entity: query.Entity(), emitter: *em}
		if tr.Remaining > 0 {
			tr.Remaining--
			tr.AtStep = step + tr.Every
		} else {
			f.done = true
		}
		due = append(due, f)
	}

	spawned := 0
	var firstErr error
	for _, f := range due {
		if f.done {
			s.mapper.Remove(f.entity)
			s.pending--
		}
		if firstErr != nil {
			continue
		}
		n, err := sp.Spawn(f.emitter.Shape, f.emitter.Count, f.emitter.Material)
		if err != nil {
			firstErr = fmt.Errorf("emitter at step %d: %w", step, err)
			continue
		}
		spawned += n
	}
	return spawned, firstErr
}
