package mpm

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrDiverged is matched by every DivergenceError.
var ErrDiverged = errors.New("mpm: simulation diverged")

// DivergenceError reports a particle whose position became NaN during a step.
// The simulation state is corrupt once this is returned; only Reset recovers it.
type DivergenceError struct {
	Step     uint64
	Particle int
	Position mgl32.Vec3
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("mpm: particle %d diverged at step %d (position %v)", e.Particle, e.Step, e.Position)
}

func (e *DivergenceError) Unwrap() error {
	return ErrDiverged
}
