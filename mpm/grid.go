// Package mpm implements a Material Point Method fluid solver on a fixed 3D background grid.
//
// Grid cells are always spaced by 1 and the whole simulation is scaled at render time, so the
// world position -> cell index mapping is a plain truncation of the particle position.
package mpm

import "github.com/go-gl/mathgl/mgl32"

// MinGridDim is the smallest grid dimension that still fits the 3-cell interpolation stencil
// plus the 2-cell velocity boundary on each side.
const MinGridDim = 6

// Cell is one lattice site of the background grid.
type Cell struct {
	Velocity mgl32.Vec3 // momentum during scatter, velocity after grid resolution
	Mass     float32
}

// Grid is a flat row-major array of cells.
type Grid struct {
	dims  [3]int
	cells []Cell
}

// NewGrid allocates a grid, raising any dimension below MinGridDim up to it.
func NewGrid(x, y, z int) *Grid {
	dims := ClampGridSize([3]int{x, y, z})
	return &Grid{
		dims:  dims,
		cells: make([]Cell, dims[0]*dims[1]*dims[2]),
	}
}

// ClampGridSize raises every dimension below MinGridDim up to it.
func ClampGridSize(dims [3]int) [3]int {
	for i := range dims {
		if dims[i] < MinGridDim {
			dims[i] = MinGridDim
		}
	}
	return dims
}

// Index maps a cell coordinate to its flat index. No bounds checking is done.
func (g *Grid) Index(x, y, z int) int {
	return x*g.dims[1]*g.dims[2] + y*g.dims[2] + z
}

// Cell returns the cell at (x, y, z).
func (g *Grid) Cell(x, y, z int) *Cell {
	return &g.cells[g.Index(x, y, z)]
}

// CellAt returns the cell at the given coordinate triple.
func (g *Grid) CellAt(idx [3]int) *Cell {
	return &g.cells[g.Index(idx[0], idx[1], idx[2])]
}

// Cells returns the backing cell slice. Callers must treat it as read-only.
func (g *Grid) Cells() []Cell {
	return g.cells
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

// Dims returns the grid dimensions.
func (g *Grid) Dims() [3]int {
	return g.dims
}

// Reset zeroes mass and velocity of every cell.
func (g *Grid) Reset() {
	clear(g.cells)
}

// upper returns the highest valid particle coordinate per axis (dim - 2).
func (g *Grid) upper() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(g.dims[0]) - 2,
		float32(g.dims[1]) - 2,
		float32(g.dims[2]) - 2,
	}
}

// clampPosition keeps p inside [1, dim-2] on every axis.
func (g *Grid) clampPosition(p mgl32.Vec3) mgl32.Vec3 {
	hi := g.upper()
	for a := 0; a < 3; a++ {
		if p[a] < 1 {
			p[a] = 1
		}
		if p[a] > hi[a] {
			p[a] = hi[a]
		}
	}
	return p
}
