package mpm

import "github.com/go-gl/mathgl/mgl32"

// stencil holds the quadratic B-spline weights of one particle over its 3x3x3 cell neighborhood.
// Every transfer phase builds its weights through newStencil so the kernel math stays identical.
type stencil struct {
	base [3]int        // truncated particle position, the enclosing cell
	w    [3]mgl32.Vec3 // w[k][axis] is the weight for neighbor offset k-1 along axis
}

func newStencil(p mgl32.Vec3) stencil {
	var s stencil
	for a := 0; a < 3; a++ {
		c := int(p[a])
		d := p[a] - float32(c) - 0.5 // offset from the enclosing cell center, in [-0.5, 0.5]
		s.base[a] = c
		s.w[0][a] = 0.5 * (0.5 - d) * (0.5 - d)
		s.w[1][a] = 0.75 - d*d
		s.w[2][a] = 0.5 * (0.5 + d) * (0.5 + d)
	}
	return s
}

// weight returns the separable 3D weight for neighbor offsets (x-1, y-1, z-1).
func (s *stencil) weight(x, y, z int) float32 {
	return s.w[x][0] * s.w[y][1] * s.w[z][2]
}

// neighbor returns the coordinate of neighbor (x-1, y-1, z-1).
func (s *stencil) neighbor(x, y, z int) [3]int {
	return [3]int{s.base[0] + x - 1, s.base[1] + y - 1, s.base[2] + z - 1}
}

// CellCenter returns the position of the center of cell idx. Cell (i, j, k) spans
// [i, i+1) on each axis, so its center sits half a cell past its index.
func CellCenter(idx [3]int) mgl32.Vec3 {
	return mgl32.Vec3{float32(idx[0]) + 0.5, float32(idx[1]) + 0.5, float32(idx[2]) + 0.5}
}

// cellDistance returns the vector from the particle to the center of cell idx.
func cellDistance(idx [3]int, p mgl32.Vec3) mgl32.Vec3 {
	return CellCenter(idx).Sub(p)
}

// addOuter accumulates the outer product a*b^T into the column-major matrix m.
func addOuter(m *mgl32.Mat3, a, b mgl32.Vec3) {
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m[col*3+row] += a[row] * b[col]
		}
	}
}
