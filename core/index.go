package core

import "fmt"

// Linearize maps (x,y,z) inside a cube of edge t to its row-major offset
// z*t*t + y*t + x. The same rule addresses nodes in the lattice.
func Linearize(x, y, z, t int) int {
	if x < 0 || x >= t || y < 0 || y >= t || z < 0 || z >= t {
		panic(fmt.Sprintf("index (%d,%d,%d) out of range for extent %d", x, y, z, t))
	}
	return z*t*t + y*t + x
}

// Unlinearize is the inverse of Linearize
func Unlinearize(idx, t int) (x, y, z int) {
	if t <= 0 || idx < 0 || idx >= t*t*t {
		panic(fmt.Sprintf("offset %d out of range for extent %d", idx, t))
	}
	x = idx % t
	y = (idx / t) % t
	z = idx / (t * t)
	return x, y, z
}

// InRange reports whether every component of c lies in [0, t)
func InRange(c Coord, t int) bool {
	return c.I >= 0 && c.I < t && c.J >= 0 && c.J < t && c.K >= 0 && c.K < t
}
