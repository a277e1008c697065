package physics

import (
	"fluidsim/core"
	"fluidsim/gpu"
)

// ghost selects the wall convention of a sampled field
type ghost int

const (
	ghostMirror ghost = iota // scalars: copy the edge cell
	ghostNormal              // velocity component: negate across walls of its own axis
)

// grid reads one node field extended by a single ghost layer on every
// side. Seams read the neighbor's face cell from its halo, walls (absent
// or stale neighbors) use the field's ghost convention.
type grid struct {
	T    int
	data []float64
	halo [core.NumDirections][]float64 // nil on walls

	rule ghost
	axis core.Axis // component axis for ghostNormal
}

func newGrid(p *gpu.Pool, data []float64, f core.Field) *grid {
	g := &grid{T: p.CubeSize, data: data}
	switch f {
	case core.FieldVelocityU:
		g.rule, g.axis = ghostNormal, core.AxisX
	case core.FieldVelocityV:
		g.rule, g.axis = ghostNormal, core.AxisY
	case core.FieldVelocityW:
		g.rule, g.axis = ghostNormal, core.AxisZ
	}
	for _, d := range core.Directions {
		if h := &p.Halo[d]; h.Open() {
			g.halo[d] = h.Get(f).Data()
		}
	}
	return g
}

// at returns the value at (x,y,z) with every coordinate in [-1,T].
// Edges and corners outside the node average their single-face ghosts.
func (g *grid) at(x, y, z int) float64 {
	T := g.T
	outX := x < 0 || x >= T
	outY := y < 0 || y >= T
	outZ := z < 0 || z >= T

	switch {
	case !outX && !outY && !outZ:
		return g.data[z*T*T+y*T+x]
	case outX && !outY && !outZ:
		return g.face(core.AxisX, x, y, z)
	case !outX && outY && !outZ:
		return g.face(core.AxisY, x, y, z)
	case !outX && !outY && outZ:
		return g.face(core.AxisZ, x, y, z)
	}

	cx, cy, cz := clampCell(x, T), clampCell(y, T), clampCell(z, T)
	sum, n := 0.0, 0
	if outX {
		sum += g.face(core.AxisX, x, cy, cz)
		n++
	}
	if outY {
		sum += g.face(core.AxisY, cx, y, cz)
		n++
	}
	if outZ {
		sum += g.face(core.AxisZ, cx, cy, z)
		n++
	}
	return sum / float64(n)
}

// face returns the ghost value for a cell lying outside the node along a
// single axis only.
func (g *grid) face(a core.Axis, x, y, z int) float64 {
	T := g.T
	var dir core.Direction
	var ex, ey, ez int // edge cell inside this node
	var nx, ny, nz int // face cell inside the neighbor
	ex, ey, ez = x, y, z
	nx, ny, nz = x, y, z
	switch a {
	case core.AxisX:
		if x < 0 {
			dir, ex, nx = core.Left, 0, T-1
		} else {
			dir, ex, nx = core.Right, T-1, 0
		}
	case core.AxisY:
		if y < 0 {
			dir, ey, ny = core.Down, 0, T-1
		} else {
			dir, ey, ny = core.Up, T-1, 0
		}
	default:
		if z < 0 {
			dir, ez, nz = core.Back, 0, T-1
		} else {
			dir, ez, nz = core.Front, T-1, 0
		}
	}

	if h := g.halo[dir]; h != nil {
		return h[nz*T*T+ny*T+nx]
	}
	v := g.data[ez*T*T+ey*T+ex]
	if g.rule == ghostNormal && g.axis == a {
		return -v
	}
	return v
}

func clampCell(v, T int) int {
	if v < 0 {
		return 0
	}
	if v >= T {
		return T - 1
	}
	return v
}

// cellCoord unpacks a linear cell index of a node of edge T
func cellCoord(i, T int) (x, y, z int) {
	return i % T, (i / T) % T, i / (T * T)
}
