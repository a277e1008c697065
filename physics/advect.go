package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"fluidsim/core"
	"fluidsim/gpu"
)

// advect moves density and all three velocity components along the
// velocity field with a semi-Lagrangian backward trace. Every field is
// snapshotted into Prev first so all traces read the pre-step state.
func advect(p *gpu.Pool, dt float64) {
	for _, f := range core.StagedFields {
		copy(p.Prev.Get(f).Data(), p.Active.Get(f).Data())
	}

	T := p.CubeSize
	u, v, w := p.Prev.U.Data(), p.Prev.V.Data(), p.Prev.W.Data()
	lo, hi := -0.5, float64(T)-0.5

	for _, f := range core.StagedFields {
		src := newGrid(p, p.Prev.Get(f).Data(), f)
		dst := p.Active.Get(f).Data()

		p.Device().Launch(p.Cells(), func(i int) {
			x, y, z := cellCoord(i, T)
			cell := mgl64.Vec3{float64(x), float64(y), float64(z)}
			vel := mgl64.Vec3{u[i], v[i], w[i]}
			pos := cell.Sub(vel.Mul(dt))
			for a := 0; a < 3; a++ {
				pos[a] = mgl64.Clamp(pos[a], lo, hi)
			}
			dst[i] = trilinear(src, pos)
		})
	}
}

// trilinear samples g at a continuous position in node cell coordinates
func trilinear(g *grid, pos mgl64.Vec3) float64 {
	fx, fy, fz := math.Floor(pos[0]), math.Floor(pos[1]), math.Floor(pos[2])
	i0, j0, k0 := int(fx), int(fy), int(fz)
	s1, t1, r1 := pos[0]-fx, pos[1]-fy, pos[2]-fz
	s0, t0, r0 := 1-s1, 1-t1, 1-r1

	c00 := s0*g.at(i0, j0, k0) + s1*g.at(i0+1, j0, k0)
	c10 := s0*g.at(i0, j0+1, k0) + s1*g.at(i0+1, j0+1, k0)
	c01 := s0*g.at(i0, j0, k0+1) + s1*g.at(i0+1, j0, k0+1)
	c11 := s0*g.at(i0, j0+1, k0+1) + s1*g.at(i0+1, j0+1, k0+1)

	return r0*(t0*c00+t1*c10) + r1*(t0*c01+t1*c11)
}
