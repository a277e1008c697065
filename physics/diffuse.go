package physics

import (
	"fluidsim/core"
	"fluidsim/gpu"
)

// diffuse relaxes the active field f toward the implicit diffusion solution
// with a fixed number of Jacobi sweeps:
//
//	x = (x0 + a*(sum of the 6 neighbors of x)) / (1 + 6a),  a = dt*coeff
//
// x0 is snapshotted into the matching Prev buffer first. With coeff == 0
// the field is left untouched.
func diffuse(p *gpu.Pool, f core.Field, dt, coeff float64, iterations int) {
	a := dt * coeff
	if a == 0 || iterations <= 0 {
		return
	}

	dev := p.Device()
	x0 := p.Prev.Get(f).Data()
	copy(x0, p.Active.Get(f).Data())

	T := p.CubeSize
	denom := 1 + 6*a
	for it := 0; it < iterations; it++ {
		cur := activeSlot(p, f)
		src := newGrid(p, (*cur).Data(), f)
		dst := p.Scratch.Data()

		dev.Launch(p.Cells(), func(i int) {
			x, y, z := cellCoord(i, T)
			sum := src.at(x-1, y, z) + src.at(x+1, y, z) +
				src.at(x, y-1, z) + src.at(x, y+1, z) +
				src.at(x, y, z-1) + src.at(x, y, z+1)
			dst[i] = (x0[i] + a*sum) / denom
		})
		p.SwapScratch(cur)
	}
}

// activeSlot returns the address of the active buffer of f so sweeps can
// swap it with scratch.
func activeSlot(p *gpu.Pool, f core.Field) **gpu.Buffer {
	switch f {
	case core.FieldDensity:
		return &p.Active.Density
	case core.FieldVelocityU:
		return &p.Active.U
	case core.FieldVelocityV:
		return &p.Active.V
	case core.FieldVelocityW:
		return &p.Active.W
	}
	panic("diffuse: obstacle field has no dynamics")
}
