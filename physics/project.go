package physics

import (
	"fluidsim/core"
	"fluidsim/gpu"
)

// DefaultRelaxation is the weight of the pressure Jacobi update
const DefaultRelaxation = 2.0 / 3.0

// lapLine applies the one-dimensional divergence-of-gradient operator that
// is consistent with the central-difference divergence of the velocity:
//
//   - pressure ghosts: walls copy the edge, seams read zero
//   - gradient ghosts: walls negate the edge gradient, seams read zero
//
// so that subtracting the gradient changes the measured divergence by
// exactly this operator.
func lapLine(pv func(n int) float64, j, T int, lowOpen, highOpen bool) float64 {
	P := func(n int) float64 {
		switch {
		case n < 0:
			if lowOpen {
				return 0
			}
			return pv(0)
		case n >= T:
			if highOpen {
				return 0
			}
			return pv(T - 1)
		}
		return pv(n)
	}
	g := func(n int) float64 {
		return (P(n+1) - P(n-1)) / 2
	}
	G := func(n int) float64 {
		switch {
		case n < 0:
			if lowOpen {
				return 0
			}
			return -g(0)
		case n >= T:
			if highOpen {
				return 0
			}
			return -g(T - 1)
		}
		return g(n)
	}
	return (G(j+1) - G(j-1)) / 2
}

// gradLine is the gradient component that pairs with lapLine
func gradLine(pv func(n int) float64, j, T int, lowOpen, highOpen bool) float64 {
	lo, hi := 0.0, 0.0
	if j > 0 {
		lo = pv(j - 1)
	} else if !lowOpen {
		lo = pv(0)
	}
	if j < T-1 {
		hi = pv(j + 1)
	} else if !highOpen {
		hi = pv(T - 1)
	}
	return (hi - lo) / 2
}

// lineDiag returns the coefficient of p(j) in lapLine for every j
func lineDiag(T int, lowOpen, highOpen bool) []float64 {
	diag := make([]float64, T)
	for j := range diag {
		unit := func(n int) float64 {
			if n == j {
				return 1
			}
			return 0
		}
		diag[j] = lapLine(unit, j, T, lowOpen, highOpen)
	}
	return diag
}

var axisFaces = [3][2]core.Direction{
	{core.Left, core.Right},
	{core.Down, core.Up},
	{core.Back, core.Front},
}

// project removes the divergent part of the active velocity. The pressure
// Poisson equation is relaxed with a fixed number of weighted Jacobi sweeps
// and the resulting gradient is subtracted from the velocity.
func project(p *gpu.Pool, iterations int, relaxation float64) {
	T := p.CubeSize
	dev := p.Device()
	strides := [3]int{1, T, T * T}

	var open [3][2]bool
	var diag [3][]float64
	for a := 0; a < 3; a++ {
		open[a][0] = p.Halo[axisFaces[a][0]].Open()
		open[a][1] = p.Halo[axisFaces[a][1]].Open()
		diag[a] = lineDiag(T, open[a][0], open[a][1])
	}

	div := divergence(p)
	clear(p.Pressure.Data())

	lap := func(pr []float64, i int, pos [3]int) (lp, d float64) {
		for a := 0; a < 3; a++ {
			base := i - pos[a]*strides[a]
			s := strides[a]
			pv := func(n int) float64 { return pr[base+n*s] }
			lp += lapLine(pv, pos[a], T, open[a][0], open[a][1])
			d += diag[a][pos[a]]
		}
		return lp, d
	}

	for it := 0; it < iterations; it++ {
		src := p.Pressure.Data()
		dst := p.Scratch.Data()
		dev.Launch(p.Cells(), func(i int) {
			x, y, z := cellCoord(i, T)
			lp, d := lap(src, i, [3]int{x, y, z})
			if d == 0 {
				dst[i] = src[i]
				return
			}
			dst[i] = src[i] + relaxation*(div[i]-lp)/d
		})
		p.SwapScratch(&p.Pressure)
	}

	pressure := p.Pressure.Data()
	comps := [3][]float64{p.Active.U.Data(), p.Active.V.Data(), p.Active.W.Data()}
	dev.Launch(p.Cells(), func(i int) {
		x, y, z := cellCoord(i, T)
		pos := [3]int{x, y, z}
		for a := 0; a < 3; a++ {
			base := i - pos[a]*strides[a]
			s := strides[a]
			pv := func(n int) float64 { return pressure[base+n*s] }
			comps[a][i] -= gradLine(pv, pos[a], T, open[a][0], open[a][1])
		}
	})
}

// divergence computes the central-difference divergence of the active
// velocity into the pool's divergence buffer and returns it.
func divergence(p *gpu.Pool) []float64 {
	T := p.CubeSize
	vel := [3]*grid{
		newGrid(p, p.Active.U.Data(), core.FieldVelocityU),
		newGrid(p, p.Active.V.Data(), core.FieldVelocityV),
		newGrid(p, p.Active.W.Data(), core.FieldVelocityW),
	}
	div := p.Divergence.Data()
	p.Device().Launch(p.Cells(), func(i int) {
		x, y, z := cellCoord(i, T)
		div[i] = (vel[0].at(x+1, y, z)-vel[0].at(x-1, y, z))/2 +
			(vel[1].at(x, y+1, z)-vel[1].at(x, y-1, z))/2 +
			(vel[2].at(x, y, z+1)-vel[2].at(x, y, z-1))/2
	})
	return div
}
