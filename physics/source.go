package physics

import (
	"fluidsim/core"
	"fluidsim/gpu"
)

// addSource injects rate*dt density into every Source cell and lifts the
// vertical velocity there by lift*dt.
func addSource(p *gpu.Pool, dt, rate, lift float64) {
	obstacle := p.Active.Obstacle.Data()
	density := p.Active.Density.Data()
	v := p.Active.V.Data()

	p.Device().Launch(p.Cells(), func(i int) {
		if core.ObstacleMask(obstacle[i]) != core.Source {
			return
		}
		density[i] += dt * rate
		if lift != 0 {
			v[i] += dt * lift
		}
	})
}
