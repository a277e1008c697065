package physics

import (
	"fluidsim/core"
	"fluidsim/gpu"
)

// Boundary enforces obstacle conditions on the active node's device fields.
// Domain walls need no work here: they are handled by the ghost conventions
// of the sampler. Across an open seam the neighbor's staged obstacle mask
// is consulted like a local one.
type Boundary struct{}

// Apply zeroes density and velocity inside Boundary cells and the normal
// velocity component of fluid cells facing a Boundary cell, including one
// on the far side of an open seam. Source cells keep their density.
func (Boundary) Apply(p *gpu.Pool) {
	T := p.CubeSize
	obstacle := p.Active.Obstacle.Data()
	density := p.Active.Density.Data()
	vel := [3][]float64{p.Active.U.Data(), p.Active.V.Data(), p.Active.W.Data()}
	strides := [3]int{1, T, T * T}

	// seam[a][side] is the neighbor mask across that face, nil when closed
	var seam [3][2][]float64
	for a := range axisFaces {
		for side, d := range axisFaces[a] {
			if h := &p.Halo[d]; h.Open() {
				seam[a][side] = h.Obstacle.Data()
			}
		}
	}

	p.Device().Launch(p.Cells(), func(i int) {
		if core.ObstacleMask(obstacle[i]) == core.Boundary {
			density[i] = 0
			vel[0][i], vel[1][i], vel[2][i] = 0, 0, 0
			return
		}
		x, y, z := cellCoord(i, T)
		pos := [3]int{x, y, z}
		for a := 0; a < 3; a++ {
			s := strides[a]
			if facesBoundary(obstacle, seam[a][0], pos[a] > 0, i-s, i+(T-1)*s) ||
				facesBoundary(obstacle, seam[a][1], pos[a] < T-1, i+s, i-(T-1)*s) {
				vel[a][i] = 0
			}
		}
	})
}

// facesBoundary checks the neighbor on one side of a cell: local cell j
// when inside the node, otherwise cell k of the seam mask if there is one.
func facesBoundary(local, seam []float64, inside bool, j, k int) bool {
	if inside {
		return core.ObstacleMask(local[j]) == core.Boundary
	}
	return seam != nil && core.ObstacleMask(seam[k]) == core.Boundary
}
