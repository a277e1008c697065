package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"fluidsim/core"
)

// Source is the read side of a simulation needed to build a volume
type Source interface {
	Topology() *core.Topology
	CubeSize() int
	Density(node int) core.ScalarField
}

// Volume is the density of the whole lattice packed into bytes, one per
// cell, in the same z-major order as a node.
type Volume struct {
	Size int // cells per axis
	Data []uint8
	Max  float64 // density mapped to 255
}

// At returns the byte at global cell (x,y,z)
func (v *Volume) At(x, y, z int) uint8 {
	return v.Data[core.Linearize(x, y, z, v.Size)]
}

// Assemble copies every node's density into a single volume. Densities
// are divided by scale and clamped to [0,1]; a non-positive scale uses the
// largest density found.
func Assemble(src Source, scale float64) *Volume {
	topo := src.Topology()
	T := src.CubeSize()
	n := topo.NodesPerAxis

	fields := make([]core.ScalarField, topo.NumNodes())
	for i := range fields {
		fields[i] = src.Density(i)
	}
	if scale <= 0 {
		for _, f := range fields {
			scale = math.Max(scale, floats.Max(f.Values()))
		}
	}

	vol := &Volume{Size: n * T, Max: scale}
	vol.Data = make([]uint8, vol.Size*vol.Size*vol.Size)
	if scale <= 0 {
		return vol
	}

	for idx, f := range fields {
		c := topo.Node(idx).Coord
		values := f.Values()
		for z := 0; z < T; z++ {
			for y := 0; y < T; y++ {
				for x := 0; x < T; x++ {
					d := values[core.Linearize(x, y, z, T)] / scale
					g := core.Linearize(c.I*T+x, c.J*T+y, c.K*T+z, vol.Size)
					vol.Data[g] = toByte(d)
				}
			}
		}
	}
	return vol
}

func toByte(v float64) uint8 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}

// Slice extracts the plane index along axis as a row-major width×height
// byte image. For AxisZ rows are y and columns x; for AxisY rows are z
// and columns x; for AxisX rows are y and columns z.
func (v *Volume) Slice(axis core.Axis, index int) ([]uint8, error) {
	if index < 0 || index >= v.Size {
		return nil, fmt.Errorf("slice %d out of range [0,%d)", index, v.Size)
	}
	S := v.Size
	out := make([]uint8, S*S)
	for row := 0; row < S; row++ {
		for col := 0; col < S; col++ {
			var x, y, z int
			switch axis {
			case core.AxisX:
				x, y, z = index, row, col
			case core.AxisY:
				x, y, z = col, index, row
			default:
				x, y, z = col, row, index
			}
			out[row*S+col] = v.At(x, y, z)
		}
	}
	return out, nil
}
