package core

import "fmt"

// ScalarField is a read-only copy of one per-cell scalar array of a node
type ScalarField struct {
	Size   int
	values []float64
}

// NewScalarField copies values into a field of edge size
func NewScalarField(size int, values []float64) ScalarField {
	return ScalarField{Size: size, values: append([]float64(nil), values...)}
}

func (s ScalarField) Value(x, y, z int) (float64, error) {
	if err := checkCell(x, y, z, s.Size); err != nil {
		return 0, err
	}
	return s.values[Linearize(x, y, z, s.Size)], nil
}

// Values returns the backing slice. Callers must not modify it.
func (s ScalarField) Values() []float64 {
	return s.values
}

// VectorField is a read-only copy of a node's velocity components
type VectorField struct {
	Size    int
	u, v, w []float64
}

// NewVectorField copies the three components into a field of edge size
func NewVectorField(size int, u, v, w []float64) VectorField {
	return VectorField{
		Size: size,
		u:    append([]float64(nil), u...),
		v:    append([]float64(nil), v...),
		w:    append([]float64(nil), w...),
	}
}

func (f VectorField) Value(x, y, z int) (float64, float64, float64, error) {
	if err := checkCell(x, y, z, f.Size); err != nil {
		return 0, 0, 0, err
	}
	idx := Linearize(x, y, z, f.Size)
	return f.u[idx], f.v[idx], f.w[idx], nil
}

func checkCell(x, y, z, size int) error {
	if x < 0 || x >= size {
		return fmt.Errorf("x index out of range, must be between 0 and %d", size-1)
	}
	if y < 0 || y >= size {
		return fmt.Errorf("y index out of range, must be between 0 and %d", size-1)
	}
	if z < 0 || z >= size {
		return fmt.Errorf("z index out of range, must be between 0 and %d", size-1)
	}
	return nil
}
