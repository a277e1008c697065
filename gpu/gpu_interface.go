package gpu

import "context"

// Device is a compute backend holding node fields in its own memory.
// Kernels run through Launch and address buffers through Buffer.Data.
type Device interface {
	Name() string

	// Alloc reserves a zeroed buffer of the given number of cells. It returns
	// *core.AllocationFailure when the device memory budget is exhausted.
	Alloc(cells int) (*Buffer, error)
	Release(b *Buffer)

	Upload(ctx context.Context, dst *Buffer, src []float64) error
	Download(ctx context.Context, dst []float64, src *Buffer) error

	// Launch runs fn(i) for every i in [0,n) and returns when all finished.
	Launch(n int, fn func(i int))

	Cleanup()
}
