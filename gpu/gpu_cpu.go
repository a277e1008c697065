package gpu

import (
	"context"
	"runtime"
	"sync"

	"fluidsim/core"
)

// minChunk keeps tiny launches from paying goroutine overhead
const minChunk = 256

// CPUDevice implements Device using host memory and CPU parallelization
type CPUDevice struct {
	numWorkers int
	budget     int64

	mu   sync.Mutex
	used int64
}

// NewCPUDevice creates a CPU backend. A zero budget means unlimited memory,
// zero workers means GOMAXPROCS.
func NewCPUDevice(budget int64, workers int) *CPUDevice {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	core.Logger().Info("initializing CPU compute", "workers", workers, "budget", budget)
	return &CPUDevice{numWorkers: workers, budget: budget}
}

func (c *CPUDevice) Name() string { return "cpu" }

// Workers is the number of goroutines a launch may split into
func (c *CPUDevice) Workers() int { return c.numWorkers }

// Used reports the bytes currently allocated
func (c *CPUDevice) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *CPUDevice) Alloc(cells int) (*Buffer, error) {
	bytes := int64(cells) * 8
	c.mu.Lock()
	if c.budget > 0 && c.used+bytes > c.budget {
		c.mu.Unlock()
		return nil, &core.AllocationFailure{Resource: c.Name(), Bytes: bytes, Err: core.ErrOutOfMemory}
	}
	c.used += bytes
	c.mu.Unlock()
	return &Buffer{data: make([]float64, cells)}, nil
}

func (c *CPUDevice) Release(b *Buffer) {
	if b == nil || b.released {
		return
	}
	c.mu.Lock()
	c.used -= b.Bytes()
	c.mu.Unlock()
	b.released = true
	b.data = nil
}

func (c *CPUDevice) Upload(ctx context.Context, dst *Buffer, src []float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkCopy(dst.Len(), len(src)); err != nil {
		return err
	}
	copy(dst.Data(), src)
	return nil
}

func (c *CPUDevice) Download(ctx context.Context, dst []float64, src *Buffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkCopy(len(dst), src.Len()); err != nil {
		return err
	}
	copy(dst, src.Data())
	return nil
}

// Launch splits [0,n) into contiguous chunks, one goroutine each
func (c *CPUDevice) Launch(n int, fn func(i int)) {
	if n <= 0 {
		return
	}
	workers := c.numWorkers
	if maxWorkers := (n + minChunk - 1) / minChunk; workers > maxWorkers {
		workers = maxWorkers
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Cleanup releases CPU resources
func (c *CPUDevice) Cleanup() {
	// Buffers are garbage collected; nothing else is held.
}
