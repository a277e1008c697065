package gpu

import "fmt"

// Buffer is a block of device memory holding one float per cell
type Buffer struct {
	data     []float64
	released bool
}

// Data exposes the buffer contents to kernels
func (b *Buffer) Data() []float64 {
	if b.released {
		panic("use of released device buffer")
	}
	return b.data
}

func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes is the device footprint of the buffer
func (b *Buffer) Bytes() int64 {
	return int64(len(b.data)) * 8
}

func checkCopy(dst, src int) error {
	if dst != src {
		return fmt.Errorf("size mismatch: %d cells into %d", src, dst)
	}
	return nil
}
