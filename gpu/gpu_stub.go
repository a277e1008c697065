package gpu

import (
	"fmt"
	"strings"
)

// Options configures device creation
type Options struct {
	MemoryBudget int64
	Workers      int
}

// NewDevice returns the named compute backend. Only the CPU backend is
// built in; hardware backends report that they are unavailable.
func NewDevice(backend string, opts Options) (Device, error) {
	switch strings.ToLower(backend) {
	case "", "cpu":
		return NewCPUDevice(opts.MemoryBudget, opts.Workers), nil
	case "metal":
		return nil, fmt.Errorf("Metal GPU acceleration is not available in this build")
	case "opencl":
		return nil, fmt.Errorf("OpenCL acceleration is not available in this build")
	case "cuda":
		return nil, fmt.Errorf("CUDA acceleration is not available in this build")
	}
	return nil, fmt.Errorf("unknown compute backend %q", backend)
}
