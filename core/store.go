package core

import (
	"fmt"
	"sync"
)

// HostNode holds the host-side state of one node. Every array is
// CubeSize³ long and addressed with Linearize.
type HostNode struct {
	Density  []float64
	U, V, W  []float64
	Obstacle []ObstacleMask

	// Active is true only for the node currently selected by the cursor.
	Active bool

	mu sync.Mutex
}

// Array returns the float array backing a staged field
func (h *HostNode) Array(f Field) []float64 {
	switch f {
	case FieldDensity:
		return h.Density
	case FieldVelocityU:
		return h.U
	case FieldVelocityV:
		return h.V
	case FieldVelocityW:
		return h.W
	}
	panic(fmt.Sprintf("field %s has no float array", f))
}

// Lock guards the node's arrays while a lane works on it or its neighbor.
func (h *HostNode) Lock()   { h.mu.Lock() }
func (h *HostNode) Unlock() { h.mu.Unlock() }

// Store owns the host arrays of every node in a topology
type Store struct {
	CubeSize int
	Nodes    []*HostNode
}

// BytesPerNode is the host footprint of one node of edge cubeSize.
func BytesPerNode(cubeSize int) int64 {
	cells := int64(cubeSize) * int64(cubeSize) * int64(cubeSize)
	return cells * (4*8 + 1)
}

// NewStore allocates zeroed host arrays for every node. A positive
// maxBytes caps the total footprint; exceeding it yields an
// *AllocationFailure and nothing is retained.
func NewStore(topo *Topology, cubeSize int, maxBytes int64) (*Store, error) {
	if cubeSize <= 0 {
		return nil, fmt.Errorf("invalid cube size %d", cubeSize)
	}
	total := BytesPerNode(cubeSize) * int64(topo.NumNodes())
	if maxBytes > 0 && total > maxBytes {
		return nil, &AllocationFailure{Resource: "host", Bytes: total, Err: ErrOutOfMemory}
	}

	cells := cubeSize * cubeSize * cubeSize
	s := &Store{
		CubeSize: cubeSize,
		Nodes:    make([]*HostNode, topo.NumNodes()),
	}
	for i := range s.Nodes {
		s.Nodes[i] = &HostNode{
			Density:  make([]float64, cells),
			U:        make([]float64, cells),
			V:        make([]float64, cells),
			W:        make([]float64, cells),
			Obstacle: make([]ObstacleMask, cells),
		}
	}
	Logger().Info("host store allocated",
		"nodes", len(s.Nodes), "cube", cubeSize, "bytes", total)
	return s, nil
}

// Cells returns CubeSize³
func (s *Store) Cells() int {
	return s.CubeSize * s.CubeSize * s.CubeSize
}

// Node returns the host state of node idx
func (s *Store) Node(idx int) *HostNode {
	return s.Nodes[idx]
}

// SetObstacle classifies one cell. Out-of-range arguments are a
// programming error and panic.
func (s *Store) SetObstacle(node, x, y, z int, mask ObstacleMask) {
	if node < 0 || node >= len(s.Nodes) {
		panic(fmt.Sprintf("node index %d out of range [0,%d)", node, len(s.Nodes)))
	}
	if mask > Boundary {
		panic(fmt.Sprintf("invalid obstacle mask %d", uint8(mask)))
	}
	h := s.Nodes[node]
	h.Lock()
	h.Obstacle[Linearize(x, y, z, s.CubeSize)] = mask
	h.Unlock()
}

// Clear zeroes density, velocity and obstacle arrays of every node.
// Selection flags are left as they are.
func (s *Store) Clear() {
	for _, h := range s.Nodes {
		h.Lock()
		clear(h.Density)
		clear(h.U)
		clear(h.V)
		clear(h.W)
		clear(h.Obstacle)
		h.Unlock()
	}
}

// Release drops every host array.
func (s *Store) Release() {
	for i := range s.Nodes {
		s.Nodes[i] = nil
	}
	s.Nodes = nil
}
