package core

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is wrapped by allocation failures on host or device.
var ErrOutOfMemory = errors.New("out of memory")

// TopologyError reports an invalid lattice size at construction time
type TopologyError struct {
	NodesPerAxis int
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("invalid lattice size %d: nodes per axis must be positive", e.NodesPerAxis)
}

// AllocationFailure reports exhausted host or device memory. Everything
// acquired before the failure has been released when it is returned.
type AllocationFailure struct {
	Resource string // "host" or the device name
	Bytes    int64
	Err      error
}

func (e *AllocationFailure) Error() string {
	return fmt.Sprintf("allocate %d bytes on %s: %v", e.Bytes, e.Resource, e.Err)
}

func (e *AllocationFailure) Unwrap() error { return e.Err }

// TransferFailure reports a failed host<->device copy of one field in one
// direction. Direction is Center for the active node's own fields.
type TransferFailure struct {
	Direction Direction
	Field     Field
	ToDevice  bool
	Err       error
}

func (e *TransferFailure) Error() string {
	way := "device->host"
	if e.ToDevice {
		way = "host->device"
	}
	return fmt.Sprintf("transfer %s %s (%s): %v", e.Direction, e.Field, way, e.Err)
}

func (e *TransferFailure) Unwrap() error { return e.Err }

// InvalidSelection reports a cursor request outside the lattice. The
// previous selection has already been cleared.
type InvalidSelection struct {
	Coord   Coord
	Index   int
	ByIndex bool
	Extent  int
}

func (e *InvalidSelection) Error() string {
	if e.ByIndex {
		return fmt.Sprintf("node index %d out of range [0,%d)", e.Index, e.Extent)
	}
	return fmt.Sprintf("node %s out of range [0,%d)", e.Coord, e.Extent)
}
