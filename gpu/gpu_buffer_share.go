package gpu

import (
	"fmt"

	"fluidsim/core"
)

// FieldSet holds device copies of a node's staged fields
type FieldSet struct {
	Density  *Buffer
	U, V, W  *Buffer
	Obstacle *Buffer // nil in Prev
}

// Get returns the buffer of a staged field
func (s *FieldSet) Get(f core.Field) *Buffer {
	switch f {
	case core.FieldDensity:
		return s.Density
	case core.FieldVelocityU:
		return s.U
	case core.FieldVelocityV:
		return s.V
	case core.FieldVelocityW:
		return s.W
	case core.FieldObstacle:
		return s.Obstacle
	}
	panic(fmt.Sprintf("unknown field %d", int(f)))
}

// Velocity returns the three velocity components in axis order
func (s *FieldSet) Velocity() [3]*Buffer {
	return [3]*Buffer{s.U, s.V, s.W}
}

// HaloState tells the solver how to treat one face of the active node
type HaloState int

const (
	HaloAbsent HaloState = iota // domain wall, slot contents meaningless
	HaloFresh                   // neighbor data loaded this tick
	HaloStale                   // transfer failed, treated as a wall
)

func (s HaloState) String() string {
	switch s {
	case HaloAbsent:
		return "absent"
	case HaloFresh:
		return "fresh"
	case HaloStale:
		return "stale"
	}
	return fmt.Sprintf("HaloState(%d)", int(s))
}

// HaloSlot holds a full copy of one neighbor's density, velocity and
// encoded obstacle mask
type HaloSlot struct {
	FieldSet
	State HaloState
}

// Open reports whether the face is a seam whose data may be read
func (h *HaloSlot) Open() bool {
	return h.State == HaloFresh
}

// Pool is the set of device buffers one lane needs to integrate a node
type Pool struct {
	device   Device
	CubeSize int

	Active FieldSet
	Prev   FieldSet // x0 snapshots for diffusion and advection
	Halo   [core.NumDirections]HaloSlot

	Pressure   *Buffer
	Divergence *Buffer
	Scratch    *Buffer

	all []*Buffer
}

// NewPool allocates every buffer for nodes of edge cubeSize. On failure
// the buffers already acquired are released before the error is returned.
func NewPool(dev Device, cubeSize int) (*Pool, error) {
	p := &Pool{device: dev, CubeSize: cubeSize}
	cells := cubeSize * cubeSize * cubeSize

	alloc := func(dst **Buffer) error {
		b, err := dev.Alloc(cells)
		if err != nil {
			return err
		}
		*dst = b
		p.all = append(p.all, b)
		return nil
	}

	targets := []**Buffer{
		&p.Active.Density, &p.Active.U, &p.Active.V, &p.Active.W, &p.Active.Obstacle,
		&p.Prev.Density, &p.Prev.U, &p.Prev.V, &p.Prev.W,
		&p.Pressure, &p.Divergence, &p.Scratch,
	}
	for d := range p.Halo {
		h := &p.Halo[d]
		targets = append(targets, &h.Density, &h.U, &h.V, &h.W, &h.Obstacle)
	}

	for _, dst := range targets {
		if err := alloc(dst); err != nil {
			p.Release()
			return nil, err
		}
	}
	core.Logger().Debug("device pool allocated", "device", dev.Name(), "buffers", len(p.all))
	return p, nil
}

// Device returns the backend owning the pool's buffers
func (p *Pool) Device() Device {
	return p.device
}

// Cells returns CubeSize³
func (p *Pool) Cells() int {
	return p.CubeSize * p.CubeSize * p.CubeSize
}

// Buffers returns how many device buffers the pool holds
func (p *Pool) Buffers() int {
	return len(p.all)
}

// SwapScratch exchanges the scratch buffer with *dst. Jacobi sweeps use it
// to ping-pong without copying.
func (p *Pool) SwapScratch(dst **Buffer) {
	*dst, p.Scratch = p.Scratch, *dst
}

// Clear zeroes every buffer and marks all halos absent
func (p *Pool) Clear() {
	for _, b := range p.all {
		clear(b.Data())
	}
	for d := range p.Halo {
		p.Halo[d].State = HaloAbsent
	}
}

// Release returns every buffer to the device. The pool is unusable after.
func (p *Pool) Release() {
	for _, b := range p.all {
		p.device.Release(b)
	}
	p.all = nil
}
