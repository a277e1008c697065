package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"fluidsim/config"
	"fluidsim/core"
	"fluidsim/gpu"
	"fluidsim/physics"
)

// Options sizes and parameterizes a simulation
type Options struct {
	NodesPerAxis int
	CubeSize     int
	Params       physics.Params

	// Workers > 1 integrates nodes of the same parity color concurrently,
	// each worker with its own device pool.
	Workers int

	Backend       string
	DeviceWorkers int   // goroutines per kernel launch, zero for GOMAXPROCS
	DeviceMemory  int64 // bytes, zero for unlimited
	HostMemory    int64 // bytes, zero for unlimited
	Transfer      gpu.TransferPolicy

	// Device overrides Backend when set
	Device gpu.Device
}

// OptionsFromSettings maps loaded settings onto simulation options
func OptionsFromSettings(s config.Settings) Options {
	sim := s.Simulation
	return Options{
		NodesPerAxis: sim.NodesPerAxis,
		CubeSize:     sim.CubeSize,
		Params: physics.Params{
			Dt:                 sim.TimeStep,
			SourceRate:         sim.SourceRate,
			SourceLift:         sim.SourceLift,
			Diffusion:          sim.Diffusion,
			Viscosity:          sim.Viscosity,
			Iterations:         sim.Iterations,
			PressureRelaxation: sim.PressureRelaxation,
		},
		Workers:       sim.Workers,
		Backend:       s.GPU.Backend,
		DeviceWorkers: s.GPU.Workers,
		DeviceMemory:  int64(s.GPU.MemoryMB) << 20,
		HostMemory:    int64(sim.HostMemoryMB) << 20,
		Transfer: gpu.TransferPolicy{
			Timeout: time.Duration(s.GPU.TransferTimeoutMs) * time.Millisecond,
			Retries: s.GPU.TransferRetries,
			Backoff: time.Duration(s.GPU.TransferBackoffMs) * time.Millisecond,
		},
	}
}

// lane is one device pool with the exchange and solver bound to it
type lane struct {
	pool   *gpu.Pool
	halo   *HaloExchange
	solver *physics.Solver
}

// FluidSim owns the lattice, its host and device memory and the tick loop
type FluidSim struct {
	mu sync.RWMutex

	opts    Options
	topo    *core.Topology
	store   *core.Store
	device  gpu.Device
	lanes   []*lane
	cursor  *Cursor
	journal *tickJournal

	tick            uint64
	staleLinks      int
	totalStaleLinks int
	freed           bool
}

// New allocates host and device resources for the lattice. On any
// failure everything acquired so far is released before returning.
func New(opts Options) (*FluidSim, error) {
	topo, err := core.NewTopology(opts.NodesPerAxis)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Transfer == (gpu.TransferPolicy{}) {
		opts.Transfer = gpu.DefaultTransferPolicy
	}

	store, err := core.NewStore(topo, opts.CubeSize, opts.HostMemory)
	if err != nil {
		return nil, err
	}

	device := opts.Device
	if device == nil {
		device, err = gpu.NewDevice(opts.Backend, gpu.Options{MemoryBudget: opts.DeviceMemory, Workers: opts.DeviceWorkers})
		if err != nil {
			store.Release()
			return nil, err
		}
	}

	fs := &FluidSim{
		opts:    opts,
		topo:    topo,
		store:   store,
		device:  device,
		cursor:  NewCursor(topo, store),
		journal: newTickJournal(store.Cells()),
	}
	lanes := min(opts.Workers, topo.NumNodes())
	for i := 0; i < lanes; i++ {
		pool, err := gpu.NewPool(device, opts.CubeSize)
		if err != nil {
			fs.release()
			return nil, err
		}
		fs.lanes = append(fs.lanes, &lane{
			pool:   pool,
			halo:   NewHaloExchange(topo, store, pool, opts.Transfer),
			solver: physics.NewSolver(pool),
		})
	}

	core.Logger().Info("simulation allocated",
		"nodes", topo.NumNodes(), "cube", opts.CubeSize,
		"device", device.Name(), "lanes", len(fs.lanes))
	return fs, nil
}

func (fs *FluidSim) release() {
	for _, l := range fs.lanes {
		l.pool.Release()
	}
	fs.lanes = nil
	fs.store.Release()
	if fs.opts.Device == nil {
		fs.device.Cleanup()
	}
}

// FreeResource releases every host and device buffer. Calling it twice is
// harmless; any other call afterwards panics.
func (fs *FluidSim) FreeResource() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.freed {
		return
	}
	fs.release()
	fs.freed = true
	core.Logger().Info("simulation resources released")
}

func (fs *FluidSim) mustLive() {
	if fs.freed {
		panic("simulation used after FreeResource")
	}
}

// ClearBuffers zeroes all host and device fields, including obstacles
func (fs *FluidSim) ClearBuffers() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mustLive()
	fs.store.Clear()
	for _, l := range fs.lanes {
		l.pool.Clear()
	}
	core.Logger().Info("buffers cleared")
}

// SetObstacle classifies one cell of one node
func (fs *FluidSim) SetObstacle(node, x, y, z int, mask core.ObstacleMask) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mustLive()
	fs.store.SetObstacle(node, x, y, z, mask)
}

// InitBoundary installs the default pattern: a 5×5 source patch on the
// floor of the bottom-center node, everything else blank.
func (fs *FluidSim) InitBoundary() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mustLive()

	n := fs.topo.NodesPerAxis
	node := core.Linearize(n/2, 0, n/2, n)
	T := fs.opts.CubeSize
	half := T / 2
	for k := 0; k < T; k++ {
		for j := 0; j < T; j++ {
			for i := 0; i < T; i++ {
				mask := core.Blank
				if j < 1 && i >= half-2 && i <= half+2 && k >= half-2 && k <= half+2 {
					mask = core.Source
				}
				fs.store.SetObstacle(node, i, j, k, mask)
			}
		}
	}
}

// Topology returns the lattice. It never changes after New.
func (fs *FluidSim) Topology() *core.Topology {
	return fs.topo
}

// Select moves the cursor to node (i,j,k)
func (fs *FluidSim) Select(i, j, k int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mustLive()
	return fs.cursor.Select(i, j, k)
}

// SelectIndex moves the cursor to node idx
func (fs *FluidSim) SelectIndex(idx int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mustLive()
	return fs.cursor.SelectIndex(idx)
}

// FluidSimSolver advances the whole lattice by one tick. A failed transfer
// of the active node aborts the tick and is returned, after every node
// written during the tick has been rolled back to its pre-tick state.
// Failed halo
// directions only mark the link stale for this tick. The cursor's
// selection is restored when the tick ends.
func (fs *FluidSim) FluidSimSolver(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mustLive()

	start := time.Now()
	prev, hadSelection := fs.cursor.Current()
	defer func() {
		if hadSelection {
			_ = fs.cursor.SelectIndex(prev)
		} else {
			fs.cursor.Clear()
		}
	}()

	fs.journal.Begin()
	var stale int
	var err error
	if len(fs.lanes) > 1 {
		stale, err = fs.runLanes(ctx)
	} else {
		stale, err = fs.runSequential(ctx)
	}
	fs.staleLinks = stale
	fs.totalStaleLinks += stale
	if err != nil {
		restored := fs.journal.Rollback(fs.store)
		core.Logger().Warn("tick aborted", "tick", fs.tick+1, "restoredNodes", restored, "err", err)
		return fmt.Errorf("tick %d: %w", fs.tick+1, err)
	}
	fs.tick++
	core.Logger().Debug("tick finished", "tick", fs.tick, "elapsed", time.Since(start), "stale", stale)
	return nil
}

// runSequential walks the nodes in index order with the cursor on the
// node being integrated.
func (fs *FluidSim) runSequential(ctx context.Context) (int, error) {
	l := fs.lanes[0]
	stale := 0
	for idx := range fs.topo.Nodes {
		if err := ctx.Err(); err != nil {
			return stale, err
		}
		if err := fs.cursor.SelectIndex(idx); err != nil {
			return stale, err
		}
		n, err := fs.integrate(ctx, l, idx)
		stale += n
		if err != nil {
			return stale, err
		}
	}
	return stale, nil
}

// integrate runs the full load/solve/store protocol for one node and
// returns how many halo links were stale.
func (fs *FluidSim) integrate(ctx context.Context, l *lane, idx int) (int, error) {
	if err := l.halo.LoadNode(ctx, idx); err != nil {
		l.solver.Abort()
		return 0, err
	}
	// failed directions are already logged and marked stale
	_ = l.halo.LoadNeighbors(ctx, idx)
	stale := len(l.halo.StaleDirections())

	l.solver.MarkLoaded()
	l.solver.Step(fs.opts.Params)

	fs.journal.Record(idx, fs.store.Node(idx))
	if err := l.halo.StoreNode(ctx, idx); err != nil {
		l.solver.Abort()
		return stale, err
	}
	l.solver.MarkUnloaded()

	if err := l.halo.StoreNeighbors(ctx, idx); err != nil {
		var tf *core.TransferFailure
		if errors.As(err, &tf) {
			core.Logger().Warn("halo write-back failed", "node", idx, "direction", tf.Direction, "err", err)
		}
	}
	l.solver.Finish()
	return stale, nil
}

// Status is a snapshot for status lines and external visualizers
type Status struct {
	Tick            uint64
	Cursor          int // -1 when nothing is selected
	CursorCoord     core.Coord
	TotalDensity    float64
	NodeDensity     []float64
	MinDensity      float64
	MaxDensity      float64
	StaleLinks      int // during the last tick
	TotalStaleLinks int
	Title           string
}

// RefreshStatus computes per-node density sums and the title line
func (fs *FluidSim) RefreshStatus() Status {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	fs.mustLive()

	st := Status{
		Tick:            fs.tick,
		Cursor:          -1,
		NodeDensity:     make([]float64, fs.topo.NumNodes()),
		StaleLinks:      fs.staleLinks,
		TotalStaleLinks: fs.totalStaleLinks,
	}
	first := true
	for i, h := range fs.store.Nodes {
		st.NodeDensity[i] = floats.Sum(h.Density)
		lo, hi := floats.Min(h.Density), floats.Max(h.Density)
		if first || lo < st.MinDensity {
			st.MinDensity = lo
		}
		if first || hi > st.MaxDensity {
			st.MaxDensity = hi
		}
		first = false
	}
	st.TotalDensity = floats.Sum(st.NodeDensity)

	cursor := "none"
	if idx, ok := fs.cursor.Current(); ok {
		st.Cursor = idx
		st.CursorCoord = fs.topo.Node(idx).Coord
		cursor = st.CursorCoord.String()
	}
	st.Title = fmt.Sprintf("fluidsim | %d³ nodes of %d³ | tick %d | node %s | total density %.4f",
		fs.topo.NodesPerAxis, fs.opts.CubeSize, st.Tick, cursor, st.TotalDensity)
	return st
}

// Density returns a copy of a node's density field
func (fs *FluidSim) Density(node int) core.ScalarField {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	fs.mustLive()
	return core.NewScalarField(fs.opts.CubeSize, fs.store.Node(node).Density)
}

// Velocity returns a copy of a node's velocity field
func (fs *FluidSim) Velocity(node int) core.VectorField {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	fs.mustLive()
	h := fs.store.Node(node)
	return core.NewVectorField(fs.opts.CubeSize, h.U, h.V, h.W)
}

// TotalDensity sums density over the whole lattice
func (fs *FluidSim) TotalDensity() float64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	fs.mustLive()
	total := 0.0
	for _, h := range fs.store.Nodes {
		total += floats.Sum(h.Density)
	}
	return total
}

// CubeSize is the edge length of every node in cells
func (fs *FluidSim) CubeSize() int {
	return fs.opts.CubeSize
}

// Tick returns how many ticks completed
func (fs *FluidSim) Tick() uint64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.tick
}
