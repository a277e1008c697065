package simulation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fluidsim/core"
)

// Runner advances a simulation on a background goroutine at a fixed rate
// and publishes the latest status after every tick.
type Runner struct {
	sim      *FluidSim
	interval time.Duration

	mu      sync.Mutex // serializes Start and Stop
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	status    atomic.Pointer[Status]
	tickTime  atomic.Int64 // nanoseconds spent in the last tick
	lastError atomic.Pointer[error]

	// OnTick is called from the runner goroutine after each successful tick
	OnTick func(Status)
}

// NewRunner creates a runner ticking every interval. A zero interval runs
// ticks back to back.
func NewRunner(sim *FluidSim, interval time.Duration) *Runner {
	r := &Runner{sim: sim, interval: interval}
	st := sim.RefreshStatus()
	r.status.Store(&st)
	return r
}

// Start begins the simulation goroutine. It is safe to call concurrently
// with Stop.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running.Swap(true) {
		return
	}
	// a loop that stopped on its own error may not have been joined yet
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop halts the goroutine. A tick in progress is allowed to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running.Store(false)
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.wg.Wait()
}

// Running reports whether the goroutine is active
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Status returns the status published after the last tick
func (r *Runner) Status() Status {
	return *r.status.Load()
}

// TickTime returns the wall time of the last tick
func (r *Runner) TickTime() time.Duration {
	return time.Duration(r.tickTime.Load())
}

// Err returns the error that stopped the runner, if any
func (r *Runner) Err() error {
	if p := r.lastError.Load(); p != nil {
		return *p
	}
	return nil
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for r.running.Load() {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return
		}

		// the tick itself is not cancelled by Stop; it ends between ticks
		start := time.Now()
		err := r.sim.FluidSimSolver(context.WithoutCancel(ctx))
		r.tickTime.Store(int64(time.Since(start)))
		if err != nil {
			core.Logger().Error("simulation stopped", "err", err)
			r.lastError.Store(&err)
			r.running.Store(false)
			return
		}

		st := r.sim.RefreshStatus()
		r.status.Store(&st)
		if r.OnTick != nil {
			r.OnTick(st)
		}
	}
}
