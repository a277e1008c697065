package physics

import (
	"fmt"
	"time"

	"fluidsim/core"
	"fluidsim/gpu"
)

// Params are the per-tick integration constants
type Params struct {
	Dt                 float64
	SourceRate         float64
	SourceLift         float64 // vertical velocity pushed at source cells
	Diffusion          float64
	Viscosity          float64
	Iterations         int // Jacobi sweeps for both diffusion and the pressure solve
	PressureRelaxation float64
}

// DefaultParams returns the constants of the reference scenario
func DefaultParams() Params {
	return Params{
		Dt:                 0.1,
		SourceRate:         1,
		Diffusion:          0.1,
		Viscosity:          0,
		Iterations:         40,
		PressureRelaxation: DefaultRelaxation,
	}
}

// State is the position of a solver inside one node's integration
type State int

const (
	Idle State = iota
	Loaded
	SourceAdded
	Diffused
	Advected
	Projected
	BoundaryClamped
	Unloaded
)

var stateNames = [...]string{"idle", "loaded", "source-added", "diffused", "advected", "projected", "boundary-clamped", "unloaded"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Solver integrates the node currently staged in its pool. Stages must be
// called in pipeline order; calling one out of order is a programming
// error and panics.
type Solver struct {
	pool     *gpu.Pool
	boundary Boundary
	state    State
}

// NewSolver creates a solver working on the buffers of pool
func NewSolver(pool *gpu.Pool) *Solver {
	return &Solver{pool: pool}
}

// Pool returns the device buffers the solver works on
func (s *Solver) Pool() *gpu.Pool {
	return s.pool
}

func (s *Solver) State() State {
	return s.state
}

func (s *Solver) advance(from, to State, stage string) {
	if s.state != from {
		panic(fmt.Sprintf("solver: %s called in state %s, want %s", stage, s.state, from))
	}
	s.state = to
}

// MarkLoaded records that the active node and its halos are on the device
func (s *Solver) MarkLoaded() {
	s.advance(Idle, Loaded, "MarkLoaded")
}

// AddSource injects density (and lift) into Source cells
func (s *Solver) AddSource(dt, rate, lift float64) {
	s.advance(Loaded, SourceAdded, "AddSource")
	addSource(s.pool, dt, rate, lift)
}

// Diffuse spreads density with the diffusion coefficient and velocity with
// the viscosity, then enforces obstacles.
func (s *Solver) Diffuse(dt, diffusion, viscosity float64, iterations int) {
	s.advance(SourceAdded, Diffused, "Diffuse")
	diffuse(s.pool, core.FieldDensity, dt, diffusion, iterations)
	for _, f := range core.StagedFields[1:] {
		diffuse(s.pool, f, dt, viscosity, iterations)
	}
	s.boundary.Apply(s.pool)
}

// Advect transports density and velocity along the velocity field
func (s *Solver) Advect(dt float64) {
	s.advance(Diffused, Advected, "Advect")
	advect(s.pool, dt)
	s.boundary.Apply(s.pool)
}

// Project makes the velocity field divergence free
func (s *Solver) Project(iterations int, relaxation float64) {
	s.advance(Advected, Projected, "Project")
	if relaxation <= 0 {
		relaxation = DefaultRelaxation
	}
	project(s.pool, iterations, relaxation)
	s.boundary.Apply(s.pool)
}

// Clamp is the final obstacle enforcement before the node is stored
func (s *Solver) Clamp() {
	s.advance(Projected, BoundaryClamped, "Clamp")
	s.boundary.Apply(s.pool)
}

// MarkUnloaded records that the node has been written back to the host
func (s *Solver) MarkUnloaded() {
	s.advance(BoundaryClamped, Unloaded, "MarkUnloaded")
}

// Finish returns the solver to Idle for the next node
func (s *Solver) Finish() {
	s.advance(Unloaded, Idle, "Finish")
}

// Abort discards a partially integrated node after a failed transfer
func (s *Solver) Abort() {
	s.state = Idle
}

// Step runs every numeric stage from Loaded to BoundaryClamped
func (s *Solver) Step(p Params) {
	start := time.Now()
	s.AddSource(p.Dt, p.SourceRate, p.SourceLift)
	s.Diffuse(p.Dt, p.Diffusion, p.Viscosity, p.Iterations)
	s.Advect(p.Dt)
	s.Project(p.Iterations, p.PressureRelaxation)
	s.Clamp()
	core.Logger().Debug("node integrated", "elapsed", time.Since(start))
}

// Divergence returns the central-difference divergence of the active
// velocity. The slice aliases a pool buffer and is overwritten by Project.
func (s *Solver) Divergence() []float64 {
	return divergence(s.pool)
}
