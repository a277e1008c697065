package physics

import (
	"math"
	"testing"

	"fluidsim/core"
	"fluidsim/gpu"
)

func newTestPool(t *testing.T, cube int) *gpu.Pool {
	t.Helper()
	p, err := gpu.NewPool(gpu.NewCPUDevice(0, 2), cube)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Release)
	return p
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func maxAbs(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

// fillSmooth writes a smooth velocity field of amplitude ~0.1
func fillSmooth(p *gpu.Pool) {
	T := p.CubeSize
	u, v, w := p.Active.U.Data(), p.Active.V.Data(), p.Active.W.Data()
	for i := range u {
		x, y, z := cellCoord(i, T)
		X := (float64(x) + 0.5) / float64(T)
		Y := (float64(y) + 0.5) / float64(T)
		Z := (float64(z) + 0.5) / float64(T)
		u[i] = 0.1 * math.Sin(2*math.Pi*X) * math.Cos(math.Pi*Y)
		v[i] = 0.1 * math.Cos(math.Pi*X) * math.Sin(math.Pi*Z)
		w[i] = 0.05 * math.Sin(math.Pi*X) * math.Sin(2*math.Pi*Y)
	}
}

func TestDiffuseZeroCoefficientIsIdentity(t *testing.T) {
	p := newTestPool(t, 6)
	d := p.Active.Density.Data()
	for i := range d {
		d[i] = float64(i%7) * 0.3
	}
	want := append([]float64(nil), d...)

	diffuse(p, core.FieldDensity, 0.1, 0, 20)

	got := p.Active.Density.Data()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cell %d changed: %v -> %v", i, want[i], got[i])
		}
	}
}

func TestDiffuseConservesMassBetweenWalls(t *testing.T) {
	p := newTestPool(t, 8)
	d := p.Active.Density.Data()
	d[core.Linearize(0, 0, 0, 8)] = 5
	d[core.Linearize(3, 4, 5, 8)] = 2
	before := sum(d)

	diffuse(p, core.FieldDensity, 0.1, 0.5, 30)

	after := sum(p.Active.Density.Data())
	if math.Abs(after-before) > 1e-9 {
		t.Errorf("mass %v -> %v", before, after)
	}
	if p.Active.Density.Data()[core.Linearize(1, 0, 0, 8)] <= 0 {
		t.Error("density did not spread to the neighbor")
	}
}

func TestDiffuseReadsSeamHalo(t *testing.T) {
	const T = 6
	tests := []struct {
		name     string
		state    gpu.HaloState
		wantMass bool
	}{
		{"fresh seam", gpu.HaloFresh, true},
		{"stale seam", gpu.HaloStale, false},
		{"absent seam", gpu.HaloAbsent, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPool(t, T)
			halo := &p.Halo[core.Right]
			halo.State = tc.state
			hd := halo.Density.Data()
			for i := range hd {
				hd[i] = 1
			}

			diffuse(p, core.FieldDensity, 0.1, 0.5, 20)

			d := p.Active.Density.Data()
			if !tc.wantMass {
				if m := maxAbs(d); m != 0 {
					t.Errorf("density %v appeared behind a closed face", m)
				}
				return
			}
			for y := 0; y < T; y++ {
				for z := 0; z < T; z++ {
					if d[core.Linearize(T-1, y, z, T)] <= 0 {
						t.Fatalf("seam cell (%d,%d,%d) gained no density", T-1, y, z)
					}
				}
			}
			if edge, far := d[core.Linearize(T-1, 2, 2, T)], d[core.Linearize(0, 2, 2, T)]; edge <= far {
				t.Errorf("seam cell %v not denser than far cell %v", edge, far)
			}
		})
	}
}

func TestAdvectZeroVelocityIsIdentity(t *testing.T) {
	p := newTestPool(t, 5)
	d := p.Active.Density.Data()
	for i := range d {
		d[i] = math.Sin(float64(i))
	}
	want := append([]float64(nil), d...)

	advect(p, 0.1)

	got := p.Active.Density.Data()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cell %d changed: %v -> %v", i, want[i], got[i])
		}
	}
}

func TestAdvectUniformFlowShiftsDensity(t *testing.T) {
	const T = 8
	p := newTestPool(t, T)
	u := p.Active.U.Data()
	for i := range u {
		u[i] = 1
	}
	src := core.Linearize(3, 4, 4, T)
	p.Active.Density.Data()[src] = 1

	advect(p, 1)

	d := p.Active.Density.Data()
	if got := d[core.Linearize(4, 4, 4, T)]; math.Abs(got-1) > 1e-12 {
		t.Errorf("density downstream = %v, want 1", got)
	}
	if d[src] != 0 {
		t.Errorf("density left behind = %v", d[src])
	}
}

func TestProjectBoundsDivergence(t *testing.T) {
	p := newTestPool(t, 8)
	fillSmooth(p)
	if before := maxAbs(divergence(p)); before < 0.05 {
		t.Fatalf("test field is nearly divergence free already: %v", before)
	}

	params := DefaultParams()
	project(p, params.Iterations, params.PressureRelaxation)

	if after := maxAbs(divergence(p)); after >= 1e-3 {
		t.Errorf("max divergence after %d sweeps = %v, want < 1e-3", params.Iterations, after)
	}
}

func TestStepBoundsDivergence(t *testing.T) {
	p := newTestPool(t, 8)
	fillSmooth(p)
	params := DefaultParams()
	params.SourceRate = 0
	params.Diffusion = 0
	params.Dt = 0

	s := NewSolver(p)
	s.MarkLoaded()
	s.Step(params)

	if after := maxAbs(s.Divergence()); after >= 1e-3 {
		t.Errorf("max divergence after Step = %v, want < 1e-3", after)
	}
}

func TestProjectWithOpenSeam(t *testing.T) {
	p := newTestPool(t, 8)
	fillSmooth(p)
	halo := &p.Halo[core.Right]
	halo.State = gpu.HaloFresh
	copy(halo.U.Data(), p.Active.U.Data())
	copy(halo.V.Data(), p.Active.V.Data())
	copy(halo.W.Data(), p.Active.W.Data())
	before := maxAbs(divergence(p))

	project(p, 400, DefaultRelaxation)

	after := maxAbs(divergence(p))
	if after >= 1e-3 || after >= before {
		t.Errorf("max divergence %v -> %v", before, after)
	}
}

func TestBoundaryApply(t *testing.T) {
	const T = 4
	p := newTestPool(t, T)
	obstacle := p.Active.Obstacle.Data()
	wall := core.Linearize(2, 1, 1, T)
	src := core.Linearize(0, 0, 0, T)
	obstacle[wall] = float64(core.Boundary)
	obstacle[src] = float64(core.Source)

	for _, b := range []*gpu.Buffer{p.Active.Density, p.Active.U, p.Active.V, p.Active.W} {
		data := b.Data()
		for i := range data {
			data[i] = 1
		}
	}

	Boundary{}.Apply(p)

	tests := []struct {
		name    string
		field   []float64
		x, y, z int
		want    float64
	}{
		{"wall density", p.Active.Density.Data(), 2, 1, 1, 0},
		{"wall u", p.Active.U.Data(), 2, 1, 1, 0},
		{"wall w", p.Active.W.Data(), 2, 1, 1, 0},
		{"left of wall normal", p.Active.U.Data(), 1, 1, 1, 0},
		{"left of wall tangential", p.Active.V.Data(), 1, 1, 1, 1},
		{"right of wall normal", p.Active.U.Data(), 3, 1, 1, 0},
		{"above wall normal", p.Active.V.Data(), 2, 2, 1, 0},
		{"above wall tangential", p.Active.U.Data(), 2, 2, 1, 1},
		{"behind wall normal", p.Active.W.Data(), 2, 1, 0, 0},
		{"source keeps density", p.Active.Density.Data(), 0, 0, 0, 1},
		{"fluid untouched", p.Active.U.Data(), 0, 3, 3, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.field[core.Linearize(tc.x, tc.y, tc.z, T)]; got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBoundaryAcrossSeam(t *testing.T) {
	const T = 4
	tests := []struct {
		name    string
		dir     core.Direction
		state   gpu.HaloState
		wall    [3]int // cell of the neighbor mask
		cell    [3]int // local cell facing it
		field   int    // velocity component normal to the seam
		wantHit bool
	}{
		{"right seam", core.Right, gpu.HaloFresh, [3]int{0, 1, 2}, [3]int{T - 1, 1, 2}, 0, true},
		{"left seam", core.Left, gpu.HaloFresh, [3]int{T - 1, 2, 1}, [3]int{0, 2, 1}, 0, true},
		{"up seam", core.Up, gpu.HaloFresh, [3]int{1, 0, 3}, [3]int{1, T - 1, 3}, 1, true},
		{"back seam", core.Back, gpu.HaloFresh, [3]int{2, 2, T - 1}, [3]int{2, 2, 0}, 2, true},
		{"stale seam is a wall", core.Right, gpu.HaloStale, [3]int{0, 1, 2}, [3]int{T - 1, 1, 2}, 0, false},
		{"absent seam", core.Right, gpu.HaloAbsent, [3]int{0, 1, 2}, [3]int{T - 1, 1, 2}, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPool(t, T)
			vel := p.Active.Velocity()
			for _, b := range vel {
				data := b.Data()
				for i := range data {
					data[i] = 1
				}
			}
			halo := &p.Halo[tc.dir]
			halo.State = tc.state
			halo.Obstacle.Data()[core.Linearize(tc.wall[0], tc.wall[1], tc.wall[2], T)] = float64(core.Boundary)

			Boundary{}.Apply(p)

			facing := core.Linearize(tc.cell[0], tc.cell[1], tc.cell[2], T)
			want := 1.0
			if tc.wantHit {
				want = 0
			}
			if got := vel[tc.field].Data()[facing]; got != want {
				t.Errorf("normal velocity = %v, want %v", got, want)
			}
			tangential := vel[(tc.field+1)%3].Data()[facing]
			if tangential != 1 {
				t.Errorf("tangential velocity = %v, want 1", tangential)
			}
			for c, b := range vel {
				if sum(b.Data()) < float64(T*T*T)-1 {
					t.Errorf("component %d: more than one cell clamped", c)
				}
			}
		})
	}
}

func TestAddSource(t *testing.T) {
	p := newTestPool(t, 3)
	src := core.Linearize(1, 1, 1, 3)
	p.Active.Obstacle.Data()[src] = float64(core.Source)

	addSource(p, 0.1, 2, 3)

	if got := p.Active.Density.Data()[src]; math.Abs(got-0.2) > 1e-15 {
		t.Errorf("density = %v, want 0.2", got)
	}
	if got := p.Active.V.Data()[src]; math.Abs(got-0.3) > 1e-15 {
		t.Errorf("v = %v, want 0.3", got)
	}
	if sum(p.Active.Density.Data()) != p.Active.Density.Data()[src] {
		t.Error("density added outside the source cell")
	}
}

func TestSolverStepConservesMassWithoutSource(t *testing.T) {
	const T = 6
	p := newTestPool(t, T)
	d := p.Active.Density.Data()
	for i := range d {
		d[i] = float64(i%5) + 1
	}
	p.Active.Obstacle.Data()[core.Linearize(2, 2, 2, T)] = float64(core.Boundary)

	params := DefaultParams()
	params.SourceRate = 0
	s := NewSolver(p)

	prev := sum(d)
	for tick := 0; tick < 5; tick++ {
		s.MarkLoaded()
		s.Step(params)
		s.MarkUnloaded()
		s.Finish()

		total := sum(p.Active.Density.Data())
		if total > prev+1e-9 {
			t.Fatalf("tick %d: mass grew %v -> %v", tick, prev, total)
		}
		prev = total
	}
}

func TestSolverStageOrder(t *testing.T) {
	p := newTestPool(t, 2)

	t.Run("out of order panics", func(t *testing.T) {
		s := NewSolver(p)
		s.MarkLoaded()
		defer func() {
			if recover() == nil {
				t.Error("Advect before Diffuse should panic")
			}
		}()
		s.Advect(0.1)
	})

	t.Run("abort returns to idle", func(t *testing.T) {
		s := NewSolver(p)
		s.MarkLoaded()
		s.AddSource(0.1, 1, 0)
		s.Abort()
		if s.State() != Idle {
			t.Errorf("state = %s, want idle", s.State())
		}
		s.MarkLoaded()
	})

	t.Run("full cycle", func(t *testing.T) {
		s := NewSolver(p)
		s.MarkLoaded()
		s.Step(DefaultParams())
		if s.State() != BoundaryClamped {
			t.Fatalf("state = %s after Step", s.State())
		}
		s.MarkUnloaded()
		s.Finish()
		if s.State() != Idle {
			t.Errorf("state = %s, want idle", s.State())
		}
	})
}
