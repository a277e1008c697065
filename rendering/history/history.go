package history

import (
	"errors"
	"image/color"
	"io"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrEmpty is returned when plotting a history with no samples
var ErrEmpty = errors.New("history has no samples")

// Sample is the per-tick record kept for plotting
type Sample struct {
	Tick         uint64
	TotalDensity float64
	StaleLinks   int
}

// History accumulates tick samples, keeping at most Limit of the latest
type History struct {
	Limit int // zero keeps everything

	mu      sync.Mutex
	samples []Sample
}

func New(limit int) *History {
	return &History{Limit: limit}
}

// Record appends one tick
func (h *History) Record(tick uint64, totalDensity float64, staleLinks int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, Sample{Tick: tick, TotalDensity: totalDensity, StaleLinks: staleLinks})
	if h.Limit > 0 && len(h.samples) > h.Limit {
		h.samples = append(h.samples[:0], h.samples[len(h.samples)-h.Limit:]...)
	}
}

// Samples returns a copy of the recorded ticks in order
func (h *History) Samples() []Sample {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Sample(nil), h.samples...)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}

// Plot builds a chart of total density and stale links against tick
func (h *History) Plot() (*plot.Plot, error) {
	samples := h.Samples()
	if len(samples) == 0 {
		return nil, ErrEmpty
	}

	mass := make(plotter.XYs, len(samples))
	stale := make(plotter.XYs, len(samples))
	for i, s := range samples {
		mass[i].X, mass[i].Y = float64(s.Tick), s.TotalDensity
		stale[i].X, stale[i].Y = float64(s.Tick), float64(s.StaleLinks)
	}

	p := plot.New()
	p.Title.Text = "Total density"
	p.X.Label.Text = "tick"
	p.Y.Label.Text = "density"

	massLine, err := plotter.NewLine(mass)
	if err != nil {
		return nil, err
	}
	massLine.Color = color.RGBA{R: 68, G: 1, B: 84, A: 255}
	massLine.Width = vg.Points(1.5)

	staleLine, err := plotter.NewLine(stale)
	if err != nil {
		return nil, err
	}
	staleLine.Color = color.RGBA{R: 253, G: 231, B: 37, A: 255}
	staleLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(plotter.NewGrid(), massLine, staleLine)
	p.Legend.Add("total density", massLine)
	p.Legend.Add("stale links", staleLine)
	p.Legend.Top = true
	return p, nil
}

// WritePNG renders the chart at the given size in points
func (h *History) WritePNG(w io.Writer, width, height vg.Length) error {
	p, err := h.Plot()
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
