package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"gonum.org/v1/plot/vg"

	"fluidsim/config"
	"fluidsim/core"
	"fluidsim/rendering/history"
	"fluidsim/rendering/volume"
	"fluidsim/simulation"
)

func main() {
	// Parse command line flags
	var (
		configPath = flag.String("config", "settings.json", "Settings file (missing file uses defaults)")
		nodes      = flag.Int("nodes", 0, "Nodes per axis (overrides settings)")
		cube       = flag.Int("cube", 0, "Cells per node axis (overrides settings)")
		ticks      = flag.Int("ticks", 10, "Ticks to run; ignored when -addr is set")
		workers    = flag.Int("workers", 0, "Concurrent node lanes (overrides settings)")
		addr       = flag.String("addr", "", "Serve status over websocket on this address and run until interrupted (\"-\" uses the configured port)")
		slicePath  = flag.String("slice", "", "Write a PNG density slice here when finished")
		plotPath   = flag.String("plot", "", "Write a PNG chart of total density per tick here when finished")
		sliceAxis  = flag.String("axis", "z", "Slice axis (x, y or z)")
		verbose    = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	core.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*configPath, *nodes, *cube, *ticks, *workers, *addr, *slicePath, *plotPath, *sliceAxis); err != nil {
		core.Logger().Error("fluidsim failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, nodes, cube, ticks, workers int, addr, slicePath, plotPath, axisName string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if nodes > 0 {
		settings.Simulation.NodesPerAxis = nodes
	}
	if cube > 0 {
		settings.Simulation.CubeSize = cube
	}
	if workers > 0 {
		settings.Simulation.Workers = workers
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	axis, err := core.ParseAxis(axisName)
	if err != nil {
		return err
	}

	sim, err := simulation.New(simulation.OptionsFromSettings(settings))
	if err != nil {
		return fmt.Errorf("allocating simulation: %w", err)
	}
	defer sim.FreeResource()
	sim.InitBoundary()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if addr == "-" {
		addr = fmt.Sprintf(":%d", settings.Server.Port)
	}
	var hist *history.History
	if addr != "" {
		hist, err = serve(ctx, sim, settings, addr, axis)
	} else {
		hist = history.New(0)
		err = runTicks(ctx, sim, ticks, hist)
	}
	if err != nil {
		return err
	}

	if slicePath != "" {
		if err := writeSlice(sim, slicePath, axis); err != nil {
			return err
		}
	}
	if plotPath != "" {
		if err := writePlot(hist, plotPath); err != nil {
			return err
		}
	}
	return nil
}

func runTicks(ctx context.Context, sim *simulation.FluidSim, ticks int, hist *history.History) error {
	for i := 0; i < ticks; i++ {
		start := time.Now()
		if err := sim.FluidSimSolver(ctx); err != nil {
			return err
		}
		st := sim.RefreshStatus()
		hist.Record(st.Tick, st.TotalDensity, st.StaleLinks)
		core.Logger().Info(st.Title, "elapsed", time.Since(start), "staleLinks", st.StaleLinks)
	}
	return nil
}

func serve(ctx context.Context, sim *simulation.FluidSim, settings config.Settings, addr string, axis core.Axis) (*history.History, error) {
	srv := NewServer(sim, axis)
	interval := time.Duration(settings.Server.UpdateIntervalMs) * time.Millisecond

	runner := simulation.NewRunner(sim, interval)
	runner.OnTick = srv.Broadcast
	runner.Start(ctx)
	defer runner.Stop()

	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}
	errc := make(chan error, 1)
	go func() { errc <- httpServer.ListenAndServe() }()
	core.Logger().Info("server listening", "addr", addr)

	select {
	case err := <-errc:
		return srv.History(), err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return srv.History(), err
	}
	runner.Stop()
	return srv.History(), runner.Err()
}

func writeSlice(sim *simulation.FluidSim, path string, axis core.Axis) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	vol := volume.Assemble(sim, 0)
	if err := vol.WriteSlicePNG(f, axis, vol.Size/2, 4); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	core.Logger().Info("slice written", "path", path, "axis", axis, "scale", vol.Max)
	return f.Close()
}

func writePlot(hist *history.History, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := hist.WritePNG(f, 6*vg.Inch, 3*vg.Inch); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	core.Logger().Info("plot written", "path", path, "ticks", hist.Len())
	return f.Close()
}
