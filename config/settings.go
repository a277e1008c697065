package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"fluidsim/core"
)

type Settings struct {
	Simulation SimulationSettings `json:"simulation"`
	Server     ServerSettings     `json:"server"`
	GPU        GPUSettings        `json:"gpu"`
}

type SimulationSettings struct {
	NodesPerAxis       int     `json:"nodesPerAxis"`
	CubeSize           int     `json:"cubeSize"`
	TimeStep           float64 `json:"timeStep"`
	SourceRate         float64 `json:"sourceRate"`
	SourceLift         float64 `json:"sourceLift"`
	Diffusion          float64 `json:"diffusion"`
	Viscosity          float64 `json:"viscosity"`
	Iterations         int     `json:"iterations"`
	PressureRelaxation float64 `json:"pressureRelaxation"`
	Workers            int     `json:"workers"`
	HostMemoryMB       int     `json:"hostMemoryMB"`
	Comment            string  `json:"comment"`
}

type ServerSettings struct {
	Port             int `json:"port"`
	UpdateIntervalMs int `json:"updateIntervalMs"`
}

type GPUSettings struct {
	Backend           string `json:"backend"`
	MemoryMB          int    `json:"memoryMB"`
	Workers           int    `json:"workers"`
	TransferTimeoutMs int    `json:"transferTimeoutMs"`
	TransferRetries   int    `json:"transferRetries"`
	TransferBackoffMs int    `json:"transferBackoffMs"`
}

// Default returns the settings used when no file is present
func Default() Settings {
	return Settings{
		Simulation: SimulationSettings{
			NodesPerAxis:       2,
			CubeSize:           8,
			TimeStep:           0.1,
			SourceRate:         1.0,
			Diffusion:          0.1,
			Iterations:         40,
			PressureRelaxation: 2.0 / 3.0,
			Workers:            1,
		},
		Server: ServerSettings{
			Port:             8080,
			UpdateIntervalMs: 100,
		},
		GPU: GPUSettings{
			Backend:           "cpu",
			TransferTimeoutMs: 2000,
			TransferRetries:   2,
			TransferBackoffMs: 5,
		},
	}
}

// Load reads settings from path on top of the defaults. A missing file is
// not an error; the defaults are returned unchanged.
func Load(path string) (Settings, error) {
	settings := Default()

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			core.Logger().Info("no settings file found, using defaults", "path", path)
			return settings, nil
		}
		return settings, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&settings); err != nil {
		return settings, fmt.Errorf("error parsing %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return settings, fmt.Errorf("%s: %w", path, err)
	}

	core.Logger().Info("loaded settings", "path", path,
		"nodes", settings.Simulation.NodesPerAxis,
		"cube", settings.Simulation.CubeSize,
		"cells", settings.TotalCells())
	return settings, nil
}

// TotalCells is the number of cells in the whole lattice
func (s Settings) TotalCells() int {
	n := s.Simulation.NodesPerAxis * s.Simulation.CubeSize
	return n * n * n
}

// Validate rejects settings the solver cannot run with
func (s Settings) Validate() error {
	sim := s.Simulation
	var errs []error
	if sim.NodesPerAxis <= 0 {
		errs = append(errs, fmt.Errorf("nodesPerAxis must be positive, got %d", sim.NodesPerAxis))
	}
	if sim.CubeSize <= 0 {
		errs = append(errs, fmt.Errorf("cubeSize must be positive, got %d", sim.CubeSize))
	}
	if sim.TimeStep <= 0 {
		errs = append(errs, fmt.Errorf("timeStep must be positive, got %g", sim.TimeStep))
	}
	if sim.Diffusion < 0 || sim.Viscosity < 0 || sim.SourceRate < 0 {
		errs = append(errs, errors.New("diffusion, viscosity and sourceRate must not be negative"))
	}
	if sim.Iterations <= 0 {
		errs = append(errs, fmt.Errorf("iterations must be positive, got %d", sim.Iterations))
	}
	if sim.PressureRelaxation <= 0 || sim.PressureRelaxation >= 1 {
		errs = append(errs, fmt.Errorf("pressureRelaxation must lie in (0,1), got %g", sim.PressureRelaxation))
	}
	if sim.Workers < 0 || s.GPU.Workers < 0 {
		errs = append(errs, errors.New("worker counts must not be negative"))
	}
	if s.GPU.TransferRetries < 0 || s.GPU.TransferTimeoutMs < 0 || s.GPU.TransferBackoffMs < 0 {
		errs = append(errs, errors.New("transfer settings must not be negative"))
	}
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", s.Server.Port))
	}
	if s.Server.UpdateIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("updateIntervalMs must be positive, got %d", s.Server.UpdateIntervalMs))
	}
	return errors.Join(errs...)
}
