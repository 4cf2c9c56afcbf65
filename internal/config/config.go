// Package config loads the gcfg-format run configuration described in
// SPEC_FULL.md §6.5, following the teacher's io/config.go pattern of a
// plain struct read by gcfg.ReadFileInto and validated by a CheckInit-style
// method rather than by struct tags.
package config

import (
	"fmt"

	"github.com/JulianSchoen/WallGo/collerr"
	"gopkg.in/gcfg.v1"
)

// RunConfig is the top-level shape of a collision-tensor run file: basis
// size and I/O paths under [Run], Vegas/Monte Carlo tuning under
// [Integration], and worker count under [Workers].
type RunConfig struct {
	Run struct {
		BasisSize          int
		OutputDirectory    string
		MatrixElementFile  string
		CheckpointDatabase string
		MasterSeed         int64
	}
	Integration struct {
		Calls                     int
		MaxIntegrationMomentum    float64
		RelativeErrorGoal         float64
		AbsoluteErrorGoal         float64
		MaxTries                  int
		OptimizeUltrarelativistic bool
	}
	Workers struct {
		Count int
	}
}

// defaults applies spec.md §6's environment defaults to any field left at
// its zero value, matching the teacher's convention of filling in optional
// config fields inside CheckInit rather than requiring every key.
func (c *RunConfig) defaults() {
	if c.Integration.MaxIntegrationMomentum == 0 {
		c.Integration.MaxIntegrationMomentum = 20
	}
	if c.Integration.Calls == 0 {
		c.Integration.Calls = 50000
	}
	if c.Integration.RelativeErrorGoal == 0 {
		c.Integration.RelativeErrorGoal = 1e-2
	}
	if c.Integration.MaxTries == 0 {
		c.Integration.MaxTries = 50
	}
	if c.Workers.Count == 0 {
		c.Workers.Count = 1
	}
}

// checkInit validates the required fields, following the teacher's
// CheckInit naming for config validation methods.
func (c *RunConfig) checkInit() error {
	if c.Run.BasisSize <= 0 {
		return fmt.Errorf("config: [Run] BasisSize must be positive, got %d", c.Run.BasisSize)
	}
	if c.Run.OutputDirectory == "" {
		return fmt.Errorf("config: [Run] OutputDirectory is required")
	}
	if c.Run.MatrixElementFile == "" {
		return fmt.Errorf("config: [Run] MatrixElementFile is required")
	}
	return nil
}

// LoadRunConfig reads and validates a run configuration file at path.
func LoadRunConfig(path string) (*RunConfig, error) {
	var cfg RunConfig
	// A bool's zero value cannot mark "unset", so this default is applied
	// before reading; gcfg only overwrites keys present in the file.
	cfg.Integration.OptimizeUltrarelativistic = true
	if err := gcfg.ReadFileInto(&cfg, path); err != nil {
		return nil, collerr.Wrap(collerr.FileNotFound, err, "reading run config %q", path)
	}
	cfg.defaults()
	if err := cfg.checkInit(); err != nil {
		return nil, collerr.Wrap(collerr.IOError, err, "validating run config %q", path)
	}
	return &cfg, nil
}

// ParseRunConfig parses run configuration text directly, mainly for tests
// that would otherwise need a throwaway file on disk.
func ParseRunConfig(text string) (*RunConfig, error) {
	var cfg RunConfig
	cfg.Integration.OptimizeUltrarelativistic = true
	if err := gcfg.ReadStringInto(&cfg, text); err != nil {
		return nil, collerr.Wrap(collerr.IOError, err, "parsing run config")
	}
	cfg.defaults()
	if err := cfg.checkInit(); err != nil {
		return nil, collerr.Wrap(collerr.IOError, err, "validating run config")
	}
	return &cfg, nil
}
