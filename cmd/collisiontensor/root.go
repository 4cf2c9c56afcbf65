// Package main is the collisiontensor CLI: a thin external layer over
// tensor.CollisionTensor, following the root-command-plus-subcommand-files
// cobra convention of Consensys-go-corset's pkg/cmd package (spec.md §1
// scopes the CLI itself out, but the pack's own CLI idiom is still the
// right shape for it).
package main

import (
	"fmt"
	"os"

	"github.com/JulianSchoen/WallGo/internal/checkpoint"
	"github.com/JulianSchoen/WallGo/internal/config"
	"github.com/JulianSchoen/WallGo/tensor"
	"github.com/JulianSchoen/WallGo/vegas"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "collisiontensor",
	Short: "Evaluate linearized 2->2 collision integrals on a spectral basis grid.",
	Long:  "collisiontensor builds and evaluates the collision tensor described by a run configuration file.",
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the run configuration file (required)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase logging verbosity")
	_ = rootCmd.MarkPersistentFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRunConfig reads the --config flag common to every subcommand.
func loadRunConfig(cmd *cobra.Command) (*config.RunConfig, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.LoadRunConfig(path)
}

// newLogger builds the logrus logger shared across subcommands, honoring
// --verbose the way the teacher's gotetra CLI raises verbosity.
func newLogger(cmd *cobra.Command) *logrus.Logger {
	logger := logrus.New()
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// buildTensor constructs a tensor.CollisionTensor from a loaded RunConfig,
// wiring in the checkpoint cache, worker count and integration settings, but leaving
// particle and variable definitions to the caller: those are model-specific
// and spec.md §1 does not define a wire format for them.
func buildTensor(cfg *config.RunConfig, logger *logrus.Logger) *tensor.CollisionTensor {
	t := tensor.NewWithBasisSize(cfg.Run.BasisSize)
	t.Logger = logger
	t.Workers = cfg.Workers.Count
	t.OutputDir = cfg.Run.OutputDirectory
	t.OptimizeUltrarelativistic = cfg.Integration.OptimizeUltrarelativistic

	t.SetDefaultIntegrationOptions(vegas.Options{
		Calls:                  cfg.Integration.Calls,
		MaxIntegrationMomentum: cfg.Integration.MaxIntegrationMomentum,
		RelativeErrorGoal:      cfg.Integration.RelativeErrorGoal,
		AbsoluteErrorGoal:      cfg.Integration.AbsoluteErrorGoal,
		MaxTries:               cfg.Integration.MaxTries,
	})

	if cfg.Run.CheckpointDatabase != "" {
		cache, err := checkpoint.Open(cfg.Run.CheckpointDatabase)
		if err != nil {
			fatalf("opening checkpoint database %q: %v", cfg.Run.CheckpointDatabase, err)
		}
		t.Checkpoint = cache
	}
	return t
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
