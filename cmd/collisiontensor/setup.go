package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Parse the matrix element file and report the collision integrals that would be built.",
	Long:  "Loads the run configuration, parses the configured matrix element file, and prints how many collision integrals were cached and for which out-of-equilibrium pairs, without running any integration.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadRunConfig(cmd)
		if err != nil {
			fatalf("loading run config: %v", err)
		}
		logger := newLogger(cmd)

		t := buildTensor(cfg, logger)
		if !t.SetMatrixElementFile(cfg.Run.MatrixElementFile) {
			fatalf("matrix element file not found: %s", cfg.Run.MatrixElementFile)
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		if err := t.SetupCollisionIntegrals(verbose); err != nil {
			fatalf("setting up collision integrals: %v", err)
		}

		pairs := t.CachedPairs()
		fmt.Printf("cached %d collision integral(s):\n", len(pairs))
		for _, p := range pairs {
			fmt.Printf("  (%s, %s)\n", p.Particle1, p.Particle2)
		}
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
