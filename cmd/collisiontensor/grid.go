package main

import (
	"fmt"

	"github.com/JulianSchoen/WallGo/store"
	"github.com/spf13/cobra"
)

var gridCmd = &cobra.Command{
	Use:   "grid <particle1> <particle2>",
	Short: "Evaluate the collision integral grid for one out-of-equilibrium particle pair.",
	Args:  cobra.ExactArgs(2),
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
		if err := t.SetupCollisionIntegrals(false); err != nil {
			fatalf("setting up collision integrals: %v", err)
		}

		p1, p2 := args[0], args[1]
		g, err := t.EvaluateCollisionsGrid(p1, p2, nil)
		if err != nil {
			fatalf("evaluating grid for (%s, %s): %v", p1, p2, err)
		}

		codec := store.NewLocalCodec()
		ds := g.Flatten([2]string{p1, p2})
		if err := codec.WriteDataset(cfg.Run.OutputDirectory, ds); err != nil {
			fatalf("writing dataset: %v", err)
		}
		fmt.Printf("wrote grid for (%s, %s) to %s\n", p1, p2, cfg.Run.OutputDirectory)
	},
}

func init() {
	rootCmd.AddCommand(gridCmd)
}
