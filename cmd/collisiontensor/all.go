package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Evaluate and persist every cached collision integral.",
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

		result, err := t.CalculateAllIntegrals(verbose)
		if err != nil {
			fatalf("calculating collision integrals: %v", err)
		}
		fmt.Printf("evaluated %d pair(s), wrote results to %s\n", len(result.Grids), cfg.Run.OutputDirectory)
	},
}

func init() {
	rootCmd.AddCommand(allCmd)
}
