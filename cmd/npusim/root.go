package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd is the base command, following akita/cmd's root.go shape
// (a package-level *cobra.Command plus an Execute entry point).
var rootCmd = &cobra.Command{
	Use:   "npusim",
	Short: "npusim is a cycle-accurate simulator for a multi-core NPU running ONNX models",
}

func init() {
	// A missing .env is fine; this is a CLI-only convenience for local
	// dev so config/model paths can be given relative to NPUSIM_CONFIG_DIR
	// instead of typed out on every invocation. The simulation engine
	// itself never reads the environment.
	_ = godotenv.Load()
}

// Execute runs the CLI and exits nonzero on any configuration or
// construction error (spec.md §7).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
