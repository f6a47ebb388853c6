package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	version = "dev" // Will be set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "evac-runner",
	Short: "Flood-aware evacuation routing service",
	Long: `Evac Runner is a real-time flood-aware evacuation routing service for an
urban road network. It fuses official hazard telemetry, crowdsourced scout
reports and precomputed flood-depth rasters into a risk-weighted road graph,
and serves risk-aware shortest-path and evacuation queries over it.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(generateCmd)
}

// Commands are defined in separate files:
// - runCmd in run.go
// - stopCmd in stop.go
// - generateCmd in generate.go

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
