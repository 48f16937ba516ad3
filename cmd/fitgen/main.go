package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by the release build via -ldflags.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fitgen",
		Short: "Generated-kernel FIT field solver",
		Long: `fitgen runs leapfrog finite-integration time-domain simulations on
non-uniform rectilinear grids.

For every scenario it resolves the excitation port, derives the update
coefficients, renders a kernel specialized to the grid and port, compiles it
into a loadable module and steps it with the excitation signal.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ~/.fitgen/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: warn, info, debug, trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newPortCmd(),
		newRenderCmd(),
		newBuildCmd(),
		newRunCmd(),
		newPlotCmd(),
		newHistoryCmd(),
		newSlotsCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}
