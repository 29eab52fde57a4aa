package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "floodgate",
	Short: "Floodgate - distributed admission control for LLM providers",
	Long: `Floodgate gates outbound calls to metered AI-inference providers.

It enforces a rolling 60-second request quota and a secondary token
budget per (user, provider) pair, with verdicts coordinated across any
number of server processes through a shared store:
  - True sliding-window request counting (no boundary-burst overshoot)
  - Token-budget reservation with soft-ceiling accounting
  - Fail-open or fail-closed degradation when the store is unreachable
  - Redis, SQLite, and in-memory store backends`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
