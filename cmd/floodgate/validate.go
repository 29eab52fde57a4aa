package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"mercator-hq/floodgate/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a floodgate configuration file without starting
the server.

Validation checks the store backend selection, backend-specific
settings, per-provider quotas, logging options, and the maintenance
schedule. A valid configuration prints a summary of the quota table.

Examples:
  # Validate the default config
  floodgate validate

  # Validate a specific file
  floodgate validate --config /etc/floodgate/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Configuration valid: %s\n\n", cfgFile)
	fmt.Printf("Server:   %s\n", cfg.Server.ListenAddress)
	fmt.Printf("Store:    %s (timeout %s)\n", cfg.Store.Backend, cfg.Store.Timeout)
	fmt.Printf("Policy:   fail_open=%t\n", *cfg.Limiter.FailOpen)

	if len(cfg.Providers) == 0 {
		fmt.Println("\nNo providers configured; every check will be admitted unmetered.")
		return nil
	}

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("\nProviders (%d):\n", len(names))
	for _, name := range names {
		p := cfg.Providers[name]
		if p.TokensPerMinute > 0 {
			fmt.Printf("  %-20s %d req/min, %d tokens/min\n", name, p.RequestsPerMinute, p.TokensPerMinute)
		} else {
			fmt.Printf("  %-20s %d req/min, no token limit\n", name, p.RequestsPerMinute)
		}
	}
	return nil
}
