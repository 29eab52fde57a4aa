package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/floodgate/pkg/cli"
	"mercator-hq/floodgate/pkg/config"
	"mercator-hq/floodgate/pkg/limits"
)

var statusFlags struct {
	user     string
	provider string
	format   string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current usage for a caller",
	Long: `Show the current rate-limit usage for a (user, provider) pair by
querying the shared store directly.

Examples:
  # Show usage as text
  floodgate status --user user-123 --provider openai

  # Machine-readable output
  floodgate status --user user-123 --provider openai --format json`,
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFlags.user, "user", "", "raw caller identifier (required)")
	statusCmd.Flags().StringVar(&statusFlags.provider, "provider", "", "provider name (required)")
	statusCmd.Flags().StringVar(&statusFlags.format, "format", "text", "output format: text, json")
	statusCmd.MarkFlagRequired("user")
	statusCmd.MarkFlagRequired("provider")
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	backend, err := buildBackend(cfg)
	if err != nil {
		return cli.NewCommandError("status", err)
	}
	defer backend.Close()

	table, err := buildQuotaTable(cfg)
	if err != nil {
		return cli.NewConfigError("providers", err.Error())
	}

	manager := limits.NewManager(limits.Config{
		Store:        backend,
		Quotas:       table,
		FailOpen:     *cfg.Limiter.FailOpen,
		StoreTimeout: cfg.Store.Timeout,
		KeyPrefix:    cfg.Store.KeyPrefix,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := manager.GetStatus(ctx, statusFlags.user, statusFlags.provider)
	if err != nil {
		return cli.NewCommandError("status", err)
	}

	switch statusFlags.format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statusOutput{
			Provider:      status.Provider,
			Key:           status.Key,
			RequestsUsed:  status.RequestsUsed,
			RequestsLimit: status.RequestsLimit,
			TokensUsed:    status.TokensUsed,
			TokensLimit:   status.TokensLimit,
			ResetTime:     status.ResetTime.UTC().Format(time.RFC3339),
		})
	default:
		fmt.Printf("Provider: %s\n", status.Provider)
		fmt.Printf("Key:      %s\n", status.Key)
		if status.RequestsLimit > 0 {
			fmt.Printf("Requests: %d / %d\n", status.RequestsUsed, status.RequestsLimit)
		} else {
			fmt.Printf("Requests: %d (unmetered)\n", status.RequestsUsed)
		}
		if status.TokensLimit > 0 {
			fmt.Printf("Tokens:   %d / %d\n", status.TokensUsed, status.TokensLimit)
		}
		fmt.Printf("Resets:   %s\n", status.ResetTime.UTC().Format(time.RFC3339))
		return nil
	}
}

type statusOutput struct {
	Provider      string `json:"provider"`
	Key           string `json:"key"`
	RequestsUsed  int64  `json:"requests_used"`
	RequestsLimit int64  `json:"requests_limit"`
	TokensUsed    int64  `json:"tokens_used"`
	TokensLimit   int64  `json:"tokens_limit"`
	ResetTime     string `json:"reset_time"`
}
