package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"mercator-hq/floodgate/pkg/cli"
	"mercator-hq/floodgate/pkg/config"
	"mercator-hq/floodgate/pkg/limits"
	"mercator-hq/floodgate/pkg/server"
	"mercator-hq/floodgate/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the admission server",
	Long: `Start the floodgate admission server with the specified configuration.

The server exposes the rate limiter as an HTTP API: check, record,
status, health, and Prometheus metrics endpoints.

Examples:
  # Start with default config
  floodgate run

  # Start with custom config
  floodgate run --config /etc/floodgate/config.yaml

  # Override listen address
  floodgate run --listen 0.0.0.0:8090

  # Validate config without starting the server
  floodgate run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return cli.NewConfigError("logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	backend, err := buildBackend(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
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
		Metrics:      limits.NewMetrics(),
		Logger:       logger,
	})

	logger.Info("floodgate starting",
		"version", Version,
		"store", cfg.Store.Backend,
		"providers", len(cfg.Providers),
		"fail_open", *cfg.Limiter.FailOpen,
	)

	ctx := cli.SetupSignalHandler()

	// Scheduled store maintenance. Redis ignores cleanup (native TTL);
	// SQLite and memory sweep expired rows.
	if cfg.Maintenance.CleanupSchedule != "" {
		janitor := cron.New()
		_, err := janitor.AddFunc(cfg.Maintenance.CleanupSchedule, func() {
			removed, err := backend.Cleanup(ctx, time.Now())
			if err != nil {
				logger.Warn("store cleanup failed", "error", err)
				return
			}
			if removed > 0 {
				logger.Debug("store cleanup swept expired entries", "removed", removed)
			}
		})
		if err != nil {
			return cli.NewConfigError("maintenance.cleanup_schedule", err.Error())
		}
		janitor.Start()
		defer janitor.Stop()
	}

	srv := server.New(&cfg.Server, manager, backend, logger)
	return srv.Start(ctx)
}
