package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/themis/pkg/compliance/storage"
	"mercator-hq/themis/pkg/config"
	"mercator-hq/themis/pkg/notify"
	"mercator-hq/themis/pkg/sla"
	"mercator-hq/themis/pkg/telemetry/logging"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one SLA sweep pass and exit",
	Long: `Run one SLA sweep pass over all open acknowledgment requests.

The sweep transitions overdue requests to breached, walks the escalation
ladder, and enqueues any resulting notifications to the outbox. Pending
outbox messages are dispatched before exit.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if _, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	}); err != nil {
		return err
	}

	store, err := storage.NewSQLiteStore(&storage.SQLiteConfig{
		Path:         cfg.Storage.Path,
		MaxOpenConns: cfg.Storage.MaxOpenConns,
		MaxIdleConns: cfg.Storage.MaxIdleConns,
		WALMode:      cfg.Storage.WALMode,
		BusyTimeout:  time.Duration(cfg.Storage.BusyTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to open compliance store: %w", err)
	}
	defer store.Close()

	outbox, err := notify.NewOutbox(notify.OutboxConfig{
		DBPath:           cfg.Outbox.Path,
		DispatchInterval: time.Duration(cfg.Outbox.DispatchIntervalSeconds) * time.Second,
		MaxAttempts:      cfg.Outbox.MaxAttempts,
		BatchSize:        cfg.Outbox.BatchSize,
	}, notify.NewLogSender())
	if err != nil {
		return fmt.Errorf("failed to open notification outbox: %w", err)
	}
	defer outbox.Close()

	providers := sla.ChainProvider{}
	var fileProvider *sla.FileProvider
	if cfg.SLA.MatrixPath != "" {
		fileProvider, err = sla.LoadFileProvider(cfg.SLA.MatrixPath)
		if err != nil {
			return err
		}
		providers = append(providers, fileProvider)
	}
	providers = append(providers, sla.NewStoreProvider(store))
	if fileProvider != nil {
		providers = append(providers, fileProvider.Default())
	}

	sweeper := sla.NewSweeper(store, providers, outbox, nil, sla.SweeperOptions{
		BatchSize:    cfg.Sweep.BatchSize,
		ReminderLead: time.Duration(cfg.Sweep.ReminderLeadHours) * time.Hour,
	})

	ctx := context.Background()
	stats, err := sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	// Drain what the sweep enqueued before exiting.
	if err := outbox.Dispatch(ctx); err != nil {
		return fmt.Errorf("outbox dispatch failed: %w", err)
	}

	fmt.Printf("Scanned:   %d\n", stats.Scanned)
	fmt.Printf("Breached:  %d\n", stats.Breached)
	fmt.Printf("Escalated: %d\n", stats.Escalated)
	fmt.Printf("Reminded:  %d\n", stats.Reminded)
	fmt.Printf("Errors:    %d\n", stats.Errors)
	return nil
}
