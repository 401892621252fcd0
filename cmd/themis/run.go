package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/themis/pkg/compliance/storage"
	"mercator-hq/themis/pkg/config"
	"mercator-hq/themis/pkg/directory"
	"mercator-hq/themis/pkg/notify"
	"mercator-hq/themis/pkg/sla"
	"mercator-hq/themis/pkg/telemetry/logging"
	"mercator-hq/themis/pkg/telemetry/metrics"
)

var runFlags struct {
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Themis engine",
	Long: `Start the Themis engine with the specified configuration.

The engine runs the SLA sweep on its configured schedule, drains the
notification outbox, serves Prometheus metrics, and hot-reloads the SLA
matrix file on change.

Examples:
  # Start with default config
  themis run

  # Start with custom config
  themis run --config /etc/themis/config.yaml

  # Validate config without starting the engine
  themis run --dry-run`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the engine")
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
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

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Themis v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Primary store.
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
	fmt.Println("✓ Compliance store initialized")

	// Notification outbox.
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
	fmt.Println("✓ Notification outbox initialized")

	// Escalation matrices: file entries override store rows; the file's
	// default matrix is the last resort.
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

	// Metrics.
	var slaMetrics *metrics.SLAMetrics
	if cfg.Telemetry.Metrics.Enabled {
		collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		slaMetrics = collector.SLA()

		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		})
		metricsSrv := &http.Server{
			Addr:    cfg.Telemetry.Metrics.ListenAddress,
			Handler: mux,
		}
		go func() {
			slog.Info("metrics server listening", "address", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Telemetry.Metrics.ListenAddress)
	}

	// Sweeper and scheduler.
	sweeper := sla.NewSweeper(store, providers, outbox, slaMetrics, sla.SweeperOptions{
		BatchSize:    cfg.Sweep.BatchSize,
		ReminderLead: time.Duration(cfg.Sweep.ReminderLeadHours) * time.Hour,
	})
	scheduler := sla.NewScheduler(sweeper, cfg.Sweep.Schedule)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()
	if next := scheduler.NextRun(); next != nil {
		fmt.Printf("✓ Sweep scheduled (next run %s)\n", next.Format(time.RFC3339))
	}

	// Matrix file watcher.
	if fileProvider != nil && cfg.SLA.Watch {
		watcher, err := sla.NewMatrixWatcher(fileProvider)
		if err != nil {
			return err
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Error("matrix watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
		fmt.Printf("✓ Watching SLA matrix: %s\n", cfg.SLA.MatrixPath)
	}

	// The directory file is only needed by campaign expansion, but load it
	// at startup so a broken roster fails fast.
	if cfg.Directory.Path != "" {
		if _, err := directory.LoadFileDirectory(cfg.Directory.Path); err != nil {
			return err
		}
		fmt.Printf("✓ Employee directory: %s\n", cfg.Directory.Path)
	}

	fmt.Println("\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	fmt.Printf("\nReceived signal %s, shutting down gracefully...\n", sig)
	cancel()

	fmt.Println("✓ Engine stopped")
	return nil
}
