// Command importer loads match NDJSON splits into a cell store.
//
// Usage:
//
//	importer [flags] [split or directory ...]
//
// With no arguments it imports every split in $BLOB_STORAGE_PATH/warm.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"dotaloader/internal/config"
	"dotaloader/internal/discord"
	"dotaloader/internal/engine"
	"dotaloader/internal/importer"
	"dotaloader/internal/logging"
	"dotaloader/internal/monitor"
	"dotaloader/internal/storage"

	"github.com/google/uuid"
)

func main() {
	envPath := config.LoadEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	flag.StringVar(&cfg.Sink, "sink", cfg.Sink, "Write-context: memory, file, postgres, sqlite or turso")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent record workers")
	flag.StringVar(&cfg.FailurePolicy, "policy", cfg.FailurePolicy, "Failed record policy: skip or fail-fast")
	flag.Int64Var(&cfg.MaxFailures, "max-failures", cfg.MaxFailures, "Abort after this many failed records (0 = unlimited)")
	flag.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "Serve /status and /ws on this address")
	archive := flag.Bool("archive", false, "Gzip imported splits into $BLOB_STORAGE_PATH/cold after a successful run")
	flag.Parse()

	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	runID := uuid.NewString()
	logger := slog.Default().With("run_id", runID)

	if envPath != "" {
		logger.Debug("Loaded .env", "path", envPath)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(2)
	}

	os.Exit(run(cfg, runID, *archive, flag.Args(), logger))
}

func run(cfg config.Config, runID string, archive bool, args []string, logger *slog.Logger) int {
	ctx := logging.NewContext(context.Background(), logger)
	logger = logging.WithFields(ctx, "sink", cfg.Sink)
	ctx = logging.NewContext(ctx, logger)

	inputs := args
	if len(inputs) == 0 {
		if cfg.StoragePath == "" {
			logger.Error("No inputs given and BLOB_STORAGE_PATH not set")
			return 2
		}
		inputs = []string{cfg.Dir("warm")}
	}
	splits, err := engine.ExpandInputs(inputs)
	if err != nil {
		logger.Error("Failed to resolve inputs", "error", err)
		return 2
	}
	if len(splits) == 0 {
		logger.Info("No splits to import", "inputs", inputs)
		return 0
	}

	table, closeTable, err := openSink(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open sink", "sink", cfg.Sink, "error", err)
		return 1
	}
	defer closeTable()

	opts := []importer.Option{importer.WithLogger(logger)}
	if cfg.StoragePath != "" {
		rejects, err := storage.NewRejectFile(cfg.Dir("rejects"), runID, storage.RotatorOptions{Logger: logger})
		if err != nil {
			logger.Error("Failed to open reject file", "error", err)
			return 1
		}
		defer func() {
			if err := rejects.Close(); err != nil {
				logger.Error("Failed to close reject file", "error", err)
			}
		}()
		opts = append(opts, importer.WithHook(rejects))
	}

	policy, err := engine.ParsePolicy(cfg.FailurePolicy)
	if err != nil {
		logger.Error("Invalid failure policy", "error", err)
		return 2
	}
	ecfg := engine.DefaultConfig()
	ecfg.Workers = cfg.Workers
	ecfg.Policy = policy
	ecfg.MaxFailures = cfg.MaxFailures
	ecfg.Logger = logger
	if archive && cfg.StoragePath != "" {
		ecfg.ArchiveDir = cfg.Dir("cold")
	}

	eng := engine.New(runID, importer.New(opts...), table, ecfg)

	var status *monitor.Server
	if cfg.StatusAddr != "" {
		status = monitor.NewServer(eng, monitor.DefaultInterval, logger)
		go func() {
			if err := status.Start(cfg.StatusAddr); err != nil {
				logger.Error("Status server failed", "error", err)
			}
		}()
	}

	ctx, cancel := engine.SetupSignalHandler(ctx, logger, nil)
	defer cancel()

	snap, err := eng.Run(ctx, splits)

	if status != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		if err := status.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Status server shutdown failed", "error", err)
		}
		stop()
	}

	notify(cfg, snap, logger)

	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		logger.Error("Import aborted", "error", err)
		return 1
	}
}

func notify(cfg config.Config, snap engine.Snapshot, logger *slog.Logger) {
	if cfg.DiscordWebhookURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := discord.NewWebhookClient(cfg.DiscordWebhookURL).SendImportSummary(ctx, discord.ImportSummary{
		RunID:        snap.RunID,
		Sink:         cfg.Sink,
		State:        snap.State,
		LinesRead:    snap.LinesRead,
		Imported:     snap.Imported,
		Failed:       snap.Failed,
		Elapsed:      snap.Elapsed,
		FirstFailure: snap.FirstFailure,
		Error:        snap.Error,
	})
	if err != nil {
		logger.Warn("Failed to send Discord summary", "error", err)
	}
}
