// Command collector pages through the Dota 2 match sequence and writes one raw
// match document per line into rotating JSONL splits for the importer.
//
// Data is written under $BLOB_STORAGE_PATH:
//
//	hot/   - active writes
//	warm/  - closed splits awaiting import
//	cold/  - compressed archives
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"dotaloader/internal/collector"
	"dotaloader/internal/config"
	"dotaloader/internal/discord"
	"dotaloader/internal/engine"
	"dotaloader/internal/logging"
	"dotaloader/internal/steam"
	"dotaloader/internal/storage"
)

func main() {
	envPath := config.LoadEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	startSeq := flag.Int64("start-seq", 0, "Match sequence number to start from")
	batches := flag.Int("batches", 0, "Stop after this many requests (0 = run until interrupted)")
	batchSize := flag.Int("batch-size", steam.MaxMatchesPerRequest, "Matches per request")
	maxRecords := flag.Int("max-records", storage.DefaultMaxRecords, "Matches per split before rotating")
	rate := flag.Float64("rate", 1, "Steam API requests per second")
	flag.Parse()

	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	logger := slog.Default()
	if envPath != "" {
		logger.Debug("Loaded .env", "path", envPath)
	}

	if cfg.StoragePath == "" {
		logger.Error("BLOB_STORAGE_PATH environment variable not set")
		os.Exit(2)
	}
	if *startSeq <= 0 {
		fmt.Println("Usage:")
		fmt.Println("  collector -start-seq=SEQ [-batches=N] [-batch-size=100] [-rate=1]")
		fmt.Println()
		fmt.Println("STEAM_API_KEY and BLOB_STORAGE_PATH are read from the environment or .env")
		os.Exit(2)
	}

	client, err := steam.NewClient(cfg.SteamAPIKey, steam.WithRateLimit(*rate, 1), steam.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to create Steam client", "error", err)
		os.Exit(2)
	}

	ctx, cancel := engine.SetupSignalHandler(context.Background(), logger, nil)
	defer cancel()

	if ok, err := client.ValidateKey(ctx); err != nil {
		logger.Warn("Could not validate Steam API key, continuing", "error", err)
	} else if !ok {
		logger.Error("Steam API key rejected")
		os.Exit(1)
	}

	rotator, err := storage.NewFileRotator(cfg.StoragePath, storage.RotatorOptions{
		MaxRecords: *maxRecords,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("Failed to create file rotator", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rotator.Close(); err != nil {
			logger.Error("Error closing rotator", "error", err)
		}
	}()

	wcfg := collector.DefaultConfig()
	wcfg.BatchSize = *batchSize
	wcfg.MaxBatches = *batches
	wcfg.Logger = logger
	walker := collector.NewWalker(client, rotator, *startSeq, wcfg)

	err = walker.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, steam.ErrAPIKeyInvalid):
		notifyStopped(cfg, walker.Stats(), err, logger)
		logger.Error("Collector stopped", "error", err, "resume_seq", walker.NextSeq())
		rotator.Close()
		os.Exit(1)
	default:
		logger.Error("Collector failed", "error", err)
	}
	logger.Info("Resume with", "start_seq", walker.NextSeq())
}

func notifyStopped(cfg config.Config, stats collector.Stats, reason error, logger *slog.Logger) {
	if cfg.DiscordWebhookURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := discord.NewWebhookClient(cfg.DiscordWebhookURL)
	if err := client.SendCollectorStopped(ctx, stats.Written, stats.NextSeq, stats.Elapsed, reason); err != nil {
		logger.Warn("Failed to send Discord notification", "error", err)
	}
}
