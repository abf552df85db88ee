package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"transaction-summary-api/internal/config"
	"transaction-summary-api/internal/database"
	"transaction-summary-api/internal/services"
	"transaction-summary-api/pkg/logging"
)

// main loads a local CSV file through the same pipeline as POST /upload/ and
// prints the upload summary as JSON. Configuration comes from the environment.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run returns instead of exiting so the store and cache are always closed.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		path      string
		batchSize int
		verbose   bool
	)
	fs.StringVar(&path, "file", "", "path to the CSV file to ingest")
	fs.IntVar(&batchSize, "batch-size", 0, "rows per flush (overrides BATCH_SIZE)")
	fs.BoolVar(&verbose, "v", false, "enable debug logs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if path == "" {
		fs.Usage()
		return errors.New("-file is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if batchSize > 0 {
		cfg.BatchSize = batchSize
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logging.InitLogging(level)
	logging.Debugf("Ingesting %s with batch size %d", path, cfg.BatchSize)

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	store, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warnf("Failed to close database: %v", err)
		}
	}()

	var cache services.SummaryCache = services.NoopSummaryCache{}
	if cfg.RedisURL != "" {
		// committed rows must invalidate summaries served by running API instances
		rc, err := services.NewRedisSummaryCache(ctx, cfg.RedisURL, cfg.SummaryCacheTTL)
		if err != nil {
			logging.Warnf("Summary cache unavailable, skipping invalidation: %v", err)
		} else {
			cache = rc
		}
	}
	defer cache.Close()

	svc := services.NewIngestService(store, cache, nil, cfg.BatchSize)
	res, err := svc.Upload(ctx, filepath.Base(path), f)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
