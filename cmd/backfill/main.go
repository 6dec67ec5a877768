// Command backfill embeds stored speeches that have no embedding yet, for
// corpora imported while the embedding provider was down or disabled.
// Fresh embeddings are also pushed to the Qdrant index when configured.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/unga-engine/engine/app"
	"github.com/WessleyAI/unga-engine/engine/ingest"
	"github.com/WessleyAI/unga-engine/pkg/config"
	"github.com/WessleyAI/unga-engine/pkg/resilience"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}
	batch := flag.Int("batch", 64, "speeches per batch")
	workers := flag.Int("workers", cfg.Ingest.Workers, "concurrent embedding calls")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("open corpus", "err", err)
		os.Exit(1)
	}
	defer stores.Close(context.Background())

	embedder, err := app.Embedder(ctx, cfg)
	if err != nil {
		logger.Error("embedder", "err", err)
		os.Exit(1)
	}

	opts := ingest.BackfillOpts{
		BatchSize: *batch,
		Workers:   *workers,
		Limiter:   resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.Models.EmbedRPS, Burst: cfg.Models.EmbedBurst}),
		Logger:    logger,
	}
	if stores.Index != nil {
		opts.Index = stores.Index
	}

	start := time.Now()
	n, err := ingest.Backfill(ctx, stores.Records, embedder, opts)
	logger.Info("backfill finished", "embedded", n, "elapsed", time.Since(start))
	if err != nil {
		logger.Error("backfill", "err", err)
		os.Exit(1)
	}
}
