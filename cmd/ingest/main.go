// Command ingest loads UNGA speech files ({ISO3}_{session}_{year}.txt) into
// the corpus. It imports a directory once, then optionally keeps watching
// it and consuming documents published on NATS.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/unga-engine/engine/app"
	"github.com/WessleyAI/unga-engine/engine/ingest"
	"github.com/WessleyAI/unga-engine/pkg/config"
	"github.com/WessleyAI/unga-engine/pkg/metrics"
	"github.com/WessleyAI/unga-engine/pkg/resilience"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.Ingest.Dir, "dir", cfg.Ingest.Dir, "directory of speech files")
	flag.BoolVar(&cfg.Ingest.Watch, "watch", cfg.Ingest.Watch, "keep watching the directory for new files")
	flag.IntVar(&cfg.Ingest.Workers, "workers", cfg.Ingest.Workers, "concurrent files")
	flag.StringVar(&cfg.Ingest.LedgerPath, "ledger", cfg.Ingest.LedgerPath, "dedup ledger directory (empty disables)")
	consume := flag.Bool("consume", false, "consume documents from NATS ("+ingest.IngestSubject+")")
	flag.Parse()

	if err := run(cfg, *consume, logger); err != nil {
		logger.Error("ingest exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, consume bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	met.ServeAsync(ctx, ":"+cfg.HTTP.MetricsPort, logger)

	stores, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}
	defer stores.Close(context.Background())

	pipeline, closeLedger, err := newPipeline(ctx, cfg, stores, met, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	im := ingest.NewImporter(pipeline, cfg.Ingest.Workers, logger)
	if cfg.Ingest.Dir != "" {
		start := time.Now()
		rep, err := im.ImportDir(ctx, cfg.Ingest.Dir)
		if err != nil {
			return fmt.Errorf("import %s: %w", cfg.Ingest.Dir, err)
		}
		logger.Info("import done", "dir", cfg.Ingest.Dir, "stored", rep.Stored, "embedded", rep.Embedded,
			"duplicates", rep.Duplicates, "skipped", rep.Skipped, "failed", rep.Failed, "elapsed", time.Since(start))
		for _, e := range rep.Errors {
			logger.Warn("import error", "err", e)
		}
	}

	if consume {
		nc, err := app.ConnectNATS(cfg, "unga-ingest", logger)
		if err != nil {
			return err
		}
		if nc == nil {
			return fmt.Errorf("-consume needs NATS_URL")
		}
		defer nc.Drain()
		if _, err := ingest.StartConsumer(nc, pipeline, ingest.ConsumerOpts{MaxRetries: cfg.Ingest.MaxRetries, Logger: logger}); err != nil {
			return fmt.Errorf("subscribe %s: %w", ingest.IngestSubject, err)
		}
		dead := met.Counter("unga_ingest_dead_letters_total", "Documents parked on the dead-letter subject")
		if _, err := ingest.WatchDeadLetters(nc, func(_ context.Context, d ingest.DeadLetter) {
			dead.Inc()
			logger.Warn("ingest: dead letter", "file", d.Document.Filename, "retries", d.Retries, "err", d.Error)
		}); err != nil {
			return fmt.Errorf("subscribe %s: %w", ingest.DLQSubject, err)
		}
		logger.Info("consuming speech documents", "subject", ingest.IngestSubject)
	}

	switch {
	case cfg.Ingest.Watch:
		logger.Info("watching for speech files", "dir", cfg.Ingest.Dir)
		if err := im.Watch(ctx, cfg.Ingest.Dir); err != nil && ctx.Err() == nil {
			return err
		}
	case consume:
		<-ctx.Done()
	}
	logger.Info("shutting down")
	return nil
}

// newPipeline wires the ingest pipeline. The returned func closes the ledger.
func newPipeline(ctx context.Context, cfg config.Config, stores *app.Stores, met *metrics.Registry, logger *slog.Logger) (*ingest.Pipeline, func(), error) {
	embedder, err := app.Embedder(ctx, cfg)
	if err != nil {
		logger.Warn("embedder unavailable, storing speeches without embeddings", "err", err)
		embedder = nil
	}

	deps := ingest.Deps{
		Store:    stores.Corpus,
		Embedder: embedder,
		Limiter:  resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.Models.EmbedRPS, Burst: cfg.Models.EmbedBurst}),
		Metrics:  met,
		Logger:   logger,
	}
	closeLedger := func() {}
	if cfg.Ingest.LedgerPath != "" {
		ledger, err := ingest.OpenLedger(cfg.Ingest.LedgerPath, logger)
		if err != nil {
			return nil, nil, err
		}
		deps.Ledger = ledger
		closeLedger = func() {
			if err := ledger.Close(); err != nil {
				logger.Warn("ledger close failed", "err", err)
			}
		}
	}
	return ingest.NewPipeline(deps), closeLedger, nil
}
