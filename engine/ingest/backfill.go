package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/pkg/fn"
	"github.com/WessleyAI/unga-engine/pkg/llm"
	"github.com/WessleyAI/unga-engine/pkg/resilience"
)

// EmbeddingStore lists and updates speeches missing an embedding.
type EmbeddingStore interface {
	Unembedded(ctx context.Context, limit int) ([]domain.Speech, error)
	SetEmbedding(ctx context.Context, id string, vec []float32) error
}

// Upserter receives freshly embedded speeches, e.g. a vector index.
type Upserter interface {
	Upsert(ctx context.Context, s domain.Speech) error
}

// BackfillOpts configures Backfill.
type BackfillOpts struct {
	BatchSize int
	Workers   int
	Limiter   *rate.Limiter
	Retry     fn.RetryOpts
	// Index is optional.
	Index  Upserter
	Logger *slog.Logger
}

// Backfill embeds stored speeches that have no embedding, batch by batch,
// until none are left or a whole batch fails. It returns how many were
// embedded.
func Backfill(ctx context.Context, store EmbeddingStore, embedder llm.Embedder, opts BackfillOpts) (int, error) {
	if embedder == nil {
		return 0, domain.ErrEmbeddingsMissing
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = fn.DefaultRetry
	}

	encode := resilience.LimiterStageWait(opts.Limiter, fn.RetryStage(opts.Retry, func(ctx context.Context, text string) fn.Result[[]float32] {
		return fn.FromPair(embedder.Encode(ctx, text))
	}))
	embedOne := func(s domain.Speech) fn.Result[string] {
		vec, err := encode(ctx, s.Text).Unwrap()
		if err != nil {
			return fn.Errf[string]("embed %s: %w", s.ID, err)
		}
		if err := store.SetEmbedding(ctx, s.ID, vec); err != nil {
			return fn.Err[string](err)
		}
		if opts.Index != nil {
			s.Embedding = vec
			if err := opts.Index.Upsert(ctx, s); err != nil {
				log.Warn("ingest: backfill index upsert failed", "id", s.ID, "err", err)
			}
		}
		return fn.Ok(s.ID)
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch, err := store.Unembedded(ctx, opts.BatchSize)
		if err != nil {
			return total, fmt.Errorf("ingest: backfill list: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		done := 0
		var lastErr error
		for _, r := range fn.ParMapResult(batch, opts.Workers, embedOne) {
			if _, err := r.Unwrap(); err != nil {
				lastErr = err
				continue
			}
			done++
		}
		total += done
		log.Info("ingest: backfill batch", "embedded", done, "batch", len(batch), "total", total)
		if done == 0 {
			return total, fmt.Errorf("ingest: backfill stalled: %w", lastErr)
		}
		if lastErr != nil {
			// failed speeches would come back in every later batch
			return total, fmt.Errorf("ingest: backfill partial: %w", lastErr)
		}
	}
	return total, nil
}
