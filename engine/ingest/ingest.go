// Package ingest loads General Assembly speech files into the corpus
// through validation, parsing, deduplication, embedding and storage stages.
// Files arrive from a directory import, a directory watch or NATS.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/pkg/fn"
	"github.com/WessleyAI/unga-engine/pkg/llm"
	"github.com/WessleyAI/unga-engine/pkg/metrics"
	"github.com/WessleyAI/unga-engine/pkg/resilience"
)

const (
	// IngestSubject is the NATS subject for incoming speech documents.
	IngestSubject = "unga.ingest"
	// DLQSubject is the dead letter queue subject for failed documents.
	DLQSubject = "unga.ingest.dlq"
	// RetryHeader carries the delivery attempt count.
	RetryHeader = "X-Retry-Count"
	// DefaultMaxRetries before a document goes to the DLQ.
	DefaultMaxRetries = 3

	readmeFile = "README.txt"
)

// Sink persists speech records.
type Sink interface {
	Save(ctx context.Context, s domain.Speech) (domain.Speech, error)
}

// Dedup remembers which file contents were already stored.
type Dedup interface {
	Seen(ctx context.Context, filename, hash string) (bool, error)
	Mark(ctx context.Context, filename, hash, id string) error
}

// Deps holds the external dependencies of the pipeline.
type Deps struct {
	Store Sink
	// Embedder is optional; without it speeches are stored unembedded.
	Embedder llm.Embedder
	// Limiter paces embedding calls when set.
	Limiter *rate.Limiter
	Retry   fn.RetryOpts
	// Ledger is optional.
	Ledger  Dedup
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// --- Pipeline Stages ---

// Validate rejects non-speech files and empty documents.
var Validate fn.Stage[Document, Document] = func(_ context.Context, doc Document) fn.Result[Document] {
	base := filepath.Base(doc.Filename)
	if strings.EqualFold(base, readmeFile) || !strings.EqualFold(filepath.Ext(base), ".txt") {
		return fn.Err[Document](fmt.Errorf("%w: %s", ErrSkipped, base))
	}
	if strings.TrimSpace(doc.Text) == "" {
		return fn.Err[Document](domain.NewValidationError("speech_text", base, domain.ErrEmptyText))
	}
	return fn.Ok(doc)
}

// Parse resolves a document into a speech record and hashes its content.
var Parse fn.Stage[Document, ParsedSpeech] = func(_ context.Context, doc Document) fn.Result[ParsedSpeech] {
	s, err := domain.NewSpeech(doc.Filename, doc.Text)
	if err != nil {
		return fn.Err[ParsedSpeech](err)
	}
	return fn.Ok(ParsedSpeech{Speech: s, Hash: ContentHash(doc.Text)})
}

// ContentHash fingerprints speech text.
func ContentHash(text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(text))
}

// NewDedup creates a stage that fails with ErrDuplicate for content the
// ledger has already seen. Ledger errors are logged and do not block ingest.
func NewDedup(ledger Dedup, log *slog.Logger) fn.Stage[ParsedSpeech, ParsedSpeech] {
	return func(ctx context.Context, p ParsedSpeech) fn.Result[ParsedSpeech] {
		if ledger == nil {
			return fn.Ok(p)
		}
		seen, err := ledger.Seen(ctx, p.Speech.SourceFilename, p.Hash)
		if err != nil {
			log.Warn("ingest: dedup check failed", "file", p.Speech.SourceFilename, "err", err)
			return fn.Ok(p)
		}
		if seen {
			return fn.Err[ParsedSpeech](fmt.Errorf("%w: %s", ErrDuplicate, p.Speech.SourceFilename))
		}
		return fn.Ok(p)
	}
}

// NewEmbed creates a stage that attaches an embedding. Calls are paced by
// limiter and retried; a speech whose embedding still fails is passed on
// unembedded so the backfill can cover it later.
func NewEmbed(e llm.Embedder, limiter *rate.Limiter, retry fn.RetryOpts, log *slog.Logger) fn.Stage[ParsedSpeech, ParsedSpeech] {
	if e == nil {
		return func(_ context.Context, p ParsedSpeech) fn.Result[ParsedSpeech] { return fn.Ok(p) }
	}
	encode := resilience.LimiterStageWait(limiter, fn.RetryStage(retry, func(ctx context.Context, text string) fn.Result[[]float32] {
		return fn.FromPair(e.Encode(ctx, text))
	}))
	return func(ctx context.Context, p ParsedSpeech) fn.Result[ParsedSpeech] {
		vec, err := encode(ctx, p.Speech.Text).Unwrap()
		if err != nil {
			log.Warn("ingest: embedding failed, storing without", "file", p.Speech.SourceFilename, "err", err)
			return fn.Ok(p)
		}
		p.Speech.Embedding = vec
		return fn.Ok(p)
	}
}

// NewStore creates a stage that saves the speech.
func NewStore(sink Sink) fn.Stage[ParsedSpeech, Stored] {
	return func(ctx context.Context, p ParsedSpeech) fn.Result[Stored] {
		saved, err := sink.Save(ctx, p.Speech)
		if err != nil {
			return fn.Err[Stored](fmt.Errorf("store %s: %w", p.Speech.SourceFilename, err))
		}
		return fn.Ok(Stored{Speech: saved, Hash: p.Hash})
	}
}

// Stored is a saved speech and its content hash.
type Stored struct {
	Speech domain.Speech
	Hash   string
}

// LoggedTap returns a stage that logs entry and exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		start := time.Now()
		defer func() {
			log.Debug("ingest: stage", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// Pipeline runs documents through every stage. Safe for concurrent use.
type Pipeline struct {
	run    fn.Stage[Document, Stored]
	ledger Dedup
	met    *metrics.Registry
	logger *slog.Logger
}

// NewPipeline wires Validate → Parse → Dedup → Embed → Store.
func NewPipeline(deps Deps) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Retry.MaxAttempts == 0 {
		deps.Retry = fn.DefaultRetry
	}

	validated := fn.Then(LoggedTap[Document]("validate", log), Validate)
	parsed := fn.Then(validated, fn.Then(LoggedTap[Document]("parse", log), Parse))
	deduped := fn.Then(parsed, NewDedup(deps.Ledger, log))
	embedded := fn.Then(deduped, fn.TracedStage("ingest.embed", NewEmbed(deps.Embedder, deps.Limiter, deps.Retry, log)))
	stored := fn.Then(embedded, fn.TracedStage("ingest.store", NewStore(deps.Store)))

	return &Pipeline{run: stored, ledger: deps.Ledger, met: deps.Metrics, logger: log}
}

// Ingest stores one document. It returns ErrSkipped for non-speech files
// and ErrDuplicate for content already stored.
func (p *Pipeline) Ingest(ctx context.Context, doc Document) (domain.Speech, error) {
	start := time.Now()
	out, err := p.run(ctx, doc).Unwrap()
	p.met.Counter(metrics.WithLabels("unga_ingest_total", "status", status(err)), "Speech documents processed").Inc()
	if err != nil {
		return domain.Speech{}, err
	}
	p.met.Histogram("unga_ingest_duration_seconds", "Per-document ingest latency", nil).Since(start)
	if !out.Speech.HasEmbedding() {
		p.met.Counter("unga_ingest_unembedded_total", "Speeches stored without an embedding").Inc()
	}
	if p.ledger != nil {
		if err := p.ledger.Mark(ctx, out.Speech.SourceFilename, out.Hash, out.Speech.ID); err != nil {
			p.logger.Warn("ingest: ledger mark failed", "file", out.Speech.SourceFilename, "err", err)
		}
	}
	p.logger.Info("ingest: stored", "id", out.Speech.ID, "file", out.Speech.SourceFilename,
		"words", out.Speech.WordCount, "embedded", out.Speech.HasEmbedding())
	return out.Speech, nil
}

func status(err error) string {
	switch {
	case err == nil:
		return "stored"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrSkipped):
		return "skipped"
	default:
		return "failed"
	}
}
