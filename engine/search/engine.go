// Package search is the query engine facade: one explicitly constructed
// Engine per process, holding the corpus store and the optional embedder.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/engine/enrich"
	"github.com/WessleyAI/unga-engine/engine/query"
	"github.com/WessleyAI/unga-engine/engine/retrieval"
	"github.com/WessleyAI/unga-engine/pkg/metrics"
)

// Summary strings returned with empty or failed responses.
const (
	SummaryNoResults = "No speeches found. Try broadening your search."
	SummaryError     = "An error occurred while searching the corpus."
	SummaryRejected  = "The question could not be processed."
)

// Response is the stable contract consumed by the presentation layer.
// Failed is set when retrieval failed, as opposed to finding nothing;
// Rejected is set when the question did not pass validation.
type Response struct {
	Strategy    domain.Strategy `json:"strategy"`
	Executed    string          `json:"executed_strategy"`
	Analysis    query.Analysis  `json:"analysis"`
	Results     []enrich.Result `json:"results"`
	TotalFound  int             `json:"total_found"`
	Summary     string          `json:"summary"`
	Fallback    bool            `json:"fallback,omitempty"`
	Failed      bool            `json:"failed,omitempty"`
	Rejected    bool            `json:"rejected,omitempty"`
	Degraded    bool            `json:"degraded,omitempty"`
	Diagnostics []string        `json:"diagnostics,omitempty"`
}

// EmbedderLoader loads the embedding model once at startup.
type EmbedderLoader func(ctx context.Context) (retrieval.Embedder, error)

// Options configures the Engine.
type Options struct {
	Retrieval retrieval.Options
	// LoadTimeout bounds the embedder load.
	LoadTimeout time.Duration
	Metrics     *metrics.Registry
	Logger      *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Retrieval:   retrieval.DefaultOptions(),
		LoadTimeout: 30 * time.Second,
	}
}

// Engine answers questions against the corpus. Safe for concurrent use.
type Engine struct {
	exec     *retrieval.Executor
	degraded bool
	loadErr  error
	met      *metrics.Registry
	logger   *slog.Logger
}

// New builds an Engine. A nil loader, or one that fails, leaves the engine
// in degraded mode: semantic strategies are never selected and hybrid runs
// text-only.
func New(ctx context.Context, store retrieval.Store, load EmbedderLoader, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultOptions().LoadTimeout
	}

	var (
		emb     retrieval.Embedder
		loadErr error
	)
	if load == nil {
		loadErr = domain.ErrEmbeddingsMissing
	} else {
		lctx, cancel := context.WithTimeout(ctx, opts.LoadTimeout)
		emb, loadErr = load(lctx)
		cancel()
		if loadErr == nil && emb == nil {
			loadErr = domain.ErrEmbeddingsMissing
		}
	}
	if loadErr != nil {
		emb = nil
		opts.Logger.Warn("search: embeddings unavailable, running degraded", "err", loadErr)
	}

	ropts := opts.Retrieval
	ropts.Metrics = opts.Metrics
	ropts.Logger = opts.Logger
	degraded := emb == nil
	if degraded {
		opts.Metrics.Gauge("unga_engine_degraded", "1 when the engine runs without embeddings").Set(1)
	}
	return &Engine{
		exec:     retrieval.NewExecutor(store, emb, ropts),
		degraded: degraded,
		loadErr:  loadErr,
		met:      opts.Metrics,
		logger:   opts.Logger,
	}
}

// Degraded reports whether the engine runs without embeddings.
func (e *Engine) Degraded() bool { return e.degraded }

// LoadError returns why the embedder is unavailable, if it is.
func (e *Engine) LoadError() error { return e.loadErr }

// Analyze runs the full pipeline for one question. It never returns an
// error: an empty result set carries a summary that tells "nothing found"
// apart from "search failed".
func (e *Engine) Analyze(ctx context.Context, question string) Response {
	ctx, span := otel.Tracer("engine/search").Start(ctx, "search.analyze")
	defer span.End()
	start := time.Now()

	a := query.Analyze(question, !e.degraded)
	resp := Response{
		Strategy: a.Strategy,
		Executed: string(a.Strategy),
		Analysis: a,
		Results:  []enrich.Result{},
		Degraded: e.degraded,
	}

	if err := domain.ValidateQuestion(question); err != nil {
		e.logger.Info("search: question rejected", "err", err)
		resp.Summary = SummaryRejected
		resp.Rejected = true
		resp.Diagnostics = []string{err.Error()}
		e.met.Counter("unga_engine_rejected_total", "Questions rejected by validation").Inc()
		return resp
	}

	out := e.exec.Execute(ctx, a.Strategy, question, a.Entities)
	resp.Executed = out.Executed
	resp.Fallback = out.Fallback
	resp.Failed = out.Failed
	for _, err := range out.Errors {
		resp.Diagnostics = append(resp.Diagnostics, err.Error())
	}
	resp.Results = enrich.Enrich(out.Hits, question, a)
	resp.TotalFound = len(resp.Results)

	switch {
	case out.Failed:
		resp.Summary = SummaryError
	case resp.TotalFound == 0:
		resp.Summary = SummaryNoResults
	default:
		resp.Summary = fmt.Sprintf("Found %d speeches using the %s strategy.", resp.TotalFound, resp.Executed)
	}

	span.SetAttributes(
		attribute.String("strategy", string(a.Strategy)),
		attribute.String("executed", resp.Executed),
		attribute.Int("results", resp.TotalFound),
		attribute.Bool("fallback", resp.Fallback),
	)
	e.met.Histogram("unga_engine_analyze_duration_seconds", "End-to-end analyze latency", nil).Since(start)
	e.logger.Info("search: analyze", "intent", a.Intent, "complexity", a.Complexity,
		"strategy", a.Strategy, "executed", resp.Executed, "results", resp.TotalFound,
		"fallback", resp.Fallback, "elapsed", time.Since(start))
	return resp
}
