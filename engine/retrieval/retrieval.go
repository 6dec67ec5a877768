// Package retrieval executes a named strategy against a speech corpus store.
//
// Every strategy is a query-construction and fan-out policy over the Store
// interface. Backend failures never escape Execute: the executor degrades to
// a capped free-text scan and records what went wrong on the Outcome.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/pkg/metrics"
	"github.com/WessleyAI/unga-engine/pkg/resilience"
	"github.com/WessleyAI/unga-engine/pkg/speechnlp"
)

// Store is the corpus store consumed by the executor. Search applies AND
// semantics across non-empty filter fields; no matching rows is not an error.
type Store interface {
	Search(ctx context.Context, f domain.SearchFilter) ([]domain.Speech, error)
	SimilaritySearch(ctx context.Context, embedding []float32, limit int) ([]domain.ScoredSpeech, error)
}

// Embedder encodes text with the model used for the corpus embedding pass.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// Result caps per strategy.
const (
	CapSemanticSimple  = 50
	CapTemporal        = 5000
	CapComparative     = 100
	CapContentPerTopic = 200
	CapStatistical     = 5000
	CapTemporalBroad   = 3000
	CapHybridSemantic  = 100
	CapHybridText      = 100
	CapFallback        = 100
)

// Hit is a raw retrieved speech. Similarity is set only for semantic hits.
type Hit struct {
	Speech        domain.Speech
	Similarity    float64
	HasSimilarity bool
}

// Outcome is what a strategy produced.
type Outcome struct {
	// Strategy is the strategy that was requested.
	Strategy domain.Strategy
	// Executed is the policy that actually ran; it differs from Strategy when
	// semantic_simple ran without an embedder or a fallback was taken.
	Executed string
	Hits     []Hit
	// Fallback is true when the requested strategy failed and the free-text
	// scan was used instead.
	Fallback bool
	// Failed is true when the fallback failed as well. Hits is then empty.
	Failed bool
	Errors []error
}

// Options configures an Executor.
type Options struct {
	// Workers bounds concurrent scatter-gather sub-queries. Zero means one
	// worker per sub-query.
	Workers int
	Breaker resilience.BreakerOpts
	Metrics *metrics.Registry
	Logger  *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Workers: 4,
		Breaker: resilience.DefaultBreakerOpts,
	}
}

// Executor runs retrieval strategies. It is safe for concurrent use; the
// embedder is shared read-only across calls.
type Executor struct {
	store   Store
	embed   Embedder
	breaker *resilience.Breaker
	workers int
	met     *metrics.Registry
	logger  *slog.Logger
}

// NewExecutor creates an executor. A nil embedder disables semantic steps.
func NewExecutor(store Store, embed Embedder, opts Options) *Executor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	bopts := opts.Breaker
	if bopts.Name == "" {
		bopts.Name = "corpus"
	}
	if bopts.OnStateChange == nil {
		log, met := opts.Logger, opts.Metrics
		bopts.OnStateChange = func(name string, from, to resilience.State) {
			log.Warn("retrieval: breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			met.Gauge(metrics.WithLabels("unga_breaker_open", "breaker", name), "1 while the breaker rejects calls").Set(boolGauge(to == resilience.StateOpen))
		}
	}
	return &Executor{
		store:   store,
		embed:   embed,
		breaker: resilience.NewBreaker(bopts),
		workers: opts.Workers,
		met:     opts.Metrics,
		logger:  opts.Logger,
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// EmbeddingsEnabled reports whether semantic steps can run.
func (x *Executor) EmbeddingsEnabled() bool { return x.embed != nil }

// Execute runs strategy for the question. It never returns an error and
// never panics; failures are reported on the Outcome.
func (x *Executor) Execute(ctx context.Context, strategy domain.Strategy, question string, e speechnlp.Entities) Outcome {
	start := time.Now()
	out := Outcome{Strategy: strategy, Executed: string(strategy)}

	hits, executed, err := x.safeRun(ctx, strategy, question, e)
	if executed != "" {
		out.Executed = executed
	}
	if err == nil {
		out.Hits = hits
	} else {
		x.logger.Warn("retrieval: strategy failed, falling back to text scan",
			"strategy", strategy, "err", err)
		out.Errors = append(out.Errors, err)
		out.Fallback = true
		out.Executed = "fallback_text"
		x.met.Counter(metrics.WithLabels("unga_retrieval_fallbacks_total", "strategy", string(strategy)), "Strategies that fell back to text scan").Inc()

		limit := CapFallback
		if strategy == domain.StrategySemanticSimple {
			limit = CapSemanticSimple
		}
		fb, ferr := x.fallback(ctx, question, limit)
		if ferr != nil {
			x.logger.Error("retrieval: fallback text scan failed", "strategy", strategy, "err", ferr)
			out.Errors = append(out.Errors, ferr)
			out.Failed = true
			x.met.Counter("unga_retrieval_failures_total", "Queries where the fallback also failed").Inc()
		} else {
			out.Hits = fb
		}
	}

	x.met.Counter(metrics.WithLabels("unga_retrieval_queries_total", "strategy", string(strategy)), "Queries executed by strategy").Inc()
	x.met.Histogram(metrics.WithLabels("unga_retrieval_duration_seconds", "strategy", string(strategy)), "Retrieval latency by strategy", nil).Since(start)
	x.logger.Debug("retrieval: done", "strategy", strategy, "executed", out.Executed,
		"hits", len(out.Hits), "elapsed", time.Since(start))
	return out
}

// safeRun converts panics from store or embedder implementations into errors.
func (x *Executor) safeRun(ctx context.Context, s domain.Strategy, q string, e speechnlp.Entities) (hits []Hit, executed string, err error) {
	defer func() {
		if r := recover(); r != nil {
			hits, err = nil, fmt.Errorf("retrieval: %s: panic: %v", s, r)
		}
	}()
	return x.run(ctx, s, q, e)
}

func (x *Executor) run(ctx context.Context, s domain.Strategy, q string, e speechnlp.Entities) ([]Hit, string, error) {
	var (
		hits []Hit
		err  error
	)
	executed := string(s)
	switch s {
	case domain.StrategySemanticSimple:
		if x.embed == nil {
			executed = string(domain.StrategyHybrid)
			hits, err = x.hybrid(ctx, q, e)
		} else {
			hits, err = x.semantic(ctx, q, CapSemanticSimple)
		}
	case domain.StrategyComprehensiveTemporal:
		hits, err = x.filtered(ctx, filterFor(q, e, true), CapTemporal)
	case domain.StrategyComparative:
		hits, err = x.comparative(ctx, e)
	case domain.StrategySemanticContent:
		hits, err = x.content(ctx, e)
	case domain.StrategyStatistical:
		hits, err = x.filtered(ctx, filterFor(q, e, false), CapStatistical)
	case domain.StrategyTemporalBroad:
		hits, err = x.filtered(ctx, filterFor(q, e, true), CapTemporalBroad)
	case domain.StrategyHybrid:
		hits, err = x.hybrid(ctx, q, e)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnknownStrategy, s)
	}
	if err != nil {
		return nil, executed, fmt.Errorf("retrieval: %s: %w", s, err)
	}
	return hits, executed, nil
}
