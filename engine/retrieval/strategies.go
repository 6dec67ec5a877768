package retrieval

import (
	"context"
	"fmt"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/pkg/fn"
	"github.com/WessleyAI/unga-engine/pkg/resilience"
	"github.com/WessleyAI/unga-engine/pkg/speechnlp"
)

// filterFor builds the combined filter for a filtered scan. Region labels
// are expanded to the region values stored on speech records.
func filterFor(q string, e speechnlp.Entities, withRegions bool) domain.SearchFilter {
	f := domain.SearchFilter{
		Text:      q,
		Countries: e.Countries,
		Years:     e.Years,
	}
	if withRegions {
		f.Regions = domain.ExpandRegions(e.Regions)
	}
	return f
}

// search runs a store query through the circuit breaker.
func (x *Executor) search(ctx context.Context, f domain.SearchFilter) ([]domain.Speech, error) {
	return resilience.CallResult(x.breaker, ctx, func(ctx context.Context) fn.Result[[]domain.Speech] {
		return fn.FromPair(contained(func() ([]domain.Speech, error) { return x.store.Search(ctx, f) }))
	}).Unwrap()
}

// contained turns a panic in a store call into an error. Store calls run
// on scatter workers and in the fallback path, outside safeRun's recover.
func contained[T any](call func() (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("retrieval: store panic: %v", r)
		}
	}()
	return call()
}

func (x *Executor) filtered(ctx context.Context, f domain.SearchFilter, limit int) ([]Hit, error) {
	f.Limit = limit
	speeches, err := x.search(ctx, f)
	if err != nil {
		return nil, err
	}
	return toHits(speeches), nil
}

// semantic embeds q and ranks embedded records by cosine similarity.
func (x *Executor) semantic(ctx context.Context, q string, limit int) ([]Hit, error) {
	if x.embed == nil {
		return nil, domain.ErrEmbeddingsMissing
	}
	vec, err := x.embed.Encode(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embed query: %w", domain.ErrEmbeddingsMissing)
	}
	scored, err := resilience.CallResult(x.breaker, ctx, func(ctx context.Context) fn.Result[[]domain.ScoredSpeech] {
		return fn.FromPair(contained(func() ([]domain.ScoredSpeech, error) { return x.store.SimilaritySearch(ctx, vec, limit) }))
	}).Unwrap()
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	hits := make([]Hit, len(scored))
	for i, s := range scored {
		hits[i] = Hit{Speech: s.Speech, Similarity: s.Score, HasSimilarity: true}
	}
	return hits, nil
}

// scatter issues one bounded sub-query per filter concurrently and
// concatenates the results in filter order.
func (x *Executor) scatter(ctx context.Context, filters []domain.SearchFilter) ([]Hit, error) {
	results := fn.ParMapResult(filters, x.workers, func(f domain.SearchFilter) fn.Result[[]domain.Speech] {
		return fn.FromPair(x.search(ctx, f))
	})
	parts, err := fn.Collect(results).Unwrap()
	if err != nil {
		return nil, err
	}
	var hits []Hit
	for _, p := range parts {
		hits = append(hits, toHits(p)...)
	}
	return hits, nil
}

// comparative guarantees every requested country its own quota.
func (x *Executor) comparative(ctx context.Context, e speechnlp.Entities) ([]Hit, error) {
	filters := fn.Map(e.Countries, func(c string) domain.SearchFilter {
		return domain.SearchFilter{Countries: []string{c}, Years: e.Years, Limit: CapComparative}
	})
	return x.scatter(ctx, filters)
}

// content runs one sub-query per topic and deduplicates by record ID.
func (x *Executor) content(ctx context.Context, e speechnlp.Entities) ([]Hit, error) {
	filters := fn.Map(e.Topics, func(topic string) domain.SearchFilter {
		return domain.SearchFilter{Text: topic, Countries: e.Countries, Years: e.Years, Limit: CapContentPerTopic}
	})
	hits, err := x.scatter(ctx, filters)
	if err != nil {
		return nil, err
	}
	return dedup(hits), nil
}

// hybrid unions semantic hits (when available) with filtered text hits.
// Semantic hits come first so they win on duplicate IDs.
func (x *Executor) hybrid(ctx context.Context, q string, e speechnlp.Entities) ([]Hit, error) {
	var hits []Hit
	if x.embed != nil {
		sem, err := x.semantic(ctx, q, CapHybridSemantic)
		if err != nil {
			return nil, err
		}
		hits = append(hits, sem...)
	}
	text, err := x.filtered(ctx, filterFor(q, e, true), CapHybridText)
	if err != nil {
		return nil, err
	}
	return dedup(append(hits, text...)), nil
}

func (x *Executor) fallback(ctx context.Context, q string, limit int) ([]Hit, error) {
	hits, err := x.filtered(ctx, domain.SearchFilter{Text: q}, limit)
	if err != nil {
		return nil, fmt.Errorf("retrieval: fallback: %w", err)
	}
	return hits, nil
}

func toHits(speeches []domain.Speech) []Hit {
	return fn.Map(speeches, func(s domain.Speech) Hit { return Hit{Speech: s} })
}

// dedup keeps the first hit per speech ID.
func dedup(hits []Hit) []Hit {
	out := fn.UniqueBy(hits, func(h Hit) string { return h.Speech.ID })
	if out == nil {
		return []Hit{}
	}
	return out
}
