package corpus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/unga-engine/engine/domain"
)

// IndexHit is a speech ID scored by an external vector index.
type IndexHit struct {
	ID    string
	Score float64
}

// VectorIndex is an external nearest-neighbour index over speech embeddings.
type VectorIndex interface {
	Upsert(ctx context.Context, s domain.Speech) error
	Query(ctx context.Context, vec []float32, limit int) ([]IndexHit, error)
}

// Primary is the record store an Indexed corpus resolves index hits against.
type Primary interface {
	Save(ctx context.Context, s domain.Speech) (domain.Speech, error)
	Search(ctx context.Context, f domain.SearchFilter) ([]domain.Speech, error)
	SimilaritySearch(ctx context.Context, vec []float32, limit int) ([]domain.ScoredSpeech, error)
	Get(ctx context.Context, ids []string) ([]domain.Speech, error)
	Summary(ctx context.Context) (domain.CorpusSummary, error)
}

// Indexed routes similarity queries to a VectorIndex and everything else to
// the primary store. When the index errors, the primary's own similarity
// search answers instead.
type Indexed struct {
	Primary
	index  VectorIndex
	logger *slog.Logger
}

// NewIndexed wraps primary with index.
func NewIndexed(primary Primary, index VectorIndex, logger *slog.Logger) *Indexed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexed{Primary: primary, index: index, logger: logger}
}

// Save stores s in the primary and, when embedded, in the index.
func (c *Indexed) Save(ctx context.Context, s domain.Speech) (domain.Speech, error) {
	saved, err := c.Primary.Save(ctx, s)
	if err != nil {
		return domain.Speech{}, err
	}
	if saved.HasEmbedding() {
		if err := c.index.Upsert(ctx, saved); err != nil {
			return saved, fmt.Errorf("corpus: index %s: %w", saved.ID, err)
		}
	}
	return saved, nil
}

// SimilaritySearch queries the index and hydrates the hits from the primary,
// preserving index order.
func (c *Indexed) SimilaritySearch(ctx context.Context, vec []float32, limit int) ([]domain.ScoredSpeech, error) {
	hits, err := c.index.Query(ctx, vec, limit)
	if err != nil {
		c.logger.Warn("corpus: vector index failed, scanning primary", "err", err)
		return c.Primary.SimilaritySearch(ctx, vec, limit)
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	speeches, err := c.Primary.Get(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Speech, len(speeches))
	for _, s := range speeches {
		byID[s.ID] = s
	}
	out := make([]domain.ScoredSpeech, 0, len(hits))
	for _, h := range hits {
		if s, ok := byID[h.ID]; ok {
			out = append(out, domain.ScoredSpeech{Speech: s, Score: h.Score})
		}
	}
	return out, nil
}
