// Package memory is an in-process corpus store with the same query
// semantics as the SQLite store. Used by tests and small demos.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/WessleyAI/unga-engine/engine/corpus"
	"github.com/WessleyAI/unga-engine/engine/domain"
)

// Store holds speeches in a map guarded by a RWMutex.
type Store struct {
	mu       sync.RWMutex
	speeches map[string]domain.Speech
}

// New returns a store seeded with speeches.
func New(speeches ...domain.Speech) *Store {
	s := &Store{speeches: make(map[string]domain.Speech)}
	for _, sp := range speeches {
		_, _ = s.Save(context.Background(), sp)
	}
	return s
}

func (s *Store) Save(_ context.Context, sp domain.Speech) (domain.Speech, error) {
	if sp.ID == "" {
		sp.ID = corpus.SpeechID(sp)
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = time.Now().UTC()
	}
	if sp.WordCount == 0 {
		sp.WordCount = len(strings.Fields(sp.Text))
	}
	s.mu.Lock()
	if prev, ok := s.speeches[sp.ID]; ok && !sp.HasEmbedding() {
		sp.Embedding = prev.Embedding
	}
	s.speeches[sp.ID] = sp
	s.mu.Unlock()
	return sp, nil
}

func (s *Store) Search(_ context.Context, f domain.SearchFilter) ([]domain.Speech, error) {
	out := []domain.Speech{}
	for _, sp := range s.snapshot() {
		if corpus.Matches(sp, f) {
			out = append(out, sp)
		}
	}
	corpus.SortSpeeches(out)
	if limit := corpus.Limit(f); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SimilaritySearch(_ context.Context, vec []float32, limit int) ([]domain.ScoredSpeech, error) {
	all := s.snapshot()
	corpus.SortSpeeches(all)
	return corpus.RankBySimilarity(all, vec, limit), nil
}

func (s *Store) Get(_ context.Context, ids []string) ([]domain.Speech, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Speech, 0, len(ids))
	for _, id := range ids {
		if sp, ok := s.speeches[id]; ok {
			out = append(out, sp)
		}
	}
	return out, nil
}

func (s *Store) Summary(_ context.Context) (domain.CorpusSummary, error) {
	var sum domain.CorpusSummary
	countries := make(map[string]bool)
	for _, sp := range s.snapshot() {
		sum.Speeches++
		countries[sp.CountryCode] = true
		if sp.HasEmbedding() {
			sum.Embedded++
		}
		if sum.FirstYear == 0 || sp.Year < sum.FirstYear {
			sum.FirstYear = sp.Year
		}
		if sp.Year > sum.LastYear {
			sum.LastYear = sp.Year
		}
	}
	sum.Countries = len(countries)
	return sum, nil
}

// SetEmbedding stores the embedding of an existing speech.
func (s *Store) SetEmbedding(_ context.Context, id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.speeches[id]
	if !ok {
		return fmt.Errorf("memory: set embedding %s: %w", id, sql.ErrNoRows)
	}
	sp.Embedding = vec
	s.speeches[id] = sp
	return nil
}

// Unembedded returns up to limit speeches without an embedding, by ID.
func (s *Store) Unembedded(_ context.Context, limit int) ([]domain.Speech, error) {
	out := []domain.Speech{}
	for _, sp := range s.snapshot() {
		if !sp.HasEmbedding() {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored speeches.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.speeches)
}

func (s *Store) snapshot() []domain.Speech {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Speech, 0, len(s.speeches))
	for _, sp := range s.speeches {
		out = append(out, sp)
	}
	return out
}
