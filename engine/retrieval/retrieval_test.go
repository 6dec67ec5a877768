package retrieval

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/pkg/metrics"
	"github.com/WessleyAI/unga-engine/pkg/resilience"
	"github.com/WessleyAI/unga-engine/pkg/speechnlp"
)

// --- Mocks ---

type mockStore struct {
	mu        sync.Mutex
	searches  []domain.SearchFilter
	simLimits []int
	searchFn  func(f domain.SearchFilter) ([]domain.Speech, error)
	simFn     func(emb []float32, limit int) ([]domain.ScoredSpeech, error)
}

func (m *mockStore) Search(_ context.Context, f domain.SearchFilter) ([]domain.Speech, error) {
	m.mu.Lock()
	m.searches = append(m.searches, f)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(f)
	}
	return nil, nil
}

func (m *mockStore) SimilaritySearch(_ context.Context, emb []float32, limit int) ([]domain.ScoredSpeech, error) {
	m.mu.Lock()
	m.simLimits = append(m.simLimits, limit)
	m.mu.Unlock()
	if m.simFn != nil {
		return m.simFn(emb, limit)
	}
	return nil, nil
}

func (m *mockStore) calls() []domain.SearchFilter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SearchFilter(nil), m.searches...)
}

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Encode(_ context.Context, _ string) ([]float32, error) {
	return m.vec, m.err
}

func speech(id, country string, year int) domain.Speech {
	return domain.Speech{ID: id, CountryName: country, Year: year, Text: "text"}
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Speech.ID
	}
	return out
}

func ents() speechnlp.Entities { return speechnlp.NewEntities() }

func newExec(store Store, emb Embedder) *Executor {
	opts := DefaultOptions()
	opts.Metrics = metrics.New()
	return NewExecutor(store, emb, opts)
}

// --- Tests ---

func TestSemanticSimpleUsesSimilarity(t *testing.T) {
	store := &mockStore{simFn: func(_ []float32, limit int) ([]domain.ScoredSpeech, error) {
		return []domain.ScoredSpeech{
			{Speech: speech("a", "Kenya", 1999), Score: 0.9},
			{Speech: speech("b", "Ghana", 2001), Score: 0.7},
		}, nil
	}}
	x := newExec(store, &mockEmbedder{vec: []float32{1, 0}})

	out := x.Execute(context.Background(), domain.StrategySemanticSimple, "peace in Kenya", ents())
	if out.Fallback || out.Failed {
		t.Fatalf("unexpected fallback: %+v", out.Errors)
	}
	if got := ids(out.Hits); strings.Join(got, ",") != "a,b" {
		t.Errorf("hits = %v", got)
	}
	if !out.Hits[0].HasSimilarity || out.Hits[0].Similarity != 0.9 {
		t.Errorf("similarity not carried: %+v", out.Hits[0])
	}
	if len(store.simLimits) != 1 || store.simLimits[0] != CapSemanticSimple {
		t.Errorf("sim limits = %v", store.simLimits)
	}
}

func TestSemanticSimpleWithoutEmbedderRunsHybrid(t *testing.T) {
	store := &mockStore{searchFn: func(f domain.SearchFilter) ([]domain.Speech, error) {
		return []domain.Speech{speech("t1", "Kenya", 1999)}, nil
	}}
	x := newExec(store, nil)

	out := x.Execute(context.Background(), domain.StrategySemanticSimple, "peace in Kenya", ents())
	if out.Executed != string(domain.StrategyHybrid) {
		t.Errorf("executed = %q", out.Executed)
	}
	if out.Fallback {
		t.Error("missing embedder must not count as a failure")
	}
	if len(store.simLimits) != 0 {
		t.Error("similarity search must not run without an embedder")
	}
	calls := store.calls()
	if len(calls) != 1 || calls[0].Limit != CapHybridText {
		t.Errorf("calls = %+v", calls)
	}
}

func TestFilteredStrategiesCapsAndFilters(t *testing.T) {
	e := ents()
	e.Countries = []string{"china"}
	e.Years = []int{2015, 2016}
	e.Regions = []string{"americas"}

	tests := []struct {
		strategy    domain.Strategy
		wantLimit   int
		wantRegions []string
	}{
		{domain.StrategyComprehensiveTemporal, CapTemporal, []string{"North America", "South America", "Caribbean"}},
		{domain.StrategyStatistical, CapStatistical, nil},
		{domain.StrategyTemporalBroad, CapTemporalBroad, []string{"North America", "South America", "Caribbean"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			store := &mockStore{}
			x := newExec(store, nil)
			x.Execute(context.Background(), tt.strategy, "china trends", e)
			calls := store.calls()
			if len(calls) != 1 {
				t.Fatalf("calls = %d", len(calls))
			}
			f := calls[0]
			if f.Limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", f.Limit, tt.wantLimit)
			}
			if f.Text != "china trends" || len(f.Countries) != 1 || len(f.Years) != 2 {
				t.Errorf("filter = %+v", f)
			}
			if strings.Join(f.Regions, "|") != strings.Join(tt.wantRegions, "|") {
				t.Errorf("regions = %v, want %v", f.Regions, tt.wantRegions)
			}
		})
	}
}

func TestComparativeScatterGatherKeepsCountryOrder(t *testing.T) {
	e := ents()
	e.Countries = []string{"china", "russia", "kenya"}
	e.Years = []int{2001}

	store := &mockStore{searchFn: func(f domain.SearchFilter) ([]domain.Speech, error) {
		c := f.Countries[0]
		// Slow down the first country so completion order differs from request order.
		if c == "china" {
			time.Sleep(20 * time.Millisecond)
		}
		return []domain.Speech{speech(c+"-1", c, 2001), speech(c+"-2", c, 2001)}, nil
	}}
	x := newExec(store, nil)

	out := x.Execute(context.Background(), domain.StrategyComparative, "compare", e)
	want := "china-1,china-2,russia-1,russia-2,kenya-1,kenya-2"
	if got := strings.Join(ids(out.Hits), ","); got != want {
		t.Errorf("hits = %s, want %s", got, want)
	}
	calls := store.calls()
	if len(calls) != 3 {
		t.Fatalf("sub-queries = %d, want 3", len(calls))
	}
	for _, f := range calls {
		if f.Limit != CapComparative || len(f.Countries) != 1 || f.Text != "" {
			t.Errorf("sub-query = %+v", f)
		}
	}
}

func TestSemanticContentDedupsFirstWins(t *testing.T) {
	e := ents()
	e.Topics = []string{"climate change", "sustainable development"}

	store := &mockStore{searchFn: func(f domain.SearchFilter) ([]domain.Speech, error) {
		switch f.Text {
		case "climate change":
			return []domain.Speech{speech("s1", "Fiji", 2019), speech("s2", "Tuvalu", 2019)}, nil
		default:
			dup := speech("s2", "Tuvalu", 2019)
			dup.Text = "second copy"
			return []domain.Speech{dup, speech("s3", "Kenya", 2015)}, nil
		}
	}}
	x := newExec(store, nil)

	out := x.Execute(context.Background(), domain.StrategySemanticContent, "themes", e)
	if got := strings.Join(ids(out.Hits), ","); got != "s1,s2,s3" {
		t.Errorf("hits = %s", got)
	}
	if out.Hits[1].Speech.Text != "text" {
		t.Error("first occurrence must win")
	}
	for _, f := range store.calls() {
		if f.Limit != CapContentPerTopic {
			t.Errorf("limit = %d", f.Limit)
		}
	}
}

func TestHybridSemanticFirst(t *testing.T) {
	store := &mockStore{
		simFn: func(_ []float32, _ int) ([]domain.ScoredSpeech, error) {
			return []domain.ScoredSpeech{{Speech: speech("x", "Kenya", 1999), Score: 0.5}}, nil
		},
		searchFn: func(f domain.SearchFilter) ([]domain.Speech, error) {
			return []domain.Speech{speech("y", "Kenya", 2000), speech("x", "Kenya", 1999)}, nil
		},
	}
	x := newExec(store, &mockEmbedder{vec: []float32{1}})
	out := x.Execute(context.Background(), domain.StrategyHybrid, "peace", ents())
	if got := strings.Join(ids(out.Hits), ","); got != "x,y" {
		t.Errorf("hits = %s", got)
	}
	if !out.Hits[0].HasSimilarity {
		t.Error("duplicate must keep the semantic copy")
	}
	if out.Hits[1].HasSimilarity {
		t.Error("text hit must not carry similarity")
	}
}

func TestFallbackOnBackendError(t *testing.T) {
	store := &mockStore{searchFn: func(f domain.SearchFilter) ([]domain.Speech, error) {
		if f.Limit == CapTemporal {
			return nil, errors.New("connection refused")
		}
		return []domain.Speech{speech("fb", "Kenya", 1999)}, nil
	}}
	x := newExec(store, nil)
	out := x.Execute(context.Background(), domain.StrategyComprehensiveTemporal, "peace", ents())
	if !out.Fallback || out.Failed {
		t.Fatalf("fallback=%v failed=%v", out.Fallback, out.Failed)
	}
	if len(out.Errors) != 1 {
		t.Errorf("errors = %v", out.Errors)
	}
	if got := ids(out.Hits); len(got) != 1 || got[0] != "fb" {
		t.Errorf("hits = %v", got)
	}
	calls := store.calls()
	last := calls[len(calls)-1]
	if last.Limit != CapFallback || last.Text != "peace" || len(last.Countries) != 0 {
		t.Errorf("fallback filter = %+v", last)
	}
}

func TestFallbackLimitForSemanticSimple(t *testing.T) {
	store := &mockStore{}
	x := newExec(store, &mockEmbedder{err: errors.New("model not loaded")})
	out := x.Execute(context.Background(), domain.StrategySemanticSimple, "peace", ents())
	if !out.Fallback {
		t.Fatal("expected fallback")
	}
	calls := store.calls()
	if len(calls) != 1 || calls[0].Limit != CapSemanticSimple {
		t.Errorf("calls = %+v", calls)
	}
}

func TestFallbackFailureReturnsEmpty(t *testing.T) {
	store := &mockStore{searchFn: func(domain.SearchFilter) ([]domain.Speech, error) {
		return nil, errors.New("store down")
	}}
	x := newExec(store, nil)
	out := x.Execute(context.Background(), domain.StrategyStatistical, "how many", ents())
	if !out.Failed || len(out.Hits) != 0 {
		t.Fatalf("failed=%v hits=%d", out.Failed, len(out.Hits))
	}
	if len(out.Errors) != 2 {
		t.Errorf("errors = %v", out.Errors)
	}
}

func TestPanickingStoreIsContained(t *testing.T) {
	store := &mockStore{searchFn: func(f domain.SearchFilter) ([]domain.Speech, error) {
		if f.Limit == CapTemporalBroad {
			panic("boom")
		}
		return []domain.Speech{speech("ok", "Kenya", 1999)}, nil
	}}
	x := newExec(store, nil)
	out := x.Execute(context.Background(), domain.StrategyTemporalBroad, "q", ents())
	if !out.Fallback || len(out.Hits) != 1 {
		t.Fatalf("out = %+v", out)
	}
}

func TestPanickingStoreInScatterIsContained(t *testing.T) {
	store := &mockStore{searchFn: func(f domain.SearchFilter) ([]domain.Speech, error) {
		if len(f.Countries) > 0 {
			panic("boom")
		}
		return []domain.Speech{speech("ok", "Kenya", 1999)}, nil
	}}
	x := newExec(store, nil)
	e := ents()
	e.Countries = []string{"china", "russia"}
	out := x.Execute(context.Background(), domain.StrategyComparative, "compare china and russia", e)
	if !out.Fallback || len(out.Errors) == 0 {
		t.Fatalf("worker panic should fall back with an error: %+v", out)
	}
	if !strings.Contains(out.Errors[0].Error(), "panic") {
		t.Errorf("error = %v", out.Errors[0])
	}
	if len(out.Hits) != 1 || out.Hits[0].Speech.ID != "ok" {
		t.Errorf("hits = %v", ids(out.Hits))
	}
}

func TestPanickingStoreEverywhereFails(t *testing.T) {
	store := &mockStore{searchFn: func(domain.SearchFilter) ([]domain.Speech, error) { panic("boom") }}
	out := newExec(store, nil).Execute(context.Background(), domain.StrategyStatistical, "q", ents())
	if !out.Failed || len(out.Hits) != 0 || len(out.Errors) != 2 {
		t.Fatalf("out = %+v", out)
	}
}

func TestUnknownStrategyFallsBack(t *testing.T) {
	store := &mockStore{}
	x := newExec(store, nil)
	out := x.Execute(context.Background(), domain.Strategy("bogus"), "q", ents())
	if !out.Fallback || len(out.Errors) == 0 || !errors.Is(out.Errors[0], domain.ErrUnknownStrategy) {
		t.Errorf("out = %+v", out)
	}
}

func TestBreakerTripsToFastFailure(t *testing.T) {
	var n int
	var mu sync.Mutex
	store := &mockStore{searchFn: func(domain.SearchFilter) ([]domain.Speech, error) {
		mu.Lock()
		n++
		mu.Unlock()
		return nil, errors.New("down")
	}}
	opts := DefaultOptions()
	opts.Breaker = resilience.BreakerOpts{FailThreshold: 2, Timeout: time.Hour}
	x := NewExecutor(store, nil, opts)

	for i := 0; i < 5; i++ {
		x.Execute(context.Background(), domain.StrategyStatistical, "q", ents())
	}
	if n != 2 {
		t.Errorf("store calls = %d, want 2 before breaker opens", n)
	}
	out := x.Execute(context.Background(), domain.StrategyStatistical, "q", ents())
	if !out.Failed || !errors.Is(out.Errors[0], resilience.ErrCircuitOpen) {
		t.Errorf("errors = %v", out.Errors)
	}
}

func TestMetricsRecorded(t *testing.T) {
	reg := metrics.New()
	opts := DefaultOptions()
	opts.Metrics = reg
	x := NewExecutor(&mockStore{}, nil, opts)
	x.Execute(context.Background(), domain.StrategyHybrid, "q", ents())
	x.Execute(context.Background(), domain.StrategyHybrid, "q", ents())
	c := reg.Counter(metrics.WithLabels("unga_retrieval_queries_total", "strategy", "hybrid"), "")
	if c.Value() != 2 {
		t.Errorf("queries counter = %d", c.Value())
	}
	if !strings.Contains(reg.Render(), "unga_retrieval_duration_seconds") {
		t.Error("duration histogram not rendered")
	}
}

func TestConcurrentExecute(t *testing.T) {
	store := &mockStore{searchFn: func(f domain.SearchFilter) ([]domain.Speech, error) {
		return []domain.Speech{speech(f.Countries[0], f.Countries[0], 2000)}, nil
	}}
	x := newExec(store, nil)
	e := ents()
	e.Countries = []string{"a", "b", "c", "d", "e", "f"}

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := x.Execute(context.Background(), domain.StrategyComparative, "q", e)
			results[i] = strings.Join(ids(out.Hits), ",")
		}(i)
	}
	wg.Wait()
	sort.Strings(results)
	if results[0] != results[len(results)-1] || results[0] != "a,b,c,d,e,f" {
		t.Errorf("non-deterministic concatenation: %v", results)
	}
}
