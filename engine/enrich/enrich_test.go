package enrich

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/engine/query"
	"github.com/WessleyAI/unga-engine/engine/retrieval"
	"github.com/WessleyAI/unga-engine/pkg/speechnlp"
)

func TestKenyaScenario(t *testing.T) {
	s := domain.Speech{ID: "k", CountryCode: "KEN", CountryName: "Kenya", Year: 1999,
		Text: "We call for lasting peace in the region"}
	a := query.Analyze("peace in Kenya", false)

	out := Enrich([]retrieval.Hit{{Speech: s}}, a.Question, a)
	if len(out) != 1 {
		t.Fatalf("results = %d", len(out))
	}
	r := out[0]
	if r.Citation != "Kenya, 1999" {
		t.Errorf("citation = %q", r.Citation)
	}
	if len(r.Quotes) != 1 || r.Quotes[0].Text != "We call for lasting peace in the region" {
		t.Fatalf("quotes = %+v", r.Quotes)
	}
	// {peace, kenya} ∩ {call, lasting, peace, region} over 2 query keywords
	if r.Quotes[0].Score != 0.5 {
		t.Errorf("quote score = %v, want 0.5", r.Quotes[0].Score)
	}
	// country match plus the "peace and security" topic
	if math.Abs(r.Relevance-0.4) > 1e-9 {
		t.Errorf("relevance = %v, want 0.4", r.Relevance)
	}
}

func TestCitation(t *testing.T) {
	tests := []struct {
		s    domain.Speech
		want string
	}{
		{domain.Speech{CountryName: "Kenya", Year: 1999}, "Kenya, 1999"},
		{domain.Speech{CountryName: "Kenya", Year: 1999, Session: 54}, "Kenya, 1999 (Session 54)"},
		{domain.Speech{CountryCode: "XKX", Year: 2010}, "XKX, 2010"},
		{domain.Speech{}, "Unknown Country, Unknown Year"},
		{domain.Speech{CountryName: "Fiji", Session: 3}, "Fiji, Unknown Year (Session 3)"},
	}
	for _, tt := range tests {
		if got := Citation(tt.s); got != tt.want {
			t.Errorf("Citation(%+v) = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestRelevanceAlwaysInRange(t *testing.T) {
	e := speechnlp.NewEntities()
	e.Countries = []string{"china"}
	e.Years = []int{2020}
	e.Topics = []string{"climate change"}

	base := domain.Speech{CountryName: "China", Year: 2020, Text: "carbon emissions"}
	sims := []float64{-3, -1, 0, 0.5, 1, 2, 1e9, math.NaN(), math.Inf(1), math.Inf(-1)}
	for _, sim := range sims {
		for _, has := range []bool{true, false} {
			for _, sp := range []domain.Speech{base, {}, {CountryName: "Peru", Year: 1950}} {
				got := Relevance(retrieval.Hit{Speech: sp, Similarity: sim, HasSimilarity: has}, e)
				if got < 0 || got > 1 || math.IsNaN(got) {
					t.Errorf("Relevance(sim=%v has=%v %+v) = %v", sim, has, sp, got)
				}
			}
		}
	}
}

func TestRelevanceTerms(t *testing.T) {
	e := speechnlp.NewEntities()
	e.Countries = []string{"china"}
	e.Years = []int{2020}
	e.Topics = []string{"climate change", "health"}

	tests := []struct {
		name string
		h    retrieval.Hit
		want float64
	}{
		{"all terms", retrieval.Hit{Speech: domain.Speech{CountryName: "China", Year: 2020, Text: "climate and health"}, Similarity: 0.5, HasSimilarity: true}, 0.8},
		{"country by code", retrieval.Hit{Speech: domain.Speech{CountryCode: "china"}}, 0.3},
		{"year only", retrieval.Hit{Speech: domain.Speech{CountryName: "Peru", Year: 2020}}, 0.2},
		{"topic counted once", retrieval.Hit{Speech: domain.Speech{Text: "pandemic emissions"}}, 0.1},
		{"similarity only", retrieval.Hit{Speech: domain.Speech{}, Similarity: 1, HasSimilarity: true}, 0.4},
		{"nothing", retrieval.Hit{Speech: domain.Speech{CountryName: "Peru"}}, 0},
		{"NaN similarity keeps other terms", retrieval.Hit{Speech: domain.Speech{CountryName: "China", Year: 2020, Text: "climate"}, Similarity: math.NaN(), HasSimilarity: true}, 0.6},
		{"-Inf similarity keeps other terms", retrieval.Hit{Speech: domain.Speech{CountryName: "China", Year: 2020}, Similarity: math.Inf(-1), HasSimilarity: true}, 0.5},
		{"capped", retrieval.Hit{Speech: domain.Speech{CountryName: "China", Year: 2020, Text: "climate"}, Similarity: 5, HasSimilarity: true}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Relevance(tt.h, e); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("relevance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuotesBounds(t *testing.T) {
	long := strings.Repeat("peace and security matter ", 40) // > 300 chars, no terminator
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("We stand for peace and justice in our time. ")
	}
	b.WriteString("Peace! ")
	b.WriteString("Short peace line? ")
	b.WriteString(long)

	qs := Quotes(b.String(), "peace and security")
	if len(qs) == 0 || len(qs) > MaxQuotes {
		t.Fatalf("quotes = %d", len(qs))
	}
	for _, q := range qs {
		if len(q.Text) < MinQuoteLen {
			t.Errorf("quote shorter than %d: %q", MinQuoteLen, q.Text)
		}
		if len(q.Text) > MaxQuoteLen+len(QuoteEllipsis) {
			t.Errorf("quote longer than %d: %d", MaxQuoteLen+3, len(q.Text))
		}
	}
	// the long sentence shares all 3 words and must rank first, truncated
	if !strings.HasSuffix(qs[0].Text, QuoteEllipsis) || len(qs[0].Text) != MaxQuoteLen+3 {
		t.Errorf("top quote = %q (%d)", qs[0].Text, len(qs[0].Text))
	}
	for i := 1; i < len(qs); i++ {
		if qs[i].Score > qs[i-1].Score {
			t.Errorf("quotes not sorted by score at %d", i)
		}
	}
}

func TestEnrichDropsNonFiniteSimilarity(t *testing.T) {
	hits := []retrieval.Hit{
		{Speech: domain.Speech{ID: "a", CountryName: "Kenya", Year: 1999}, Similarity: math.NaN(), HasSimilarity: true},
		{Speech: domain.Speech{ID: "b", CountryName: "Ghana", Year: 1999}, Similarity: 0.5, HasSimilarity: true},
	}
	out := Enrich(hits, "peace", query.Analyze("peace", false))
	for _, r := range out {
		switch r.Speech.ID {
		case "a":
			if r.Similarity != nil {
				t.Errorf("NaN similarity exposed: %v", *r.Similarity)
			}
		case "b":
			if r.Similarity == nil || *r.Similarity != 0.5 {
				t.Errorf("similarity = %v", r.Similarity)
			}
		}
	}
	if _, err := json.Marshal(out); err != nil {
		t.Fatalf("marshal: %v", err)
	}
}

func TestQuotesIgnoreStopWords(t *testing.T) {
	qs := Quotes("We call for lasting peace in the region", "what is in the region")
	// only "region" is a keyword of the question
	if len(qs) != 1 || qs[0].Score != 1 {
		t.Fatalf("quotes = %+v", qs)
	}
	if qs := Quotes("We call for lasting peace in the region", "what is in it"); len(qs) != 0 {
		t.Errorf("a stop-word-only question should quote nothing, got %+v", qs)
	}
}

func TestQuotesThreshold(t *testing.T) {
	text := "The committee met on Tuesday to review nine budgets. Nothing in this sentence overlaps at all"
	qs := Quotes(text, "one two three four five six seven eight nine ten the")
	// "nine" is 1 of 10 query keywords ("the" is a stop word): 0.1 is not above 0.1
	if len(qs) != 0 {
		t.Errorf("quotes = %+v", qs)
	}
}

func TestEnrichEmpty(t *testing.T) {
	out := Enrich(nil, "anything", query.Analyze("anything", false))
	if out == nil || len(out) != 0 {
		t.Errorf("Enrich(nil) = %#v, want empty non-nil", out)
	}
}

func TestEnrichStableOrder(t *testing.T) {
	a := query.Analyze("What did Kenya say", false)
	hits := []retrieval.Hit{
		{Speech: domain.Speech{ID: "1", CountryName: "Ghana", Year: 2001}},
		{Speech: domain.Speech{ID: "2", CountryName: "Kenya", Year: 2001}},
		{Speech: domain.Speech{ID: "3", CountryName: "Peru", Year: 2001}},
		{Speech: domain.Speech{ID: "4", CountryName: "Kenya", Year: 2002}},
		{Speech: domain.Speech{ID: "5", CountryName: "Chad", Year: 2003}},
	}
	out := Enrich(hits, a.Question, a)
	var got []string
	for _, r := range out {
		got = append(got, r.Speech.ID)
	}
	if strings.Join(got, ",") != "2,4,1,3,5" {
		t.Errorf("order = %v", got)
	}
	if hits[0].Speech.ID != "1" {
		t.Error("input mutated")
	}
}

func TestContextDefaults(t *testing.T) {
	out := Enrich([]retrieval.Hit{{Speech: domain.Speech{WordCount: 12, Session: 4, SourceFilename: "KEN_4_1949.txt"}}}, "q", query.Analyze("q", false))
	c := out[0].Context
	if c.Region != "Unknown" || c.WordCount != 12 || c.Session != 4 || c.SourceFilename != "KEN_4_1949.txt" {
		t.Errorf("context = %+v", c)
	}
}

func TestSimilarityCarried(t *testing.T) {
	out := Enrich([]retrieval.Hit{{Speech: domain.Speech{ID: "a"}, Similarity: 0.25, HasSimilarity: true}, {Speech: domain.Speech{ID: "b"}}}, "q", query.Analyze("q", false))
	if out[0].Similarity == nil || *out[0].Similarity != 0.25 {
		t.Errorf("similarity = %v", out[0].Similarity)
	}
	if out[1].Similarity != nil {
		t.Error("text hit must not carry similarity")
	}
}

func TestBlock(t *testing.T) {
	r := Result{Citation: "Kenya, 1999", Relevance: 0.5, Quotes: []Quote{{Text: "We call for lasting peace"}}}
	got := Block(1, r)
	if !strings.Contains(got, "[1] Kenya, 1999") || !strings.Contains(got, `"We call for lasting peace"`) {
		t.Errorf("block = %q", got)
	}
	r.Quotes = nil
	r.Speech.Text = strings.Repeat("x", 400)
	if got := Block(2, r); !strings.Contains(got, "...") {
		t.Errorf("block without quotes should carry an excerpt: %q", got)
	}
}
