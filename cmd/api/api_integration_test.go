//go:build integration

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/WessleyAI/unga-engine/engine/app"
	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/engine/rag"
	"github.com/WessleyAI/unga-engine/engine/search"
	"github.com/WessleyAI/unga-engine/pkg/config"
	"github.com/WessleyAI/unga-engine/pkg/metrics"
	"github.com/WessleyAI/unga-engine/pkg/mid"
)

// TestAPI_FullChain runs the SQLite backend behind the production
// middleware chain.
func TestAPI_FullChain(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Corpus.SQLitePath = t.TempDir() + "/corpus.db"

	stores, err := app.Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer stores.Close(ctx)

	for _, s := range []domain.Speech{
		{CountryCode: "CHN", CountryName: "China", Region: "Asia", Session: 75, Year: 2020,
			Text: "China will peak carbon emissions before 2030. Climate change is a shared challenge."},
		{CountryCode: "RUS", CountryName: "Russia", Region: "Europe", Session: 75, Year: 2020,
			Text: "Economic development requires fair trade and stable partnerships."},
	} {
		if _, err := stores.Corpus.Save(ctx, s); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	met := metrics.New()
	opts := search.DefaultOptions()
	opts.Metrics = met
	eng := app.NewEngine(ctx, cfg, stores, opts)
	mux := newMux(eng, rag.New(eng, nil, nil, rag.DefaultOptions(), nil), stores.Corpus, slog.Default())
	mux.Handle("GET /metrics", met.Handler())
	srv := httptest.NewServer(mid.Chain(mux, mid.Recover(slog.Default()), mid.WithRequestID(), mid.Metrics(met)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/analyze", "application/json",
		strings.NewReader(`{"question":"Compare China and Russia on economic development"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out search.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Strategy != domain.StrategyComparative {
		t.Fatalf("strategy = %s", out.Strategy)
	}
	if out.TotalFound != 2 {
		t.Fatalf("expected one speech per country, got %d", out.TotalFound)
	}

	m, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer m.Body.Close()
	if m.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", m.StatusCode)
	}
}
