//go:build integration

package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/unga-engine/engine/corpus"
	"github.com/WessleyAI/unga-engine/engine/graph"
	"github.com/WessleyAI/unga-engine/engine/semantic"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestIngestSQLiteWithQdrant_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := corpus.Open(filepath.Join(t.TempDir(), "speeches.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	index, err := semantic.New(envOr("QDRANT_URL", "localhost:6334"), "test_ingest_speeches")
	if err != nil {
		t.Fatalf("connect qdrant: %v", err)
	}
	defer func() {
		index.DeleteCollection(context.Background())
		index.Close()
	}()
	if err := index.EnsureCollection(ctx, 2); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	store := corpus.NewIndexed(db, index, nil)
	p := NewPipeline(Deps{Store: store, Embedder: &fixedEmbedder{vec: []float32{0.6, 0.8}}, Ledger: memLedger(t), Retry: noRetry})

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"KEN_54_1999.txt": "Kenya calls for peace and regional security.",
		"GHA_54_1999.txt": "Ghana speaks on debt relief and development.",
	})
	rep, err := NewImporter(p, 2, nil).ImportDir(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Stored != 2 || rep.Embedded != 2 {
		t.Fatalf("report = %+v", rep)
	}

	hits, err := store.SimilaritySearch(ctx, []float32{0.6, 0.8}, 5)
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %+v", hits)
	}
}

func TestIngestNeo4jBackfill_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	driver, err := neo4j.NewDriverWithContext(envOr("NEO4J_URL", "neo4j://localhost:7687"),
		neo4j.BasicAuth(envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASS", "password"), ""))
	if err != nil {
		t.Fatalf("neo4j connect: %v", err)
	}
	defer driver.Close(ctx)
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Skipf("neo4j unavailable: %v", err)
	}

	g := graph.New(driver)
	if err := g.EnsureSchema(ctx, 0); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	p := NewPipeline(Deps{Store: g, Retry: noRetry})
	s, err := p.Ingest(ctx, kenya())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	defer g.Delete(context.Background(), s.ID)

	n, err := Backfill(ctx, g, &fixedEmbedder{vec: []float32{1, 0}}, BackfillOpts{Retry: noRetry})
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if n < 1 {
		t.Errorf("embedded = %d", n)
	}
	got, err := g.Get(ctx, []string{s.ID})
	if err != nil || len(got) != 1 || !got[0].HasEmbedding() {
		t.Fatalf("got %+v, err %v", got, err)
	}
}
