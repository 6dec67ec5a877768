//go:build integration

package graph

import (
	"context"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/unga-engine/engine/domain"
)

func testDriver(t *testing.T) neo4j.DriverWithContext {
	t.Helper()
	url := envOr("NEO4J_URL", "neo4j://localhost:7687")
	driver, err := neo4j.NewDriverWithContext(url, neo4j.NoAuth())
	if err != nil {
		t.Fatalf("neo4j connect: %v", err)
	}
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Fatalf("neo4j verify: %v", err)
	}
	t.Cleanup(func() {
		sess := driver.NewSession(ctx, neo4j.SessionConfig{})
		sess.Run(ctx, "MATCH (n) WHERE n:Speech OR n:Country OR n:Region DETACH DELETE n", nil)
		sess.Close(ctx)
		driver.Close(ctx)
	})
	return driver
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestNeo4j_SaveSearchSummary(t *testing.T) {
	g := New(testDriver(t))
	ctx := context.Background()
	if err := g.EnsureSchema(ctx, 2); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	speeches := []domain.Speech{
		{CountryCode: "KEN", CountryName: "Kenya", Region: "Africa", Year: 1999, Session: 54,
			Text: "We call for lasting peace", SourceFilename: "KEN_54_1999.txt", Embedding: []float32{1, 0}},
		{CountryCode: "GHA", CountryName: "Ghana", Region: "Africa", Year: 2001, Session: 56,
			Text: "Climate change threatens our coasts", SourceFilename: "GHA_56_2001.txt"},
	}
	for _, s := range speeches {
		if _, err := g.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := g.Search(ctx, domain.SearchFilter{Text: "peace", Countries: []string{"kenya"}})
	if err != nil || len(got) != 1 || got[0].CountryCode != "KEN" {
		t.Fatalf("Search = %v, %v", got, err)
	}

	codes, err := g.RegionCountries(ctx, "Africa")
	if err != nil || len(codes) != 2 {
		t.Fatalf("RegionCountries = %v, %v", codes, err)
	}

	sum, err := g.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Speeches != 2 || sum.Embedded != 1 || sum.FirstYear != 1999 || sum.LastYear != 2001 {
		t.Fatalf("Summary = %+v", sum)
	}
}
