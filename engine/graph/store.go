// Package graph is a Neo4j corpus backend. Speeches are stored as nodes
// linked to their delivering country, and countries to their region:
//
//	(:Country)-[:DELIVERED]->(:Speech)
//	(:Country)-[:IN_REGION]->(:Region)
package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/WessleyAI/unga-engine/engine/corpus"
	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/pkg/repo"
	"github.com/WessleyAI/unga-engine/pkg/speechnlp"
)

// VectorIndexName is the Neo4j vector index over Speech.embedding.
const VectorIndexName = "speech_embedding"

// Store answers corpus queries from Neo4j.
type Store struct {
	speeches *repo.Neo4jRepo[domain.Speech, string]
}

var _ corpus.Primary = (*Store)(nil)

// New creates a Store over driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{speeches: newSpeechRepo(driver)}
}

// NewWithSessions creates a Store whose sessions come from f.
func NewWithSessions(f repo.SessionFactory) *Store {
	return &Store{speeches: newSpeechRepo(nil, repo.WithSessions[domain.Speech, string](f))}
}

// EnsureSchema creates uniqueness constraints and, when dims > 0, the
// cosine vector index over speech embeddings.
func (g *Store) EnsureSchema(ctx context.Context, dims int) error {
	stmts := []string{
		`CREATE CONSTRAINT speech_id IF NOT EXISTS FOR (s:Speech) REQUIRE s.id IS UNIQUE`,
		`CREATE CONSTRAINT country_code IF NOT EXISTS FOR (c:Country) REQUIRE c.code IS UNIQUE`,
		`CREATE CONSTRAINT region_name IF NOT EXISTS FOR (r:Region) REQUIRE r.name IS UNIQUE`,
		`CREATE INDEX speech_year IF NOT EXISTS FOR (s:Speech) ON (s.year)`,
	}
	if dims > 0 {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE VECTOR INDEX %s IF NOT EXISTS FOR (s:Speech) ON (s.embedding) "+
				"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
			VectorIndexName, dims))
	}
	for _, s := range stmts {
		if err := g.speeches.Exec(ctx, s, nil); err != nil {
			return fmt.Errorf("graph: ensure schema: %w", err)
		}
	}
	return nil
}

// Save merges the speech together with its country and region.
func (g *Store) Save(ctx context.Context, s domain.Speech) (domain.Speech, error) {
	if s.ID == "" {
		s.ID = corpus.SpeechID(s)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.WordCount == 0 {
		s.WordCount = len(strings.Fields(s.Text))
	}

	cypher := `MERGE (n:Speech {id: $id})
		SET n += $props
		MERGE (c:Country {code: $code})
		SET c.name = $name, c.african_member = $african
		MERGE (c)-[:DELIVERED]->(n)
		FOREACH (_ IN CASE WHEN $region <> '' THEN [1] ELSE [] END |
			MERGE (r:Region {name: $region})
			MERGE (c)-[:IN_REGION]->(r))
		RETURN n`
	props := speechToMap(s)
	if !s.HasEmbedding() {
		// keep a previously stored vector
		delete(props, "embedding")
	}
	items, err := g.speeches.Query(ctx, cypher, map[string]any{
		"id":      s.ID,
		"props":   props,
		"code":    s.CountryCode,
		"name":    s.CountryName,
		"african": s.AfricanMember,
		"region":  s.Region,
	})
	if err != nil {
		return domain.Speech{}, fmt.Errorf("graph: save %s: %w", s.ID, err)
	}
	if len(items) == 0 {
		return domain.Speech{}, fmt.Errorf("graph: save %s: no node returned", s.ID)
	}
	return s, nil
}

// SetEmbedding stores the embedding of an existing speech.
func (g *Store) SetEmbedding(ctx context.Context, id string, vec []float32) error {
	items, err := g.speeches.Query(ctx, `MATCH (n:Speech {id: $id}) SET n.embedding = $vec RETURN n`,
		map[string]any{"id": id, "vec": toFloat64s(vec)})
	if err != nil {
		return fmt.Errorf("graph: set embedding %s: %w", id, err)
	}
	if len(items) == 0 {
		return fmt.Errorf("graph: set embedding %s: %w", id, repo.ErrNotFound)
	}
	return nil
}

// Unembedded returns up to limit speeches without an embedding, by ID.
func (g *Store) Unembedded(ctx context.Context, limit int) ([]domain.Speech, error) {
	out, err := g.speeches.Query(ctx,
		`MATCH (n:Speech) WHERE n.embedding IS NULL RETURN n ORDER BY n.id LIMIT $limit`,
		map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("graph: unembedded: %w", err)
	}
	return out, nil
}

// Search returns speeches matching every non-empty field of f, newest first.
func (g *Store) Search(ctx context.Context, f domain.SearchFilter) ([]domain.Speech, error) {
	where, params := whereClause(f)
	params["limit"] = corpus.Limit(f)
	cypher := "MATCH (n:Speech)" + where +
		" RETURN n ORDER BY n.year DESC, n.country_name ASC, n.id ASC LIMIT $limit"
	out, err := g.speeches.Query(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("graph: search: %w", err)
	}
	return out, nil
}

// SimilaritySearch queries the vector index. Neo4j reports cosine scores
// rescaled to [0, 1]; they are mapped back to [-1, 1].
func (g *Store) SimilaritySearch(ctx context.Context, vec []float32, limit int) ([]domain.ScoredSpeech, error) {
	sess := g.speeches.Session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		`CALL db.index.vector.queryNodes($index, $k, $vec) YIELD node AS n, score RETURN n, score`,
		map[string]any{"index": VectorIndexName, "k": limit, "vec": toFloat64s(vec)})
	if err != nil {
		return nil, fmt.Errorf("graph: similarity search: %w", err)
	}
	out := []domain.ScoredSpeech{}
	for res.Next(ctx) {
		rec := res.Record()
		s, err := speechFromRecord(rec)
		if err != nil {
			return nil, err
		}
		raw, _ := rec.Get("score")
		score, _ := raw.(float64)
		out = append(out, domain.ScoredSpeech{Speech: s, Score: 2*score - 1})
	}
	return out, nil
}

// Get returns the speeches with the given IDs in the order requested.
func (g *Store) Get(ctx context.Context, ids []string) ([]domain.Speech, error) {
	found, err := g.speeches.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("graph: get: %w", err)
	}
	byID := make(map[string]domain.Speech, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}
	out := make([]domain.Speech, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Summary reports corpus totals.
func (g *Store) Summary(ctx context.Context) (domain.CorpusSummary, error) {
	sess := g.speeches.Session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (n:Speech)
		RETURN count(n) AS speeches, count(DISTINCT n.country_code) AS countries,
		       count(n.embedding) AS embedded, min(n.year) AS first, max(n.year) AS last`, nil)
	if err != nil {
		return domain.CorpusSummary{}, fmt.Errorf("graph: summary: %w", err)
	}
	if !res.Next(ctx) {
		return domain.CorpusSummary{}, nil
	}
	rec := res.Record()
	return domain.CorpusSummary{
		Speeches:  intValue(rec, "speeches"),
		Countries: intValue(rec, "countries"),
		Embedded:  intValue(rec, "embedded"),
		FirstYear: intValue(rec, "first"),
		LastYear:  intValue(rec, "last"),
	}, nil
}

// RegionCountries returns the codes of countries linked to region.
func (g *Store) RegionCountries(ctx context.Context, region string) ([]string, error) {
	sess := g.speeches.Session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx,
		`MATCH (c:Country)-[:IN_REGION]->(:Region {name: $region}) RETURN c.code AS code ORDER BY code`,
		map[string]any{"region": region})
	if err != nil {
		return nil, fmt.Errorf("graph: region countries: %w", err)
	}
	out := []string{}
	for res.Next(ctx) {
		if v, ok := res.Record().Get("code"); ok {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// Delete removes a speech node and its relationships.
func (g *Store) Delete(ctx context.Context, id string) error {
	return g.speeches.Delete(ctx, id)
}

// whereClause renders f as a Cypher WHERE clause over n.
func whereClause(f domain.SearchFilter) (string, map[string]any) {
	params := map[string]any{}
	var conds []string
	if kws := speechnlp.Keywords(f.Text); len(kws) > 0 {
		conds = append(conds, "any(kw IN $keywords WHERE toLower(n.speech_text) CONTAINS kw)")
		params["keywords"] = kws
	}
	if len(f.Countries) > 0 {
		codes := make([]string, len(f.Countries))
		names := make([]string, len(f.Countries))
		for i, c := range f.Countries {
			codes[i] = strings.ToUpper(c)
			names[i] = strings.ToLower(c)
		}
		conds = append(conds, "(toUpper(n.country_code) IN $codes OR toLower(n.country_name) IN $names)")
		params["codes"], params["names"] = codes, names
	}
	if len(f.Years) > 0 {
		if lo, hi, ok := corpus.YearRange(f.Years); ok {
			conds = append(conds, "n.year >= $year_lo AND n.year <= $year_hi")
			params["year_lo"], params["year_hi"] = lo, hi
		} else {
			conds = append(conds, "n.year IN $years")
			params["years"] = f.Years
		}
	}
	if len(f.Regions) > 0 {
		conds = append(conds, "n.region IN $regions")
		params["regions"] = f.Regions
	}
	if len(conds) == 0 {
		return "", params
	}
	return " WHERE " + strings.Join(conds, " AND "), params
}
