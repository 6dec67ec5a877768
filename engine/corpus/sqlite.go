package corpus

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/pkg/speechnlp"
)

//go:embed schema.sql
var schemaSQL string

const speechColumns = `id, country_code, country_name, region, session, year, speech_text,
	word_count, embedding, is_african_member, source_filename, created_at`

// SQLite is the primary corpus store backed by a single SQLite file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the corpus database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	// WAL allows concurrent readers while the ingest writer is active.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	logger.Info("corpus: opened", "path", path)
	return &SQLite{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

// Save inserts or replaces a speech, assigning its deterministic ID when
// missing. The stored record is returned.
func (s *SQLite) Save(ctx context.Context, sp domain.Speech) (domain.Speech, error) {
	if sp.ID == "" {
		sp.ID = SpeechID(sp)
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = time.Now().UTC()
	}
	if sp.WordCount == 0 {
		sp.WordCount = len(strings.Fields(sp.Text))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO speeches (`+speechColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			country_code = excluded.country_code,
			country_name = excluded.country_name,
			region = excluded.region,
			session = excluded.session,
			year = excluded.year,
			speech_text = excluded.speech_text,
			word_count = excluded.word_count,
			embedding = COALESCE(excluded.embedding, speeches.embedding),
			is_african_member = excluded.is_african_member,
			source_filename = excluded.source_filename`,
		sp.ID, sp.CountryCode, sp.CountryName, nullString(sp.Region), sp.Session, sp.Year, sp.Text,
		sp.WordCount, EncodeVector(sp.Embedding), sp.AfricanMember, nullString(sp.SourceFilename),
		sp.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return domain.Speech{}, fmt.Errorf("corpus: save %s: %w", sp.ID, err)
	}
	return sp, nil
}

// SetEmbedding stores the embedding of an existing speech.
func (s *SQLite) SetEmbedding(ctx context.Context, id string, vec []float32) error {
	res, err := s.db.ExecContext(ctx, `UPDATE speeches SET embedding = ? WHERE id = ?`, EncodeVector(vec), id)
	if err != nil {
		return fmt.Errorf("corpus: set embedding %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("corpus: set embedding %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// Search returns speeches matching every non-empty field of f, newest first.
func (s *SQLite) Search(ctx context.Context, f domain.SearchFilter) ([]domain.Speech, error) {
	where, args := whereClause(f)
	q := `SELECT ` + speechColumns + ` FROM speeches` + where +
		` ORDER BY year DESC, country_name ASC, id ASC LIMIT ?`
	args = append(args, Limit(f))
	return s.query(ctx, q, args...)
}

// SimilaritySearch ranks embedded speeches by cosine similarity to vec.
func (s *SQLite) SimilaritySearch(ctx context.Context, vec []float32, limit int) ([]domain.ScoredSpeech, error) {
	all, err := s.query(ctx, `SELECT `+speechColumns+` FROM speeches WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	return RankBySimilarity(all, vec, limit), nil
}

// Get returns the speeches with the given IDs in the order requested.
// Unknown IDs are skipped.
func (s *SQLite) Get(ctx context.Context, ids []string) ([]domain.Speech, error) {
	if len(ids) == 0 {
		return []domain.Speech{}, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.query(ctx, `SELECT `+speechColumns+` FROM speeches WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Speech, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]domain.Speech, 0, len(ids))
	for _, id := range ids {
		if sp, ok := byID[id]; ok {
			out = append(out, sp)
		}
	}
	return out, nil
}

// Unembedded returns up to limit speeches that have no embedding yet.
func (s *SQLite) Unembedded(ctx context.Context, limit int) ([]domain.Speech, error) {
	return s.query(ctx, `SELECT `+speechColumns+` FROM speeches WHERE embedding IS NULL ORDER BY id LIMIT ?`, limit)
}

// Summary reports corpus totals.
func (s *SQLite) Summary(ctx context.Context) (domain.CorpusSummary, error) {
	var (
		sum         domain.CorpusSummary
		first, last sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT country_code), COUNT(embedding), MIN(year), MAX(year)
		FROM speeches`).Scan(&sum.Speeches, &sum.Countries, &sum.Embedded, &first, &last)
	if err != nil {
		return domain.CorpusSummary{}, fmt.Errorf("corpus: summary: %w", err)
	}
	sum.FirstYear, sum.LastYear = int(first.Int64), int(last.Int64)
	return sum, nil
}

func (s *SQLite) query(ctx context.Context, q string, args ...any) ([]domain.Speech, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("corpus: query: %w", err)
	}
	defer rows.Close()

	out := []domain.Speech{}
	for rows.Next() {
		sp, err := scanSpeech(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("corpus: query: %w", err)
	}
	return out, nil
}

func scanSpeech(rows *sql.Rows) (domain.Speech, error) {
	var (
		sp             domain.Speech
		region, source sql.NullString
		embedding      []byte
		created        string
	)
	if err := rows.Scan(&sp.ID, &sp.CountryCode, &sp.CountryName, &region, &sp.Session, &sp.Year,
		&sp.Text, &sp.WordCount, &embedding, &sp.AfricanMember, &source, &created); err != nil {
		return domain.Speech{}, fmt.Errorf("corpus: scan: %w", err)
	}
	sp.Region = region.String
	sp.SourceFilename = source.String
	vec, err := DecodeVector(embedding)
	if err != nil {
		return domain.Speech{}, fmt.Errorf("corpus: scan %s: %w", sp.ID, err)
	}
	sp.Embedding = vec
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		sp.CreatedAt = t
	}
	return sp, nil
}

// whereClause renders f as a SQL WHERE clause with positional arguments.
func whereClause(f domain.SearchFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if kws := speechnlp.Keywords(f.Text); len(kws) > 0 {
		or := make([]string, len(kws))
		for i, kw := range kws {
			or[i] = `lower(speech_text) LIKE ? ESCAPE '\'`
			args = append(args, "%"+escapeLike(kw)+"%")
		}
		conds = append(conds, "("+strings.Join(or, " OR ")+")")
	}
	if len(f.Countries) > 0 {
		p := placeholders(len(f.Countries))
		conds = append(conds, "(upper(country_code) IN ("+p+") OR lower(country_name) IN ("+p+"))")
		for _, c := range f.Countries {
			args = append(args, strings.ToUpper(c))
		}
		for _, c := range f.Countries {
			args = append(args, strings.ToLower(c))
		}
	}
	if len(f.Years) > 0 {
		if lo, hi, ok := YearRange(f.Years); ok {
			conds = append(conds, "year BETWEEN ? AND ?")
			args = append(args, lo, hi)
		} else {
			conds = append(conds, "year IN ("+placeholders(len(f.Years))+")")
			for _, y := range f.Years {
				args = append(args, y)
			}
		}
	}
	if len(f.Regions) > 0 {
		conds = append(conds, "region IN ("+placeholders(len(f.Regions))+")")
		for _, r := range f.Regions {
			args = append(args, r)
		}
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ErrBadVector is returned when a stored embedding blob is malformed.
var ErrBadVector = errors.New("corpus: embedding blob length is not a multiple of 4")

// EncodeVector packs vec as little-endian float32s. A nil or empty vector
// encodes to nil so the column stays NULL.
func EncodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, ErrBadVector
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return vec, nil
}
