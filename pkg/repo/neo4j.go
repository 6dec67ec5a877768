package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// DefaultListLimit applies when ListOpts.Limit is not positive.
const DefaultListLimit = 100

// Result is the minimal interface needed from a neo4j result.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// Runner is the minimal interface needed from a neo4j session.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Close(ctx context.Context) error
}

// SessionFactory opens a Runner. Tests substitute their own.
type SessionFactory func(ctx context.Context) Runner

// Neo4jRepo is a generic Neo4j-backed repository over nodes of one label.
// Every node is read back through the variable n.
type Neo4jRepo[T any, ID comparable] struct {
	driver     neo4j.DriverWithContext
	label      string
	idKey      string
	toMap      func(T) map[string]any
	fromRecord func(*neo4j.Record) (T, error)
	newSession SessionFactory
}

// Neo4jOption configures a Neo4jRepo.
type Neo4jOption[T any, ID comparable] func(*Neo4jRepo[T, ID])

// WithIDKey sets the property name used as the ID (default "id").
func WithIDKey[T any, ID comparable](key string) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.idKey = key }
}

// WithSessions replaces the driver session factory.
func WithSessions[T any, ID comparable](f SessionFactory) Neo4jOption[T, ID] {
	return func(r *Neo4jRepo[T, ID]) { r.newSession = f }
}

// NewNeo4jRepo creates a new Neo4j-backed repository.
func NewNeo4jRepo[T any, ID comparable](
	driver neo4j.DriverWithContext,
	label string,
	toMap func(T) map[string]any,
	fromRecord func(*neo4j.Record) (T, error),
	opts ...Neo4jOption[T, ID],
) *Neo4jRepo[T, ID] {
	r := &Neo4jRepo[T, ID]{
		driver:     driver,
		label:      label,
		idKey:      "id",
		toMap:      toMap,
		fromRecord: fromRecord,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Compile-time interface check.
var _ Repository[any, string] = (*Neo4jRepo[any, string])(nil)

// sessionAdapter adapts neo4j.SessionWithContext to Runner.
type sessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *sessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *sessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

// Label returns the node label the repository manages.
func (r *Neo4jRepo[T, ID]) Label() string { return r.label }

// Session opens a session for ad hoc statements. Callers close it.
func (r *Neo4jRepo[T, ID]) Session(ctx context.Context) Runner {
	if r.newSession != nil {
		return r.newSession(ctx)
	}
	return &sessionAdapter{sess: r.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

func (r *Neo4jRepo[T, ID]) Get(ctx context.Context, id ID) (T, error) {
	var zero T
	items, err := r.Query(ctx,
		fmt.Sprintf("MATCH (n:%s {%s: $id}) RETURN n", r.label, r.idKey),
		map[string]any{"id": id})
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, fmt.Errorf("%s %v: %w", r.label, id, ErrNotFound)
	}
	return items[0], nil
}

// GetMany returns the nodes whose ID is in ids, in no particular order.
func (r *Neo4jRepo[T, ID]) GetMany(ctx context.Context, ids []ID) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	return r.Query(ctx,
		fmt.Sprintf("MATCH (n:%s) WHERE n.%s IN $ids RETURN n", r.label, r.idKey),
		map[string]any{"ids": ids})
}

func (r *Neo4jRepo[T, ID]) List(ctx context.Context, opts ListOpts) ([]T, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	params := map[string]any{"offset": opts.Offset, "limit": limit}

	var b strings.Builder
	fmt.Fprintf(&b, "MATCH (n:%s)", r.label)
	if len(opts.Filter) > 0 {
		keys := make([]string, 0, len(opts.Filter))
		for k := range opts.Filter {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		conds := make([]string, len(keys))
		for i, k := range keys {
			p := fmt.Sprintf("f%d", i)
			conds[i] = fmt.Sprintf("n.%s = $%s", Identifier(k), p)
			params[p] = opts.Filter[k]
		}
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" RETURN n")
	if opts.OrderBy != "" {
		field, dir := strings.TrimPrefix(opts.OrderBy, "-"), ""
		if strings.HasPrefix(opts.OrderBy, "-") {
			dir = " DESC"
		}
		fmt.Fprintf(&b, " ORDER BY n.%s%s", Identifier(field), dir)
	}
	b.WriteString(" SKIP $offset LIMIT $limit")
	return r.Query(ctx, b.String(), params)
}

// Upsert merges the entity on its ID property and returns the stored node.
func (r *Neo4jRepo[T, ID]) Upsert(ctx context.Context, entity T) (T, error) {
	var zero T
	props := r.toMap(entity)
	cypher := fmt.Sprintf("MERGE (n:%s {%s: $id}) SET n += $props RETURN n", r.label, r.idKey)
	items, err := r.Query(ctx, cypher, map[string]any{"id": props[r.idKey], "props": props})
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, fmt.Errorf("repo: upsert %s returned nothing", r.label)
	}
	return items[0], nil
}

func (r *Neo4jRepo[T, ID]) Delete(ctx context.Context, id ID) error {
	return r.Exec(ctx,
		fmt.Sprintf("MATCH (n:%s {%s: $id}) DETACH DELETE n", r.label, r.idKey),
		map[string]any{"id": id})
}

// Query runs cypher and decodes every record with the repository decoder.
func (r *Neo4jRepo[T, ID]) Query(ctx context.Context, cypher string, params map[string]any) ([]T, error) {
	sess := r.Session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	items := []T{}
	for res.Next(ctx) {
		item, err := r.fromRecord(res.Record())
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Exec runs cypher and discards the result.
func (r *Neo4jRepo[T, ID]) Exec(ctx context.Context, cypher string, params map[string]any) error {
	sess := r.Session(ctx)
	defer sess.Close(ctx)
	_, err := sess.Run(ctx, cypher, params)
	return err
}

// Identifier strips everything but letters, digits and underscores so a
// property or label name can be spliced into Cypher.
func Identifier(s string) string {
	safe := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return "_"
	}
	return string(safe)
}
