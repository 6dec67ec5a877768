package graph

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/pkg/repo"
)

// newSpeechRepo creates a Neo4j-backed repository for Speech nodes.
func newSpeechRepo(driver neo4j.DriverWithContext, opts ...repo.Neo4jOption[domain.Speech, string]) *repo.Neo4jRepo[domain.Speech, string] {
	return repo.NewNeo4jRepo[domain.Speech, string](
		driver,
		"Speech",
		speechToMap,
		speechFromRecord,
		opts...,
	)
}

func speechToMap(s domain.Speech) map[string]any {
	return map[string]any{
		"id":                s.ID,
		"country_code":      s.CountryCode,
		"country_name":      s.CountryName,
		"region":            s.Region,
		"session":           int64(s.Session),
		"year":              int64(s.Year),
		"speech_text":       s.Text,
		"word_count":        int64(s.WordCount),
		"embedding":         toFloat64s(s.Embedding),
		"is_african_member": s.AfricanMember,
		"source_filename":   s.SourceFilename,
		"created_at":        s.CreatedAt,
	}
}

// speechFromRecord reads the speech bound to n. The value is a driver node
// in production and a plain property map in tests.
func speechFromRecord(rec *neo4j.Record) (domain.Speech, error) {
	raw, ok := rec.Get("n")
	if !ok {
		return domain.Speech{}, fmt.Errorf("graph: record has no n")
	}
	var props map[string]any
	switch v := raw.(type) {
	case dbtype.Node:
		props = v.Props
	case map[string]any:
		props = v
	default:
		return domain.Speech{}, fmt.Errorf("graph: unexpected node type %T", raw)
	}
	return speechFromProps(props), nil
}

func speechFromProps(props map[string]any) domain.Speech {
	s := domain.Speech{
		ID:             strProp(props, "id"),
		CountryCode:    strProp(props, "country_code"),
		CountryName:    strProp(props, "country_name"),
		Region:         strProp(props, "region"),
		Session:        intProp(props, "session"),
		Year:           intProp(props, "year"),
		Text:           strProp(props, "speech_text"),
		WordCount:      intProp(props, "word_count"),
		Embedding:      vectorProp(props, "embedding"),
		SourceFilename: strProp(props, "source_filename"),
	}
	if b, ok := props["is_african_member"].(bool); ok {
		s.AfricanMember = b
	}
	if t, ok := props["created_at"].(time.Time); ok {
		s.CreatedAt = t
	}
	return s
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func vectorProp(props map[string]any, key string) []float32 {
	switch v := props[key].(type) {
	case []float64:
		return toFloat32s(v)
	case []float32:
		return v
	case []any:
		out := make([]float32, 0, len(v))
		for _, x := range v {
			if f, ok := x.(float64); ok {
				out = append(out, float32(f))
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}

// intValue reads an integer column from a record, 0 when null.
func intValue(rec *neo4j.Record, key string) int {
	v, _ := rec.Get(key)
	n, _ := v.(int64)
	return int(n)
}

func toFloat64s(v []float32) []float64 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func toFloat32s(v []float64) []float32 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
