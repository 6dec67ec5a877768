// Package domain defines the speech corpus types, query vocabulary and
// validation shared by every stage of the UNGA query engine.
package domain

import "time"

// MinSpeechYear is the year of the first General Assembly session.
const MinSpeechYear = 1946

// Speech is a single General Assembly statement as stored in the corpus.
// Records are owned by the corpus store; the engine only reads them.
type Speech struct {
	ID             string    `json:"id"`
	CountryCode    string    `json:"country_code"`
	CountryName    string    `json:"country_name"`
	Region         string    `json:"region,omitempty"`
	Session        int       `json:"session,omitempty"`
	Year           int       `json:"year"`
	Text           string    `json:"speech_text"`
	WordCount      int       `json:"word_count"`
	Embedding      []float32 `json:"-"`
	AfricanMember  bool      `json:"is_african_member"`
	SourceFilename string    `json:"source_filename,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasEmbedding reports whether the corpus embedding pass has covered this record.
func (s Speech) HasEmbedding() bool { return len(s.Embedding) > 0 }

// ScoredSpeech is a speech returned by a similarity search together with
// its cosine similarity to the query vector.
type ScoredSpeech struct {
	Speech Speech
	Score  float64
}

// SearchFilter is the combinable filter accepted by corpus stores.
// Non-empty fields are ANDed together; an empty filter matches every record.
type SearchFilter struct {
	Text      string
	Countries []string
	Years     []int
	Regions   []string
	Limit     int
}

// CorpusSummary describes what the corpus currently holds.
type CorpusSummary struct {
	Speeches  int `json:"speeches"`
	Countries int `json:"countries"`
	Embedded  int `json:"embedded"`
	FirstYear int `json:"first_year"`
	LastYear  int `json:"last_year"`
}

// Intent classifies what a question is asking for.
type Intent string

const (
	IntentTrend       Intent = "trend_analysis"
	IntentComparison  Intent = "comparison"
	IntentContent     Intent = "content_analysis"
	IntentStatistical Intent = "statistical"
	IntentSpecific    Intent = "specific_information"
	IntentGeneral     Intent = "general"
)

// Complexity is the lexical complexity tier of a question.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Strategy names a retrieval policy.
type Strategy string

const (
	StrategySemanticSimple        Strategy = "semantic_simple"
	StrategyComprehensiveTemporal Strategy = "comprehensive_temporal"
	StrategyComparative           Strategy = "comparative"
	StrategySemanticContent       Strategy = "semantic_content"
	StrategyStatistical           Strategy = "statistical_analysis"
	StrategyTemporalBroad         Strategy = "temporal_broad"
	StrategyHybrid                Strategy = "hybrid"
)

// ValidStrategies is the set of recognised strategy names.
var ValidStrategies = map[Strategy]bool{
	StrategySemanticSimple: true, StrategyComprehensiveTemporal: true,
	StrategyComparative: true, StrategySemanticContent: true,
	StrategyStatistical: true, StrategyTemporalBroad: true,
	StrategyHybrid: true,
}
