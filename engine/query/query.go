// Package query classifies questions and selects a retrieval strategy.
// Everything here is a pure function of the question text.
package query

import (
	"strings"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/pkg/speechnlp"
)

// Analysis is the per-question understanding handed to retrieval.
type Analysis struct {
	Question   string             `json:"original_query"`
	Intent     domain.Intent      `json:"intent"`
	Entities   speechnlp.Entities `json:"entities"`
	Complexity domain.Complexity  `json:"complexity"`
	Strategy   domain.Strategy    `json:"strategy"`
}

// intentFamilies is checked in order; the first family with a trigger in
// the lowercased question wins.
var intentFamilies = []struct {
	intent   domain.Intent
	triggers []string
}{
	{domain.IntentTrend, []string{"trend", "evolved", "changed", "over time", "past", "years"}},
	{domain.IntentComparison, []string{"compare", "versus", "vs", "difference", "similarity"}},
	{domain.IntentContent, []string{"mentioned", "discussed", "talked about", "content", "themes"}},
	{domain.IntentStatistical, []string{"how many", "count", "frequency", "statistics", "percentage"}},
	{domain.IntentSpecific, []string{"what", "who", "when", "where", "which"}},
}

var (
	connectors  = []string{"and", "or", "but", "however", "while"}
	complexCues = []string{"compare", "versus", "between", "across", "over time", "evolution", "evolved", "past decade"}
)

// simpleTokens is the longest question, in whitespace tokens, that can be simple.
const simpleTokens = 5

// Classify assigns an intent and a complexity tier to a question. The
// entities argument is accepted for callers that already extracted them;
// classification is lexical and does not consult it.
func Classify(question string, _ speechnlp.Entities) (domain.Intent, domain.Complexity) {
	lower := strings.ToLower(question)
	return classifyIntent(lower), complexity(question, lower)
}

func classifyIntent(lower string) domain.Intent {
	for _, fam := range intentFamilies {
		if containsAny(lower, fam.triggers) {
			return fam.intent
		}
	}
	return domain.IntentGeneral
}

func complexity(question, lower string) domain.Complexity {
	if len(strings.Fields(question)) <= simpleTokens && !containsAny(lower, connectors) {
		return domain.ComplexitySimple
	}
	if containsAny(lower, complexCues) {
		return domain.ComplexityComplex
	}
	return domain.ComplexityMedium
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// SelectStrategy maps a classified question to a retrieval strategy.
// Rules are checked in order and the first match wins.
func SelectStrategy(intent domain.Intent, e speechnlp.Entities, c domain.Complexity, embeddings bool) domain.Strategy {
	switch {
	case intent == domain.IntentTrend && c == domain.ComplexityComplex:
		return domain.StrategyComprehensiveTemporal
	case intent == domain.IntentComparison && len(e.Countries) > 1:
		return domain.StrategyComparative
	case intent == domain.IntentContent && len(e.Topics) > 0:
		return domain.StrategySemanticContent
	case intent == domain.IntentStatistical:
		return domain.StrategyStatistical
	case len(e.Years) > 5:
		return domain.StrategyTemporalBroad
	case embeddings && c == domain.ComplexitySimple:
		return domain.StrategySemanticSimple
	default:
		return domain.StrategyHybrid
	}
}

// Analyze runs extraction, classification and strategy selection.
func Analyze(question string, embeddings bool) Analysis {
	e := speechnlp.Extract(question)
	intent, c := Classify(question, e)
	return Analysis{
		Question:   question,
		Intent:     intent,
		Entities:   e,
		Complexity: c,
		Strategy:   SelectStrategy(intent, e, c, embeddings),
	}
}
