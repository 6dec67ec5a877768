// Package enrich attaches citations, relevance scores, quotes and context
// metadata to raw retrieval hits and orders them for presentation.
package enrich

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/engine/query"
	"github.com/WessleyAI/unga-engine/engine/retrieval"
	"github.com/WessleyAI/unga-engine/pkg/speechnlp"
)

// Relevance weights.
const (
	WeightSimilarity = 0.4
	WeightCountry    = 0.3
	WeightYear       = 0.2
	WeightTopic      = 0.1
)

// Quote extraction limits.
const (
	MinQuoteLen    = 20
	MaxQuotes      = 5
	MaxQuoteLen    = 300
	QuoteEllipsis  = "..."
	minQuoteRatio  = 0.1
	unknownCountry = "Unknown Country"
	unknownYear    = "Unknown Year"
	unknownRegion  = "Unknown"
)

// Quote is a sentence from the speech that overlaps the question.
type Quote struct {
	Text  string  `json:"text"`
	Score float64 `json:"relevance"`
}

// Context is display metadata about the source record.
type Context struct {
	WordCount      int       `json:"word_count"`
	Region         string    `json:"region"`
	AfricanMember  bool      `json:"is_african_member"`
	Session        int       `json:"session,omitempty"`
	SourceFilename string    `json:"source_filename,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Result is one enriched hit.
type Result struct {
	Speech     domain.Speech `json:"speech"`
	Similarity *float64      `json:"similarity,omitempty"`
	Citation   string        `json:"citation"`
	Relevance  float64       `json:"relevance_score"`
	Quotes     []Quote       `json:"relevant_quotes"`
	Context    Context       `json:"context"`
}

// Enrich scores and annotates hits for question and returns them ordered by
// descending relevance. Ties keep retrieval order. Hits are not modified.
func Enrich(hits []retrieval.Hit, question string, a query.Analysis) []Result {
	out := make([]Result, 0, len(hits))
	qwords := wordSet(question)
	for _, h := range hits {
		r := Result{
			Speech:    h.Speech,
			Citation:  Citation(h.Speech),
			Relevance: Relevance(h, a.Entities),
			Quotes:    quotes(h.Speech.Text, qwords),
			Context:   contextOf(h.Speech),
		}
		if finiteSimilarity(h) {
			sim := h.Similarity
			r.Similarity = &sim
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	return out
}

// Citation renders "{country}, {year}" with " (Session n)" when the session
// is known. Missing fields degrade to placeholders.
func Citation(s domain.Speech) string {
	country := s.CountryName
	if country == "" {
		country = s.CountryCode
	}
	if country == "" {
		country = unknownCountry
	}
	year := unknownYear
	if s.Year > 0 {
		year = strconv.Itoa(s.Year)
	}
	c := country + ", " + year
	if s.Session > 0 {
		c += fmt.Sprintf(" (Session %d)", s.Session)
	}
	return c
}

// Relevance scores a hit against the extracted entities, clamped to [0, 1].
func Relevance(h retrieval.Hit, e speechnlp.Entities) float64 {
	var score float64
	if finiteSimilarity(h) {
		score += WeightSimilarity * h.Similarity
	}
	if countryMatches(h.Speech, e.Countries) {
		score += WeightCountry
	}
	for _, y := range e.Years {
		if y == h.Speech.Year {
			score += WeightYear
			break
		}
	}
	for _, topic := range e.Topics {
		if speechnlp.MentionsTopic(h.Speech.Text, topic) {
			score += WeightTopic
			break
		}
	}
	return clamp(score)
}

// finiteSimilarity reports whether h carries a usable similarity score.
func finiteSimilarity(h retrieval.Hit) bool {
	return h.HasSimilarity && !math.IsNaN(h.Similarity) && !math.IsInf(h.Similarity, 0)
}

func countryMatches(s domain.Speech, countries []string) bool {
	name := strings.ToLower(s.CountryName)
	for _, c := range countries {
		c = strings.ToLower(c)
		if c == "" {
			continue
		}
		if strings.EqualFold(c, s.CountryCode) || (name != "" && strings.Contains(name, c)) {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// Quotes returns up to MaxQuotes sentences of text that share words with question.
func Quotes(text, question string) []Quote {
	return quotes(text, wordSet(question))
}

func quotes(text string, qwords map[string]bool) []Quote {
	out := []Quote{}
	if text == "" || len(qwords) == 0 {
		return out
	}
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if utf8.RuneCountInString(sentence) < MinQuoteLen {
			continue
		}
		var shared int
		for w := range wordSet(sentence) {
			if qwords[w] {
				shared++
			}
		}
		ratio := float64(shared) / float64(len(qwords))
		if ratio > minQuoteRatio {
			out = append(out, Quote{Text: truncate(sentence), Score: ratio})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > MaxQuotes {
		out = out[:MaxQuotes]
	}
	return out
}

func truncate(s string) string { return excerpt(s, MaxQuoteLen) }

// wordSet is the keyword set of text: lowercased, stop words and words of
// two letters or fewer dropped.
func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range speechnlp.Keywords(text) {
		set[w] = true
	}
	return set
}

func contextOf(s domain.Speech) Context {
	region := s.Region
	if region == "" {
		region = unknownRegion
	}
	return Context{
		WordCount:      s.WordCount,
		Region:         region,
		AfricanMember:  s.AfricanMember,
		Session:        s.Session,
		SourceFilename: s.SourceFilename,
		CreatedAt:      s.CreatedAt,
	}
}

// Block formats an enriched result as a cited evidence block for prompts.
func Block(n int, r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s (relevance %.2f)\n", n, r.Citation, r.Relevance)
	if len(r.Quotes) == 0 {
		fmt.Fprintf(&b, "%s\n", excerpt(r.Speech.Text, MaxQuoteLen))
		return b.String()
	}
	for _, q := range r.Quotes {
		fmt.Fprintf(&b, "- %q\n", q.Text)
	}
	return b.String()
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + QuoteEllipsis
}
