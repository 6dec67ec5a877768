// Package speechnlp extracts countries, years, topics, regions and
// organizations from free-text questions about General Assembly speeches
// using fixed lookup tables and regex patterns. No external dependencies.
package speechnlp

import (
	"regexp"
	"sort"
	"strings"
)

// Entities is the structured signal extracted from a question. Every
// category is always present; an absent match is an empty, non-nil slice.
type Entities struct {
	Countries     []string `json:"countries"`
	Years         []int    `json:"years"`
	Topics        []string `json:"topics"`
	Regions       []string `json:"regions"`
	Organizations []string `json:"organizations"`
}

// NewEntities returns an Entities value with every category initialised empty.
func NewEntities() Entities {
	return Entities{
		Countries:     []string{},
		Years:         []int{},
		Topics:        []string{},
		Regions:       []string{},
		Organizations: []string{},
	}
}

// matcher pairs a canonical label with a word-bounded alternation of its variants.
type matcher struct {
	label string
	re    *regexp.Regexp
}

var (
	countryMatchers      []matcher
	topicMatchers        []matcher
	regionMatchers       []matcher
	organizationMatchers []matcher

	topicByLabel map[string]*regexp.Regexp
)

func init() {
	countryMatchers = buildMatchers(countryVariants)
	topicMatchers = buildMatchers(topicKeywords)
	regionMatchers = buildMatchers(regionVariants)
	organizationMatchers = buildMatchers(organizationVariants)

	topicByLabel = make(map[string]*regexp.Regexp, len(topicMatchers))
	for _, m := range topicMatchers {
		topicByLabel[m.label] = m.re
	}
}

// buildMatchers compiles one regex per label, variants sorted longest first.
func buildMatchers(table map[string][]string) []matcher {
	labels := make([]string, 0, len(table))
	for label := range table {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := make([]matcher, 0, len(labels))
	for _, label := range labels {
		variants := append([]string(nil), table[label]...)
		sort.SliceStable(variants, func(i, j int) bool { return len(variants[i]) > len(variants[j]) })
		quoted := make([]string, len(variants))
		for i, v := range variants {
			quoted[i] = regexp.QuoteMeta(v)
		}
		out = append(out, matcher{
			label: label,
			re:    regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
		})
	}
	return out
}

// Extract parses a question into entities. It never fails.
func Extract(question string) Entities {
	lower := strings.ToLower(question)
	e := NewEntities()
	e.Countries = match(countryMatchers, lower)
	e.Years = ExtractYears(question)
	e.Topics = match(topicMatchers, lower)
	e.Regions = match(regionMatchers, lower)
	e.Organizations = match(organizationMatchers, lower)
	return e
}

// ExtractCountries returns the canonical country labels mentioned in text.
func ExtractCountries(text string) []string {
	return match(countryMatchers, strings.ToLower(text))
}

// ExtractTopics returns the topic labels whose keywords appear in text.
func ExtractTopics(text string) []string {
	return match(topicMatchers, strings.ToLower(text))
}

func match(matchers []matcher, lower string) []string {
	out := []string{}
	for _, m := range matchers {
		if m.re.MatchString(lower) {
			out = append(out, m.label)
		}
	}
	return out
}

// MentionsTopic reports whether text contains the topic label or any of its
// keywords. Unknown labels match only literally.
func MentionsTopic(text, topic string) bool {
	lower := strings.ToLower(text)
	topic = strings.ToLower(topic)
	if strings.Contains(lower, topic) {
		return true
	}
	re, ok := topicByLabel[topic]
	return ok && re.MatchString(lower)
}
