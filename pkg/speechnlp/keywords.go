package speechnlp

import "strings"

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "to": true,
	"of": true, "in": true, "for": true, "on": true, "with": true,
	"at": true, "by": true, "from": true, "as": true, "into": true,
	"through": true, "during": true, "before": true, "after": true,
	"what": true, "where": true, "when": true, "how": true, "which": true,
	"who": true, "whom": true, "this": true, "that": true, "these": true,
	"those": true, "i": true, "me": true, "my": true, "it": true,
	"its": true, "and": true, "but": true, "or": true, "not": true,
	"about": true, "their": true, "they": true, "over": true, "say": true,
	"said": true, "all": true, "any": true,
}

// Keywords splits text into lowercased keywords for free-text matching,
// dropping stop words, possessives and words of two letters or fewer.
// Order of first appearance is kept; duplicates are dropped.
func Keywords(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, "?.,!;:'\"()[]")
		w = strings.TrimSuffix(w, "'s")
		w = strings.TrimSuffix(w, "’s")
		if len(w) <= 2 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
