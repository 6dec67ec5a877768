// Package corpus stores General Assembly speeches and answers the filtered
// and similarity queries issued by retrieval.
package corpus

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/WessleyAI/unga-engine/engine/domain"
	"github.com/WessleyAI/unga-engine/pkg/speechnlp"
)

// DefaultLimit applies when a filter carries no positive limit.
const DefaultLimit = 100

// betweenThreshold is the number of consecutive years above which a year
// filter is rendered as a range instead of a list.
const betweenThreshold = 20

var speechNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("unga-engine/speech"))

// SpeechID returns the deterministic ID of a speech: derived from its source
// filename when known, otherwise from country, session and year.
func SpeechID(s domain.Speech) string {
	key := s.SourceFilename
	if key == "" {
		key = strings.ToUpper(s.CountryCode) + "_" + strconv.Itoa(s.Session) + "_" + strconv.Itoa(s.Year)
	}
	return uuid.NewSHA1(speechNamespace, []byte(key)).String()
}

// Limit returns the effective row limit for f.
func Limit(f domain.SearchFilter) int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	return f.Limit
}

// Matches reports whether s satisfies every non-empty field of f. Text
// matches when any keyword of f.Text occurs in the speech text.
func Matches(s domain.Speech, f domain.SearchFilter) bool {
	if kws := speechnlp.Keywords(f.Text); len(kws) > 0 {
		text := strings.ToLower(s.Text)
		found := false
		for _, kw := range kws {
			if strings.Contains(text, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Countries) > 0 && !countryIn(s, f.Countries) {
		return false
	}
	if len(f.Years) > 0 && !yearIn(s.Year, f.Years) {
		return false
	}
	if len(f.Regions) > 0 && !regionIn(s.Region, f.Regions) {
		return false
	}
	return true
}

func countryIn(s domain.Speech, countries []string) bool {
	for _, c := range countries {
		if strings.EqualFold(c, s.CountryCode) || strings.EqualFold(c, s.CountryName) {
			return true
		}
	}
	return false
}

func yearIn(y int, years []int) bool {
	if lo, hi, ok := YearRange(years); ok {
		return y >= lo && y <= hi
	}
	for _, v := range years {
		if v == y {
			return true
		}
	}
	return false
}

func regionIn(r string, regions []string) bool {
	for _, v := range regions {
		if v == r {
			return true
		}
	}
	return false
}

// YearRange reports whether years form a run of more than 20 consecutive
// years, returning its bounds.
func YearRange(years []int) (lo, hi int, ok bool) {
	if len(years) <= betweenThreshold {
		return 0, 0, false
	}
	sorted := append([]int(nil), years...)
	sort.Ints(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1]+1 {
			return 0, 0, false
		}
	}
	return sorted[0], sorted[len(sorted)-1], true
}

// SortSpeeches orders speeches newest first, then by country name and ID.
func SortSpeeches(speeches []domain.Speech) {
	sort.SliceStable(speeches, func(i, j int) bool {
		a, b := speeches[i], speeches[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.CountryName != b.CountryName {
			return a.CountryName < b.CountryName
		}
		return a.ID < b.ID
	})
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// RankBySimilarity scores embedded speeches against query and returns the
// top limit, highest similarity first. Speeches without embeddings are skipped.
func RankBySimilarity(speeches []domain.Speech, query []float32, limit int) []domain.ScoredSpeech {
	out := make([]domain.ScoredSpeech, 0, len(speeches))
	for _, s := range speeches {
		if !s.HasEmbedding() {
			continue
		}
		out = append(out, domain.ScoredSpeech{Speech: s, Score: Cosine(query, s.Embedding)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
