package speechnlp

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// yearFullRe matches 4-digit years, optionally pluralised ("1990s").
	yearFullRe = regexp.MustCompile(`\b((?:19|20)\d{2})s?\b`)
	// decadeShortRe matches two-digit decade shorthand ("90s").
	decadeShortRe = regexp.MustCompile(`(?i)\b(early|mid|late)?[\s-]*'?(\d)0s\b`)
	// eraRe matches "early 1990s", "mid-2000s", "late 1980s".
	eraRe = regexp.MustCompile(`(?i)\b(early|mid|late)[\s-]+((?:19|20)\d)0s?\b`)
)

// relativeSpans are checked in order; only the first phrase found applies.
var relativeSpans = []struct {
	phrase string
	years  int
}{
	{"past decade", 10},
	{"past 5 years", 5},
	{"past 50 years", 50},
}

// now is replaced in tests.
var now = time.Now

// ExtractYears returns every year referenced by text, deduplicated and
// sorted ascending.
//
// Era qualifiers ("early", "mid", "late") are recognised but do not narrow
// the result: "late 1990s" yields 1990. Bare two-digit shorthand ("90s")
// yields nothing unless combined with an era qualifier.
func ExtractYears(text string) []int {
	seen := make(map[int]bool)

	for _, m := range yearFullRe.FindAllStringSubmatch(text, -1) {
		if y, err := strconv.Atoi(m[1]); err == nil {
			seen[y] = true
		}
	}
	for _, m := range eraRe.FindAllStringSubmatch(text, -1) {
		if y, err := strconv.Atoi(m[2] + "0"); err == nil {
			seen[y] = true
		}
	}
	for _, m := range decadeShortRe.FindAllStringSubmatch(text, -1) {
		if m[1] == "" {
			continue
		}
		d, _ := strconv.Atoi(m[2])
		seen[shorthandCentury(d)+d*10] = true
	}

	lower := strings.ToLower(text)
	current := now().Year()
	for _, span := range relativeSpans {
		if strings.Contains(lower, span.phrase) {
			for y := current - span.years; y <= current; y++ {
				seen[y] = true
			}
			break
		}
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// shorthandCentury places a two-digit decade: 50s–90s are 19xx, 00s–40s are 20xx.
func shorthandCentury(decade int) int {
	if decade >= 5 {
		return 1900
	}
	return 2000
}
