package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Injection patterns match statement syntax, not single keywords: questions
// routinely name the European Union or ask what a country said "from" 1990.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(;|--)\s*(DROP\s+TABLE|TRUNCATE\s+TABLE|ALTER\s+TABLE|DELETE\s+FROM|INSERT\s+INTO|UPDATE\s+\w+\s+SET|SELECT\s+.+\s+FROM)\b`),
	regexp.MustCompile(`(?i)\bDROP\s+TABLE\b`),
	regexp.MustCompile(`(?i)\bUNION\s+(ALL\s+)?SELECT\b`),
	regexp.MustCompile(`(?i)\bDETACH\s+DELETE\b`),
	regexp.MustCompile(`(?i)\$\{.*\}`),            // template injection
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`), // NoSQL operator injection
}

// filenameRe matches corpus file names such as KEN_54_1999.txt.
var filenameRe = regexp.MustCompile(`^([A-Za-z]{3})_(\d{1,3})_(\d{4})\.txt$`)

// MaxQuestionLength bounds the question text accepted at the API edge.
const MaxQuestionLength = 2000

// MaxSpeechYear is the latest year a speech can carry.
func MaxSpeechYear() int { return time.Now().Year() }

// ValidateQuestion checks a free-text question before it enters the engine.
func ValidateQuestion(q string) error {
	text := strings.TrimSpace(q)
	if text == "" {
		return NewValidationError("question", q, ErrEmptyQuestion)
	}
	if utf8.RuneCountInString(text) > MaxQuestionLength {
		return NewValidationError("question", string([]rune(text)[:32])+"...", ErrQuestionTooLong)
	}
	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError("question", text, ErrQueryInjection)
		}
	}
	return nil
}

// ValidateSpeech checks a speech record before it is written to the corpus.
func ValidateSpeech(s Speech) error {
	if strings.TrimSpace(s.Text) == "" {
		return NewValidationError("speech_text", s.SourceFilename, ErrEmptyText)
	}
	if len(s.CountryCode) != 3 {
		return NewValidationError("country_code", s.CountryCode, ErrUnknownCountry)
	}
	if s.Year < MinSpeechYear || s.Year > MaxSpeechYear() {
		return NewValidationError("year", strconv.Itoa(s.Year), ErrYearOutOfRange)
	}
	if s.Session < 0 {
		return NewValidationError("session", strconv.Itoa(s.Session), ErrInvalidSpeech)
	}
	return nil
}

// ParseFilename extracts (country code, session, year) from a corpus file
// name of the form {ISO3}_{session}_{year}.txt. Directory components are ignored.
func ParseFilename(name string) (code string, session, year int, err error) {
	base := filepath.Base(name)
	m := filenameRe.FindStringSubmatch(base)
	if m == nil {
		return "", 0, 0, NewValidationError("filename", base, ErrBadFilename)
	}
	session, _ = strconv.Atoi(m[2])
	year, _ = strconv.Atoi(m[3])
	return strings.ToUpper(m[1]), session, year, nil
}

// NewSpeech builds a speech record from a corpus file name and its text,
// resolving country name, region and African Union membership from the
// ISO3 reference table. WordCount is fixed here and never recomputed.
func NewSpeech(filename, text string) (Speech, error) {
	code, session, year, err := ParseFilename(filename)
	if err != nil {
		return Speech{}, err
	}
	info, ok := LookupCountry(code)
	if !ok {
		info = CountryInfo{Name: code}
	}
	s := Speech{
		CountryCode:    code,
		CountryName:    info.Name,
		Region:         info.Region,
		Session:        session,
		Year:           year,
		Text:           text,
		WordCount:      len(strings.Fields(text)),
		AfricanMember:  IsAfricanMember(code),
		SourceFilename: filepath.Base(filename),
	}
	if err := ValidateSpeech(s); err != nil {
		return Speech{}, fmt.Errorf("domain: new speech %s: %w", s.SourceFilename, err)
	}
	return s, nil
}
