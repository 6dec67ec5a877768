package ingest

import (
	"errors"

	"github.com/WessleyAI/unga-engine/engine/domain"
)

var (
	// ErrSkipped marks files that are not speeches, such as README.txt.
	ErrSkipped = errors.New("ingest: not a speech file")
	// ErrDuplicate marks a speech whose content was already stored.
	ErrDuplicate = errors.New("ingest: already ingested")
)

// Document is a raw speech file: its corpus file name and its text.
type Document struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// ParsedSpeech is a document resolved into a speech record.
type ParsedSpeech struct {
	Speech domain.Speech
	// Hash identifies the text content for deduplication.
	Hash string
}

// Report summarizes a batch import.
type Report struct {
	Stored     int     `json:"stored"`
	Embedded   int     `json:"embedded"`
	Duplicates int     `json:"duplicates"`
	Skipped    int     `json:"skipped"`
	Failed     int     `json:"failed"`
	Errors     []error `json:"-"`
}

func (r *Report) add(embedded bool, err error) {
	switch {
	case err == nil:
		r.Stored++
		if embedded {
			r.Embedded++
		}
	case errors.Is(err, ErrDuplicate):
		r.Duplicates++
	case errors.Is(err, ErrSkipped):
		r.Skipped++
	default:
		r.Failed++
		r.Errors = append(r.Errors, err)
	}
}

// isBenign reports whether err only means there was nothing to store.
func isBenign(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, ErrSkipped)
}
