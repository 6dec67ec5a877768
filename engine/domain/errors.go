package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrInvalidSpeech     = errors.New("invalid speech")
	ErrUnknownCountry    = errors.New("unknown country code")
	ErrYearOutOfRange    = errors.New("year out of range")
	ErrEmptyText         = errors.New("speech text is empty")
	ErrBadFilename       = errors.New("filename does not match {ISO3}_{session}_{year}.txt")
	ErrEmptyQuestion     = errors.New("question is empty")
	ErrQuestionTooLong   = errors.New("question too long")
	ErrQueryInjection    = errors.New("question contains suspicious content")
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrEmbeddingsMissing = errors.New("embeddings unavailable")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
