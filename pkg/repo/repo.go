// Package repo defines the generic Repository interface and list options.
package repo

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no node carries the requested ID.
var ErrNotFound = errors.New("repo: not found")

// Repository is a generic keyed store.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Upsert(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, id ID) error
}

// ListOpts controls pagination, equality filtering and ordering for List.
type ListOpts struct {
	Offset int
	Limit  int
	// Filter keys are property names; values must match exactly.
	Filter map[string]any
	// OrderBy is a property name; prefix with "-" for descending.
	OrderBy string
}
