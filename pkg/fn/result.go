// Package fn holds the small generic helpers the ingest and retrieval
// pipelines are composed from: a value-or-error Result, context-aware
// stages, ordered bounded fan-out and retries.
package fn

import "fmt"

// Result is a value or the error that prevented it.
type Result[T any] struct {
	val T
	err error
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Err wraps an error. A nil err still yields a failed Result.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = fmt.Errorf("fn: Err called with nil error")
	}
	return Result[T]{err: err}
}

// Errf wraps a formatted error; %w is honoured.
func Errf[T any](format string, args ...any) Result[T] {
	return Result[T]{err: fmt.Errorf(format, args...)}
}

// FromPair lifts a (value, error) return into a Result.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Result[T]{err: err}
	}
	return Ok(v)
}

func (r Result[T]) IsOk() bool  { return r.err == nil }
func (r Result[T]) IsErr() bool { return r.err != nil }

// Unwrap returns the value and the error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// Collect returns every value in order, or the first error.
func Collect[T any](results []Result[T]) Result[[]T] {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			return Result[[]T]{err: r.err}
		}
		out = append(out, r.val)
	}
	return Ok(out)
}
