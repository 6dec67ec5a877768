package fn

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryOpts bounds how often and how patiently a failing call is repeated.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	// Retryable reports whether a failed attempt should be retried.
	// Nil retries every error.
	Retryable func(error) bool
}

// DefaultRetry suits model-provider calls: three tries within a few seconds.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: 500 * time.Millisecond,
	MaxWait:     5 * time.Second,
	Jitter:      true,
}

// delay is the pause before attempt n+1 (n counts from 0).
func (o RetryOpts) delay(n int) time.Duration {
	d := o.InitialWait << n
	if d <= 0 || (o.MaxWait > 0 && d > o.MaxWait) {
		d = o.MaxWait
	}
	if o.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
		if o.MaxWait > 0 && d > o.MaxWait {
			d = o.MaxWait
		}
	}
	return d
}

func (o RetryOpts) retryable(err error) bool {
	return o.Retryable == nil || o.Retryable(err)
}

// Retry calls f until it succeeds, the attempts run out, the error is not
// retryable or ctx ends. f runs at least once.
func Retry[T any](ctx context.Context, opts RetryOpts, f func(context.Context) Result[T]) Result[T] {
	attempts := max(opts.MaxAttempts, 1)
	for n := 0; ; n++ {
		r := f(ctx)
		_, err := r.Unwrap()
		if err == nil || n+1 == attempts || !opts.retryable(err) {
			return r
		}

		t := time.NewTimer(opts.delay(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return Err[T](ctx.Err())
		case <-t.C:
		}
	}
}

// RetryStage makes stage retry under opts.
func RetryStage[In, Out any](opts RetryOpts, stage Stage[In, Out]) Stage[In, Out] {
	return func(ctx context.Context, in In) Result[Out] {
		return Retry(ctx, opts, func(ctx context.Context) Result[Out] { return stage(ctx, in) })
	}
}
