package resilience

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/WessleyAI/unga-engine/pkg/fn"
)

// LimiterOpts sizes the token bucket in front of an embedding provider.
type LimiterOpts struct {
	Rate  float64 // tokens per second; <= 0 disables limiting
	Burst int     // bucket size; <= 0 means 1
}

// NewLimiter returns nil when opts.Rate disables limiting; LimiterStageWait
// treats a nil limiter as a pass-through.
func NewLimiter(opts LimiterOpts) *rate.Limiter {
	if opts.Rate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(opts.Rate), max(opts.Burst, 1))
}

// LimiterStageWait holds each call to stage until l grants a token or ctx
// ends.
func LimiterStageWait[In, Out any](l *rate.Limiter, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	if l == nil {
		return stage
	}
	return func(ctx context.Context, in In) fn.Result[Out] {
		if err := l.Wait(ctx); err != nil {
			return fn.Errf[Out]("resilience: wait for token: %w", err)
		}
		return stage(ctx, in)
	}
}
