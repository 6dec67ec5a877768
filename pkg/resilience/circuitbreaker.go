// Package resilience guards calls to the corpus store and model providers
// with a circuit breaker and token-bucket rate limiting.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/WessleyAI/unga-engine/pkg/fn"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed   State = iota // calls pass
	StateOpen                  // calls rejected
	StateHalfOpen              // a limited number of probes pass
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling through while the breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// BreakerOpts configures a Breaker.
type BreakerOpts struct {
	// Name identifies the breaker in OnStateChange.
	Name string
	// FailThreshold is how many consecutive failures trip the breaker.
	FailThreshold int
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// HalfOpenMax is the number of probe calls allowed while half-open.
	HalfOpenMax int
	// IsFailure decides whether an error counts against the breaker.
	// Nil counts every error except context cancellation.
	IsFailure func(error) bool
	// OnStateChange is called outside the breaker lock after a transition.
	OnStateChange func(name string, from, to State)
}

// DefaultBreakerOpts trips after five straight store failures and probes
// again after thirty seconds.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// Breaker is a closed/open/half-open circuit breaker. Safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	opts     BreakerOpts
	state    State
	failures int
	openedAt time.Time
	probes   int
	now      func() time.Time
}

// NewBreaker creates a circuit breaker. Zero fields take DefaultBreakerOpts.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	if opts.IsFailure == nil {
		opts.IsFailure = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	from := b.state
	st := b.refresh()
	b.mu.Unlock()
	b.notify(from, st)
	return st
}

// refresh moves open to half-open once Timeout has elapsed. Must hold mu.
func (b *Breaker) refresh() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.probes = 0
	}
	return b.state
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.opts.OnStateChange != nil {
		b.opts.OnStateChange(b.opts.Name, from, to)
	}
}

// admit reports whether a call may proceed.
func (b *Breaker) admit() bool {
	b.mu.Lock()
	from := b.state
	st := b.refresh()
	ok := true
	switch st {
	case StateOpen:
		ok = false
	case StateHalfOpen:
		if b.probes >= b.opts.HalfOpenMax {
			ok = false
		} else {
			b.probes++
		}
	}
	b.mu.Unlock()
	b.notify(from, st)
	return ok
}

// record applies the outcome of an admitted call.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	from := b.state
	switch {
	case err == nil:
		b.state = StateClosed
		b.failures = 0
	case !b.opts.IsFailure(err):
		if b.state == StateHalfOpen {
			b.probes--
		}
	default:
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
			b.failures = 0
			b.probes = 0
		}
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

// Call runs f unless the breaker is open.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	_, err := CallResult(b, ctx, func(ctx context.Context) fn.Result[struct{}] {
		return fn.FromPair(struct{}{}, f(ctx))
	}).Unwrap()
	return err
}

// CallResult runs f unless the breaker is open and records its outcome.
// An open breaker yields ErrCircuitOpen without calling f.
func CallResult[T any](b *Breaker, ctx context.Context, f func(context.Context) fn.Result[T]) fn.Result[T] {
	if !b.admit() {
		return fn.Err[T](ErrCircuitOpen)
	}
	result := f(ctx)
	_, err := result.Unwrap()
	b.record(err)
	return result
}
