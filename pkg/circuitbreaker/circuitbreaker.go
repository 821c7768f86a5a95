// Package circuitbreaker guards optional side channels of the console.
// A Redis outage trips the breaker, and writes are skipped until a
// probe succeeds again, so action dispatch never waits on a dead cache.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/drivehub/admin-console/pkg/timeutil"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	// ErrCircuitOpen is returned while the breaker rejects calls.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when every half-open probe slot is taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithFailureThreshold sets how many consecutive failures open the circuit (default 5).
func WithFailureThreshold(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many half-open successes close it again (default 2).
func WithSuccessThreshold(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.successThreshold = n
		}
	}
}

// WithTimeout sets how long the circuit stays open before probing (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.openFor = d
		}
	}
}

// WithMaxHalfOpenRequests bounds concurrent probes (default 1).
func WithMaxHalfOpenRequests(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.maxProbes = n
		}
	}
}

// WithOnStateChange registers a transition callback. It runs under the
// breaker's lock and must not call back into the breaker.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(cb *CircuitBreaker) { cb.onChange = fn }
}

// WithIsFailure decides which errors count against the circuit. By default
// every non-nil error does.
func WithIsFailure(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.isFailure = fn }
}

// WithClock replaces the wall clock.
func WithClock(c timeutil.Clock) Option {
	return func(cb *CircuitBreaker) {
		if c != nil {
			cb.clock = c
		}
	}
}

// Counts are cumulative call statistics.
type Counts struct {
	Requests       int
	TotalSuccesses int
	TotalFailures  int
	Rejected       int
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	successThreshold int
	openFor          time.Duration
	maxProbes        int
	onChange         func(name string, from, to State)
	isFailure        func(error) bool
	clock            timeutil.Clock

	mu       sync.Mutex
	state    State
	streak   int // consecutive failures when closed, successes when half-open
	probes   int
	openedAt time.Time
	counts   Counts
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 2,
		openFor:          30 * time.Second,
		maxProbes:        1,
		clock:            timeutil.SystemClock{},
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Execute runs fn unless the circuit rejects it. The error of fn is returned
// unchanged.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// ExecuteWithFallback calls fallback instead of failing when the circuit
// rejects the call.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return fallback(err)
	}
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.clock.Now().Sub(cb.openedAt) >= cb.openFor {
		cb.transition(StateHalfOpen)
	}

	switch cb.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if cb.probes < cb.maxProbes {
			cb.probes++
			return nil
		}
		cb.counts.Rejected++
		return ErrTooManyRequests
	default:
		cb.counts.Rejected++
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++
	failed := err != nil
	if failed && cb.isFailure != nil {
		failed = cb.isFailure(err)
	}

	if !failed {
		cb.counts.TotalSuccesses++
		switch cb.state {
		case StateClosed:
			cb.streak = 0
		case StateHalfOpen:
			cb.probes--
			cb.streak++
			if cb.streak >= cb.successThreshold {
				cb.transition(StateClosed)
			}
		}
		return
	}

	cb.counts.TotalFailures++
	switch cb.state {
	case StateClosed:
		cb.streak++
		if cb.streak >= cb.failureThreshold {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.clock.Now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.streak = 0
	cb.probes = 0
	if cb.onChange != nil {
		cb.onChange(cb.name, from, to)
	}
}

// State reports the current state. An open circuit whose timeout elapsed is
// still reported open until the next call probes it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Counts returns a copy of the call statistics.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// IsOpen reports whether calls are currently rejected.
func (cb *CircuitBreaker) IsOpen() bool { return cb.State() == StateOpen }

// IsClosed reports whether the circuit is healthy.
func (cb *CircuitBreaker) IsClosed() bool { return cb.State() == StateClosed }

// RedisBreaker is the preset for the stats cache and event fan-out.
func RedisBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New("redis",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithTimeout(15*time.Second),
		WithOnStateChange(onStateChange),
	)
}
