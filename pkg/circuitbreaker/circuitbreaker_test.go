package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/drivehub/admin-console/pkg/timeutil"
)

var errDown = errors.New("redis down")

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []string
	cb := New("redis",
		WithFailureThreshold(2),
		WithTimeout(time.Hour),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.True(t, cb.IsClosed())
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.True(t, cb.IsOpen())

	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrCircuitOpen)
	assert.Equal(t, []string{"closed->open"}, transitions)

	counts := cb.Counts()
	assert.Equal(t, 2, counts.Requests)
	assert.Equal(t, 2, counts.TotalFailures)
	assert.Equal(t, 1, counts.Rejected)
}

func TestCircuitBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb := New("redis", WithFailureThreshold(2))

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), ok)
	_ = cb.Execute(context.Background(), fail)
	assert.True(t, cb.IsClosed())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clock := timeutil.NewFixedClock(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	var transitions []string
	cb := New("redis",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(time.Minute),
		WithClock(clock),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	_ = cb.Execute(context.Background(), fail)
	clock.Advance(59 * time.Second)
	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrCircuitOpen)

	clock.Advance(time.Second)
	assert.NoError(t, cb.Execute(context.Background(), ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.NoError(t, cb.Execute(context.Background(), ok))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := timeutil.NewFixedClock(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	cb := New("redis", WithFailureThreshold(1), WithTimeout(time.Minute), WithClock(clock))

	_ = cb.Execute(context.Background(), fail)
	clock.Advance(time.Minute)
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errDown)
	assert.True(t, cb.IsOpen())

	// The open window restarts from the failed probe.
	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenLimitsConcurrentProbes(t *testing.T) {
	clock := timeutil.NewFixedClock(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	cb := New("redis", WithFailureThreshold(1), WithTimeout(time.Minute), WithClock(clock))

	_ = cb.Execute(context.Background(), fail)
	clock.Advance(time.Minute)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return cb.Execute(ctx, ok)
	})
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestCircuitBreaker_Fallback(t *testing.T) {
	cb := New("redis", WithFailureThreshold(1), WithTimeout(time.Hour))
	_ = cb.Execute(context.Background(), fail)

	fellBack := false
	err := cb.ExecuteWithFallback(context.Background(), ok, func(error) error {
		fellBack = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, fellBack)
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	ignored := errors.New("cache miss")
	cb := New("redis", WithFailureThreshold(1), WithIsFailure(func(err error) bool {
		return !errors.Is(err, ignored)
	}))

	_ = cb.Execute(context.Background(), func(context.Context) error { return ignored })
	assert.True(t, cb.IsClosed())
}

func TestRedisBreaker(t *testing.T) {
	cb := RedisBreaker(nil)
	assert.Equal(t, "redis", cb.Name())
	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	assert.True(t, cb.IsOpen())
}
