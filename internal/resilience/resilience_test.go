package resilience

import (
	"context"
	"errors"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(context.Context) error { return errBoom }
func succeed(context.Context) error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(BreakerConfig{
		Failures: 3,
		Cooldown: time.Minute,
		OnChange: func(from, to State) { transitions = append(transitions, from.String()+"->"+to.String()) },
	})
	ctx := context.Background()

	for range 2 {
		assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	}
	assert.Equal(t, Closed, cb.State())

	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, Open, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{Failures: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, succeed))
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, Closed, cb.State())
}

func TestBreaker_HalfOpenTrial(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(BreakerConfig{Failures: 1, Cooldown: 10 * time.Second})
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	assert.Equal(t, Open, cb.State())

	now = now.Add(10 * time.Second)
	assert.Equal(t, HalfOpen, cb.State())

	// A failed trial call reopens.
	assert.ErrorIs(t, cb.Execute(ctx, fail), errBoom)
	assert.Equal(t, Open, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)

	// A successful trial call closes.
	now = now.Add(10 * time.Second)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, Closed, cb.State())
}

func TestBreaker_CancellationDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{Failures: 1})
	err := cb.Execute(context.Background(), func(context.Context) error {
		return eris.Wrap(context.Canceled, "post")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Closed, cb.State())
}

func TestBreakerConfigFrom(t *testing.T) {
	cfg := BreakerConfigFrom(4, 12)
	assert.Equal(t, 4, cfg.Failures)
	assert.Equal(t, 12*time.Second, cfg.Cooldown)

	cb := NewCircuitBreaker(BreakerConfigFrom(0, 0))
	assert.Equal(t, 5, cb.cfg.Failures)
	assert.Equal(t, 30*time.Second, cb.cfg.Cooldown)
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), RetryConfig{Attempts: 3, Backoff: time.Millisecond},
		func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &StatusError{URL: "http://x", StatusCode: http.StatusServiceUnavailable}
			}
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{Attempts: 5, Backoff: time.Millisecond},
		func(context.Context) (int, error) {
			calls++
			return 0, &StatusError{URL: "http://x", StatusCode: http.StatusNotFound}
		})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{Attempts: 2, Backoff: time.Millisecond},
		func(context.Context) (int, error) {
			calls++
			return 0, syscall.ECONNRESET
		})
	assert.ErrorIs(t, err, syscall.ECONNRESET)
	assert.Equal(t, 2, calls)
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, RetryConfig{Attempts: 5, Backoff: time.Hour},
		func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, syscall.ECONNREFUSED
		})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errBoom))
	assert.True(t, IsTransient(eris.Wrap(syscall.ECONNREFUSED, "dial")))
	assert.True(t, IsTransient(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, IsTransient(&StatusError{StatusCode: http.StatusBadRequest}))
	assert.Equal(t, "http://x: unexpected status 502", (&StatusError{URL: "http://x", StatusCode: 502}).Error())
}
