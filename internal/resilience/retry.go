package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds a retry loop. Zero fields take defaults.
type RetryConfig struct {
	// Attempts is the total number of tries. Default 3.
	Attempts int
	// Backoff is the delay before the first retry, doubled after each. Default 500ms.
	Backoff time.Duration
	// MaxBackoff caps the delay. Default 10s.
	MaxBackoff time.Duration
	// Retryable decides whether an error is worth another try. Default IsTransient.
	Retryable func(err error) bool
	// Name labels retry log lines.
	Name string
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.Retryable == nil {
		c.Retryable = IsTransient
	}
	return c
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. The last error is returned.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	delay := cfg.Backoff

	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || attempt >= cfg.Attempts || !cfg.Retryable(err) {
			return val, err
		}

		zap.L().Warn("resilience: retrying",
			zap.String("operation", cfg.Name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		// ±25% jitter keeps concurrent callers from retrying in lockstep.
		wait := time.Duration(float64(delay) * (0.75 + rand.Float64()/2))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return val, err
		case <-timer.C:
		}
		delay = min(delay*2, cfg.MaxBackoff)
	}
}
