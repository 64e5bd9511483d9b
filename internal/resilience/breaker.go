// Package resilience wraps calls to remote endpoints (progress webhooks,
// upload sources) with a circuit breaker and bounded retries.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is a circuit breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling through while the breaker is open.
var ErrOpen = eris.New("resilience: circuit open")

// BreakerConfig controls a CircuitBreaker. Zero fields take defaults.
type BreakerConfig struct {
	// Failures is the consecutive failure count that opens the circuit. Default 5.
	Failures int
	// Cooldown is how long the circuit stays open before a trial call. Default 30s.
	Cooldown time.Duration
	// Trips decides whether an error counts as a failure. The default counts
	// every error except cancellation.
	Trips func(err error) bool
	// OnChange observes transitions.
	OnChange func(from, to State)
}

// BreakerConfigFrom builds a config from integer settings.
func BreakerConfigFrom(failures, cooldownSecs int) BreakerConfig {
	return BreakerConfig{Failures: failures, Cooldown: time.Duration(cooldownSecs) * time.Second}
}

// CircuitBreaker stops calling an endpoint after repeated failures and lets a
// single trial call through once the cooldown has passed.
type CircuitBreaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.Failures <= 0 {
		cfg.Failures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Trips == nil {
		cfg.Trips = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Execute calls fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// State reports the current state, showing HalfOpen once the cooldown has
// elapsed even before a trial call is admitted.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == Open && cb.cooledDown() {
		return HalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.now().Sub(cb.openedAt) >= cb.cfg.Cooldown
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != Open {
		return nil
	}
	if !cb.cooledDown() {
		return ErrOpen
	}
	cb.moveTo(HalfOpen)
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil || !cb.cfg.Trips(err) {
		cb.failures = 0
		if cb.state == HalfOpen {
			cb.moveTo(Closed)
		}
		return
	}

	cb.failures++
	if cb.state == HalfOpen || cb.failures >= cb.cfg.Failures {
		cb.openedAt = cb.now()
		cb.moveTo(Open)
	}
}

func (cb *CircuitBreaker) moveTo(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.cfg.OnChange != nil {
		cb.cfg.OnChange(from, to)
	}
}
