// Package cache provides the byte cache behind paged pricing reads, with an
// in-process LRU backend and a Redis backend.
package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Cache stores opaque values with a TTL and keeps non-expiring counters.
//
// Counters live outside the TTL/eviction space: a counter that has been
// incremented is never lost by eviction of ordinary entries.
type Cache interface {
	// Get returns the value and true on a hit, or false on a miss or expiry.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores val under key for ttl. A non-positive ttl never expires.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Counter returns the current value of a counter, zero if never incremented.
	Counter(ctx context.Context, key string) (int64, error)
	// Incr atomically increments a counter and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
}

// Config selects and tunes a backend.
type Config struct {
	Driver     string // memory or redis
	RedisURL   string
	MaxEntries int
}

// New builds the configured backend.
func New(cfg Config) (Cache, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemory(cfg.MaxEntries), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, eris.New("cache: redis driver requires cache.redis_url")
		}
		return NewRedisFromURL(cfg.RedisURL)
	default:
		return nil, eris.Errorf("cache: unsupported driver %q", cfg.Driver)
	}
}
