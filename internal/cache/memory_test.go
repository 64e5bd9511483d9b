package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(100)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestMemory_SetCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10)

	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf, 0))
	buf[0] = 'z'

	got, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
}

func TestMemory_TTLExpiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(10)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 60*time.Second))

	now = now.Add(59 * time.Second)
	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)

	c.mu.Lock()
	_, exists := c.entries["k"]
	c.mu.Unlock()
	assert.False(t, exists)
}

func TestMemory_LRUEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(3)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	// Touch "a" so "b" becomes the oldest.
	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "d", []byte("4"), 0))

	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok)
	for _, k := range []string{"a", "c", "d"} {
		_, ok, _ := c.Get(ctx, k)
		assert.True(t, ok, k)
	}
}

func TestMemory_CountersSurviveEviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(1)

	n, err := c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = c.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for i := range 5 {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i), []byte("x"), 0))
	}

	n, err = c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemory_Stats(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(5)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	_, _, _ = c.Get(ctx, "k")
	_, _, _ = c.Get(ctx, "missing")

	s := c.Stats()
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, 5, s.MaxEntries)
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 0.5, s.HitRate, 0.001)
}

func TestMemory_ConcurrentIncr(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(100)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Incr(ctx, "gen")
			_ = c.Set(ctx, "k", []byte("v"), time.Minute)
			_, _, _ = c.Get(ctx, "k")
		}()
	}
	wg.Wait()

	n, err := c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)
}

func TestNew(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	_, err = New(Config{Driver: "redis"})
	require.Error(t, err)

	_, err = New(Config{Driver: "memcached"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}
