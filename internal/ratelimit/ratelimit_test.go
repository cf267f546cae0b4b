package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/cache"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 7, 0, time.UTC)}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.Path = filepath.Join(t.TempDir(), "cache.db")
	cacheCfg.FastTierEnabled = false

	store, err := cache.New(cacheCfg, cache.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(store, cfg, WithClock(clock.Now)), clock
}

func TestLimiter_FixedWindow(t *testing.T) {
	t.Parallel()

	limiter, clock := newTestLimiter(t, Config{Enabled: true, Requests: 5, Window: time.Minute})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		ok, err := limiter.Allow(ctx, "10.0.0.1", "filter")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within quota", i)
	}

	ok, err := limiter.Allow(ctx, "10.0.0.1", "filter")
	require.NoError(t, err)
	assert.False(t, ok, "sixth request in the window is rejected")

	remaining, err := limiter.Remaining(ctx, "10.0.0.1", "filter")
	require.NoError(t, err)
	assert.Zero(t, remaining)

	// The window rolls over and request seven goes through.
	clock.Advance(61 * time.Second)
	ok, err = limiter.Allow(ctx, "10.0.0.1", "filter")
	require.NoError(t, err)
	assert.True(t, ok)

	remaining, err = limiter.Remaining(ctx, "10.0.0.1", "filter")
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)
}

func TestLimiter_IdentitiesAndActionsAreIndependent(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, Config{Enabled: true, Requests: 1, Window: time.Minute})
	ctx := context.Background()

	ok, err := limiter.Allow(ctx, "10.0.0.1", "filter")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "10.0.0.1", "filter")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(ctx, "10.0.0.2", "filter")
	require.NoError(t, err)
	assert.True(t, ok, "another identity has its own counter")

	ok, err = limiter.Allow(ctx, "10.0.0.1", "details")
	require.NoError(t, err)
	assert.True(t, ok, "another action has its own counter")
}

func TestLimiter_DeniedRequestsAreNotCounted(t *testing.T) {
	t.Parallel()

	limiter, clock := newTestLimiter(t, Config{Enabled: true, Requests: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := limiter.Allow(ctx, "10.0.0.1", "filter")
		require.NoError(t, err)
	}

	// Only the two allowed requests were recorded; the window rollover
	// restores the full quota.
	clock.Advance(time.Minute)
	remaining, err := limiter.Remaining(ctx, "10.0.0.1", "filter")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestLimiter_Disabled(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, Config{Enabled: false, Requests: 1, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		ok, err := limiter.Allow(ctx, "10.0.0.1", "filter")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestLimiter_Reset(t *testing.T) {
	t.Parallel()

	limiter, clock := newTestLimiter(t, Config{Enabled: true, Requests: 5, Window: time.Minute})

	reset := limiter.Reset()
	assert.Equal(t, clock.Now().Truncate(time.Minute).Add(time.Minute), reset)
	assert.True(t, reset.After(clock.Now()))
}
