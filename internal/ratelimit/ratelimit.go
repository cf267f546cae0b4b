// Package ratelimit enforces per-identity, per-action fixed-window quotas.
// Counters live in the durable cache tier under their own scope, keyed by
// the window start, so limits survive process restarts and expire with the
// window.
package ratelimit

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/terryarthur/wp-plugin-directory-filters-sub002/internal/cache"
)

// Store is the slice of the tiered cache the limiter uses.
type Store interface {
	Get(ctx context.Context, scope, key string) ([]byte, bool, error)
	Set(ctx context.Context, scope, key string, payload []byte, ttl time.Duration) error
}

// Config configures a Limiter.
type Config struct {
	// Enabled turns enforcement on. A disabled limiter allows everything.
	Enabled bool
	// Requests is the quota per window.
	Requests int
	// Window is the fixed window length.
	Window time.Duration
}

// DefaultConfig returns the limiter defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Requests: 30,
		Window:   time.Minute,
	}
}

// Limiter counts requests per (identity, action) in fixed windows. The
// read-increment-write is serialized in-process; concurrent processes may
// overshoot by their concurrency degree, which is acceptable for a soft
// limit.
type Limiter struct {
	store  Store
	config Config
	now    func() time.Time

	mu sync.Mutex
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the window time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a limiter over the given store.
func New(store Store, config Config, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		config: config,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// windowStart truncates now to the current window boundary.
func (l *Limiter) windowStart(now time.Time) time.Time {
	return now.Truncate(l.config.Window)
}

// key builds the counter key for the current window.
func (l *Limiter) key(ident, action string, windowStart time.Time) string {
	return fmt.Sprintf("%s|%s|%d", ident, action, windowStart.Unix())
}

// Allow records one request and reports whether it fits the quota. A denied
// request is not counted.
func (l *Limiter) Allow(ctx context.Context, ident, action string) (bool, error) {
	if !l.config.Enabled {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := l.key(ident, action, l.windowStart(l.now()))
	count, err := l.count(ctx, key)
	if err != nil {
		return false, err
	}
	if count >= l.config.Requests {
		return false, nil
	}

	if err := l.store.Set(ctx, cache.ScopeRateLimit, key, encodeCount(count+1), l.config.Window); err != nil {
		return false, err
	}
	return true, nil
}

// Remaining reports how many requests the identity has left in the current
// window.
func (l *Limiter) Remaining(ctx context.Context, ident, action string) (int, error) {
	if !l.config.Enabled {
		return l.config.Requests, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	count, err := l.count(ctx, l.key(ident, action, l.windowStart(l.now())))
	if err != nil {
		return 0, err
	}
	if count >= l.config.Requests {
		return 0, nil
	}
	return l.config.Requests - count, nil
}

// Reset returns when the current window ends and the quota refills.
func (l *Limiter) Reset() time.Time {
	return l.windowStart(l.now()).Add(l.config.Window)
}

// Limit returns the configured per-window quota.
func (l *Limiter) Limit() int {
	return l.config.Requests
}

func (l *Limiter) count(ctx context.Context, key string) (int, error) {
	payload, found, err := l.store.Get(ctx, cache.ScopeRateLimit, key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return decodeCount(payload), nil
}

func encodeCount(n int) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	return buf[:binary.PutUvarint(buf, uint64(n))]
}

func decodeCount(payload []byte) int {
	n, read := binary.Uvarint(payload)
	if read <= 0 {
		return 0
	}
	return int(n)
}
