// Package cache implements the two-tier cache behind the plugin directory:
// an optional in-memory fast tier in front of an embedded durable store.
// The durable tier is the source of truth; the fast tier only ever shortens
// the path to it and silently degrades to nothing when disabled or cold.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Cache scopes. Each scope is one durable bucket with its own TTL class and
// can be cleared independently.
const (
	ScopeMeta      = "meta"
	ScopeScores    = "scores"
	ScopeSearch    = "search"
	ScopeRateLimit = "ratelimit"

	// ScopeAll addresses every scope at once in Clear.
	ScopeAll = "all"
)

// Cache errors.
var (
	ErrStore        = errors.New("cache store failure")
	ErrUnknownScope = errors.New("unknown cache scope")
)

// Scopes returns the fixed scope set, in stable order.
func Scopes() []string {
	return []string{ScopeMeta, ScopeScores, ScopeSearch, ScopeRateLimit}
}

// ValidScope reports whether name is a known scope or ScopeAll.
func ValidScope(name string) bool {
	if name == ScopeAll {
		return true
	}
	for _, scope := range Scopes() {
		if name == scope {
			return true
		}
	}
	return false
}

// DefaultPath returns the platform cache location for the durable store.
func DefaultPath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "wpdirfilter", "cache.db")
}

// ScopeStats aggregates one scope's durable footprint.
type ScopeStats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Stats aggregates the durable tier's footprint.
type Stats struct {
	Entries    int                   `json:"entries"`
	TotalBytes int64                 `json:"total_bytes"`
	PerScope   map[string]ScopeStats `json:"per_scope"`
}

// Config configures a TieredCache.
type Config struct {
	// Path is the durable store file. Empty means DefaultPath().
	Path string
	// FastTierEnabled turns the in-memory tier on.
	FastTierEnabled bool
	// FastTierCap bounds how long any entry may live in the fast tier,
	// regardless of the caller-requested TTL.
	FastTierCap time.Duration
	// CompressionThreshold is the payload size in bytes above which durable
	// values are compressed. Zero disables compression.
	CompressionThreshold int
	// StatsWindow is how long a computed Stats result is reused.
	StatsWindow time.Duration
}

// DefaultConfig returns the cache defaults used when no configuration file
// is present.
func DefaultConfig() Config {
	return Config{
		Path:                 DefaultPath(),
		FastTierEnabled:      true,
		FastTierCap:          5 * time.Minute,
		CompressionThreshold: 1024,
		StatsWindow:          10 * time.Second,
	}
}

// TieredCache is the shared cache described above. It is safe for
// concurrent use.
type TieredCache struct {
	store     *BoltStore
	fast      FastTier
	fastCap   time.Duration
	threshold int
	now       func() time.Time

	statsMu     sync.Mutex
	statsWindow time.Duration
	statsAt     time.Time
	statsMemo   Stats
}

// Option configures a TieredCache beyond its Config.
type Option func(*TieredCache)

// WithClock overrides the expiry time source.
func WithClock(now func() time.Time) Option {
	return func(c *TieredCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithFastTier substitutes the fast tier implementation.
func WithFastTier(tier FastTier) Option {
	return func(c *TieredCache) {
		if tier != nil {
			c.fast = tier
		}
	}
}

// New opens the durable store and assembles the tiers.
func New(cfg Config, opts ...Option) (*TieredCache, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultPath()
	}
	store, err := OpenBoltStore(cfg.Path)
	if err != nil {
		return nil, err
	}

	var fast FastTier = noopTier{}
	if cfg.FastTierEnabled {
		fast = newMemoryTier()
	}

	c := &TieredCache{
		store:       store,
		fast:        fast,
		fastCap:     cfg.FastTierCap,
		threshold:   cfg.CompressionThreshold,
		now:         time.Now,
		statsWindow: cfg.StatsWindow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the durable store.
func (c *TieredCache) Close() error {
	c.fast.Flush()
	return c.store.Close()
}

// digest hashes a logical key into the fixed-width durable key.
func digest(logicalKey string) string {
	sum := sha256.Sum256([]byte(logicalKey))
	return hex.EncodeToString(sum[:])
}

// fastKey namespaces a durable key for the shared fast tier.
func fastKey(scope, key string) string {
	return scope + ":" + key
}

func checkScope(scope string) error {
	for _, s := range Scopes() {
		if scope == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownScope, scope)
}

// Get returns the payload stored under key, trying the fast tier first.
// Expired durable entries read as misses and are lazily deleted.
func (c *TieredCache) Get(ctx context.Context, scope, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := checkScope(scope); err != nil {
		return nil, false, err
	}
	k := digest(key)

	if payload, ok := c.fast.Get(fastKey(scope, k)); ok {
		return payload, true, nil
	}

	entry, found, err := c.store.Get(scope, k)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	now := c.now()
	if entry.Expired(now) {
		_ = c.store.Delete(scope, k)
		return nil, false, nil
	}

	payload := entry.Payload
	if entry.Compressed {
		payload, err = decompressPayload(payload)
		if err != nil {
			_ = c.store.Delete(scope, k)
			return nil, false, nil
		}
	}

	c.backfill(scope, k, payload, entry, now)
	return payload, true, nil
}

// backfill writes a durable hit into the fast tier for its remaining
// lifetime, capped by fastCap. Best-effort.
func (c *TieredCache) backfill(scope, key string, payload []byte, entry Entry, now time.Time) {
	ttl := c.fastCap
	if entry.TTL > 0 {
		if remaining := entry.ExpiresAt().Sub(now); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return
	}
	c.fast.Set(fastKey(scope, key), payload, ttl)
}

// Set writes payload under key: durably always, and to the fast tier with
// min(ttl, fastCap).
func (c *TieredCache) Set(ctx context.Context, scope, key string, payload []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkScope(scope); err != nil {
		return err
	}
	k := digest(key)

	stored := payload
	compressed := false
	if c.threshold > 0 && len(payload) > c.threshold {
		if packed, err := compressPayload(payload); err == nil && len(packed) < len(payload) {
			stored = packed
			compressed = true
		}
	}

	err := c.store.Put(scope, k, Entry{
		Payload:    stored,
		StoredAt:   c.now(),
		TTL:        ttl,
		Compressed: compressed,
	})
	if err != nil {
		return err
	}

	fastTTL := ttl
	if fastTTL <= 0 || fastTTL > c.fastCap {
		fastTTL = c.fastCap
	}
	if fastTTL > 0 {
		c.fast.Set(fastKey(scope, k), payload, fastTTL)
	}
	return nil
}

// Delete removes key from both tiers. Idempotent.
func (c *TieredCache) Delete(ctx context.Context, scope, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkScope(scope); err != nil {
		return err
	}
	k := digest(key)
	c.fast.Delete(fastKey(scope, k))
	return c.store.Delete(scope, k)
}

// GetMany returns the payloads for every present, unexpired key. All durable
// lookups happen in one read transaction regardless of len(keys); expired
// entries are excluded and lazily deleted.
func (c *TieredCache) GetMany(ctx context.Context, scope string, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkScope(scope); err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(keys))
	digests := make(map[string]string, len(keys))

	var misses []string
	for _, key := range keys {
		k := digest(key)
		digests[k] = key
		if payload, ok := c.fast.Get(fastKey(scope, k)); ok {
			out[key] = payload
			continue
		}
		misses = append(misses, k)
	}
	if len(misses) == 0 {
		return out, nil
	}

	entries, err := c.store.GetMany(scope, misses)
	if err != nil {
		return nil, err
	}

	now := c.now()
	var expired []string
	for k, entry := range entries {
		if entry.Expired(now) {
			expired = append(expired, k)
			continue
		}
		payload := entry.Payload
		if entry.Compressed {
			payload, err = decompressPayload(payload)
			if err != nil {
				expired = append(expired, k)
				continue
			}
		}
		c.backfill(scope, k, payload, entry, now)
		out[digests[k]] = payload
	}
	for _, k := range expired {
		_ = c.store.Delete(scope, k)
	}
	return out, nil
}

// Cleanup deletes up to limit expired durable entries and returns how many
// were removed. Safe to run while the cache serves traffic.
func (c *TieredCache) Cleanup(ctx context.Context, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, nil
	}
	return c.store.DeleteExpired(limit, c.now())
}

// Clear wipes one scope, or every scope for ScopeAll, and returns the number
// of durable entries removed. The fast tier is flushed whole so a clear is
// never masked by a lingering fast hit.
func (c *TieredCache) Clear(ctx context.Context, scope string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	scopes := []string{scope}
	if scope == ScopeAll {
		scopes = Scopes()
	} else if err := checkScope(scope); err != nil {
		return 0, err
	}

	removed := 0
	for _, s := range scopes {
		n, err := c.store.Clear(s)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	c.fast.Flush()

	c.statsMu.Lock()
	c.statsAt = time.Time{}
	c.statsMu.Unlock()

	return removed, nil
}

// Stats returns the durable tier's aggregate footprint. The computation
// walks every bucket, so results are memoized for the configured window.
func (c *TieredCache) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	now := c.now()
	if !c.statsAt.IsZero() && now.Sub(c.statsAt) < c.statsWindow {
		return c.statsMemo, nil
	}

	stats, err := c.store.Stats()
	if err != nil {
		return Stats{}, err
	}
	c.statsMemo = stats
	c.statsAt = now
	return stats, nil
}

// GetJSON reads key and unmarshals it into v.
func (c *TieredCache) GetJSON(ctx context.Context, scope, key string, v any) (bool, error) {
	payload, found, err := c.Get(ctx, scope, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return false, fmt.Errorf("%w: decoding %s entry: %v", ErrStore, scope, err)
	}
	return true, nil
}

// SetJSON marshals v and stores it under key.
func (c *TieredCache) SetJSON(ctx context.Context, scope, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding %s entry: %v", ErrStore, scope, err)
	}
	return c.Set(ctx, scope, key, payload, ttl)
}
