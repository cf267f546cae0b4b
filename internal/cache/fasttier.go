package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// FastTier is the optional in-memory tier. It is best-effort by contract:
// implementations never return errors, and callers never depend on a value
// being present.
type FastTier interface {
	Get(key string) ([]byte, bool)
	Set(key string, payload []byte, ttl time.Duration)
	Delete(key string)
	Flush()
}

// memoryTier backs the fast tier with an expiring in-memory map.
type memoryTier struct {
	c *gocache.Cache
}

func newMemoryTier() *memoryTier {
	return &memoryTier{c: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (t *memoryTier) Get(key string) ([]byte, bool) {
	v, ok := t.c.Get(key)
	if !ok {
		return nil, false
	}
	payload, ok := v.([]byte)
	return payload, ok
}

func (t *memoryTier) Set(key string, payload []byte, ttl time.Duration) {
	t.c.Set(key, payload, ttl)
}

func (t *memoryTier) Delete(key string) {
	t.c.Delete(key)
}

func (t *memoryTier) Flush() {
	t.c.Flush()
}

// noopTier stands in when the fast tier is disabled; every read misses.
type noopTier struct{}

func (noopTier) Get(string) ([]byte, bool)         { return nil, false }
func (noopTier) Set(string, []byte, time.Duration) {}
func (noopTier) Delete(string)                     {}
func (noopTier) Flush()                            {}
