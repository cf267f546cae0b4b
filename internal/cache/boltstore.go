package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore is the durable tier: one bbolt bucket per scope, envelope-encoded
// values. It tolerates concurrent readers and writers; every exported method
// is one transaction.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if needed) the durable store at path and
// ensures all scope buckets exist.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating cache dir: %v", ErrStore, err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrStore, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, scope := range Scopes() {
			if _, err := tx.CreateBucketIfNotExists([]byte(scope)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: creating scope buckets: %v", ErrStore, err)
	}

	return &BoltStore{db: db}, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get returns the entry stored under key, without checking expiry.
// Undecodable entries read as misses.
func (s *BoltStore) Get(scope, key string) (Entry, bool, error) {
	var (
		entry Entry
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(scope)).Get([]byte(key))
		if raw == nil {
			return nil
		}
		decoded, err := decodeEnvelope(raw)
		if err != nil {
			return nil
		}
		entry = decoded
		found = true
		return nil
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: get %s: %v", ErrStore, scope, err)
	}
	return entry, found, nil
}

// GetMany returns the entries stored under keys in a single read
// transaction. Absent and undecodable keys are simply omitted.
func (s *BoltStore) GetMany(scope string, keys []string) (map[string]Entry, error) {
	out := make(map[string]Entry, len(keys))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(scope))
		for _, key := range keys {
			raw := b.Get([]byte(key))
			if raw == nil {
				continue
			}
			entry, err := decodeEnvelope(raw)
			if err != nil {
				continue
			}
			out[key] = entry
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get many %s: %v", ErrStore, scope, err)
	}
	return out, nil
}

// Put writes the entry under key.
func (s *BoltStore) Put(scope, key string, entry Entry) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(scope)).Put([]byte(key), encodeEnvelope(entry))
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrStore, scope, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *BoltStore) Delete(scope, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(scope)).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStore, scope, err)
	}
	return nil
}

// DeleteExpired removes up to limit entries whose TTL has passed, scanning
// scope buckets with a cursor. Undecodable entries are removed too.
func (s *BoltStore) DeleteExpired(limit int, now time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, scope := range Scopes() {
			c := tx.Bucket([]byte(scope)).Cursor()
			for k, v := c.First(); k != nil; k, v = c.Next() {
				if removed >= limit {
					return nil
				}
				entry, err := decodeEnvelope(v)
				if err == nil && !entry.Expired(now) {
					continue
				}
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("%w: cleanup: %v", ErrStore, err)
	}
	return removed, nil
}

// Clear removes every entry in scope and returns how many were removed.
func (s *BoltStore) Clear(scope string) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(scope)).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("%w: clear %s: %v", ErrStore, scope, err)
	}
	return removed, nil
}

// Stats walks every scope bucket and aggregates entry counts and stored
// byte sizes (keys plus encoded values).
func (s *BoltStore) Stats() (Stats, error) {
	stats := Stats{PerScope: make(map[string]ScopeStats, len(Scopes()))}
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, scope := range Scopes() {
			var sc ScopeStats
			err := tx.Bucket([]byte(scope)).ForEach(func(k, v []byte) error {
				sc.Entries++
				sc.Bytes += int64(len(k) + len(v))
				return nil
			})
			if err != nil {
				return err
			}
			stats.PerScope[scope] = sc
			stats.Entries += sc.Entries
			stats.TotalBytes += sc.Bytes
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("%w: stats: %v", ErrStore, err)
	}
	return stats, nil
}
