package marketdata

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	scanerrors "spread-scanner/internal/errors"
)

// DefaultTTL is the cache entry lifetime when none is configured.
const DefaultTTL = 15 * time.Minute

// entry is a cached payload with its fetch timestamp.
type entry struct {
	payload   interface{}
	fetchedAt time.Time
}

// FetchFunc produces a payload on cache miss.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Cache is a TTL read-through cache. Misses for the same key are collapsed
// into a single underlying fetch; all waiters receive the same result.
// Expired entries are treated as absent and evicted lazily on next access.
type Cache struct {
	ttl   time.Duration
	clock Clock

	mu      sync.RWMutex
	entries map[string]entry
	flight  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a cache with the given TTL. A zero ttl falls back to
// DefaultTTL; a nil clock falls back to time.Now.
func NewCache(ttl time.Duration, clock Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry),
	}
}

// key buckets asOf by the TTL so that requests within the same window share
// an entry across cycles.
func (c *Cache) key(kind DataKind, symbol string, asOf time.Time) string {
	bucket := asOf.Truncate(c.ttl).Unix()
	return fmt.Sprintf("%s:%s:%d", kind, symbol, bucket)
}

// Get returns the cached payload for (kind, symbol, asOf bucket), fetching
// it when absent or expired. When both the cache and the fetch fail, the
// returned error wraps ErrDataUnavailable.
func (c *Cache) Get(ctx context.Context, kind DataKind, symbol string, asOf time.Time, fetch FetchFunc) (interface{}, error) {
	k := c.key(kind, symbol, asOf)

	if payload, ok := c.lookup(k); ok {
		c.hits.Add(1)
		return payload, nil
	}
	c.misses.Add(1)

	payload, err, _ := c.flight.Do(k, func() (interface{}, error) {
		// Re-check under the flight: another waiter may have populated the
		// entry between the miss and the flight acquiring the key.
		if payload, ok := c.lookup(k); ok {
			return payload, nil
		}

		payload, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[k] = entry{payload: payload, fetchedAt: c.clock()}
		c.mu.Unlock()

		return payload, nil
	})
	if err != nil {
		if scanerrors.Is(err, scanerrors.ErrDataUnavailable) {
			return nil, err
		}
		return nil, scanerrors.NewDataError(string(kind), symbol, "fetch failed", err)
	}
	return payload, nil
}

// lookup returns a live entry's payload, evicting it when expired.
func (c *Cache) lookup(k string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.clock().Sub(e.fetchedAt) > c.ttl {
		c.mu.Lock()
		// Entry may have been refreshed since the read; only drop the
		// stale generation.
		if cur, still := c.entries[k]; still && cur.fetchedAt.Equal(e.fetchedAt) {
			delete(c.entries, k)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.payload, true
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
