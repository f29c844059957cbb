package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/onnwee/streamlens/backend/telemetry"
)

// Cache is a TTL metadata cache with request coalescing. Concurrent lookups
// for the same key share one upstream fetch; expired entries are kept around
// so transient upstream failures can be bridged with stale data.
//
// Entries are never evicted on a timer. The key space is the set of channels
// and videos actually being watched, which stays small; Clear exists for the
// few callers that need a reset.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	group   singleflight.Group
	ttl     time.Duration
	now     func() time.Time // test hook
}

type cacheEntry struct {
	meta     *Metadata
	storedAt time.Time
}

// NewCache returns a cache whose entries are fresh for ttl after storage.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Do returns the metadata for key, fetching at most once no matter how many
// goroutines ask concurrently. cached reports whether the value came from a
// fresh cache entry without any upstream fetch this call.
//
// On fetch failure the previous (expired) entry is served instead when one
// exists, unless the failure means the identifier itself is invalid; that
// class of error always propagates.
func (c *Cache) Do(ctx context.Context, key string, fetch func(ctx context.Context) (*Metadata, error)) (meta *Metadata, cached bool, err error) {
	if m, ok := c.lookup(key, true); ok {
		if telemetry.CacheHits != nil {
			telemetry.CacheHits.Inc()
		}
		return m, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A coalesced peer may have refreshed the entry while we waited on
		// the flight lock.
		if m, ok := c.lookup(key, true); ok {
			return m, nil
		}
		m, err := fetch(ctx)
		if err != nil {
			if IsInvalidIdentifier(err) {
				return nil, err
			}
			if stale, ok := c.lookup(key, false); ok {
				if telemetry.CacheStaleServed != nil {
					telemetry.CacheStaleServed.Inc()
				}
				slog.Warn("serving stale metadata after fetch failure",
					slog.String("key", key), slog.Any("err", err))
				return stale, nil
			}
			return nil, err
		}
		c.put(key, m)
		return m, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Metadata), false, nil
}

// lookup returns the entry for key. With freshOnly it reports a hit only
// while the entry is inside its TTL.
func (c *Cache) lookup(key string, freshOnly bool) (*Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if freshOnly && c.now().Sub(e.storedAt) >= c.ttl {
		return nil, false
	}
	return e.meta, true
}

func (c *Cache) put(key string, m *Metadata) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{meta: m, storedAt: c.now()}
	n := len(c.entries)
	c.mu.Unlock()
	telemetry.SetCacheSize(n)
}

// Invalidate drops one entry, forcing the next lookup to refetch.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	n := len(c.entries)
	c.mu.Unlock()
	telemetry.SetCacheSize(n)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	telemetry.SetCacheSize(0)
}

// Len reports the number of entries, fresh or stale.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
