// Package cache provides a thread-safe in-memory cache with TTL support,
// used as the process-local schema cache.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache is a thread-safe in-memory cache with per-entry expiry.
// It satisfies the schema engine's Cache port.
type MemoryCache struct {
	data    sync.Map
	ttl     time.Duration
	stopCh  chan struct{}
	stopped atomic.Bool

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Stats holds cache statistics.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Items   int     `json:"items"`
	HitRate float64 `json:"hit_rate"`
}

// New creates a cache whose entries expire after ttl.
func New(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
}

// Get retrieves a value. Returns the value and true when present and not
// expired.
func (c *MemoryCache) Get(key string) (any, bool) {
	val, ok := c.data.Load(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	e := val.(*entry)
	if time.Now().After(e.expiresAt) {
		c.data.Delete(key)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.value, true
}

// Set stores a value with the default TTL.
func (c *MemoryCache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL.
func (c *MemoryCache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.data.Store(key, &entry{value: value, expiresAt: time.Now().Add(ttl)})
	c.sets.Add(1)
}

// Delete removes a key.
func (c *MemoryCache) Delete(key string) {
	c.data.Delete(key)
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.data.Range(func(key, _ any) bool {
		c.data.Delete(key)
		return true
	})
}

// Stats returns current cache statistics.
func (c *MemoryCache) Stats() Stats {
	items := 0
	c.data.Range(func(_, _ any) bool {
		items++
		return true
	})

	s := Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
		Items:  items,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// StartCleanup starts a background goroutine that periodically removes
// expired entries.
func (c *MemoryCache) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.removeExpired()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop stops the cleanup goroutine.
func (c *MemoryCache) Stop() {
	if c.stopped.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
}

func (c *MemoryCache) removeExpired() {
	now := time.Now()
	c.data.Range(func(key, value any) bool {
		if now.After(value.(*entry).expiresAt) {
			c.data.Delete(key)
		}
		return true
	})
}
