// Package cache provides a small in-process TTL cache. It absorbs
// repeated reads of records that change rarely, such as stream
// metadata fetched on every signaling request.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Cache holds values for a fixed TTL and sweeps expired entries in the
// background. All methods are safe for concurrent use.
type Cache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]entry

	done     chan struct{}
	stopOnce sync.Once
}

// NewCache starts a cache whose entries live for ttl. Call Stop when
// the cache is no longer needed to release the sweeper goroutine.
func NewCache(ttl time.Duration) *Cache {
	c := &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Get returns the value stored under key, or false if the key is
// absent or its entry has expired.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired(time.Now()) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for the cache's TTL, replacing any
// previous entry.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of entries, expired ones included until the
// next sweep.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop terminates the background sweeper. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Cache) sweep() {
	interval := c.ttl / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			c.mu.Lock()
			for key, e := range c.entries {
				if e.expired(now) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}
