// ABOUTME: Thread-safe TTL cache holding short-term memory values
// ABOUTME: Per-key expiry with lazy checks on read and a periodic background sweep

package memory

import (
	"sync"
	"time"
)

// cacheEntry stores a value and its expiry deadline.
type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Cache provides a thread-safe, per-key-TTL store for short-term memory
// values. Entries become unreadable the instant their TTL elapses; a
// background sweep reclaims the space so no foreground call has to.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	done    chan struct{}
	closed  bool
}

// NewCache creates a cache. A background goroutine periodically removes
// expired entries until Close is called.
func NewCache() *Cache {
	c := &Cache{
		entries: make(map[string]cacheEntry),
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Put stores a value under key with the given TTL. Writing an existing key
// overwrites both value and deadline.
func (c *Cache) Put(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Get returns the value for key, or false if the key is absent or expired.
// Expiry is checked against the clock, not the sweep, so a value is never
// readable past its TTL.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

// Delete removes a key immediately.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// sweep runs in a background goroutine, periodically removing expired entries.
func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runSweep()
		case <-c.done:
			return
		}
	}
}

// runSweep removes all expired entries from the cache.
func (c *Cache) runSweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Close stops the background sweep goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
