package application

import (
	"sync"
	"time"
)

// reminderCache remembers which (user, reservation) pairs were reminded
// recently so repeated sweeps do not hit the notification store for pairs
// handled moments ago. Entries expire so the cache stays bounded across
// long uptimes.
type reminderCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]time.Time
}

func newReminderCache(ttl time.Duration, maxEntries int, now func() time.Time) *reminderCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if now == nil {
		now = time.Now
	}
	return &reminderCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]time.Time),
	}
}

func (c *reminderCache) Contains(key string) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	expiresAt, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	if c.now().After(expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return false
	}
	return true
}

func (c *reminderCache) Add(key string) {
	if c == nil {
		return
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = expiry
}

func (c *reminderCache) cleanupLocked() {
	now := c.now()
	for key, expiresAt := range c.entries {
		if now.After(expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *reminderCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}
