// Package cache provides the bounded in-memory cache tier with per-entry
// expiry and least-recently-accessed eviction.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/epeers/vnmarket/internal/models"
)

// MemoryCache is a bounded key/value cache. Every entry carries its own
// expiry; when the cache is full, the least-recently-accessed 10% of entries
// (at least one) are evicted to make room.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	maxEntries int
	defaultTTL time.Duration

	hits      int64
	misses    int64
	evictions int64

	now func() time.Time
}

type entry struct {
	value      interface{}
	expiresAt  time.Time
	accessedAt time.Time
}

// NewMemoryCache creates a cache bounded to maxEntries with a default TTL for
// entries stored without an explicit one.
func NewMemoryCache(maxEntries int, defaultTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the cached value if present and not expired. Expired entries are
// removed on access.
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	e.accessedAt = c.now()
	c.hits++
	return e.value, true
}

// Set stores a value with the default TTL.
func (c *MemoryCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with an explicit TTL, evicting if the cache is
// full and the key is new.
func (c *MemoryCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = &entry{
		value:      value,
		expiresAt:  c.now().Add(ttl),
		accessedAt: c.now(),
	}
}

// evictLocked removes the least-recently-accessed 10% of entries, minimum one.
func (c *MemoryCache) evictLocked() {
	n := len(c.entries) / 10
	if n < 1 {
		n = 1
	}

	type keyed struct {
		key        string
		accessedAt time.Time
	}
	all := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, keyed{k, e.accessedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].accessedAt.Before(all[j].accessedAt) })

	for i := 0; i < n && i < len(all); i++ {
		delete(c.entries, all[i].key)
		c.evictions++
	}
}

// Delete removes a key.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// CleanupExpired drops expired entries and returns how many were removed.
func (c *MemoryCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the cache counters.
func (c *MemoryCache) Stats() models.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.CacheStats{
		Entries:    len(c.entries),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
}

// Len returns the number of live entries (expired included until swept).
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
