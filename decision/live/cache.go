package live

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value   PageSnapshot
	expires time.Time
}

// pageCache is a process-local TTL cache of fetched pages.
type pageCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func newPageCache(ttl time.Duration) *pageCache {
	return &pageCache{ttl: ttl, entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *pageCache) get(key string) (PageSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return PageSnapshot{}, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return PageSnapshot{}, false
	}
	return e.value, true
}

func (c *pageCache) set(key string, v PageSnapshot, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: v, expires: c.now().Add(ttl)}
}

func (c *pageCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// CacheStats summarises cache occupancy.
type CacheStats struct {
	Total   int `json:"total_entries"`
	Active  int `json:"active_entries"`
	Expired int `json:"expired_entries"`
}

func (c *pageCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	s := CacheStats{Total: len(c.entries)}
	for _, e := range c.entries {
		if e.expires.After(now) {
			s.Active++
		}
	}
	s.Expired = s.Total - s.Active
	return s
}
