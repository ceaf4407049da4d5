// Package cache provides a bounded cache of compiled LIKE patterns.
package cache

import (
	"regexp"
	"sync"
	"time"
)

// Cache maps LIKE patterns to their compiled expressions.
// It is safe for concurrent use by independent parsers.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	maxSize int
	maxAge  time.Duration
	hits    int64
	misses  int64
}

// Entry is one cached compiled pattern.
type Entry struct {
	Pattern   string
	Regexp    *regexp.Regexp
	CreatedAt time.Time
	ExpiresAt time.Time
	Hits      int64
}

// New creates a cache holding at most maxSize patterns. A zero maxAge keeps
// entries until they are evicted for space.
func New(maxSize int, maxAge time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache{
		entries: make(map[string]*Entry),
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// Get returns the compiled expression for pattern.
func (c *Cache) Get(pattern string) (*regexp.Regexp, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[pattern]
	if !ok {
		c.misses++
		return nil, false
	}

	if c.maxAge > 0 && time.Now().After(entry.ExpiresAt) {
		delete(c.entries, pattern)
		c.misses++
		return nil, false
	}

	entry.Hits++
	c.hits++
	return entry.Regexp, true
}

// Put stores a compiled expression for pattern.
func (c *Cache) Put(pattern string, re *regexp.Regexp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[pattern]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := time.Now()
	entry := &Entry{
		Pattern:   pattern,
		Regexp:    re,
		CreatedAt: now,
	}
	if c.maxAge > 0 {
		entry.ExpiresAt = now.Add(c.maxAge)
	}
	c.entries[pattern] = entry
}

// InvalidateAll clears the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}

// Stats returns cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: c.hitRate(),
	}
}

func (c *Cache) hitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// evictOldest drops the entry created first. Caller holds mu.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, e := range c.entries {
		if oldestKey == "" || e.CreatedAt.Before(oldest) {
			oldestKey = key
			oldest = e.CreatedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Stats contains cache statistics.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
	HitRate float64
}
