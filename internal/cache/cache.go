// Package cache memoizes filter results keyed by dataset and date range.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cache stores opaque encoded values with a time to live.
type Cache interface {
	// Get returns the value and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A ttl of zero keeps it until invalidated.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate drops every key starting with prefix.
	Invalidate(ctx context.Context, prefix string) error
}

// FilterKey is the cache key of a dataset filtered to rangeKey.
func FilterKey(datasetID, rangeKey string) string {
	return DatasetPrefix(datasetID) + rangeKey
}

// DatasetPrefix covers every cached result of one dataset.
func DatasetPrefix(datasetID string) string {
	return "filter:" + datasetID + ":"
}

type entry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is an in-process Cache bounded by entry count.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache creates a MemoryCache holding at most maxEntries values
// (unbounded when maxEntries <= 0).
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evict(now)
	}

	e := entry{value: value}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// evict drops expired entries, then the entry closest to expiry if the
// cache is still full. Entries without a ttl go last.
func (c *MemoryCache) evict(now time.Time) {
	var (
		victim    string
		victimExp time.Time
		found     bool
	)
	for key, e := range c.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(c.entries, key)
			continue
		}
		if !found || earlier(e.expires, victimExp) {
			victim, victimExp, found = key, e.expires, true
		}
	}
	if found && len(c.entries) >= c.maxEntries {
		delete(c.entries, victim)
	}
}

// earlier reports whether a expires before b; the zero time never expires.
func earlier(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	if b.IsZero() {
		return true
	}
	return a.Before(b)
}

func (c *MemoryCache) Invalidate(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
