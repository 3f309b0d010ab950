package cache

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxEntries is the soft capacity of a Cache.
const DefaultMaxEntries = 1000

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a bounded in-process key/value store with per-entry TTLs.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	maxEntries int
	now        func() time.Time
}

// Options configure a Cache.
type Options struct {
	MaxEntries int
	Clock      func() time.Time
}

// New builds an empty cache.
func New[V any](opts Options) *Cache[V] {
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		maxEntries: maxEntries,
		now:        clock,
	}
}

// Get returns the live value for key. Expired entries are dropped on read.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	item, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(item.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return item.value, true
}

// Set stores value for ttl. A non-positive ttl is a no-op.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(ttl)}
	if len(c.entries) > c.maxEntries {
		c.evict(now)
	}
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evict purges expired entries, then drops the soonest-expiring ones until the cache
// is back at capacity.
func (c *Cache[V]) evict(now time.Time) {
	for key, item := range c.entries {
		if !now.Before(item.expiresAt) {
			delete(c.entries, key)
		}
	}
	overflow := len(c.entries) - c.maxEntries
	if overflow <= 0 {
		return
	}
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].expiresAt.Before(c.entries[keys[j]].expiresAt)
	})
	for _, key := range keys[:overflow] {
		delete(c.entries, key)
	}
}
