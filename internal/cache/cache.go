// Package cache holds the in-process read side of the client-state
// reconciliation layer: a TTL key-value store and a stale-while-revalidate
// source that binds a cache key to an async fetcher.
package cache

import (
	"sync"
	"time"

	"flamecert/api/internal/clock"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 100
)

type entry[V any] struct {
	data      V
	storedAt  time.Time
	expiresAt time.Time
}

// Cache is a string-keyed TTL store. Expired entries are dropped lazily on
// Get/Has and proactively by Cleanup; when the cache is full the
// oldest-inserted key is evicted first (insertion order, not access order).
// All methods are safe for concurrent use. There is deliberately no
// package-level instance: callers construct and inject their own.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	order      []string // insertion order, oldest first
	defaultTTL time.Duration
	maxSize    int
	clock      clock.Clock
}

type Options struct {
	DefaultTTL time.Duration
	MaxSize    int
	Clock      clock.Clock
}

func New[V any](opts Options) *Cache[V] {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: opts.DefaultTTL,
		maxSize:    opts.MaxSize,
		clock:      opts.Clock,
	}
}

// Set stores data under key. ttl <= 0 means the cache default. Overwriting
// an existing key keeps its position in the eviction order.
func (c *Cache[V]) Set(key string, data V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.maxSize && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = entry[V]{data: data, storedAt: now, expiresAt: now.Add(ttl)}
}

// Get returns the value if present and fresh. An expired entry is deleted
// and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.clock.Now().Before(ent.expiresAt) {
		c.removeLocked(key)
		var zero V
		return zero, false
	}
	return ent.data, true
}

// Peek returns the value and whether it is still fresh. Unlike Get it
// never evicts: an expired entry must survive the read so that
// stale-while-revalidate can surface it and a failed refresh can fall
// back to it.
func (c *Cache[V]) Peek(key string) (V, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false, false
	}
	return ent.data, c.clock.Now().Before(ent.expiresAt), true
}

// GetStale returns the value regardless of expiry. It never evicts.
func (c *Cache[V]) GetStale(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return ent.data, true
}

// Has reports whether a fresh entry exists, lazily evicting if expired.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		return false
	}
	if !c.clock.Now().Before(ent.expiresAt) {
		c.removeLocked(key)
		return false
	}
	return true
}

func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	c.removeLocked(key)
	c.mu.Unlock()
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.order = nil
	c.mu.Unlock()
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup evicts every expired entry. Run it on an interval (via
// clock.NewRepeater) so keys that are never read again do not accumulate;
// the lazy checks in Get/Has keep hot paths correct between sweeps.
func (c *Cache[V]) Cleanup() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.order[:0]
	for _, key := range c.order {
		ent, ok := c.entries[key]
		if !ok {
			continue
		}
		if !now.Before(ent.expiresAt) {
			delete(c.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}

func (c *Cache[V]) removeLocked(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
