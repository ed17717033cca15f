// Package cache provides a bounded TTL cache shared by the backend adapters
// (tag cache, result cache) and the search orchestrator (pagination state).
//
// Entries are visible to readers only while now-refreshed < TTL; expired
// entries are logically absent even when still physically present until a
// sweep. When the entry count reaches the configured capacity, the next insert
// sweeps expired entries first, then the oldest remaining entries, until the
// cache is at or below keepRatio*capacity.
package cache

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultKeepRatio is used when a non-positive keep ratio is configured.
const DefaultKeepRatio = 0.8

// entry wraps a cached value with its insertion/refresh timestamp.
type entry[V any] struct {
	value     V
	refreshed time.Time
}

// TTLCache is a bounded cache with per-entry TTL and keep-ratio eviction.
// Safe for concurrent use.
type TTLCache[K comparable, V any] struct {
	mu        sync.RWMutex
	store     *lru.Cache[K, *entry[V]]
	ttl       time.Duration
	capacity  int
	keepRatio float64

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a TTL cache with the given capacity, entry TTL, and keep ratio.
func New[K comparable, V any](capacity int, ttl time.Duration, keepRatio float64) (*TTLCache[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	if keepRatio <= 0 || keepRatio > 1 {
		keepRatio = DefaultKeepRatio
	}
	store, err := lru.New[K, *entry[V]](capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru store: %w", err)
	}
	return &TTLCache[K, V]{
		store:     store,
		ttl:       ttl,
		capacity:  capacity,
		keepRatio: keepRatio,
	}, nil
}

// Get returns the value for key if present and unexpired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	now := time.Now()

	c.mu.RLock()
	e, ok := c.store.Get(key)
	c.mu.RUnlock()

	if ok && now.Sub(e.refreshed) < c.ttl {
		c.hits.Add(1)
		return e.value, true
	}

	// Expired entries are logically absent; drop them on sight.
	if ok {
		c.mu.Lock()
		if e2, still := c.store.Peek(key); still && e2 == e {
			c.store.Remove(key)
		}
		c.mu.Unlock()
	}

	c.misses.Add(1)
	return zero, false
}

// Put stores or refreshes the value for key. Reaching the capacity triggers a
// sweep so the insert leaves the cache at or below keepRatio*capacity.
func (c *TTLCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store.Peek(key); !exists && c.store.Len() >= c.capacity {
		c.sweepLocked(time.Now())
	}
	c.store.Add(key, &entry[V]{value: value, refreshed: time.Now()})
}

// Remove deletes the entry for key if present.
func (c *TTLCache[K, V]) Remove(key K) {
	c.mu.Lock()
	c.store.Remove(key)
	c.mu.Unlock()
}

// Sweep removes expired entries and, if the cache is still above the keep
// threshold, the oldest remaining entries. Called opportunistically by the
// orchestrator's maintenance loop.
func (c *TTLCache[K, V]) Sweep() {
	c.mu.Lock()
	c.sweepLocked(time.Now())
	c.mu.Unlock()
}

// sweepLocked removes expired entries first, then the oldest remaining ones
// until the cache holds at most keepRatio*capacity entries.
func (c *TTLCache[K, V]) sweepLocked(now time.Time) {
	type aged[T comparable] struct {
		key       T
		refreshed time.Time
	}

	var live []aged[K]
	for _, key := range c.store.Keys() {
		e, ok := c.store.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(e.refreshed) >= c.ttl {
			c.store.Remove(key)
			continue
		}
		live = append(live, aged[K]{key: key, refreshed: e.refreshed})
	}

	target := int(float64(c.capacity) * c.keepRatio)
	if len(live) <= target {
		return
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].refreshed.Before(live[j].refreshed)
	})
	for _, a := range live[:len(live)-target] {
		c.store.Remove(a.key)
	}
}

// Len returns the number of physically present entries, expired included.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Len()
}

// Purge drops every entry.
func (c *TTLCache[K, V]) Purge() {
	c.mu.Lock()
	c.store.Purge()
	c.mu.Unlock()
}

// HitRatio returns hits/(hits+misses), or 0 before any lookup.
func (c *TTLCache[K, V]) HitRatio() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
