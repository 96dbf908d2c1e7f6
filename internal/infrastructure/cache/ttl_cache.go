// Package cache provides the process-local read cache and the guard that
// keeps an unhealthy shared cache from failing requests.
package cache

import (
	"sync"
	"time"

	"github.com/prephub/prephub-analytics/pkg/timeutil"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a generic key/value store with per-entry expiry.
// Expiry is an instant stored with the entry and checked on read;
// Sweep reclaims entries nobody reads again.
type TTLCache[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]entry[V]
	clock timeutil.Clock
}

// NewTTLCache creates an empty cache. A nil clock uses the wall clock.
func NewTTLCache[K comparable, V any](clock timeutil.Clock) *TTLCache[K, V] {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &TTLCache[K, V]{
		items: make(map[K]entry[V]),
		clock: clock,
	}
}

// Set stores value under key, replacing any existing entry and its expiry.
// A non-positive ttl removes the key instead.
func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		delete(c.items, key)
		return
	}
	c.items[key] = entry[V]{value: value, expiresAt: c.clock.Now().Add(ttl)}
}

// Get returns the value if present and not expired. Expired entries are evicted.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.items, key)
		return zero, false
	}
	return e.value, true
}

// Delete removes key.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	c.items = make(map[K]entry[V])
	c.mu.Unlock()
}

// GetOrSet returns the cached value or computes, stores and returns it.
// Concurrent misses on the same key are not deduplicated: each caller computes.
// Errors from compute are returned and nothing is stored.
func (c *TTLCache[K, V]) GetOrSet(key K, compute func() (V, error), ttl time.Duration) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// Sweep removes expired entries and returns how many were removed.
func (c *TTLCache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
