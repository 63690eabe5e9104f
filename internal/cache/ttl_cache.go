// Package cache provides thread-safe caching utilities with time-based expiration.
//
// Each component that needs caching receives its own *TTLCache instance, so
// tests and concurrent (language, organization) configurations never share
// state through package-level maps.
package cache

import (
	"sync"
	"time"
)

// NoExpiry makes entries live for the lifetime of the cache.
const NoExpiry time.Duration = 0

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means never expires
}

// TTLCache is a thread-safe cache that stores key -> {value, expiry}.
// Every entry carries its own expiry; expired entries are treated as absent
// and dropped lazily on access.
type TTLCache[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]entry[V]
	ttl  time.Duration
	now  func() time.Time
}

// Option customizes a TTLCache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates a new TTLCache whose entries expire ttl after they are Set.
// A ttl of NoExpiry keeps entries until Delete.
func New[K comparable, V any](ttl time.Duration, opts ...Option) *TTLCache[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTLCache[K, V]{
		data: make(map[K]entry[V]),
		ttl:  ttl,
		now:  o.now,
	}
}

// TTL returns the lifetime applied to new entries.
func (c *TTLCache[K, V]) TTL() time.Duration {
	return c.ttl
}

// Get retrieves a value from the cache.
// Returns the value and ok=true if the key exists and has not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, still := c.data[key]; still && c.expired(cur) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value with the cache's TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	e := entry[V]{value: value}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data == nil {
		c.data = make(map[K]entry[V])
	}
	c.data[key] = e
}

// SetUntil stores a value that expires at the given instant. Used when
// restoring snapshots whose age is already known.
func (c *TTLCache[K, V]) SetUntil(key K, value V, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.data == nil {
		c.data = make(map[K]entry[V])
	}
	c.data[key] = entry[V]{value: value, expiresAt: expiresAt}
}

// Delete removes a single key.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len returns the number of items currently stored.
// This does not check expiration - it returns the count even if expired.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *TTLCache[K, V]) expired(e entry[V]) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}
