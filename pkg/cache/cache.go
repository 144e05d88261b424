// Package cache provides an in-memory key/value store whose entries expire after a
// per-entry time-to-live.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is used by Set when no explicit ttl is given.
const DefaultTTL = 60 * time.Second

type entry[V any] struct {
	value  V
	expiry time.Time
	timer  *time.Timer
}

// TimedCache maps keys to values that expire after a ttl. Keys are compared by their
// JSON encoding, so two distinct values with the same structure address the same entry.
// Expired entries are removed by a timer scheduled at Set time and, as a backstop,
// lazily on Get.
type TimedCache[K any, V any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

// New creates a cache. A non-positive defaultTTL selects DefaultTTL.
func New[K any, V any](defaultTTL time.Duration) *TimedCache[K, V] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	return &TimedCache[K, V]{
		entries:    make(map[string]*entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func keyOf[K any](key K) string {
	encoded, err := json.Marshal(key)
	if err != nil {
		// unencodable keys (channels, funcs) still need a stable identity
		return fmt.Sprintf("%T:%v", key, key)
	}

	return string(encoded)
}

// Set stores value under key for the cache's default ttl.
func (c *TimedCache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key until ttl elapses.
func (c *TimedCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	k := keyOf(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if previous, ok := c.entries[k]; ok {
		previous.timer.Stop()
	}

	e := &entry[V]{value: value, expiry: c.now().Add(ttl)}
	e.timer = time.AfterFunc(ttl, func() {
		c.evict(k, e)
	})
	c.entries[k] = e
}

// evict removes the entry stored under k only if it is still the entry whose timer fired.
func (c *TimedCache[K, V]) evict(k string, expired *entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.entries[k]; ok && current == expired {
		delete(c.entries, k)
	}
}

// Get returns the live value for key.
func (c *TimedCache[K, V]) Get(key K) (V, bool) {
	k := keyOf(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if ok && c.now().Before(e.expiry) {
		return e.value, true
	}

	if ok {
		e.timer.Stop()
		delete(c.entries, k)
	}

	var zero V

	return zero, false
}

// Has reports whether key holds a live value.
func (c *TimedCache[K, V]) Has(key K) bool {
	k := keyOf(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]

	return ok && c.now().Before(e.expiry)
}

func (c *TimedCache[K, V]) Delete(key K) {
	k := keyOf(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[k]; ok {
		e.timer.Stop()
		delete(c.entries, k)
	}
}

func (c *TimedCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		e.timer.Stop()
	}

	c.entries = make(map[string]*entry[V])
}

// Len returns the number of stored entries, including ones not yet evicted.
func (c *TimedCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
