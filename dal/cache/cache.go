// Package cache provides the bounded in-memory caches backing the node's
// committee, shard, slot and proof lookups. Every cache is a fixed-capacity
// LRU: entries are created lazily on first access and evicted purely by
// capacity pressure, never by TTL.
package cache

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("dal_cache")

// ErrCacheMiss is returned when a key is not present in the cache.
var ErrCacheMiss = errors.New("cache: key not found")

// Cache is a fixed-capacity LRU key-value store. Capacity is set at
// construction time and never changes; inserting beyond capacity evicts the
// least recently used entry.
type Cache[K comparable, V any] struct {
	// name prefixes metric identifiers when metrics are enabled.
	name string
	lru  *lru.Cache[K, V]

	metrics *metrics
}

// New constructs a Cache with the given name and capacity.
func New[K comparable, V any](name string, capacity int) (*Cache[K, V], error) {
	l, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating %s cache: %w", name, err)
	}
	return &Cache[K, V]{name: name, lru: l}, nil
}

// Get returns the value for key, marking it most recently used.
func (c *Cache[K, V]) Get(key K) (V, error) {
	v, ok := c.lru.Get(key)
	c.metrics.observeGet(ok)
	if !ok {
		return v, ErrCacheMiss
	}
	return v, nil
}

// Contains reports presence without updating recency.
func (c *Cache[K, V]) Contains(key K) bool {
	return c.lru.Contains(key)
}

// Put inserts or refreshes key. Returns true if the insert evicted an
// older entry.
func (c *Cache[K, V]) Put(key K, val V) bool {
	evicted := c.lru.Add(key, val)
	if evicted {
		c.metrics.observeEvicted()
	}
	return evicted
}

// Remove drops key from the cache if present.
func (c *Cache[K, V]) Remove(key K) {
	c.lru.Remove(key)
}

// Len returns the current number of entries.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// EnableMetrics registers otel counters for gets and evictions. The
// returned function unregisters them.
func (c *Cache[K, V]) EnableMetrics() (unreg func() error, err error) {
	c.metrics, err = newMetrics(c.name, func() int { return c.lru.Len() })
	if err != nil {
		return nil, err
	}
	return c.metrics.close, nil
}
