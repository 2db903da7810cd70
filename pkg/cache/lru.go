// Package cache provides the bounded LRU primitives backing sqlbind's
// tokenizer, processor, compiler, and fast-path query caches.
package cache

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ekaya-inc/sqlbind/pkg/apperrors"
)

// Stats is a point-in-time snapshot of a cache's counters.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Size    int    `json:"size"`
	MaxSize int    `json:"max_size"`
}

// Cache is a bounded LRU map. All operations are O(1): entries live in an
// ordered map whose iteration order doubles as recency order, with the
// most-recently-used entry at the back. A single mutex serializes mutation;
// Get counts as a use and moves the entry to the back.
//
// Safe for concurrent use from multiple goroutines.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries *orderedmap.OrderedMap[K, V]
	maxSize int
	hits    uint64
	misses  uint64
}

// New creates a cache bounded to maxSize entries. A non-positive size is a
// configuration error and is rejected at construction time, not at call time.
func New[K comparable, V any](maxSize int) (*Cache[K, V], error) {
	if maxSize <= 0 {
		return nil, apperrors.ErrInvalidCacheSize
	}
	return &Cache[K, V]{
		entries: orderedmap.New[K, V](),
		maxSize: maxSize,
	}, nil
}

// MustNew is New for statically known sizes; it panics on invalid input.
func MustNew[K comparable, V any](maxSize int) *Cache[K, V] {
	c, err := New[K, V](maxSize)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the cached value for key. A hit refreshes the entry's recency.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.entries.Get(key)
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	_ = c.entries.MoveToBack(key)
	return value, true
}

// Put inserts or replaces the value for key, evicting the least-recently-used
// entry first when the cache is full.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries.Get(key); ok {
		c.entries.Set(key, value)
		_ = c.entries.MoveToBack(key)
		return
	}
	if c.entries.Len() >= c.maxSize {
		c.evictLocked(c.entries.Len() - c.maxSize + 1)
	}
	c.entries.Set(key, value)
}

// Evict removes up to n least-recently-used entries.
func (c *Cache[K, V]) Evict(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(n)
}

func (c *Cache[K, V]) evictLocked(n int) {
	for i := 0; i < n; i++ {
		oldest := c.entries.Oldest()
		if oldest == nil {
			return
		}
		c.entries.Delete(oldest.Key)
	}
}

// Clear drops all entries. Hit/miss counters are preserved.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.New[K, V]()
}

// Len returns the current entry count.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Size:    c.entries.Len(),
		MaxSize: c.maxSize,
	}
}

// SetMaxSize rebounds the cache, evicting LRU entries if it shrinks below the
// current population.
func (c *Cache[K, V]) SetMaxSize(n int) error {
	if n <= 0 {
		return apperrors.ErrInvalidCacheSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSize = n
	if over := c.entries.Len() - n; over > 0 {
		c.evictLocked(over)
	}
	return nil
}
