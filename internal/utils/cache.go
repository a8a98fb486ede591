package utils

import (
	"sync"
)

// Cache is a populate-once, read-mostly cache. Values are computed on first
// access under the write lock and never replaced afterwards unless Set or
// Delete is called explicitly.
type Cache[K comparable, V any] struct {
	items map[K]V
	mutex sync.RWMutex
}

// NewCache creates a new generic cache
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]V),
	}
}

// Get retrieves an item from the cache
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	value, exists := c.items[key]
	return value, exists
}

// GetOrCompute returns the cached value for key, computing and storing it on a
// miss. Concurrent callers for the same missing key run compute once; a
// compute error is returned and nothing is cached.
func (c *Cache[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	c.mutex.RLock()
	value, exists := c.items[key]
	c.mutex.RUnlock()
	if exists {
		return value, nil
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// double-checked: another caller may have won the race
	if value, exists := c.items[key]; exists {
		return value, nil
	}

	value, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.items[key] = value
	return value, nil
}

// Set stores an item in the cache
func (c *Cache[K, V]) Set(key K, value V) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = value
}

// Delete removes an item from the cache
func (c *Cache[K, V]) Delete(key K) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
}

// Size returns the number of items in the cache
func (c *Cache[K, V]) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.items)
}

// Keys returns all keys in the cache
func (c *Cache[K, V]) Keys() []K {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	keys := make([]K, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}

	return keys
}
