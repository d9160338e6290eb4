// Package cache provides a generic LRU cache used to memoise compiled
// shader stages.
//
//	c := cache.New[string, int](100)
//	c.Set("key", 42)
//	value, ok := c.Get("key")
//
// When the cache grows past its soft limit, the least recently used
// entries are evicted until a quarter of the capacity is free again.
// A limit of 0 disables eviction.
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
