package skeleton

import "sync"

// Resolver resolves a skeleton description path to a loaded Skeleton.
type Resolver interface {
	Resolve(path string) (*Skeleton, error)
}

// Cache is a concurrency-safe skeleton cache. Each path is loaded once;
// load failures are cached too.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*cacheEntry
	load  func(string) (*Skeleton, error)
}

type cacheEntry struct {
	skel *Skeleton
	err  error
}

// NewCache creates a cache backed by Load.
func NewCache() *Cache {
	return NewCacheFunc(Load)
}

// NewCacheFunc creates a cache backed by a custom loader.
func NewCacheFunc(load func(string) (*Skeleton, error)) *Cache {
	return &Cache{
		items: make(map[string]*cacheEntry),
		load:  load,
	}
}

// Resolve returns the skeleton for path, loading it on first use.
func (c *Cache) Resolve(path string) (*Skeleton, error) {
	// Fast path: read lock
	c.mu.RLock()
	if entry, exists := c.items[path]; exists {
		c.mu.RUnlock()
		return entry.skel, entry.err
	}
	c.mu.RUnlock()

	skel, err := c.load(path)

	// Write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, exists := c.items[path]; exists {
		return entry.skel, entry.err
	}
	c.items[path] = &cacheEntry{skel: skel, err: err}
	return skel, err
}

// Len returns the number of cached paths.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
