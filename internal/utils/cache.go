package utils

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem wraps cached data with its expiry. A zero ExpiresAt never expires.
type CacheItem struct {
	Data      any
	ExpiresAt time.Time
}

// TTLCache is a bounded LRU with per-entry expiry. Compound operations
// (SetNX, Take, Incr) are atomic with respect to each other.
type TTLCache struct {
	mu       sync.Mutex
	lruCache *lru.Cache[string, CacheItem]
	now      func() time.Time
}

// NewTTLCache creates a cache holding at most size entries.
func NewTTLCache(size int) *TTLCache {
	l, err := lru.New[string, CacheItem](size)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &TTLCache{lruCache: l, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (c *TTLCache) WithClock(now func() time.Time) *TTLCache {
	c.now = now
	return c
}

func (c *TTLCache) item(data any, ttl time.Duration) CacheItem {
	item := CacheItem{Data: data}
	if ttl > 0 {
		item.ExpiresAt = c.now().Add(ttl)
	}
	return item
}

// lookup must be called with mu held.
func (c *TTLCache) lookup(key string) (CacheItem, bool) {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return CacheItem{}, false
	}
	if !val.ExpiresAt.IsZero() && !c.now().Before(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return CacheItem{}, false
	}
	return val, true
}

// Set stores data under key, replacing any previous value.
func (c *TTLCache) Set(key string, data any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lruCache.Add(key, c.item(data, ttl))
}

// Get returns the live value for key.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.lookup(key)
	return val.Data, ok
}

// Take returns the live value for key and removes it.
func (c *TTLCache) Take(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.lookup(key)
	if ok {
		c.lruCache.Remove(key)
	}
	return val.Data, ok
}

// SetNX stores data only when key holds no live value. It reports whether it stored.
func (c *TTLCache) SetNX(key string, data any, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.lookup(key); ok {
		return false
	}
	c.lruCache.Add(key, c.item(data, ttl))
	return true
}

// Incr adds one to the integer stored under key. A new counter expires after ttl;
// an existing counter keeps its expiry.
func (c *TTLCache) Incr(key string, ttl time.Duration) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.lookup(key)
	if !ok {
		c.lruCache.Add(key, c.item(int64(1), ttl))
		return 1
	}
	n, _ := val.Data.(int64)
	n++
	val.Data = n
	c.lruCache.Add(key, val)
	return n
}

// Delete removes key.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lruCache.Remove(key)
}
