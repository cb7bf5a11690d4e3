package store

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUCache implements KeyValueCache on an expirable LRU: entries are
// dropped on TTL expiry or capacity pressure, whichever comes first.
type LRUCache struct {
	lru *expirable.LRU[string, []byte]
}

var _ KeyValueCache = (*LRUCache)(nil)

// NewLRUCache creates a cache holding up to size entries for ttl.
// A zero ttl means entries never expire by age.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = 1024
	}
	return &LRUCache{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

// Get returns the cached value and whether it was present and unexpired.
func (c *LRUCache) Get(key string) ([]byte, bool) {
	return c.lru.Get(key)
}

// Set stores a value. The value slice is kept as-is; callers must not
// mutate it afterwards.
func (c *LRUCache) Set(key string, value []byte) {
	c.lru.Add(key, value)
}

// Remove drops one key.
func (c *LRUCache) Remove(key string) {
	c.lru.Remove(key)
}

// Len returns the number of live entries.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}

// Purge drops everything.
func (c *LRUCache) Purge() {
	c.lru.Purge()
}
