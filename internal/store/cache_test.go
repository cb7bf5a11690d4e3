package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_SetGetRemove(t *testing.T) {
	c := NewLRUCache(10, time.Minute)

	c.Set("k1", []byte("v1"))
	v, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	c.Remove("k1")
	_, ok = c.Get("k1")
	assert.False(t, ok)
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	c := NewLRUCache(10, 50*time.Millisecond)

	c.Set("k1", []byte("v1"))
	_, ok := c.Get("k1")
	assert.True(t, ok)

	time.Sleep(120 * time.Millisecond)
	_, ok = c.Get("k1")
	assert.False(t, ok, "entry should expire after the TTL")
}

func TestLRUCache_CapacityEviction(t *testing.T) {
	c := NewLRUCache(2, time.Minute)

	c.Set("k1", []byte("v1"))
	c.Set("k2", []byte("v2"))
	c.Set("k3", []byte("v3"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("k1")
	assert.False(t, ok, "oldest entry should be evicted")
}

func TestLRUCache_Purge(t *testing.T) {
	c := NewLRUCache(10, time.Minute)
	c.Set("k1", []byte("v1"))
	c.Set("k2", []byte("v2"))

	c.Purge()
	assert.Equal(t, 0, c.Len())
}
