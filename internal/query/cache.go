package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/devdocai/docfed/internal/store"
)

// ResponseCache stores fused responses keyed by the (normalized query,
// intent) fingerprint. It is best-effort: encoding failures and misses
// are silent, and TTL expiry is handled by the underlying cache.
type ResponseCache struct {
	cache store.KeyValueCache
}

// NewResponseCache wraps a key-value cache. A nil cache disables
// response caching entirely.
func NewResponseCache(cache store.KeyValueCache) *ResponseCache {
	return &ResponseCache{cache: cache}
}

// Fingerprint derives the cache key for a query and its intent.
func Fingerprint(queryText string, intent Intent) string {
	sum := sha256.Sum256([]byte(Normalize(queryText) + ":" + string(intent)))
	return "query:" + hex.EncodeToString(sum[:])
}

// Get returns the cached response for the fingerprint, marked Cached.
func (c *ResponseCache) Get(fingerprint string) (*Response, bool) {
	if c == nil || c.cache == nil {
		return nil, false
	}
	data, ok := c.cache.Get(fingerprint)
	if !ok {
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.cache.Remove(fingerprint)
		return nil, false
	}
	resp.Cached = true
	return &resp, true
}

// Put stores a response under the fingerprint.
func (c *ResponseCache) Put(fingerprint string, resp *Response) {
	if c == nil || c.cache == nil {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	c.cache.Set(fingerprint, data)
}
