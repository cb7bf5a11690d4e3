package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdocai/docfed/internal/store"
)

func TestFingerprint_NormalizesQueryText(t *testing.T) {
	a := Fingerprint("Find the Docs", IntentSemanticSearch)
	b := Fingerprint("  find   THE docs ", IntentSemanticSearch)
	assert.Equal(t, a, b)

	// Same text, different intent, different key
	c := Fingerprint("Find the Docs", IntentArchitectureQueries)
	assert.NotEqual(t, a, c)
}

func TestResponseCache_RoundTrip(t *testing.T) {
	c := NewResponseCache(store.NewLRUCache(8, time.Minute))

	resp := &Response{
		TraceID: "trace-1",
		Query:   "find docs",
		Intent:  IntentSemanticSearch,
		Results: []*FusedResult{
			{DocumentID: "doc1", Content: "content", Score: 0.9, Sources: []string{store.BackendVector}},
		},
		Confidence: 0.9,
	}

	key := Fingerprint(resp.Query, resp.Intent)
	c.Put(key, resp)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.True(t, got.Cached)
	assert.Equal(t, resp.TraceID, got.TraceID)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "doc1", got.Results[0].DocumentID)
}

func TestResponseCache_Miss(t *testing.T) {
	c := NewResponseCache(store.NewLRUCache(8, time.Minute))
	_, ok := c.Get(Fingerprint("never stored", IntentSemanticSearch))
	assert.False(t, ok)
}

func TestResponseCache_NilBackingCache(t *testing.T) {
	c := NewResponseCache(nil)
	c.Put("key", &Response{})
	_, ok := c.Get("key")
	assert.False(t, ok)
}
