package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdocai/docfed/internal/config"
	"github.com/devdocai/docfed/internal/errors"
	"github.com/devdocai/docfed/internal/store"
)

func testQueryConfig() config.QueryConfig {
	return config.QueryConfig{
		BackendTimeout: time.Second,
		MaxResults:     10,
		CacheTTL:       time.Minute,
		CacheSize:      64,
	}
}

// newStubService builds a service whose backends are replaced by stubs.
func newStubService(cache store.KeyValueCache, stubs ...*stubSearcher) *Service {
	s := NewService(Stores{}, nil, testQueryConfig(), cache, nil)
	for _, stub := range stubs {
		s.searchers[stub.name] = stub
	}
	return s
}

func TestService_EmptyQueryRejected(t *testing.T) {
	s := newStubService(nil)

	_, err := s.Query(context.Background(), Request{Text: "   "})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryEmpty, errors.GetCode(err))
}

func TestService_EndToEnd(t *testing.T) {
	graph := &stubSearcher{name: store.BackendGraph, results: []*store.Result{
		{DocumentID: "module_m003_aaaa1111", Content: "M003 depends on M001", Score: 0.9,
			Metadata: map[string]string{"source_path": "docs/m003.md"}},
	}}
	s := newStubService(nil, graph)

	resp, err := s.Query(context.Background(), Request{Text: "what are the dependencies for M003"})
	require.NoError(t, err)

	assert.Equal(t, IntentModuleDependencies, resp.Intent)
	assert.NotEmpty(t, resp.TraceID)
	assert.Equal(t, []string{store.BackendGraph}, resp.Backends)
	assert.Equal(t, []string{"docs/m003.md"}, resp.Sources)
	assert.False(t, resp.Cached)
	require.Len(t, resp.Results, 1)

	// Single graph result: normalized 1.0 x weight 1.5
	assert.InDelta(t, 1.5, resp.Results[0].Score, 1e-9)
	assert.InDelta(t, 1.5, resp.Confidence, 1e-9)
}

func TestService_CacheHitBypassesBackends(t *testing.T) {
	graph := &stubSearcher{name: store.BackendGraph, results: []*store.Result{
		{DocumentID: "doc1", Content: "content", Score: 1.0},
	}}
	cache := store.NewLRUCache(16, time.Minute)
	s := newStubService(cache, graph)

	first, err := s.Query(context.Background(), Request{Text: "module dependencies for M003"})
	require.NoError(t, err)
	require.False(t, first.Cached)
	callsAfterFirst := graph.calls.Load()

	// Same query again, with different whitespace and case
	second, err := s.Query(context.Background(), Request{Text: "  Module   DEPENDENCIES for m003 "})
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.TraceID, second.TraceID)
	assert.Equal(t, callsAfterFirst, graph.calls.Load(), "cache hit must not dispatch backends")
}

func TestService_IntentOverrideSkipsClassification(t *testing.T) {
	vector := &stubSearcher{name: store.BackendVector, results: nil}
	relational := &stubSearcher{name: store.BackendRelational, results: []*store.Result{
		{DocumentID: "doc1", Content: "content", Score: 1.0},
	}}
	s := newStubService(nil, vector, relational)

	// The text would classify as MODULE_DEPENDENCIES; the override wins
	resp, err := s.Query(context.Background(), Request{
		Text:   "module dependencies",
		Intent: IntentSemanticSearch,
	})
	require.NoError(t, err)
	assert.Equal(t, IntentSemanticSearch, resp.Intent)
}

func TestService_UnknownIntentRejected(t *testing.T) {
	graph := &stubSearcher{name: store.BackendGraph, results: []*store.Result{
		{DocumentID: "doc1", Content: "content", Score: 1.0},
	}}
	s := newStubService(nil, graph)

	_, err := s.Query(context.Background(), Request{
		Text:   "module dependencies",
		Intent: Intent("KEYWORD_SEARCH"),
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
	assert.Zero(t, graph.calls.Load(), "invalid intent must not dispatch backends")
}

func TestService_UnconfiguredBackendsSkipped(t *testing.T) {
	// Only the relational backend exists; semantic search routes to
	// vector + relational and degrades to the one available.
	relational := &stubSearcher{name: store.BackendRelational, results: []*store.Result{
		{DocumentID: "doc1", Content: "content", Score: 1.0},
	}}
	s := newStubService(nil, relational)

	resp, err := s.Query(context.Background(), Request{Text: "find similar documents"})
	require.NoError(t, err)
	assert.Equal(t, []string{store.BackendRelational}, resp.Backends)
}

func TestService_FiltersApplyAfterFusion(t *testing.T) {
	graph := &stubSearcher{name: store.BackendGraph, results: []*store.Result{
		{DocumentID: "doc1", Content: "one", Score: 0.9,
			Metadata: map[string]string{"title": "Parser"}},
		{DocumentID: "doc2", Content: "two", Score: 0.8,
			Metadata: map[string]string{"title": "Lexer"}},
	}}
	s := newStubService(nil, graph)

	resp, err := s.Query(context.Background(), Request{
		Text:    "module dependencies",
		Filters: map[string]string{"document_id": "doc2"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "doc2", resp.Results[0].DocumentID)
	assert.Equal(t, []string{"doc2"}, resp.Sources)
}

func TestService_LimitTruncatesResults(t *testing.T) {
	graph := &stubSearcher{name: store.BackendGraph, results: []*store.Result{
		{DocumentID: "a", Content: "one", Score: 0.9},
		{DocumentID: "b", Content: "two", Score: 0.8},
		{DocumentID: "c", Content: "three", Score: 0.7},
	}}
	s := newStubService(nil, graph)

	resp, err := s.Query(context.Background(), Request{
		Text:  "module dependencies",
		Limit: 2,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}
