package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdocai/docfed/internal/store"
)

func TestFuse_MinMaxNormalizationPerSource(t *testing.T) {
	// Given two sources with very different score scales
	bySource := map[string][]*store.Result{
		store.BackendVector: {
			{DocumentID: "a", Content: "alpha", Score: 0.95},
			{DocumentID: "b", Content: "bravo", Score: 0.55},
		},
		store.BackendFullText: {
			{DocumentID: "c", Content: "charlie", Score: 14.2},
			{DocumentID: "d", Content: "delta", Score: 3.1},
		},
	}

	results := Fuse(bySource, IntentSemanticSearch, 10)
	require.Len(t, results, 4)

	// The top result per source normalizes to 1.0 before weighting:
	// vector weight 1.2, fulltext weight 0.8 for semantic search
	scores := make(map[string]float64)
	for _, r := range results {
		scores[r.DocumentID] = r.Score
	}
	assert.InDelta(t, 1.2, scores["a"], 1e-9)
	assert.InDelta(t, 0.0, scores["b"], 1e-9)
	assert.InDelta(t, 0.8, scores["c"], 1e-9)
	assert.InDelta(t, 0.0, scores["d"], 1e-9)
}

func TestFuse_SingleResultNormalizesToOne(t *testing.T) {
	// A lone fulltext result with a raw BM25 score of 7.2
	bySource := map[string][]*store.Result{
		store.BackendFullText: {
			{DocumentID: "a", Content: "only one", Score: 7.2},
		},
	}

	results := Fuse(bySource, IntentImplementationGuides, 10)
	require.Len(t, results, 1)

	// Normalized to 1.0, then weighted 1.2 for implementation guides
	assert.InDelta(t, 1.2, results[0].Score, 1e-9)
}

func TestFuse_EqualScoresNormalizeToOne(t *testing.T) {
	bySource := map[string][]*store.Result{
		store.BackendGraph: {
			{DocumentID: "a", Content: "one", Score: 0.5},
			{DocumentID: "b", Content: "two", Score: 0.5},
		},
	}

	results := Fuse(bySource, IntentModuleDependencies, 10)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.InDelta(t, 1.5, r.Score, 1e-9)
	}
}

func TestFuse_DeduplicatesByContentPrefix(t *testing.T) {
	// The same content returned by two backends
	shared := "The ingestion pipeline writes each document to every backend."
	bySource := map[string][]*store.Result{
		store.BackendGraph: {
			{DocumentID: "doc1", Content: shared, Score: 1.0},
		},
		store.BackendRelational: {
			{DocumentID: "doc1", Content: shared, Score: 5.0},
		},
	}

	results := Fuse(bySource, IntentRequirementTracing, 10)

	// One fused entry with both sources merged
	require.Len(t, results, 1)
	assert.ElementsMatch(t, []string{store.BackendGraph, store.BackendRelational}, results[0].Sources)
}

func TestFuse_WeightedOrdering(t *testing.T) {
	// Graph is weighted 1.3 for architecture queries, fulltext 1.0, so
	// equal normalized scores rank the graph result first.
	bySource := map[string][]*store.Result{
		store.BackendGraph: {
			{DocumentID: "graph-doc", Content: "graph hit", Score: 0.9},
		},
		store.BackendFullText: {
			{DocumentID: "ft-doc", Content: "fulltext hit", Score: 11.0},
		},
	}

	results := Fuse(bySource, IntentArchitectureQueries, 10)
	require.Len(t, results, 2)
	assert.Equal(t, "graph-doc", results[0].DocumentID)
	assert.Equal(t, "ft-doc", results[1].DocumentID)
}

func TestFuse_TruncatesToLimit(t *testing.T) {
	bySource := map[string][]*store.Result{
		store.BackendVector: {
			{DocumentID: "a", Content: "one", Score: 0.9},
			{DocumentID: "b", Content: "two", Score: 0.8},
			{DocumentID: "c", Content: "three", Score: 0.7},
		},
	}

	results := Fuse(bySource, IntentSemanticSearch, 2)
	assert.Len(t, results, 2)
}

func TestFuse_Deterministic(t *testing.T) {
	bySource := map[string][]*store.Result{
		store.BackendVector: {
			{DocumentID: "a", Content: "alpha", Score: 0.9},
			{DocumentID: "b", Content: "bravo", Score: 0.3},
		},
		store.BackendRelational: {
			{DocumentID: "c", Content: "charlie", Score: 4.0},
		},
	}

	first := Fuse(bySource, IntentSemanticSearch, 10)
	second := Fuse(bySource, IntentSemanticSearch, 10)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].DocumentID, second[i].DocumentID)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}

func TestFuse_Empty(t *testing.T) {
	assert.Empty(t, Fuse(nil, IntentSemanticSearch, 10))
	assert.Empty(t, Fuse(map[string][]*store.Result{store.BackendGraph: {}}, IntentSemanticSearch, 10))
}

func TestConfidence(t *testing.T) {
	assert.Zero(t, Confidence(nil))

	results := []*FusedResult{
		{Score: 1.0}, {Score: 0.8}, {Score: 0.6},
	}
	assert.InDelta(t, 0.8, Confidence(results), 1e-9)

	// Only the top five count
	many := []*FusedResult{
		{Score: 1.0}, {Score: 1.0}, {Score: 1.0}, {Score: 1.0}, {Score: 1.0},
		{Score: 0.0}, {Score: 0.0},
	}
	assert.InDelta(t, 1.0, Confidence(many), 1e-9)
}
