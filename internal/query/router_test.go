package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devdocai/docfed/internal/store"
)

func TestRouter_Classify(t *testing.T) {
	r := NewRouter(16)

	tests := []struct {
		name  string
		query string
		want  Intent
	}{
		{
			name:  "module dependencies",
			query: "what are the dependencies for M003",
			want:  IntentModuleDependencies,
		},
		{
			name:  "requirement tracing",
			query: "trace requirement REQ-7 to its implementation",
			want:  IntentRequirementTracing,
		},
		{
			name:  "test coverage",
			query: "show test coverage for the parser",
			want:  IntentTestCoverage,
		},
		{
			name:  "implementation guide",
			query: "how to build the ingestion pipeline",
			want:  IntentImplementationGuides,
		},
		{
			name:  "consistency checking",
			query: "validate that the docs are consistent with no conflict",
			want:  IntentConsistencyChecking,
		},
		{
			name:  "architecture",
			query: "describe the system architecture and component structure",
			want:  IntentArchitectureQueries,
		},
		{
			name:  "semantic search",
			query: "find documents similar to the caching notes",
			want:  IntentSemanticSearch,
		},
		{
			name:  "no keyword matches defaults to semantic search",
			query: "lorem ipsum dolor",
			want:  IntentSemanticSearch,
		},
		{
			name:  "tie broken by declaration order",
			query: "trace the module",
			want:  IntentRequirementTracing,
		},
		{
			name:  "case insensitive",
			query: "ARCHITECTURE of the SYSTEM design",
			want:  IntentArchitectureQueries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Classify(tt.query))
		})
	}
}

func TestRouter_ClassifyMemoized(t *testing.T) {
	r := NewRouter(4)

	first := r.Classify("what are the dependencies for M003")
	second := r.Classify("  What ARE the   dependencies for m003 ")

	// Normalization makes both queries the same cache entry
	assert.Equal(t, first, second)
}

func TestRouter_SelectBackends(t *testing.T) {
	r := NewRouter(0)

	tests := []struct {
		intent Intent
		want   []string
	}{
		{IntentSemanticSearch, []string{store.BackendVector, store.BackendRelational}},
		{IntentRequirementTracing, []string{store.BackendGraph, store.BackendRelational}},
		{IntentModuleDependencies, []string{store.BackendGraph}},
		{IntentTestCoverage, []string{store.BackendGraph, store.BackendRelational}},
		{IntentImplementationGuides, []string{store.BackendFullText, store.BackendVector}},
		{IntentConsistencyChecking, []string{store.BackendGraph, store.BackendRelational, store.BackendFullText}},
		{IntentArchitectureQueries, []string{store.BackendGraph, store.BackendFullText}},
	}

	for _, tt := range tests {
		t.Run(string(tt.intent), func(t *testing.T) {
			assert.Equal(t, tt.want, r.SelectBackends(tt.intent))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "find the docs", Normalize("  Find   THE docs \n"))
	assert.Equal(t, "", Normalize("   "))
}
