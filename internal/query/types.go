// Package query answers natural-language questions over the federated
// backends: classify the query into an intent, dispatch it to the
// intent's backends concurrently, and fuse the differently-scaled
// result sets into one ranked, deduplicated list.
package query

import "time"

// Intent classifies what a query is asking for. Classification ties are
// broken by declaration order.
type Intent string

const (
	IntentSemanticSearch       Intent = "SEMANTIC_SEARCH"
	IntentRequirementTracing   Intent = "REQUIREMENT_TRACING"
	IntentModuleDependencies   Intent = "MODULE_DEPENDENCIES"
	IntentTestCoverage         Intent = "TEST_COVERAGE"
	IntentImplementationGuides Intent = "IMPLEMENTATION_GUIDES"
	IntentConsistencyChecking  Intent = "CONSISTENCY_CHECKING"
	IntentArchitectureQueries  Intent = "ARCHITECTURE_QUERIES"
)

// intentOrder fixes the tie-break order for classification.
var intentOrder = []Intent{
	IntentSemanticSearch,
	IntentRequirementTracing,
	IntentModuleDependencies,
	IntentTestCoverage,
	IntentImplementationGuides,
	IntentConsistencyChecking,
	IntentArchitectureQueries,
}

// ValidIntent reports whether i is one of the known intents.
func ValidIntent(i Intent) bool {
	for _, known := range intentOrder {
		if i == known {
			return true
		}
	}
	return false
}

// Request is one federated query.
type Request struct {
	// Text is the natural-language query.
	Text string `json:"text"`

	// Intent optionally pins the intent, bypassing classification.
	Intent Intent `json:"intent,omitempty"`

	// Limit caps the fused result list. Zero means the configured default.
	Limit int `json:"limit,omitempty"`

	// Filters are exact-match constraints on result metadata, applied
	// after fusion. A filter on "document_id" matches the document id.
	Filters map[string]string `json:"filters,omitempty"`
}

// FusedResult is one entry of the fused, re-ranked result list.
type FusedResult struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id,omitempty"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`

	// Sources lists every backend that returned this content.
	Sources []string `json:"sources"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Response is the fused answer to a Request.
type Response struct {
	TraceID    string         `json:"trace_id"`
	Query      string         `json:"query"`
	Intent     Intent         `json:"intent"`
	Results    []*FusedResult `json:"results"`
	Confidence float64        `json:"confidence"`

	// Sources lists the unique documents the results came from.
	Sources []string `json:"sources"`

	// Backends lists the backends that contributed results.
	Backends []string `json:"backends"`

	Cached  bool          `json:"cached"`
	Elapsed time.Duration `json:"elapsed"`
}
