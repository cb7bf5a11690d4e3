package query

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/devdocai/docfed/internal/store"
)

// intentKeywords is the static classification table. Scoring counts
// case-insensitive substring matches of each keyword against the query.
var intentKeywords = map[Intent][]string{
	IntentSemanticSearch:       {"search", "find", "look for", "similar", "related"},
	IntentRequirementTracing:   {"requirement", "trace", "implement", "fulfill", "satisfy"},
	IntentModuleDependencies:   {"depend", "module", "import", "reference", "use"},
	IntentTestCoverage:         {"test", "coverage", "unit test", "integration", "verify"},
	IntentImplementationGuides: {"how to", "implement", "build", "create", "develop"},
	IntentConsistencyChecking:  {"consistent", "conflict", "mismatch", "validate", "check"},
	IntentArchitectureQueries:  {"architecture", "design", "structure", "component", "system"},
}

// intentBackends maps each intent to its ordered backend list.
var intentBackends = map[Intent][]string{
	IntentSemanticSearch:       {store.BackendVector, store.BackendRelational},
	IntentRequirementTracing:   {store.BackendGraph, store.BackendRelational},
	IntentModuleDependencies:   {store.BackendGraph},
	IntentTestCoverage:         {store.BackendGraph, store.BackendRelational},
	IntentImplementationGuides: {store.BackendFullText, store.BackendVector},
	IntentConsistencyChecking:  {store.BackendGraph, store.BackendRelational, store.BackendFullText},
	IntentArchitectureQueries:  {store.BackendGraph, store.BackendFullText},
}

// Router classifies queries into intents and selects backends.
// Classification is pure; a small LRU memoizes repeated queries.
type Router struct {
	cache *lru.Cache[string, Intent]
}

// NewRouter creates a router. cacheSize <= 0 disables memoization.
func NewRouter(cacheSize int) *Router {
	r := &Router{}
	if cacheSize > 0 {
		// lru.New only fails on non-positive size
		r.cache, _ = lru.New[string, Intent](cacheSize)
	}
	return r
}

// Classify scores the query against every intent's keyword list and
// returns the highest scorer. Ties go to the earliest-declared intent;
// an all-zero score defaults to SEMANTIC_SEARCH.
func (r *Router) Classify(query string) Intent {
	normalized := Normalize(query)

	if r.cache != nil {
		if intent, ok := r.cache.Get(normalized); ok {
			return intent
		}
	}

	best := IntentSemanticSearch
	bestScore := 0
	for _, intent := range intentOrder {
		score := 0
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(normalized, kw) {
				score++
			}
		}
		if score > bestScore {
			best = intent
			bestScore = score
		}
	}

	if r.cache != nil {
		r.cache.Add(normalized, best)
	}
	return best
}

// SelectBackends returns the ordered backend list for an intent.
func (r *Router) SelectBackends(intent Intent) []string {
	if backends, ok := intentBackends[intent]; ok {
		return backends
	}
	return []string{store.BackendVector, store.BackendFullText}
}

// Normalize lowercases the query and collapses whitespace. Used both
// for classification and as the cache fingerprint input.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
