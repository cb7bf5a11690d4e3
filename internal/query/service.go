package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devdocai/docfed/internal/config"
	"github.com/devdocai/docfed/internal/embed"
	"github.com/devdocai/docfed/internal/errors"
	"github.com/devdocai/docfed/internal/store"
	"github.com/devdocai/docfed/internal/telemetry"
)

// Stores bundles the queryable backends. Nil entries are simply not
// routed to.
type Stores struct {
	Vector     store.VectorStore
	Graph      store.GraphStore
	Relational store.RelationalStore
	FullText   store.FullTextIndex
}

// Service is the federated query pipeline: cache check, intent
// classification, backend selection, concurrent execution, fusion, and
// cache write.
type Service struct {
	router    *Router
	executor  *Executor
	cache     *ResponseCache
	searchers map[string]Searcher
	limit     int
	logger    *slog.Logger
}

// NewService wires the query pipeline over the given backends.
func NewService(stores Stores, embedder embed.Embedder, cfg config.QueryConfig, cache store.KeyValueCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	searchers := make(map[string]Searcher)
	if stores.Vector != nil && embedder != nil {
		searchers[store.BackendVector] = &vectorSearcher{store: stores.Vector, embedder: embedder}
	}
	if stores.Graph != nil {
		searchers[store.BackendGraph] = &graphSearcher{store: stores.Graph}
	}
	if stores.Relational != nil {
		searchers[store.BackendRelational] = &relationalSearcher{store: stores.Relational}
	}
	if stores.FullText != nil {
		searchers[store.BackendFullText] = &fulltextSearcher{index: stores.FullText}
	}

	limit := cfg.MaxResults
	if limit <= 0 {
		limit = 10
	}

	return &Service{
		router:    NewRouter(cfg.CacheSize),
		executor:  NewExecutor(cfg.BackendTimeout, logger),
		cache:     NewResponseCache(cache),
		searchers: searchers,
		limit:     limit,
		logger:    logger,
	}
}

// Query runs one federated query end to end. A cache hit short-circuits
// the pipeline; a fresh result is cached only after successful fusion.
func (s *Service) Query(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "query text is empty", nil)
	}

	intent := req.Intent
	if intent == "" {
		intent = s.router.Classify(req.Text)
	} else if !ValidIntent(intent) {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("unknown query intent %q", intent), nil)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.limit
	}

	// The fingerprint covers (text, intent) only; filters are applied
	// on top of the cached result set.
	fingerprint := Fingerprint(req.Text, intent)
	if cached, ok := s.cache.Get(fingerprint); ok {
		telemetry.CacheHits.Inc()
		telemetry.QueriesTotal.WithLabelValues(string(intent), "cached").Inc()
		s.logger.Debug("query_cache_hit", "trace_id", cached.TraceID, "intent", intent)
		return applyFilters(cached, req.Filters), nil
	}
	telemetry.CacheMisses.Inc()

	var searchers []Searcher
	for _, name := range s.router.SelectBackends(intent) {
		if searcher, ok := s.searchers[name]; ok {
			searchers = append(searchers, searcher)
		}
	}

	bySource, err := s.executor.Execute(ctx, searchers, req.Text, limit)
	if err != nil {
		telemetry.QueriesTotal.WithLabelValues(string(intent), "failed").Inc()
		return nil, err
	}

	results := Fuse(bySource, intent, limit)

	backends := make([]string, 0, len(bySource))
	for name := range bySource {
		backends = append(backends, name)
	}
	sort.Strings(backends)

	resp := &Response{
		TraceID:    uuid.NewString(),
		Query:      req.Text,
		Intent:     intent,
		Results:    results,
		Confidence: Confidence(results),
		Sources:    extractSources(results),
		Backends:   backends,
		Elapsed:    time.Since(start),
	}

	s.cache.Put(fingerprint, resp)

	telemetry.QueriesTotal.WithLabelValues(string(intent), "success").Inc()
	telemetry.QueryDuration.WithLabelValues(string(intent)).Observe(resp.Elapsed.Seconds())

	s.logger.Info("query_executed",
		"trace_id", resp.TraceID,
		"intent", intent,
		"backends", backends,
		"results", len(results),
		"confidence", resp.Confidence,
		"elapsed", resp.Elapsed)

	return applyFilters(resp, req.Filters), nil
}

// applyFilters drops results whose metadata does not match every filter.
// The unfiltered response is what gets cached; filtering happens on the
// way out so differing filters can share one cache entry.
func applyFilters(resp *Response, filters map[string]string) *Response {
	if len(filters) == 0 {
		return resp
	}

	filtered := *resp
	filtered.Results = nil
	for _, r := range resp.Results {
		if matchesFilters(r, filters) {
			filtered.Results = append(filtered.Results, r)
		}
	}
	filtered.Confidence = Confidence(filtered.Results)
	filtered.Sources = extractSources(filtered.Results)
	return &filtered
}

func matchesFilters(r *FusedResult, filters map[string]string) bool {
	for k, v := range filters {
		if k == "document_id" {
			if r.DocumentID != v {
				return false
			}
			continue
		}
		if r.Metadata[k] != v {
			return false
		}
	}
	return true
}

// extractSources collects the unique documents the results came from,
// preferring a source path recorded in metadata over the document id.
func extractSources(results []*FusedResult) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, r := range results {
		source := r.DocumentID
		if path, ok := r.Metadata["source_path"]; ok && path != "" {
			source = path
		}
		if source != "" && !seen[source] {
			seen[source] = true
			sources = append(sources, source)
		}
	}
	return sources
}
