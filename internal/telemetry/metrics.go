// Package telemetry exposes Prometheus metrics for ingestion and query
// activity. Metrics are collected unconditionally; exposition over HTTP is
// opt-in via Serve.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DocumentsIngested counts documents by type and outcome
	// (accepted, skipped, failed).
	DocumentsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docfed",
		Subsystem: "ingest",
		Name:      "documents_total",
		Help:      "Documents processed by type and outcome.",
	}, []string{"type", "status"})

	// ChunksIndexed counts chunks written to the vector store.
	ChunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docfed",
		Subsystem: "ingest",
		Name:      "chunks_total",
		Help:      "Chunks indexed across all documents.",
	})

	// BackendWriteFailures counts per-backend write failures after retries.
	BackendWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docfed",
		Subsystem: "ingest",
		Name:      "backend_write_failures_total",
		Help:      "Backend write failures after retry exhaustion.",
	}, []string{"backend"})

	// QueriesTotal counts queries by classified intent and outcome.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docfed",
		Subsystem: "query",
		Name:      "queries_total",
		Help:      "Queries executed by intent and outcome.",
	}, []string{"intent", "status"})

	// QueryDuration observes end-to-end query latency by intent.
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docfed",
		Subsystem: "query",
		Name:      "duration_seconds",
		Help:      "End-to-end query latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"intent"})

	// CacheHits counts query cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docfed",
		Subsystem: "query",
		Name:      "cache_hits_total",
		Help:      "Query cache hits.",
	})

	// CacheMisses counts query cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docfed",
		Subsystem: "query",
		Name:      "cache_misses_total",
		Help:      "Query cache misses.",
	})
)

// Serve exposes /metrics on addr until ctx is cancelled.
// Returns the server's listen error, or nil on clean shutdown.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
