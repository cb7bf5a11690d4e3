// Package ingest fans processed documents out to the storage backends
// and walks directories for batch ingestion. The relational store is the
// system of record: its checksum table gates re-ingestion, and the
// checksum for a document is only recorded after every backend write has
// settled, so a crash mid-ingest re-runs the document on the next pass.
package ingest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/devdocai/docfed/internal/config"
	"github.com/devdocai/docfed/internal/docs"
	"github.com/devdocai/docfed/internal/embed"
	"github.com/devdocai/docfed/internal/errors"
	"github.com/devdocai/docfed/internal/store"
	"github.com/devdocai/docfed/internal/telemetry"
)

// Status is the outcome of writing a single document.
type Status string

const (
	// StatusAccepted means all durable backends and the checksum record
	// were written.
	StatusAccepted Status = "accepted"

	// StatusSkipped means the document's checksum matched the recorded
	// one and no backend was touched.
	StatusSkipped Status = "skipped"
)

// Backends bundles the fan-out targets. Cache is optional; a nil cache
// disables chunk caching without affecting durability.
type Backends struct {
	Relational store.RelationalStore
	Vector     store.VectorStore
	Graph      store.GraphStore
	FullText   store.FullTextIndex
	Cache      store.KeyValueCache
}

// Writer fans one processed document out to every backend concurrently.
type Writer struct {
	backends Backends
	embedder embed.Embedder
	durable  map[string]bool
	retry    errors.RetryConfig
	logger   *slog.Logger
}

// NewWriter creates a fan-out writer. cfg.DurableBackends controls which
// backend failures reject the document; failures elsewhere degrade to
// warnings.
func NewWriter(backends Backends, embedder embed.Embedder, cfg config.IngestConfig, logger *slog.Logger) *Writer {
	durable := make(map[string]bool, len(cfg.DurableBackends))
	for _, b := range cfg.DurableBackends {
		durable[b] = true
	}

	retry := errors.DefaultRetryConfig()
	if cfg.RetryMaxAttempts > 0 {
		retry.MaxRetries = cfg.RetryMaxAttempts
	}
	if cfg.RetryInitialDelay > 0 {
		retry.InitialDelay = cfg.RetryInitialDelay
	}
	if cfg.RetryMaxDelay > 0 {
		retry.MaxDelay = cfg.RetryMaxDelay
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		backends: backends,
		embedder: embedder,
		durable:  durable,
		retry:    retry,
		logger:   logger,
	}
}

// Write ingests one processed document. Unchanged documents are skipped
// via the checksum gate. Backend writes run concurrently with per-backend
// retry on transient failures; a failed durable backend rejects the
// document, a failed non-durable backend is logged and tolerated. The
// checksum is recorded last.
func (w *Writer) Write(ctx context.Context, p *docs.Processed) (Status, error) {
	doc := p.Document

	recorded, err := w.backends.Relational.GetChecksum(ctx, doc.ID)
	if err != nil {
		// A failed checksum read only costs a redundant re-ingest.
		w.logger.Warn("checksum_read_failed", "document_id", doc.ID, "error", err)
	}
	if recorded != "" && recorded == doc.Checksum {
		w.logger.Debug("document_unchanged", "document_id", doc.ID, "path", doc.SourcePath)
		telemetry.DocumentsIngested.WithLabelValues(string(doc.Type), string(StatusSkipped)).Inc()
		return StatusSkipped, nil
	}

	var mu sync.Mutex
	failures := make(map[string]error)
	record := func(backend string, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		failures[backend] = err
		mu.Unlock()
	}

	// Plain Group, not WithContext: one backend failing must not cancel
	// the writes in flight on the others.
	var g errgroup.Group

	g.Go(func() error {
		record(store.BackendRelational, w.writeWithRetry(ctx, store.BackendRelational, func() error {
			return w.backends.Relational.SaveDocument(ctx, doc, p.Chunks)
		}))
		return nil
	})

	var embedded []*docs.Chunk
	g.Go(func() error {
		chunks, err := w.writeVector(ctx, p.Chunks)
		embedded = chunks
		record(store.BackendVector, err)
		return nil
	})

	g.Go(func() error {
		record(store.BackendGraph, w.writeWithRetry(ctx, store.BackendGraph, func() error {
			if err := w.backends.Graph.UpsertDocument(ctx, doc); err != nil {
				return err
			}
			return w.backends.Graph.UpsertRelationships(ctx, p.Relationships)
		}))
		return nil
	})

	g.Go(func() error {
		record(store.BackendFullText, w.writeWithRetry(ctx, store.BackendFullText, func() error {
			return w.backends.FullText.Index(ctx, p.Chunks)
		}))
		return nil
	})

	_ = g.Wait()

	var durableFailures []error
	for backend, ferr := range failures {
		telemetry.BackendWriteFailures.WithLabelValues(backend).Inc()
		if w.durable[backend] {
			durableFailures = append(durableFailures, fmt.Errorf("%s: %w", backend, ferr))
		} else {
			w.logger.Warn("backend_write_degraded",
				"backend", backend,
				"document_id", doc.ID,
				"error", ferr)
		}
	}

	if len(durableFailures) > 0 {
		telemetry.DocumentsIngested.WithLabelValues(string(doc.Type), "failed").Inc()
		return "", errors.DurabilityError(
			fmt.Sprintf("durable backend write failed for document %s", doc.ID),
			stderrors.Join(durableFailures...))
	}

	if w.backends.Cache != nil {
		w.cacheDocument(doc, p.Chunks, embedded)
	}

	// Recorded last so an interrupted ingest re-runs this document.
	if err := w.backends.Relational.SetChecksum(ctx, doc.ID, doc.Checksum); err != nil {
		telemetry.DocumentsIngested.WithLabelValues(string(doc.Type), "failed").Inc()
		return "", errors.DurabilityError(
			fmt.Sprintf("failed to record checksum for document %s", doc.ID), err)
	}

	telemetry.DocumentsIngested.WithLabelValues(string(doc.Type), string(StatusAccepted)).Inc()
	telemetry.ChunksIndexed.Add(float64(len(p.Chunks)))

	w.logger.Info("document_ingested",
		"document_id", doc.ID,
		"type", doc.Type,
		"chunks", len(p.Chunks),
		"relationships", len(p.Relationships),
		"quality", doc.QualityScore)

	return StatusAccepted, nil
}

// cacheDocument populates the best-effort cache with the document
// metadata record, chunk contents, and the chunk embeddings produced by
// the vector write.
func (w *Writer) cacheDocument(doc *docs.Document, chunks, embedded []*docs.Chunk) {
	if meta, err := json.Marshal(doc); err == nil {
		w.backends.Cache.Set("doc:"+doc.ID+":metadata", meta)
	}
	for _, chunk := range chunks {
		w.backends.Cache.Set(chunk.ID, []byte(chunk.Content))
	}
	for _, chunk := range embedded {
		if len(chunk.Embedding) == 0 {
			continue
		}
		if enc, err := json.Marshal(chunk.Embedding); err == nil {
			w.backends.Cache.Set("embed:"+chunk.ID, enc)
		}
	}
}

// writeVector embeds chunk contents and adds them to the vector store.
// Chunks are copied before the embedding is attached so the slices shared
// with the other backend goroutines are never mutated.
func (w *Writer) writeVector(ctx context.Context, chunks []*docs.Chunk) ([]*docs.Chunk, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings, err := errors.RetryWithResult(ctx, w.retry, func() ([][]float32, error) {
		embs, err := w.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, errors.New(errors.ErrCodeEmbeddingFailed, "embedding generation failed", err)
		}
		return embs, nil
	})
	if err != nil {
		return nil, err
	}

	embedded := make([]*docs.Chunk, len(chunks))
	for i, c := range chunks {
		clone := *c
		clone.Embedding = embeddings[i]
		embedded[i] = &clone
	}

	err = w.writeWithRetry(ctx, store.BackendVector, func() error {
		return w.backends.Vector.Add(ctx, embedded)
	})
	if err != nil {
		return nil, err
	}
	return embedded, nil
}

// writeWithRetry runs one backend write under the retry policy, mapping
// raw backend errors to transient write errors so they are retried.
// Context and validation errors pass through untouched.
func (w *Writer) writeWithRetry(ctx context.Context, backend string, fn func() error) error {
	return errors.Retry(ctx, w.retry, func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var dim store.ErrDimensionMismatch
		if stderrors.As(err, &dim) {
			return errors.New(errors.ErrCodeDimensionMismatch, dim.Error(), err)
		}
		var fe *errors.FedError
		if stderrors.As(err, &fe) {
			return err
		}
		return errors.New(errors.ErrCodeBackendWrite,
			fmt.Sprintf("%s write failed", backend), err)
	})
}
