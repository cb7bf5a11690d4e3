package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/devdocai/docfed/internal/config"
	"github.com/devdocai/docfed/internal/docs"
	"github.com/devdocai/docfed/internal/embed"
	"github.com/devdocai/docfed/internal/ingest"
	"github.com/devdocai/docfed/internal/query"
	"github.com/devdocai/docfed/internal/store"
	"github.com/devdocai/docfed/internal/telemetry"
)

// Data files under the data directory.
const (
	relationalFile = "docfed.db"
	graphFile      = "graph.db"
	vectorFile     = "vectors.hnsw"
	fulltextDir    = "fulltext.bleve"
)

// app wires the backends, embedder, ingest pipeline, and query service
// for one command invocation.
type app struct {
	cfg *config.Config

	embedder   embed.Embedder
	relational *store.SQLiteStore
	graph      *store.SQLiteGraph
	vector     *store.HNSWStore
	fulltext   *store.BleveIndex
	cache      *store.LRUCache

	batcher *ingest.Batcher
	service *query.Service

	vectorPath string
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	embedder, err := embed.NewEmbedder(ctx, cfg.Embeddings)
	if err != nil {
		return nil, err
	}

	relational, err := store.NewSQLiteStore(filepath.Join(cfg.DataDir, relationalFile))
	if err != nil {
		return nil, err
	}

	graph, err := store.NewSQLiteGraph(filepath.Join(cfg.DataDir, graphFile))
	if err != nil {
		return nil, err
	}

	vector, err := store.NewHNSWStore(store.DefaultVectorConfig(embedder.Dimensions()))
	if err != nil {
		return nil, err
	}
	vectorPath := filepath.Join(cfg.DataDir, vectorFile)
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vector.Load(vectorPath); err != nil {
			return nil, err
		}
	}

	fulltext, err := store.NewBleveIndex(filepath.Join(cfg.DataDir, fulltextDir))
	if err != nil {
		return nil, err
	}

	cache := store.NewLRUCache(cfg.Query.CacheSize, cfg.Query.CacheTTL)

	processor := docs.NewProcessor(cfg.Quality, cfg.Chunking)
	writer := ingest.NewWriter(ingest.Backends{
		Relational: relational,
		Vector:     vector,
		Graph:      graph,
		FullText:   fulltext,
		Cache:      cache,
	}, embedder, cfg.Ingest, slog.Default())

	batcher := ingest.NewBatcher(processor, writer, cfg.Ingest, cfg.DataDir, slog.Default())

	service := query.NewService(query.Stores{
		Vector:     vector,
		Graph:      graph,
		Relational: relational,
		FullText:   fulltext,
	}, embedder, cfg.Query, cache, slog.Default())

	a := &app{
		cfg:        cfg,
		embedder:   embedder,
		relational: relational,
		graph:      graph,
		vector:     vector,
		fulltext:   fulltext,
		cache:      cache,
		batcher:    batcher,
		service:    service,
		vectorPath: vectorPath,
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := telemetry.Serve(ctx, cfg.Metrics.Addr); err != nil {
				slog.Warn("metrics_server_failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	return a, nil
}

// saveVector persists the HNSW index. Called after writes; the other
// backends persist themselves.
func (a *app) saveVector() error {
	return a.vector.Save(a.vectorPath)
}

func (a *app) Close() {
	if err := a.fulltext.Close(); err != nil {
		slog.Warn("close_failed", "backend", store.BackendFullText, "error", err)
	}
	if err := a.vector.Close(); err != nil {
		slog.Warn("close_failed", "backend", store.BackendVector, "error", err)
	}
	if err := a.graph.Close(); err != nil {
		slog.Warn("close_failed", "backend", store.BackendGraph, "error", err)
	}
	if err := a.relational.Close(); err != nil {
		slog.Warn("close_failed", "backend", store.BackendRelational, "error", err)
	}
	if err := a.embedder.Close(); err != nil {
		slog.Warn("close_failed", "backend", "embedder", "error", err)
	}
}
