package query

import (
	"context"

	"github.com/devdocai/docfed/internal/embed"
	"github.com/devdocai/docfed/internal/errors"
	"github.com/devdocai/docfed/internal/store"
)

// vectorSearcher embeds the query text and runs nearest-neighbor search.
type vectorSearcher struct {
	store    store.VectorStore
	embedder embed.Embedder
}

func (s *vectorSearcher) Name() string { return store.BackendVector }

func (s *vectorSearcher) Search(ctx context.Context, query string, limit int) ([]*store.Result, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}
	return s.store.Search(ctx, vec, limit)
}

type graphSearcher struct {
	store store.GraphStore
}

func (s *graphSearcher) Name() string { return store.BackendGraph }

func (s *graphSearcher) Search(ctx context.Context, query string, limit int) ([]*store.Result, error) {
	return s.store.Search(ctx, query, limit)
}

// relationalSearcher runs FTS5 keyword search over the system of record.
type relationalSearcher struct {
	store store.RelationalStore
}

func (s *relationalSearcher) Name() string { return store.BackendRelational }

func (s *relationalSearcher) Search(ctx context.Context, query string, limit int) ([]*store.Result, error) {
	return s.store.Search(ctx, query, limit)
}

type fulltextSearcher struct {
	index store.FullTextIndex
}

func (s *fulltextSearcher) Name() string { return store.BackendFullText }

func (s *fulltextSearcher) Search(ctx context.Context, query string, limit int) ([]*store.Result, error) {
	return s.index.Search(ctx, query, limit)
}
