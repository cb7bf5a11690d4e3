// Package store provides the storage backends documents fan out to:
// an HNSW vector index, a SQLite graph store, a SQLite relational store
// with FTS5 search, a Bleve full-text index, and an expirable LRU cache.
// Each backend is an independent capability interface with swappable
// implementations; backends never call each other.
package store

import (
	"context"
	"fmt"

	"github.com/devdocai/docfed/internal/docs"
)

// Backend names used in routing tables, fusion weights, and the durable
// subset configuration.
const (
	BackendVector     = "vector"
	BackendGraph      = "graph"
	BackendRelational = "relational"
	BackendFullText   = "fulltext"
	BackendCache      = "cache"
)

// Result is one matching chunk returned by a backend search.
type Result struct {
	DocumentID string
	ChunkID    string
	Content    string
	// Score is in the backend's native scale; callers normalize before
	// mixing results across backends.
	Score    float64
	Metadata map[string]string
}

// VectorStore indexes chunk embeddings for nearest-neighbor search.
type VectorStore interface {
	// Add inserts chunks using their Embedding field. Existing chunk ids
	// are replaced.
	Add(ctx context.Context, chunks []*docs.Chunk) error

	// Search finds the k nearest chunks to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)

	// DeleteDocument removes every chunk belonging to a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Count returns the number of indexed chunks.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// GraphStore persists documents and their typed relationships as nodes
// and weighted edges.
type GraphStore interface {
	// UpsertDocument merges the document node.
	UpsertDocument(ctx context.Context, doc *docs.Document) error

	// UpsertRelationships merges target nodes and edges for the
	// document's extracted relationships.
	UpsertRelationships(ctx context.Context, rels []docs.Relationship) error

	// Search matches document nodes against query terms and traverses
	// module edges for module identifiers in the query.
	Search(ctx context.Context, query string, limit int) ([]*Result, error)

	// Related returns documents connected to the given entity id
	// (module, requirement, test, or endpoint), strongest edges first.
	Related(ctx context.Context, entityID string, limit int) ([]*Result, error)

	// DeleteDocument removes the document node and its outgoing edges.
	DeleteDocument(ctx context.Context, documentID string) error

	Close() error
}

// RelationalStore is the durable system of record: full documents,
// chunks, checksums, and keyword search over chunk content.
type RelationalStore interface {
	// SaveDocument upserts the document row and replaces its chunks.
	SaveDocument(ctx context.Context, doc *docs.Document, chunks []*docs.Chunk) error

	GetDocument(ctx context.Context, documentID string) (*docs.Document, error)
	GetChunk(ctx context.Context, chunkID string) (*docs.Chunk, error)

	// Search runs FTS5 keyword search over chunk content.
	Search(ctx context.Context, query string, limit int) ([]*Result, error)

	// GetChecksum returns the recorded checksum for a document, or empty
	// string when none has been recorded.
	GetChecksum(ctx context.Context, documentID string) (string, error)

	// SetChecksum records the checksum. The fan-out writer calls this
	// last, after all backend writes have settled.
	SetChecksum(ctx context.Context, documentID, checksum string) error

	DeleteDocument(ctx context.Context, documentID string) error

	// DocumentCount returns the number of stored documents.
	DocumentCount(ctx context.Context) (int, error)

	Close() error
}

// FullTextIndex provides relevance-ranked full-text search over chunks.
type FullTextIndex interface {
	// Index adds chunks for a document. Existing chunk ids are replaced.
	Index(ctx context.Context, chunks []*docs.Chunk) error

	Search(ctx context.Context, query string, limit int) ([]*Result, error)

	// DeleteDocument removes every chunk belonging to a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Count returns the number of indexed chunks.
	Count() (uint64, error)

	Close() error
}

// KeyValueCache is a best-effort TTL cache. Misses and evictions are
// never errors; callers treat the cache as advisory.
type KeyValueCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Remove(key string)
	Len() int
	Purge()
}

// ErrDimensionMismatch indicates a vector dimension mismatch between
// the store and an incoming embedding.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// VectorConfig configures the HNSW vector store.
type VectorConfig struct {
	// Dimensions is the embedding dimension (256 for the static embedder).
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfSearch is HNSW query-time search width.
	EfSearch int
}

// DefaultVectorConfig returns sensible defaults for the vector store.
func DefaultVectorConfig(dimensions int) VectorConfig {
	return VectorConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}
