package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/devdocai/docfed/internal/docs"
)

// BleveIndex implements FullTextIndex on Bleve with its default BM25-style
// relevance scoring.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ FullTextIndex = (*BleveIndex)(nil)

// bleveChunk is the document shape stored in the index.
type bleveChunk struct {
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
}

// NewBleveIndex opens (or creates) the full-text index.
// An empty path creates an in-memory index for testing.
func NewBleveIndex(path string) (*BleveIndex, error) {
	indexMapping := createChunkMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open full-text index: %w", err)
	}

	return &BleveIndex{index: idx, path: path}, nil
}

func createChunkMapping() *mapping.IndexMappingImpl {
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = true

	// document_id must match exactly, never be tokenized
	docIDField := bleve.NewTextFieldMapping()
	docIDField.Analyzer = keyword.Name
	docIDField.Store = true

	chunkMapping := bleve.NewDocumentMapping()
	chunkMapping.AddFieldMappingsAt("content", contentField)
	chunkMapping.AddFieldMappingsAt("document_id", docIDField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = chunkMapping
	return indexMapping
}

// Index adds chunks. Existing chunk ids are replaced.
func (b *BleveIndex) Index(ctx context.Context, chunks []*docs.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("full-text index is closed")
	}

	batch := b.index.NewBatch()
	for _, chunk := range chunks {
		doc := bleveChunk{DocumentID: chunk.DocumentID, Content: chunk.Content}
		if err := batch.Index(chunk.ID, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search returns chunks matching the query, best first.
func (b *BleveIndex) Search(ctx context.Context, queryStr string, limit int) ([]*Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("full-text index is closed")
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*Result{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.Fields = []string{"content", "document_id"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := &Result{ChunkID: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields["document_id"].(string); ok {
			r.DocumentID = v
		}
		if v, ok := hit.Fields["content"].(string); ok {
			r.Content = v
		}
		results = append(results, r)
	}
	return results, nil
}

// DeleteDocument removes every chunk belonging to a document.
func (b *BleveIndex) DeleteDocument(ctx context.Context, documentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("full-text index is closed")
	}

	termQuery := bleve.NewTermQuery(documentID)
	termQuery.SetField("document_id")

	req := bleve.NewSearchRequest(termQuery)
	req.Size = 10000

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to find chunks for %s: %w", documentID, err)
	}

	batch := b.index.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete chunks for %s: %w", documentID, err)
	}
	return nil
}

// Count returns the number of indexed chunks.
func (b *BleveIndex) Count() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("full-text index is closed")
	}
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
