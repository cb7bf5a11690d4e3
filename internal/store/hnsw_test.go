package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdocai/docfed/internal/docs"
)

func testChunk(id, docID, content string, vec []float32) *docs.Chunk {
	return &docs.Chunk{
		ID:         id,
		DocumentID: docID,
		Content:    content,
		Embedding:  vec,
	}
}

func TestHNSWStore_AddAndSearch(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []*docs.Chunk{
		testChunk("c1", "doc1", "storage layer design", []float32{1, 0, 0, 0}),
		testChunk("c2", "doc1", "query routing", []float32{0, 1, 0, 0}),
		testChunk("c3", "doc2", "result fusion", []float32{0, 0, 1, 0}),
	}))
	assert.Equal(t, 3, s.Count())

	results, err := s.Search(ctx, []float32{1, 0.1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Nearest neighbor carries its payload
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Equal(t, "doc1", results[0].DocumentID)
	assert.Equal(t, "storage layer design", results[0].Content)
	assert.Greater(t, results[0].Score, 0.9)
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	err = s.Add(ctx, []*docs.Chunk{testChunk("c1", "doc1", "x", []float32{1, 0})})
	require.Error(t, err)
	assert.IsType(t, ErrDimensionMismatch{}, err)

	_, err = s.Search(ctx, []float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestHNSWStore_UpdateReplacesVector(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []*docs.Chunk{testChunk("c1", "doc1", "old", []float32{1, 0, 0, 0})}))
	require.NoError(t, s.Add(ctx, []*docs.Chunk{testChunk("c1", "doc1", "new", []float32{0, 1, 0, 0})}))

	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new", results[0].Content)
}

func TestHNSWStore_DeleteDocumentHidesChunks(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Add(ctx, []*docs.Chunk{
		testChunk("c1", "doc1", "a", []float32{1, 0, 0, 0}),
		testChunk("c2", "doc2", "b", []float32{0, 1, 0, 0}),
	}))

	require.NoError(t, s.DeleteDocument(ctx, "doc1"))
	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "doc1", r.DocumentID)
	}
}

func TestHNSWStore_EmptySearchReturnsNoResults(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer s.Close()

	results, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")
	ctx := context.Background()

	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, []*docs.Chunk{
		testChunk("c1", "doc1", "persisted content", []float32{1, 0, 0, 0}),
	}))
	require.NoError(t, s.Save(path))
	require.NoError(t, s.Close())

	loaded, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 1, loaded.Count())
	results, err := loaded.Search(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ChunkID)
	assert.Equal(t, "persisted content", results[0].Content)
}
