package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama serves /api/tags and /api/embed with canned responses.
func fakeOllama(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_ = json.NewEncoder(w).Encode(ollamaModelListResponse{
				Models: []ollamaModelInfo{{Name: "nomic-embed-text:latest"}},
			})
		case "/api/embed":
			var req ollamaEmbedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			inputs, ok := req.Input.([]any)
			require.True(t, ok)
			embeddings := make([][]float32, len(inputs))
			for i := range inputs {
				vec := make([]float32, dims)
				vec[0] = float32(i + 1)
				embeddings[i] = vec
			}
			_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: embeddings})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestOllamaEmbedder_ResolvesModelByBaseName(t *testing.T) {
	srv := fakeOllama(t, 8)
	defer srv.Close()

	// Configured model has no tag; server advertises nomic-embed-text:latest
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:  srv.URL,
		Model: "nomic-embed-text",
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, "nomic-embed-text:latest", e.ModelName())
	assert.Equal(t, 8, e.Dimensions())
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := fakeOllama(t, 4)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:  srv.URL,
		Model: "nomic-embed-text",
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "document ingestion")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
}

func TestOllamaEmbedder_EmbedBatchSkipsEmpty(t *testing.T) {
	srv := fakeOllama(t, 4)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:  srv.URL,
		Model: "nomic-embed-text",
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	vecs, err := e.EmbedBatch(context.Background(), []string{"alpha", "", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// Empty input gets a zero vector without an API round-trip
	assert.Equal(t, make([]float32, 4), vecs[1])
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestOllamaEmbedder_NoModelAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaModelListResponse{})
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:  srv.URL,
		Model: "nomic-embed-text",
	})
	assert.Error(t, err)
}

func TestOllamaEmbedder_AvailableAfterClose(t *testing.T) {
	srv := fakeOllama(t, 4)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:  srv.URL,
		Model: "nomic-embed-text",
	})
	require.NoError(t, err)

	assert.True(t, e.Available(context.Background()))
	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))
}
