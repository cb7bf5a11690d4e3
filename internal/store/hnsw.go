package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/devdocai/docfed/internal/docs"
)

// HNSWStore implements VectorStore on the coder/hnsw pure Go HNSW graph.
// Chunk payloads (document id and content) live alongside the vectors so
// search results are self-contained.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorConfig

	// ID mapping (chunk ID <-> internal graph key)
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	// payloads keyed by chunk ID
	payloads map[string]vectorPayload
	// docChunks maps document ID -> chunk IDs for document deletion
	docChunks map[string][]string

	closed bool
}

var _ VectorStore = (*HNSWStore)(nil)

type vectorPayload struct {
	DocumentID string
	Content    string
}

// hnswMetadata stores ID mappings and payloads for persistence.
type hnswMetadata struct {
	IDMap     map[string]uint64
	Payloads  map[string]vectorPayload
	DocChunks map[string][]string
	NextKey   uint64
	Config    VectorConfig
}

// NewHNSWStore creates an HNSW-based vector store.
func NewHNSWStore(cfg VectorConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector store requires positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWStore{
		graph:     graph,
		config:    cfg,
		idMap:     make(map[string]uint64),
		keyMap:    make(map[uint64]string),
		payloads:  make(map[string]vectorPayload),
		docChunks: make(map[string][]string),
	}, nil
}

// Add inserts chunks using their Embedding field.
// If a chunk ID already exists, the old vector is lazily orphaned: the
// mapping is dropped but the graph node stays, avoiding coder/hnsw
// delete instability. Orphans are skipped at search time.
func (s *HNSWStore) Add(ctx context.Context, chunks []*docs.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, chunk := range chunks {
		if len(chunk.Embedding) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(chunk.Embedding)}
		}
	}

	for _, chunk := range chunks {
		if existingKey, exists := s.idMap[chunk.ID]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, chunk.ID)
		} else {
			s.docChunks[chunk.DocumentID] = append(s.docChunks[chunk.DocumentID], chunk.ID)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(chunk.Embedding))
		copy(vec, chunk.Embedding)
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[chunk.ID] = key
		s.keyMap[key] = chunk.ID
		s.payloads[chunk.ID] = vectorPayload{DocumentID: chunk.DocumentID, Content: chunk.Content}
	}

	return nil
}

// Search finds the k nearest chunks to the query vector.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []*Result{}, nil
	}

	normalizedQuery := make([]float32, len(query))
	copy(normalizedQuery, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(normalizedQuery)
	}

	nodes := s.graph.Search(normalizedQuery, k)

	results := make([]*Result, 0, len(nodes))
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			// Orphaned by an update or delete
			continue
		}
		payload := s.payloads[id]

		distance := s.graph.Distance(normalizedQuery, node.Value)
		results = append(results, &Result{
			DocumentID: payload.DocumentID,
			ChunkID:    id,
			Content:    payload.Content,
			Score:      float64(distanceToScore(distance, s.config.Metric)),
		})
	}

	return results, nil
}

// DeleteDocument lazily removes every chunk of a document.
func (s *HNSWStore) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, chunkID := range s.docChunks[documentID] {
		if key, exists := s.idMap[chunkID]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, chunkID)
		}
		delete(s.payloads, chunkID)
	}
	delete(s.docChunks, documentID)

	return nil
}

// Count returns the number of live chunks.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Save writes the graph and metadata to disk via atomic tmp+rename.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	if err := s.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

func (s *HNSWStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp metadata file: %w", err)
	}

	meta := hnswMetadata{
		IDMap:     s.idMap,
		Payloads:  s.payloads,
		DocChunks: s.docChunks,
		NextKey:   s.nextKey,
		Config:    s.config,
	}

	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Load restores the graph and metadata from disk.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer metaFile.Close()

	var meta hnswMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	s.idMap = meta.IDMap
	s.payloads = meta.Payloads
	s.docChunks = meta.DocChunks
	s.nextKey = meta.NextKey
	s.config = meta.Config
	s.keyMap = make(map[uint64]string, len(s.idMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	return nil
}

// Close marks the store closed. Further operations fail.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// distanceToScore converts a distance to a similarity score.
// Cosine distance ranges 0-2, mapped to 1-0. L2 uses 1/(1+d).
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
