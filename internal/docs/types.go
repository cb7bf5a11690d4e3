// Package docs converts raw documentation files into the canonical
// representation shared by every storage backend: a document with derived
// metadata, ordered content chunks, and typed relationships.
package docs

import "time"

// DocumentType classifies a documentation file.
type DocumentType string

const (
	TypeRequirements  DocumentType = "requirements"
	TypeArchitecture  DocumentType = "architecture"
	TypeAPI           DocumentType = "api"
	TypeModule        DocumentType = "module"
	TypeTesting       DocumentType = "testing"
	TypeDeployment    DocumentType = "deployment"
	TypeUserGuide     DocumentType = "user_guide"
	TypeContributing  DocumentType = "contributing"
	TypeSecurity      DocumentType = "security"
	TypePerformance   DocumentType = "performance"
	TypeConfiguration DocumentType = "configuration"
)

// Document is the canonical representation of one ingested file.
type Document struct {
	// ID is derived from type, filename stem, and a short path hash,
	// so the same file always maps to the same document.
	ID         string       `json:"document_id"`
	Title      string       `json:"title"`
	Type       DocumentType `json:"type"`
	SourcePath string       `json:"source_path"`
	Content    string       `json:"content"`

	// ModuleID is the module identifier (e.g., "M003") when the path
	// carries one, empty otherwise.
	ModuleID string `json:"module_id,omitempty"`
	// Phase is the project phase derived from the module number, 0 when
	// no module id is present.
	Phase int `json:"phase,omitempty"`

	Tags         []string `json:"tags,omitempty"`
	QualityScore float64  `json:"quality_score"`

	// Checksum is the SHA-256 hex digest of the raw content, used for
	// idempotent ingestion.
	Checksum string `json:"checksum"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Chunk is one contiguous span of a document's content.
type Chunk struct {
	// ID is DocumentID plus the zero-padded chunk index.
	ID         string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	Index      int    `json:"chunk_index"`
	// StartChar and EndChar are byte offsets into the document content.
	StartChar   int `json:"start_char"`
	EndChar     int `json:"end_char"`
	TotalChunks int `json:"total_chunks"`

	// Embedding is populated by the ingest pipeline before vector writes.
	Embedding []float32 `json:"-"`
}

// RelationType is the kind of edge extracted from document content.
type RelationType string

const (
	// RelReferences links a document to a module it mentions.
	RelReferences RelationType = "REFERENCES"
	// RelImplements links a document to a requirement id (REQ-n).
	RelImplements RelationType = "IMPLEMENTS"
	// RelTests links a document to a test id (TEST-n).
	RelTests RelationType = "TESTS"
	// RelDefines links a document to an API endpoint path it defines.
	RelDefines RelationType = "DEFINES"
	// RelBelongsTo links a document to its own module.
	RelBelongsTo RelationType = "BELONGS_TO"
)

// Relationship is a typed, weighted edge from a document to an entity.
type Relationship struct {
	SourceID   string       `json:"source_id"`
	SourceType string       `json:"source_type"`
	TargetID   string       `json:"target_id"`
	TargetType string       `json:"target_type"`
	Type       RelationType `json:"relationship_type"`
	Strength   float64      `json:"strength"`
}

// Processed bundles everything derived from one file.
type Processed struct {
	Document      *Document
	Chunks        []*Chunk
	Relationships []Relationship
}
