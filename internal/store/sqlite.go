package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/devdocai/docfed/internal/docs"
)

// SQLiteStore implements RelationalStore on SQLite with WAL mode.
// It is the system of record: full documents, their chunks, the
// idempotency checksums, and FTS5 keyword search over chunk content.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ RelationalStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the relational store.
// An empty path creates an in-memory store for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer prevents lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		document_id   TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		doc_type      TEXT NOT NULL,
		source_path   TEXT NOT NULL,
		content       TEXT NOT NULL,
		module_id     TEXT,
		phase         INTEGER,
		tags          TEXT,
		quality_score REAL,
		checksum      TEXT NOT NULL,
		created_at    TIMESTAMP,
		updated_at    TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id     TEXT PRIMARY KEY,
		document_id  TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
		content      TEXT NOT NULL,
		chunk_index  INTEGER NOT NULL,
		start_char   INTEGER NOT NULL,
		end_char     INTEGER NOT NULL,
		total_chunks INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

	-- Ingestion checksums, written last by the fan-out writer. A row
	-- here means the document was durably accepted at that checksum.
	CREATE TABLE IF NOT EXISTS ingest_checksums (
		document_id TEXT PRIMARY KEY,
		checksum    TEXT NOT NULL,
		recorded_at TIMESTAMP
	);

	-- FTS5 over chunk content; chunk_id and document_id stored unindexed
	CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		chunk_id UNINDEXED,
		document_id UNINDEXED,
		content,
		tokenize='unicode61'
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveDocument upserts the document row and replaces its chunks,
// including the FTS entries, in one transaction.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *docs.Document, chunks []*docs.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("relational store is closed")
	}

	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (
			document_id, title, doc_type, source_path, content,
			module_id, phase, tags, quality_score, checksum, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			module_id = excluded.module_id,
			phase = excluded.phase,
			tags = excluded.tags,
			quality_score = excluded.quality_score,
			checksum = excluded.checksum,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Title, string(doc.Type), doc.SourcePath, doc.Content,
		doc.ModuleID, doc.Phase, string(tags), doc.QualityScore, doc.Checksum,
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}

	// Replace chunks wholesale; chunk counts can change between versions
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("failed to clear chunks for %s: %w", doc.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("failed to clear FTS rows for %s: %w", doc.ID, err)
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (chunk_id, document_id, content, chunk_index, start_char, end_char, total_chunks)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk statement: %w", err)
	}
	defer chunkStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks_fts (chunk_id, document_id, content) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer ftsStmt.Close()

	for _, chunk := range chunks {
		if _, err := chunkStmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content,
			chunk.Index, chunk.StartChar, chunk.EndChar, chunk.TotalChunks); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
		if _, err := ftsStmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
		}
	}

	return tx.Commit()
}

// GetDocument loads one document by id. Returns sql.ErrNoRows when absent.
func (s *SQLiteStore) GetDocument(ctx context.Context, documentID string) (*docs.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("relational store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, title, doc_type, source_path, content,
		       module_id, phase, tags, quality_score, checksum, created_at, updated_at
		FROM documents WHERE document_id = ?`, documentID)

	var doc docs.Document
	var docType, tags string
	var moduleID sql.NullString
	var phase sql.NullInt64
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&doc.ID, &doc.Title, &docType, &doc.SourcePath, &doc.Content,
		&moduleID, &phase, &tags, &doc.QualityScore, &doc.Checksum, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	doc.Type = docs.DocumentType(docType)
	doc.ModuleID = moduleID.String
	doc.Phase = int(phase.Int64)
	doc.CreatedAt = createdAt.Time
	doc.UpdatedAt = updatedAt.Time
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &doc.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags for %s: %w", documentID, err)
		}
	}

	return &doc, nil
}

// GetChunk loads one chunk by id. Returns sql.ErrNoRows when absent.
func (s *SQLiteStore) GetChunk(ctx context.Context, chunkID string) (*docs.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("relational store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT chunk_id, document_id, content, chunk_index, start_char, end_char, total_chunks
		FROM chunks WHERE chunk_id = ?`, chunkID)

	var chunk docs.Chunk
	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content,
		&chunk.Index, &chunk.StartChar, &chunk.EndChar, &chunk.TotalChunks); err != nil {
		return nil, err
	}
	return &chunk, nil
}

// Search runs FTS5 keyword search over chunk content.
// bm25() returns negative scores where lower is better; results are
// returned with positive scores (higher is better).
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("relational store is closed")
	}
	if strings.TrimSpace(query) == "" {
		return []*Result{}, nil
	}

	matchQuery := buildFTSQuery(query)
	if matchQuery == "" {
		return []*Result{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, content, bm25(chunks_fts) AS score
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY score
		LIMIT ?`, matchQuery, limit)
	if err != nil {
		// FTS5 errors on malformed match expressions; treat as no results
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return []*Result{}, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		var r Result
		var score float64
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Content, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Score = -score
		results = append(results, &r)
	}
	return results, rows.Err()
}

// buildFTSQuery quotes each term so user input cannot inject FTS5
// operators, OR-joined for recall.
func buildFTSQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.Trim(term, `"'`)
		if term == "" {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(term, `"`, ``)+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// GetChecksum returns the recorded ingest checksum, empty when none.
func (s *SQLiteStore) GetChecksum(ctx context.Context, documentID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("relational store is closed")
	}

	var checksum string
	err := s.db.QueryRowContext(ctx,
		`SELECT checksum FROM ingest_checksums WHERE document_id = ?`, documentID).Scan(&checksum)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read checksum for %s: %w", documentID, err)
	}
	return checksum, nil
}

// SetChecksum records the ingest checksum for a document.
func (s *SQLiteStore) SetChecksum(ctx context.Context, documentID, checksum string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("relational store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_checksums (document_id, checksum, recorded_at)
		VALUES (?, ?, ?)
		ON CONFLICT (document_id) DO UPDATE SET
			checksum = excluded.checksum,
			recorded_at = excluded.recorded_at`,
		documentID, checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record checksum for %s: %w", documentID, err)
	}
	return nil
}

// DeleteDocument removes the document, its chunks, FTS rows, and checksum.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("relational store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM chunks_fts WHERE document_id = ?`,
		`DELETE FROM chunks WHERE document_id = ?`,
		`DELETE FROM ingest_checksums WHERE document_id = ?`,
		`DELETE FROM documents WHERE document_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, documentID); err != nil {
			return fmt.Errorf("failed to delete document %s: %w", documentID, err)
		}
	}

	return tx.Commit()
}

// DocumentCount returns the number of stored documents.
func (s *SQLiteStore) DocumentCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("relational store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
