package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/devdocai/docfed/internal/docs"
)

// graphSnippetLen bounds how much document content a graph result carries.
const graphSnippetLen = 1000

var graphModulePattern = regexp.MustCompile(`M\d{3}`)

// SQLiteGraph implements GraphStore as a property graph in SQLite:
// a nodes table plus a weighted typed edges table. Upserts are merges,
// so re-ingesting a document never duplicates nodes or edges.
type SQLiteGraph struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

var _ GraphStore = (*SQLiteGraph)(nil)

// NewSQLiteGraph opens (or creates) the graph store.
// An empty path creates an in-memory store for testing.
func NewSQLiteGraph(path string) (*SQLiteGraph, error) {
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

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	g := &SQLiteGraph{db: db}
	if err := g.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return g, nil
}

func (g *SQLiteGraph) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		node_id   TEXT PRIMARY KEY,
		node_type TEXT NOT NULL,
		label     TEXT NOT NULL,
		snippet   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(node_type);

	CREATE TABLE IF NOT EXISTS edges (
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		edge_type TEXT NOT NULL,
		strength  REAL NOT NULL,
		PRIMARY KEY (source_id, target_id, edge_type)
	);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
	`
	_, err := g.db.Exec(schema)
	return err
}

// UpsertDocument merges the document node.
func (g *SQLiteGraph) UpsertDocument(ctx context.Context, doc *docs.Document) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("graph store is closed")
	}

	snippet := doc.Content
	if len(snippet) > graphSnippetLen {
		snippet = snippet[:graphSnippetLen]
	}

	_, err := g.db.ExecContext(ctx, `
		INSERT INTO nodes (node_id, node_type, label, snippet)
		VALUES (?, 'document', ?, ?)
		ON CONFLICT (node_id) DO UPDATE SET
			label = excluded.label,
			snippet = excluded.snippet`,
		doc.ID, doc.Title, snippet)
	if err != nil {
		return fmt.Errorf("failed to upsert document node %s: %w", doc.ID, err)
	}
	return nil
}

// UpsertRelationships merges target entity nodes and the edges to them.
func (g *SQLiteGraph) UpsertRelationships(ctx context.Context, rels []docs.Relationship) error {
	if len(rels) == 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("graph store is closed")
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	nodeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (node_id, node_type, label)
		VALUES (?, ?, ?)
		ON CONFLICT (node_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare node statement: %w", err)
	}
	defer nodeStmt.Close()

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (source_id, target_id, edge_type, strength)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source_id, target_id, edge_type) DO UPDATE SET
			strength = excluded.strength`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge statement: %w", err)
	}
	defer edgeStmt.Close()

	for _, rel := range rels {
		if _, err := nodeStmt.ExecContext(ctx, rel.TargetID, rel.TargetType, rel.TargetID); err != nil {
			return fmt.Errorf("failed to merge node %s: %w", rel.TargetID, err)
		}
		if _, err := edgeStmt.ExecContext(ctx, rel.SourceID, rel.TargetID, string(rel.Type), rel.Strength); err != nil {
			return fmt.Errorf("failed to merge edge %s->%s: %w", rel.SourceID, rel.TargetID, err)
		}
	}

	return tx.Commit()
}

// Search matches document nodes two ways: module identifiers in the
// query resolve through edges (documents connected to that module,
// scored by edge strength), and remaining terms match node labels.
func (g *SQLiteGraph) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return nil, fmt.Errorf("graph store is closed")
	}
	if strings.TrimSpace(query) == "" {
		return []*Result{}, nil
	}

	best := make(map[string]*Result)

	// Edge traversal for module references in the query
	for _, moduleID := range graphModulePattern.FindAllString(query, -1) {
		related, err := g.relatedLocked(ctx, moduleID, limit)
		if err != nil {
			return nil, err
		}
		for _, r := range related {
			if cur, ok := best[r.DocumentID]; !ok || r.Score > cur.Score {
				best[r.DocumentID] = r
			}
		}
	}

	// Label match on the remaining terms
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) > 0 {
		rows, err := g.db.QueryContext(ctx,
			`SELECT node_id, label, snippet FROM nodes WHERE node_type = 'document'`)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document nodes: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var nodeID, label string
			var snippet sql.NullString
			if err := rows.Scan(&nodeID, &label, &snippet); err != nil {
				return nil, fmt.Errorf("failed to scan node: %w", err)
			}

			matched := 0
			lowerLabel := strings.ToLower(label)
			for _, term := range terms {
				if strings.Contains(lowerLabel, term) {
					matched++
				}
			}
			if matched == 0 {
				continue
			}
			score := float64(matched) / float64(len(terms))
			if cur, ok := best[nodeID]; !ok || score > cur.Score {
				best[nodeID] = &Result{
					DocumentID: nodeID,
					Content:    snippet.String,
					Score:      score,
					Metadata:   map[string]string{"title": label},
				}
			}
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	results := make([]*Result, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Related returns documents connected to an entity, strongest edges first.
func (g *SQLiteGraph) Related(ctx context.Context, entityID string, limit int) ([]*Result, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return nil, fmt.Errorf("graph store is closed")
	}
	return g.relatedLocked(ctx, entityID, limit)
}

func (g *SQLiteGraph) relatedLocked(ctx context.Context, entityID string, limit int) ([]*Result, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT e.source_id, e.edge_type, MAX(e.strength) AS strength, n.label, n.snippet
		FROM edges e
		JOIN nodes n ON n.node_id = e.source_id
		WHERE e.target_id = ? AND n.node_type = 'document'
		GROUP BY e.source_id
		ORDER BY strength DESC
		LIMIT ?`, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to traverse edges for %s: %w", entityID, err)
	}
	defer rows.Close()

	var results []*Result
	for rows.Next() {
		var r Result
		var edgeType, label string
		var snippet sql.NullString
		if err := rows.Scan(&r.DocumentID, &edgeType, &r.Score, &label, &snippet); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		r.Content = snippet.String
		r.Metadata = map[string]string{
			"title":     label,
			"edge_type": edgeType,
			"entity_id": entityID,
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// DeleteDocument removes the document node and its outgoing edges.
// Entity nodes are left in place; other documents may still point at them.
func (g *SQLiteGraph) DeleteDocument(ctx context.Context, documentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("graph store is closed")
	}

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE source_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to delete edges for %s: %w", documentID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE node_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to delete node %s: %w", documentID, err)
	}

	return tx.Commit()
}

// Close closes the database.
func (g *SQLiteGraph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	return g.db.Close()
}
