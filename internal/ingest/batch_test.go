package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdocai/docfed/internal/config"
	"github.com/devdocai/docfed/internal/docs"
	"github.com/devdocai/docfed/internal/errors"
)

func newTestBatcher(t *testing.T, rel *fakeRelational) *Batcher {
	t.Helper()
	cfg := config.Default()
	processor := docs.NewProcessor(cfg.Quality, cfg.Chunking)
	writer := newTestWriter(rel, &fakeVector{}, &fakeGraph{}, &fakeFullText{}, nil)
	return NewBatcher(processor, writer, testIngestConfig(), t.TempDir(), nil)
}

func writeDocs(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestBatcher_IngestsMarkdownTree(t *testing.T) {
	// Given a directory tree with markdown and non-markdown files
	root := t.TempDir()
	writeDocs(t, root, map[string]string{
		"prd.md":              "# Product Requirements\n\nREQ-1 covers ingestion.",
		"design/arch.md":      "# System Architecture\n\nModule M003 design.",
		"design/notes.txt":    "not markdown",
		".hidden/internal.md": "# Hidden\n\nShould be skipped.",
	})

	b := newTestBatcher(t, newFakeRelational())

	// When running a batch ingest
	stats, err := b.Run(context.Background(), root)

	// Then only visible markdown files are processed
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Accepted)
	assert.Zero(t, stats.Skipped)
	assert.Zero(t, stats.Failed)
}

func TestBatcher_SecondRunSkipsUnchanged(t *testing.T) {
	root := t.TempDir()
	writeDocs(t, root, map[string]string{
		"prd.md":  "# Product Requirements\n\nREQ-1 covers ingestion.",
		"arch.md": "# System Architecture\n\nModule M003 design.",
	})

	rel := newFakeRelational()
	b := newTestBatcher(t, rel)

	_, err := b.Run(context.Background(), root)
	require.NoError(t, err)

	stats, err := b.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Zero(t, stats.Accepted)
	assert.Equal(t, 2, stats.Skipped)
}

func TestBatcher_EmptyFileCountsAsFailed(t *testing.T) {
	root := t.TempDir()
	writeDocs(t, root, map[string]string{
		"empty.md": "   \n\t",
		"good.md":  "# Good\n\nContent here.",
	})

	b := newTestBatcher(t, newFakeRelational())

	stats, err := b.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 1, stats.Failed)
}

func TestBatcher_MissingRoot(t *testing.T) {
	b := newTestBatcher(t, newFakeRelational())

	_, err := b.Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidPath, errors.GetCode(err))
}

func TestBatcher_FileTooLarge(t *testing.T) {
	root := t.TempDir()
	big := "# Big\n\n" + strings.Repeat("word ", 1024)
	writeDocs(t, root, map[string]string{"big.md": big})

	cfg := config.Default()
	processor := docs.NewProcessor(cfg.Quality, cfg.Chunking)
	writer := newTestWriter(newFakeRelational(), &fakeVector{}, &fakeGraph{}, &fakeFullText{}, nil)

	ingestCfg := testIngestConfig()
	b := NewBatcher(processor, writer, ingestCfg, t.TempDir(), nil)
	// Shrink the limit below the file size
	b.maxFileBytes = 64

	_, err := b.IngestFile(context.Background(), filepath.Join(root, "big.md"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileTooLarge, errors.GetCode(err))
}

func TestBatcher_IngestSingleFile(t *testing.T) {
	root := t.TempDir()
	writeDocs(t, root, map[string]string{"guide.md": "# User Guide\n\nGetting started."})

	rel := newFakeRelational()
	b := newTestBatcher(t, rel)

	status, err := b.IngestFile(context.Background(), filepath.Join(root, "guide.md"))
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, status)
	assert.Len(t, rel.checksums, 1)
}
