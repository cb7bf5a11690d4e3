package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/devdocai/docfed/internal/config"
	"github.com/devdocai/docfed/internal/docs"
	"github.com/devdocai/docfed/internal/errors"
)

// Stats summarizes a batch ingest run.
type Stats struct {
	Total    int
	Accepted int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Batcher walks a directory tree, processes every markdown file, and
// feeds the results through the fan-out writer with bounded concurrency.
// A cross-process lock on the data directory prevents two ingest runs
// from interleaving backend writes.
type Batcher struct {
	processor      Processor
	writer         *Writer
	dataDir        string
	maxConcurrency int
	maxFileBytes   int64
	logger         *slog.Logger
}

// Processor is the document processing stage the batcher feeds files to.
type Processor interface {
	Process(content, path string) (*docs.Processed, error)
}

// NewBatcher creates a batch ingester.
func NewBatcher(processor Processor, writer *Writer, cfg config.IngestConfig, dataDir string, logger *slog.Logger) *Batcher {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	maxFileBytes := int64(cfg.MaxFileSizeMB) * 1024 * 1024
	if maxFileBytes <= 0 {
		maxFileBytes = 10 * 1024 * 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{
		processor:      processor,
		writer:         writer,
		dataDir:        dataDir,
		maxConcurrency: maxConcurrency,
		maxFileBytes:   maxFileBytes,
		logger:         logger,
	}
}

// Run ingests every *.md file under root. Per-file failures are counted
// and logged but do not abort the run; the returned error covers setup
// failures only (bad root, lock contention).
func (b *Batcher) Run(ctx context.Context, root string) (*Stats, error) {
	start := time.Now()

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeInvalidPath,
				fmt.Sprintf("ingest root does not exist: %s", root), err)
		}
		return nil, errors.New(errors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot stat ingest root: %s", root), err)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidPath,
			fmt.Sprintf("ingest root is not a directory: %s", root), nil)
	}

	unlock, err := b.lockDataDir()
	if err != nil {
		return nil, err
	}
	defer unlock()

	paths, err := collectMarkdown(root)
	if err != nil {
		return nil, errors.New(errors.ErrCodeInvalidPath,
			fmt.Sprintf("failed to walk %s", root), err)
	}

	stats := &Stats{Total: len(paths)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.maxConcurrency)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			status, err := b.ingestFile(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.Failed++
				b.logger.Error("file_ingest_failed", "path", path, "error", err)
			case status == StatusSkipped:
				stats.Skipped++
			default:
				stats.Accepted++
			}
			// Per-file errors are accounted for; only cancellation
			// stops the walk.
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	b.logger.Info("batch_ingest_complete",
		"root", root,
		"total", stats.Total,
		"accepted", stats.Accepted,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"duration", stats.Duration)

	return stats, nil
}

// IngestFile processes and writes a single markdown file.
func (b *Batcher) IngestFile(ctx context.Context, path string) (Status, error) {
	unlock, err := b.lockDataDir()
	if err != nil {
		return "", err
	}
	defer unlock()
	return b.ingestFile(ctx, path)
}

func (b *Batcher) ingestFile(ctx context.Context, path string) (Status, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New(errors.ErrCodeFileNotFound, path, err)
		}
		return "", errors.New(errors.ErrCodeFilePermission, path, err)
	}
	if info.Size() > b.maxFileBytes {
		return "", errors.New(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("%s is %d bytes, limit %d", path, info.Size(), b.maxFileBytes), nil)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.New(errors.ErrCodeFilePermission, path, err)
	}

	processed, err := b.processor.Process(string(content), path)
	if err != nil {
		return "", err
	}

	return b.writer.Write(ctx, processed)
}

// lockDataDir takes the cross-process ingest lock. Lock contention is an
// immediate error rather than a blocking wait so overlapping runs fail
// loudly.
func (b *Batcher) lockDataDir() (func(), error) {
	if b.dataDir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(b.dataDir, 0o755); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot create data dir %s", b.dataDir), err)
	}

	lock := flock.New(filepath.Join(b.dataDir, ".ingest.lock"))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, errors.InternalError("failed to acquire ingest lock", err)
	}
	if !acquired {
		return nil, errors.New(errors.ErrCodeBackendUnavailable,
			"another ingest run holds the data directory lock", nil)
	}
	return func() { _ = lock.Unlock() }, nil
}

// collectMarkdown returns every *.md path under root, skipping hidden
// directories.
func collectMarkdown(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(name), ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}
