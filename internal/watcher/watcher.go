// Package watcher re-ingests markdown files as they change on disk.
// Rapid bursts of events for the same path are coalesced within a
// debounce window so editors that write in several steps trigger a
// single re-ingest.
package watcher

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

	"github.com/fsnotify/fsnotify"

	"github.com/devdocai/docfed/internal/ingest"
)

// Ingester is the single-file ingest entry point the watcher feeds.
type Ingester interface {
	IngestFile(ctx context.Context, path string) (ingest.Status, error)
}

// Watcher watches a directory tree for markdown changes.
type Watcher struct {
	ingester Ingester
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	flushCh chan []string
	done    chan struct{}
}

// New creates a watcher. debounce <= 0 defaults to 500ms.
func New(ingester Ingester, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		ingester: ingester,
		debounce: debounce,
		logger:   logger,
		pending:  make(map[string]struct{}),
		flushCh:  make(chan []string, 16),
		done:     make(chan struct{}),
	}
}

// Run watches root until ctx is cancelled. New subdirectories are added
// to the watch as they appear. Deleted files are logged but stay in the
// backends until the next batch ingest. Run may be called at most once.
func (w *Watcher) Run(ctx context.Context, root string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()
	// Unblocks any debounce flush still in flight after Run returns.
	defer close(w.done)

	if err := addRecursive(fsw, root); err != nil {
		return err
	}

	w.logger.Info("watch_started", "root", root, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case paths := <-w.flushCh:
			for _, path := range paths {
				w.reingest(ctx, path)
			}

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch_error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(event.Name), ".") {
				_ = addRecursive(fsw, event.Name)
			}
			return
		}
	}

	if !strings.EqualFold(filepath.Ext(event.Name), ".md") {
		return
	}

	if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		w.logger.Info("watched_file_removed", "path", event.Name)
		return
	}

	if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
		w.markDirty(event.Name)
	}
}

// markDirty records the path and (re)arms the debounce timer. The timer
// flushes the whole dirty set at once.
func (w *Watcher) markDirty(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		paths := make([]string, 0, len(w.pending))
		for p := range w.pending {
			paths = append(paths, p)
		}
		w.pending = make(map[string]struct{})
		w.mu.Unlock()

		if len(paths) == 0 {
			return
		}
		select {
		case w.flushCh <- paths:
		case <-w.done:
		}
	})
}

func (w *Watcher) reingest(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		// Deleted between the event and the flush
		return
	}

	status, err := w.ingester.IngestFile(ctx, path)
	if err != nil {
		w.logger.Error("watch_reingest_failed", "path", path, "error", err)
		return
	}
	w.logger.Info("watch_reingested", "path", path, "status", status)
}

// addRecursive watches dir and every visible subdirectory under it.
func addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
