package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devdocai/docfed/internal/errors"
	"github.com/devdocai/docfed/internal/store"
)

// Searcher is one queryable backend.
type Searcher interface {
	// Name returns the backend name used in routing tables and fusion
	// weights.
	Name() string

	// Search returns up to limit matching chunks in the backend's
	// native score scale.
	Search(ctx context.Context, query string, limit int) ([]*store.Result, error)
}

// Executor dispatches a query to a set of backends concurrently. Each
// backend gets its own timeout; one backend failing or timing out never
// affects the others.
type Executor struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecutor creates an executor with the given per-backend timeout.
func NewExecutor(timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{timeout: timeout, logger: logger}
}

// Execute runs the query on every searcher in parallel and returns the
// surviving result sets keyed by backend name. It fails only when every
// dispatched call failed or timed out.
func (e *Executor) Execute(ctx context.Context, searchers []Searcher, query string, limit int) (map[string][]*store.Result, error) {
	if len(searchers) == 0 {
		return nil, errors.NoBackendsError("no backends selected for query", nil)
	}

	var mu sync.Mutex
	bySource := make(map[string][]*store.Result)
	backendErrs := make(map[string]error)

	var g errgroup.Group
	for _, s := range searchers {
		s := s
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			start := time.Now()
			results, err := s.Search(callCtx, query, limit)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				backendErrs[s.Name()] = err
				e.logger.Warn("backend_search_failed",
					"backend", s.Name(),
					"elapsed", time.Since(start),
					"error", err)
				return nil
			}
			bySource[s.Name()] = results
			return nil
		})
	}
	_ = g.Wait()

	if len(bySource) == 0 {
		var joined error
		for name, err := range backendErrs {
			if joined == nil {
				joined = fmt.Errorf("%s: %w", name, err)
			} else {
				joined = fmt.Errorf("%s: %v; %w", name, err, joined)
			}
		}
		return nil, errors.NoBackendsError("all query backends failed", joined)
	}

	return bySource, nil
}
