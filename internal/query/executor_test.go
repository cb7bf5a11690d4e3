package query

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devdocai/docfed/internal/errors"
	"github.com/devdocai/docfed/internal/store"
)

// stubSearcher returns canned results or an error, optionally after a
// delay to trigger the per-backend timeout.
type stubSearcher struct {
	name    string
	results []*store.Result
	err     error
	delay   time.Duration
	calls   atomic.Int64
}

func (s *stubSearcher) Name() string { return s.name }

func (s *stubSearcher) Search(ctx context.Context, _ string, _ int) ([]*store.Result, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func TestExecutor_CollectsAllBackends(t *testing.T) {
	e := NewExecutor(time.Second, nil)

	searchers := []Searcher{
		&stubSearcher{name: store.BackendVector, results: []*store.Result{{DocumentID: "a", Score: 0.9}}},
		&stubSearcher{name: store.BackendGraph, results: []*store.Result{{DocumentID: "b", Score: 2.0}}},
	}

	bySource, err := e.Execute(context.Background(), searchers, "anything", 10)
	require.NoError(t, err)
	require.Len(t, bySource, 2)
	assert.Len(t, bySource[store.BackendVector], 1)
	assert.Len(t, bySource[store.BackendGraph], 1)
}

func TestExecutor_DegradesOnPartialFailure(t *testing.T) {
	// Given one healthy and one failing backend
	e := NewExecutor(time.Second, nil)

	searchers := []Searcher{
		&stubSearcher{name: store.BackendVector, err: fmt.Errorf("index offline")},
		&stubSearcher{name: store.BackendRelational, results: []*store.Result{{DocumentID: "a", Score: 1.0}}},
	}

	// When executing
	bySource, err := e.Execute(context.Background(), searchers, "anything", 10)

	// Then the survivor's results come back without error
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Contains(t, bySource, store.BackendRelational)
}

func TestExecutor_AllBackendsFailed(t *testing.T) {
	e := NewExecutor(time.Second, nil)

	searchers := []Searcher{
		&stubSearcher{name: store.BackendVector, err: fmt.Errorf("down")},
		&stubSearcher{name: store.BackendGraph, err: fmt.Errorf("also down")},
	}

	_, err := e.Execute(context.Background(), searchers, "anything", 10)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoBackends, errors.GetCode(err))
}

func TestExecutor_NoBackendsSelected(t *testing.T) {
	e := NewExecutor(time.Second, nil)

	_, err := e.Execute(context.Background(), nil, "anything", 10)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoBackends, errors.GetCode(err))
}

func TestExecutor_SlowBackendTimesOut(t *testing.T) {
	// Per-backend timeout of 20ms against a 500ms backend
	e := NewExecutor(20*time.Millisecond, nil)

	slow := &stubSearcher{name: store.BackendGraph, delay: 500 * time.Millisecond,
		results: []*store.Result{{DocumentID: "slow", Score: 1.0}}}
	fast := &stubSearcher{name: store.BackendVector,
		results: []*store.Result{{DocumentID: "fast", Score: 1.0}}}

	bySource, err := e.Execute(context.Background(), []Searcher{slow, fast}, "anything", 10)
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Contains(t, bySource, store.BackendVector)
}

func TestExecutor_EmptyResultsAreNotFailure(t *testing.T) {
	// A backend returning zero results still counts as a survivor
	e := NewExecutor(time.Second, nil)

	searchers := []Searcher{
		&stubSearcher{name: store.BackendGraph, results: nil},
	}

	bySource, err := e.Execute(context.Background(), searchers, "anything", 10)
	require.NoError(t, err)
	assert.Contains(t, bySource, store.BackendGraph)
}
