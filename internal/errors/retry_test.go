package errors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterTransientError(t *testing.T) {
	// Given: a function that fails twice then succeeds
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return TransientError("backend unavailable", nil)
		}
		return nil
	}

	// When: retrying with default config
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = 10 * time.Millisecond // Speed up test

	err := Retry(context.Background(), cfg, fn)

	// Then: succeeds after 3 attempts
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_FailsAfterMaxRetries(t *testing.T) {
	// Given: a function that always fails transiently
	attempts := 0
	fn := func() error {
		attempts++
		return New(ErrCodeBackendTimeout, "persistent timeout", nil)
	}

	// When: retrying with limited retries
	cfg := RetryConfig{
		MaxRetries:   2,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
	}

	err := Retry(context.Background(), cfg, fn)

	// Then: fails with wrapped error
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, attempts) // Initial + 2 retries
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	// Given: a function returning a validation error
	attempts := 0
	fn := func() error {
		attempts++
		return ValidationError("empty document", nil)
	}

	cfg := DefaultRetryConfig()
	cfg.InitialDelay = 10 * time.Millisecond

	err := Retry(context.Background(), cfg, fn)

	// Then: no retry happened
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, ErrCodeInvalidInput, GetCode(err))
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	fn := func() error {
		return TransientError("backend unavailable", nil)
	}

	// When: context is cancelled during backoff
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	cfg := DefaultRetryConfig()
	cfg.InitialDelay = 500 * time.Millisecond
	cfg.Jitter = false

	err := Retry(ctx, cfg, fn)

	// Then: the context error surfaces
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult_ReturnsValueOnSuccess(t *testing.T) {
	attempts := 0
	fn := func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, TransientError("backend unavailable", nil)
		}
		return 42, nil
	}

	cfg := DefaultRetryConfig()
	cfg.InitialDelay = 10 * time.Millisecond

	v, err := RetryWithResult(context.Background(), cfg, fn)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, attempts)
}

func TestRetryWithResult_PermanentErrorReturnsZeroValue(t *testing.T) {
	fn := func() (string, error) {
		return "partial", DurabilityError("relational write failed", nil)
	}

	cfg := DefaultRetryConfig()
	cfg.InitialDelay = 10 * time.Millisecond

	v, err := RetryWithResult(context.Background(), cfg, fn)
	require.Error(t, err)
	assert.Empty(t, v)
	assert.Equal(t, ErrCodeDurabilityFailure, GetCode(err))
}
