package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFedError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with FedError
	fedErr := New(ErrCodeFileNotFound, "file not found: intro.md", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, fedErr)
	assert.Equal(t, originalErr, errors.Unwrap(fedErr))
	assert.True(t, errors.Is(fedErr, originalErr))
}

func TestFedError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "content error",
			code:     ErrCodeProcessingFailed,
			message:  "cannot process design.md",
			expected: "[ERR_205_PROCESSING_FAILED] cannot process design.md",
		},
		{
			name:     "backend error",
			code:     ErrCodeBackendTimeout,
			message:  "graph store timed out",
			expected: "[ERR_301_BACKEND_TIMEOUT] graph store timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestFedError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeFileNotFound, "file A not found", nil)
	err2 := New(ErrCodeFileNotFound, "file B not found", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestFedError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "file not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestFedError_WithDetails_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeBackendWrite, "vector store write failed", nil)

	// When: adding details
	err = err.WithDetail("backend", "vector")
	err = err.WithDetail("document_id", "design_storage_a1b2c3d4")

	// Then: details are available
	assert.Equal(t, "vector", err.Details["backend"])
	assert.Equal(t, "design_storage_a1b2c3d4", err.Details["document_id"])
}

func TestFedError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryContent},
		{ErrCodeProcessingFailed, CategoryContent},
		{ErrCodeBackendTimeout, CategoryBackend},
		{ErrCodeNoBackends, CategoryBackend},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeDimensionMismatch, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeDurabilityFailure, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestFedError_RetryableFlag(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeBackendTimeout, true},
		{ErrCodeBackendUnavailable, true},
		{ErrCodeBackendWrite, true},
		{ErrCodeEmbeddingFailed, true},
		{ErrCodeNoBackends, false},
		{ErrCodeInvalidInput, false},
		{ErrCodeDurabilityFailure, false},
		{ErrCodeProcessingFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
			assert.Equal(t, tt.wantRetryable, IsRetryable(err))
		})
	}
}

func TestIsRetryable_PlainErrorIsPermanent(t *testing.T) {
	// Errors without a code are treated as permanent.
	assert.False(t, IsRetryable(errors.New("unknown")))
	assert.False(t, IsRetryable(nil))
}

func TestTaxonomyConstructors(t *testing.T) {
	assert.Equal(t, ErrCodeProcessingFailed, ProcessingError("bad content", nil).Code)
	assert.Equal(t, ErrCodeBackendUnavailable, TransientError("backend down", nil).Code)
	assert.Equal(t, ErrCodeInvalidInput, ValidationError("bad input", nil).Code)
	assert.Equal(t, ErrCodeDurabilityFailure, DurabilityError("relational write failed", nil).Code)
	assert.Equal(t, ErrCodeNoBackends, NoBackendsError("all backends failed", nil).Code)

	assert.True(t, TransientError("backend down", nil).Retryable)
	assert.False(t, DurabilityError("relational write failed", nil).Retryable)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}
