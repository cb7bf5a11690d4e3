package errors

import (
	"fmt"
)

// FedError is the structured error type for docfed.
// It provides rich context for error handling, logging, and user presentation.
type FedError struct {
	// Code is the unique error code (e.g., "ERR_301_BACKEND_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Content, Backend, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *FedError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *FedError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with FedError.
func (e *FedError) Is(target error) bool {
	if t, ok := target.(*FedError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *FedError) WithDetail(key, value string) *FedError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *FedError) WithSuggestion(suggestion string) *FedError {
	e.Suggestion = suggestion
	return e
}

// New creates a new FedError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *FedError {
	return &FedError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a FedError from an existing error.
// The error's message becomes the FedError message.
func Wrap(code string, err error) *FedError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *FedError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ProcessingError creates a content-processing error. The named document
// could not be converted into the canonical representation.
func ProcessingError(message string, cause error) *FedError {
	return New(ErrCodeProcessingFailed, message, cause)
}

// TransientError creates a transient backend error.
// Transient backend errors are retryable.
func TransientError(message string, cause error) *FedError {
	return New(ErrCodeBackendUnavailable, message, cause)
}

// ValidationError creates a permanent validation error.
// Validation errors must never be retried.
func ValidationError(message string, cause error) *FedError {
	return New(ErrCodeInvalidInput, message, cause)
}

// DurabilityError creates a durability failure: a required durable
// backend rejected the write, so the document is not accepted.
func DurabilityError(message string, cause error) *FedError {
	return New(ErrCodeDurabilityFailure, message, cause)
}

// NoBackendsError signals that every backend dispatched for a query
// failed or timed out.
func NoBackendsError(message string, cause error) *FedError {
	return New(ErrCodeNoBackends, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *FedError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a FedError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if fe, ok := err.(*FedError); ok {
		return fe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if fe, ok := err.(*FedError); ok {
		return fe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a FedError.
// Returns empty string if not a FedError.
func GetCode(err error) string {
	if fe, ok := err.(*FedError); ok {
		return fe.Code
	}
	return ""
}

// GetCategory extracts the category from a FedError.
// Returns empty string if not a FedError.
func GetCategory(err error) Category {
	if fe, ok := err.(*FedError); ok {
		return fe.Category
	}
	return ""
}
