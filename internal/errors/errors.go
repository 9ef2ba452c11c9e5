package errors

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a session or chunk that does not exist. Absence is a
// normal outcome, not a failure: callers check it with errors.Is and must
// never confuse it with an empty-but-successful result.
var ErrNotFound = errors.New("not found")

// ErrNoInformation marks a query for which retrieval produced zero
// candidates. The API layer maps it to a distinct "no information found"
// response instead of an empty answer.
var ErrNoInformation = errors.New("no information found in session documents")

// SynapseError is the structured error type for Synapse.
// It provides context for error handling, logging, and API responses.
type SynapseError struct {
	// Code is the unique error code (e.g., "ERR_203_VECTOR_STORE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Capability, ...).
	Category Category

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *SynapseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SynapseError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SynapseError.
func (e *SynapseError) Is(target error) bool {
	if t, ok := target.(*SynapseError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SynapseError) WithDetail(key, value string) *SynapseError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new SynapseError with the given code and message.
// Category and retryable flag are derived from the code.
func New(code string, message string, cause error) *SynapseError {
	return &SynapseError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SynapseError from an existing error.
// Returns nil if err is nil.
func Wrap(code string, err error) *SynapseError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// StorageError creates a chunk store / index error. These surface to the
// caller unretried: the API layer decides the retry policy.
func StorageError(code string, message string, cause error) *SynapseError {
	return New(code, message, cause)
}

// VectorStoreError creates a vector search failure. There is no safe
// fallback for vector search, so this propagates as a storage failure.
func VectorStoreError(message string, cause error) *SynapseError {
	return New(ErrCodeVectorStore, message, cause)
}

// CapabilityError creates an embedding/LLM/reranker call failure.
func CapabilityError(code string, message string, cause error) *SynapseError {
	return New(code, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *SynapseError {
	return New(ErrCodeInvalidInput, message, cause)
}

// IsNotFound reports whether err indicates a missing session or chunk.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a SynapseError with the Retryable flag set.
func IsRetryable(err error) bool {
	var se *SynapseError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// CategoryOf returns the category of an error, or CategoryInternal for
// plain errors.
func CategoryOf(err error) Category {
	var se *SynapseError
	if errors.As(err, &se) {
		return se.Category
	}
	return CategoryInternal
}
