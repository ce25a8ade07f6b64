package errors

import (
	"fmt"
)

// BibError is the structured error type for bibdex.
// It provides rich context for error handling, logging, and user presentation.
type BibError struct {
	// Code is the unique error code (e.g., "ERR_202_STORE_BUSY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Index, Query, Internal).
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
func (e *BibError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *BibError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with BibError.
func (e *BibError) Is(target error) bool {
	if t, ok := target.(*BibError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *BibError) WithDetail(key, value string) *BibError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *BibError) WithSuggestion(suggestion string) *BibError {
	e.Suggestion = suggestion
	return e
}

// New creates a new BibError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *BibError {
	return &BibError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a BibError from an existing error.
// The error's message becomes the BibError message.
func Wrap(code string, err error) *BibError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// StoreUnavailable creates an error for an unopenable or unwritable store.
func StoreUnavailable(message string, cause error) *BibError {
	return New(ErrCodeStoreUnavailable, message, cause).
		WithSuggestion("check the database path is writable, or run 'bibdex index' to create a fresh index")
}

// StoreBusy creates an error for writer-lock acquisition timeout.
// These errors are retryable.
func StoreBusy(message string, cause error) *BibError {
	return New(ErrCodeStoreBusy, message, cause).
		WithSuggestion("another bibdex process is writing; retry in a moment")
}

// SchemaMismatch creates an error for an incompatible on-disk schema version.
func SchemaMismatch(have, want int) *BibError {
	return New(ErrCodeSchemaMismatch,
		fmt.Sprintf("store schema version %d is incompatible with expected version %d", have, want), nil).
		WithDetail("have", fmt.Sprintf("%d", have)).
		WithDetail("want", fmt.Sprintf("%d", want)).
		WithSuggestion("run 'bibdex index' to rebuild the store with the current schema")
}

// IndexCorruption creates an error for entries/shadow table drift.
func IndexCorruption(message string) *BibError {
	return New(ErrCodeIndexCorruption, message, nil).
		WithSuggestion("run 'bibdex check --rebuild' to rebuild the full-text table from stored entries")
}

// DuplicateKeyInBatch creates an error for duplicate citation keys in one load.
func DuplicateKeyInBatch(key, firstFile, secondFile string) *BibError {
	return New(ErrCodeDuplicateKeyInBatch,
		fmt.Sprintf("duplicate citation key %q in load batch", key), nil).
		WithDetail("key", key).
		WithDetail("first_file", firstFile).
		WithDetail("second_file", secondFile).
		WithSuggestion("deduplicate the key in the source .bib files, then reindex")
}

// QuerySyntax creates an error for malformed query input.
// The offending substring and its byte position are carried as details.
func QuerySyntax(message, fragment string, pos int) *BibError {
	return New(ErrCodeQuerySyntax, message, nil).
		WithDetail("fragment", fragment).
		WithDetail("position", fmt.Sprintf("%d", pos)).
		WithSuggestion("fix the query syntax; see 'bibdex search --help' for the grammar")
}

// QueryEmpty creates an error for an empty query string.
func QueryEmpty() *BibError {
	return New(ErrCodeQueryEmpty, "query string is empty", nil).
		WithSuggestion("provide at least one search term")
}

// QueryInvalidLimit creates an error for a non-positive result limit.
func QueryInvalidLimit(limit int) *BibError {
	return New(ErrCodeQueryInvalidLimit,
		fmt.Sprintf("result limit must be positive, got %d", limit), nil).
		WithDetail("limit", fmt.Sprintf("%d", limit)).
		WithSuggestion("pass a limit of 1 or more")
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *BibError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a BibError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if be, ok := err.(*BibError); ok {
		return be.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if be, ok := err.(*BibError); ok {
		return be.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a BibError.
// Returns empty string if not a BibError.
func GetCode(err error) string {
	if be, ok := err.(*BibError); ok {
		return be.Code
	}
	return ""
}

// GetCategory extracts the category from a BibError.
// Returns empty string if not a BibError.
func GetCategory(err error) Category {
	if be, ok := err.(*BibError); ok {
		return be.Category
	}
	return ""
}
