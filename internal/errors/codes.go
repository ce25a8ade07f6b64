// Package errors provides structured error handling for bibdex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store errors (file, schema, locking)
//   - 3XX: Indexing errors
//   - 4XX: Query errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates index store errors (schema, disk, locking).
	CategoryStore Category = "STORE"
	// CategoryIndex indicates indexing pipeline errors.
	CategoryIndex Category = "INDEX"
	// CategoryQuery indicates query input errors.
	CategoryQuery Category = "QUERY"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Store errors (200-299)
	ErrCodeStoreUnavailable = "ERR_201_STORE_UNAVAILABLE"
	ErrCodeStoreBusy        = "ERR_202_STORE_BUSY"
	ErrCodeSchemaMismatch   = "ERR_203_SCHEMA_MISMATCH"
	ErrCodeIndexCorruption  = "ERR_204_INDEX_CORRUPTION"
	ErrCodeEntryNotFound    = "ERR_205_ENTRY_NOT_FOUND"

	// Indexing errors (300-399)
	ErrCodeDuplicateKeyInBatch = "ERR_301_DUPLICATE_KEY_IN_BATCH"
	ErrCodeBuildCancelled      = "ERR_302_BUILD_CANCELLED"
	ErrCodeSourceUnreadable    = "ERR_303_SOURCE_UNREADABLE"

	// Query errors (400-499)
	ErrCodeQuerySyntax       = "ERR_401_QUERY_SYNTAX"
	ErrCodeQueryEmpty        = "ERR_402_QUERY_EMPTY"
	ErrCodeQueryInvalidLimit = "ERR_403_QUERY_INVALID_LIMIT"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryIndex
	case '4':
		return CategoryQuery
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from error code.
// Corruption and schema mismatch abort the operation; everything else
// surfaces as a regular error the caller may handle.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreUnavailable, ErrCodeSchemaMismatch, ErrCodeIndexCorruption:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code
// may succeed on retry.
func isRetryableCode(code string) bool {
	return code == ErrCodeStoreBusy
}
