package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the structured error type for catalogsearch.
// It carries enough context for logging, HTTP mapping and CLI presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_207_STORE_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the operator.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code, so sentinel-style checks work:
//
//	errors.Is(err, errors.StoreUnavailable)
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// Sentinels for errors.Is comparisons. Only the code is compared.
var (
	StoreUnavailable   = &Error{Code: ErrCodeStoreUnavailable}
	IndexWriteFailed   = &Error{Code: ErrCodeIndexFailed}
	InvalidInput       = &Error{Code: ErrCodeInvalidInput}
	NotFound           = &Error{Code: ErrCodeNotFound}
	CatalogUnavailable = &Error{Code: ErrCodeCatalogUnavailable}
)

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// StoreUnavailableError reports an index location that cannot be opened or provisioned.
func StoreUnavailableError(location string, cause error) *Error {
	return New(ErrCodeStoreUnavailable, fmt.Sprintf("index store unavailable at %q", location), cause).
		WithDetail("location", location).
		WithSuggestion("check directory permissions, stop other writers, or set index.recover_corrupt and reindex")
}

// IndexWriteFailedError reports a commit that did not apply. The store stays at its last commit.
func IndexWriteFailedError(op string, cause error) *Error {
	return New(ErrCodeIndexFailed, fmt.Sprintf("index %s failed", op), cause).
		WithDetail("op", op).
		WithSuggestion("the catalog may be ahead of the search index; run 'catalogsearch reindex'")
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *Error {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *Error {
	return New(ErrCodeInternal, message, cause)
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := As(err); ok {
		return e.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if e, ok := As(err); ok {
		return e.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code. Returns empty string if err carries no *Error.
func GetCode(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}
