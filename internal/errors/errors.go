// Package errors provides structured error types for the accesstrail pipeline.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline component.
type ErrorCategory string

const (
	ErrCategoryIngest    ErrorCategory = "INGEST"
	ErrCategoryPartition ErrorCategory = "PARTITION"
	ErrCategoryReport    ErrorCategory = "REPORT"
	ErrCategoryOutput    ErrorCategory = "OUTPUT"
	ErrCategoryStorage   ErrorCategory = "STORAGE"
	ErrCategoryManifest  ErrorCategory = "MANIFEST"
	ErrCategoryInternal  ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Ingest codes
	CodeMalformedRecord = "MALFORMED_RECORD"
	CodeEmptyInput      = "EMPTY_INPUT"
	CodeReadFailed      = "READ_FAILED"

	// Partition codes
	CodeStoreSealed = "STORE_SEALED"

	// Report codes
	CodeAggregationFailed = "AGGREGATION_FAILED"
	CodeUnknownReport     = "UNKNOWN_REPORT"

	// Output codes
	CodeWriteFailed = "WRITE_FAILED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Manifest codes
	CodeRegistrationFailed = "REGISTRATION_FAILED"
	CodeRunNotFound        = "RUN_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the system.
type PipelineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable.
// Only boundary I/O against remote storage is worth retrying; everything
// else is deterministic on the same input.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewIngestError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryIngest, code, message, cause)
}

func NewReportError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryReport, CodeAggregationFailed, message, cause)
}

func NewOutputError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryOutput, CodeWriteFailed, message, cause)
}

func NewStorageError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewManifestError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryManifest, CodeRegistrationFailed, message, cause)
}

func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
