package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestPipelineError_Error(t *testing.T) {
	err := New(ErrCategoryOutput, CodeWriteFailed, "write failed")
	expected := "[OUTPUT:WRITE_FAILED] write failed"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPipelineError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(ErrCategoryOutput, CodeWriteFailed, "write failed", cause)
	expected := "[OUTPUT:WRITE_FAILED] write failed: disk full"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPipelineError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryManifest, CodeRegistrationFailed, "insert failed", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestPipelineError_Is(t *testing.T) {
	err1 := New(ErrCategoryStorage, CodeUploadFailed, "first")
	err2 := New(ErrCategoryStorage, CodeUploadFailed, "second")
	err3 := New(ErrCategoryStorage, CodeDownloadFailed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryStorage, CodeDownloadFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryIngest, CodeMalformedRecord, false},
		{ErrCategoryReport, CodeAggregationFailed, false},
		{ErrCategoryOutput, CodeWriteFailed, false},
		{ErrCategoryManifest, CodeRegistrationFailed, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategoryReport, CodeAggregationFailed, "bad report")
	if GetCategory(err) != ErrCategoryReport {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryReport)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-PipelineError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategoryIngest, CodeMalformedRecord, "bad line")
	if GetCode(err) != CodeMalformedRecord {
		t.Errorf("got %q, want %q", GetCode(err), CodeMalformedRecord)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-PipelineError should return empty code")
	}
}
