package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	e := New(CategoryValidation, CodeInvalidArgument, "bad input")
	if e.Error() != "bad input" {
		t.Errorf("Error() = %q, want bad input", e.Error())
	}

	cause := stderrors.New("boom")
	wrapped := Wrap(cause, CategoryStorage, CodeQueryFailed, "query failed")
	if !strings.Contains(wrapped.Error(), "boom") {
		t.Errorf("Wrapped error should include cause: %q", wrapped.Error())
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("errors.Is should see through the wrapper")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, CategoryStorage, CodeQueryFailed, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if WrapIfNeeded(nil, CategoryStorage, CodeQueryFailed, "x") != nil {
		t.Error("WrapIfNeeded(nil) should return nil")
	}
}

func TestWrapIfNeededKeepsTaxonomy(t *testing.T) {
	original := UnknownMachine("VM-999")
	rewrapped := WrapIfNeeded(original, CategoryStorage, CodeQueryFailed, "outer")
	if rewrapped.Code != CodeUnknownMachine {
		t.Errorf("WrapIfNeeded replaced the code: %s", rewrapped.Code)
	}

	plain := fmt.Errorf("plain failure")
	wrapped := WrapIfNeeded(plain, CategoryStorage, CodeQueryFailed, "outer")
	if wrapped.Code != CodeQueryFailed {
		t.Errorf("WrapIfNeeded should tag plain errors, got %s", wrapped.Code)
	}
}

func TestWithContext(t *testing.T) {
	e := New(CategoryValidation, CodeInvalidArgument, "bad").
		WithContext("field", "from").
		WithContext("value", 42)
	if e.Context["field"] != "from" || e.Context["value"] != 42 {
		t.Errorf("Context not recorded: %v", e.Context)
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		category Category
		want     int
	}{
		{CategoryValidation, 2},
		{CategoryData, 2},
		{CategoryConfiguration, 3},
		{CategoryStorage, 4},
		{CategoryReconciliation, 5},
		{CategoryNotification, 5},
		{CategoryExport, 5},
		{CategoryInternal, 1},
	}

	for _, tt := range tests {
		e := New(tt.category, CodeUnexpected, "x")
		if got := e.ExitCode(); got != tt.want {
			t.Errorf("ExitCode(%s) = %d, want %d", tt.category, got, tt.want)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"validation", ValidationError("from", "", "required"), http.StatusBadRequest},
		{"unknown machine", UnknownMachine("VM-999"), http.StatusNotFound},
		{"invalid range", InvalidDateRange("2026-02-01", "2026-01-01"), http.StatusBadRequest},
		{"data", ParseError("sales.csv", 3, fmt.Errorf("bad row")), http.StatusUnprocessableEntity},
		{"storage", StorageError(CodeQueryFailed, "list", fmt.Errorf("down")), http.StatusServiceUnavailable},
		{"internal", New(CategoryInternal, CodeUnexpected, "x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAs(t *testing.T) {
	e := UnknownMachine("VM-999")
	wrapped := fmt.Errorf("request failed: %w", e)

	extracted, ok := As(wrapped)
	if !ok {
		t.Fatal("As should extract the application error through wrapping")
	}
	if extracted.Code != CodeUnknownMachine {
		t.Errorf("Extracted code = %s, want unknown_machine", extracted.Code)
	}

	if _, ok := As(fmt.Errorf("plain")); ok {
		t.Error("As should fail for plain errors")
	}
}

func TestSummary(t *testing.T) {
	errs := []*Error{
		ParseError("sales.csv", 2, fmt.Errorf("bad amount")),
		ParseError("sales.csv", 5, fmt.Errorf("bad time")),
		ValidationError("from", "", "required"),
	}
	s := NewSummary(errs)

	if s.Total != 3 {
		t.Errorf("Total = %d, want 3", s.Total)
	}
	if s.ByCategory[CategoryData] != 2 || s.ByCategory[CategoryValidation] != 1 {
		t.Errorf("ByCategory = %v", s.ByCategory)
	}
	if !strings.Contains(s.Error(), "3 errors occurred") {
		t.Errorf("Summary message = %q", s.Error())
	}

	single := NewSummary(errs[:1])
	if !strings.Contains(single.Error(), "sales.csv") {
		t.Errorf("Single-error summary should use the error message: %q", single.Error())
	}
}
