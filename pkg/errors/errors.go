// Package errors defines the error taxonomy shared by the reconciliation
// engine, its storage collaborators and the CLI/HTTP boundaries.
//
// Errors carry a category (what kind of failure), a code (which specific
// failure) and optional context. Callers decide presentation: the CLI maps
// categories to exit codes, the HTTP server maps them to status codes.
package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Category represents different categories of errors
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryData           Category = "data"
	CategoryStorage        Category = "storage"
	CategoryConfiguration  Category = "configuration"
	CategoryReconciliation Category = "reconciliation"
	CategoryNotification   Category = "notification"
	CategoryExport         Category = "export"
	CategoryInternal       Category = "internal"
)

// Code represents specific error codes within categories
type Code string

const (
	// Validation errors (caller-correctable)
	CodeInvalidDateRange Code = "invalid_date_range"
	CodeUnknownMachine   Code = "unknown_machine"
	CodeInvalidArgument  Code = "invalid_argument"

	// Data errors
	CodeInvalidRecord Code = "invalid_record"
	CodeParseFailure  Code = "parse_failure"

	// Storage errors (collaborator failures, propagated)
	CodeQueryFailed  Code = "query_failed"
	CodeUnavailable  Code = "unavailable"
	CodeWriteFailed  Code = "write_failed"

	// Configuration errors
	CodeInvalidConfig Code = "invalid_config"
	CodeMissingConfig Code = "missing_config"

	// Reconciliation errors
	CodeComputeFailed Code = "compute_failed"

	// Notification / export errors
	CodeDeliveryFailed Code = "delivery_failed"
	CodeRenderFailed   Code = "render_failed"

	// Internal errors
	CodeUnexpected Code = "unexpected_error"
)

// Error is the base error type for all application errors
type Error struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// ExitCode returns an appropriate process exit code for the error
func (e *Error) ExitCode() int {
	switch e.Category {
	case CategoryValidation, CategoryData:
		return 2
	case CategoryConfiguration:
		return 3
	case CategoryStorage:
		return 4
	case CategoryReconciliation, CategoryNotification, CategoryExport:
		return 5
	default:
		return 1
	}
}

// HTTPStatus returns the HTTP status code the server boundary should use
func (e *Error) HTTPStatus() int {
	switch e.Category {
	case CategoryValidation:
		if e.Code == CodeUnknownMachine {
			return http.StatusNotFound
		}
		return http.StatusBadRequest
	case CategoryData:
		return http.StatusUnprocessableEntity
	case CategoryStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New creates a new Error
func New(category Category, code Code, message string) *Error {
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with category and code context
func Wrap(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// InvalidDateRange creates the validation error for from > to requests
func InvalidDateRange(from, to string) *Error {
	return New(CategoryValidation, CodeInvalidDateRange,
		fmt.Sprintf("invalid date range: from %s is after to %s", from, to)).
		WithContext("from", from).
		WithContext("to", to)
}

// UnknownMachine creates the validation error for an unresolvable machine code
func UnknownMachine(code string) *Error {
	return New(CategoryValidation, CodeUnknownMachine,
		fmt.Sprintf("unknown machine code: %s", code)).
		WithContext("machine_code", code)
}

// ValidationError creates a generic caller-correctable error
func ValidationError(field string, value interface{}, reason string) *Error {
	return New(CategoryValidation, CodeInvalidArgument,
		fmt.Sprintf("invalid %s %v: %s", field, value, reason)).
		WithContext("field", field).
		WithContext("value", value)
}

// StorageError wraps a failed read or write against the settings/record stores
func StorageError(code Code, operation string, err error) *Error {
	return Wrap(err, CategoryStorage, code,
		fmt.Sprintf("storage failure during %s", operation)).
		WithContext("operation", operation)
}

// ParseError wraps a snapshot file parse failure
func ParseError(file string, line int, err error) *Error {
	return Wrap(err, CategoryData, CodeParseFailure,
		fmt.Sprintf("parse failure in %s at line %d", file, line)).
		WithContext("file", file).
		WithContext("line", line)
}

// NotificationError wraps a failed alert delivery
func NotificationError(endpoint string, err error) *Error {
	return Wrap(err, CategoryNotification, CodeDeliveryFailed,
		fmt.Sprintf("alert delivery to %s failed", endpoint)).
		WithContext("endpoint", endpoint)
}

// ExportError wraps a failed workbook render
func ExportError(operation string, err error) *Error {
	return Wrap(err, CategoryExport, CodeRenderFailed,
		fmt.Sprintf("export failure during %s", operation)).
		WithContext("operation", operation)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code Code, setting string, value interface{}) *Error {
	return New(CategoryConfiguration, code,
		fmt.Sprintf("invalid configuration for '%s': %v", setting, value)).
		WithContext("setting", setting).
		WithContext("value", value)
}

// Utility functions

// Is checks if an error is an application Error
func Is(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// As extracts an application Error from an error chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error unless it already carries a taxonomy
func WrapIfNeeded(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return Wrap(err, category, code, message)
}

// Summary aggregates several errors for batch operations such as
// snapshot file loading
type Summary struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
	Errors     []*Error         `json:"errors"`
}

// NewSummary builds a Summary from a list of errors
func NewSummary(errs []*Error) *Summary {
	s := &Summary{
		Total:      len(errs),
		ByCategory: make(map[Category]int),
		Errors:     errs,
	}
	for _, e := range errs {
		s.ByCategory[e.Category]++
	}
	return s
}

// Error returns a formatted message for the summary
func (s *Summary) Error() string {
	if s.Total == 0 {
		return "no errors"
	}
	if s.Total == 1 {
		return s.Errors[0].Error()
	}
	var parts []string
	for category, count := range s.ByCategory {
		parts = append(parts, fmt.Sprintf("%s: %d", category, count))
	}
	return fmt.Sprintf("%d errors occurred (%s)", s.Total, strings.Join(parts, ", "))
}
