// Package errors defines the application error taxonomy: categorized,
// coded errors carrying a suggestion for the operator and a context map,
// with stack traces captured at creation.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category groups errors by the subsystem that produced them.
type Category string

const (
	CategoryFile           Category = "file"
	CategoryParse          Category = "parse"
	CategoryValidation     Category = "validation"
	CategoryConfiguration  Category = "configuration"
	CategoryReconciliation Category = "reconciliation"
	CategoryInternal       Category = "internal"
)

// Code identifies a specific failure within a category.
type Code string

const (
	// File errors
	CodeFileNotFound      Code = "file_not_found"
	CodeFilePermission    Code = "file_permission"
	CodeFileCorrupted     Code = "file_corrupted"
	CodeUnsupportedFormat Code = "unsupported_format"

	// Parse errors
	CodeInvalidFormat Code = "invalid_format"
	CodeMissingColumn Code = "missing_column"
	CodeInvalidData   Code = "invalid_data"
	CodeEncodingError Code = "encoding_error"

	// Validation errors
	CodeInvalidAmount Code = "invalid_amount"
	CodeInvalidDate   Code = "invalid_date"
	CodeMissingField  Code = "missing_field"
	CodeInvalidSide   Code = "invalid_side"

	// Configuration errors
	CodeInvalidConfig Code = "invalid_config"
	CodeMissingConfig Code = "missing_config"

	// Reconciliation errors
	CodeMatchingFailed   Code = "matching_failed"
	CodeDataInconsistent Code = "data_inconsistent"

	// Internal errors
	CodeUnexpectedError Code = "unexpected_error"
)

// Error is the base error type for all application errors.
type Error struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error.
type Context map[string]interface{}

func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode maps the error category to the process exit code.
func (e *Error) ExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// stackTracer extracts stack traces from github.com/pkg/errors values.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New creates a new Error with a stack trace captured here.
func New(category Category, code Code, message string) *Error {
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with category and code context.
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

// FileError creates a file-access error for the given path.
func FileError(code Code, path string, err error) *Error {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file appears to be corrupted: %s", path)
		suggestion = "re-export the file from the source system and try again"
	case CodeUnsupportedFormat:
		message = fmt.Sprintf("unsupported file format: %s", path)
		suggestion = "supported ledger formats are .xlsx, .xls and .csv"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	result := wrapOrNew(err, CategoryFile, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing error located at a line of an input file.
func ParseError(code Code, file string, line int, value string, err error) *Error {
	var message, suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in %s at line %d: '%s'", file, line, value)
		suggestion = "check the line against the expected statement layout"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing expected column in %s at line %d", file, line)
		suggestion = "verify the export uses the standard column layout"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in %s at line %d: '%s'", file, line, value)
		suggestion = "correct the value or remove the row from the export"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in %s at line %d", file, line)
		suggestion = "save the file as UTF-8 or ISO8859-1 and try again"
	default:
		message = fmt.Sprintf("parse error in %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	result := wrapOrNew(err, CategoryParse, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("value", value)
}

// ValidationError creates a record-level validation error.
func ValidationError(code Code, field string, value interface{}, err error) *Error {
	var message, suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "amounts use the Brazilian decimal format, e.g. '1.234,56'"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "dates are day-first, e.g. '25/03/2024' or '25/03'"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeInvalidSide:
		message = fmt.Sprintf("invalid transaction side in field '%s': %v", field, value)
		suggestion = "transaction side must be statement or ledger"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	result := wrapOrNew(err, CategoryValidation, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration error for the given setting.
func ConfigurationError(code Code, setting string, value interface{}, err error) *Error {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting via flag, environment or config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	result := wrapOrNew(err, CategoryConfiguration, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ReconciliationError creates an error for a failed reconciliation stage.
func ReconciliationError(code Code, operation string, err error) *Error {
	var message, suggestion string

	switch code {
	case CodeMatchingFailed:
		message = fmt.Sprintf("matching failed during %s", operation)
		suggestion = "try adjusting the tolerance or check input data quality"
	case CodeDataInconsistent:
		message = fmt.Sprintf("data inconsistency detected during %s", operation)
		suggestion = "verify both inputs cover the same account and period"
	default:
		message = fmt.Sprintf("reconciliation error during %s", operation)
		suggestion = "review the data and configuration"
	}

	result := wrapOrNew(err, CategoryReconciliation, code, message)
	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// InternalError creates an error for an unexpected internal failure.
func InternalError(operation string, err error) *Error {
	message := fmt.Sprintf("unexpected error during %s", operation)

	result := wrapOrNew(err, CategoryInternal, CodeUnexpectedError, message)
	return result.
		WithSuggestion("this is likely a bug, please report it with the error details").
		WithContext("operation", operation)
}

func wrapOrNew(err error, category Category, code Code, message string) *Error {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// Summary aggregates multiple errors from one run, typically row-level
// extraction failures collected while parsing continues.
type Summary struct {
	Total      int              `json:"total"`
	ByCategory map[Category]int `json:"by_category"`
	ByCode     map[Code]int     `json:"by_code"`
	Errors     []*Error         `json:"errors"`
}

// NewSummary creates a summary over the given errors.
func NewSummary(errs []*Error) *Summary {
	summary := &Summary{
		Total:      len(errs),
		ByCategory: make(map[Category]int),
		ByCode:     make(map[Code]int),
		Errors:     errs,
	}
	if errs == nil {
		summary.Errors = []*Error{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

func (s *Summary) Error() string {
	if s.Total == 0 {
		return "no errors"
	}
	if s.Total == 1 {
		return s.Errors[0].Error()
	}

	var categories []string
	for category, count := range s.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", s.Total, strings.Join(categories, ", "))
}

// HasCategory reports whether the summary contains errors of the category.
func (s *Summary) HasCategory(category Category) bool {
	return s.ByCategory[category] > 0
}

// ExitCode returns the highest exit code among the collected errors.
func (s *Summary) ExitCode() int {
	if s.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range s.Errors {
		if code := err.ExitCode(); code > maxCode {
			maxCode = code
		}
	}
	return maxCode
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps err unless it already is an *Error.
func WrapIfNeeded(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Wrap(err, category, code, message)
}
