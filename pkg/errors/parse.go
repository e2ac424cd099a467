package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RowError is a parse error pinned to one row of an input file. Recoverable
// row errors are collected and the row dropped; unrecoverable ones abort the
// run.
type RowError struct {
	Err         *Error `json:"error"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	LineContent string `json:"line_content,omitempty"`
	Recoverable bool   `json:"recoverable"`
}

// NewRowError creates a recoverable row-level parse error.
func NewRowError(code Code, file string, line int, value string, cause error) *RowError {
	return &RowError{
		Err:         ParseError(code, file, line, value, cause),
		File:        file,
		Line:        line,
		Recoverable: true,
	}
}

// WithLineContent attaches the raw line for diagnostics.
func (e *RowError) WithLineContent(content string) *RowError {
	e.LineContent = content
	return e
}

// Fatal marks the error as unrecoverable.
func (e *RowError) Fatal() *RowError {
	e.Recoverable = false
	return e
}

func (e *RowError) Error() string {
	location := filepath.Base(e.File)
	if e.Line > 0 {
		location = fmt.Sprintf("%s:%d", location, e.Line)
	}
	return fmt.Sprintf("%s at %s", e.Err.Error(), location)
}

// Unwrap exposes the underlying categorized error to errors.As chains.
func (e *RowError) Unwrap() error {
	return e.Err
}

// Detailed returns a multi-line description for terminal output.
func (e *RowError) Detailed() string {
	lines := []string{fmt.Sprintf("ERROR: %s", e.Err.Message)}

	lines = append(lines, fmt.Sprintf("  file: %s", e.File))
	if e.Line > 0 {
		lines = append(lines, fmt.Sprintf("  line: %d", e.Line))
	}
	if e.LineContent != "" {
		lines = append(lines, fmt.Sprintf("  content: %s", e.LineContent))
	}
	if e.Err.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  suggestion: %s", e.Err.Suggestion))
	}

	return strings.Join(lines, "\n")
}
