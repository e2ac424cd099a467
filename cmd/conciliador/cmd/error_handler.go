package cmd

import (
	"fmt"
	"os"
	"strings"

	"conciliador/pkg/errors"
	"conciliador/pkg/logger"

	"github.com/spf13/viper"
)

// ErrorHandler turns pipeline errors into user-facing messages and process
// exit codes.
type ErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewErrorHandler creates an ErrorHandler bound to the global flags.
func NewErrorHandler() *ErrorHandler {
	return &ErrorHandler{
		logger:  logger.WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// Handle prints the error and returns the exit code for it.
func (h *ErrorHandler) Handle(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if e, ok := errors.As(err); ok {
		return h.handleTyped(e)
	}
	return h.handleGeneric(err)
}

func (h *ErrorHandler) handleTyped(err *errors.Error) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	if help := categoryHelp(err.Category); help != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", help)
	}

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.ExitCode()
}

func (h *ErrorHandler) handleGeneric(err error) int {
	if os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory") {
		fmt.Fprintf(os.Stderr, "Error: file not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: check if the file path is correct and the file exists\n")
		return 2
	}

	if os.IsPermission(err) || strings.Contains(err.Error(), "permission denied") {
		fmt.Fprintf(os.Stderr, "Error: permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: check file permissions and ensure you have read access\n")
		return 2
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(os.Stderr, "Run with --verbose for more detail\n")
	}
	return 1
}

func categoryHelp(category errors.Category) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Check that the statement is the bank's text export, one transaction per line
• Ledger exports must keep their original column positions
• Amounts use Brazilian notation (1.234,56) and dates are day-first`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required flags have values
• Dates use DD/MM/YYYY and amounts use Brazilian notation
• Use 'conciliador reconcile --help' to see all available options`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Try running with default settings first`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Check that statement and ledger cover the same account and period
• Try adjusting --tolerance or --date-mode
• Inspect the grouped rows in the report for systematic differences`

	default:
		return ""
	}
}
