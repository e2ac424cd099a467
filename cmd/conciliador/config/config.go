// Package config translates CLI flag values into the configuration structs
// of the reconciliation pipeline.
package config

import (
	"fmt"

	"conciliador/internal/matcher"
	"conciliador/internal/parsers"
	"conciliador/internal/reconciler"
	"conciliador/internal/retention"
	"conciliador/internal/reporter"
	"conciliador/pkg/logger"

	"github.com/shopspring/decimal"
)

// ParseDocumentComparison maps a flag value to a document comparison mode.
func ParseDocumentComparison(s string) (matcher.DocumentComparison, error) {
	switch s {
	case "numeric":
		return matcher.DocumentNumeric, nil
	case "literal":
		return matcher.DocumentLiteral, nil
	default:
		return 0, fmt.Errorf("invalid document comparison %q (use numeric or literal)", s)
	}
}

// ParseTieBreak maps a flag value to a tie-break policy.
func ParseTieBreak(s string) (matcher.TieBreak, error) {
	switch s {
	case "first-found":
		return matcher.TieBreakFirstFound, nil
	case "closest-date":
		return matcher.TieBreakClosestDate, nil
	default:
		return 0, fmt.Errorf("invalid tie break %q (use first-found or closest-date)", s)
	}
}

// ParseDateMode maps a flag value to the value-only tier's date mode.
func ParseDateMode(s string) (matcher.DateMode, error) {
	switch s {
	case "same-day":
		return matcher.DateModeSameDay, nil
	case "missing-wildcard":
		return matcher.DateModeMissingWildcard, nil
	case "ignore":
		return matcher.DateModeIgnore, nil
	default:
		return 0, fmt.Errorf("invalid date mode %q (use same-day, missing-wildcard or ignore)", s)
	}
}

// MatchingOptions carries the matcher settings exposed as CLI flags.
type MatchingOptions struct {
	Tolerance   float64
	Documents   string
	TieBreak    string
	DateMode    string
	NoValueOnly bool
	NoGrouped   bool
}

// CreateMatchingConfig builds a matcher configuration from CLI options.
func CreateMatchingConfig(opts MatchingOptions) (*matcher.Config, error) {
	config := matcher.DefaultConfig()

	if opts.Tolerance > 0 {
		config.Tolerance = decimal.NewFromFloat(opts.Tolerance)
	}

	documents, err := ParseDocumentComparison(opts.Documents)
	if err != nil {
		return nil, err
	}
	config.Documents = documents

	tieBreak, err := ParseTieBreak(opts.TieBreak)
	if err != nil {
		return nil, err
	}
	config.TieBreak = tieBreak

	dateMode, err := ParseDateMode(opts.DateMode)
	if err != nil {
		return nil, err
	}
	config.ValueOnlyDates = dateMode

	config.EnableValueOnly = !opts.NoValueOnly
	config.EnableGrouped = !opts.NoGrouped

	return config, nil
}

// CreateStatementConfig builds the statement parser configuration. year
// completes day/month-only dates; zero keeps the current-year default.
func CreateStatementConfig(year int) *parsers.StatementConfig {
	config := parsers.DefaultStatementConfig()
	if year > 0 {
		config.DefaultYear = year
	}
	return config
}

// CreateServiceConfig assembles the pipeline configuration for the
// reconcile command.
func CreateServiceConfig(year int, matching *matcher.Config) *reconciler.Config {
	config := reconciler.DefaultConfig()
	config.Statement = CreateStatementConfig(year)
	config.Matching = matching
	return config
}

// RetentionOptions carries the retention settings exposed as CLI flags.
type RetentionOptions struct {
	UG            string
	AccountPrefix string
	CheckMonth    bool
	NoDateCheck   bool
	Tolerance     float64
}

// CreateRetentionConfig builds the retention reconciliation configuration.
func CreateRetentionConfig(opts RetentionOptions) *retention.Config {
	config := retention.DefaultConfig()
	config.UG = opts.UG
	config.AccountPrefix = opts.AccountPrefix
	config.CheckMonth = opts.CheckMonth
	config.RequirePaymentAfter = !opts.NoDateCheck
	if opts.Tolerance > 0 {
		config.Tolerance = decimal.NewFromFloat(opts.Tolerance)
	}
	return config
}

// CreateReportConfig builds a reporter configuration for the given format
// flag value.
func CreateReportConfig(format, title string) (*reporter.Config, error) {
	config := reporter.DefaultConfig()
	if title != "" {
		config.Title = title
	}

	f := reporter.Format(format)
	if !f.IsValid() {
		return nil, fmt.Errorf("invalid output format %q (use console, json, csv, html, xlsx or pdf)", format)
	}
	config.Format = f

	return config, nil
}

// LoggerConfig builds the logger configuration from the global CLI flags.
func LoggerConfig(verbose bool, format string) *logger.Config {
	config := logger.DefaultConfig()
	if verbose {
		config = logger.DebugConfig()
	}
	if format == "json" {
		config.Format = logger.JSONFormat
	}
	return config
}
