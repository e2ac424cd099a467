// Package reporter renders reconciliation results for people: console tables
// for the terminal, JSON and CSV for downstream tooling, XLSX and PDF for the
// accountants the reports are ultimately for.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"conciliador/internal/matcher"
	"conciliador/internal/models"
	"conciliador/internal/reconciler"
	"conciliador/internal/retention"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"

	"github.com/shopspring/decimal"
)

// Format selects the report output format.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatHTML    Format = "html"
	FormatXLSX    Format = "xlsx"
	FormatPDF     Format = "pdf"
)

// IsValid reports whether the format is supported.
func (f Format) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatHTML, FormatXLSX, FormatPDF:
		return true
	default:
		return false
	}
}

// FormatForPath infers the output format from a file extension, defaulting
// to CSV for unknown extensions.
func FormatForPath(path string) Format {
	switch filepath.Ext(path) {
	case ".json":
		return FormatJSON
	case ".html", ".htm":
		return FormatHTML
	case ".xlsx":
		return FormatXLSX
	case ".pdf":
		return FormatPDF
	default:
		return FormatCSV
	}
}

// Config controls report rendering.
type Config struct {
	Format Format `json:"format"`

	// Title heads the XLSX sheet and the PDF page.
	Title string `json:"title"`

	// HighlightTolerance marks rows whose absolute difference reaches it.
	// Zero disables highlighting.
	HighlightTolerance decimal.Decimal `json:"highlight_tolerance"`

	// CSVDelimiter defaults to the semicolon Brazilian spreadsheets expect.
	CSVDelimiter rune `json:"csv_delimiter"`
}

// DefaultConfig returns the report defaults.
func DefaultConfig() *Config {
	return &Config{
		Format:             FormatConsole,
		Title:              "Bank Reconciliation",
		HighlightTolerance: decimal.NewFromFloat(0.01),
		CSVDelimiter:       ';',
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "format", string(c.Format), nil).
			WithSuggestion("Use console, json, csv, html, xlsx or pdf")
	}
	if c.CSVDelimiter == 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "csv_delimiter", c.CSVDelimiter, nil)
	}
	return nil
}

// Generator renders reconciliation, retention and fee reports.
type Generator struct {
	config *Config
	log    logger.Logger
}

// NewGenerator creates a Generator, falling back to DefaultConfig when nil.
func NewGenerator(config *Config) (*Generator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Generator{
		config: config,
		log:    logger.WithComponent("reporter"),
	}, nil
}

// highlight reports whether a difference crosses the highlight tolerance.
func (g *Generator) highlight(difference decimal.Decimal) bool {
	if g.config.HighlightTolerance.IsZero() {
		return false
	}
	return difference.Abs().GreaterThanOrEqual(g.config.HighlightTolerance)
}

// Generate renders a statement reconciliation result in the configured
// format.
func (g *Generator) Generate(result *reconciler.Result, w io.Writer) error {
	if result == nil || result.Match == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil, nil)
	}

	rows := BuildRows(result.Match)

	switch g.config.Format {
	case FormatConsole:
		return g.writeConsole(result, rows, w)
	case FormatJSON:
		return writeJSON(w, map[string]interface{}{
			"summary":           result.Match.Summary,
			"rows":              rows,
			"cancelled_returns": result.CancelledReturns,
			"processed_at":      result.ProcessedAt,
		})
	case FormatCSV:
		return g.writeCSV(rows, w)
	case FormatHTML:
		return g.writeHTML(reconciliationTable(rows, g.highlightFlags(rows)), w)
	case FormatXLSX:
		return g.writeWorkbook(reconciliationTable(rows, g.highlightFlags(rows)), w)
	case FormatPDF:
		return g.writePDF(reconciliationTable(rows, g.highlightFlags(rows)), w)
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "format", string(g.config.Format), nil)
	}
}

// WriteFile renders the result into a file, inferring the format from the
// extension when the configured format is console.
func (g *Generator) WriteFile(result *reconciler.Result, path string) error {
	generator := g
	if g.config.Format == FormatConsole {
		config := *g.config
		config.Format = FormatForPath(path)
		generator = &Generator{config: &config, log: g.log}
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err).
			WithSuggestion("Check that the output directory exists and is writable")
	}
	defer f.Close()

	if err := generator.Generate(result, f); err != nil {
		return err
	}

	g.log.WithFields(logger.Fields{
		"path":   path,
		"format": generator.config.Format,
	}).Info("Report written")
	return nil
}

func (g *Generator) highlightFlags(rows []Row) []bool {
	flags := make([]bool, len(rows))
	for i, row := range rows {
		flags[i] = g.highlight(row.Difference)
	}
	return flags
}

func (g *Generator) writeConsole(result *reconciler.Result, rows []Row, w io.Writer) error {
	summary := result.Match.Summary

	fmt.Fprintf(w, "%s\n", g.config.Title)
	fmt.Fprintf(w, "Generated: %s\n\n", result.ProcessedAt.Format(time.RFC3339))

	fmt.Fprintf(w, "Statement entries: %d (total %s)\n",
		summary.StatementCount, models.FormatBRAmount(summary.StatementTotal))
	fmt.Fprintf(w, "Ledger entries:    %d (total %s)\n",
		summary.LedgerCount, models.FormatBRAmount(summary.LedgerTotal))
	fmt.Fprintf(w, "Exact matches:     %d\n", summary.ExactMatches)
	fmt.Fprintf(w, "Value matches:     %d\n", summary.ValueOnlyMatches)
	fmt.Fprintf(w, "Grouped rows:      %d (%d balanced)\n",
		summary.GroupedRowCount, summary.BalancedGroups)
	if result.CancelledReturns > 0 {
		fmt.Fprintf(w, "Cancelled returns: %d\n", result.CancelledReturns)
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "%-10s  %-20s  %14s  %14s  %12s  %s\n",
		"Date", "Document", "Statement", "Ledger", "Difference", "Status")
	for _, row := range rows {
		marker := " "
		if g.highlight(row.Difference) {
			marker = "!"
		}
		fmt.Fprintf(w, "%-10s  %-20s  %14s  %14s  %12s %s %s\n",
			formatDate(row.Date),
			truncate(row.DocumentCode, 20),
			models.FormatBRAmount(row.Statement),
			models.FormatBRAmount(row.Ledger),
			models.FormatBRAmount(row.Difference),
			marker,
			row.Status)
	}

	statement, ledger, difference := Totals(rows)
	fmt.Fprintf(w, "%-10s  %-20s  %14s  %14s  %12s\n",
		"", "TOTAL",
		models.FormatBRAmount(statement),
		models.FormatBRAmount(ledger),
		models.FormatBRAmount(difference))

	return nil
}

func (g *Generator) writeCSV(rows []Row, w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = g.config.CSVDelimiter
	defer cw.Flush()

	if err := cw.Write([]string{"date", "document", "statement", "ledger", "difference", "status"}); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			formatDate(row.Date),
			row.DocumentCode,
			row.Statement.StringFixed(2),
			row.Ledger.StringFixed(2),
			row.Difference.StringFixed(2),
			string(row.Status),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	statement, ledger, difference := Totals(rows)
	if err := cw.Write([]string{
		"", "TOTAL",
		statement.StringFixed(2),
		ledger.StringFixed(2),
		difference.StringFixed(2),
		"",
	}); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// GenerateRetention renders a retention reconciliation result.
func (g *Generator) GenerateRetention(result *reconciler.RetentionResult, w io.Writer) error {
	if result == nil || result.Retention == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil, nil)
	}

	switch g.config.Format {
	case FormatConsole:
		return g.writeRetentionConsole(result, w)
	case FormatJSON:
		return writeJSON(w, result.Retention)
	case FormatCSV:
		return g.writeRetentionCSV(result.Retention, w)
	case FormatHTML:
		return g.writeHTML(retentionTable(result.Retention), w)
	case FormatXLSX:
		return g.writeWorkbook(retentionTable(result.Retention), w)
	case FormatPDF:
		return g.writePDF(retentionTable(result.Retention), w)
	default:
		return errors.ConfigurationError(errors.CodeInvalidConfig, "format", string(g.config.Format), nil)
	}
}

func (g *Generator) writeRetentionConsole(result *reconciler.RetentionResult, w io.Writer) error {
	summary := result.Retention.Summary

	fmt.Fprintf(w, "%s\n", g.config.Title)
	fmt.Fprintf(w, "Generated: %s\n\n", result.ProcessedAt.Format(time.RFC3339))

	fmt.Fprintf(w, "Reconciled:               %d\n", summary.Reconciled)
	fmt.Fprintf(w, "Retained without payment: %d\n", summary.PendingPayment)
	fmt.Fprintf(w, "Paid without retention:   %d\n", summary.Unretained)
	fmt.Fprintf(w, "Total retained:           %s\n", models.FormatBRAmount(summary.TotalRetained))
	fmt.Fprintf(w, "Total paid:               %s\n", models.FormatBRAmount(summary.TotalPaid))
	fmt.Fprintf(w, "Balance:                  %s\n\n", models.FormatBRAmount(summary.Balance))

	fmt.Fprintf(w, "%-14s  %-10s  %14s  %-10s  %14s  %12s  %s\n",
		"Commitment", "Retained", "Amount", "Paid", "Amount", "Difference", "Status")
	for _, row := range result.Retention.Rows {
		fmt.Fprintf(w, "%-14s  %-10s  %14s  %-10s  %14s  %12s  %s\n",
			truncate(row.Commitment, 14),
			formatDate(row.RetentionDate),
			models.FormatBRAmount(row.Retained),
			formatDate(row.PaymentDate),
			models.FormatBRAmount(row.Paid),
			models.FormatBRAmount(row.Difference),
			row.Status)
	}

	return nil
}

func (g *Generator) writeRetentionCSV(result *retention.Result, w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = g.config.CSVDelimiter
	defer cw.Flush()

	header := []string{
		"commitment", "retention_date", "retained",
		"payment_date", "paid", "difference", "status",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range result.Rows {
		record := []string{
			row.Commitment,
			formatDate(row.RetentionDate),
			row.Retained.StringFixed(2),
			formatDate(row.PaymentDate),
			row.Paid.StringFixed(2),
			row.Difference.StringFixed(2),
			string(row.Status),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// GenerateFees renders a fee extraction result.
func (g *Generator) GenerateFees(result *reconciler.FeesResult, w io.Writer) error {
	if result == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil, nil)
	}

	switch g.config.Format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatHTML:
		return g.writeHTML(feesTable(result), w)
	case FormatXLSX:
		return g.writeWorkbook(feesTable(result), w)
	case FormatPDF:
		return g.writePDF(feesTable(result), w)
	case FormatCSV:
		cw := csv.NewWriter(w)
		cw.Comma = g.config.CSVDelimiter
		if err := cw.Write([]string{"date", "description", "amount"}); err != nil {
			return err
		}
		for _, fee := range result.Fees {
			if err := cw.Write([]string{
				formatDate(fee.Date), fee.Description, fee.Amount.StringFixed(2),
			}); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{"", "TOTAL", result.Total.StringFixed(2)}); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	default:
		fmt.Fprintf(w, "Bank fees: %d entries, total %s\n\n",
			len(result.Fees), models.FormatBRAmount(result.Total))
		for _, group := range matcher.GroupByDay(result.Fees) {
			for _, fee := range group.Members {
				fmt.Fprintf(w, "%-10s  %14s  %s\n",
					formatDate(fee.Date), models.FormatBRAmount(fee.Amount), fee.Description)
			}
			fmt.Fprintf(w, "%-10s  %14s  day total\n",
				formatDate(group.Key.Date), models.FormatBRAmount(group.Total))
		}
		return nil
	}
}

func writeJSON(w io.Writer, payload interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
