package parsers

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"conciliador/internal/models"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"

	"github.com/shopspring/decimal"
)

// Document codes synthesized when inference cannot name a real document.
const (
	// DocumentMissingDate marks ledger rows whose date never appears on the
	// statement side.
	DocumentMissingDate = "N/A"

	// DocumentNotFound marks ledger rows whose history references no
	// document known to the statement for that date.
	DocumentNotFound = "NOT FOUND"
)

// LedgerRow is one raw row of a general-ledger export, mapped through a
// LedgerLayout. It keeps every column the downstream consumers need;
// retention reconciliation reads commitment and account, bank
// reconciliation only type, history and the basics.
type LedgerRow struct {
	Line        int             `json:"line"`
	UG          string          `json:"ug,omitempty"`
	Entry       string          `json:"entry,omitempty"`
	Date        time.Time       `json:"date"`
	DebitCredit string          `json:"debit_credit"`
	Account     string          `json:"account,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Commitment  string          `json:"commitment,omitempty"`
	Type        string          `json:"type"`
	History     string          `json:"history"`
}

// IsDebit reports whether the row is on the debit side.
func (r LedgerRow) IsDebit() bool {
	return r.DebitCredit == "D"
}

// IsCredit reports whether the row is on the credit side.
func (r LedgerRow) IsCredit() bool {
	return r.DebitCredit == "C"
}

// LedgerParser reads general-ledger exports in xlsx, legacy xls or Latin-1
// csv form, mapping positional columns through the configured layout.
type LedgerParser struct {
	config *LedgerConfig
	log    logger.Logger
}

// NewLedgerParser creates a ledger parser, falling back to
// DefaultLedgerConfig when nil.
func NewLedgerParser(config *LedgerConfig) (*LedgerParser, error) {
	if config == nil {
		config = DefaultLedgerConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "ledger_parser", config, err)
	}

	return &LedgerParser{
		config: config,
		log:    logger.WithComponent("ledger_parser"),
	}, nil
}

// Config returns the active configuration.
func (p *LedgerParser) Config() *LedgerConfig {
	return p.config
}

// ParseFile reads every row of a ledger export. Rows without a parseable
// amount are dropped and counted; rows without a parseable date are kept
// with a zero date, since retention payments legitimately lack one.
func (p *LedgerParser) ParseFile(ctx context.Context, path string) ([]LedgerRow, *ParseStats, error) {
	data, err := readFile(path, p.log)
	if err != nil {
		return nil, nil, err
	}

	var cells [][]string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		cells, err = readCSVRows(path, data)
	case ".xlsx", ".xls", "":
		cells, err = readWorkbookRows(path, data)
	default:
		return nil, nil, errors.FileError(errors.CodeUnsupportedFormat, path, nil)
	}
	if err != nil {
		return nil, nil, err
	}

	return p.mapRows(ctx, path, cells)
}

func (p *LedgerParser) mapRows(ctx context.Context, path string, cells [][]string) ([]LedgerRow, *ParseStats, error) {
	layout := p.config.Layout
	stats := &ParseStats{}
	rows := make([]LedgerRow, 0, len(cells))

	for i, raw := range cells {
		if i%256 == 0 {
			if err := checkContext(ctx); err != nil {
				return nil, stats, err
			}
		}

		if isEmptyRow(raw) {
			continue
		}
		stats.TotalRows++
		lineNo := i + 1

		amountStr := cell(raw, layout.Amount)
		amount, err := models.ParseBRAmount(amountStr)
		if err != nil {
			stats.AddRowError(errors.NewRowError(errors.CodeInvalidData, path, lineNo, amountStr, err))
			continue
		}

		date := time.Time{}
		if dateStr := cell(raw, layout.Date); dateStr != "" {
			if parsed, err := models.ParseBRDate(dateStr, 0); err == nil {
				date = parsed
			}
		}

		history := cell(raw, layout.History)
		if history == "" {
			history = cell(raw, layout.AltHistory)
		}

		rows = append(rows, LedgerRow{
			Line:        lineNo,
			UG:          cell(raw, layout.UG),
			Entry:       cell(raw, layout.Entry),
			Date:        date,
			DebitCredit: normalizeDC(cell(raw, layout.DebitCredit)),
			Account:     cell(raw, layout.Account),
			Amount:      amount.Abs(),
			Commitment:  cell(raw, layout.Commitment),
			Type:        cell(raw, layout.Type),
			History:     history,
		})
		stats.Parsed++
	}

	p.log.WithFields(logger.Fields{
		"source":  path,
		"total":   stats.TotalRows,
		"parsed":  stats.Parsed,
		"dropped": stats.Dropped,
	}).Info("Parsed ledger export")

	return rows, stats, nil
}

// Transactions filters the reconciliation-relevant rows (payments, plus
// same-entity transfer credits) and converts them to transactions, with
// document codes inferred against the statement side.
func (p *LedgerParser) Transactions(rows []LedgerRow, lookup *DocumentLookup) []*models.Transaction {
	out := make([]*models.Transaction, 0, len(rows))
	excluded := 0

	for _, row := range rows {
		if !p.isReconciliationRow(row) {
			excluded++
			continue
		}
		if row.Date.IsZero() {
			// Dateless payment rows cannot join a dated statement line.
			excluded++
			continue
		}

		document := ""
		if lookup != nil {
			document = lookup.Infer(row.Date, row.History)
		}

		out = append(out, models.NewTransaction(
			row.Date, row.History, document, row.Amount, models.SideLedger))
	}

	p.log.WithFields(logger.Fields{
		"kept":     len(out),
		"excluded": excluded,
	}).Debug("Filtered ledger rows for reconciliation")

	return out
}

func (p *LedgerParser) isReconciliationRow(row LedgerRow) bool {
	rowType := strings.ToUpper(row.Type)
	if strings.Contains(rowType, strings.ToUpper(p.config.PaymentTerm)) {
		return true
	}
	if p.config.TransferTerm != "" &&
		strings.Contains(rowType, strings.ToUpper(p.config.TransferTerm)) &&
		row.IsCredit() {
		return true
	}
	return false
}

func normalizeDC(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	return s[:1]
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var digitRunRe = regexp.MustCompile(`\d+`)

// DocumentLookup infers ledger document codes from the statement side: the
// statement's documents are indexed per date, and a ledger history names a
// document by containing its digits.
type DocumentLookup struct {
	feeTerm  string
	feeLabel string
	byDate   map[string]map[string]string
	feeDates map[string]bool
}

// NewDocumentLookup indexes the statement transactions' document codes by
// date. feeTerm and feeLabel connect fee histories to the synthetic fee
// transaction the normalizer produced.
func NewDocumentLookup(statements []*models.Transaction, feeTerm, feeLabel string) *DocumentLookup {
	lookup := &DocumentLookup{
		feeTerm:  strings.ToUpper(feeTerm),
		feeLabel: feeLabel,
		byDate:   make(map[string]map[string]string),
		feeDates: make(map[string]bool),
	}

	for _, tx := range statements {
		key := tx.DateKey()
		if key == "" || tx.DocumentCode == "" {
			continue
		}
		if lookup.byDate[key] == nil {
			lookup.byDate[key] = make(map[string]string)
		}
		lookup.byDate[key][models.TrimLeadingZeros(tx.DocumentCode)] = tx.DocumentCode
		if feeLabel != "" && tx.DocumentCode == feeLabel {
			lookup.feeDates[key] = true
		}
	}

	return lookup
}

// Infer returns the statement document a ledger history refers to on the
// given date: the fee label for fee histories, a matching digit run
// otherwise, or one of the synthesized not-found codes.
func (l *DocumentLookup) Infer(date time.Time, history string) string {
	if date.IsZero() {
		return DocumentMissingDate
	}

	key := models.DateOnly(date).Format("2006-01-02")
	documents, ok := l.byDate[key]
	if !ok {
		return DocumentMissingDate
	}

	if l.feeTerm != "" && l.feeDates[key] && strings.Contains(strings.ToUpper(history), l.feeTerm) {
		return l.feeLabel
	}

	for _, run := range digitRunRe.FindAllString(history, -1) {
		if doc, found := documents[models.TrimLeadingZeros(run)]; found {
			return doc
		}
	}

	return DocumentNotFound
}
