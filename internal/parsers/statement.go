package parsers

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"

	"conciliador/internal/models"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"
)

var (
	// statementDateRe anchors a statement line: day-first date, year
	// optional, at the start of the line.
	statementDateRe = regexp.MustCompile(`^(\d{2}/\d{2}(?:/\d{4})?)`)

	// statementAmountRe finds the Brazilian-formatted value with its
	// debit/credit marker.
	statementAmountRe = regexp.MustCompile(`(\d{1,3}(?:\.\d{3})*,\d{2})\s?([DC])`)
)

// StatementParser extracts transactions from the text lines of a bank
// statement. Debits are emitted with positive amounts; the only credits
// kept are returned transfers, emitted negative for the normalizer to
// cancel. Everything else on the page is layout noise and ignored.
type StatementParser struct {
	config *StatementConfig
	log    logger.Logger
}

// NewStatementParser creates a statement parser, falling back to
// DefaultStatementConfig when nil.
func NewStatementParser(config *StatementConfig) (*StatementParser, error) {
	if config == nil {
		config = DefaultStatementConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "statement_parser", config, err)
	}

	return &StatementParser{
		config: config,
		log:    logger.WithComponent("statement_parser"),
	}, nil
}

// ParseFile reads a statement text file and parses its lines.
func (p *StatementParser) ParseFile(ctx context.Context, path string) ([]*models.Transaction, *ParseStats, error) {
	data, err := readFile(path, p.log)
	if err != nil {
		return nil, nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}

	return p.ParseLines(ctx, path, lines)
}

// ParseLines parses statement text lines already in memory, as produced by
// a PDF text extraction. name labels the source in errors and logs.
func (p *StatementParser) ParseLines(ctx context.Context, name string, lines []string) ([]*models.Transaction, *ParseStats, error) {
	stats := &ParseStats{}
	transactions := make([]*models.Transaction, 0, len(lines))

	for i, line := range lines {
		if i%256 == 0 {
			if err := checkContext(ctx); err != nil {
				return nil, stats, err
			}
		}
		stats.TotalRows++

		tx, rowErr := p.parseLine(name, i+1, line)
		if rowErr != nil {
			stats.AddRowError(rowErr)
			continue
		}
		if tx == nil {
			continue
		}

		if tx.Amount.IsPositive() && p.config.isExcluded(tx.Description) {
			stats.Excluded++
			continue
		}

		transactions = append(transactions, tx)
		stats.Parsed++
	}

	p.log.WithFields(logger.Fields{
		"source":   name,
		"total":    stats.TotalRows,
		"parsed":   stats.Parsed,
		"excluded": stats.Excluded,
		"dropped":  stats.Dropped,
	}).Info("Parsed bank statement")

	return transactions, stats, nil
}

// parseLine extracts one transaction from a statement line. A nil, nil
// return means the line is not a transaction row.
func (p *StatementParser) parseLine(name string, lineNo int, line string) (*models.Transaction, *errors.RowError) {
	dateStr := statementDateRe.FindString(line)
	if dateStr == "" {
		return nil, nil
	}

	rest := strings.TrimSpace(line[len(dateStr):])
	loc := statementAmountRe.FindStringSubmatchIndex(rest)
	if loc == nil {
		return nil, nil
	}

	amountStr := rest[loc[2]:loc[3]]
	direction := rest[loc[4]:loc[5]]
	description := strings.TrimSpace(rest[:loc[0]] + " " + rest[loc[1]:])

	date, err := models.ParseBRDate(dateStr, p.config.DefaultYear)
	if err != nil {
		return nil, errors.NewRowError(errors.CodeInvalidData, name, lineNo, dateStr, err).
			WithLineContent(line)
	}

	amount, err := models.ParseBRAmount(amountStr)
	if err != nil {
		return nil, errors.NewRowError(errors.CodeInvalidData, name, lineNo, amountStr, err).
			WithLineContent(line)
	}

	if direction == "C" {
		if !p.config.isReturnedTransfer(description) {
			return nil, nil
		}
		return models.NewTransaction(date, description, "", amount.Neg(), models.SideStatement), nil
	}

	document := p.inferDocument(description)
	return models.NewTransaction(date, description, document, amount, models.SideStatement), nil
}

// inferDocument scans the history tokens from the right for the document
// code: the last token that is numeric (ignoring dots and dashes) with
// enough digits, reduced to its final six digits.
func (p *StatementParser) inferDocument(description string) string {
	tokens := strings.Fields(description)
	for i := len(tokens) - 1; i >= 0; i-- {
		cleaned := strings.NewReplacer(".", "", "-", "").Replace(tokens[i])
		if len(cleaned) >= p.config.MinDocumentDigits && isDigits(cleaned) {
			return models.CleanDocumentCode(tokens[i])
		}
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
