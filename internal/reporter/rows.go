package reporter

import (
	"sort"
	"time"

	"conciliador/internal/matcher"

	"github.com/shopspring/decimal"
)

// RowStatus labels how a report row was reconciled.
type RowStatus string

const (
	StatusExact     RowStatus = "exact"
	StatusValueOnly RowStatus = "value-only"
	StatusBalanced  RowStatus = "balanced"
	StatusOpen      RowStatus = "open"
)

// Row is one line of the reconciliation report. Matched pairs and grouped
// residue rows share this shape; single-sided rows carry zero on the side
// they are missing.
type Row struct {
	Date         time.Time       `json:"date"`
	DocumentCode string          `json:"document_code"`
	Description  string          `json:"description,omitempty"`
	Statement    decimal.Decimal `json:"statement"`
	Ledger       decimal.Decimal `json:"ledger"`
	Difference   decimal.Decimal `json:"difference"`
	Status       RowStatus       `json:"status"`
}

// Open reports whether the row still needs investigation.
func (r Row) Open() bool {
	return r.Status == StatusOpen
}

// BuildRows flattens a matching result into report rows ordered by date.
// Matched pairs become one row each; the residue appears through its grouped
// rows, so every input transaction is represented exactly once. When the
// grouped tier is disabled the residue lists are rendered directly, one open
// row per transaction, so unmatched entries never fall out of the report.
func BuildRows(match *matcher.Result) []Row {
	rows := make([]Row, 0, len(match.Matched)+len(match.GroupedRows))

	for _, pair := range match.Matched {
		status := StatusExact
		if pair.Tier == matcher.TierValueOnly {
			status = StatusValueOnly
		}
		rows = append(rows, Row{
			Date:         pair.Statement.Date,
			DocumentCode: pair.DocumentCode,
			Description:  pair.Statement.Description,
			Statement:    pair.Statement.Amount,
			Ledger:       pair.Ledger.Amount,
			Difference:   pair.Difference,
			Status:       status,
		})
	}

	for _, group := range match.GroupedRows {
		status := StatusOpen
		if group.Balanced {
			status = StatusBalanced
		}
		rows = append(rows, Row{
			Date:         group.Date,
			DocumentCode: group.DocumentCode,
			Description:  group.Description,
			Statement:    group.Statement,
			Ledger:       group.Ledger,
			Difference:   group.Difference,
			Status:       status,
		})
	}

	if len(match.GroupedRows) == 0 {
		for _, tx := range match.StatementResidue {
			rows = append(rows, Row{
				Date:         tx.Date,
				DocumentCode: tx.DocumentCode,
				Description:  tx.Description,
				Statement:    tx.Amount,
				Ledger:       decimal.Zero,
				Difference:   tx.Amount,
				Status:       StatusOpen,
			})
		}
		for _, tx := range match.LedgerResidue {
			rows = append(rows, Row{
				Date:         tx.Date,
				DocumentCode: tx.DocumentCode,
				Description:  tx.Description,
				Statement:    decimal.Zero,
				Ledger:       tx.Amount,
				Difference:   tx.Amount.Neg(),
				Status:       StatusOpen,
			})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].DocumentCode < rows[j].DocumentCode
	})

	return rows
}

// Totals sums the three amount columns of a row set.
func Totals(rows []Row) (statement, ledger, difference decimal.Decimal) {
	statement, ledger, difference = decimal.Zero, decimal.Zero, decimal.Zero
	for _, row := range rows {
		statement = statement.Add(row.Statement)
		ledger = ledger.Add(row.Ledger)
		difference = difference.Add(row.Difference)
	}
	return statement, ledger, difference
}
