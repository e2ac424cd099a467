package reporter

import (
	"conciliador/internal/matcher"
	"conciliador/internal/reconciler"
	"conciliador/internal/retention"
)

// table is the format-independent shape shared by the XLSX and PDF writers.
// Amount cells are float64 so spreadsheet output stays computable; everything
// else is a string.
type table struct {
	Sheet   string
	Headers []string

	// Widths are PDF column widths in millimeters, one per header.
	Widths []float64

	Rows [][]interface{}

	// Highlight flags rows needing attention, one per row.
	Highlight []bool

	// Total is an optional footer row.
	Total []interface{}
}

func reconciliationTable(rows []Row, highlight []bool) *table {
	t := &table{
		Sheet:     "Reconciliation",
		Headers:   []string{"Date", "Document", "Statement", "Ledger", "Difference", "Status"},
		Widths:    []float64{28, 60, 40, 40, 40, 30},
		Rows:      make([][]interface{}, 0, len(rows)),
		Highlight: highlight,
	}

	for _, row := range rows {
		t.Rows = append(t.Rows, []interface{}{
			formatDate(row.Date),
			row.DocumentCode,
			row.Statement.InexactFloat64(),
			row.Ledger.InexactFloat64(),
			row.Difference.InexactFloat64(),
			string(row.Status),
		})
	}

	statement, ledger, difference := Totals(rows)
	t.Total = []interface{}{
		"", "TOTAL",
		statement.InexactFloat64(),
		ledger.InexactFloat64(),
		difference.InexactFloat64(),
		"",
	}

	return t
}

func retentionTable(result *retention.Result) *table {
	t := &table{
		Sheet: "Retentions",
		Headers: []string{
			"Commitment", "Retention Date", "Retained",
			"Payment Date", "Paid", "Difference", "Status",
		},
		Widths:    []float64{38, 30, 36, 30, 36, 36, 44},
		Rows:      make([][]interface{}, 0, len(result.Rows)),
		Highlight: make([]bool, 0, len(result.Rows)),
	}

	for _, row := range result.Rows {
		t.Rows = append(t.Rows, []interface{}{
			row.Commitment,
			formatDate(row.RetentionDate),
			row.Retained.InexactFloat64(),
			formatDate(row.PaymentDate),
			row.Paid.InexactFloat64(),
			row.Difference.InexactFloat64(),
			string(row.Status),
		})
		t.Highlight = append(t.Highlight, row.Status != retention.StatusReconciled)
	}

	summary := result.Summary
	t.Total = []interface{}{
		"TOTAL", "",
		summary.TotalRetained.InexactFloat64(),
		"",
		summary.TotalPaid.InexactFloat64(),
		summary.Balance.InexactFloat64(),
		"",
	}

	return t
}

func feesTable(result *reconciler.FeesResult) *table {
	t := &table{
		Sheet:   "Bank Fees",
		Headers: []string{"Date", "Description", "Amount"},
		Widths:  []float64{35, 180, 45},
		Rows:    make([][]interface{}, 0, len(result.Fees)),
	}

	for _, group := range matcher.GroupByDay(result.Fees) {
		for _, fee := range group.Members {
			t.Rows = append(t.Rows, []interface{}{
				formatDate(fee.Date),
				fee.Description,
				fee.Amount.InexactFloat64(),
			})
		}
		t.Rows = append(t.Rows, []interface{}{
			formatDate(group.Key.Date),
			"DAY TOTAL",
			group.Total.InexactFloat64(),
		})
	}

	t.Total = []interface{}{"", "TOTAL", result.Total.InexactFloat64()}
	return t
}

func (t *table) highlighted(row int) bool {
	return row < len(t.Highlight) && t.Highlight[row]
}
