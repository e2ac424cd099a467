// Package models defines the uniform transaction record shared by both sides
// of a reconciliation, along with the Brazilian-format parsing helpers used
// to build it from bank statements and ledger exports.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies which input collection a transaction came from.
type Side string

const (
	// SideStatement marks transactions extracted from a bank statement.
	SideStatement Side = "STATEMENT"
	// SideLedger marks transactions extracted from the general-ledger export.
	SideLedger Side = "LEDGER"
)

// String returns the string representation of the Side
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is one of the two known collections
func (s Side) IsValid() bool {
	return s == SideStatement || s == SideLedger
}

// Transaction is the normalized unit of reconciliation. Both the statement
// and the ledger normalizers produce this shape, so the matcher never needs
// to know which bank layout or spreadsheet column arrangement produced it.
type Transaction struct {
	// ID is a stable arena index assigned when the collection is loaded.
	// Consumption tracking is a set of IDs; records are never removed from
	// their collection, preserving original ordering for audit.
	ID int `json:"id"`

	// Date is the calendar date at day resolution. A zero Date means the
	// source row carried no parseable date; statement rows always have one.
	Date time.Time `json:"date"`

	// Description is the bank history line or ledger narrative. It is used
	// for display and substring classifiers only, never as a join key.
	Description string `json:"description"`

	// DocumentCode is the commitment/payment-order identifier used as a soft
	// join key. May be empty, or synthesized upstream (e.g. "Bank Fees").
	DocumentCode string `json:"document_code"`

	// Amount is the signed monetary value in the statement's native unit.
	Amount decimal.Decimal `json:"amount"`

	Side Side `json:"side"`
}

// NewTransaction creates a Transaction with an unassigned ID.
func NewTransaction(date time.Time, description, documentCode string, amount decimal.Decimal, side Side) *Transaction {
	return &Transaction{
		ID:           -1,
		Date:         DateOnly(date),
		Description:  description,
		DocumentCode: strings.TrimSpace(documentCode),
		Amount:       amount,
		Side:         side,
	}
}

// Validate performs the type-level checks the matcher boundary relies on.
// Messy business data is not an error here; an invalid Side or a statement
// row without a date indicates a normalizer bug and must fail fast.
func (t *Transaction) Validate() error {
	if !t.Side.IsValid() {
		return fmt.Errorf("invalid transaction side: %q", t.Side)
	}

	if t.Side == SideStatement && t.Date.IsZero() {
		return fmt.Errorf("statement transaction must have a date")
	}

	return nil
}

// HasDate reports whether the transaction carries a parseable date.
func (t *Transaction) HasDate() bool {
	return !t.Date.IsZero()
}

// DateKey returns the day-resolution grouping key, or "" for dateless rows.
func (t *Transaction) DateKey() string {
	if t.Date.IsZero() {
		return ""
	}
	return t.Date.Format("2006-01-02")
}

// SameDay reports whether two transactions fall on the same calendar day.
func (t *Transaction) SameDay(other *Transaction) bool {
	if other == nil {
		return false
	}
	return t.DateKey() == other.DateKey()
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	date := "-"
	if t.HasDate() {
		date = t.Date.Format("02/01/2006")
	}
	return fmt.Sprintf("Transaction{%s #%d %s doc=%q amount=%s}",
		t.Side, t.ID, date, t.DocumentCode, t.Amount.String())
}

// AssignIDs numbers a collection in place with sequential arena indices
// starting at base and returns the next free index. The matcher requires
// every transaction to carry a unique non-negative ID.
func AssignIDs(transactions []*Transaction, base int) int {
	next := base
	for _, t := range transactions {
		t.ID = next
		next++
	}
	return next
}

// SumAmounts returns the exact sum of a collection's amounts.
func SumAmounts(transactions []*Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range transactions {
		total = total.Add(t.Amount)
	}
	return total
}

// DateOnly truncates a time to day resolution in UTC. All reconciliation
// date comparisons happen at day granularity.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// AmountsWithinTolerance compares two amounts under the fixed monetary
// tolerance. Reconciliation never uses exact float equality.
func AmountsWithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(tolerance)
}

// ParseBRAmount parses a Brazilian-formatted monetary value such as
// "1.234,56" or "-12,00". Plain decimal notation ("1234.56") is accepted as
// a fallback since ledger exports are inconsistent about it.
func ParseBRAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	return d, nil
}

// FormatBRAmount renders an amount in Brazilian notation ("1.234,56").
func FormatBRAmount(d decimal.Decimal) string {
	s := d.StringFixed(2)

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := strings.SplitN(s, ".", 2)
	integer, fraction := parts[0], parts[1]

	var groups []string
	for len(integer) > 3 {
		groups = append([]string{integer[len(integer)-3:]}, groups...)
		integer = integer[:len(integer)-3]
	}
	groups = append([]string{integer}, groups...)

	out := strings.Join(groups, ".") + "," + fraction
	if negative {
		out = "-" + out
	}
	return out
}

// brDateFormats lists the day-first layouts found across bank statements and
// ledger exports, tried in order.
var brDateFormats = []string{
	"02/01/2006",
	"02/01/06",
	"02-01-2006",
	"2006-01-02",
}

// ParseBRDate parses a day-first date string. Statement lines sometimes omit
// the year ("05/03"); defaultYear fills it in when positive.
func ParseBRDate(s string, defaultYear int) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	// Spreadsheet cells sometimes carry a time-of-day suffix; the date part
	// is all that matters at day resolution.
	if fields := strings.Fields(s); len(fields) > 1 {
		s = fields[0]
	}

	if len(s) == 5 && strings.Count(s, "/") == 1 && defaultYear > 0 {
		s = fmt.Sprintf("%s/%d", s, defaultYear)
	}

	var lastErr error
	for _, format := range brDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return DateOnly(t), nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date %q: %w", s, lastErr)
}

// CleanDocumentCode reduces a raw statement token to the document code used
// for matching: digits only, truncated to the final six digits the ledger
// history references.
func CleanDocumentCode(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	s := digits.String()
	if len(s) > 6 {
		return s[len(s)-6:]
	}
	return s
}

// TrimLeadingZeros normalizes a document code for numeric comparison.
// An all-zero code collapses to "0" rather than the empty string so that it
// never equals a genuinely missing code.
func TrimLeadingZeros(code string) string {
	trimmed := strings.TrimLeft(code, "0")
	if trimmed == "" && code != "" {
		return "0"
	}
	return trimmed
}

// DocumentCodesEqualNumeric compares document codes by trimmed-left-zero
// numeric equality, the default join rule between statement and ledger.
func DocumentCodesEqualNumeric(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return a == b
	}
	return TrimLeadingZeros(a) == TrimLeadingZeros(b)
}
