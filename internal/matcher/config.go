// Package matcher implements the reconciliation matching engine: a strict
// ordered sequence of matching tiers that pairs bank-statement transactions
// against ledger entries under amount, date and document-code constraints,
// then aggregates the unmatched residue per (date, document) key.
//
// The engine runs three tiers, each operating only on transactions not yet
// consumed by an earlier tier:
//  1. Exact: same date, same document code, amount within tolerance
//  2. Value-only: same date, amount within tolerance, document ignored
//  3. Grouped: full outer join of the residue grouped by (date, document),
//     comparing per-key sums instead of individual rows
//
// Consumption is monotonic: a transaction, once matched, is never
// reconsidered, and every input transaction ends up in exactly one of the
// matched pairs or the residue.
//
// Example usage:
//
//	engine := matcher.NewEngine(matcher.DefaultConfig())
//	engine.LoadStatements(statementTxns)
//	engine.LoadLedger(ledgerTxns)
//
//	result, err := engine.Reconcile()
package matcher

import (
	"fmt"

	"conciliador/internal/models"

	"github.com/shopspring/decimal"
)

// DocumentComparison selects how document codes are compared between sides.
type DocumentComparison int

const (
	// DocumentNumeric compares codes by trimmed-left-zero numeric equality,
	// tolerating the zero padding ledger exports add to commitment numbers.
	DocumentNumeric DocumentComparison = iota

	// DocumentLiteral compares codes as exact strings. Used when both sides
	// carry synthesized codes that must not be numerically collapsed.
	DocumentLiteral
)

// String returns the string representation of the DocumentComparison
func (dc DocumentComparison) String() string {
	switch dc {
	case DocumentNumeric:
		return "numeric"
	case DocumentLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// TieBreak names the rule for choosing among several equally valid ledger
// candidates. The historical behavior is first-found in collection order;
// it is an explicit named policy so tests can pin it down.
type TieBreak int

const (
	// TieBreakFirstFound takes the first acceptable candidate in ledger
	// collection order. This is the documented default, not a scored choice.
	TieBreakFirstFound TieBreak = iota

	// TieBreakClosestDate prefers the candidate whose date is nearest the
	// statement transaction's, falling back to collection order on ties.
	// Only meaningful for tiers that do not already require the same day.
	TieBreakClosestDate
)

// String returns the string representation of the TieBreak
func (tb TieBreak) String() string {
	switch tb {
	case TieBreakFirstFound:
		return "first-found"
	case TieBreakClosestDate:
		return "closest-date"
	default:
		return "unknown"
	}
}

// DateMode controls the date constraint of the value-only tier. The page
// variants this engine consolidates disagreed on whether a ledger row whose
// date failed to parse may still match; both behaviors are supported.
type DateMode int

const (
	// DateModeSameDay requires the ledger candidate to share the statement
	// transaction's calendar day.
	DateModeSameDay DateMode = iota

	// DateModeMissingWildcard is DateModeSameDay, except ledger rows without
	// a parseable date match any day.
	DateModeMissingWildcard

	// DateModeIgnore applies no date constraint at all. Used by the
	// retention reconciliation, which constrains dates through a predicate
	// instead.
	DateModeIgnore
)

// String returns the string representation of the DateMode
func (dm DateMode) String() string {
	switch dm {
	case DateModeSameDay:
		return "same-day"
	case DateModeMissingWildcard:
		return "missing-wildcard"
	case DateModeIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}

// Predicate is an extra acceptance constraint injected into the exact and
// value-only tiers, evaluated after the tier's own criteria. The retention
// pages use this for "payment date must not precede retention date" and for
// textual month-compatibility checks.
type Predicate func(statement, ledger *models.Transaction) bool

// Config holds the matching engine parameters.
type Config struct {
	// Tolerance is the monetary tolerance for amount equality. A pair is
	// only matched when |statement − ledger| is strictly below it.
	Tolerance decimal.Decimal `json:"tolerance"`

	// Sentinel is the document code reported for value-only matches in
	// place of either side's original code, signalling that the monetary
	// match crossed a document mismatch a reviewer should re-verify.
	Sentinel string `json:"sentinel"`

	// Documents selects the document-code comparison rule.
	Documents DocumentComparison `json:"documents"`

	// TieBreak selects the candidate tie-break policy.
	TieBreak TieBreak `json:"tie_break"`

	// ValueOnlyDates selects the value-only tier's date constraint.
	ValueOnlyDates DateMode `json:"value_only_dates"`

	// Predicate, when non-nil, is ANDed into tiers 1 and 2.
	Predicate Predicate `json:"-"`

	// Tier switches. All enabled by default; the retention reconciliation
	// runs with only the value-only tier.
	EnableExact     bool `json:"enable_exact"`
	EnableValueOnly bool `json:"enable_value_only"`
	EnableGrouped   bool `json:"enable_grouped"`
}

// DefaultConfig returns the configuration used by the bank reconciliation:
// all three tiers, 0.01 tolerance, numeric document comparison, first-found
// tie-break, same-day value-only matching.
func DefaultConfig() *Config {
	return &Config{
		Tolerance:       decimal.NewFromFloat(0.01),
		Sentinel:        "documents differ",
		Documents:       DocumentNumeric,
		TieBreak:        TieBreakFirstFound,
		ValueOnlyDates:  DateModeSameDay,
		EnableExact:     true,
		EnableValueOnly: true,
		EnableGrouped:   true,
	}
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if c.Tolerance.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("tolerance must be positive, got %s", c.Tolerance)
	}

	if c.EnableValueOnly && c.Sentinel == "" {
		return fmt.Errorf("sentinel document code is required when the value-only tier is enabled")
	}

	if !c.EnableExact && !c.EnableValueOnly && !c.EnableGrouped {
		return fmt.Errorf("at least one matching tier must be enabled")
	}

	return nil
}

// Clone creates a copy of the configuration. The Predicate is shared, not
// copied; predicates are stateless by contract.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	clone := *c
	return &clone
}

// String returns a human-readable description of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{tolerance: %s, documents: %s, tie-break: %s, value-only dates: %s}",
		c.Tolerance, c.Documents, c.TieBreak, c.ValueOnlyDates)
}

// documentsEqual applies the configured document comparison rule.
func (c *Config) documentsEqual(a, b string) bool {
	if c.Documents == DocumentLiteral {
		return a == b
	}
	return models.DocumentCodesEqualNumeric(a, b)
}

// documentKey normalizes a document code for grouping so that codes equal
// under the comparison rule land in the same group.
func (c *Config) documentKey(code string) string {
	if c.Documents == DocumentLiteral {
		return code
	}
	return models.TrimLeadingZeros(code)
}

// amountsMatch applies the tolerance rule.
func (c *Config) amountsMatch(a, b decimal.Decimal) bool {
	return models.AmountsWithinTolerance(a, b, c.Tolerance)
}

// valueOnlyDateOK applies the configured value-only date constraint.
func (c *Config) valueOnlyDateOK(statement, ledger *models.Transaction) bool {
	switch c.ValueOnlyDates {
	case DateModeIgnore:
		return true
	case DateModeMissingWildcard:
		return !ledger.HasDate() || statement.SameDay(ledger)
	default:
		return statement.SameDay(ledger)
	}
}
