package matcher

import (
	"fmt"
	"sort"
	"time"

	"conciliador/internal/models"

	"github.com/shopspring/decimal"
)

// Tier labels the matching pass that produced a result row.
type Tier string

const (
	// TierExact is a date + document + amount match.
	TierExact Tier = "exact"
	// TierValueOnly is a date + amount match across a document mismatch.
	TierValueOnly Tier = "value-only"
	// TierGrouped is a per-(date, document) sum comparison of the residue.
	TierGrouped Tier = "grouped"
)

// MatchedPair is one reconciled statement/ledger pair. Difference is within
// tolerance of zero by construction.
type MatchedPair struct {
	Statement *models.Transaction `json:"statement"`
	Ledger    *models.Transaction `json:"ledger"`
	Tier      Tier                `json:"tier"`

	// DocumentCode is the code reported for the pair: the statement's code
	// for exact matches, the configured sentinel for value-only matches.
	DocumentCode string `json:"document_code"`

	Difference decimal.Decimal `json:"difference"`
}

// GroupedRow is one (date, document) aggregation of residue, comparing the
// summed statement side against the summed ledger side. Keys present on only
// one side report the other side's sum as exactly zero.
type GroupedRow struct {
	Date         time.Time       `json:"date"`
	DocumentCode string          `json:"document_code"`
	Description  string          `json:"description"`
	Statement    decimal.Decimal `json:"statement"`
	Ledger       decimal.Decimal `json:"ledger"`

	// Difference is statement sum minus ledger sum.
	Difference decimal.Decimal `json:"difference"`

	// Balanced marks rows whose difference is within tolerance: many-to-many
	// residue that the per-key sums reconciled.
	Balanced bool `json:"balanced"`

	// StatementIDs and LedgerIDs identify the residue rows behind the sums.
	StatementIDs []int `json:"statement_ids,omitempty"`
	LedgerIDs    []int `json:"ledger_ids,omitempty"`
}

// Result is the complete output of a reconciliation run. Matched plus the
// two residues partition the input collections exactly once each.
type Result struct {
	Matched          []MatchedPair         `json:"matched"`
	StatementResidue []*models.Transaction `json:"statement_residue"`
	LedgerResidue    []*models.Transaction `json:"ledger_residue"`
	GroupedRows      []GroupedRow          `json:"grouped_rows"`
	Summary          Summary               `json:"summary"`
}

// Summary provides aggregate statistics about a reconciliation run.
type Summary struct {
	StatementCount int `json:"statement_count"`
	LedgerCount    int `json:"ledger_count"`

	ExactMatches     int `json:"exact_matches"`
	ValueOnlyMatches int `json:"value_only_matches"`
	GroupedRowCount  int `json:"grouped_row_count"`
	BalancedGroups   int `json:"balanced_groups"`

	StatementTotal decimal.Decimal `json:"statement_total"`
	LedgerTotal    decimal.Decimal `json:"ledger_total"`

	MatchedStatementTotal decimal.Decimal `json:"matched_statement_total"`
	ResidueStatementTotal decimal.Decimal `json:"residue_statement_total"`
	ResidueLedgerTotal    decimal.Decimal `json:"residue_ledger_total"`
}

// Engine runs the tiered reconciliation between a statement-side and a
// ledger-side collection. It is single-shot and synchronous: load both
// sides, call Reconcile, read the Result.
type Engine struct {
	config     *Config
	statements []*models.Transaction
	ledger     []*models.Transaction
	loaded     [2]bool
}

// NewEngine creates a matching engine with the given configuration, falling
// back to DefaultConfig when nil.
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	return &Engine{config: config}
}

// LoadStatements loads the statement-side collection and assigns arena IDs.
// An empty collection is valid input; a transaction failing type validation
// is a normalizer bug and fails fast.
func (e *Engine) LoadStatements(transactions []*models.Transaction) error {
	if err := validateSide(transactions, models.SideStatement); err != nil {
		return err
	}

	models.AssignIDs(transactions, 0)
	e.statements = transactions
	e.loaded[0] = true
	return nil
}

// LoadLedger loads the ledger-side collection and assigns arena IDs in a
// range disjoint from the statement side's.
func (e *Engine) LoadLedger(transactions []*models.Transaction) error {
	if err := validateSide(transactions, models.SideLedger); err != nil {
		return err
	}

	models.AssignIDs(transactions, len(e.statements))
	e.ledger = transactions
	e.loaded[1] = true
	return nil
}

func validateSide(transactions []*models.Transaction, side models.Side) error {
	for i, tx := range transactions {
		if tx == nil {
			return fmt.Errorf("nil transaction at position %d", i)
		}
		if tx.Side != side {
			return fmt.Errorf("transaction at position %d has side %s, expected %s", i, tx.Side, side)
		}
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("invalid transaction at position %d: %w", i, err)
		}
	}
	return nil
}

// Reconcile runs all enabled tiers in order and returns the partitioned
// result. It never fails for business-data reasons; empty inputs and zero
// matches produce a well-formed empty Result.
func (e *Engine) Reconcile() (*Result, error) {
	if !e.loaded[0] {
		return nil, fmt.Errorf("statements must be loaded before reconciliation")
	}
	if !e.loaded[1] {
		return nil, fmt.Errorf("ledger entries must be loaded before reconciliation")
	}
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	consumed := make(map[int]bool)
	var matched []MatchedPair

	if e.config.EnableExact {
		matched = e.runExactTier(consumed, matched)
	}

	if e.config.EnableValueOnly {
		matched = e.runValueOnlyTier(consumed, matched)
	}

	statementResidue := residue(e.statements, consumed)
	ledgerResidue := residue(e.ledger, consumed)

	var grouped []GroupedRow
	if e.config.EnableGrouped {
		grouped = e.runGroupedTier(statementResidue, ledgerResidue)
	}

	result := &Result{
		Matched:          matched,
		StatementResidue: statementResidue,
		LedgerResidue:    ledgerResidue,
		GroupedRows:      grouped,
	}
	result.Summary = e.summarize(result)

	return result, nil
}

// runExactTier pairs statement transactions with ledger entries sharing the
// same date and document code, amounts within tolerance.
func (e *Engine) runExactTier(consumed map[int]bool, matched []MatchedPair) []MatchedPair {
	for _, s := range e.statements {
		if consumed[s.ID] {
			continue
		}

		candidate := e.pickCandidate(s, consumed, func(l *models.Transaction) bool {
			return s.SameDay(l) && e.config.documentsEqual(s.DocumentCode, l.DocumentCode)
		})
		if candidate == nil {
			continue
		}

		consumed[s.ID] = true
		consumed[candidate.ID] = true
		matched = append(matched, MatchedPair{
			Statement:    s,
			Ledger:       candidate,
			Tier:         TierExact,
			DocumentCode: s.DocumentCode,
			Difference:   decimal.Zero,
		})
	}

	return matched
}

// runValueOnlyTier pairs what remains by date and amount alone, reporting
// the sentinel document code so the mismatch stays visible to reviewers.
func (e *Engine) runValueOnlyTier(consumed map[int]bool, matched []MatchedPair) []MatchedPair {
	for _, s := range e.statements {
		if consumed[s.ID] {
			continue
		}

		candidate := e.pickCandidate(s, consumed, func(l *models.Transaction) bool {
			return e.config.valueOnlyDateOK(s, l)
		})
		if candidate == nil {
			continue
		}

		consumed[s.ID] = true
		consumed[candidate.ID] = true
		matched = append(matched, MatchedPair{
			Statement:    s,
			Ledger:       candidate,
			Tier:         TierValueOnly,
			DocumentCode: e.config.Sentinel,
			Difference:   decimal.Zero,
		})
	}

	return matched
}

// pickCandidate scans unconsumed ledger entries accepted by the tier filter,
// the amount tolerance and the injected predicate, applying the configured
// tie-break policy.
func (e *Engine) pickCandidate(s *models.Transaction, consumed map[int]bool, tierFilter func(*models.Transaction) bool) *models.Transaction {
	var best *models.Transaction
	var bestGap time.Duration

	for _, l := range e.ledger {
		if consumed[l.ID] {
			continue
		}
		if !tierFilter(l) {
			continue
		}
		if !e.config.amountsMatch(s.Amount, l.Amount) {
			continue
		}
		if e.config.Predicate != nil && !e.config.Predicate(s, l) {
			continue
		}

		if e.config.TieBreak == TieBreakFirstFound {
			return l
		}

		gap := dateGap(s, l)
		if best == nil || gap < bestGap {
			best = l
			bestGap = gap
		}
	}

	return best
}

// dateGap measures candidate distance for TieBreakClosestDate. A dateless
// ledger row sorts after any dated one.
func dateGap(s, l *models.Transaction) time.Duration {
	if !l.HasDate() || !s.HasDate() {
		return time.Duration(1<<62 - 1)
	}

	gap := s.Date.Sub(l.Date)
	if gap < 0 {
		gap = -gap
	}
	return gap
}

// runGroupedTier performs the full outer join of the residue on the
// (date, document) key. This is how many-to-many residue, such as several
// partial ledger postings against one aggregated statement fee line, gets
// reconciled without a combinatorial subset-sum search.
func (e *Engine) runGroupedTier(statementResidue, ledgerResidue []*models.Transaction) []GroupedRow {
	keyFn := func(t *models.Transaction) GroupKey {
		return GroupKey{Date: t.Date, DocumentCode: e.config.documentKey(t.DocumentCode)}
	}

	statementGroups := GroupAndSum(statementResidue, keyFn)
	ledgerGroups := GroupAndSum(ledgerResidue, keyFn)

	byKey := make(map[GroupKey]*GroupedRow)
	var order []GroupKey

	for i := range statementGroups {
		g := &statementGroups[i]
		row := &GroupedRow{
			Date:         g.Key.Date,
			DocumentCode: displayDocument(g.Members),
			Description:  firstDescription(g.Members),
			Statement:    g.Total,
			Ledger:       decimal.Zero,
			StatementIDs: memberIDs(g.Members),
		}
		byKey[g.Key] = row
		order = append(order, g.Key)
	}

	for i := range ledgerGroups {
		g := &ledgerGroups[i]
		row, exists := byKey[g.Key]
		if !exists {
			row = &GroupedRow{
				Date:         g.Key.Date,
				DocumentCode: displayDocument(g.Members),
				Description:  firstDescription(g.Members),
				Statement:    decimal.Zero,
			}
			byKey[g.Key] = row
			order = append(order, g.Key)
		}
		row.Ledger = g.Total
		row.LedgerIDs = memberIDs(g.Members)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if !order[i].Date.Equal(order[j].Date) {
			return order[i].Date.Before(order[j].Date)
		}
		return order[i].DocumentCode < order[j].DocumentCode
	})

	rows := make([]GroupedRow, 0, len(order))
	for _, key := range order {
		row := byKey[key]
		row.Difference = row.Statement.Sub(row.Ledger)
		row.Balanced = row.Difference.Abs().LessThan(e.config.Tolerance)
		rows = append(rows, *row)
	}

	return rows
}

// displayDocument returns the original (unnormalized) code of the group's
// first member for reporting.
func displayDocument(members []*models.Transaction) string {
	if len(members) == 0 {
		return ""
	}
	return members[0].DocumentCode
}

func firstDescription(members []*models.Transaction) string {
	for _, m := range members {
		if m.Description != "" {
			return m.Description
		}
	}
	return ""
}

func memberIDs(members []*models.Transaction) []int {
	ids := make([]int, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids
}

// residue returns the unconsumed transactions of a collection in original
// order.
func residue(transactions []*models.Transaction, consumed map[int]bool) []*models.Transaction {
	out := make([]*models.Transaction, 0)
	for _, t := range transactions {
		if !consumed[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// summarize computes aggregate statistics for the result.
func (e *Engine) summarize(result *Result) Summary {
	summary := Summary{
		StatementCount:        len(e.statements),
		LedgerCount:           len(e.ledger),
		GroupedRowCount:       len(result.GroupedRows),
		StatementTotal:        models.SumAmounts(e.statements),
		LedgerTotal:           models.SumAmounts(e.ledger),
		MatchedStatementTotal: decimal.Zero,
		ResidueStatementTotal: models.SumAmounts(result.StatementResidue),
		ResidueLedgerTotal:    models.SumAmounts(result.LedgerResidue),
	}

	for _, pair := range result.Matched {
		switch pair.Tier {
		case TierExact:
			summary.ExactMatches++
		case TierValueOnly:
			summary.ValueOnlyMatches++
		}
		summary.MatchedStatementTotal = summary.MatchedStatementTotal.Add(pair.Statement.Amount)
	}

	for _, row := range result.GroupedRows {
		if row.Balanced {
			summary.BalancedGroups++
		}
	}

	return summary
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}
