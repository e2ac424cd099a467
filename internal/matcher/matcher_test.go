package matcher

import (
	"testing"
	"time"

	"conciliador/internal/models"

	"github.com/shopspring/decimal"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func statementTxn(d int, doc string, amount float64) *models.Transaction {
	return models.NewTransaction(day(d), "statement line", doc, decimal.NewFromFloat(amount), models.SideStatement)
}

func ledgerTxn(d int, doc string, amount float64) *models.Transaction {
	return models.NewTransaction(day(d), "ledger entry", doc, decimal.NewFromFloat(amount), models.SideLedger)
}

func datelessLedgerTxn(doc string, amount float64) *models.Transaction {
	return models.NewTransaction(time.Time{}, "ledger entry", doc, decimal.NewFromFloat(amount), models.SideLedger)
}

func reconcile(t *testing.T, config *Config, statements, ledger []*models.Transaction) *Result {
	t.Helper()

	engine := NewEngine(config)
	if err := engine.LoadStatements(statements); err != nil {
		t.Fatalf("LoadStatements failed: %v", err)
	}
	if err := engine.LoadLedger(ledger); err != nil {
		t.Fatalf("LoadLedger failed: %v", err)
	}

	result, err := engine.Reconcile()
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	return result
}

func TestReconcileRequiresLoadedSides(t *testing.T) {
	engine := NewEngine(nil)
	if _, err := engine.Reconcile(); err == nil {
		t.Error("Expected error when reconciling before loading")
	}

	if err := engine.LoadStatements(nil); err != nil {
		t.Fatalf("LoadStatements failed: %v", err)
	}
	if _, err := engine.Reconcile(); err == nil {
		t.Error("Expected error when ledger side is not loaded")
	}
}

func TestLoadRejectsWrongSide(t *testing.T) {
	engine := NewEngine(nil)
	if err := engine.LoadStatements([]*models.Transaction{ledgerTxn(5, "1", 10)}); err == nil {
		t.Error("Expected error loading ledger transactions as statements")
	}
}

// Scenario A: identical date, document and amount reconcile at the exact tier.
func TestExactMatch(t *testing.T) {
	result := reconcile(t, nil,
		[]*models.Transaction{statementTxn(5, "001234", 150.00)},
		[]*models.Transaction{ledgerTxn(5, "001234", 150.00)},
	)

	if len(result.Matched) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(result.Matched))
	}

	pair := result.Matched[0]
	if pair.Tier != TierExact {
		t.Errorf("Expected exact tier, got %s", pair.Tier)
	}
	if !pair.Difference.IsZero() {
		t.Errorf("Expected zero difference, got %s", pair.Difference)
	}
	if pair.DocumentCode != "001234" {
		t.Errorf("Expected statement document code, got %q", pair.DocumentCode)
	}

	if len(result.StatementResidue) != 0 || len(result.LedgerResidue) != 0 {
		t.Errorf("Expected empty residues, got %d/%d",
			len(result.StatementResidue), len(result.LedgerResidue))
	}
}

// Scenario B: same date and amount but different documents reconcile at the
// value-only tier under the sentinel code.
func TestValueOnlyMatchUsesSentinel(t *testing.T) {
	result := reconcile(t, nil,
		[]*models.Transaction{statementTxn(5, "001234", 150.00)},
		[]*models.Transaction{ledgerTxn(5, "999999", 150.00)},
	)

	if len(result.Matched) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(result.Matched))
	}

	pair := result.Matched[0]
	if pair.Tier != TierValueOnly {
		t.Errorf("Expected value-only tier, got %s", pair.Tier)
	}
	if pair.DocumentCode != "documents differ" {
		t.Errorf("Expected sentinel document code, got %q", pair.DocumentCode)
	}
}

// Numeric document comparison tolerates ledger zero padding.
func TestExactMatchNumericDocumentComparison(t *testing.T) {
	result := reconcile(t, nil,
		[]*models.Transaction{statementTxn(5, "1234", 150.00)},
		[]*models.Transaction{ledgerTxn(5, "0001234", 150.00)},
	)

	if len(result.Matched) != 1 || result.Matched[0].Tier != TierExact {
		t.Fatalf("Expected exact match across zero padding, got %+v", result.Matched)
	}
}

// Scenario C: one aggregated statement line against two partial ledger
// postings reconciles only at the grouped tier.
func TestGroupedTierReconcilesManyToMany(t *testing.T) {
	result := reconcile(t, nil,
		[]*models.Transaction{statementTxn(5, "FEES", 15.00)},
		[]*models.Transaction{
			ledgerTxn(5, "FEES", 8.00),
			ledgerTxn(5, "FEES", 7.00),
		},
	)

	if len(result.Matched) != 0 {
		t.Fatalf("Expected no pairwise matches, got %d", len(result.Matched))
	}
	if len(result.GroupedRows) != 1 {
		t.Fatalf("Expected 1 grouped row, got %d", len(result.GroupedRows))
	}

	row := result.GroupedRows[0]
	if !row.Statement.Equal(decimal.NewFromFloat(15.00)) {
		t.Errorf("Expected statement sum 15.00, got %s", row.Statement)
	}
	if !row.Ledger.Equal(decimal.NewFromFloat(15.00)) {
		t.Errorf("Expected ledger sum 15.00, got %s", row.Ledger)
	}
	if !row.Difference.IsZero() {
		t.Errorf("Expected zero difference, got %s", row.Difference)
	}
	if !row.Balanced {
		t.Error("Expected grouped row to be balanced")
	}
}

// Scenario D: a statement transaction with no counterpart at all lands in
// the residue and reports the ledger side as exactly zero when grouped.
func TestUnmatchedStatementResidue(t *testing.T) {
	result := reconcile(t, nil,
		[]*models.Transaction{statementTxn(5, "007777", 42.00)},
		nil,
	)

	if len(result.StatementResidue) != 1 {
		t.Fatalf("Expected 1 residue transaction, got %d", len(result.StatementResidue))
	}
	if len(result.GroupedRows) != 1 {
		t.Fatalf("Expected 1 grouped row, got %d", len(result.GroupedRows))
	}

	row := result.GroupedRows[0]
	if !row.Ledger.IsZero() {
		t.Errorf("Expected missing side to sum to exactly zero, got %s", row.Ledger)
	}
	if !row.Difference.Equal(decimal.NewFromFloat(42.00)) {
		t.Errorf("Expected difference 42.00, got %s", row.Difference)
	}
	if row.Balanced {
		t.Error("Expected one-sided group to be unbalanced")
	}
}

// Tier precedence: an exact candidate wins over a value-only candidate even
// when the value-only candidate comes first in collection order.
func TestTierPrecedence(t *testing.T) {
	wrongDoc := ledgerTxn(5, "999999", 150.00)
	rightDoc := ledgerTxn(5, "001234", 150.00)

	result := reconcile(t, nil,
		[]*models.Transaction{statementTxn(5, "001234", 150.00)},
		[]*models.Transaction{wrongDoc, rightDoc},
	)

	if len(result.Matched) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(result.Matched))
	}

	pair := result.Matched[0]
	if pair.Tier != TierExact {
		t.Errorf("Expected exact tier to run to exhaustion first, got %s", pair.Tier)
	}
	if pair.Ledger.ID != rightDoc.ID {
		t.Errorf("Expected the exact candidate to be chosen, got ledger #%d", pair.Ledger.ID)
	}
}

// First-found tie-break: among equally valid candidates, collection order
// decides.
func TestFirstFoundTieBreak(t *testing.T) {
	first := ledgerTxn(5, "001234", 150.00)
	second := ledgerTxn(5, "001234", 150.00)

	result := reconcile(t, nil,
		[]*models.Transaction{statementTxn(5, "001234", 150.00)},
		[]*models.Transaction{first, second},
	)

	if len(result.Matched) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(result.Matched))
	}
	if result.Matched[0].Ledger.ID != first.ID {
		t.Error("Expected first-found candidate in ledger collection order")
	}
	if len(result.LedgerResidue) != 1 || result.LedgerResidue[0].ID != second.ID {
		t.Error("Expected the second candidate to remain in the residue")
	}
}

func TestClosestDateTieBreak(t *testing.T) {
	config := DefaultConfig()
	config.ValueOnlyDates = DateModeIgnore
	config.TieBreak = TieBreakClosestDate

	far := ledgerTxn(20, "", 150.00)
	near := ledgerTxn(6, "", 150.00)

	result := reconcile(t, config,
		[]*models.Transaction{statementTxn(5, "001234", 150.00)},
		[]*models.Transaction{far, near},
	)

	if len(result.Matched) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(result.Matched))
	}
	if result.Matched[0].Ledger.ID != near.ID {
		t.Error("Expected the closest-date candidate to be chosen")
	}
}

// Amount comparison uses the strict 0.01 tolerance, never exact equality.
func TestAmountTolerance(t *testing.T) {
	result := reconcile(t, nil,
		[]*models.Transaction{
			statementTxn(5, "1", 100.000),
			statementTxn(6, "2", 200.00),
		},
		[]*models.Transaction{
			ledgerTxn(5, "1", 100.005), // within tolerance
			ledgerTxn(6, "2", 200.01),  // at the boundary: no match
		},
	)

	if len(result.Matched) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(result.Matched))
	}
	if result.Matched[0].Statement.DocumentCode != "1" {
		t.Error("Expected only the within-tolerance pair to match")
	}
}

func TestValueOnlyDateModes(t *testing.T) {
	statement := []*models.Transaction{statementTxn(5, "001234", 150.00)}

	// Same-day mode: a dateless ledger row is not a candidate.
	strict := DefaultConfig()
	result := reconcile(t, strict, statement,
		[]*models.Transaction{datelessLedgerTxn("999999", 150.00)})
	if len(result.Matched) != 0 {
		t.Error("Expected no match for dateless ledger row in same-day mode")
	}

	// Wildcard mode: the same row matches.
	wildcard := DefaultConfig()
	wildcard.ValueOnlyDates = DateModeMissingWildcard
	result = reconcile(t, wildcard, statement,
		[]*models.Transaction{datelessLedgerTxn("999999", 150.00)})
	if len(result.Matched) != 1 {
		t.Error("Expected match for dateless ledger row in wildcard mode")
	}

	// Wildcard mode still rejects a dated row on the wrong day.
	result = reconcile(t, wildcard, statement,
		[]*models.Transaction{ledgerTxn(9, "999999", 150.00)})
	if len(result.Matched) != 0 {
		t.Error("Expected no match for wrong-day ledger row in wildcard mode")
	}
}

func TestInjectedPredicate(t *testing.T) {
	config := DefaultConfig()
	config.Predicate = func(s, l *models.Transaction) bool {
		return !l.Date.Before(s.Date)
	}

	// Candidate predates the statement transaction: predicate rejects it
	// for both tiers.
	result := reconcile(t, config,
		[]*models.Transaction{statementTxn(5, "001234", 150.00)},
		[]*models.Transaction{ledgerTxn(5, "001234", 150.00)},
	)
	if len(result.Matched) != 1 {
		t.Fatal("Expected same-day candidate to pass the predicate")
	}

	config2 := DefaultConfig()
	config2.ValueOnlyDates = DateModeIgnore
	config2.EnableExact = false
	config2.Predicate = func(s, l *models.Transaction) bool {
		return !l.Date.Before(s.Date)
	}

	result = reconcile(t, config2,
		[]*models.Transaction{statementTxn(10, "001234", 150.00)},
		[]*models.Transaction{ledgerTxn(5, "001234", 150.00)},
	)
	if len(result.Matched) != 0 {
		t.Error("Expected predicate to reject an earlier ledger date")
	}
}

// Partition property: every input transaction appears exactly once across
// matched pairs and residues.
func TestPartitionProperty(t *testing.T) {
	statements := []*models.Transaction{
		statementTxn(5, "001234", 150.00),
		statementTxn(5, "005678", 80.00),
		statementTxn(6, "FEES", 15.00),
		statementTxn(7, "900000", 33.33),
	}
	ledger := []*models.Transaction{
		ledgerTxn(5, "1234", 150.00),
		ledgerTxn(5, "111111", 80.00),
		ledgerTxn(6, "FEES", 8.00),
		ledgerTxn(6, "FEES", 7.00),
		ledgerTxn(8, "777777", 12.00),
	}

	result := reconcile(t, nil, statements, ledger)

	seen := make(map[int]int)
	for _, pair := range result.Matched {
		seen[pair.Statement.ID]++
		seen[pair.Ledger.ID]++
	}
	for _, tx := range result.StatementResidue {
		seen[tx.ID]++
	}
	for _, tx := range result.LedgerResidue {
		seen[tx.ID]++
	}

	total := len(statements) + len(ledger)
	if len(seen) != total {
		t.Errorf("Expected %d distinct transactions in output, got %d", total, len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("Transaction #%d appears %d times in the output partition", id, count)
		}
	}
}

// Sum preservation: matched plus residue totals equal the input total on
// each side, exactly.
func TestSumPreservation(t *testing.T) {
	statements := []*models.Transaction{
		statementTxn(5, "001234", 150.10),
		statementTxn(6, "005678", 80.20),
		statementTxn(7, "900000", 33.33),
	}
	ledger := []*models.Transaction{
		ledgerTxn(5, "1234", 150.10),
		ledgerTxn(9, "777777", 12.34),
	}

	result := reconcile(t, nil, statements, ledger)

	matchedStatement := decimal.Zero
	matchedLedger := decimal.Zero
	for _, pair := range result.Matched {
		matchedStatement = matchedStatement.Add(pair.Statement.Amount)
		matchedLedger = matchedLedger.Add(pair.Ledger.Amount)
	}

	statementTotal := matchedStatement.Add(models.SumAmounts(result.StatementResidue))
	if !statementTotal.Equal(models.SumAmounts(statements)) {
		t.Errorf("Statement total not preserved: %s vs %s",
			statementTotal, models.SumAmounts(statements))
	}

	ledgerTotal := matchedLedger.Add(models.SumAmounts(result.LedgerResidue))
	if !ledgerTotal.Equal(models.SumAmounts(ledger)) {
		t.Errorf("Ledger total not preserved: %s vs %s",
			ledgerTotal, models.SumAmounts(ledger))
	}
}

// Idempotent consumption: one ledger entry can satisfy only one of several
// identical statement transactions.
func TestNoDoubleConsumption(t *testing.T) {
	result := reconcile(t, nil,
		[]*models.Transaction{
			statementTxn(5, "001234", 150.00),
			statementTxn(5, "001234", 150.00),
		},
		[]*models.Transaction{ledgerTxn(5, "001234", 150.00)},
	)

	if len(result.Matched) != 1 {
		t.Fatalf("Expected exactly 1 match, got %d", len(result.Matched))
	}
	if len(result.StatementResidue) != 1 {
		t.Errorf("Expected 1 statement residue, got %d", len(result.StatementResidue))
	}
}

func TestEmptyInputs(t *testing.T) {
	result := reconcile(t, nil, nil, nil)

	if len(result.Matched) != 0 || len(result.GroupedRows) != 0 {
		t.Error("Expected empty result for empty inputs")
	}
	if result.StatementResidue == nil || result.LedgerResidue == nil {
		t.Error("Expected non-nil residue slices")
	}
}

func TestSummary(t *testing.T) {
	result := reconcile(t, nil,
		[]*models.Transaction{
			statementTxn(5, "001234", 150.00),
			statementTxn(5, "005678", 80.00),
			statementTxn(7, "900000", 33.33),
		},
		[]*models.Transaction{
			ledgerTxn(5, "1234", 150.00),
			ledgerTxn(5, "999999", 80.00),
		},
	)

	s := result.Summary
	if s.ExactMatches != 1 || s.ValueOnlyMatches != 1 {
		t.Errorf("Expected 1 exact and 1 value-only match, got %d/%d",
			s.ExactMatches, s.ValueOnlyMatches)
	}
	if s.StatementCount != 3 || s.LedgerCount != 2 {
		t.Errorf("Unexpected input counts: %d/%d", s.StatementCount, s.LedgerCount)
	}
	if !s.ResidueStatementTotal.Equal(decimal.NewFromFloat(33.33)) {
		t.Errorf("Expected residue total 33.33, got %s", s.ResidueStatementTotal)
	}
}

func TestConfigValidate(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got: %v", err)
	}

	config.Tolerance = decimal.Zero
	if err := config.Validate(); err == nil {
		t.Error("Expected error for non-positive tolerance")
	}

	config = DefaultConfig()
	config.Sentinel = ""
	if err := config.Validate(); err == nil {
		t.Error("Expected error for empty sentinel with value-only tier enabled")
	}

	config = DefaultConfig()
	config.EnableExact = false
	config.EnableValueOnly = false
	config.EnableGrouped = false
	if err := config.Validate(); err == nil {
		t.Error("Expected error when all tiers are disabled")
	}
}

func TestGroupedRowFromLedgerOnlyKeyKeepsDescription(t *testing.T) {
	result := reconcile(t, nil,
		nil,
		[]*models.Transaction{ledgerTxn(12, "556677", 82.50)})

	if len(result.GroupedRows) != 1 {
		t.Fatalf("Expected 1 grouped row, got %d", len(result.GroupedRows))
	}

	row := result.GroupedRows[0]
	if row.Description != "ledger entry" {
		t.Errorf("Expected ledger-side description, got %q", row.Description)
	}
	if !row.Statement.IsZero() || !row.Ledger.Equal(decimal.NewFromFloat(82.50)) {
		t.Errorf("Unexpected sides: statement %s, ledger %s", row.Statement, row.Ledger)
	}
}
