// Package normalize applies the statement-side cleanups that must happen
// between parsing and matching: collapsing bank-fee batch debits into one
// synthetic transaction per day, and cancelling returned transfers against
// the debit they reversed.
package normalize

import (
	"strings"

	"conciliador/internal/models"
	"conciliador/pkg/logger"
)

// Config controls the statement normalization steps.
type Config struct {
	// FeeBatchCodes are history substrings identifying bank-fee batch debits.
	FeeBatchCodes []string `json:"fee_batch_codes"`

	// FeeLabel is the description and document code given to the synthetic
	// per-day fee transaction. The ledger normalizer assigns the same label
	// when inferring documents for fee histories, so the two sides meet at
	// the exact tier.
	FeeLabel string `json:"fee_label"`

	// ReturnTerms are history substrings identifying returned-transfer
	// credits. Matching is case-insensitive.
	ReturnTerms []string `json:"return_terms"`

	// CancelFirst runs returned-transfer cancellation before fee
	// aggregation. Both orders are valid; cancellation-first keeps a
	// returned fee debit from inflating the daily fee total.
	CancelFirst bool `json:"cancel_first"`
}

// DefaultConfig returns the normalization settings for Banco do Brasil
// statement extractions.
func DefaultConfig() *Config {
	return &Config{
		FeeBatchCodes: []string{"13113"},
		FeeLabel:      "Bank Fees",
		ReturnTerms:   []string{"TED DEVOLVIDA", "DEVOLUCAO", "DEVOLUÇÃO"},
		CancelFirst:   true,
	}
}

// IsFeeLine reports whether a history line belongs to a fee batch.
func (c *Config) IsFeeLine(description string) bool {
	for _, code := range c.FeeBatchCodes {
		if strings.Contains(description, code) {
			return true
		}
	}
	return false
}

// IsReturnedTransfer reports whether a history line marks a returned
// transfer credit.
func (c *Config) IsReturnedTransfer(description string) bool {
	upper := strings.ToUpper(description)
	for _, term := range c.ReturnTerms {
		if strings.Contains(upper, strings.ToUpper(term)) {
			return true
		}
	}
	return false
}

// Normalizer applies the configured statement cleanups.
type Normalizer struct {
	config *Config
	log    logger.Logger
}

// New creates a Normalizer, falling back to DefaultConfig when nil.
func New(config *Config) *Normalizer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Normalizer{
		config: config,
		log:    logger.WithComponent("normalize"),
	}
}

// Config returns the active configuration.
func (n *Normalizer) Config() *Config {
	return n.config
}

// Statement runs both cleanups in the configured order and returns a new
// slice plus the number of cancelled debits. The input is never mutated.
func (n *Normalizer) Statement(transactions []*models.Transaction) ([]*models.Transaction, int) {
	out := transactions
	cancelled := 0

	if n.config.CancelFirst {
		out, cancelled = n.CancelReturnedTransfers(out)
		out = n.AggregateFees(out)
		return out, cancelled
	}

	out = n.AggregateFees(out)
	out, cancelled = n.CancelReturnedTransfers(out)
	return out, cancelled
}

// CancelReturnedTransfers removes each returned-transfer credit together
// with the first same-day debit of equal magnitude. The credit itself is
// always removed: return credits are cancellation instructions, they never
// participate in debit-side matching. Returns the surviving transactions
// and the number of cancelled debits.
func (n *Normalizer) CancelReturnedTransfers(transactions []*models.Transaction) ([]*models.Transaction, int) {
	removed := make(map[int]bool)
	pairs := 0

	for i, credit := range transactions {
		if !credit.Amount.IsNegative() || !n.config.IsReturnedTransfer(credit.Description) {
			continue
		}
		removed[i] = true

		debitValue := credit.Amount.Neg()
		for j, debit := range transactions {
			if removed[j] || !debit.Amount.IsPositive() {
				continue
			}
			if !debit.SameDay(credit) || !debit.Amount.Equal(debitValue) {
				continue
			}

			removed[j] = true
			pairs++
			break
		}
	}

	if len(removed) == 0 {
		return transactions, 0
	}

	out := make([]*models.Transaction, 0, len(transactions)-len(removed))
	for i, tx := range transactions {
		if !removed[i] {
			out = append(out, tx)
		}
	}

	n.log.WithField("pairs", pairs).Debug("Cancelled returned transfers")
	return out, pairs
}

// AggregateFees replaces fee batch debits with one synthetic transaction
// per day carrying their sum. The synthetic row takes the position of the
// day's first fee line, keeping statement order stable for the report.
func (n *Normalizer) AggregateFees(transactions []*models.Transaction) []*models.Transaction {
	type bucket struct {
		synthetic *models.Transaction
	}
	byDay := make(map[string]*bucket)

	out := make([]*models.Transaction, 0, len(transactions))
	days := 0
	lines := 0

	for _, tx := range transactions {
		if !tx.Amount.IsPositive() || !n.config.IsFeeLine(tx.Description) {
			out = append(out, tx)
			continue
		}

		lines++
		key := tx.DateKey()
		if b, seen := byDay[key]; seen {
			b.synthetic.Amount = b.synthetic.Amount.Add(tx.Amount)
			continue
		}

		synthetic := models.NewTransaction(
			tx.Date, n.config.FeeLabel, n.config.FeeLabel, tx.Amount, models.SideStatement)
		byDay[key] = &bucket{synthetic: synthetic}
		out = append(out, synthetic)
		days++
	}

	if lines > 0 {
		n.log.WithFields(logger.Fields{
			"lines": lines,
			"days":  days,
		}).Debug("Aggregated fee batch debits")
	}

	return out
}

// ExtractFees returns the individual fee batch debits unaggregated, in
// statement order. Used by the fee listing report.
func (n *Normalizer) ExtractFees(transactions []*models.Transaction) []*models.Transaction {
	out := make([]*models.Transaction, 0)
	for _, tx := range transactions {
		if tx.Amount.IsPositive() && n.config.IsFeeLine(tx.Description) {
			out = append(out, tx)
		}
	}
	return out
}
