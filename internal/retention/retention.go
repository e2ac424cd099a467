// Package retention reconciles tax retentions against their payments inside
// one retention-account ledger export. Reversal entries first cancel their
// originals; the survivors are then paired by value, with a payment only
// eligible on or after its retention's date.
package retention

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"conciliador/internal/matcher"
	"conciliador/internal/models"
	"conciliador/internal/parsers"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Config controls retention reconciliation.
type Config struct {
	// RetentionTerm selects retention rows by the type column.
	RetentionTerm string `json:"retention_term"`

	// PaymentTerm selects payment rows by the type column.
	PaymentTerm string `json:"payment_term"`

	// ReversalTerm marks reversal entries in the type or history column.
	ReversalTerm string `json:"reversal_term"`

	// UG, when set, keeps only rows of that management unit.
	UG string `json:"ug,omitempty"`

	// AccountPrefix, when set, keeps only rows whose account starts with it.
	AccountPrefix string `json:"account_prefix,omitempty"`

	// Tolerance bounds amount equality for cancellation and matching.
	Tolerance decimal.Decimal `json:"tolerance"`

	// RequirePaymentAfter rejects payments dated before their retention.
	// Payments without a date always pass.
	RequirePaymentAfter bool `json:"require_payment_after"`

	// CheckMonth additionally rejects a payment whose history names a
	// calendar month other than the retention's.
	CheckMonth bool `json:"check_month"`
}

// DefaultConfig returns the retention reconciliation defaults.
func DefaultConfig() *Config {
	return &Config{
		RetentionTerm:       "Retenção Empenho",
		PaymentTerm:         "Pagamento de Documento Extra",
		ReversalTerm:        "Estorno",
		Tolerance:           decimal.NewFromFloat(0.01),
		RequirePaymentAfter: true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RetentionTerm) == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "retention_term", "", nil)
	}
	if strings.TrimSpace(c.PaymentTerm) == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "payment_term", "", nil)
	}
	if !c.Tolerance.IsPositive() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "tolerance", c.Tolerance, nil)
	}
	return nil
}

// Status classifies one result row.
type Status string

const (
	StatusReconciled     Status = "reconciled"
	StatusPendingPayment Status = "retained-without-payment"
	StatusUnretained     Status = "paid-without-retention"
)

// Row is one line of the retention report: a retention with its payment,
// a retention still awaiting payment, or a payment with no retention.
type Row struct {
	Commitment       string          `json:"commitment"`
	RetentionDate    time.Time       `json:"retention_date"`
	Retained         decimal.Decimal `json:"retained"`
	Paid             decimal.Decimal `json:"paid"`
	Difference       decimal.Decimal `json:"difference"`
	PaymentDate      time.Time       `json:"payment_date"`
	RetentionHistory string          `json:"retention_history"`
	PaymentHistory   string          `json:"payment_history"`
	Status           Status          `json:"status"`
}

// Summary aggregates one retention reconciliation run.
type Summary struct {
	Reconciled     int `json:"reconciled"`
	PendingPayment int `json:"pending_payment"`
	Unretained     int `json:"unretained"`

	CancelledRetentions int `json:"cancelled_retentions"`
	CancelledPayments   int `json:"cancelled_payments"`

	TotalRetained decimal.Decimal `json:"total_retained"`
	TotalPaid     decimal.Decimal `json:"total_paid"`

	// Balance is retained minus paid across all rows: the amount still
	// sitting on the retention account.
	Balance decimal.Decimal `json:"balance"`
}

// Result is the output of a retention reconciliation run. Rows are ordered
// pending first, then unretained payments, then reconciled pairs.
type Result struct {
	Rows    []Row   `json:"rows"`
	Summary Summary `json:"summary"`
}

// Reconciler runs retention reconciliation over parsed ledger rows.
type Reconciler struct {
	config *Config
	log    logger.Logger
}

// New creates a Reconciler, falling back to DefaultConfig when nil.
func New(config *Config) (*Reconciler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Reconciler{
		config: config,
		log:    logger.WithComponent("retention"),
	}, nil
}

// Reconcile classifies the export's rows, cancels reversals, pairs the
// surviving retentions with payments and buckets what remains.
func (r *Reconciler) Reconcile(rows []parsers.LedgerRow) (*Result, error) {
	retentions, retentionReversals, payments, paymentReversals := r.classify(rows)

	retentions, cancelledRet := r.cancelReversals(retentions, retentionReversals)
	payments, cancelledPay := r.cancelReversals(payments, paymentReversals)

	r.log.WithFields(logger.Fields{
		"retentions":           len(retentions),
		"payments":             len(payments),
		"cancelled_retentions": cancelledRet,
		"cancelled_payments":   cancelledPay,
	}).Debug("Classified retention export")

	result, err := r.match(retentions, payments)
	if err != nil {
		return nil, err
	}

	result.Summary.CancelledRetentions = cancelledRet
	result.Summary.CancelledPayments = cancelledPay
	return result, nil
}

func (r *Reconciler) classify(rows []parsers.LedgerRow) (retentions, retentionReversals, payments, paymentReversals []parsers.LedgerRow) {
	for _, row := range rows {
		if r.config.UG != "" && row.UG != r.config.UG {
			continue
		}
		if r.config.AccountPrefix != "" && !strings.HasPrefix(row.Account, r.config.AccountPrefix) {
			continue
		}

		isRetentionType := containsFold(row.Type, r.config.RetentionTerm)
		isReversalName := containsFold(row.Type, r.config.ReversalTerm) ||
			containsFold(row.History, r.config.ReversalTerm)

		switch {
		case row.IsCredit() && isRetentionType:
			// Retentions anchor the date predicate; a dateless one
			// cannot be reconciled.
			if row.Date.IsZero() {
				continue
			}
			retentions = append(retentions, row)
		case row.IsDebit() && (isRetentionType || isReversalName):
			retentionReversals = append(retentionReversals, row)
		case row.IsDebit() && containsFold(row.Type, r.config.PaymentTerm):
			payments = append(payments, row)
		case row.IsCredit() && isReversalName:
			paymentReversals = append(paymentReversals, row)
		}
	}
	return
}

// cancelReversals removes, for each reversal, the first original with the
// same commitment and an equal amount. Unmatched reversals are discarded.
func (r *Reconciler) cancelReversals(originals, reversals []parsers.LedgerRow) ([]parsers.LedgerRow, int) {
	cancelled := make(map[int]bool)

	for _, reversal := range reversals {
		for i, original := range originals {
			if cancelled[i] || original.Commitment != reversal.Commitment {
				continue
			}
			if !models.AmountsWithinTolerance(original.Amount, reversal.Amount, r.config.Tolerance) {
				continue
			}
			cancelled[i] = true
			break
		}
	}

	if len(cancelled) == 0 {
		return originals, 0
	}

	out := make([]parsers.LedgerRow, 0, len(originals)-len(cancelled))
	for i, row := range originals {
		if !cancelled[i] {
			out = append(out, row)
		}
	}
	return out, len(cancelled)
}

// match pairs retentions with payments through the matching engine: value
// only, dates unconstrained by the tier, with the payment-after-retention
// rule injected as a predicate.
func (r *Reconciler) match(retentions, payments []parsers.LedgerRow) (*Result, error) {
	config := matcher.DefaultConfig()
	config.Tolerance = r.config.Tolerance
	config.EnableExact = false
	config.EnableGrouped = false
	config.ValueOnlyDates = matcher.DateModeIgnore
	config.Predicate = r.paymentEligible

	engine := matcher.NewEngine(config)
	if err := engine.LoadStatements(toTransactions(retentions, models.SideStatement)); err != nil {
		return nil, errors.ReconciliationError(errors.CodeDataInconsistent, "loading retentions", err)
	}
	if err := engine.LoadLedger(toTransactions(payments, models.SideLedger)); err != nil {
		return nil, errors.ReconciliationError(errors.CodeDataInconsistent, "loading payments", err)
	}

	matched, err := engine.Reconcile()
	if err != nil {
		return nil, errors.ReconciliationError(errors.CodeMatchingFailed, "retention matching", err)
	}

	result := &Result{Rows: make([]Row, 0, len(matched.Matched)+len(matched.StatementResidue)+len(matched.LedgerResidue))}
	summary := &result.Summary
	summary.TotalRetained = decimal.Zero
	summary.TotalPaid = decimal.Zero

	for _, pair := range matched.Matched {
		result.Rows = append(result.Rows, Row{
			Commitment:       pair.Statement.DocumentCode,
			RetentionDate:    pair.Statement.Date,
			Retained:         pair.Statement.Amount,
			Paid:             pair.Ledger.Amount,
			Difference:       pair.Statement.Amount.Sub(pair.Ledger.Amount),
			PaymentDate:      pair.Ledger.Date,
			RetentionHistory: pair.Statement.Description,
			PaymentHistory:   pair.Ledger.Description,
			Status:           StatusReconciled,
		})
		summary.Reconciled++
	}

	for _, tx := range matched.StatementResidue {
		result.Rows = append(result.Rows, Row{
			Commitment:       tx.DocumentCode,
			RetentionDate:    tx.Date,
			Retained:         tx.Amount,
			Paid:             decimal.Zero,
			Difference:       tx.Amount,
			RetentionHistory: tx.Description,
			Status:           StatusPendingPayment,
		})
		summary.PendingPayment++
	}

	for _, tx := range matched.LedgerResidue {
		result.Rows = append(result.Rows, Row{
			Commitment:     tx.DocumentCode,
			Retained:       decimal.Zero,
			Paid:           tx.Amount,
			Difference:     tx.Amount.Neg(),
			PaymentDate:    tx.Date,
			PaymentHistory: tx.Description,
			Status:         StatusUnretained,
		})
		summary.Unretained++
	}

	for _, row := range result.Rows {
		summary.TotalRetained = summary.TotalRetained.Add(row.Retained)
		summary.TotalPaid = summary.TotalPaid.Add(row.Paid)
	}
	summary.Balance = summary.TotalRetained.Sub(summary.TotalPaid)

	sortRows(result.Rows)
	return result, nil
}

// paymentEligible is the predicate injected into the matching tiers: a
// payment must not predate its retention, and when month checking is on,
// a history naming a different month disqualifies it.
func (r *Reconciler) paymentEligible(retention, payment *models.Transaction) bool {
	if r.config.RequirePaymentAfter && retention.HasDate() && payment.HasDate() &&
		payment.Date.Before(retention.Date) {
		return false
	}
	if r.config.CheckMonth && !monthCompatible(payment.Description, retention.Date) {
		return false
	}
	return true
}

func toTransactions(rows []parsers.LedgerRow, side models.Side) []*models.Transaction {
	out := make([]*models.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.NewTransaction(row.Date, row.History, row.Commitment, row.Amount, side))
	}
	return out
}

func statusOrder(s Status) int {
	switch s {
	case StatusPendingPayment:
		return 0
	case StatusUnretained:
		return 1
	default:
		return 2
	}
}

// sortRows orders the report: pending retentions first, unretained payments
// next, reconciled pairs last, each bucket by date.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if a, b := statusOrder(rows[i].Status), statusOrder(rows[j].Status); a != b {
			return a < b
		}
		if !rows[i].RetentionDate.Equal(rows[j].RetentionDate) {
			return rows[i].RetentionDate.Before(rows[j].RetentionDate)
		}
		return rows[i].PaymentDate.Before(rows[j].PaymentDate)
	})
}

// monthNames maps month numbers to their accent-free Portuguese names as
// payment histories spell them.
var monthNames = map[time.Month]string{
	time.January: "JANEIRO", time.February: "FEVEREIRO", time.March: "MARCO",
	time.April: "ABRIL", time.May: "MAIO", time.June: "JUNHO",
	time.July: "JULHO", time.August: "AGOSTO", time.September: "SETEMBRO",
	time.October: "OUTUBRO", time.November: "NOVEMBRO", time.December: "DEZEMBRO",
}

// monthCompatible reports whether a payment history's named months include
// the retention's month. Histories naming no month always pass.
func monthCompatible(history string, retentionDate time.Time) bool {
	if retentionDate.IsZero() {
		return true
	}

	normalized := stripAccents(strings.ToUpper(history))
	named := false
	for _, name := range monthNames {
		if strings.Contains(normalized, name) {
			if name == monthNames[retentionDate.Month()] {
				return true
			}
			named = true
		}
	}
	return !named
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(
		stripAccents(strings.ToUpper(haystack)),
		stripAccents(strings.ToUpper(needle)))
}
