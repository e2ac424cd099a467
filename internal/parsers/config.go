package parsers

import (
	"fmt"
	"strings"
	"time"
)

// StatementConfig configures the bank-statement line parser.
type StatementConfig struct {
	// DefaultYear completes statement dates that omit the year ("05/03").
	DefaultYear int `json:"default_year"`

	// ExclusionTerms drop noise lines: running balances, automatic
	// investment sweeps. Matching is case-insensitive substring.
	ExclusionTerms []string `json:"exclusion_terms"`

	// ReturnTerms identify returned-transfer credit lines, the only credits
	// the parser keeps. They are emitted with a negative amount so the
	// normalizer can cancel them against their debit.
	ReturnTerms []string `json:"return_terms"`

	// MinDocumentDigits is the minimum digit count for a history token to
	// qualify as a document code.
	MinDocumentDigits int `json:"min_document_digits"`
}

// DefaultStatementConfig returns the settings for Banco do Brasil statement
// extractions.
func DefaultStatementConfig() *StatementConfig {
	return &StatementConfig{
		DefaultYear: time.Now().Year(),
		ExclusionTerms: []string{
			"SALDO",
			"S A L D O",
			"Resgate",
			"BB-APLIC C.PRZ-APL.AUT",
			"1.972",
		},
		ReturnTerms:       []string{"TED DEVOLVIDA", "DEVOLUCAO", "DEVOLUÇÃO"},
		MinDocumentDigits: 4,
	}
}

// Validate checks the statement parser configuration.
func (c *StatementConfig) Validate() error {
	if c.DefaultYear < 0 {
		return fmt.Errorf("default year cannot be negative")
	}
	if c.MinDocumentDigits <= 0 {
		return fmt.Errorf("minimum document digits must be positive")
	}
	return nil
}

func (c *StatementConfig) isExcluded(description string) bool {
	upper := strings.ToUpper(description)
	for _, term := range c.ExclusionTerms {
		if strings.Contains(upper, strings.ToUpper(term)) {
			return true
		}
	}
	return false
}

func (c *StatementConfig) isReturnedTransfer(description string) bool {
	upper := strings.ToUpper(description)
	for _, term := range c.ReturnTerms {
		if strings.Contains(upper, strings.ToUpper(term)) {
			return true
		}
	}
	return false
}

// LedgerLayout maps the zero-based column positions of a ledger export.
// The accounting system emits no reliable header row, so positions are
// fixed per export kind. A -1 marks a column the layout does not carry.
type LedgerLayout struct {
	UG          int `json:"ug"`
	Entry       int `json:"entry"`
	Date        int `json:"date"`
	DebitCredit int `json:"debit_credit"`
	Account     int `json:"account"`
	Amount      int `json:"amount"`
	Commitment  int `json:"commitment"`
	Type        int `json:"type"`
	AltHistory  int `json:"alt_history"`
	History     int `json:"history"`
}

// DefaultLedgerLayout is the layout of the general-ledger payment export
// used by bank reconciliation.
func DefaultLedgerLayout() LedgerLayout {
	return LedgerLayout{
		UG:          -1,
		Entry:       1,
		Date:        4,
		DebitCredit: 5,
		Account:     -1,
		Amount:      8,
		Commitment:  -1,
		Type:        25,
		AltHistory:  26,
		History:     27,
	}
}

// RetentionLedgerLayout is the layout of the retention-account export used
// by retention reconciliation.
func RetentionLedgerLayout() LedgerLayout {
	return LedgerLayout{
		UG:          0,
		Entry:       -1,
		Date:        4,
		DebitCredit: 5,
		Account:     6,
		Amount:      8,
		Commitment:  14,
		Type:        19,
		AltHistory:  -1,
		History:     27,
	}
}

// Validate checks that the columns every consumer relies on are mapped.
func (l LedgerLayout) Validate() error {
	if l.Date < 0 {
		return fmt.Errorf("date column must be mapped")
	}
	if l.DebitCredit < 0 {
		return fmt.Errorf("debit/credit column must be mapped")
	}
	if l.Amount < 0 {
		return fmt.Errorf("amount column must be mapped")
	}
	if l.History < 0 {
		return fmt.Errorf("history column must be mapped")
	}
	return nil
}

// LedgerConfig configures the ledger export parser and the row filter that
// selects reconciliation-relevant rows.
type LedgerConfig struct {
	Layout LedgerLayout `json:"layout"`

	// PaymentTerm selects payment rows by the type column.
	PaymentTerm string `json:"payment_term"`

	// TransferTerm selects same-entity transfer rows, kept only on the
	// credit side.
	TransferTerm string `json:"transfer_term"`

	// FeeTerm marks ledger histories that book bank fees; together with
	// FeeLabel it lets document inference meet the statement's synthetic
	// fee transaction.
	FeeTerm  string `json:"fee_term"`
	FeeLabel string `json:"fee_label"`
}

// DefaultLedgerConfig returns the settings for the municipal accounting
// system's payment export.
func DefaultLedgerConfig() *LedgerConfig {
	return &LedgerConfig{
		Layout:       DefaultLedgerLayout(),
		PaymentTerm:  "Pagamento",
		TransferTerm: "TRANSFERENCIA ENTRE CONTAS DE MESMA UG",
		FeeTerm:      "TARIFA",
		FeeLabel:     "Bank Fees",
	}
}

// Validate checks the ledger parser configuration.
func (c *LedgerConfig) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("invalid ledger layout: %w", err)
	}
	if strings.TrimSpace(c.PaymentTerm) == "" {
		return fmt.Errorf("payment term cannot be empty")
	}
	return nil
}
