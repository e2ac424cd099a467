// Package reconciler orchestrates the reconciliation pipelines: parsing the
// input files, normalizing the statement, inferring ledger document codes and
// running the matching engine. The CLI commands are thin wrappers around the
// Service in this package.
package reconciler

import (
	"context"
	"time"

	"conciliador/internal/matcher"
	"conciliador/internal/models"
	"conciliador/internal/normalize"
	"conciliador/internal/parsers"
	"conciliador/internal/retention"
	"conciliador/pkg/errors"
	"conciliador/pkg/logger"

	"github.com/shopspring/decimal"
)

// Config aggregates the per-stage configurations of a reconciliation run.
// Nil members fall back to their stage defaults.
type Config struct {
	Statement *parsers.StatementConfig `json:"statement,omitempty"`
	Ledger    *parsers.LedgerConfig    `json:"ledger,omitempty"`
	Normalize *normalize.Config        `json:"normalize,omitempty"`
	Matching  *matcher.Config          `json:"matching,omitempty"`
	Retention *retention.Config        `json:"retention,omitempty"`
}

// DefaultConfig returns a Config with every stage on its defaults.
func DefaultConfig() *Config {
	return &Config{
		Statement: parsers.DefaultStatementConfig(),
		Ledger:    parsers.DefaultLedgerConfig(),
		Normalize: normalize.DefaultConfig(),
		Matching:  matcher.DefaultConfig(),
		Retention: retention.DefaultConfig(),
	}
}

// Service runs the reconciliation pipelines.
type Service struct {
	statementParser *parsers.StatementParser
	ledgerParser    *parsers.LedgerParser
	normalizer      *normalize.Normalizer
	matching        *matcher.Config
	retention       *retention.Config
	log             logger.Logger
}

// NewService builds a Service from the given configuration, validating each
// stage's settings up front.
func NewService(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}

	statementConfig := config.Statement
	if statementConfig == nil {
		statementConfig = parsers.DefaultStatementConfig()
	}
	statementParser, err := parsers.NewStatementParser(statementConfig)
	if err != nil {
		return nil, err
	}

	ledgerConfig := config.Ledger
	if ledgerConfig == nil {
		ledgerConfig = parsers.DefaultLedgerConfig()
	}
	ledgerParser, err := parsers.NewLedgerParser(ledgerConfig)
	if err != nil {
		return nil, err
	}

	matching := config.Matching
	if matching == nil {
		matching = matcher.DefaultConfig()
	}
	if err := matching.Validate(); err != nil {
		return nil, err
	}
	matching = matching.Clone()

	retentionConfig := config.Retention
	if retentionConfig == nil {
		retentionConfig = retention.DefaultConfig()
	}
	if err := retentionConfig.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		statementParser: statementParser,
		ledgerParser:    ledgerParser,
		normalizer:      normalize.New(config.Normalize),
		matching:        matching,
		retention:       retentionConfig,
		log:             logger.WithComponent("reconciler"),
	}, nil
}

// Request names the two input files of a statement reconciliation run.
type Request struct {
	StatementFile string `json:"statement_file"`
	LedgerFile    string `json:"ledger_file"`
}

// Validate checks that both inputs are present.
func (r *Request) Validate() error {
	if r.StatementFile == "" {
		return errors.ValidationError(errors.CodeMissingField, "statement_file", "", nil).
			WithSuggestion("Pass the bank statement file with --statement")
	}
	if r.LedgerFile == "" {
		return errors.ValidationError(errors.CodeMissingField, "ledger_file", "", nil).
			WithSuggestion("Pass the ledger export file with --ledger")
	}
	return nil
}

// Result is the output of a statement reconciliation run.
type Result struct {
	Match *matcher.Result `json:"match"`

	// CancelledReturns counts statement debits removed by returned
	// transfer credits during normalization.
	CancelledReturns int `json:"cancelled_returns"`

	StatementStats *parsers.ParseStats `json:"statement_stats"`
	LedgerStats    *parsers.ParseStats `json:"ledger_stats"`

	ProcessedAt time.Time     `json:"processed_at"`
	Duration    time.Duration `json:"duration"`
}

// Reconcile runs the statement pipeline: parse both files, normalize the
// statement, infer ledger document codes from it and match the two sides.
func (s *Service) Reconcile(ctx context.Context, request *Request) (*Result, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	op := logger.NewOperationLogger("reconcile", s.log).
		WithField("statement_file", request.StatementFile).
		WithField("ledger_file", request.LedgerFile)
	startTime := time.Now()

	op.Step("parse statement")
	statements, statementStats, err := s.statementParser.ParseFile(ctx, request.StatementFile)
	if err != nil {
		op.Error(err, "Statement parsing failed")
		return nil, err
	}

	op.Step("normalize statement")
	statements, cancelled := s.normalizer.Statement(statements)

	op.Step("parse ledger")
	rows, ledgerStats, err := s.ledgerParser.ParseFile(ctx, request.LedgerFile)
	if err != nil {
		op.Error(err, "Ledger parsing failed")
		return nil, err
	}

	op.Step("infer ledger documents")
	ledgerConfig := s.ledgerParser.Config()
	lookup := parsers.NewDocumentLookup(statements, ledgerConfig.FeeTerm, ledgerConfig.FeeLabel)
	ledger := s.ledgerParser.Transactions(rows, lookup)

	op.Step("match")
	match, err := s.match(statements, ledger)
	if err != nil {
		op.Error(err, "Matching failed")
		return nil, err
	}

	op.WithField("matched", len(match.Matched)).Success("Reconciliation completed")

	return &Result{
		Match:            match,
		CancelledReturns: cancelled,
		StatementStats:   statementStats,
		LedgerStats:      ledgerStats,
		ProcessedAt:      startTime,
		Duration:         time.Since(startTime),
	}, nil
}

func (s *Service) match(statements, ledger []*models.Transaction) (*matcher.Result, error) {
	engine := matcher.NewEngine(s.matching.Clone())

	if err := engine.LoadStatements(statements); err != nil {
		return nil, errors.ReconciliationError(errors.CodeDataInconsistent, "loading statement side", err)
	}
	if err := engine.LoadLedger(ledger); err != nil {
		return nil, errors.ReconciliationError(errors.CodeDataInconsistent, "loading ledger side", err)
	}

	result, err := engine.Reconcile()
	if err != nil {
		return nil, errors.ReconciliationError(errors.CodeMatchingFailed, "statement matching", err)
	}
	return result, nil
}

// RetentionResult is the output of a retention reconciliation run.
type RetentionResult struct {
	Retention *retention.Result `json:"retention"`

	LedgerStats *parsers.ParseStats `json:"ledger_stats"`

	ProcessedAt time.Time     `json:"processed_at"`
	Duration    time.Duration `json:"duration"`
}

// ReconcileRetentions runs the retention pipeline over a retention-account
// ledger export. The export uses the retention column layout regardless of
// the layout configured for statement reconciliation.
func (s *Service) ReconcileRetentions(ctx context.Context, ledgerFile string) (*RetentionResult, error) {
	if ledgerFile == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "ledger_file", "", nil).
			WithSuggestion("Pass the retention account export with --ledger")
	}

	op := logger.NewOperationLogger("reconcile_retentions", s.log).
		WithField("ledger_file", ledgerFile)
	startTime := time.Now()

	ledgerConfig := *s.ledgerParser.Config()
	ledgerConfig.Layout = parsers.RetentionLedgerLayout()
	parser, err := parsers.NewLedgerParser(&ledgerConfig)
	if err != nil {
		return nil, err
	}

	op.Step("parse ledger")
	rows, stats, err := parser.ParseFile(ctx, ledgerFile)
	if err != nil {
		op.Error(err, "Ledger parsing failed")
		return nil, err
	}

	op.Step("reconcile retentions")
	reconciler, err := retention.New(s.retention)
	if err != nil {
		return nil, err
	}
	result, err := reconciler.Reconcile(rows)
	if err != nil {
		op.Error(err, "Retention reconciliation failed")
		return nil, err
	}

	op.WithField("rows", len(result.Rows)).Success("Retention reconciliation completed")

	return &RetentionResult{
		Retention:   result,
		LedgerStats: stats,
		ProcessedAt: startTime,
		Duration:    time.Since(startTime),
	}, nil
}

// FeesResult is the output of a fee extraction run.
type FeesResult struct {
	Fees  []*models.Transaction `json:"fees"`
	Total decimal.Decimal       `json:"total"`

	StatementStats *parsers.ParseStats `json:"statement_stats"`

	ProcessedAt time.Time     `json:"processed_at"`
	Duration    time.Duration `json:"duration"`
}

// ExtractFees parses a statement and returns its individual fee debits,
// unaggregated, with returned transfers already cancelled.
func (s *Service) ExtractFees(ctx context.Context, statementFile string) (*FeesResult, error) {
	if statementFile == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "statement_file", "", nil).
			WithSuggestion("Pass the bank statement file with --statement")
	}

	op := logger.NewOperationLogger("extract_fees", s.log).
		WithField("statement_file", statementFile)
	startTime := time.Now()

	statements, stats, err := s.statementParser.ParseFile(ctx, statementFile)
	if err != nil {
		op.Error(err, "Statement parsing failed")
		return nil, err
	}

	statements, _ = s.normalizer.CancelReturnedTransfers(statements)
	fees := s.normalizer.ExtractFees(statements)

	op.WithField("fees", len(fees)).Success("Fee extraction completed")

	return &FeesResult{
		Fees:           fees,
		Total:          models.SumAmounts(fees),
		StatementStats: stats,
		ProcessedAt:    startTime,
		Duration:       time.Since(startTime),
	}, nil
}
