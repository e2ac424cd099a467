package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"conciliador/cmd/conciliador/config"
	"conciliador/internal/reconciler"
	"conciliador/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	statementFile string
	ledgerFile    string
	outputFormat  string
	outputFile    string
	defaultYear   int
	tolerance     float64
	documentsMode string
	tieBreakMode  string
	dateMode      string
	noValueOnly   bool
	noGrouped     bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a bank statement against a ledger export",
	Long: `Reconcile matches the debits of a bank statement against the payment rows
of a general ledger export.

The statement is a text export (one transaction per line, Brazilian date and
amount formats); the ledger is a positional CSV, XLSX or XLS export without
headers. Matching runs in three tiers: exact (same day, same document, same
value), value-only (same value, sentinel document) and grouped sums over the
residue.

Examples:
  # Console report
  conciliador reconcile --statement extrato.txt --ledger razao.csv

  # Spreadsheet report for the working papers
  conciliador reconcile -s extrato.txt -l razao.xlsx -o conciliacao.xlsx

  # Statement dates without a year, completed to 2023
  conciliador reconcile -s extrato.txt -l razao.csv --year 2023

  # Disable the grouped tier
  conciliador reconcile -s extrato.txt -l razao.csv --no-grouped`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&statementFile, "statement", "s", "", "path to the bank statement text file (required)")
	reconcileCmd.Flags().StringVarP(&ledgerFile, "ledger", "l", "", "path to the ledger export (csv, xlsx or xls) (required)")

	reconcileCmd.Flags().StringVarP(&outputFormat, "format", "f", "console", "output format: console, json, csv, html, xlsx, pdf")
	reconcileCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file path (default: stdout, format inferred from extension)")

	reconcileCmd.Flags().IntVar(&defaultYear, "year", 0, "year completing statement dates without one (default: current year)")
	reconcileCmd.Flags().Float64VarP(&tolerance, "tolerance", "t", 0, "amount tolerance in currency units (default 0.01)")
	reconcileCmd.Flags().StringVar(&documentsMode, "documents", "numeric", "document comparison: numeric, literal")
	reconcileCmd.Flags().StringVar(&tieBreakMode, "tie-break", "first-found", "candidate tie break: first-found, closest-date")
	reconcileCmd.Flags().StringVar(&dateMode, "date-mode", "same-day", "value-only tier date constraint: same-day, missing-wildcard, ignore")
	reconcileCmd.Flags().BoolVar(&noValueOnly, "no-value-only", false, "disable the value-only matching tier")
	reconcileCmd.Flags().BoolVar(&noGrouped, "no-grouped", false, "disable the grouped sum tier")

	reconcileCmd.MarkFlagRequired("statement")
	reconcileCmd.MarkFlagRequired("ledger")

	viper.BindPFlag("statement", reconcileCmd.Flags().Lookup("statement"))
	viper.BindPFlag("ledger", reconcileCmd.Flags().Lookup("ledger"))
	viper.BindPFlag("format", reconcileCmd.Flags().Lookup("format"))
	viper.BindPFlag("output", reconcileCmd.Flags().Lookup("output"))
	viper.BindPFlag("year", reconcileCmd.Flags().Lookup("year"))
	viper.BindPFlag("tolerance", reconcileCmd.Flags().Lookup("tolerance"))
	viper.BindPFlag("documents", reconcileCmd.Flags().Lookup("documents"))
	viper.BindPFlag("tie-break", reconcileCmd.Flags().Lookup("tie-break"))
	viper.BindPFlag("date-mode", reconcileCmd.Flags().Lookup("date-mode"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	statementFile = viper.GetString("statement")
	ledgerFile = viper.GetString("ledger")
	outputFormat = viper.GetString("format")
	outputFile = viper.GetString("output")
	defaultYear = viper.GetInt("year")
	tolerance = viper.GetFloat64("tolerance")
	documentsMode = viper.GetString("documents")
	tieBreakMode = viper.GetString("tie-break")
	dateMode = viper.GetString("date-mode")

	if err := validateFileExists(statementFile, "statement file"); err != nil {
		return err
	}
	if err := validateFileExists(ledgerFile, "ledger file"); err != nil {
		return err
	}

	if !reporter.Format(outputFormat).IsValid() {
		return fmt.Errorf("invalid output format %q. Valid formats: console, json, csv, html, xlsx, pdf", outputFormat)
	}

	if tolerance < 0 {
		return fmt.Errorf("tolerance cannot be negative")
	}
	if defaultYear != 0 && (defaultYear < 1900 || defaultYear > 2200) {
		return fmt.Errorf("year %d out of range", defaultYear)
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	matchingConfig, err := config.CreateMatchingConfig(config.MatchingOptions{
		Tolerance:   tolerance,
		Documents:   documentsMode,
		TieBreak:    tieBreakMode,
		DateMode:    dateMode,
		NoValueOnly: noValueOnly,
		NoGrouped:   noGrouped,
	})
	if err != nil {
		return err
	}

	service, err := reconciler.NewService(config.CreateServiceConfig(defaultYear, matchingConfig))
	if err != nil {
		return err
	}

	result, err := service.Reconcile(ctx, &reconciler.Request{
		StatementFile: statementFile,
		LedgerFile:    ledgerFile,
	})
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(outputFormat, "")
	if err != nil {
		return err
	}
	generator, err := reporter.NewGenerator(reportConfig)
	if err != nil {
		return err
	}

	if outputFile != "" {
		return generator.WriteFile(result, outputFile)
	}
	return generator.Generate(result, os.Stdout)
}
