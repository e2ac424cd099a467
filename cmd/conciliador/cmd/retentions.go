package cmd

import (
	"context"
	"fmt"
	"os"

	"conciliador/cmd/conciliador/config"
	"conciliador/internal/reconciler"
	"conciliador/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the retentions command
var (
	retentionLedgerFile string
	retentionUG         string
	accountPrefix       string
	checkMonth          bool
	noDateCheck         bool
	retentionTolerance  float64
	retentionFormat     string
	retentionOutput     string
)

// retentionsCmd represents the retentions command
var retentionsCmd = &cobra.Command{
	Use:   "retentions",
	Short: "Reconcile tax retentions against their payments",
	Long: `Retentions reconciles a retention account export against itself: credits
booked as commitment retentions against the debits that paid them out.
Reversal entries cancel their originals first, then retentions pair with
payments by value. A payment dated before its retention is not eligible.

Examples:
  conciliador retentions --ledger retencoes.csv
  conciliador retentions -l retencoes.xlsx --ug 170010 --account-prefix 2188
  conciliador retentions -l retencoes.csv --check-month -o retencoes.xlsx`,

	PreRunE: validateRetentionsFlags,
	RunE:    runRetentions,
}

func init() {
	rootCmd.AddCommand(retentionsCmd)

	retentionsCmd.Flags().StringVarP(&retentionLedgerFile, "ledger", "l", "", "path to the retention account export (csv, xlsx or xls) (required)")
	retentionsCmd.Flags().StringVar(&retentionUG, "ug", "", "keep only rows of this management unit")
	retentionsCmd.Flags().StringVar(&accountPrefix, "account-prefix", "", "keep only rows whose account starts with this prefix")
	retentionsCmd.Flags().BoolVar(&checkMonth, "check-month", false, "reject payments whose history names a different month")
	retentionsCmd.Flags().BoolVar(&noDateCheck, "no-date-check", false, "allow payments dated before their retention")
	retentionsCmd.Flags().Float64VarP(&retentionTolerance, "tolerance", "t", 0, "amount tolerance in currency units (default 0.01)")
	retentionsCmd.Flags().StringVarP(&retentionFormat, "format", "f", "console", "output format: console, json, csv, html, xlsx, pdf")
	retentionsCmd.Flags().StringVarP(&retentionOutput, "output", "o", "", "output file path (default: stdout)")

	retentionsCmd.MarkFlagRequired("ledger")
}

func validateRetentionsFlags(cmd *cobra.Command, args []string) error {
	if err := validateFileExists(retentionLedgerFile, "retention export"); err != nil {
		return err
	}
	if !reporter.Format(retentionFormat).IsValid() {
		return fmt.Errorf("invalid output format %q. Valid formats: console, json, csv, html, xlsx, pdf", retentionFormat)
	}
	if retentionTolerance < 0 {
		return fmt.Errorf("tolerance cannot be negative")
	}
	return nil
}

func runRetentions(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	serviceConfig := reconciler.DefaultConfig()
	serviceConfig.Retention = config.CreateRetentionConfig(config.RetentionOptions{
		UG:            retentionUG,
		AccountPrefix: accountPrefix,
		CheckMonth:    checkMonth,
		NoDateCheck:   noDateCheck,
		Tolerance:     retentionTolerance,
	})

	service, err := reconciler.NewService(serviceConfig)
	if err != nil {
		return err
	}

	result, err := service.ReconcileRetentions(ctx, retentionLedgerFile)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(retentionFormat, "Retention Reconciliation")
	if err != nil {
		return err
	}

	if retentionOutput != "" && reporter.Format(retentionFormat) == reporter.FormatConsole {
		reportConfig.Format = reporter.FormatForPath(retentionOutput)
	}

	generator, err := reporter.NewGenerator(reportConfig)
	if err != nil {
		return err
	}

	out := os.Stdout
	if retentionOutput != "" {
		f, err := os.Create(retentionOutput)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if viper.GetBool("verbose") {
		summary := result.Retention.Summary
		fmt.Fprintf(os.Stderr, "Reconciled %d, pending %d, unretained %d\n",
			summary.Reconciled, summary.PendingPayment, summary.Unretained)
	}

	return generator.GenerateRetention(result, out)
}
