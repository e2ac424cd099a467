package cmd

import (
	"context"
	"fmt"
	"os"

	"conciliador/cmd/conciliador/config"
	"conciliador/internal/reconciler"
	"conciliador/internal/reporter"

	"github.com/spf13/cobra"
)

// Flags for the fees command
var (
	feesStatementFile string
	feesYear          int
	feesFormat        string
	feesOutput        string
)

// feesCmd represents the fees command
var feesCmd = &cobra.Command{
	Use:   "fees",
	Short: "List the bank fee debits of a statement",
	Long: `Fees lists a statement's individual bank fee lines without the per-day
aggregation the reconciliation applies, so each charged tariff can be
checked against the contracted fee schedule.

Examples:
  conciliador fees --statement extrato.txt
  conciliador fees -s extrato.txt --format csv -o tarifas.csv
  conciliador fees -s extrato.txt -o tarifas.xlsx`,

	PreRunE: validateFeesFlags,
	RunE:    runFees,
}

func init() {
	rootCmd.AddCommand(feesCmd)

	feesCmd.Flags().StringVarP(&feesStatementFile, "statement", "s", "", "path to the bank statement text file (required)")
	feesCmd.Flags().IntVar(&feesYear, "year", 0, "year completing statement dates without one (default: current year)")
	feesCmd.Flags().StringVarP(&feesFormat, "format", "f", "console", "output format: console, json, csv, html, xlsx, pdf")
	feesCmd.Flags().StringVarP(&feesOutput, "output", "o", "", "output file path (default: stdout)")

	feesCmd.MarkFlagRequired("statement")
}

func validateFeesFlags(cmd *cobra.Command, args []string) error {
	if err := validateFileExists(feesStatementFile, "statement file"); err != nil {
		return err
	}
	if !reporter.Format(feesFormat).IsValid() {
		return fmt.Errorf("invalid output format %q. Valid formats: console, json, csv, html, xlsx, pdf", feesFormat)
	}
	return nil
}

func runFees(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	serviceConfig := reconciler.DefaultConfig()
	serviceConfig.Statement = config.CreateStatementConfig(feesYear)

	service, err := reconciler.NewService(serviceConfig)
	if err != nil {
		return err
	}

	result, err := service.ExtractFees(ctx, feesStatementFile)
	if err != nil {
		return err
	}

	reportConfig, err := config.CreateReportConfig(feesFormat, "Bank Fees")
	if err != nil {
		return err
	}

	if feesOutput != "" && reporter.Format(feesFormat) == reporter.FormatConsole {
		reportConfig.Format = reporter.FormatForPath(feesOutput)
	}

	generator, err := reporter.NewGenerator(reportConfig)
	if err != nil {
		return err
	}

	out := os.Stdout
	if feesOutput != "" {
		f, err := os.Create(feesOutput)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return generator.GenerateFees(result, out)
}
