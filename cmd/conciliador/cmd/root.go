package cmd

import (
	"fmt"
	"os"

	"conciliador/cmd/conciliador/config"
	"conciliador/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "conciliador",
	Short: "Bank reconciliation for municipal ledger exports",
	Long: `Conciliador reconciles bank statements against general ledger exports
from municipal accounting systems. It matches debits in three tiers (exact,
value-only and grouped sums), reconciles tax retentions against their
payments and extracts bank fee lines.

Examples:
  conciliador reconcile --statement extrato.txt --ledger razao.csv
  conciliador reconcile -s extrato.txt -l razao.xlsx -o report.xlsx
  conciliador retentions --ledger retencoes.csv --check-month
  conciliador fees --statement extrato.txt --format csv`,
	Version: getVersionString(),
}

// Execute runs the root command and maps failures to process exit codes.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return NewErrorHandler().Handle(err)
	}
	return 0
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(4)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	viper.SetEnvPrefix("CONCILIADOR")
	viper.AutomaticEnv()

	log, err := logger.NewLogger(config.LoggerConfig(
		viper.GetBool("verbose"), viper.GetString("log-format")))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %s\n", err)
		os.Exit(4)
	}
	logger.SetGlobalLogger(log)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
