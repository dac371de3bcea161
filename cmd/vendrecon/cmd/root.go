package cmd

import (
	"fmt"
	"os"

	apperrors "vending-reconciliation-service/pkg/errors"
	"vending-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vendrecon",
	Short: "Vending machine cash reconciliation tool",
	Long: `Vendrecon reconciles cash physically collected from vending machines
against the cash sales each machine recorded. It builds collection periods,
matches sales into them, classifies each period against a tolerance, and
reports shortages and overages.

Examples:
  vendrecon reconcile --machines-file machines.csv --sales-file sales.csv \
    --collections-file collections.csv --from 2026-01-01 --to 2026-01-31
  vendrecon serve --addr :8080
  vendrecon version`,
	Version: getVersionString(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps an error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if appErr, ok := apperrors.As(err); ok {
		return appErr.ExitCode()
	}
	return 1
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// Read environment variables that match
	viper.SetEnvPrefix("VENDRECON")
	viper.AutomaticEnv()
}

// newCommandLogger builds the logger commands share, honoring --verbose
func newCommandLogger() logger.Logger {
	level := logger.InfoLevel
	if viper.GetBool("verbose") {
		level = logger.DebugLevel
	}
	log, err := logger.NewLogger(&logger.Config{
		Level:  level,
		Format: logger.TextFormat,
		Output: os.Stderr,
	})
	if err != nil {
		return logger.Nop()
	}
	return log
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
