package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vending-reconciliation-service/internal/engine"
	"vending-reconciliation-service/internal/export"
	"vending-reconciliation-service/internal/parsers"
	"vending-reconciliation-service/internal/reporter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	machinesFile    string
	salesFile       string
	collectionsFile string
	fromDate        string
	toDate          string
	machineCode     string
	tolerance       float64
	outputFormat    string
	outputFile      string
	excelFile       string
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile collected cash against recorded cash sales",
	Long: `Reconcile builds collection periods from a data snapshot, matches cash
sales into them and classifies each period against the tolerance.

This command requires three CSV files:
- A machine fleet file (id,code,name,location)
- A sales file (id,machine_code,method,status,amount,sold_at)
- A collections file (id,machine_id,operator,collected_at,amount,status)

Examples:
  # Reconcile all machines for January
  vendrecon reconcile --machines-file machines.csv --sales-file sales.csv \
    --collections-file collections.csv --from 2026-01-01 --to 2026-01-31

  # One machine, custom tolerance, JSON to a file
  vendrecon reconcile --machines-file machines.csv --sales-file sales.csv \
    --collections-file collections.csv --from 2026-01-01 --to 2026-01-31 \
    --machine-code VM-001 --tolerance 10 --output-format json --output-file report.json

  # Excel workbook alongside the console report
  vendrecon reconcile --machines-file machines.csv --sales-file sales.csv \
    --collections-file collections.csv --from 2026-01-01 --to 2026-01-31 \
    --excel-file report.xlsx`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&machinesFile, "machines-file", "m", "", "path to machine fleet CSV file (required)")
	reconcileCmd.Flags().StringVarP(&salesFile, "sales-file", "s", "", "path to sales CSV file (required)")
	reconcileCmd.Flags().StringVarP(&collectionsFile, "collections-file", "c", "", "path to collections CSV file (required)")
	reconcileCmd.Flags().StringVar(&fromDate, "from", "", "window start date, inclusive of later collections (YYYY-MM-DD, required)")
	reconcileCmd.Flags().StringVar(&toDate, "to", "", "window end date (YYYY-MM-DD, required)")

	// Scope and tolerance flags
	reconcileCmd.Flags().StringVar(&machineCode, "machine-code", "", "restrict to one machine code (default: all machines)")
	reconcileCmd.Flags().Float64VarP(&tolerance, "tolerance", "t", 5.0, "matched tolerance percentage (0.0-100.0)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().StringVar(&excelFile, "excel-file", "", "also write an Excel workbook to this path")

	// Mark required flags
	reconcileCmd.MarkFlagRequired("machines-file")
	reconcileCmd.MarkFlagRequired("sales-file")
	reconcileCmd.MarkFlagRequired("collections-file")
	reconcileCmd.MarkFlagRequired("from")
	reconcileCmd.MarkFlagRequired("to")

	// Bind flags to viper
	viper.BindPFlag("machines-file", reconcileCmd.Flags().Lookup("machines-file"))
	viper.BindPFlag("sales-file", reconcileCmd.Flags().Lookup("sales-file"))
	viper.BindPFlag("collections-file", reconcileCmd.Flags().Lookup("collections-file"))
	viper.BindPFlag("from", reconcileCmd.Flags().Lookup("from"))
	viper.BindPFlag("to", reconcileCmd.Flags().Lookup("to"))
	viper.BindPFlag("machine-code", reconcileCmd.Flags().Lookup("machine-code"))
	viper.BindPFlag("tolerance", reconcileCmd.Flags().Lookup("tolerance"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("excel-file", reconcileCmd.Flags().Lookup("excel-file"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	machinesFile = viper.GetString("machines-file")
	salesFile = viper.GetString("sales-file")
	collectionsFile = viper.GetString("collections-file")
	fromDate = viper.GetString("from")
	toDate = viper.GetString("to")
	machineCode = viper.GetString("machine-code")
	tolerance = viper.GetFloat64("tolerance")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	excelFile = viper.GetString("excel-file")

	if err := validateFileExists(machinesFile, "machine fleet file"); err != nil {
		return err
	}
	if err := validateFileExists(salesFile, "sales file"); err != nil {
		return err
	}
	if err := validateFileExists(collectionsFile, "collections file"); err != nil {
		return err
	}

	if _, err := time.Parse("2006-01-02", fromDate); err != nil {
		return fmt.Errorf("invalid from date format. Use YYYY-MM-DD: %w", err)
	}
	if _, err := time.Parse("2006-01-02", toDate); err != nil {
		return fmt.Errorf("invalid to date format. Use YYYY-MM-DD: %w", err)
	}
	start, _ := time.Parse("2006-01-02", fromDate)
	end, _ := time.Parse("2006-01-02", toDate)
	if start.After(end) {
		return fmt.Errorf("from date cannot be after to date")
	}

	if tolerance < 0.0 || tolerance > 100.0 {
		return fmt.Errorf("tolerance must be between 0.0 and 100.0")
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	for _, path := range []string{outputFile, excelFile} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
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

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log := newCommandLogger()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Machines file: %s\n", machinesFile)
		fmt.Fprintf(os.Stderr, "Sales file: %s\n", salesFile)
		fmt.Fprintf(os.Stderr, "Collections file: %s\n", collectionsFile)
		fmt.Fprintf(os.Stderr, "Window: %s .. %s\n", fromDate, toDate)
	}

	snapshot, err := parsers.LoadSnapshot(machinesFile, salesFile, collectionsFile)
	if err != nil {
		return err
	}

	settings := engine.StaticSettings{
		Tolerance: decimal.NewFromFloat(tolerance),
		Threshold: decimal.NewFromFloat(tolerance),
	}
	eng, err := engine.NewEngine(snapshot, snapshot, settings, snapshot, log)
	if err != nil {
		return fmt.Errorf("failed to create reconciliation engine: %w", err)
	}

	from, _ := time.Parse("2006-01-02", fromDate)
	// to date is inclusive: extend to end of day
	to, _ := time.Parse("2006-01-02", toDate)
	to = to.Add(24*time.Hour - time.Nanosecond)

	result, err := eng.ComputeReconciliation(ctx, &engine.ReconciliationRequest{
		MachineCode: machineCode,
		From:        from,
		To:          to,
	})
	if err != nil {
		return err
	}

	reportConfig := reporter.DefaultReportConfig()
	reportConfig.Format = reporter.OutputFormat(outputFormat)
	gen, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := gen.GenerateReport(result, out); err != nil {
		return err
	}

	if excelFile != "" {
		if err := export.SaveExcel(excelFile, result); err != nil {
			return err
		}
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Excel workbook written to %s\n", excelFile)
		}
	}

	return nil
}
