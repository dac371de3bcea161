// Package reporter renders reconciliation results for the CLI.
//
// Supported output formats:
//   - Console: human-readable tabular output for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: comma-separated rows for spreadsheet applications
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"vending-reconciliation-service/internal/engine"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

const timeLayout = "2006-01-02 15:04:05"

// ReportConfig holds report generation options
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Console options
	ShowMatchedPeriods bool `json:"show_matched_periods"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:             FormatConsole,
		ShowMatchedPeriods: true,
		CSVDelimiter:       ',',
		CSVHeaders:         true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	return nil
}

// ReportGenerator renders reconciliation results in the configured format
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator with the given configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders the result to writer in the configured format
func (rg *ReportGenerator) GenerateReport(result *engine.ReconciliationResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(result *engine.ReconciliationResult, writer io.Writer) error {
	fmt.Fprintf(writer, "CASH RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Window:    %s .. %s\n", formatPeriodStart(result.From), result.To.Format(timeLayout))
	fmt.Fprintf(writer, "Tolerance: %s%%\n", result.Tolerance.String())
	fmt.Fprintf(writer, "Computed:  %s\n\n", result.ComputedAt.Format(time.RFC3339))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(result.Summary, writer)
	fmt.Fprintf(writer, "\n")

	discrepancies := 0
	for _, item := range result.Items {
		if item.Status == engine.StatusShortage || item.Status == engine.StatusOverage {
			discrepancies++
		}
	}

	if discrepancies > 0 {
		fmt.Fprintf(writer, "=== DISCREPANCIES ===\n")
		for _, item := range result.Items {
			if item.Status != engine.StatusShortage && item.Status != engine.StatusOverage {
				continue
			}
			rg.printItem(item, writer)
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.ShowMatchedPeriods {
		fmt.Fprintf(writer, "=== ALL PERIODS ===\n")
		for _, item := range result.Items {
			rg.printItem(item, writer)
		}
	}

	return nil
}

func (rg *ReportGenerator) printSummary(summary *engine.ReconciliationSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Periods:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", summary.ItemCount)
	fmt.Fprintf(writer, "  Matched:   %d\n", summary.MatchedCount)
	fmt.Fprintf(writer, "  Shortages: %d\n", summary.ShortageCount)
	fmt.Fprintf(writer, "  Overages:  %d\n", summary.OverageCount)
	fmt.Fprintf(writer, "  No sales:  %d\n", summary.NoSalesCount)
	fmt.Fprintf(writer, "Amounts:\n")
	fmt.Fprintf(writer, "  Expected:   %s\n", summary.TotalExpected.StringFixed(2))
	fmt.Fprintf(writer, "  Actual:     %s\n", summary.TotalActual.StringFixed(2))
	fmt.Fprintf(writer, "  Difference: %s\n", summary.TotalDifference.StringFixed(2))
}

func (rg *ReportGenerator) printItem(item *engine.ReconciliationItem, writer io.Writer) {
	fmt.Fprintf(writer, "  %-12s #%-6d (%s .. %s)  expected=%s actual=%s diff=%s (%s%%)  %s\n",
		item.MachineCode,
		item.CollectionID,
		formatPeriodStart(item.PeriodStart),
		item.PeriodEnd.Format(timeLayout),
		item.ExpectedAmount.StringFixed(2),
		item.ActualAmount.StringFixed(2),
		item.Difference.StringFixed(2),
		item.PercentDeviation.StringFixed(2),
		item.Status,
	)
}

func (rg *ReportGenerator) generateJSONReport(result *engine.ReconciliationResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func (rg *ReportGenerator) generateCSVReport(result *engine.ReconciliationResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"Machine_Code",
			"Machine_Name",
			"Collection_ID",
			"Operator",
			"Period_Start",
			"Period_End",
			"Expected",
			"Actual",
			"Difference",
			"Percent_Deviation",
			"Cash_Orders",
			"Status",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, item := range result.Items {
		record := []string{
			item.MachineCode,
			item.MachineName,
			fmt.Sprintf("%d", item.CollectionID),
			item.Operator,
			formatPeriodStart(item.PeriodStart),
			item.PeriodEnd.Format(timeLayout),
			item.ExpectedAmount.String(),
			item.ActualAmount.String(),
			item.Difference.String(),
			item.PercentDeviation.String(),
			fmt.Sprintf("%d", item.CashOrders),
			item.Status.String(),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write reconciliation record: %w", err)
		}
	}

	return nil
}

// formatPeriodStart renders the open-start epoch marker as a dash
func formatPeriodStart(t time.Time) string {
	if t.Equal(engine.OpenPeriodStart) {
		return "-"
	}
	return t.Format(timeLayout)
}
