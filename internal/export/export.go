// Package export renders reconciliation results as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"vending-reconciliation-service/internal/engine"
	apperrors "vending-reconciliation-service/pkg/errors"

	"github.com/xuri/excelize/v2"
)

const (
	itemsSheet   = "Reconciliation"
	summarySheet = "Summary"

	timeLayout = "2006-01-02 15:04:05"
)

var itemHeaders = []string{
	"Machine Code", "Machine Name", "Collection ID", "Operator",
	"Period Start", "Period End", "Expected", "Actual",
	"Difference", "Deviation %", "Cash Orders", "Status",
}

// ExcelWorkbook builds a two-sheet workbook from a reconciliation result:
// one row per period on the first sheet, the fold on the second.
func ExcelWorkbook(result *engine.ReconciliationResult) (*excelize.File, error) {
	if result == nil {
		return nil, apperrors.ExportError("build workbook", fmt.Errorf("result is nil"))
	}

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", itemsSheet)
	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, apperrors.ExportError("build workbook", err)
	}

	if err := writeItems(f, result.Items); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, result); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

// WriteExcel streams the workbook to w and closes it
func WriteExcel(w io.Writer, result *engine.ReconciliationResult) error {
	f, err := ExcelWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return apperrors.ExportError("write workbook", err)
	}
	return nil
}

// SaveExcel writes the workbook to a file path and closes it
func SaveExcel(path string, result *engine.ReconciliationResult) error {
	f, err := ExcelWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return apperrors.ExportError("save workbook", err)
	}
	return nil
}

func writeItems(f *excelize.File, items []*engine.ReconciliationItem) error {
	for col, h := range itemHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return apperrors.ExportError("write headers", err)
		}
		if err := f.SetCellValue(itemsSheet, cell, h); err != nil {
			return apperrors.ExportError("write headers", err)
		}
	}

	for i, item := range items {
		values := []interface{}{
			item.MachineCode,
			item.MachineName,
			item.CollectionID,
			item.Operator,
			formatTime(item.PeriodStart),
			item.PeriodEnd.Format(timeLayout),
			item.ExpectedAmount.InexactFloat64(),
			item.ActualAmount.InexactFloat64(),
			item.Difference.InexactFloat64(),
			item.PercentDeviation.InexactFloat64(),
			item.CashOrders,
			item.Status.String(),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return apperrors.ExportError("write items", err)
			}
			if err := f.SetCellValue(itemsSheet, cell, v); err != nil {
				return apperrors.ExportError("write items", err)
			}
		}
	}
	return nil
}

func writeSummary(f *excelize.File, result *engine.ReconciliationResult) error {
	rows := [][2]interface{}{
		{"From", formatTime(result.From)},
		{"To", result.To.Format(timeLayout)},
		{"Tolerance %", result.Tolerance.InexactFloat64()},
		{"Computed At", result.ComputedAt.Format(timeLayout)},
		{"Periods", result.Summary.ItemCount},
		{"Matched", result.Summary.MatchedCount},
		{"Shortages", result.Summary.ShortageCount},
		{"Overages", result.Summary.OverageCount},
		{"No Sales", result.Summary.NoSalesCount},
		{"Total Expected", result.Summary.TotalExpected.InexactFloat64()},
		{"Total Actual", result.Summary.TotalActual.InexactFloat64()},
		{"Total Difference", result.Summary.TotalDifference.InexactFloat64()},
	}

	for i, row := range rows {
		keyCell := fmt.Sprintf("A%d", i+1)
		valCell := fmt.Sprintf("B%d", i+1)
		if err := f.SetCellValue(summarySheet, keyCell, row[0]); err != nil {
			return apperrors.ExportError("write summary", err)
		}
		if err := f.SetCellValue(summarySheet, valCell, row[1]); err != nil {
			return apperrors.ExportError("write summary", err)
		}
	}
	return nil
}

// formatTime renders a period start, showing the epoch open-start as a
// dash rather than 1970.
func formatTime(t time.Time) string {
	if t.Equal(engine.OpenPeriodStart) {
		return "-"
	}
	return t.Format(timeLayout)
}
