package export

import (
	"bytes"
	"testing"
	"time"

	"vending-reconciliation-service/internal/engine"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func testResult() *engine.ReconciliationResult {
	items := []*engine.ReconciliationItem{
		{
			MachineID:        10,
			MachineCode:      "VM-001",
			MachineName:      "Lobby",
			CollectionID:     1,
			Operator:         "alice",
			PeriodStart:      engine.OpenPeriodStart,
			PeriodEnd:        time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC),
			ExpectedAmount:   decimal.NewFromInt(90000),
			ActualAmount:     decimal.NewFromInt(120000),
			Difference:       decimal.NewFromInt(30000),
			PercentDeviation: decimal.NewFromFloat(33.33),
			CashOrders:       2,
			Status:           engine.StatusOverage,
		},
		{
			MachineID:        10,
			MachineCode:      "VM-001",
			MachineName:      "Lobby",
			CollectionID:     2,
			Operator:         "bob",
			PeriodStart:      time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC),
			PeriodEnd:        time.Date(2026, 1, 2, 18, 0, 0, 0, time.UTC),
			ExpectedAmount:   decimal.NewFromInt(50000),
			ActualAmount:     decimal.NewFromInt(50000),
			Difference:       decimal.Zero,
			PercentDeviation: decimal.Zero,
			CashOrders:       5,
			Status:           engine.StatusMatched,
		},
	}
	return &engine.ReconciliationResult{
		Items:      items,
		Summary:    engine.Summarize(items),
		Tolerance:  decimal.NewFromInt(5),
		From:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
		ComputedAt: time.Date(2026, 1, 3, 6, 0, 0, 0, time.UTC),
	}
}

func TestExcelWorkbookSheets(t *testing.T) {
	f, err := ExcelWorkbook(testResult())
	if err != nil {
		t.Fatalf("ExcelWorkbook failed: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	found := map[string]bool{}
	for _, s := range sheets {
		found[s] = true
	}
	if !found["Reconciliation"] || !found["Summary"] {
		t.Errorf("Expected Reconciliation and Summary sheets, got %v", sheets)
	}
}

func TestExcelWorkbookItemRows(t *testing.T) {
	f, err := ExcelWorkbook(testResult())
	if err != nil {
		t.Fatalf("ExcelWorkbook failed: %v", err)
	}
	defer f.Close()

	header, err := f.GetCellValue("Reconciliation", "A1")
	if err != nil {
		t.Fatalf("GetCellValue failed: %v", err)
	}
	if header != "Machine Code" {
		t.Errorf("A1 = %q, want Machine Code", header)
	}

	code, _ := f.GetCellValue("Reconciliation", "A2")
	if code != "VM-001" {
		t.Errorf("A2 = %q, want VM-001", code)
	}

	// Open-start period renders as a dash, not the epoch
	start, _ := f.GetCellValue("Reconciliation", "E2")
	if start != "-" {
		t.Errorf("E2 = %q, want -", start)
	}

	status, _ := f.GetCellValue("Reconciliation", "L2")
	if status != "overage" {
		t.Errorf("L2 = %q, want overage", status)
	}
	status, _ = f.GetCellValue("Reconciliation", "L3")
	if status != "matched" {
		t.Errorf("L3 = %q, want matched", status)
	}
}

func TestExcelWorkbookSummarySheet(t *testing.T) {
	f, err := ExcelWorkbook(testResult())
	if err != nil {
		t.Fatalf("ExcelWorkbook failed: %v", err)
	}
	defer f.Close()

	label, _ := f.GetCellValue("Summary", "A5")
	if label != "Periods" {
		t.Errorf("A5 = %q, want Periods", label)
	}
	periods, _ := f.GetCellValue("Summary", "B5")
	if periods != "2" {
		t.Errorf("B5 = %q, want 2", periods)
	}
	overages, _ := f.GetCellValue("Summary", "B8")
	if overages != "1" {
		t.Errorf("B8 = %q, want 1", overages)
	}
}

func TestWriteExcelProducesWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExcel(&buf, testResult()); err != nil {
		t.Fatalf("WriteExcel failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Expected workbook bytes")
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Written workbook does not reopen: %v", err)
	}
	defer f.Close()

	code, _ := f.GetCellValue("Reconciliation", "A2")
	if code != "VM-001" {
		t.Errorf("Reopened A2 = %q, want VM-001", code)
	}
}

func TestExcelWorkbookNilResult(t *testing.T) {
	if _, err := ExcelWorkbook(nil); err == nil {
		t.Fatal("Expected error for nil result")
	}
}
