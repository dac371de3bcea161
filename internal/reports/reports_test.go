package reports

import (
	"testing"
	"time"

	"vending-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

func testDirectory() *models.MachineDirectory {
	return models.NewMachineDirectory([]*models.Machine{
		{ID: 10, Code: "VM-001", Name: "Lobby"},
		{ID: 20, Code: "VM-002", Name: "Cafeteria"},
	})
}

func received(id, machineID uint, operator string, at time.Time, amount int64) *models.CollectionRecord {
	return &models.CollectionRecord{
		ID:          id,
		MachineID:   machineID,
		Operator:    operator,
		CollectedAt: at,
		Amount:      decimal.NewFromInt(amount),
		Status:      models.CollectionStatusReceived,
	}
}

func paidSale(id, machineCode string, method models.PaymentMethod, at time.Time, amount int64) *models.SalesRecord {
	return &models.SalesRecord{
		ID:          id,
		MachineCode: machineCode,
		Method:      method,
		Status:      models.PaymentStatusPaid,
		Amount:      decimal.NewFromInt(amount),
		SoldAt:      at,
	}
}

func at(d, hour int) time.Time {
	return time.Date(2026, 1, d, hour, 0, 0, 0, time.UTC)
}

func TestSummarizeCollectionsByMachine(t *testing.T) {
	collections := []*models.CollectionRecord{
		received(1, 10, "alice", at(1, 18), 90000),
		received(2, 10, "bob", at(2, 18), 10000),
		received(3, 20, "alice", at(1, 19), 40000),
	}

	report := SummarizeCollectionsByMachine(collections, testDirectory())
	if len(report.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(report.Rows))
	}

	// Ordered by total descending
	if report.Rows[0].Key != "VM-001" {
		t.Errorf("First row key = %s, want VM-001", report.Rows[0].Key)
	}
	if report.Rows[0].Label != "Lobby" {
		t.Errorf("First row label = %s, want Lobby", report.Rows[0].Label)
	}
	if !report.Rows[0].TotalAmount.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("VM-001 total = %s, want 100000", report.Rows[0].TotalAmount)
	}
	if !report.Rows[0].AverageAmount.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("VM-001 average = %s, want 50000", report.Rows[0].AverageAmount)
	}
	if report.Totals.Count != 3 {
		t.Errorf("Totals count = %d, want 3", report.Totals.Count)
	}
	if !report.Totals.Amount.Equal(decimal.NewFromInt(140000)) {
		t.Errorf("Totals amount = %s, want 140000", report.Totals.Amount)
	}
}

func TestSummarizeCollectionsByMachineUnknownMachine(t *testing.T) {
	collections := []*models.CollectionRecord{
		received(1, 99, "alice", at(1, 18), 500),
	}

	report := SummarizeCollectionsByMachine(collections, testDirectory())
	if len(report.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(report.Rows))
	}
	if report.Rows[0].Key != "#99" {
		t.Errorf("Unknown machine key = %s, want #99", report.Rows[0].Key)
	}
}

func TestSummarizeSkipsNonReceivedCollections(t *testing.T) {
	collections := []*models.CollectionRecord{
		received(1, 10, "alice", at(1, 18), 1000),
		{ID: 2, MachineID: 10, CollectedAt: at(2, 18), Status: models.CollectionStatusCollected},
		{ID: 3, MachineID: 10, CollectedAt: at(3, 18), Status: models.CollectionStatusCancelled},
	}

	report := SummarizeCollectionsByMachine(collections, testDirectory())
	if report.Totals.Count != 1 {
		t.Errorf("Totals count = %d, want 1 (only received counts)", report.Totals.Count)
	}
}

func TestSummarizeCollectionsByDate(t *testing.T) {
	collections := []*models.CollectionRecord{
		received(1, 10, "alice", at(2, 18), 100),
		received(2, 10, "alice", at(1, 18), 200),
		received(3, 20, "bob", at(1, 19), 300),
	}

	report := SummarizeCollectionsByDate(collections, time.UTC)
	if len(report.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(report.Rows))
	}
	// Dates ascending regardless of totals
	if report.Rows[0].Key != "2026-01-01" || report.Rows[1].Key != "2026-01-02" {
		t.Errorf("Rows not date-ascending: %s, %s", report.Rows[0].Key, report.Rows[1].Key)
	}
	if report.Rows[0].Count != 2 {
		t.Errorf("Day 1 count = %d, want 2", report.Rows[0].Count)
	}
}

func TestSummarizeCollectionsByDateTimezone(t *testing.T) {
	// 23:30 UTC on Jan 1 is already Jan 2 in UTC+7
	bangkok := time.FixedZone("UTC+7", 7*3600)
	collections := []*models.CollectionRecord{
		received(1, 10, "alice", time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC), 100),
	}

	report := SummarizeCollectionsByDate(collections, bangkok)
	if report.Rows[0].Key != "2026-01-02" {
		t.Errorf("Key = %s, want 2026-01-02 in UTC+7", report.Rows[0].Key)
	}
}

func TestSummarizeCollectionsByOperator(t *testing.T) {
	collections := []*models.CollectionRecord{
		received(1, 10, "alice", at(1, 18), 100),
		received(2, 10, "", at(2, 18), 900),
	}

	report := SummarizeCollectionsByOperator(collections)
	if len(report.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(report.Rows))
	}
	if report.Rows[0].Key != "unknown" {
		t.Errorf("First row key = %s, want unknown (largest total first)", report.Rows[0].Key)
	}
}

func TestTopMachinesBySales(t *testing.T) {
	sales := []*models.SalesRecord{
		paidSale("S1", "VM-001", models.PaymentMethodCash, at(1, 10), 100),
		paidSale("S2", "VM-002", models.PaymentMethodCard, at(1, 11), 300),
		{
			ID: "S3", MachineCode: "VM-001", Method: models.PaymentMethodCash,
			Status: models.PaymentStatusRefunded,
			Amount: decimal.NewFromInt(999), SoldAt: at(1, 12),
		},
	}

	rows := TopMachinesBySales(sales, testDirectory(), 10)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].MachineCode != "VM-002" {
		t.Errorf("Top machine = %s, want VM-002", rows[0].MachineCode)
	}
	if rows[0].MachineName != "Cafeteria" {
		t.Errorf("Top machine name = %s, want Cafeteria", rows[0].MachineName)
	}
	// Refunded sale excluded from VM-001
	if !rows[1].TotalAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("VM-001 total = %s, want 100", rows[1].TotalAmount)
	}
}

func TestTopMachinesLimitClamp(t *testing.T) {
	var sales []*models.SalesRecord
	for i := 0; i < 150; i++ {
		code := "VM-" + string(rune('A'+i%26)) + string(rune('A'+i/26))
		sales = append(sales, paidSale("S"+code, code, models.PaymentMethodCash, at(1, 10), int64(i+1)))
	}

	if got := len(TopMachinesBySales(sales, testDirectory(), 0)); got != DefaultTopMachines {
		t.Errorf("Zero limit returned %d rows, want default %d", got, DefaultTopMachines)
	}
	if got := len(TopMachinesBySales(sales, testDirectory(), 500)); got != MaxTopMachines {
		t.Errorf("Oversized limit returned %d rows, want max %d", got, MaxTopMachines)
	}
	if got := len(TopMachinesBySales(sales, testDirectory(), 3)); got != 3 {
		t.Errorf("Limit 3 returned %d rows", got)
	}
}

func TestTopMachinesTieBreakByCode(t *testing.T) {
	sales := []*models.SalesRecord{
		paidSale("S1", "VM-002", models.PaymentMethodCash, at(1, 10), 100),
		paidSale("S2", "VM-001", models.PaymentMethodCash, at(1, 11), 100),
	}

	rows := TopMachinesBySales(sales, testDirectory(), 10)
	if rows[0].MachineCode != "VM-001" || rows[1].MachineCode != "VM-002" {
		t.Errorf("Tied totals not ordered by code: %s, %s", rows[0].MachineCode, rows[1].MachineCode)
	}
}

func TestDailySalesStats(t *testing.T) {
	sales := []*models.SalesRecord{
		paidSale("S1", "VM-001", models.PaymentMethodCash, at(1, 10), 1000),
		paidSale("S2", "VM-001", models.PaymentMethodCard, at(1, 11), 2000),
		paidSale("S3", "VM-002", models.PaymentMethodCash, at(2, 9), 500),
	}

	stats := DailySalesStats(sales, time.UTC)
	if len(stats) != 2 {
		t.Fatalf("Expected 2 days, got %d", len(stats))
	}
	first := stats[0]
	if first.Date != "2026-01-01" {
		t.Errorf("First date = %s, want 2026-01-01", first.Date)
	}
	if !first.CashTotal.Equal(decimal.NewFromInt(1000)) || first.CashCount != 1 {
		t.Errorf("Day 1 cash = %s/%d, want 1000/1", first.CashTotal, first.CashCount)
	}
	if !first.CardTotal.Equal(decimal.NewFromInt(2000)) || first.CardCount != 1 {
		t.Errorf("Day 1 card = %s/%d, want 2000/1", first.CardTotal, first.CardCount)
	}
}

func TestDailySalesStatsEmptyInput(t *testing.T) {
	stats := DailySalesStats(nil, time.UTC)
	if len(stats) != 0 {
		t.Errorf("Expected no stats for empty input, got %d", len(stats))
	}
}

func TestGroupedReportZeroSafeAverage(t *testing.T) {
	report := SummarizeCollectionsByOperator(nil)
	if len(report.Rows) != 0 {
		t.Errorf("Expected no rows, got %d", len(report.Rows))
	}
	if report.Totals.Count != 0 || !report.Totals.Amount.Equal(decimal.Zero) {
		t.Errorf("Expected zero totals, got %+v", report.Totals)
	}
}
