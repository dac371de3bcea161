// Package reports implements the aggregation views over raw sales and
// collection records: grouped summaries, top machines by volume and daily
// cash/card statistics.
//
// Every function here is a pure fold over its input slice. Running one
// twice over an unchanged snapshot yields identical output, and grouped
// rows are sorted deterministically so equal totals never reorder between
// runs.
package reports

import (
	"sort"
	"strconv"
	"time"

	"vending-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// MaxTopMachines bounds the caller-supplied limit for top-N queries
const MaxTopMachines = 100

// DefaultTopMachines is used when the caller supplies no limit
const DefaultTopMachines = 10

// SummaryRow is one grouped report row. Key is the grouping value (machine
// code, date or operator); Label is the human-readable form when one exists.
type SummaryRow struct {
	Key           string          `json:"key"`
	Label         string          `json:"label,omitempty"`
	Count         int             `json:"count"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AverageAmount decimal.Decimal `json:"average_amount"`
}

// GroupTotals sums a grouped report across all rows
type GroupTotals struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// GroupedReport is the rows-plus-totals shape the summary endpoints return
type GroupedReport struct {
	Rows   []*SummaryRow `json:"data"`
	Totals GroupTotals   `json:"totals"`
}

// TopMachineRow is one entry of the top-machines-by-volume report
type TopMachineRow struct {
	MachineID   uint            `json:"machine_id"`
	MachineCode string          `json:"machine_code"`
	MachineName string          `json:"machine_name"`
	SalesCount  int             `json:"sales_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// DailyStat is one calendar day of sales, cash and card tracked
// independently. Refunded records are excluded from both sides.
type DailyStat struct {
	Date      string          `json:"date"`
	CashTotal decimal.Decimal `json:"cash_total"`
	CashCount int             `json:"cash_count"`
	CardTotal decimal.Decimal `json:"card_total"`
	CardCount int             `json:"card_count"`
}

// SummarizeCollectionsByMachine groups received collections by machine.
// Collections whose machine is missing from the directory are grouped
// under their numeric ID so cash never silently disappears from a report.
func SummarizeCollectionsByMachine(collections []*models.CollectionRecord, directory *models.MachineDirectory) *GroupedReport {
	groups := make(map[string]*SummaryRow)
	for _, c := range collections {
		if c == nil || !c.CanAnchorPeriod() {
			continue
		}
		key := "#" + strconv.FormatUint(uint64(c.MachineID), 10)
		label := ""
		if m, ok := directory.ByID(c.MachineID); ok {
			key = m.Code
			label = m.Name
		}
		row := groups[key]
		if row == nil {
			row = &SummaryRow{Key: key, Label: label, TotalAmount: decimal.Zero}
			groups[key] = row
		}
		row.Count++
		row.TotalAmount = row.TotalAmount.Add(c.Amount)
	}
	return finishGrouped(groups, byTotalDesc)
}

// SummarizeCollectionsByDate groups received collections by calendar day
// in the given timezone
func SummarizeCollectionsByDate(collections []*models.CollectionRecord, loc *time.Location) *GroupedReport {
	if loc == nil {
		loc = time.UTC
	}
	groups := make(map[string]*SummaryRow)
	for _, c := range collections {
		if c == nil || !c.CanAnchorPeriod() {
			continue
		}
		key := c.CollectedAt.In(loc).Format("2006-01-02")
		row := groups[key]
		if row == nil {
			row = &SummaryRow{Key: key, TotalAmount: decimal.Zero}
			groups[key] = row
		}
		row.Count++
		row.TotalAmount = row.TotalAmount.Add(c.Amount)
	}
	return finishGrouped(groups, byKeyAsc)
}

// SummarizeCollectionsByOperator groups received collections by the field
// operator who performed them. Records without an operator fall under
// "unknown".
func SummarizeCollectionsByOperator(collections []*models.CollectionRecord) *GroupedReport {
	groups := make(map[string]*SummaryRow)
	for _, c := range collections {
		if c == nil || !c.CanAnchorPeriod() {
			continue
		}
		key := c.Operator
		if key == "" {
			key = "unknown"
		}
		row := groups[key]
		if row == nil {
			row = &SummaryRow{Key: key, TotalAmount: decimal.Zero}
			groups[key] = row
		}
		row.Count++
		row.TotalAmount = row.TotalAmount.Add(c.Amount)
	}
	return finishGrouped(groups, byTotalDesc)
}

// TopMachinesBySales ranks machines by paid sales volume, any payment
// method, descending. limit is clamped to [1, MaxTopMachines]; zero or
// negative limits fall back to DefaultTopMachines.
func TopMachinesBySales(sales []*models.SalesRecord, directory *models.MachineDirectory, limit int) []*TopMachineRow {
	if limit <= 0 {
		limit = DefaultTopMachines
	}
	if limit > MaxTopMachines {
		limit = MaxTopMachines
	}

	groups := make(map[string]*TopMachineRow)
	for _, s := range sales {
		if s == nil || s.Status != models.PaymentStatusPaid {
			continue
		}
		row := groups[s.MachineCode]
		if row == nil {
			row = &TopMachineRow{MachineCode: s.MachineCode, TotalAmount: decimal.Zero}
			if m, ok := directory.ByCode(s.MachineCode); ok {
				row.MachineID = m.ID
				row.MachineName = m.Name
			}
			groups[s.MachineCode] = row
		}
		row.SalesCount++
		row.TotalAmount = row.TotalAmount.Add(s.Amount)
	}

	rows := make([]*TopMachineRow, 0, len(groups))
	for _, row := range groups {
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].TotalAmount.Equal(rows[j].TotalAmount) {
			return rows[i].TotalAmount.GreaterThan(rows[j].TotalAmount)
		}
		return rows[i].MachineCode < rows[j].MachineCode
	})

	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// DailySalesStats groups paid sales by calendar day in the given timezone,
// cash and card totals and counts tracked independently
func DailySalesStats(sales []*models.SalesRecord, loc *time.Location) []*DailyStat {
	if loc == nil {
		loc = time.UTC
	}

	days := make(map[string]*DailyStat)
	for _, s := range sales {
		if s == nil || s.Status != models.PaymentStatusPaid {
			continue
		}
		key := s.SoldAt.In(loc).Format("2006-01-02")
		stat := days[key]
		if stat == nil {
			stat = &DailyStat{Date: key, CashTotal: decimal.Zero, CardTotal: decimal.Zero}
			days[key] = stat
		}
		switch s.Method {
		case models.PaymentMethodCash:
			stat.CashTotal = stat.CashTotal.Add(s.Amount)
			stat.CashCount++
		case models.PaymentMethodCard:
			stat.CardTotal = stat.CardTotal.Add(s.Amount)
			stat.CardCount++
		}
	}

	stats := make([]*DailyStat, 0, len(days))
	for _, stat := range days {
		stats = append(stats, stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Date < stats[j].Date
	})
	return stats
}

type rowOrder func(a, b *SummaryRow) bool

func byTotalDesc(a, b *SummaryRow) bool {
	if !a.TotalAmount.Equal(b.TotalAmount) {
		return a.TotalAmount.GreaterThan(b.TotalAmount)
	}
	return a.Key < b.Key
}

func byKeyAsc(a, b *SummaryRow) bool {
	return a.Key < b.Key
}

// finishGrouped computes averages and totals and applies the ordering.
// A zero count always yields a zero average, never a division.
func finishGrouped(groups map[string]*SummaryRow, order rowOrder) *GroupedReport {
	report := &GroupedReport{
		Rows:   make([]*SummaryRow, 0, len(groups)),
		Totals: GroupTotals{Amount: decimal.Zero},
	}
	for _, row := range groups {
		if row.Count == 0 {
			row.AverageAmount = decimal.Zero
		} else {
			row.AverageAmount = row.TotalAmount.Div(decimal.NewFromInt(int64(row.Count))).Round(2)
		}
		report.Rows = append(report.Rows, row)
		report.Totals.Count += row.Count
		report.Totals.Amount = report.Totals.Amount.Add(row.TotalAmount)
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		return order(report.Rows[i], report.Rows[j])
	})
	return report
}

