package engine

import (
	"vending-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// PeriodMatch is the outcome of matching sales records into one period:
// the expected cash amount and the number of cash orders that produced it.
type PeriodMatch struct {
	Period     *ReconciliationPeriod
	Expected   decimal.Decimal
	CashOrders int
}

// MatchSales sums the qualifying sales that fall inside the period.
//
// A record qualifies when it is cash-paid and not refunded and its
// timestamp satisfies Start < t <= End. The boundary rule means a sale
// stamped exactly at a collection time belongs to the period that
// collection closes, so adjacent periods never double-count it.
//
// Sums use decimal arithmetic throughout; no float accumulation.
func MatchSales(period *ReconciliationPeriod, sales []*models.SalesRecord) PeriodMatch {
	match := PeriodMatch{
		Period:   period,
		Expected: decimal.Zero,
	}

	for _, s := range sales {
		if s == nil || !s.CountsTowardCash() {
			continue
		}
		if !period.Contains(s.SoldAt) {
			continue
		}
		match.Expected = match.Expected.Add(s.Amount)
		match.CashOrders++
	}

	return match
}

// MatchAllPeriods runs MatchSales over an ordered period sequence.
// Because the periods of one machine are disjoint, every sale lands in at
// most one of the returned matches.
func MatchAllPeriods(periods []*ReconciliationPeriod, sales []*models.SalesRecord) []PeriodMatch {
	matches := make([]PeriodMatch, 0, len(periods))
	for _, p := range periods {
		matches = append(matches, MatchSales(p, sales))
	}
	return matches
}
