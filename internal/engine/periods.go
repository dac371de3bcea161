// Package engine implements the cash reconciliation pipeline: period
// construction, sales matching, deviation classification and result
// assembly.
//
// The pipeline is a pure computation over explicit record snapshots:
//
//  1. BuildPeriods partitions a machine's received collections into
//     contiguous half-open periods (start, end].
//  2. MatchSales sums the qualifying cash sales inside each period.
//  3. Classify compares expected against actual and assigns a status.
//  4. The Engine assembles items and a summary per request.
//
// Nothing here retains state between calls, so two computations over the
// same snapshot and configuration produce identical results.
package engine

import (
	"sort"
	"time"

	"vending-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// OpenPeriodStart is the period start used for a machine's very first
// collection, when no preceding collection exists anywhere in history.
// A fixed epoch keeps the boundary independent of which sales happen to be
// in the queried snapshot; sales timestamped before it are never attributed
// to any period.
var OpenPeriodStart = time.Unix(0, 0).UTC()

// ReconciliationPeriod is the half-open interval (Start, End] ending at one
// received collection's timestamp. Periods are derived fresh on every query
// and never persisted or mutated in place.
type ReconciliationPeriod struct {
	MachineID    uint            `json:"machine_id"`
	CollectionID uint            `json:"collection_id"`
	Operator     string          `json:"operator,omitempty"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	Actual       decimal.Decimal `json:"actual"`
}

// BuildPeriods derives the ordered reconciliation periods for one machine
// from its collection history.
//
// Only received collections anchor periods; collected-but-uncounted and
// cancelled events contribute no boundary, so the sales of their would-be
// window fold into the next received period. Collections sharing a
// timestamp are ordered by record ID so zero-width periods land in the same
// place on every run. The first period opens at the preceding collection's
// timestamp, or OpenPeriodStart when the machine has no earlier collection.
//
// The input may arrive in any order; a machine with no received collections
// yields an empty (nil) slice, not an error.
func BuildPeriods(machineID uint, collections []*models.CollectionRecord) []*ReconciliationPeriod {
	anchors := make([]*models.CollectionRecord, 0, len(collections))
	for _, c := range collections {
		if c == nil || c.MachineID != machineID {
			continue
		}
		if !c.CanAnchorPeriod() {
			continue
		}
		anchors = append(anchors, c)
	}
	if len(anchors) == 0 {
		return nil
	}

	sort.SliceStable(anchors, func(i, j int) bool {
		if !anchors[i].CollectedAt.Equal(anchors[j].CollectedAt) {
			return anchors[i].CollectedAt.Before(anchors[j].CollectedAt)
		}
		return anchors[i].ID < anchors[j].ID
	})

	periods := make([]*ReconciliationPeriod, 0, len(anchors))
	start := OpenPeriodStart
	for _, c := range anchors {
		periods = append(periods, &ReconciliationPeriod{
			MachineID:    machineID,
			CollectionID: c.ID,
			Operator:     c.Operator,
			Start:        start,
			End:          c.CollectedAt,
			Actual:       c.Amount,
		})
		start = c.CollectedAt
	}

	return periods
}

// FilterPeriodsEndingIn keeps the periods whose anchoring collection falls
// inside [from, to]. An anchor-before-range collection still shapes the
// first kept period's start, but produces no item of its own.
func FilterPeriodsEndingIn(periods []*ReconciliationPeriod, from, to time.Time) []*ReconciliationPeriod {
	var kept []*ReconciliationPeriod
	for _, p := range periods {
		if p.End.Before(from) || p.End.After(to) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

// Contains reports whether t falls inside the half-open interval (Start, End]
func (p *ReconciliationPeriod) Contains(t time.Time) bool {
	return t.After(p.Start) && !t.After(p.End)
}
