package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	apperrors "vending-reconciliation-service/pkg/errors"
	"vending-reconciliation-service/pkg/logger"

	"vending-reconciliation-service/internal/models"
	"vending-reconciliation-service/internal/reports"

	"github.com/shopspring/decimal"
)

// Engine runs the reconciliation pipeline over its record sources. It holds
// no mutable state of its own, so concurrent requests are independent; each
// computes over its own snapshot.
type Engine struct {
	sales       SalesRecordSource
	collections CollectionRecordSource
	settings    SettingsSource
	machines    MachineSource
	log         logger.Logger
}

// NewEngine creates a reconciliation engine over the given sources
func NewEngine(
	sales SalesRecordSource,
	collections CollectionRecordSource,
	settings SettingsSource,
	machines MachineSource,
	log logger.Logger,
) (*Engine, error) {
	if sales == nil {
		return nil, fmt.Errorf("sales record source is required")
	}
	if collections == nil {
		return nil, fmt.Errorf("collection record source is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings source is required")
	}
	if machines == nil {
		return nil, fmt.Errorf("machine source is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Engine{
		sales:       sales,
		collections: collections,
		settings:    settings,
		machines:    machines,
		log:         log.WithComponent("engine"),
	}, nil
}

// Settings exposes the configured settings source, so callers that act on
// results (alert sweeps, notification handlers) read the same configuration
// the engine classified with.
func (e *Engine) Settings() SettingsSource {
	return e.settings
}

// ReconciliationRequest describes one reconciliation query. MachineCode is
// optional; empty means every machine in the directory.
type ReconciliationRequest struct {
	MachineCode string    `json:"machine_code,omitempty"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
}

// Validate rejects caller-correctable problems before any computation
func (r *ReconciliationRequest) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return apperrors.ValidationError("date range", "", "from and to are required")
	}
	if r.From.After(r.To) {
		return apperrors.InvalidDateRange(
			r.From.Format(time.RFC3339), r.To.Format(time.RFC3339))
	}
	return nil
}

// ReconciliationItem is one period joined with its matched sales and
// classification. Derived per request, never persisted.
type ReconciliationItem struct {
	MachineID        uint            `json:"machine_id"`
	MachineCode      string          `json:"machine_code"`
	MachineName      string          `json:"machine_name"`
	CollectionID     uint            `json:"collection_id"`
	Operator         string          `json:"operator,omitempty"`
	PeriodStart      time.Time       `json:"period_start"`
	PeriodEnd        time.Time       `json:"period_end"`
	ExpectedAmount   decimal.Decimal `json:"expected_amount"`
	ActualAmount     decimal.Decimal `json:"actual_amount"`
	Difference       decimal.Decimal `json:"difference"`
	PercentDeviation decimal.Decimal `json:"percent_deviation"`
	CashOrders       int             `json:"cash_orders"`
	Status           Status          `json:"status"`
}

// ReconciliationSummary aggregates a set of items
type ReconciliationSummary struct {
	TotalExpected   decimal.Decimal `json:"total_expected"`
	TotalActual     decimal.Decimal `json:"total_actual"`
	TotalDifference decimal.Decimal `json:"total_difference"`
	MatchedCount    int             `json:"matched_count"`
	ShortageCount   int             `json:"shortage_count"`
	OverageCount    int             `json:"overage_count"`
	NoSalesCount    int             `json:"no_sales_count"`
	ItemCount       int             `json:"item_count"`
}

// ReconciliationResult is the complete answer for one request
type ReconciliationResult struct {
	Items      []*ReconciliationItem  `json:"items"`
	Summary    *ReconciliationSummary `json:"summary"`
	Tolerance  decimal.Decimal        `json:"tolerance"`
	From       time.Time              `json:"from"`
	To         time.Time              `json:"to"`
	ComputedAt time.Time              `json:"computed_at"`
}

// Summarize folds items into a summary. A summary is only emitted once all
// items exist, so partial results are never reported silently.
func Summarize(items []*ReconciliationItem) *ReconciliationSummary {
	s := &ReconciliationSummary{
		TotalExpected:   decimal.Zero,
		TotalActual:     decimal.Zero,
		TotalDifference: decimal.Zero,
		ItemCount:       len(items),
	}
	for _, item := range items {
		s.TotalExpected = s.TotalExpected.Add(item.ExpectedAmount)
		s.TotalActual = s.TotalActual.Add(item.ActualAmount)
		s.TotalDifference = s.TotalDifference.Add(item.Difference)
		switch item.Status {
		case StatusMatched:
			s.MatchedCount++
		case StatusShortage:
			s.ShortageCount++
		case StatusOverage:
			s.OverageCount++
		case StatusNoSales:
			s.NoSalesCount++
		}
	}
	return s
}

// ComputeReconciliation answers "how much cash should have been collected
// versus how much was" for every collection in the requested window.
//
// Computation is per machine: build periods from the collection history,
// match sales into each period, classify against the call-time tolerance,
// then fold everything into a summary. A machine with no received
// collections in range simply contributes no items.
func (e *Engine) ComputeReconciliation(ctx context.Context, req *ReconciliationRequest) (*ReconciliationResult, error) {
	if req == nil {
		return nil, apperrors.ValidationError("request", nil, "request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	directory, err := e.loadDirectory(ctx)
	if err != nil {
		return nil, err
	}

	machines := directory.All()
	if req.MachineCode != "" {
		m, ok := directory.ByCode(req.MachineCode)
		if !ok {
			return nil, apperrors.UnknownMachine(req.MachineCode)
		}
		machines = []*models.Machine{m}
	}

	tolerance, err := e.settings.ReconciliationTolerance(ctx)
	if err != nil {
		return nil, apperrors.WrapIfNeeded(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "reading reconciliation tolerance")
	}

	var items []*ReconciliationItem
	for _, m := range machines {
		machineItems, err := e.reconcileMachine(ctx, m, req.From, req.To, tolerance)
		if err != nil {
			return nil, err
		}
		items = append(items, machineItems...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].MachineCode != items[j].MachineCode {
			return items[i].MachineCode < items[j].MachineCode
		}
		if !items[i].PeriodEnd.Equal(items[j].PeriodEnd) {
			return items[i].PeriodEnd.Before(items[j].PeriodEnd)
		}
		return items[i].CollectionID < items[j].CollectionID
	})

	e.log.WithFields(logger.Fields{
		"machine_code": req.MachineCode,
		"items":        len(items),
	}).Debug("reconciliation computed")

	return &ReconciliationResult{
		Items:      items,
		Summary:    Summarize(items),
		Tolerance:  tolerance,
		From:       req.From,
		To:         req.To,
		ComputedAt: time.Now().UTC(),
	}, nil
}

// reconcileMachine runs the period/match/classify pipeline for one machine
func (e *Engine) reconcileMachine(ctx context.Context, m *models.Machine, from, to time.Time, tolerance decimal.Decimal) ([]*ReconciliationItem, error) {
	collections, err := e.collections.ListCollectionRecords(ctx, m.ID, from, to, true)
	if err != nil {
		return nil, apperrors.WrapIfNeeded(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "listing collection records")
	}

	periods := FilterPeriodsEndingIn(BuildPeriods(m.ID, collections), from, to)
	if len(periods) == 0 {
		return nil, nil
	}

	// One sales fetch covers every kept period: the earliest start through
	// the last collection in range.
	fetchFrom := periods[0].Start
	fetchTo := periods[len(periods)-1].End
	sales, err := e.sales.ListSalesRecords(ctx, m.Code, fetchFrom, fetchTo)
	if err != nil {
		return nil, apperrors.WrapIfNeeded(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "listing sales records")
	}

	items := make([]*ReconciliationItem, 0, len(periods))
	for _, match := range MatchAllPeriods(periods, sales) {
		c := Classify(match.Expected, match.Period.Actual, tolerance)
		items = append(items, &ReconciliationItem{
			MachineID:        m.ID,
			MachineCode:      m.Code,
			MachineName:      m.Name,
			CollectionID:     match.Period.CollectionID,
			Operator:         match.Period.Operator,
			PeriodStart:      match.Period.Start,
			PeriodEnd:        match.Period.End,
			ExpectedAmount:   match.Expected,
			ActualAmount:     match.Period.Actual,
			Difference:       c.Difference,
			PercentDeviation: c.PercentDeviation.Round(2),
			CashOrders:       match.CashOrders,
			Status:           c.Status,
		})
	}

	return items, nil
}

// ComputeDailyStats groups sales by calendar day in the given timezone,
// with independent cash and card totals. This view does not depend on
// collection periods at all.
func (e *Engine) ComputeDailyStats(ctx context.Context, from, to time.Time, loc *time.Location) ([]*reports.DailyStat, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	sales, err := e.sales.ListSalesRecords(ctx, "", from, to)
	if err != nil {
		return nil, apperrors.WrapIfNeeded(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "listing sales records")
	}

	return reports.DailySalesStats(sales, loc), nil
}

// ComputeTopMachines returns the machines with the highest sales volume in
// the window, at most limit rows. limit is clamped to [1, MaxTopMachines].
func (e *Engine) ComputeTopMachines(ctx context.Context, from, to time.Time, limit int) ([]*reports.TopMachineRow, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	directory, err := e.loadDirectory(ctx)
	if err != nil {
		return nil, err
	}

	sales, err := e.sales.ListSalesRecords(ctx, "", from, to)
	if err != nil {
		return nil, apperrors.WrapIfNeeded(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "listing sales records")
	}

	return reports.TopMachinesBySales(sales, directory, limit), nil
}

// ComputeSummaryByMachine groups received collections in the window by machine
func (e *Engine) ComputeSummaryByMachine(ctx context.Context, from, to time.Time) (*reports.GroupedReport, error) {
	collections, directory, err := e.collectionsForGrouping(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return reports.SummarizeCollectionsByMachine(collections, directory), nil
}

// ComputeSummaryByDate groups received collections in the window by
// calendar day in the given timezone
func (e *Engine) ComputeSummaryByDate(ctx context.Context, from, to time.Time, loc *time.Location) (*reports.GroupedReport, error) {
	collections, _, err := e.collectionsForGrouping(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return reports.SummarizeCollectionsByDate(collections, loc), nil
}

// ComputeSummaryByOperator groups received collections in the window by
// the field operator who performed them
func (e *Engine) ComputeSummaryByOperator(ctx context.Context, from, to time.Time) (*reports.GroupedReport, error) {
	collections, _, err := e.collectionsForGrouping(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return reports.SummarizeCollectionsByOperator(collections), nil
}

func (e *Engine) collectionsForGrouping(ctx context.Context, from, to time.Time) ([]*models.CollectionRecord, *models.MachineDirectory, error) {
	if err := validateRange(from, to); err != nil {
		return nil, nil, err
	}

	directory, err := e.loadDirectory(ctx)
	if err != nil {
		return nil, nil, err
	}

	collections, err := e.collections.ListCollectionRecords(ctx, 0, from, to, false)
	if err != nil {
		return nil, nil, apperrors.WrapIfNeeded(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "listing collection records")
	}

	return collections, directory, nil
}

func (e *Engine) loadDirectory(ctx context.Context) (*models.MachineDirectory, error) {
	machines, err := e.machines.ListMachines(ctx)
	if err != nil {
		return nil, apperrors.WrapIfNeeded(err, apperrors.CategoryStorage, apperrors.CodeQueryFailed, "listing machines")
	}
	return models.NewMachineDirectory(machines), nil
}

func validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return apperrors.ValidationError("date range", "", "from and to are required")
	}
	if from.After(to) {
		return apperrors.InvalidDateRange(from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return nil
}
