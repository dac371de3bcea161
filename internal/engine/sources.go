package engine

import (
	"context"
	"time"

	"vending-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

// SalesRecordSource supplies normalized sales records for a window.
//
// Implementations return records with from < SoldAt <= to, ascending by
// (SoldAt, ID). An empty machineCode means all machines. The engine filters
// method/status client-side, so sources may return every payment method.
type SalesRecordSource interface {
	ListSalesRecords(ctx context.Context, machineCode string, from, to time.Time) ([]*models.SalesRecord, error)
}

// CollectionRecordSource supplies collection events for a window.
//
// Implementations return non-cancelled records with from <= CollectedAt <= to,
// ascending by (CollectedAt, ID). A zero machineID means all machines. When
// includeAnchorBefore is set, the one received collection immediately
// preceding from (per machine) is prepended so the first period in range
// can be bounded correctly.
type CollectionRecordSource interface {
	ListCollectionRecords(ctx context.Context, machineID uint, from, to time.Time, includeAnchorBefore bool) ([]*models.CollectionRecord, error)
}

// SettingsSource supplies the reconciliation configuration, read at call
// time so stored data reclassifies consistently when settings change.
type SettingsSource interface {
	ReconciliationTolerance(ctx context.Context) (decimal.Decimal, error)
	ShortageAlertThreshold(ctx context.Context) (decimal.Decimal, error)
}

// MachineSource supplies the machine fleet snapshot the engine builds its
// code<->identity directory from.
type MachineSource interface {
	ListMachines(ctx context.Context) ([]*models.Machine, error)
}

// StaticSettings is a SettingsSource with fixed values. Used by the CLI
// snapshot mode and in tests.
type StaticSettings struct {
	Tolerance decimal.Decimal
	Threshold decimal.Decimal
}

// ReconciliationTolerance returns the fixed tolerance percentage
func (s StaticSettings) ReconciliationTolerance(ctx context.Context) (decimal.Decimal, error) {
	return s.Tolerance, nil
}

// ShortageAlertThreshold returns the fixed alert threshold percentage
func (s StaticSettings) ShortageAlertThreshold(ctx context.Context) (decimal.Decimal, error) {
	return s.Threshold, nil
}
