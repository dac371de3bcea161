package engine

import (
	"github.com/shopspring/decimal"
)

// Status represents the reconciliation classification of one period
type Status string

const (
	// StatusMatched means the deviation is within the configured tolerance
	StatusMatched Status = "matched"
	// StatusShortage means less cash was collected than the sales predict
	StatusShortage Status = "shortage"
	// StatusOverage means more cash was collected than the sales predict
	StatusOverage Status = "overage"
	// StatusNoSales means the period had neither expected nor actual cash
	StatusNoSales Status = "no_sales"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusMatched, StatusShortage, StatusOverage, StatusNoSales:
		return true
	default:
		return false
	}
}

var hundred = decimal.NewFromInt(100)

// Classification is the outcome of comparing expected against actual cash
type Classification struct {
	Difference       decimal.Decimal `json:"difference"`
	PercentDeviation decimal.Decimal `json:"percent_deviation"`
	Status           Status          `json:"status"`
}

// Classify compares the expected cash of a period with the amount actually
// collected.
//
// Difference is signed: positive means overage, negative shortage. The
// percent deviation is difference/expected*100, with the zero-expected
// branches defined rather than thrown: both zero gives 0 and status
// no_sales; expected zero with a non-zero actual gives 100 (an undefined
// baseline counts as full deviation). tolerancePercent is read by the
// caller at call time, so reclassification under a new tolerance is a pure
// re-run; raising the tolerance can only move a period toward matched.
func Classify(expected, actual, tolerancePercent decimal.Decimal) Classification {
	difference := actual.Sub(expected)

	var percent decimal.Decimal
	switch {
	case expected.IsZero() && actual.IsZero():
		return Classification{
			Difference:       difference,
			PercentDeviation: decimal.Zero,
			Status:           StatusNoSales,
		}
	case expected.IsZero():
		percent = hundred
		if difference.IsNegative() {
			percent = hundred.Neg()
		}
	default:
		percent = difference.Div(expected).Mul(hundred)
	}

	status := StatusMatched
	if percent.Abs().GreaterThan(tolerancePercent) {
		if difference.IsNegative() {
			status = StatusShortage
		} else {
			status = StatusOverage
		}
	}

	return Classification{
		Difference:       difference,
		PercentDeviation: percent,
		Status:           status,
	}
}
