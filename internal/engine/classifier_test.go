package engine

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		expected   int64
		actual     int64
		tolerance  int64
		wantStatus Status
		wantDiff   int64
	}{
		{"exact match", 90000, 90000, 5, StatusMatched, 0},
		{"within tolerance short", 90000, 86000, 5, StatusMatched, -4000},
		{"within tolerance over", 90000, 94000, 5, StatusMatched, 4000},
		{"shortage past tolerance", 90000, 85000, 5, StatusShortage, -5000},
		{"overage past tolerance", 90000, 120000, 5, StatusOverage, 30000},
		{"zero tolerance flags any diff", 100, 101, 0, StatusOverage, 1},
		{"zero tolerance exact", 100, 100, 0, StatusMatched, 0},
		{"no sales", 0, 0, 5, StatusNoSales, 0},
		{"unexpected cash with no sales", 0, 5000, 5, StatusOverage, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(d(tt.expected), d(tt.actual), d(tt.tolerance))
			if c.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", c.Status, tt.wantStatus)
			}
			if !c.Difference.Equal(d(tt.wantDiff)) {
				t.Errorf("Difference = %s, want %d", c.Difference, tt.wantDiff)
			}
		})
	}
}

func TestClassifyPercentDeviation(t *testing.T) {
	// 85000 against 90000 expected: -5000/90000*100 ≈ -5.56%
	c := Classify(d(90000), d(85000), d(5))
	if c.Status != StatusShortage {
		t.Fatalf("Status = %s, want shortage", c.Status)
	}
	got := c.PercentDeviation.Round(2)
	if want := decimal.NewFromFloat(-5.56); !got.Equal(want) {
		t.Errorf("PercentDeviation = %s, want %s", got, want)
	}
}

func TestClassifyZeroExpectedDeviation(t *testing.T) {
	c := Classify(d(0), d(5000), d(5))
	if !c.PercentDeviation.Equal(hundred) {
		t.Errorf("PercentDeviation = %s, want 100", c.PercentDeviation)
	}
}

func TestClassifyToleranceMonotonicity(t *testing.T) {
	// A period matched at tolerance T stays matched at any T' > T.
	expected, actual := d(90000), d(85000)
	matchedAt := -1
	for tol := int64(0); tol <= 20; tol++ {
		c := Classify(expected, actual, d(tol))
		if c.Status == StatusMatched {
			if matchedAt == -1 {
				matchedAt = int(tol)
			}
		} else if matchedAt != -1 {
			t.Fatalf("Period unmatched at tolerance %d after matching at %d", tol, matchedAt)
		}
	}
	if matchedAt == -1 {
		t.Fatal("Period never matched; expected a match by tolerance 20")
	}
	// -5.56% deviation: matched from tolerance 6 upward
	if matchedAt != 6 {
		t.Errorf("First matching tolerance = %d, want 6", matchedAt)
	}
}

func TestClassifySameToleranceSameOutcome(t *testing.T) {
	first := Classify(d(90000), d(85000), d(10))
	second := Classify(d(90000), d(85000), d(10))
	if first.Status != second.Status || !first.PercentDeviation.Equal(second.PercentDeviation) {
		t.Error("Classification is not deterministic for identical inputs")
	}
	if first.Status != StatusMatched {
		t.Errorf("Status at 10%% tolerance = %s, want matched", first.Status)
	}
}

func TestStatusIsValid(t *testing.T) {
	for _, s := range []Status{StatusMatched, StatusShortage, StatusOverage, StatusNoSales} {
		if !s.IsValid() {
			t.Errorf("Status %s should be valid", s)
		}
	}
	if Status("pending").IsValid() {
		t.Error("Unknown status should be invalid")
	}
}
