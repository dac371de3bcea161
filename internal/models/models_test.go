package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func createTestSalesRecord() *SalesRecord {
	return &SalesRecord{
		ID:          "S001",
		MachineCode: "VM-001",
		Method:      PaymentMethodCash,
		Status:      PaymentStatusPaid,
		Amount:      decimal.NewFromInt(1500),
		SoldAt:      time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

func createTestCollectionRecord() *CollectionRecord {
	return &CollectionRecord{
		ID:          1,
		MachineID:   10,
		Operator:    "alice",
		CollectedAt: time.Date(2026, 1, 15, 18, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(90000),
		Status:      CollectionStatusReceived,
	}
}

func TestPaymentMethodIsValid(t *testing.T) {
	tests := []struct {
		method PaymentMethod
		valid  bool
	}{
		{PaymentMethodCash, true},
		{PaymentMethodCard, true},
		{PaymentMethod("crypto"), false},
		{PaymentMethod(""), false},
	}

	for _, tt := range tests {
		if got := tt.method.IsValid(); got != tt.valid {
			t.Errorf("PaymentMethod(%q).IsValid() = %v, want %v", tt.method, got, tt.valid)
		}
	}
}

func TestCollectionStatusIsValid(t *testing.T) {
	tests := []struct {
		status CollectionStatus
		valid  bool
	}{
		{CollectionStatusCollected, true},
		{CollectionStatusReceived, true},
		{CollectionStatusCancelled, true},
		{CollectionStatus("pending"), false},
	}

	for _, tt := range tests {
		if got := tt.status.IsValid(); got != tt.valid {
			t.Errorf("CollectionStatus(%q).IsValid() = %v, want %v", tt.status, got, tt.valid)
		}
	}
}

func TestSalesRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*SalesRecord)
		wantErr bool
	}{
		{"valid record", func(s *SalesRecord) {}, false},
		{"empty ID", func(s *SalesRecord) { s.ID = "" }, true},
		{"empty machine code", func(s *SalesRecord) { s.MachineCode = "" }, true},
		{"invalid method", func(s *SalesRecord) { s.Method = "check" }, true},
		{"invalid status", func(s *SalesRecord) { s.Status = "void" }, true},
		{"negative amount", func(s *SalesRecord) { s.Amount = decimal.NewFromInt(-1) }, true},
		{"zero time", func(s *SalesRecord) { s.SoldAt = time.Time{} }, true},
		{"zero amount allowed", func(s *SalesRecord) { s.Amount = decimal.Zero }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestSalesRecord()
			tt.modify(s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCollectionRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*CollectionRecord)
		wantErr bool
	}{
		{"valid record", func(c *CollectionRecord) {}, false},
		{"zero ID", func(c *CollectionRecord) { c.ID = 0 }, true},
		{"zero machine ID", func(c *CollectionRecord) { c.MachineID = 0 }, true},
		{"invalid status", func(c *CollectionRecord) { c.Status = "pending" }, true},
		{"zero time", func(c *CollectionRecord) { c.CollectedAt = time.Time{} }, true},
		{"negative received amount", func(c *CollectionRecord) { c.Amount = decimal.NewFromInt(-5) }, true},
		{"empty operator allowed", func(c *CollectionRecord) { c.Operator = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := createTestCollectionRecord()
			tt.modify(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCountsTowardCash(t *testing.T) {
	tests := []struct {
		name   string
		method PaymentMethod
		status PaymentStatus
		want   bool
	}{
		{"paid cash counts", PaymentMethodCash, PaymentStatusPaid, true},
		{"refunded cash excluded", PaymentMethodCash, PaymentStatusRefunded, false},
		{"paid card excluded", PaymentMethodCard, PaymentStatusPaid, false},
		{"refunded card excluded", PaymentMethodCard, PaymentStatusRefunded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestSalesRecord()
			s.Method = tt.method
			s.Status = tt.status
			if got := s.CountsTowardCash(); got != tt.want {
				t.Errorf("CountsTowardCash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAnchorPeriod(t *testing.T) {
	tests := []struct {
		status CollectionStatus
		want   bool
	}{
		{CollectionStatusReceived, true},
		{CollectionStatusCollected, false},
		{CollectionStatusCancelled, false},
	}

	for _, tt := range tests {
		c := createTestCollectionRecord()
		c.Status = tt.status
		if got := c.CanAnchorPeriod(); got != tt.want {
			t.Errorf("CanAnchorPeriod() with status %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1500", "1500", false},
		{"1,500.25", "1500.25", false},
		{"$90,000", "90000", false},
		{" 42.50 ", "42.5", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got.String(), tt.want)
			}
		})
	}
}

func TestParseTimeWithFormats(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"2026-01-15T10:30:00Z", false},
		{"2026-01-15 10:30:00", false},
		{"2026-01-15", false},
		{"15/01/2026", false},
		{"January 15 2026", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeWithFormats(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimeWithFormats(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got.Location() != time.UTC {
				t.Errorf("ParseTimeWithFormats(%q) location = %v, want UTC", tt.input, got.Location())
			}
		})
	}
}

func TestMachineDirectory(t *testing.T) {
	machines := []*Machine{
		{ID: 1, Code: "VM-001", Name: "Lobby"},
		{ID: 2, Code: "VM-002", Name: "Cafeteria"},
	}
	dir := NewMachineDirectory(machines)

	if dir.Len() != 2 {
		t.Errorf("Expected 2 machines, got %d", dir.Len())
	}

	m, ok := dir.ByCode("VM-001")
	if !ok || m.ID != 1 {
		t.Errorf("ByCode(VM-001) = %v, %v; want machine 1", m, ok)
	}

	m, ok = dir.ByID(2)
	if !ok || m.Code != "VM-002" {
		t.Errorf("ByID(2) = %v, %v; want VM-002", m, ok)
	}

	if _, ok := dir.ByCode("VM-999"); ok {
		t.Error("Expected lookup of unknown code to fail")
	}
}
