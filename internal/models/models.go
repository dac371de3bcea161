package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a sale was paid for at the machine
type PaymentMethod string

const (
	// PaymentMethodCash represents a sale paid with physical cash
	PaymentMethodCash PaymentMethod = "cash"
	// PaymentMethodCard represents a sale paid through the card acceptor
	PaymentMethodCard PaymentMethod = "card"
)

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodCash || m == PaymentMethodCard
}

// PaymentStatus represents the settlement state of a sale
type PaymentStatus string

const (
	// PaymentStatusPaid represents a completed, settled sale
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusRefunded represents a sale that was reversed
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsValid checks if the payment status is valid
func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusPaid || s == PaymentStatusRefunded
}

// CollectionStatus represents the lifecycle state of a cash collection event
type CollectionStatus string

const (
	// CollectionStatusCollected means the pickup happened but the cash has
	// not been counted and confirmed yet
	CollectionStatusCollected CollectionStatus = "collected"
	// CollectionStatusReceived means the cash was counted and the amount
	// recorded; only received collections carry a trustworthy amount
	CollectionStatusReceived CollectionStatus = "received"
	// CollectionStatusCancelled means the event was voided and must be
	// ignored entirely
	CollectionStatusCancelled CollectionStatus = "cancelled"
)

// String returns the string representation of CollectionStatus
func (s CollectionStatus) String() string {
	return string(s)
}

// IsValid checks if the collection status is valid
func (s CollectionStatus) IsValid() bool {
	switch s {
	case CollectionStatusCollected, CollectionStatusReceived, CollectionStatusCancelled:
		return true
	default:
		return false
	}
}

// Machine represents a single vending machine in the fleet.
//
// Sales records reference machines by the human-entered Code; collection
// records reference the durable numeric ID. The MachineDirectory bridges
// the two so the reconciliation pipeline never joins through storage.
type Machine struct {
	ID       uint   `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// Validate performs basic validation on the Machine
func (m *Machine) Validate() error {
	if m.ID == 0 {
		return fmt.Errorf("machine ID cannot be zero")
	}
	if strings.TrimSpace(m.Code) == "" {
		return fmt.Errorf("machine code cannot be empty")
	}
	return nil
}

// MachineDirectory is an explicit code<->machine lookup table passed into
// the engine instead of an implicit storage-level join.
type MachineDirectory struct {
	byCode map[string]*Machine
	byID   map[uint]*Machine
	all    []*Machine
}

// NewMachineDirectory builds a directory from a machine snapshot.
// Later duplicates of a code or ID win, matching a last-write snapshot read.
func NewMachineDirectory(machines []*Machine) *MachineDirectory {
	d := &MachineDirectory{
		byCode: make(map[string]*Machine, len(machines)),
		byID:   make(map[uint]*Machine, len(machines)),
	}
	for _, m := range machines {
		if m == nil {
			continue
		}
		d.byCode[m.Code] = m
		d.byID[m.ID] = m
		d.all = append(d.all, m)
	}
	return d
}

// ByCode resolves a machine by its human-entered code
func (d *MachineDirectory) ByCode(code string) (*Machine, bool) {
	m, ok := d.byCode[code]
	return m, ok
}

// ByID resolves a machine by its durable identifier
func (d *MachineDirectory) ByID(id uint) (*Machine, bool) {
	m, ok := d.byID[id]
	return m, ok
}

// All returns every machine in the directory in snapshot order
func (d *MachineDirectory) All() []*Machine {
	return d.all
}

// Len returns the number of machines in the directory
func (d *MachineDirectory) Len() int {
	return len(d.all)
}

// SalesRecord represents a single reported point-of-sale transaction.
// Records are immutable once created; the ingestion subsystem owns them.
type SalesRecord struct {
	ID          string          `json:"id"`
	MachineCode string          `json:"machine_code"`
	Method      PaymentMethod   `json:"method"`
	Status      PaymentStatus   `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	SoldAt      time.Time       `json:"sold_at"`
}

// Validate performs basic validation on the SalesRecord
func (s *SalesRecord) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("sales record ID cannot be empty")
	}
	if strings.TrimSpace(s.MachineCode) == "" {
		return fmt.Errorf("sales record machine code cannot be empty")
	}
	if !s.Method.IsValid() {
		return fmt.Errorf("invalid payment method: %s", s.Method)
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("invalid payment status: %s", s.Status)
	}
	if s.Amount.IsNegative() {
		return fmt.Errorf("sales record amount cannot be negative")
	}
	if s.SoldAt.IsZero() {
		return fmt.Errorf("sales record time cannot be zero")
	}
	return nil
}

// CountsTowardCash reports whether the record contributes to the expected
// cash of a reconciliation period. Only cash-paid, non-refunded sales do.
func (s *SalesRecord) CountsTowardCash() bool {
	return s.Method == PaymentMethodCash && s.Status == PaymentStatusPaid
}

// String returns a string representation of the SalesRecord
func (s *SalesRecord) String() string {
	return fmt.Sprintf("SalesRecord{ID: %s, Machine: %s, Method: %s, Status: %s, Amount: %s, Time: %s}",
		s.ID, s.MachineCode, s.Method, s.Status, s.Amount.String(), s.SoldAt.Format(time.RFC3339))
}

// CollectionRecord represents a single physical cash pickup from one
// machine. The engine only ever reads a snapshot; the collection workflow
// that mutates lifecycle state lives outside this service.
type CollectionRecord struct {
	ID          uint             `json:"id"`
	MachineID   uint             `json:"machine_id"`
	Operator    string           `json:"operator"`
	CollectedAt time.Time        `json:"collected_at"`
	Amount      decimal.Decimal  `json:"amount"`
	Status      CollectionStatus `json:"status"`
}

// Validate performs basic validation on the CollectionRecord
func (c *CollectionRecord) Validate() error {
	if c.ID == 0 {
		return fmt.Errorf("collection ID cannot be zero")
	}
	if c.MachineID == 0 {
		return fmt.Errorf("collection machine ID cannot be zero")
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("invalid collection status: %s", c.Status)
	}
	if c.CollectedAt.IsZero() {
		return fmt.Errorf("collection time cannot be zero")
	}
	if c.Status == CollectionStatusReceived && c.Amount.IsNegative() {
		return fmt.Errorf("received collection amount cannot be negative")
	}
	return nil
}

// CanAnchorPeriod reports whether the collection may end a reconciliation
// period and supply its actual amount. Only received collections qualify;
// a collected-but-uncounted pickup contributes no boundary, so its sales
// fold into the next received period.
func (c *CollectionRecord) CanAnchorPeriod() bool {
	return c.Status == CollectionStatusReceived
}

// String returns a string representation of the CollectionRecord
func (c *CollectionRecord) String() string {
	return fmt.Sprintf("CollectionRecord{ID: %d, Machine: %d, Operator: %s, Amount: %s, Status: %s, Time: %s}",
		c.ID, c.MachineID, c.Operator, c.Amount.String(), c.Status, c.CollectedAt.Format(time.RFC3339))
}

// Utility functions for type conversion and validation

// ParseAmount parses a decimal amount from string with validation,
// tolerating currency symbols and thousand separators found in exports
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParsePaymentMethod parses and validates a payment method from string
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash":
		return PaymentMethodCash, nil
	case "card", "credit", "debit":
		return PaymentMethodCard, nil
	default:
		return "", fmt.Errorf("invalid payment method '%s': must be cash or card", s)
	}
}

// ParsePaymentStatus parses and validates a payment status from string
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "success", "settled":
		return PaymentStatusPaid, nil
	case "refunded", "refund", "reversed":
		return PaymentStatusRefunded, nil
	default:
		return "", fmt.Errorf("invalid payment status '%s': must be paid or refunded", s)
	}
}

// ParseCollectionStatus parses and validates a collection status from string
func ParseCollectionStatus(s string) (CollectionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "collected":
		return CollectionStatusCollected, nil
	case "received":
		return CollectionStatusReceived, nil
	case "cancelled", "canceled":
		return CollectionStatusCancelled, nil
	default:
		return "", fmt.Errorf("invalid collection status '%s': must be collected, received or cancelled", s)
	}
}

// ParseTimeWithFormats attempts to parse time from string using the
// formats that show up in machine exports and operator spreadsheets
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		"02/01/2006 15:04:05",
		"02/01/2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s': %w", s, lastErr)
}
