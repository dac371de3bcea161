// Package parsers loads machine, sales and collection snapshots from CSV
// files.
//
// This is the harness for the one-shot CLI mode and for tests: a way to
// hand the engine a complete data snapshot without a database. It is not
// the ingestion subsystem, which normalizes raw acceptor exports and lives
// outside this service.
//
// Expected columns (header row required):
//
//	machines.csv:    id,code,name,location
//	sales.csv:       id,machine_code,method,status,amount,sold_at
//	collections.csv: id,machine_id,operator,collected_at,amount,status
package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"vending-reconciliation-service/internal/models"
	apperrors "vending-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// headerIndex maps lowercased column names to positions
type headerIndex map[string]int

func readHeader(r *csv.Reader, file string, required []string) (headerIndex, error) {
	record, err := r.Read()
	if err != nil {
		return nil, apperrors.ParseError(file, 1, fmt.Errorf("missing header row: %w", err))
	}
	idx := make(headerIndex, len(record))
	for i, name := range record {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, apperrors.ParseError(file, 1, fmt.Errorf("missing required column '%s'", name))
		}
	}
	return idx, nil
}

func (h headerIndex) field(record []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// LoadMachines reads a machine fleet snapshot from a CSV file
func LoadMachines(path string) ([]*models.Machine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryData, apperrors.CodeParseFailure,
			fmt.Sprintf("cannot open machines file %s", path))
	}
	defer f.Close()
	return ParseMachines(f, path)
}

// ParseMachines reads machine rows from r. The path argument only labels
// error messages.
func ParseMachines(r io.Reader, path string) ([]*models.Machine, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	idx, err := readHeader(reader, path, []string{"id", "code", "name"})
	if err != nil {
		return nil, err
	}

	var machines []*models.Machine
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.ParseError(path, line, err)
		}

		id, err := strconv.ParseUint(idx.field(record, "id"), 10, 64)
		if err != nil {
			return nil, apperrors.ParseError(path, line, fmt.Errorf("invalid machine id: %w", err))
		}

		m := &models.Machine{
			ID:       uint(id),
			Code:     idx.field(record, "code"),
			Name:     idx.field(record, "name"),
			Location: idx.field(record, "location"),
		}
		if err := m.Validate(); err != nil {
			return nil, apperrors.ParseError(path, line, err)
		}
		machines = append(machines, m)
	}

	return machines, nil
}

// LoadSalesRecords reads a sales snapshot from a CSV file
func LoadSalesRecords(path string) ([]*models.SalesRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryData, apperrors.CodeParseFailure,
			fmt.Sprintf("cannot open sales file %s", path))
	}
	defer f.Close()
	return ParseSalesRecords(f, path)
}

// ParseSalesRecords reads sales rows from r
func ParseSalesRecords(r io.Reader, path string) ([]*models.SalesRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	idx, err := readHeader(reader, path, []string{"id", "machine_code", "method", "status", "amount", "sold_at"})
	if err != nil {
		return nil, err
	}

	var records []*models.SalesRecord
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.ParseError(path, line, err)
		}

		s, err := salesRecordFromFields(idx, record)
		if err != nil {
			return nil, apperrors.ParseError(path, line, err)
		}
		records = append(records, s)
	}

	return records, nil
}

func salesRecordFromFields(idx headerIndex, record []string) (*models.SalesRecord, error) {
	method, err := models.ParsePaymentMethod(idx.field(record, "method"))
	if err != nil {
		return nil, err
	}
	status, err := models.ParsePaymentStatus(idx.field(record, "status"))
	if err != nil {
		return nil, err
	}
	amount, err := models.ParseAmount(idx.field(record, "amount"))
	if err != nil {
		return nil, err
	}
	soldAt, err := models.ParseTimeWithFormats(idx.field(record, "sold_at"))
	if err != nil {
		return nil, err
	}

	s := &models.SalesRecord{
		ID:          idx.field(record, "id"),
		MachineCode: idx.field(record, "machine_code"),
		Method:      method,
		Status:      status,
		Amount:      amount,
		SoldAt:      soldAt,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadCollectionRecords reads a collection snapshot from a CSV file
func LoadCollectionRecords(path string) ([]*models.CollectionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryData, apperrors.CodeParseFailure,
			fmt.Sprintf("cannot open collections file %s", path))
	}
	defer f.Close()
	return ParseCollectionRecords(f, path)
}

// ParseCollectionRecords reads collection rows from r. The amount column
// may be empty for collections that have not been received yet.
func ParseCollectionRecords(r io.Reader, path string) ([]*models.CollectionRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	idx, err := readHeader(reader, path, []string{"id", "machine_id", "collected_at", "status"})
	if err != nil {
		return nil, err
	}

	var records []*models.CollectionRecord
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.ParseError(path, line, err)
		}

		c, err := collectionFromFields(idx, record)
		if err != nil {
			return nil, apperrors.ParseError(path, line, err)
		}
		records = append(records, c)
	}

	return records, nil
}

func collectionFromFields(idx headerIndex, record []string) (*models.CollectionRecord, error) {
	id, err := strconv.ParseUint(idx.field(record, "id"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid collection id: %w", err)
	}
	machineID, err := strconv.ParseUint(idx.field(record, "machine_id"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid machine id: %w", err)
	}
	collectedAt, err := models.ParseTimeWithFormats(idx.field(record, "collected_at"))
	if err != nil {
		return nil, err
	}
	status, err := models.ParseCollectionStatus(idx.field(record, "status"))
	if err != nil {
		return nil, err
	}

	amount := decimal.Zero
	if raw := idx.field(record, "amount"); raw != "" {
		amount, err = models.ParseAmount(raw)
		if err != nil {
			return nil, err
		}
	}

	c := &models.CollectionRecord{
		ID:          uint(id),
		MachineID:   uint(machineID),
		Operator:    idx.field(record, "operator"),
		CollectedAt: collectedAt,
		Amount:      amount,
		Status:      status,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
