package parsers

import (
	"context"
	"sort"
	"time"

	"vending-reconciliation-service/internal/models"
)

// Snapshot is an in-memory data source over records loaded from CSV
// files. It implements the engine's sales, collection and machine source
// interfaces so the CLI can reconcile a snapshot without a database.
type Snapshot struct {
	machines    []*models.Machine
	sales       []*models.SalesRecord
	collections []*models.CollectionRecord
}

// NewSnapshot builds a snapshot source over the given records. The inputs
// are sorted once up front; callers must not mutate them afterwards.
func NewSnapshot(machines []*models.Machine, sales []*models.SalesRecord, collections []*models.CollectionRecord) *Snapshot {
	s := &Snapshot{
		machines:    machines,
		sales:       sales,
		collections: collections,
	}

	sort.SliceStable(s.sales, func(i, j int) bool {
		if !s.sales[i].SoldAt.Equal(s.sales[j].SoldAt) {
			return s.sales[i].SoldAt.Before(s.sales[j].SoldAt)
		}
		return s.sales[i].ID < s.sales[j].ID
	})
	sort.SliceStable(s.collections, func(i, j int) bool {
		if !s.collections[i].CollectedAt.Equal(s.collections[j].CollectedAt) {
			return s.collections[i].CollectedAt.Before(s.collections[j].CollectedAt)
		}
		return s.collections[i].ID < s.collections[j].ID
	})

	return s
}

// LoadSnapshot reads all three CSV files and assembles a snapshot source
func LoadSnapshot(machinesPath, salesPath, collectionsPath string) (*Snapshot, error) {
	machines, err := LoadMachines(machinesPath)
	if err != nil {
		return nil, err
	}
	sales, err := LoadSalesRecords(salesPath)
	if err != nil {
		return nil, err
	}
	collections, err := LoadCollectionRecords(collectionsPath)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(machines, sales, collections), nil
}

// ListMachines returns the loaded machine fleet
func (s *Snapshot) ListMachines(ctx context.Context) ([]*models.Machine, error) {
	out := make([]*models.Machine, len(s.machines))
	copy(out, s.machines)
	return out, nil
}

// ListSalesRecords returns sales with from < SoldAt <= to, ascending by
// (SoldAt, ID). An empty machineCode matches every machine.
func (s *Snapshot) ListSalesRecords(ctx context.Context, machineCode string, from, to time.Time) ([]*models.SalesRecord, error) {
	var out []*models.SalesRecord
	for _, rec := range s.sales {
		if machineCode != "" && rec.MachineCode != machineCode {
			continue
		}
		if !rec.SoldAt.After(from) || rec.SoldAt.After(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListCollectionRecords returns non-cancelled collections with
// from <= CollectedAt <= to, ascending by (CollectedAt, ID). A zero
// machineID matches every machine. When includeAnchorBefore is set, the
// latest received collection strictly before from is prepended per machine.
func (s *Snapshot) ListCollectionRecords(ctx context.Context, machineID uint, from, to time.Time, includeAnchorBefore bool) ([]*models.CollectionRecord, error) {
	var out []*models.CollectionRecord
	anchors := make(map[uint]*models.CollectionRecord)

	for _, rec := range s.collections {
		if machineID != 0 && rec.MachineID != machineID {
			continue
		}
		if rec.Status == models.CollectionStatusCancelled {
			continue
		}
		if rec.CollectedAt.Before(from) {
			if includeAnchorBefore && rec.CanAnchorPeriod() {
				// records arrive in ascending order, so this keeps the latest
				anchors[rec.MachineID] = rec
			}
			continue
		}
		if rec.CollectedAt.After(to) {
			continue
		}
		out = append(out, rec)
	}

	if len(anchors) == 0 {
		return out, nil
	}

	prefix := make([]*models.CollectionRecord, 0, len(anchors))
	for _, rec := range anchors {
		prefix = append(prefix, rec)
	}
	sort.SliceStable(prefix, func(i, j int) bool {
		if !prefix[i].CollectedAt.Equal(prefix[j].CollectedAt) {
			return prefix[i].CollectedAt.Before(prefix[j].CollectedAt)
		}
		return prefix[i].ID < prefix[j].ID
	})
	return append(prefix, out...), nil
}
