package lode

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/vpd/metrics"
	"github.com/pithecene-io/vpd/types"
)

// sharedFactory returns a StoreFactory that always returns the given store.
// This allows write and read datasets to share the same in-memory state.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func faultRecord(id, errorType, level, ts string) *types.FaultRecord {
	return &types.FaultRecord{
		RecordVersion: types.RecordVersion,
		ID:            id,
		Timestamp:     ts,
		ErrorType:     errorType,
		Message:       "com.ibm.VPD.Error." + errorType,
		Severity:      severityLevelPrefix + level,
		Description:   "test fault",
		Callouts: []types.CalloutEntry{
			{Kind: types.CalloutInventory, Path: "/xyz/openbmc_project/inventory/system/chassis/motherboard", Priority: "H"},
		},
		UserData: map[string]string{"UserData1": "VINI:SN"},
	}
}

func TestArchive_WriteAndQuery(t *testing.T) {
	store := lode.NewMemory()
	collector := metrics.NewCollector("lode", "memory")

	archive, err := NewArchive(Config{}, sharedFactory(store))
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	archive.WithCollector(collector)

	records := []*types.FaultRecord{
		faultRecord("pel-1", "WriteFailure", "Warning", "2026-10-18T23:59:00Z"),
		faultRecord("pel-2", "ReadFailure", "Error", "2026-10-19T08:00:00Z"),
		faultRecord("pel-3", "InvalidEeprom", "Error", "2026-10-19T09:30:00Z"),
	}
	for _, r := range records {
		if err := archive.Create(t.Context(), r); err != nil {
			t.Fatalf("Create(%s): %v", r.ID, err)
		}
	}

	if s := collector.Snapshot(); s.ArchiveWriteSuccess != 3 {
		t.Errorf("ArchiveWriteSuccess = %d, want 3", s.ArchiveWriteSuccess)
	}

	ds, err := NewReadDataset("", sharedFactory(store))
	if err != nil {
		t.Fatalf("NewReadDataset: %v", err)
	}

	all, err := QueryFaults(t.Context(), ds, FaultFilter{})
	if err != nil {
		t.Fatalf("QueryFaults: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d records, want 3", len(all))
	}

	errorsOnly, err := QueryFaults(t.Context(), ds, FaultFilter{Severity: "Error"})
	if err != nil {
		t.Fatalf("QueryFaults(Error): %v", err)
	}
	if len(errorsOnly) != 2 {
		t.Fatalf("got %d Error records, want 2", len(errorsOnly))
	}
	for _, r := range errorsOnly {
		if r.Severity != severityLevelPrefix+"Error" {
			t.Errorf("Severity = %q, want full level name", r.Severity)
		}
		if r.Day != "2026-10-19" {
			t.Errorf("Day = %q, want 2026-10-19", r.Day)
		}
		if len(r.Callouts) != 1 || r.Callouts[0].Priority != "H" {
			t.Errorf("callouts not preserved: %+v", r.Callouts)
		}
	}

	byDay, err := QueryFaults(t.Context(), ds, FaultFilter{Day: "2026-10-18"})
	if err != nil {
		t.Fatalf("QueryFaults(day): %v", err)
	}
	if len(byDay) != 1 || byDay[0].ID != "pel-1" {
		t.Errorf("QueryFaults(day) = %+v, want pel-1", byDay)
	}

	byType, err := QueryFaults(t.Context(), ds, FaultFilter{ErrorType: "InvalidEeprom"})
	if err != nil {
		t.Fatalf("QueryFaults(type): %v", err)
	}
	if len(byType) != 1 || byType[0].ID != "pel-3" {
		t.Errorf("QueryFaults(type) = %+v, want pel-3", byType)
	}

	limited, err := QueryFaults(t.Context(), ds, FaultFilter{Limit: 1})
	if err != nil {
		t.Fatalf("QueryFaults(limit): %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d records, want 1", len(limited))
	}
}

func TestArchive_RejectsMissingID(t *testing.T) {
	collector := metrics.NewCollector("lode", "memory")
	archive, err := NewArchive(Config{Dataset: "test"}, lode.NewMemoryFactory())
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	archive.WithCollector(collector)

	err = archive.Create(t.Context(), faultRecord("", "ReadFailure", "Error", "2026-10-19T08:00:00Z"))
	if !errors.Is(err, ErrMissingRecordID) {
		t.Errorf("Create() = %v, want ErrMissingRecordID", err)
	}
	if s := collector.Snapshot(); s.ArchiveWriteFailure != 1 {
		t.Errorf("ArchiveWriteFailure = %d, want 1", s.ArchiveWriteFailure)
	}
}

func TestArchive_DayFallsBackToNow(t *testing.T) {
	store := lode.NewMemory()
	archive, err := NewArchive(Config{}, sharedFactory(store))
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	archive.now = func() time.Time { return time.Date(2026, 10, 19, 1, 0, 0, 0, time.UTC) }

	if err := archive.Create(t.Context(), faultRecord("pel-x", "ReadFailure", "Error", "not a timestamp")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ds, _ := NewReadDataset("", sharedFactory(store))
	got, err := QueryFaults(t.Context(), ds, FaultFilter{Day: "2026-10-19"})
	if err != nil {
		t.Fatalf("QueryFaults: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d records, want 1", len(got))
	}
}

// failingStore is a lode.Store whose writes fail.
type failingStore struct {
	putErr error
}

func (s *failingStore) Put(_ context.Context, _ string, _ io.Reader) error { return s.putErr }
func (s *failingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, errors.New("not found")
}
func (s *failingStore) Exists(_ context.Context, _ string) (bool, error)  { return false, nil }
func (s *failingStore) List(_ context.Context, _ string) ([]string, error) { return nil, nil }
func (s *failingStore) Delete(_ context.Context, _ string) error           { return nil }
func (s *failingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}
func (s *failingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*failingStore)(nil)

func TestArchive_WriteFailureClassified(t *testing.T) {
	store := &failingStore{putErr: errors.New("write /var/lib/vpd/pel: no space left on device")}
	archive, err := NewArchive(Config{}, sharedFactory(store))
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}

	err = archive.Create(t.Context(), faultRecord("pel-1", "ReadFailure", "Error", "2026-10-19T08:00:00Z"))
	if !errors.Is(err, ErrDiskFull) {
		t.Errorf("Create() = %v, want ErrDiskFull", err)
	}
}

func TestSeverityPartition(t *testing.T) {
	if got := SeverityPartition(severityLevelPrefix + "Critical"); got != "Critical" {
		t.Errorf("SeverityPartition = %q, want Critical", got)
	}
	if got := SeverityPartition(""); got != "unknown" {
		t.Errorf("SeverityPartition(empty) = %q, want unknown", got)
	}
}

func TestParseS3Path(t *testing.T) {
	bucket, prefix := ParseS3Path("bmc-faults/rack7/node3")
	if bucket != "bmc-faults" || prefix != "rack7/node3" {
		t.Errorf("ParseS3Path = %q, %q", bucket, prefix)
	}
	bucket, prefix = ParseS3Path("bmc-faults")
	if bucket != "bmc-faults" || prefix != "" {
		t.Errorf("ParseS3Path = %q, %q", bucket, prefix)
	}
}
