package adapter

import (
	"errors"
	"testing"

	"github.com/pithecene-io/vpd/types"
)

func testRecord() *types.FaultRecord {
	return &types.FaultRecord{
		RecordVersion: types.RecordVersion,
		ID:            "7a1f0c5e-8f47-4a59-9d0e-6bb1d1c2a001",
		Timestamp:     "2026-10-19T12:00:00Z",
		ErrorType:     "WriteFailure",
		Message:       "com.ibm.VPD.Error.WriteFailure",
		Severity:      "xyz.openbmc_project.Logging.Entry.Level.Warning",
	}
}

func TestStubTransport_RecordsAndClose(t *testing.T) {
	s := NewStubTransport()

	if err := s.Create(t.Context(), testRecord()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	if got := s.Records()[0].ErrorType; got != "WriteFailure" {
		t.Errorf("ErrorType = %q, want WriteFailure", got)
	}

	_ = s.Close()
	if err := s.Create(t.Context(), testRecord()); err == nil {
		t.Error("expected error after close")
	}
}

func TestStubTransport_Err(t *testing.T) {
	s := NewStubTransport()
	s.Err = errors.New("logging service unavailable")

	if err := s.Create(t.Context(), testRecord()); !errors.Is(err, s.Err) {
		t.Errorf("Create() = %v, want %v", err, s.Err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestFanout_DeliversDespiteFailure(t *testing.T) {
	failing := NewStubTransport()
	failing.Err = errors.New("down")
	ok := NewStubTransport()

	f := NewFanout(failing, nil, ok)

	err := f.Create(t.Context(), testRecord())
	if !errors.Is(err, failing.Err) {
		t.Errorf("Create() = %v, want joined %v", err, failing.Err)
	}
	if ok.Len() != 1 {
		t.Errorf("healthy transport got %d records, want 1", ok.Len())
	}

	if err := f.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
