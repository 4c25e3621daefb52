package collection

import (
	"errors"
	"testing"

	"github.com/pithecene-io/vpd/fault"
	"github.com/pithecene-io/vpd/types"
)

const (
	fanPath = "/xyz/openbmc_project/inventory/system/chassis/motherboard/fan0"
	psuPath = "/xyz/openbmc_project/inventory/system/chassis/motherboard/powersupply0"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker(nil)
	ctx := t.Context()

	if got := tr.Status(fanPath); got != types.CollectionNotStarted {
		t.Fatalf("untracked Status = %s, want NotStarted", got)
	}

	if err := tr.Start(ctx, fanPath); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := tr.Status(fanPath); got != types.CollectionInProgress {
		t.Fatalf("Status = %s, want InProgress", got)
	}

	if err := tr.Complete(ctx, fanPath); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := tr.Status(fanPath); got != types.CollectionCompleted {
		t.Fatalf("Status = %s, want Completed", got)
	}

	// A new request is the only way out of a terminal state.
	if err := tr.Start(ctx, fanPath); err != nil {
		t.Fatalf("restart from Completed: %v", err)
	}
	if err := tr.Fail(ctx, fanPath); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if got := tr.Status(fanPath); got != types.CollectionFailed {
		t.Fatalf("Status = %s, want Failed", got)
	}
	if err := tr.Start(ctx, fanPath); err != nil {
		t.Fatalf("restart from Failed: %v", err)
	}
}

func TestTracker_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Tracker)
		do    func(*Tracker) error
		want  error
	}{
		{
			name:  "start while in progress",
			setup: func(tr *Tracker) { _ = tr.Start(t.Context(), fanPath) },
			do:    func(tr *Tracker) error { return tr.Start(t.Context(), fanPath) },
			want:  fault.ErrCollectionInProgress,
		},
		{
			name: "complete untracked",
			do:   func(tr *Tracker) error { return tr.Complete(t.Context(), fanPath) },
			want: ErrInvalidTransition,
		},
		{
			name: "fail after complete",
			setup: func(tr *Tracker) {
				_ = tr.Start(t.Context(), fanPath)
				_ = tr.Complete(t.Context(), fanPath)
			},
			do:   func(tr *Tracker) error { return tr.Fail(t.Context(), fanPath) },
			want: ErrInvalidTransition,
		},
		{
			name: "complete twice",
			setup: func(tr *Tracker) {
				_ = tr.Start(t.Context(), fanPath)
				_ = tr.Complete(t.Context(), fanPath)
			},
			do:   func(tr *Tracker) error { return tr.Complete(t.Context(), fanPath) },
			want: ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(nil)
			if tt.setup != nil {
				tt.setup(tr)
			}
			before := tr.Status(fanPath)
			if err := tt.do(tr); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if after := tr.Status(fanPath); after != before {
				t.Errorf("state changed %s -> %s on rejected transition", before, after)
			}
		})
	}
}

func TestTracker_AllTerminalAndPrune(t *testing.T) {
	tr := NewTracker(nil)
	ctx := t.Context()

	if !tr.AllTerminal() {
		t.Error("empty tracker should be terminal")
	}

	_ = tr.Start(ctx, fanPath)
	_ = tr.Start(ctx, psuPath)
	_ = tr.Complete(ctx, fanPath)

	if tr.AllTerminal() {
		t.Error("AllTerminal with psu in progress")
	}
	if n := tr.Prune(); n != 1 {
		t.Errorf("Prune = %d, want 1", n)
	}
	if tr.Len() != 1 {
		t.Errorf("Len = %d, want 1", tr.Len())
	}

	_ = tr.Fail(ctx, psuPath)
	if !tr.AllTerminal() {
		t.Error("AllTerminal should hold once psu failed")
	}

	snap := tr.Snapshot()
	if len(snap) != 1 || snap[0].Path != psuPath || snap[0].Status != types.CollectionFailed {
		t.Errorf("Snapshot = %+v", snap)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker(nil)
	ctx := t.Context()

	_ = tr.Start(ctx, fanPath)
	if err := tr.Reset(fanPath); !errors.Is(err, fault.ErrCollectionInProgress) {
		t.Errorf("Reset in progress = %v, want ErrCollectionInProgress", err)
	}

	_ = tr.Complete(ctx, fanPath)
	if err := tr.Reset(fanPath); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := tr.Status(fanPath); got != types.CollectionNotStarted {
		t.Errorf("Status after reset = %s, want NotStarted", got)
	}
	if err := tr.Reset("/never/tracked"); err != nil {
		t.Errorf("Reset untracked: %v", err)
	}
}

func TestTracker_SnapshotSorted(t *testing.T) {
	tr := NewTracker(nil)
	_ = tr.Start(t.Context(), psuPath)
	_ = tr.Start(t.Context(), fanPath)

	snap := tr.Snapshot()
	if len(snap) != 2 || snap[0].Path != fanPath || snap[1].Path != psuPath {
		t.Errorf("Snapshot not sorted: %+v", snap)
	}
}
