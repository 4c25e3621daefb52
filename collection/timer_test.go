package collection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/vpd/eventlog"
	"github.com/pithecene-io/vpd/types"
)

func TestStatusTimer_CompletesOnceAllTerminal(t *testing.T) {
	tr := NewTracker(nil)
	ctx := t.Context()
	_ = tr.Start(ctx, fanPath)

	completed := make(chan []Entry, 1)
	timer, err := NewStatusTimer(StatusTimerConfig{
		Interval:   5 * time.Millisecond,
		Tracker:    tr,
		OnComplete: func(e []Entry) { completed <- e },
	})
	if err != nil {
		t.Fatalf("NewStatusTimer: %v", err)
	}

	if !timer.Arm(ctx) {
		t.Fatal("first Arm should start the timer")
	}
	if timer.Arm(ctx) {
		t.Error("second Arm should be a no-op")
	}

	// Still in progress: no completion yet.
	select {
	case <-completed:
		t.Fatal("completed while a FRU was in progress")
	case <-time.After(30 * time.Millisecond):
	}

	_ = tr.Complete(ctx, fanPath)

	select {
	case entries := <-completed:
		if len(entries) != 1 || entries[0].Status != types.CollectionCompleted {
			t.Errorf("entries = %+v", entries)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never reported completion")
	}

	if timer.Armed() {
		t.Error("timer should disarm itself after completion")
	}
	if tr.Len() != 0 {
		t.Errorf("tracker not pruned, Len = %d", tr.Len())
	}

	// Re-arming after completion is allowed.
	if !timer.Arm(ctx) {
		t.Error("Arm after completion should start a new poll")
	}
	timer.Stop()
}

func TestStatusTimer_WaitsForReady(t *testing.T) {
	tr := NewTracker(nil)
	ctx := t.Context()
	_ = tr.Start(ctx, fanPath)
	_ = tr.Complete(ctx, fanPath)

	var ready atomic.Bool
	completed := make(chan []Entry, 1)
	timer, err := NewStatusTimer(StatusTimerConfig{
		Interval:   2 * time.Millisecond,
		Tracker:    tr,
		Ready:      ready.Load,
		OnComplete: func(e []Entry) { completed <- e },
	})
	if err != nil {
		t.Fatalf("NewStatusTimer: %v", err)
	}
	timer.Arm(ctx)
	t.Cleanup(timer.Stop)

	select {
	case <-completed:
		t.Fatal("completed before ready")
	case <-time.After(30 * time.Millisecond):
	}
	if tr.Len() != 1 {
		t.Errorf("tracker pruned before ready, Len = %d", tr.Len())
	}

	ready.Store(true)
	select {
	case <-completed:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never reported completion")
	}
}

func TestStatusTimer_PostedOnLoop(t *testing.T) {
	tr := NewTracker(nil)

	var posts atomic.Int32
	post := func(fn func()) bool {
		posts.Add(1)
		fn()
		return true
	}
	done := make(chan struct{})
	timer, _ := NewStatusTimer(StatusTimerConfig{
		Interval:   time.Millisecond,
		Tracker:    tr,
		Post:       post,
		OnComplete: func([]Entry) { close(done) },
	})
	timer.Arm(t.Context())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no completion")
	}
	if posts.Load() == 0 {
		t.Error("checks were not posted")
	}
}

func TestStatusTimer_StoppedLoopDisarms(t *testing.T) {
	tr := NewTracker(nil)
	_ = tr.Start(t.Context(), fanPath)

	timer, _ := NewStatusTimer(StatusTimerConfig{
		Interval: time.Millisecond,
		Tracker:  tr,
		Post:     func(func()) bool { return false },
	})
	timer.Arm(t.Context())

	deadline := time.Now().Add(2 * time.Second)
	for timer.Armed() {
		if time.Now().After(deadline) {
			t.Fatal("timer stayed armed after the loop stopped")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewStatusTimer_RequiresTracker(t *testing.T) {
	if _, err := NewStatusTimer(StatusTimerConfig{}); err == nil {
		t.Fatal("expected error without tracker")
	}
}

type recordingReporter struct {
	mu    sync.Mutex
	calls []types.ErrorType
	sev   []types.SeverityType
}

func (r *recordingReporter) CreateSyncPel(_ context.Context, et types.ErrorType, sev types.SeverityType, _ eventlog.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, et)
	r.sev = append(r.sev, sev)
	return nil
}

func TestSystemVPDTimer_Detects(t *testing.T) {
	var checks atomic.Int32
	var released atomic.Bool
	reporter := &recordingReporter{}

	timer, err := NewSystemVPDTimer(SystemVPDTimerConfig{
		Interval:    time.Millisecond,
		MaxAttempts: 50,
		Detect:      func() bool { return checks.Add(1) >= 3 },
		OnDetected:  func() { released.Store(true) },
		Faults:      reporter,
	})
	if err != nil {
		t.Fatalf("NewSystemVPDTimer: %v", err)
	}

	if err := timer.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !released.Load() {
		t.Error("OnDetected not called")
	}
	if got := checks.Load(); got != 3 {
		t.Errorf("checks = %d, want 3", got)
	}
	if len(reporter.calls) != 0 {
		t.Errorf("unexpected fault records: %v", reporter.calls)
	}
}

func TestSystemVPDTimer_Exhausted(t *testing.T) {
	var checks atomic.Int32
	reporter := &recordingReporter{}

	timer, _ := NewSystemVPDTimer(SystemVPDTimerConfig{
		Interval:    time.Millisecond,
		MaxAttempts: 4,
		Detect:      func() bool { checks.Add(1); return false },
		OnDetected:  func() { t.Error("OnDetected called without system VPD") },
		Faults:      reporter,
	})

	err := timer.Run(t.Context())
	if !errors.Is(err, ErrSystemVPDNotFound) {
		t.Fatalf("Run = %v, want ErrSystemVPDNotFound", err)
	}
	if got := checks.Load(); got != 4 {
		t.Errorf("checks = %d, want 4", got)
	}
	if len(reporter.calls) != 1 || reporter.calls[0] != types.FirmwareError || reporter.sev[0] != types.SeverityCritical {
		t.Errorf("fault records = %v %v, want one critical FirmwareError", reporter.calls, reporter.sev)
	}
}

func TestSystemVPDTimer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	timer, _ := NewSystemVPDTimer(SystemVPDTimerConfig{
		Interval: time.Hour,
		Detect:   func() bool { return true },
	})
	if err := timer.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}
