package collection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pithecene-io/vpd/eventlog"
	"github.com/pithecene-io/vpd/log"
	"github.com/pithecene-io/vpd/types"
)

// Timer defaults.
const (
	DefaultPollInterval         = 2 * time.Second
	DefaultSystemVPDInterval    = 1 * time.Second
	DefaultSystemVPDMaxAttempts = 120
)

const (
	systemVPDInternalRC         = 1
	systemVPDMissingDescription = "system VPD not published after maximum attempts"
)

// ErrSystemVPDNotFound is returned by SystemVPDTimer.Run when attempts run out.
var ErrSystemVPDNotFound = errors.New("system VPD not detected")

// Poster runs fn on the caller's event loop. It returns false if fn will
// never run (the loop has stopped).
type Poster func(fn func()) bool

// Inline is a Poster that runs fn on the calling goroutine.
func Inline(fn func()) bool {
	fn()
	return true
}

// StatusTimer polls a Tracker until every FRU is terminal, then reports
// completion once and stops. It is re-armed by the next collection.
type StatusTimer struct {
	interval   time.Duration
	tracker    *Tracker
	post       Poster
	onComplete func([]Entry)
	ready      func() bool
	logger     *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// StatusTimerConfig configures a StatusTimer.
type StatusTimerConfig struct {
	// Interval between polls (default 2s).
	Interval time.Duration
	// Tracker to poll (required).
	Tracker *Tracker
	// Post runs each check on the owning event loop (default Inline).
	Post Poster
	// OnComplete receives the final states before they are pruned.
	OnComplete func([]Entry)
	// Ready gates completion. While it reports false the timer keeps
	// polling even if every tracked FRU is terminal. Called on the loop.
	Ready func() bool
	// Logger is optional.
	Logger *log.Logger
}

// NewStatusTimer creates a disarmed StatusTimer.
func NewStatusTimer(cfg StatusTimerConfig) (*StatusTimer, error) {
	if cfg.Tracker == nil {
		return nil, errors.New("collection: status timer requires a tracker")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Post == nil {
		cfg.Post = Inline
	}
	if cfg.OnComplete == nil {
		cfg.OnComplete = func([]Entry) {}
	}
	if cfg.Ready == nil {
		cfg.Ready = func() bool { return true }
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &StatusTimer{
		interval:   cfg.Interval,
		tracker:    cfg.Tracker,
		post:       cfg.Post,
		onComplete: cfg.OnComplete,
		ready:      cfg.Ready,
		logger:     cfg.Logger,
	}, nil
}

// Arm starts polling. Returns false if the timer was already armed.
func (s *StatusTimer) Arm(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.gen++
	go s.loop(ctx, s.gen)
	return true
}

// Armed reports whether the timer is polling.
func (s *StatusTimer) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Stop disarms the timer without reporting completion.
func (s *StatusTimer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *StatusTimer) loop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			done := make(chan bool, 1)
			if !s.post(func() { done <- s.check(gen) }) {
				s.disarm(gen)
				return
			}
			select {
			case finished := <-done:
				if finished {
					return
				}
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// check runs on the event loop. Returns true when polling should stop.
func (s *StatusTimer) check(gen uint64) bool {
	if !s.ready() || !s.tracker.AllTerminal() {
		return false
	}
	if !s.disarm(gen) {
		return true
	}

	entries := s.tracker.Snapshot()
	s.tracker.Prune()
	s.logger.Info("collection complete", map[string]any{
		"frus": len(entries),
	})
	s.onComplete(entries)
	return true
}

// disarm clears the armed state if gen is still current.
func (s *StatusTimer) disarm(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

// FaultReporter is the part of the event logger the system VPD timer uses.
type FaultReporter interface {
	CreateSyncPel(ctx context.Context, errorType types.ErrorType, severity types.SeverityType, ev eventlog.Event) error
}

// SystemVPDTimerConfig configures a SystemVPDTimer.
type SystemVPDTimerConfig struct {
	// Interval between checks (default 1s).
	Interval time.Duration
	// MaxAttempts before giving up (default 120).
	MaxAttempts int
	// Detect reports whether system VPD is published (required).
	Detect func() bool
	// OnDetected runs once when Detect first reports true.
	OnDetected func()
	// Faults receives the fatal record on exhaustion. Optional.
	Faults FaultReporter
	// Logger is optional.
	Logger *log.Logger
}

// SystemVPDTimer waits for the system (motherboard) VPD to appear at
// bring-up, releasing collection of the remaining FRUs once it does.
type SystemVPDTimer struct {
	cfg SystemVPDTimerConfig
}

// NewSystemVPDTimer validates cfg and applies defaults.
func NewSystemVPDTimer(cfg SystemVPDTimerConfig) (*SystemVPDTimer, error) {
	if cfg.Detect == nil {
		return nil, errors.New("collection: system VPD timer requires a detector")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSystemVPDInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultSystemVPDMaxAttempts
	}
	if cfg.OnDetected == nil {
		cfg.OnDetected = func() {}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &SystemVPDTimer{cfg: cfg}, nil
}

// Run checks for system VPD every interval. It returns nil after
// OnDetected ran, ErrSystemVPDNotFound once attempts are exhausted (after
// submitting a critical FirmwareError record), or ctx.Err().
func (t *SystemVPDTimer) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if t.cfg.Detect() {
			t.cfg.Logger.Info("system VPD detected", map[string]any{
				"attempts": attempt,
			})
			t.cfg.OnDetected()
			return nil
		}
	}

	t.cfg.Logger.Error("system VPD not detected", map[string]any{
		"attempts": t.cfg.MaxAttempts,
	})
	if t.cfg.Faults != nil {
		ev := eventlog.Here(systemVPDInternalRC, systemVPDMissingDescription)
		if err := t.cfg.Faults.CreateSyncPel(ctx, types.FirmwareError, types.SeverityCritical, ev); err != nil {
			t.cfg.Logger.Error("system VPD fault record failed", map[string]any{
				"error": err.Error(),
			})
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrSystemVPDNotFound, t.cfg.MaxAttempts)
}
