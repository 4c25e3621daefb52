// Package manager coordinates keyword access and FRU collection.
//
// Requests run one at a time on a single event loop goroutine. Collection
// I/O runs in bounded worker goroutines; each worker is the only writer of
// its FRU's collection state. Failures are classified (see package fault)
// and reported as fault records with FRU-specific callouts.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pithecene-io/vpd/collection"
	"github.com/pithecene-io/vpd/eventlog"
	"github.com/pithecene-io/vpd/log"
	"github.com/pithecene-io/vpd/metrics"
	"github.com/pithecene-io/vpd/types"
	"github.com/pithecene-io/vpd/worker"
)

// DefaultMaxConcurrent bounds concurrent FRU collections.
const DefaultMaxConcurrent = 8

// EventLogger is the subset of the event logger the manager reports through.
type EventLogger interface {
	CreateAsyncPelWithInventoryCallout(errorType types.ErrorType, severity types.SeverityType, callouts []types.InventoryCallout, ev eventlog.Event)
	CreateAsyncPelWithI2cDeviceCallout(errorType types.ErrorType, severity types.SeverityType, callouts []types.DeviceCallout, ev eventlog.DeviceEvent)
	CreateAsyncPel(errorType types.ErrorType, severity types.SeverityType, ev eventlog.Event)
	CreateSyncPel(ctx context.Context, errorType types.ErrorType, severity types.SeverityType, ev eventlog.Event) error
}

// Config configures a Manager.
type Config struct {
	// Worker provides topology and EEPROM I/O (required).
	Worker worker.Worker
	// Publisher receives collected VPD and status (required).
	Publisher worker.Publisher
	// Events receives fault records (required).
	Events EventLogger

	// MaxConcurrent bounds concurrent collections (default 8).
	MaxConcurrent int
	// PollInterval is the collection status poll interval (default 2s).
	PollInterval time.Duration
	// SystemVPDInterval is the system VPD check interval (default 1s).
	SystemVPDInterval time.Duration
	// SystemVPDMaxAttempts bounds system VPD checks (default 120).
	SystemVPDMaxAttempts int
	// CollectOnStart collects system VPD at Start, then every other FRU
	// once system VPD is published.
	CollectOnStart bool

	// Logger is optional.
	Logger *log.Logger
	// Collector is optional.
	Collector *metrics.Collector
}

// Manager is the VPD coordinator.
type Manager struct {
	worker    worker.Worker
	publisher worker.Publisher
	events    EventLogger
	logger    *log.Logger
	collector *metrics.Collector

	cfg     Config
	loop    *eventLoop
	tracker *collection.Tracker
	status  *collection.StatusTimer
	sem     *semaphore.Weighted

	// bringUpPending holds back system-wide completion between the system
	// FRU dispatch and collectAll. Loop-owned.
	bringUpPending bool

	// runCtx bounds collection workers and timers; cancelled by Stop.
	mu        sync.Mutex
	runCtx    context.Context
	runCancel context.CancelFunc
	workers   sync.WaitGroup
	bringUp   chan struct{}
}

// New validates cfg and builds a stopped Manager.
func New(cfg Config) (*Manager, error) {
	if cfg.Worker == nil {
		return nil, errors.New("manager: worker is required")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("manager: publisher is required")
	}
	if cfg.Events == nil {
		return nil, errors.New("manager: event logger is required")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	m := &Manager{
		worker:    cfg.Worker,
		publisher: cfg.Publisher,
		events:    cfg.Events,
		logger:    cfg.Logger,
		collector: cfg.Collector,
		cfg:       cfg,
		loop:      newEventLoop(),
		tracker:   collection.NewTracker(cfg.Logger),
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}

	status, err := collection.NewStatusTimer(collection.StatusTimerConfig{
		Interval:   cfg.PollInterval,
		Tracker:    m.tracker,
		Post:       m.loop.post,
		OnComplete: m.systemCollectionDone,
		Ready:      func() bool { return !m.bringUpPending },
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	m.status = status
	return m, nil
}

// Start runs the event loop and, with CollectOnStart, begins bring-up
// collection in the background. ctx bounds the manager's lifetime.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loop.start() {
		return errors.New("manager: already started")
	}
	m.runCtx, m.runCancel = context.WithCancel(ctx)
	m.bringUp = make(chan struct{})

	m.logger.Info("manager started", map[string]any{
		"frus":           len(m.worker.Frus()),
		"max_concurrent": m.cfg.MaxConcurrent,
	})

	if !m.cfg.CollectOnStart {
		close(m.bringUp)
		return nil
	}
	go m.runBringUp(m.runCtx, m.bringUp)
	return nil
}

// Stop cancels collections and timers, drains the event loop, then waits
// for collection workers to exit.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.runCancel
	bringUp := m.bringUp
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	m.status.Stop()

	select {
	case <-bringUp:
	case <-ctx.Done():
		return fmt.Errorf("manager: stop: %w", ctx.Err())
	}

	// Workers are only dispatched from the loop, so none start after it stops.
	if err := m.loop.stop(ctx); err != nil {
		return fmt.Errorf("manager: stop: %w", err)
	}

	waited := make(chan struct{})
	go func() {
		m.workers.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return fmt.Errorf("manager: stop: %w", ctx.Err())
	}

	m.logger.Info("manager stopped", nil)
	return nil
}

// runBringUp collects the system VPD, waits for it to be published, then
// collects every other FRU.
func (m *Manager) runBringUp(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	sys, ok := m.worker.SystemFru()
	if !ok {
		m.logger.Warn("no system VPD FRU in topology, collecting all FRUs", nil)
		m.loop.post(func() { m.collectAll(ctx, nil) })
		return
	}

	m.loop.post(func() {
		m.bringUpPending = true
		if err := m.startCollection(sys); err != nil {
			m.logger.Error("system VPD collection not started", map[string]any{
				"path":  sys.InventoryPath,
				"error": err.Error(),
			})
		}
	})

	timer, err := collection.NewSystemVPDTimer(collection.SystemVPDTimerConfig{
		Interval:    m.cfg.SystemVPDInterval,
		MaxAttempts: m.cfg.SystemVPDMaxAttempts,
		Detect:      func() bool { return m.publisher.IsPublished(sys.InventoryPath) },
		OnDetected: func() {
			m.loop.post(func() { m.collectAll(ctx, &sys) })
		},
		Faults: m.events,
		Logger: m.logger,
	})
	if err != nil {
		m.logger.Error("system VPD timer", map[string]any{"error": err.Error()})
		m.loop.post(func() { m.bringUpPending = false })
		return
	}
	if err := timer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("running without system VPD", map[string]any{
			"error": err.Error(),
		})
		// Degraded: completion covers whatever was started.
		m.loop.post(func() { m.bringUpPending = false })
	}
}

// collectAll starts collection of every FRU except skip. Runs on the loop.
func (m *Manager) collectAll(_ context.Context, skip *worker.FruInfo) {
	m.bringUpPending = false
	started := 0
	for _, info := range m.worker.Frus() {
		if skip != nil && info.InventoryPath == skip.InventoryPath {
			continue
		}
		if err := m.startCollection(info); err != nil {
			m.logger.Warn("collection not started", map[string]any{
				"path":  info.InventoryPath,
				"error": err.Error(),
			})
			continue
		}
		started++
	}
	m.logger.Info("bring-up collection dispatched", map[string]any{
		"frus": started,
	})
}

func (m *Manager) context() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runCtx == nil {
		return context.Background()
	}
	return m.runCtx
}

// Tracker exposes collection state for status views.
func (m *Manager) Tracker() *collection.Tracker {
	return m.tracker
}
