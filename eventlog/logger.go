package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/vpd/adapter"
	"github.com/pithecene-io/vpd/fault"
	"github.com/pithecene-io/vpd/log"
	"github.com/pithecene-io/vpd/metrics"
	"github.com/pithecene-io/vpd/types"
)

// DefaultQueueSize is the default capacity of the async queue.
const DefaultQueueSize = 64

// DefaultSubmitTimeout bounds each async transport call.
const DefaultSubmitTimeout = 10 * time.Second

// ErrInvalidRecord is returned when the error type or severity is outside
// its enumeration. No record is produced.
var ErrInvalidRecord = errors.New("eventlog: invalid error type or severity")

// ErrClosed is returned by sync entry points after Close.
var ErrClosed = errors.New("eventlog: closed")

// PathResolver translates an EEPROM path to its inventory object path.
type PathResolver interface {
	ResolveInventoryPath(path types.Path) (types.Path, error)
}

// Config configures a Logger.
type Config struct {
	// Transport receives every record (required).
	Transport adapter.Transport
	// Resolver translates EEPROM callout paths for CreateSyncPelWithInvCallOut.
	// Optional; without it paths are used as given.
	Resolver PathResolver
	// QueueSize is the async queue capacity (default 64).
	QueueSize int
	// SubmitTimeout bounds each async transport call (default 10s).
	SubmitTimeout time.Duration
	// Logger is an optional logger for delivery diagnostics.
	Logger *log.Logger
	// Collector is an optional metrics collector.
	Collector *metrics.Collector
}

// Stats is a point-in-time view of record delivery.
type Stats struct {
	// Submitted counts records accepted for delivery (sync or queued).
	Submitted int64
	// Delivered counts records the transport accepted.
	Delivered int64
	// Failed counts records the transport rejected.
	Failed int64
	// Dropped counts async records refused because the queue was full
	// or the logger was closed.
	Dropped int64
	// Pending is the current queue depth.
	Pending int
}

// Logger builds fault records and submits them through a transport.
//
// Async entry points never block: records go onto a bounded queue drained
// by one goroutine, and are dropped when the queue is full. Sync entry
// points call the transport on the caller's goroutine and return its error.
type Logger struct {
	transport adapter.Transport
	resolver  PathResolver
	logger    *log.Logger
	collector *metrics.Collector
	timeout   time.Duration

	now   func() time.Time
	newID func() string

	// mu guards closed and sends on queue.
	mu     sync.RWMutex
	closed bool
	queue  chan *types.FaultRecord
	done   chan struct{}

	stats *statsRecorder
}

// New creates a Logger and starts its drain goroutine.
func New(cfg Config) (*Logger, error) {
	if cfg.Transport == nil {
		return nil, errors.New("eventlog: transport is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	l := &Logger{
		transport: cfg.Transport,
		resolver:  cfg.Resolver,
		logger:    logger,
		collector: cfg.Collector,
		timeout:   cfg.SubmitTimeout,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		queue:     make(chan *types.FaultRecord, cfg.QueueSize),
		done:      make(chan struct{}),
		stats:     &statsRecorder{},
	}
	go l.drain()
	return l, nil
}

// --- Async entry points ---

// CreateAsyncPelWithInventoryCallout queues a record calling out an
// inventory object. Only the first callout is honored; with none the record
// carries no callout.
func (l *Logger) CreateAsyncPelWithInventoryCallout(
	errorType types.ErrorType,
	severity types.SeverityType,
	callouts []types.InventoryCallout,
	ev Event,
) {
	record, err := l.build(errorType, severity, ev)
	if err != nil {
		l.logInvalid(errorType, severity, ev.Function, err)
		return
	}
	if len(callouts) > 0 {
		record.Callouts = []types.CalloutEntry{calloutEntry(callouts[0])}
		l.warnExtraCallouts(len(callouts), ev.Function)
	}
	l.enqueue(record)
}

// CreateAsyncPelWithI2cDeviceCallout queues a record calling out a device
// path with the errno observed on it.
func (l *Logger) CreateAsyncPelWithI2cDeviceCallout(
	errorType types.ErrorType,
	severity types.SeverityType,
	callouts []types.DeviceCallout,
	ev DeviceEvent,
) {
	record, err := l.buildDevice(errorType, severity, ev)
	if err != nil {
		l.logInvalid(errorType, severity, ev.Function, err)
		return
	}
	if len(callouts) > 0 {
		record.Callouts = []types.CalloutEntry{calloutEntry(callouts[0])}
		l.warnExtraCallouts(len(callouts), ev.Function)
	}
	l.enqueue(record)
}

// CreateAsyncPelWithI2cBusCallout queues a record calling out an I2C bus
// and address with the errno observed.
func (l *Logger) CreateAsyncPelWithI2cBusCallout(
	errorType types.ErrorType,
	severity types.SeverityType,
	callouts []types.I2cBusCallout,
	ev DeviceEvent,
) {
	record, err := l.buildDevice(errorType, severity, ev)
	if err != nil {
		l.logInvalid(errorType, severity, ev.Function, err)
		return
	}
	if len(callouts) > 0 {
		record.Callouts = []types.CalloutEntry{calloutEntry(callouts[0])}
		l.warnExtraCallouts(len(callouts), ev.Function)
	}
	l.enqueue(record)
}

// CreateAsyncPel queues a record without callouts.
func (l *Logger) CreateAsyncPel(errorType types.ErrorType, severity types.SeverityType, ev Event) {
	record, err := l.build(errorType, severity, ev)
	if err != nil {
		l.logInvalid(errorType, severity, ev.Function, err)
		return
	}
	l.enqueue(record)
}

// --- Sync entry points ---

// CreateSyncPel submits a record without callouts and waits for the
// transport.
func (l *Logger) CreateSyncPel(ctx context.Context, errorType types.ErrorType, severity types.SeverityType, ev Event) error {
	record, err := l.build(errorType, severity, ev)
	if err != nil {
		return err
	}
	return l.submit(ctx, record)
}

// CreateSyncPelWithInvCallOut submits a record calling out an inventory
// object and waits for the transport. An EEPROM path in the callout is
// translated to its inventory path; if translation fails the path is used
// as given.
func (l *Logger) CreateSyncPelWithInvCallOut(
	ctx context.Context,
	errorType types.ErrorType,
	severity types.SeverityType,
	ev Event,
	callouts []types.InventoryCallout,
) error {
	record, err := l.build(errorType, severity, ev)
	if err != nil {
		return err
	}
	if len(callouts) > 0 {
		c := callouts[0]
		c.Path = l.resolve(c.Path)
		record.Callouts = []types.CalloutEntry{calloutEntry(c)}
		l.warnExtraCallouts(len(callouts), ev.Function)
	}
	return l.submit(ctx, record)
}

// --- Lifecycle ---

// Stats returns a snapshot of delivery counters.
func (l *Logger) Stats() Stats {
	s := l.stats.snapshot()
	s.Pending = len(l.queue)
	return s
}

// Close stops accepting records, waits for the queue to drain, then closes
// the transport. Returns ctx.Err() if ctx ends before the queue drains;
// the transport is left open in that case.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()

	select {
	case <-l.done:
	case <-ctx.Done():
		return fmt.Errorf("eventlog: drain interrupted: %w", ctx.Err())
	}
	return l.transport.Close()
}

// FromError classifies err for a fault record: its ErrorType and a
// description combining the mapped message with the error text.
func FromError(err error) (types.ErrorType, string) {
	if err == nil {
		return types.DefaultValue, ""
	}
	msg := fault.Message(err)
	text := err.Error()
	if msg == text {
		return fault.TypeOf(err), text
	}
	return fault.TypeOf(err), msg + ": " + text
}

// --- internals ---

func (l *Logger) enqueue(record *types.FaultRecord) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.stats.incDropped()
		l.logger.Warn("fault record dropped, logger closed", map[string]any{
			"error_type": record.ErrorType,
			"function":   record.Provenance.Function,
		})
		l.publishStats()
		return
	}

	select {
	case l.queue <- record:
		l.stats.incSubmitted()
		l.collector.IncPelType(record.ErrorType)
	default:
		l.stats.incDropped()
		l.logger.Error("fault record dropped, queue full", map[string]any{
			"error_type": record.ErrorType,
			"function":   record.Provenance.Function,
			"queue_size": cap(l.queue),
		})
	}
	l.publishStats()
}

func (l *Logger) drain() {
	defer close(l.done)
	for record := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		err := l.transport.Create(ctx, record)
		cancel()
		l.recordResult(record, err)
	}
}

func (l *Logger) submit(ctx context.Context, record *types.FaultRecord) error {
	l.mu.RLock()
	closed := l.closed
	l.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	l.stats.incSubmitted()
	l.collector.IncPelType(record.ErrorType)
	err := l.transport.Create(ctx, record)
	l.recordResult(record, err)
	if err != nil {
		return fmt.Errorf("eventlog: create %s record: %w", record.ErrorType, err)
	}
	return nil
}

func (l *Logger) recordResult(record *types.FaultRecord, err error) {
	if err != nil {
		l.stats.incFailed()
		l.logger.Error("fault record delivery failed", map[string]any{
			"id":         record.ID,
			"error_type": record.ErrorType,
			"error":      err.Error(),
		})
	} else {
		l.stats.incDelivered()
		l.logger.Debug("fault record delivered", map[string]any{
			"id":         record.ID,
			"error_type": record.ErrorType,
		})
	}
	l.publishStats()
}

func (l *Logger) publishStats() {
	s := l.stats.snapshot()
	l.collector.AbsorbPelStats(s.Submitted, s.Delivered, s.Failed, s.Dropped)
}

func (l *Logger) resolve(path types.Path) types.Path {
	if l.resolver == nil || path == "" || types.IsInventoryPath(path) {
		return path
	}
	inv, err := l.resolver.ResolveInventoryPath(path)
	if err != nil || inv == "" {
		l.logger.Debug("callout path not translated, using as given", map[string]any{
			"path":  path,
			"error": fmt.Sprint(err),
		})
		return path
	}
	return inv
}

func (l *Logger) base(errorType types.ErrorType, severity types.SeverityType, file, function string, rc uint8) (*types.FaultRecord, error) {
	if !errorType.Valid() || !severity.Valid() {
		return nil, fmt.Errorf("%w: %s/%s", ErrInvalidRecord, errorType, severity)
	}
	return &types.FaultRecord{
		RecordVersion: types.RecordVersion,
		ID:            l.newID(),
		Timestamp:     l.now().UTC().Format(time.RFC3339Nano),
		ErrorType:     errorType.String(),
		Message:       fault.ErrorTypeString(errorType),
		Severity:      fault.SeverityString(severity),
		Provenance: types.Provenance{
			File:       file,
			Function:   function,
			InternalRC: rc,
		},
	}, nil
}

func (l *Logger) build(errorType types.ErrorType, severity types.SeverityType, ev Event) (*types.FaultRecord, error) {
	record, err := l.base(errorType, severity, ev.File, ev.Function, ev.InternalRC)
	if err != nil {
		return nil, err
	}
	record.Description = ev.Description

	data := make(map[string]string)
	if ev.UserData1 != nil {
		data["UserData1"] = *ev.UserData1
	}
	if ev.UserData2 != nil {
		data["UserData2"] = *ev.UserData2
	}
	if len(data) > 0 {
		record.UserData = data
	}

	if ev.SymbolicFru != nil || ev.Procedure != nil {
		l.logger.Debug("symbolic FRU and procedure callouts not rendered", map[string]any{
			"function": ev.Function,
		})
	}
	return record, nil
}

func (l *Logger) buildDevice(errorType types.ErrorType, severity types.SeverityType, ev DeviceEvent) (*types.FaultRecord, error) {
	record, err := l.base(errorType, severity, ev.File, ev.Function, ev.InternalRC)
	if err != nil {
		return nil, err
	}
	data := make(map[string]string)
	for _, ud := range []*UserData{ev.UserData1, ev.UserData2} {
		if ud != nil {
			data[ud.Key] = ud.Value
		}
	}
	if len(data) > 0 {
		record.UserData = data
	}
	return record, nil
}

func (l *Logger) logInvalid(errorType types.ErrorType, severity types.SeverityType, function string, err error) {
	l.logger.Error("fault record not created", map[string]any{
		"error_type": int(errorType),
		"severity":   int(severity),
		"function":   function,
		"error":      err.Error(),
	})
}

func (l *Logger) warnExtraCallouts(n int, function string) {
	if n > 1 {
		l.logger.Debug("only the first callout is rendered", map[string]any{
			"callouts": n,
			"function": function,
		})
	}
}

// calloutEntry renders c into its record form. Inventory callouts default
// to high priority.
func calloutEntry(c types.Callout) types.CalloutEntry {
	entry := types.CalloutEntry{Kind: c.Kind()}
	switch c := c.(type) {
	case types.InventoryCallout:
		priority := types.PriorityHigh
		if c.Priority != nil {
			priority = *c.Priority
		}
		entry.Path = c.Path
		entry.Priority = fault.PriorityString(priority)
	case types.DeviceCallout:
		errno := c.Errno
		entry.Path = c.DevicePath
		entry.Errno = &errno
	case types.I2cBusCallout:
		bus, addr, errno := c.Bus, c.Address, c.Errno
		entry.Bus = &bus
		entry.Address = &addr
		entry.Errno = &errno
	}
	return entry
}

// statsRecorder keeps delivery counters consistent with each other.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func (r *statsRecorder) incSubmitted() {
	r.mu.Lock()
	r.stats.Submitted++
	r.mu.Unlock()
}

func (r *statsRecorder) incDelivered() {
	r.mu.Lock()
	r.stats.Delivered++
	r.mu.Unlock()
}

func (r *statsRecorder) incFailed() {
	r.mu.Lock()
	r.stats.Failed++
	r.mu.Unlock()
}

func (r *statsRecorder) incDropped() {
	r.mu.Lock()
	r.stats.Dropped++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
