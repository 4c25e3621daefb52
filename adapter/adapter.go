// Package adapter defines the fault-record transport boundary.
//
// A Transport hands structured fault records (PELs) to the logging
// service or any downstream collector. The event logger owns transport
// lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pithecene-io/vpd/types"
)

// Transport submits fault records to a downstream system.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Create submits one fault record.
	// Must respect context cancellation and deadlines.
	Create(ctx context.Context, record *types.FaultRecord) error

	// Close releases transport resources.
	Close() error
}

// StubTransport records fault records in memory.
// Used by tests and by the daemon in dry-run mode.
type StubTransport struct {
	mu      sync.Mutex
	records []types.FaultRecord
	closed  bool

	// Err, when set, is returned from every Create and nothing is recorded.
	Err error
}

// NewStubTransport creates an empty StubTransport.
func NewStubTransport() *StubTransport {
	return &StubTransport{}
}

// Create appends a copy of record.
func (s *StubTransport) Create(ctx context.Context, record *types.FaultRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stub transport: closed")
	}
	if s.Err != nil {
		return s.Err
	}
	s.records = append(s.records, *record)
	return nil
}

// Records returns a copy of everything created so far.
func (s *StubTransport) Records() []types.FaultRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.FaultRecord(nil), s.records...)
}

// Len returns the number of records created.
func (s *StubTransport) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Close marks the transport closed. Subsequent Creates fail.
func (s *StubTransport) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Fanout submits every record to all wrapped transports.
// A failure on one transport does not prevent delivery to the others;
// failures are joined.
type Fanout struct {
	transports []Transport
}

// NewFanout wraps transports. Nil entries are skipped.
func NewFanout(transports ...Transport) *Fanout {
	f := &Fanout{}
	for _, t := range transports {
		if t != nil {
			f.transports = append(f.transports, t)
		}
	}
	return f
}

// Create submits record to each transport in order.
func (f *Fanout) Create(ctx context.Context, record *types.FaultRecord) error {
	var errs []error
	for i, t := range f.transports {
		if err := t.Create(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("transport %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport and joins their errors.
func (f *Fanout) Close() error {
	var errs []error
	for _, t := range f.transports {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

// Verify implementations satisfy Transport.
var (
	_ Transport = (*StubTransport)(nil)
	_ Transport = (*Fanout)(nil)
)
