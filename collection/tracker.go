// Package collection tracks per-FRU VPD collection state and the timers that
// poll it.
//
// Each tracked FRU owns a small state machine:
//
//	NotStarted --start--> InProgress --complete--> Completed
//	                                 \--fail-----> Failed
//	Completed|Failed --start--> InProgress
//
// Only the goroutine collecting a FRU calls Complete or Fail for it. Pollers
// only read.
package collection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/looplab/fsm"

	"github.com/pithecene-io/vpd/fault"
	"github.com/pithecene-io/vpd/log"
	"github.com/pithecene-io/vpd/types"
)

// Transition event names.
const (
	EventStart    = "start"
	EventComplete = "complete"
	EventFail     = "fail"
)

// ErrInvalidTransition is returned when an event does not apply to the
// FRU's current state.
var ErrInvalidTransition = errors.New("invalid collection transition")

var events = fsm.Events{
	{
		Name: EventStart,
		Src: []string{
			string(types.CollectionNotStarted),
			string(types.CollectionCompleted),
			string(types.CollectionFailed),
		},
		Dst: string(types.CollectionInProgress),
	},
	{Name: EventComplete, Src: []string{string(types.CollectionInProgress)}, Dst: string(types.CollectionCompleted)},
	{Name: EventFail, Src: []string{string(types.CollectionInProgress)}, Dst: string(types.CollectionFailed)},
}

// Tracker holds the collection state of every FRU with an active or
// finished collection. Untracked FRUs report NotStarted.
type Tracker struct {
	mu      sync.Mutex
	entries map[types.Path]*fsm.FSM
	logger  *log.Logger
}

// NewTracker creates an empty tracker. logger may be nil.
func NewTracker(logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Tracker{
		entries: make(map[types.Path]*fsm.FSM),
		logger:  logger,
	}
}

// Start moves path to InProgress. Returns an error wrapping
// fault.ErrCollectionInProgress if a collection is already running.
func (t *Tracker) Start(ctx context.Context, path types.Path) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.entries[path]
	if !ok {
		m = t.newMachine(path)
		t.entries[path] = m
	}
	if m.Current() == string(types.CollectionInProgress) {
		return fmt.Errorf("%s: %w", path, fault.ErrCollectionInProgress)
	}
	return t.fire(ctx, m, path, EventStart)
}

// Complete moves path from InProgress to Completed.
func (t *Tracker) Complete(ctx context.Context, path types.Path) error {
	return t.finish(ctx, path, EventComplete)
}

// Fail moves path from InProgress to Failed.
func (t *Tracker) Fail(ctx context.Context, path types.Path) error {
	return t.finish(ctx, path, EventFail)
}

func (t *Tracker) finish(ctx context.Context, path types.Path, event string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.entries[path]
	if !ok {
		return fmt.Errorf("%w: %s %s: not tracked", ErrInvalidTransition, event, path)
	}
	return t.fire(ctx, m, path, event)
}

func (t *Tracker) fire(ctx context.Context, m *fsm.FSM, path types.Path, event string) error {
	if err := m.Event(ctx, event); err != nil {
		return fmt.Errorf("%w: %s %s from %s: %v", ErrInvalidTransition, event, path, m.Current(), err)
	}
	return nil
}

// Status returns the state of path, NotStarted if untracked.
func (t *Tracker) Status(path types.Path) types.CollectionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.entries[path]
	if !ok {
		return types.CollectionNotStarted
	}
	return types.CollectionStatus(m.Current())
}

// Entry is one FRU's collection state.
type Entry struct {
	Path   types.Path             `json:"path" yaml:"path"`
	Status types.CollectionStatus `json:"status" yaml:"status"`
}

// Snapshot returns every tracked FRU sorted by path.
func (t *Tracker) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.entries))
	for path, m := range t.entries {
		out = append(out, Entry{Path: path, Status: types.CollectionStatus(m.Current())})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// AllTerminal reports whether every tracked FRU is Completed or Failed.
// An empty tracker is terminal.
func (t *Tracker) AllTerminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range t.entries {
		if !types.CollectionStatus(m.Current()).IsTerminal() {
			return false
		}
	}
	return true
}

// Prune drops terminal entries and returns how many were removed.
func (t *Tracker) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for path, m := range t.entries {
		if types.CollectionStatus(m.Current()).IsTerminal() {
			delete(t.entries, path)
			n++
		}
	}
	return n
}

// Reset forgets path, returning it to NotStarted. An InProgress entry is
// left alone and Reset returns fault.ErrCollectionInProgress.
func (t *Tracker) Reset(path types.Path) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if m, ok := t.entries[path]; ok && m.Current() == string(types.CollectionInProgress) {
		return fmt.Errorf("%s: %w", path, fault.ErrCollectionInProgress)
	}
	delete(t.entries, path)
	return nil
}

// Len returns the number of tracked FRUs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) newMachine(path types.Path) *fsm.FSM {
	return fsm.NewFSM(
		string(types.CollectionNotStarted),
		events,
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				t.logger.Debug("collection state changed", map[string]any{
					"path":  path,
					"event": e.Event,
					"from":  e.Src,
					"to":    e.Dst,
				})
			},
		},
	)
}
