package manager

import (
	"context"
	"errors"
	"sync"
)

// ErrNotRunning is returned by operations posted before Start or after Stop.
var ErrNotRunning = errors.New("manager: event loop not running")

// defaultLoopQueue is the event loop's task buffer.
const defaultLoopQueue = 64

// eventLoop runs posted closures one at a time, in FIFO order, on a single
// goroutine.
type eventLoop struct {
	// mu guards running and sends on tasks.
	mu      sync.RWMutex
	running bool
	tasks   chan func()
	done    chan struct{}
}

func newEventLoop() *eventLoop {
	return &eventLoop{}
}

func (l *eventLoop) start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return false
	}
	l.tasks = make(chan func(), defaultLoopQueue)
	l.done = make(chan struct{})
	l.running = true
	go l.run(l.tasks, l.done)
	return true
}

func (l *eventLoop) run(tasks <-chan func(), done chan<- struct{}) {
	defer close(done)
	for fn := range tasks {
		fn()
	}
}

// post queues fn. Returns false if the loop is not running.
// Must not be called from the loop goroutine.
func (l *eventLoop) post(fn func()) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.running {
		return false
	}
	l.tasks <- fn
	return true
}

// stop rejects new tasks, runs those already queued, and waits for the loop
// goroutine to exit.
func (l *eventLoop) stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	close(l.tasks)
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the loop and returns its result. If ctx ends first the
// result is discarded; fn still runs.
func call[T any](ctx context.Context, l *eventLoop, fn func() T) (T, error) {
	var zero T
	ch := make(chan T, 1)
	if !l.post(func() { ch <- fn() }) {
		return zero, ErrNotRunning
	}
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// result pairs a value with an error for call.
type result[T any] struct {
	val T
	err error
}

// callErr is call for functions returning a value and an error.
func callErr[T any](ctx context.Context, l *eventLoop, fn func() (T, error)) (T, error) {
	r, err := call(ctx, l, func() result[T] {
		v, err := fn()
		return result[T]{val: v, err: err}
	})
	if err != nil {
		return r.val, err
	}
	return r.val, r.err
}
