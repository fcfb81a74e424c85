// Package future provides a minimal single-value future whose completion
// callbacks run inline or, when Complete is given one, through a
// caller-supplied dispatcher.
package future

import "sync"

// Dispatcher enqueues an action for later, serialized execution.
type Dispatcher interface {
	Dispatch(action func())
}

// Future holds a value that becomes available exactly once.
type Future[T any] struct {
	mu        sync.Mutex
	done      bool
	value     T
	err       error
	callbacks []func(T, error)
}

// New creates an unresolved future.
func New[T any]() *Future[T] {
	return &Future[T]{}
}

// Completed returns an already-resolved future, useful for synchronous
// fast paths (e.g. rejecting on a nil argument before any dispatch).
func Completed[T any](value T, err error) *Future[T] {
	return &Future[T]{done: true, value: value, err: err}
}

// Complete resolves the future. Only the first call has effect. If a
// dispatcher is supplied, registered callbacks run through it; otherwise
// they run inline.
func (f *Future[T]) Complete(value T, err error, d Dispatcher) {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return
	}
	f.done = true
	f.value = value
	f.err = err
	cbs := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	for _, cb := range cbs {
		cb := cb
		if d != nil {
			d.Dispatch(func() { cb(value, err) })
		} else {
			cb(value, err)
		}
	}
}

// OnComplete registers a callback to run when the future resolves. If
// already resolved, the callback runs immediately (via d if provided).
func (f *Future[T]) OnComplete(d Dispatcher, cb func(T, error)) {
	f.mu.Lock()
	if f.done {
		value, err := f.value, f.err
		f.mu.Unlock()
		if d != nil {
			d.Dispatch(func() { cb(value, err) })
		} else {
			cb(value, err)
		}
		return
	}
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

// Wait blocks the calling goroutine until the future resolves, bypassing
// the dispatcher. Intended for tests and synchronous CLI/HTTP callers,
// never for code running inside a topic's dispatch loop.
func (f *Future[T]) Wait() (T, error) {
	done := make(chan struct{})
	var value T
	var err error
	f.OnComplete(nil, func(v T, e error) {
		value, err = v, e
		close(done)
	})
	<-done
	return value, err
}
