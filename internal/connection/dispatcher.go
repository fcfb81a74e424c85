// Package connection implements the ConnectionContext / TopicConnection
// layer described in §4.5–§4.6: the activation and dispatch contract
// between a topic and its consumers, and the per-consumer handle that
// mediates reads, writes, and subscriptions against a topic.
package connection

import (
	"sync"

	"github.com/rzbill/topicd/internal/future"
)

// serialDispatcher is a FIFO, single-goroutine ActionDispatcher: a
// buffered channel plus one worker, so actions handed to a given
// dispatcher run one at a time and in submission order (§5).
type serialDispatcher struct {
	queue chan func()

	stopOnce sync.Once
	stopped  chan struct{}
}

func newSerialDispatcher() *serialDispatcher {
	d := &serialDispatcher{
		queue:   make(chan func(), 256),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *serialDispatcher) run() {
	for {
		select {
		case action, ok := <-d.queue:
			if !ok {
				return
			}
			action()
		case <-d.stopped:
			for {
				select {
				case action := <-d.queue:
					action()
				default:
					return
				}
			}
		}
	}
}

// Dispatch implements future.Dispatcher.
func (d *serialDispatcher) Dispatch(action func()) {
	select {
	case d.queue <- action:
	case <-d.stopped:
	}
}

// stop drains no further actions after those already queued finish, or
// immediately if the queue is empty; safe to call more than once.
func (d *serialDispatcher) stop() {
	d.stopOnce.Do(func() { close(d.stopped) })
}

var _ future.Dispatcher = (*serialDispatcher)(nil)
