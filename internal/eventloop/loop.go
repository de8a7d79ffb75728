// Package eventloop runs functions one at a time on a single goroutine.
//
// Scheduler, dispatcher and light state is only touched from inside Run.
// Radio and DMX producers hand their results over with Post or TryPost.
package eventloop

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"btdmx/internal/logger"
)

// DefaultQueueSize is the queue capacity used when New gets size <= 0.
const DefaultQueueSize = 64

// ErrClosed is returned when posting to a loop that has stopped.
var ErrClosed = errors.New("event loop stopped")

// Loop is a bounded multi-producer, single-consumer queue of functions.
type Loop struct {
	log   *logger.Log
	queue chan func()
	done  chan struct{}
}

// New creates a loop. Call Run to start executing.
func New(log logger.Logger, size int) *Loop {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Loop{
		log:   log.With(logger.Fields{"module": "loop"}),
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Post queues fn, waiting for room until ctx is done.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.queue <- fn:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPost queues fn if there is room and reports whether it did.
func (l *Loop) TryPost(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	default:
		return false
	}
}

// Ticket is a pending AfterFunc call.
type Ticket struct {
	timer    *time.Timer
	canceled atomic.Bool
}

// Cancel prevents fn from running if it has not started yet. Safe on nil.
func (t *Ticket) Cancel() {
	if t == nil {
		return
	}
	t.canceled.Store(true)
	t.timer.Stop()
}

// AfterFunc runs fn on the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Ticket {
	t := &Ticket{}
	t.timer = time.AfterFunc(d, func() {
		if t.canceled.Load() {
			return
		}
		run := func() {
			if !t.canceled.Load() {
				fn()
			}
		}
		select {
		case l.queue <- run:
		case <-l.done:
		}
	})
	return t
}

// Run executes queued functions until ctx is done. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	l.log.Debug("event loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("event loop stopped")
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
