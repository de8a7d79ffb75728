package broadcast

import (
	"context"
	"sync/atomic"
	"time"

	"btdmx/internal/eventloop"
	"btdmx/internal/logger"
)

// Scanner delivers raw advertising data, see ble.Scanner.
type Scanner interface {
	Scan(ctx context.Context, fn func(adv []byte)) error
}

// Processor consumes advertising data on the loop, see receiver.Dispatcher.
type Processor interface {
	ProcessAdvData(adv []byte) bool
}

// Listener hands scan results over to the event loop.
type Listener struct {
	log     *logger.Log
	loop    *eventloop.Loop
	scanner Scanner
	proc    Processor
	backoff time.Duration
	dropped atomic.Uint64
}

// NewListener конструктор. backoff is the pause before scanning again after
// the scanner failed (0 = DefaultTiming.ErrorBackoff).
func NewListener(log logger.Logger, loop *eventloop.Loop, scanner Scanner, proc Processor, backoff time.Duration) *Listener {
	if backoff <= 0 {
		backoff = DefaultTiming.ErrorBackoff
	}
	return &Listener{
		log:     log.With(logger.Fields{"module": "listener"}),
		loop:    loop,
		scanner: scanner,
		proc:    proc,
		backoff: backoff,
	}
}

// Run scans until ctx is done, restarting the scanner after backoff whenever
// it stops. Results arriving while the loop is full are dropped.
func (l *Listener) Run(ctx context.Context) error {
	defer func() {
		if n := l.dropped.Load(); n > 0 {
			l.log.Infof("%d advertisements dropped, event loop busy", n)
		}
	}()
	for {
		err := l.scanner.Scan(ctx, l.handle)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			l.log.Warnf("scan failed, retry in %s: %v", l.backoff, err)
		} else {
			l.log.Warnf("scan ended, retry in %s", l.backoff)
		}
		t := time.NewTimer(l.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// handle runs on the scanner goroutine.
func (l *Listener) handle(adv []byte) {
	buf := append([]byte(nil), adv...)
	if !l.loop.TryPost(func() { l.proc.ProcessAdvData(buf) }) {
		l.dropped.Add(1)
	}
}

// Dropped returns the number of advertisements lost to a full loop.
func (l *Listener) Dropped() uint64 {
	return l.dropped.Load()
}
