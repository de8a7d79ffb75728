// Package broadcast runs the sender and receiver sides of the radio link on
// the event loop.
package broadcast

import (
	"context"
	"encoding/hex"
	"time"

	"btdmx/internal/eventloop"
	"btdmx/internal/logger"
)

// Advertiser sends one advertisement at a time, see ble.Advertiser.
type Advertiser interface {
	Advertise(advData []byte) <-chan error
	Stop() <-chan error
}

// AdvSource produces the next advertisement, see sender.Sender.
type AdvSource interface {
	GenerateAdvData(maxBytes int) []byte
}

// Timing of the advertising cycle.
type Timing struct {
	IdleRetry    time.Duration // nothing to send
	UpdateDelay  time.Duration // after a successful start
	ErrorBackoff time.Duration // after a failed start
}

// DefaultTiming are the delays used when Timing fields are zero.
var DefaultTiming = Timing{
	IdleRetry:    100 * time.Millisecond,
	UpdateDelay:  5 * time.Millisecond,
	ErrorBackoff: 5 * time.Second,
}

// Transmitter keeps replacing the advertisement with fresh scheduler output.
type Transmitter struct {
	log      *logger.Log
	loop     *eventloop.Loop
	adv      Advertiser
	src      AdvSource
	maxBytes int
	timing   Timing

	ctx    context.Context
	next   *eventloop.Ticket
	sent   int
	failed int
}

// NewTransmitter creates a transmitter sending at most maxBytes per advertisement.
func NewTransmitter(log logger.Logger, loop *eventloop.Loop, adv Advertiser, src AdvSource, maxBytes int, timing Timing) *Transmitter {
	if timing.IdleRetry <= 0 {
		timing.IdleRetry = DefaultTiming.IdleRetry
	}
	if timing.UpdateDelay <= 0 {
		timing.UpdateDelay = DefaultTiming.UpdateDelay
	}
	if timing.ErrorBackoff <= 0 {
		timing.ErrorBackoff = DefaultTiming.ErrorBackoff
	}
	return &Transmitter{
		log:      log.With(logger.Fields{"module": "transmitter"}),
		loop:     loop,
		adv:      adv,
		src:      src,
		maxBytes: maxBytes,
		timing:   timing,
	}
}

// Start queues the first cycle. The cycle stops when ctx is done.
func (t *Transmitter) Start(ctx context.Context) error {
	t.ctx = ctx
	t.log.Infof("start advertising, %d bytes per packet", t.maxBytes)
	return t.loop.Post(ctx, t.cycle)
}

// Stop ends the current advertisement and waits for the radio, at most until
// ctx is done. Call after the event loop has stopped.
func (t *Transmitter) Stop(ctx context.Context) error {
	t.next.Cancel()
	select {
	case err := <-t.adv.Stop():
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	t.log.Infof("advertising stopped: %d sent, %d failed", t.sent, t.failed)
	return nil
}

func (t *Transmitter) schedule(d time.Duration) {
	if t.ctx.Err() != nil {
		return
	}
	t.next = t.loop.AfterFunc(d, t.cycle)
}

// cycle runs on the loop.
func (t *Transmitter) cycle() {
	data := t.src.GenerateAdvData(t.maxBytes)
	if len(data) == 0 {
		t.schedule(t.timing.IdleRetry)
		return
	}
	if t.log.IsDebug() {
		t.log.Debugf("advertise %s", hex.EncodeToString(data))
	}
	result := t.adv.Advertise(data)
	go func() {
		select {
		case err := <-result:
			if perr := t.loop.Post(t.ctx, func() { t.started(err) }); perr != nil {
				t.log.Debugf("advertise result dropped: %v", perr)
			}
		case <-t.ctx.Done():
		}
	}()
}

// started runs on the loop with the outcome of Advertise.
func (t *Transmitter) started(err error) {
	if err != nil {
		t.failed++
		t.log.Warnf("advertise failed, retry in %s: %v", t.timing.ErrorBackoff, err)
		t.schedule(t.timing.ErrorBackoff)
		return
	}
	t.sent++
	t.schedule(t.timing.UpdateDelay)
}
