// Package dmx turns a DMX512 byte stream into complete universe snapshots.
//
// The producer side (HandleEvent, fed from the UART goroutine) owns the frame
// buffer. Complete snapshots are copied and posted to the event loop; the
// handler never runs on the producer goroutine.
package dmx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"btdmx/internal/logger"
)

const (
	// FrameSize is the start code plus 512 channels.
	FrameSize = 513
	// Channels is the number of channels in a frame.
	Channels = 512

	// HealthyTime is the maximum age of the last frame start for IsHealthy.
	HealthyTime = 500 * time.Millisecond

	startCodeDimmer = 0x00
)

// State of the frame decoder.
type State int

const (
	StateIdle State = iota
	StateBreak
	StateData
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBreak:
		return "break"
	case StateData:
		return "data"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// EventType classifies what the UART layer observed.
type EventType int

const (
	EventData EventType = iota
	EventBreak
	EventError
)

// Event is one observation of the UART layer.
type Event struct {
	Type EventType
	Data []byte // Data - принятые байты для EventData.
	Err  error  // Err - причина для EventError.
}

// Snapshot is a complete frame, index 0 is the start code.
type Snapshot [FrameSize]byte

// Channels returns the 512 channel values.
func (s *Snapshot) Channels() []byte {
	return s[1:]
}

// Poster hands functions to the consumer goroutine without blocking.
type Poster interface {
	TryPost(fn func()) bool
}

// Source produces events until ctx is done or the device fails.
type Source interface {
	Run(ctx context.Context, events chan<- Event) error
}

// Receiver is the break/start code/data state machine.
type Receiver struct {
	log     *logger.Log
	poster  Poster
	handler func(Snapshot)
	now     func() time.Time

	mu         sync.Mutex
	buf        Snapshot
	lastPacket time.Time

	// producer goroutine only
	state   State
	offset  int
	dropped uint64
}

// NewReceiver creates a receiver delivering snapshots to handler through poster.
func NewReceiver(log logger.Logger, poster Poster, handler func(Snapshot)) *Receiver {
	return &Receiver{
		log:     log.With(logger.Fields{"module": "dmx"}),
		poster:  poster,
		handler: handler,
		now:     time.Now,
	}
}

// SetClock replaces the time source used for timestamps and health.
func (r *Receiver) SetClock(now func() time.Time) {
	r.now = now
}

// Start runs src and feeds its events into the state machine until ctx is done.
func (r *Receiver) Start(ctx context.Context, src Source) error {
	events := make(chan Event, 32)
	go func() {
		if err := src.Run(ctx, events); err != nil && ctx.Err() == nil {
			r.log.Errorf("DMX source stopped: %v", err)
		}
		close(events)
	}()
	go func() {
		for ev := range events {
			r.HandleEvent(ev)
		}
		r.log.Debug("DMX receiver stopped")
	}()
	r.log.Info("DMX receiver started")
	return nil
}

// HandleEvent advances the state machine. Must only be called from one goroutine.
func (r *Receiver) HandleEvent(ev Event) {
	switch ev.Type {
	case EventBreak:
		// whatever was partially received is stale now
		r.state = StateBreak
		r.offset = 0
	case EventError:
		r.log.Debugf("UART error, going idle: %v", ev.Err)
		r.state = StateIdle
	case EventData:
		r.handleData(ev.Data)
	}
}

func (r *Receiver) handleData(data []byte) {
	if len(data) == 0 {
		return
	}
	if r.state == StateBreak {
		if data[0] != startCodeDimmer {
			// RDM or another protocol, ignore until next break
			r.state = StateIdle
			return
		}
		r.state = StateData
		r.offset = 0
		r.mu.Lock()
		r.lastPacket = r.now()
		r.mu.Unlock()
	}
	if r.state != StateData || r.offset >= FrameSize {
		return
	}

	r.mu.Lock()
	n := copy(r.buf[r.offset:], data)
	r.offset += n
	complete := r.offset == FrameSize
	var snap Snapshot
	if complete {
		snap = r.buf
	}
	r.mu.Unlock()

	if complete {
		r.deliver(snap)
	}
}

func (r *Receiver) deliver(snap Snapshot) {
	if r.handler == nil {
		return
	}
	if !r.poster.TryPost(func() { r.handler(snap) }) {
		r.dropped++
		r.log.Debugf("consumer busy, dropped DMX frame (%d so far)", r.dropped)
	}
}

// State returns the decoder state. Only meaningful on the producer goroutine.
func (r *Receiver) State() State {
	return r.state
}

// Read returns channel 1..512 of the last received data; out of range
// channels are clamped.
func (r *Receiver) Read(channel int) uint8 {
	if channel < 1 {
		channel = 1
	} else if channel > Channels {
		channel = Channels
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf[channel]
}

// IsHealthy reports whether a frame started within HealthyTime.
func (r *Receiver) IsHealthy() bool {
	r.mu.Lock()
	last := r.lastPacket
	r.mu.Unlock()
	return !last.IsZero() && r.now().Sub(last) < HealthyTime
}
