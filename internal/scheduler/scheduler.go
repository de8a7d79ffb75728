// Package scheduler decides which channels of a DMX universe go into the next
// size limited broadcast packet.
//
// Every channel has an age, the number of cycles since it was last sent.
// A changed channel gets age 255 and is repeated quickly a few times
// (initial repeat count); after that it is only refreshed when it becomes the
// oldest channel again, which happens only when universe refresh is enabled.
//
// Known limitation: many simultaneous small changes (a desk smoothing a fade)
// all compete for the top age tier, so the quick repeats of each of them can
// be delayed.
package scheduler

import (
	"encoding/hex"

	"btdmx/internal/command"
	"btdmx/internal/logger"
)

const (
	DefaultInitialRepeatCount = 3

	urgentAge = 255
	resetAge  = 128 // below any fresh change
	noTier    = 9999
)

// Scheduler owns the universe on the sender side. It is not safe for
// concurrent use; all calls must come from the event loop.
type Scheduler struct {
	log                *logger.Log
	layout             Layout
	universe           Universe
	initialRepeatCount int
	refreshUniverse    bool
}

// New creates a scheduler for lights of width channels.
func New(log logger.Logger, width int) (*Scheduler, error) {
	layout, err := NewLayout(width)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		log:                log.With(logger.Fields{"module": "scheduler"}),
		layout:             layout,
		initialRepeatCount: DefaultInitialRepeatCount,
	}, nil
}

// Layout returns the light layout the scheduler encodes for.
func (s *Scheduler) Layout() Layout {
	return s.layout
}

// SetInitialRepeatCount sets how often a change is repeated right away.
func (s *Scheduler) SetInitialRepeatCount(n int) {
	if n < 0 {
		n = 0
	}
	if n > urgentAge {
		n = urgentAge
	}
	s.initialRepeatCount = n
}

// SetRefreshUniverse enables periodic re-sending of unchanged channels.
func (s *Scheduler) SetRefreshUniverse(on bool) {
	s.refreshUniverse = on
}

// SetChannel stores the next value of channel i (0-based). Channels beyond
// the addressable lights are ignored.
func (s *Scheduler) SetChannel(i int, value uint8) {
	if i < 0 || i >= s.layout.Size() {
		return
	}
	ch := &s.universe.channels[i]
	if ch.Pending != value && s.log.IsDebug() {
		s.log.Debugf("DMX #%d pending value changes from %d to %d", i+1, ch.Pending, value)
	}
	ch.Pending = value
}

// SetChannels stores data starting at channel from.
func (s *Scheduler) SetChannels(from int, data []byte) {
	for i, v := range data {
		s.SetChannel(from+i, v)
	}
}

// Channel returns the pending value of channel i, 0 when out of range.
func (s *Scheduler) Channel(i int) uint8 {
	if i < 0 || i >= s.layout.Size() {
		return 0
	}
	return s.universe.channels[i].Pending
}

// Reset treats every pending value as already sent, but schedules one full
// refresh at a priority below new changes.
func (s *Scheduler) Reset() {
	for i := 0; i < s.layout.Size(); i++ {
		ch := &s.universe.channels[i]
		ch.Current = ch.Pending
		ch.Age = resetAge
	}
}

// GenerateCommands returns at most maxBytes of delta commands for the next
// packet, most urgent channels first. The result is empty when nothing needs
// to be sent.
func (s *Scheduler) GenerateCommands(maxBytes int) []byte {
	size := s.layout.Size()
	u := &s.universe.channels

	for i := 0; i < size; i++ {
		if u[i].Pending != u[i].Current {
			s.log.Debugf("channel #%d changes from %d to %d", i, u[i].Current, u[i].Pending)
			u[i].Age = urgentAge
			u[i].Current = u[i].Pending
		}
	}

	var cmds []byte
	room := maxBytes
	lastMaxAge := noTier
	recentChangeMinAge := urgentAge - s.initialRepeatCount
	for room >= 2 {
		maxAge := 0
		for i := 0; i < size; i++ {
			if a := int(u[i].Age); a > maxAge && a < lastMaxAge {
				maxAge = a
			}
		}
		if maxAge == 0 {
			break
		}
		var doneAge uint8
		if maxAge > recentChangeMinAge {
			// repeat this change once more, but not again within this packet
			lastMaxAge = recentChangeMinAge
			doneAge = uint8(maxAge - 1)
		} else {
			lastMaxAge = maxAge
			doneAge = 0
		}
		age := uint8(maxAge)
		for light := 0; light < s.layout.NumLights(); light++ {
			off := s.layout.Offset(light)
			hue := &u[off+command.HueChannel]
			sat := &u[off+command.SaturationChannel]
			bri := &u[off+command.BrightnessChannel]
			switch {
			case (hue.Age == age || sat.Age == age) && room >= 4:
				cmds = command.Append(cmds, command.SetHSB(light, hue.Current, sat.Current, bri.Current))
				room -= 4
				hue.Age, sat.Age, bri.Age = doneAge, doneAge, doneAge
			case bri.Age == age:
				// brightness goes before other channels of the same light
				cmds = command.Append(cmds, command.SetBrightness(light, bri.Current))
				room -= 2
				bri.Age = doneAge
			}
			for idx := command.FirstOtherChannel; idx < s.layout.Width; idx++ {
				ch := &u[off+idx]
				if ch.Age == age && room >= 3 {
					cmds = command.Append(cmds, command.SetChannel(light, uint8(idx), ch.Current))
					room -= 3
					ch.Age = doneAge
				}
			}
			if room < 2 {
				break
			}
		}
	}

	if s.refreshUniverse {
		for i := 0; i < size; i++ {
			if int(u[i].Age) < recentChangeMinAge {
				u[i].Age++
			}
		}
	}

	if len(cmds) > 0 && s.log.IsDebug() {
		s.log.Debugf("p44DMX delta cmds: %s", hex.EncodeToString(cmds))
	}
	return cmds
}
