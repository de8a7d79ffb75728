// Package light contains the receiver side light sinks.
//
// Channel layout of every light: 0 hue, 1 saturation, 2 brightness,
// 3 and up other channels.
package light

import "btdmx/internal/command"

// Bank is a light's set of channels with pending and current values.
type Bank struct {
	pending []uint8
	current []uint8
}

// NewBank creates width channels. Current values start at 1 so the first
// commit of an all-zero light reports a change.
func NewBank(width int) *Bank {
	b := &Bank{
		pending: make([]uint8, width),
		current: make([]uint8, width),
	}
	for i := range b.current {
		b.current[i] = 1
	}
	return b
}

// SetChannel stores a pending value; out of range indices are ignored.
func (b *Bank) SetChannel(index int, value uint8) {
	if index < 0 || index >= len(b.pending) {
		return
	}
	b.pending[index] = value
}

// Commit applies pending values and reports whether any changed.
func (b *Bank) Commit() bool {
	return b.CommitFunc(nil)
}

// CommitFunc is Commit calling fn for every changed channel.
func (b *Bank) CommitFunc(fn func(index int, from, to uint8)) bool {
	changed := false
	for i := range b.pending {
		if b.current[i] != b.pending[i] {
			if fn != nil {
				fn(i, b.current[i], b.pending[i])
			}
			b.current[i] = b.pending[i]
			changed = true
		}
	}
	return changed
}

// Current returns a copy of the applied values.
func (b *Bank) Current() []uint8 {
	out := make([]uint8, len(b.current))
	copy(out, b.current)
	return out
}

// State is the applied state of a light as published to MQTT.
type State struct {
	Light      int     // Light - глобальный номер светильника.
	Hue        uint8   // Hue - канал 0.
	Saturation uint8   // Saturation - канал 1.
	Brightness uint8   // Brightness - канал 2.
	Channels   []uint8 // Channels - все каналы, включая HSB.
}

// State returns the applied state of the light with the given global number.
func (b *Bank) State(light int) State {
	s := State{Light: light, Channels: b.Current()}
	if len(s.Channels) > command.BrightnessChannel {
		s.Hue = s.Channels[command.HueChannel]
		s.Saturation = s.Channels[command.SaturationChannel]
		s.Brightness = s.Channels[command.BrightnessChannel]
	}
	return s
}
