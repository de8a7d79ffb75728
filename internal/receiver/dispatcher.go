// Package receiver decodes p44BTDMX advertisements and applies the commands to
// local lights.
package receiver

import (
	"encoding/hex"
	"time"

	"btdmx/internal/carrier"
	"btdmx/internal/codec"
	"btdmx/internal/command"
	"btdmx/internal/logger"
)

// NonNativeLockout is how long iBeacon carried data is ignored after native
// data was seen.
const NonNativeLockout = 10 * time.Second

// Light is a bank of channels driven by the dispatcher.
type Light interface {
	// SetChannel stores a pending value; out of range indices are ignored.
	SetChannel(index int, value uint8)
	// Commit applies pending values and reports whether any changed.
	Commit() bool
}

// Dispatcher routes decoded commands to lights. It is not safe for concurrent
// use, scan results must be handed over to the event loop first.
type Dispatcher struct {
	log        *logger.Log
	key        codec.SystemKey
	firstLight int
	lights     []Light
	lastNative time.Time
	now        func() time.Time
	monitor    bool
	report     func(command.Command)
}

// NewDispatcher creates a dispatcher using key (nil = default key).
func NewDispatcher(log logger.Logger, key codec.SystemKey) *Dispatcher {
	if key == nil {
		key = codec.DefaultKey()
	}
	return &Dispatcher{
		log: log.With(logger.Fields{"module": "dispatcher"}),
		key: key,
		now: time.Now,
	}
}

// SetClock replaces the time source of the lockout.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// SetAddressing sets the global number of the first local light.
func (d *Dispatcher) SetAddressing(firstLight int) {
	d.firstLight = firstLight
}

// AddLight registers the next local light and applies its initial state.
// Returns the local light number.
func (d *Dispatcher) AddLight(l Light) int {
	d.lights = append(d.lights, l)
	l.Commit()
	return len(d.lights) - 1
}

// EnableMonitor switches to monitor mode: every command is logged and passed
// to report (may be nil) instead of being applied.
func (d *Dispatcher) EnableMonitor(report func(command.Command)) {
	d.monitor = true
	d.report = report
}

// ProcessAdvData handles a complete raw advertisement. Returns true when a
// light changed.
func (d *Dispatcher) ProcessAdvData(adv []byte) bool {
	mfg, ok := carrier.FindADStruct(adv, carrier.ADTypeManufacturerData)
	if !ok {
		return false
	}
	return d.ProcessMfgData(mfg)
}

// ProcessMfgData handles manufacturer specific data, company ID first.
func (d *Dispatcher) ProcessMfgData(mfg []byte) bool {
	payload, native, ok := carrier.Unwrap(mfg)
	if !ok {
		return false
	}
	return d.ProcessPayload(payload, native)
}

// ProcessPayload verifies and applies an obfuscated payload. Non native
// payloads are dropped while native ones were seen within NonNativeLockout.
func (d *Dispatcher) ProcessPayload(raw []byte, native bool) bool {
	now := d.now()
	if !native && !d.lastNative.IsZero() && now.Sub(d.lastNative) <= NonNativeLockout {
		d.log.Debugf("not handling non-native data arriving less than %v after native data", NonNativeLockout)
		return false
	}
	if native {
		d.lastNative = now
	}
	plain, err := codec.Decode(raw, d.key)
	if err != nil {
		if d.log.IsDebug() {
			d.log.Debugf("dropped payload %s: %v", hex.EncodeToString(raw), err)
		}
		return false
	}
	return d.ProcessCommands(plain)
}

// ProcessCommands applies a plaintext command stream.
func (d *Dispatcher) ProcessCommands(plain []byte) bool {
	changed := false
	command.Decode(plain, func(c command.Command) {
		if d.monitor {
			d.log.Info(c.String())
			if d.report != nil {
				d.report(c)
			}
			return
		}
		local := int(c.Light) - d.firstLight
		if local < 0 || local >= len(d.lights) {
			return
		}
		l := d.lights[local]
		for _, cv := range c.ChannelValues() {
			l.SetChannel(int(cv[0]), cv[1])
		}
		if l.Commit() {
			changed = true
		}
	})
	return changed
}
