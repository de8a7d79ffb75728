package receiver

import (
	"testing"
	"time"

	"btdmx/internal/carrier"
	"btdmx/internal/codec"
	"btdmx/internal/command"
	"btdmx/internal/logger"
)

type fakeLight struct {
	pending [8]uint8
	current [8]uint8
	commits int
}

func (l *fakeLight) SetChannel(index int, value uint8) {
	if index >= 0 && index < len(l.pending) {
		l.pending[index] = value
	}
}

func (l *fakeLight) Commit() bool {
	l.commits++
	changed := l.pending != l.current
	l.current = l.pending
	return changed
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func nativeAdv(plain []byte) []byte {
	return carrier.ManufacturerData(carrier.WrapNative(codec.Encode(plain, codec.DefaultKey()), carrier.CompanyPlan44))
}

func iBeaconAdv(plain []byte) []byte {
	return carrier.ManufacturerData(carrier.WrapIBeacon(codec.Encode(plain, codec.DefaultKey())))
}

func TestLockout(t *testing.T) {
	key, _ := codec.ParseSystemKey("NothingGreatButBetterThanNothing")
	d := NewDispatcher(logger.Discard(), key)
	c := &clock{t: time.Unix(1000, 0)}
	d.SetClock(c.now)
	l := &fakeLight{}
	d.AddLight(l)

	if !d.ProcessAdvData(nativeAdv([]byte{0x00, 200})) {
		t.Fatal("native frame did not change the light")
	}
	if l.current[command.BrightnessChannel] != 200 {
		t.Fatalf("brightness = %d, want 200", l.current[command.BrightnessChannel])
	}

	beacon := iBeaconAdv([]byte{0x00, 50})
	c.t = c.t.Add(5 * time.Second)
	if d.ProcessAdvData(beacon) {
		t.Error("iBeacon frame applied during lockout")
	}
	if l.current[command.BrightnessChannel] != 200 {
		t.Errorf("brightness = %d after locked out frame, want 200", l.current[command.BrightnessChannel])
	}

	c.t = c.t.Add(6 * time.Second)
	if !d.ProcessAdvData(beacon) {
		t.Error("iBeacon frame ignored after lockout expired")
	}
	if l.current[command.BrightnessChannel] != 50 {
		t.Errorf("brightness = %d, want 50", l.current[command.BrightnessChannel])
	}
}

func TestIBeaconWithoutNative(t *testing.T) {
	d := NewDispatcher(logger.Discard(), nil)
	l := &fakeLight{}
	d.AddLight(l)
	if !d.ProcessAdvData(iBeaconAdv([]byte{0x01, 1, 2, 3})) {
		t.Fatal("iBeacon frame ignored without any native traffic")
	}
	if l.current[0] != 1 || l.current[1] != 2 || l.current[2] != 3 {
		t.Errorf("channels = %v", l.current[:3])
	}
}

func TestDropsBadFrames(t *testing.T) {
	d := NewDispatcher(logger.Discard(), nil)
	l := &fakeLight{}
	d.AddLight(l)

	wrongKey := carrier.ManufacturerData(carrier.WrapNative(codec.Encode([]byte{0x00, 9}, codec.SystemKey("other")), carrier.CompanyPlan44))
	tests := []struct {
		name string
		adv  []byte
	}{
		{name: "wrong key", adv: wrongKey},
		{name: "foreign company", adv: carrier.ManufacturerData([]byte{0x34, 0x12, 0x44, 0x00, 0x00, 0x00})},
		{name: "no manufacturer data", adv: []byte{0x02, 0x01, 0x06}},
		{name: "one byte payload", adv: carrier.ManufacturerData([]byte{0x44, 0x44, 0x44, 0x00})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d.ProcessAdvData(tt.adv) {
				t.Error("frame was applied")
			}
		})
	}
	if l.current != [8]uint8{} {
		t.Errorf("light changed: %v", l.current)
	}
}

func TestAddressing(t *testing.T) {
	d := NewDispatcher(logger.Discard(), nil)
	d.SetAddressing(4)
	a, b := &fakeLight{}, &fakeLight{}
	if n := d.AddLight(a); n != 0 {
		t.Errorf("first local light = %d", n)
	}
	d.AddLight(b)
	if a.commits != 1 || b.commits != 1 {
		t.Errorf("AddLight should commit the initial state, commits = %d/%d", a.commits, b.commits)
	}

	plain := command.Encode([]command.Command{
		command.SetBrightness(3, 10), // below our range
		command.SetBrightness(4, 11),
		command.SetChannel(5, 6, 12),
		command.SetBrightness(6, 13), // beyond our lights
	})
	if !d.ProcessCommands(plain) {
		t.Fatal("no change reported")
	}
	if a.current[command.BrightnessChannel] != 11 {
		t.Errorf("light 4 brightness = %d, want 11", a.current[command.BrightnessChannel])
	}
	if b.current[6] != 12 || b.current[command.BrightnessChannel] != 0 {
		t.Errorf("light 5 channels = %v", b.current)
	}
	if d.ProcessCommands(plain) {
		t.Error("repeating the same commands reported a change")
	}
}

func TestMonitor(t *testing.T) {
	d := NewDispatcher(logger.Discard(), nil)
	var got []command.Command
	d.EnableMonitor(func(c command.Command) { got = append(got, c) })
	d.ProcessAdvData(nativeAdv([]byte{0x01, 1, 2, 3, 0xFC, 9, 0xFF, 0xFF}))
	if len(got) != 2 {
		t.Fatalf("reported %d commands, want 2", len(got))
	}
	if got[0].String() != "L#000: V=003 H=001 S=002" || got[1].Light != 84 {
		t.Errorf("reported %v", got)
	}
}
