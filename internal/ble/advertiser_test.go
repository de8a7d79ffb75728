package ble

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"btdmx/internal/carrier"
	"btdmx/internal/logger"
)

type fakeRadio struct {
	mu        sync.Mutex
	calls     []string
	company   uint16
	data      []byte
	startErr  error
	startGate chan struct{}
}

func (r *fakeRadio) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *fakeRadio) Configure(companyID uint16, data []byte) error {
	r.record("configure")
	r.mu.Lock()
	r.company = companyID
	r.data = append([]byte(nil), data...)
	r.mu.Unlock()
	return nil
}

func (r *fakeRadio) Start() error {
	if r.startGate != nil {
		<-r.startGate
	}
	r.record("start")
	return r.startErr
}

func (r *fakeRadio) Stop() error {
	r.record("stop")
	return nil
}

func (r *fakeRadio) Close() error {
	r.record("close")
	return nil
}

func (r *fakeRadio) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func wait(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
	return nil
}

func equalCalls(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAdvertise(t *testing.T) {
	r := &fakeRadio{}
	a := newAdvertiser(logger.Discard(), r)
	adv := carrier.ManufacturerData(carrier.WrapNative([]byte{1, 2, 3}, carrier.CompanyBluekitchen))

	if err := wait(t, a.Advertise(adv)); err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	if a.State() != StateStarted {
		t.Errorf("state = %v, want started", a.State())
	}
	if r.company != carrier.CompanyBluekitchen || !bytes.Equal(r.data, []byte{carrier.SubtypeNative, 1, 2, 3}) {
		t.Errorf("configured %04X % X", r.company, r.data)
	}

	// a second advertisement replaces the first one
	if err := wait(t, a.Advertise(adv)); err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	want := []string{"configure", "start", "stop", "configure", "start"}
	if got := r.Calls(); !equalCalls(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}

	if err := wait(t, a.Stop()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if a.State() != StateIdle {
		t.Errorf("state = %v, want idle", a.State())
	}
	if err := wait(t, a.Stop()); err != nil {
		t.Errorf("Stop when idle: %v", err)
	}
}

func TestAdvertiseBusy(t *testing.T) {
	r := &fakeRadio{startGate: make(chan struct{})}
	a := newAdvertiser(logger.Discard(), r)
	adv := carrier.ManufacturerData(carrier.WrapNative([]byte{1}, carrier.CompanyPlan44))

	first := a.Advertise(adv)
	if err := wait(t, a.Advertise(adv)); !errors.Is(err, ErrBusy) {
		t.Errorf("second Advertise = %v, want ErrBusy", err)
	}
	close(r.startGate)
	if err := wait(t, first); err != nil {
		t.Errorf("first Advertise = %v", err)
	}
}

func TestStopWaitsForStart(t *testing.T) {
	r := &fakeRadio{startGate: make(chan struct{})}
	a := newAdvertiser(logger.Discard(), r)
	adv := carrier.ManufacturerData(carrier.WrapNative([]byte{1}, carrier.CompanyPlan44))

	started := a.Advertise(adv)
	stopped := a.Stop()
	select {
	case err := <-stopped:
		t.Fatalf("Stop finished before the start: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(r.startGate)
	if err := wait(t, started); err != nil {
		t.Errorf("Advertise = %v", err)
	}
	if err := wait(t, stopped); err != nil {
		t.Errorf("Stop = %v", err)
	}
	if a.State() != StateIdle {
		t.Errorf("state = %v, want idle", a.State())
	}
	want := []string{"configure", "start", "stop"}
	if got := r.Calls(); !equalCalls(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestAdvertiseErrors(t *testing.T) {
	startErr := errors.New("not permitted")
	tests := []struct {
		name string
		adv  []byte
		err  error
	}{
		{name: "no manufacturer data", adv: []byte{0x02, 0x01, 0x06}, err: ErrNoManufacturerData},
		{name: "no company id", adv: []byte{0x02, 0xFF, 0x01}, err: ErrNoManufacturerData},
		{name: "radio refuses", adv: carrier.ManufacturerData(carrier.WrapIBeacon([]byte{1})), err: startErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAdvertiser(logger.Discard(), &fakeRadio{startErr: startErr})
			if err := wait(t, a.Advertise(tt.adv)); !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
			if a.State() != StateIdle {
				t.Errorf("state = %v, want idle", a.State())
			}
		})
	}
}
