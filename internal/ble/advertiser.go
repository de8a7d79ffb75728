// Package ble connects the broadcast services to the Bluetooth stack:
// an advertiser registered with BlueZ over D-Bus and a passive scanner.
package ble

import (
	"errors"
	"fmt"
	"sync"

	"btdmx/internal/carrier"
	"btdmx/internal/logger"
)

var (
	// ErrBusy is returned by Advertise while a start or stop is still in progress.
	ErrBusy = errors.New("advertiser busy")
	// ErrNoManufacturerData is returned for advertising data without a 0xFF structure.
	ErrNoManufacturerData = errors.New("advertising data has no manufacturer specific data")
)

// State of the advertiser.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateStarted
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// radio is the platform part of advertising.
type radio interface {
	Configure(companyID uint16, data []byte) error
	Start() error
	Stop() error
	Close() error
}

// Advertiser sends one manufacturer data advertisement at a time. Every
// operation completes asynchronously through the returned channel.
type Advertiser struct {
	log   *logger.Log
	radio radio

	mu      sync.Mutex
	state   State
	pending chan struct{} // closed when the running start or stop finishes
}

func newAdvertiser(log logger.Logger, r radio) *Advertiser {
	return &Advertiser{
		log:   log.With(logger.Fields{"module": "ble"}),
		radio: r,
	}
}

// State returns the current state.
func (a *Advertiser) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Advertiser) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// finish settles the state after a start or stop and wakes waiting Stop calls.
func (a *Advertiser) finish(s State) {
	a.mu.Lock()
	a.state = s
	close(a.pending)
	a.mu.Unlock()
}

// begin moves from a settled state to a transitional one.
func (a *Advertiser) begin() (wasStarted bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case StateStarting, StateStopping:
		return false, ErrBusy
	case StateStarted:
		a.state = StateStopping
		a.pending = make(chan struct{})
		return true, nil
	}
	a.state = StateStarting
	a.pending = make(chan struct{})
	return false, nil
}

// Advertise replaces the current advertisement with advData, a complete
// AD structure as built by the sender. The channel receives exactly one
// result.
func (a *Advertiser) Advertise(advData []byte) <-chan error {
	done := make(chan error, 1)
	mfg, ok := carrier.FindADStruct(advData, carrier.ADTypeManufacturerData)
	if !ok {
		done <- ErrNoManufacturerData
		return done
	}
	company, data, ok := carrier.SplitManufacturerData(mfg)
	if !ok {
		done <- ErrNoManufacturerData
		return done
	}
	wasStarted, err := a.begin()
	if err != nil {
		done <- err
		return done
	}
	go func() {
		if wasStarted {
			if err := a.radio.Stop(); err != nil {
				a.log.Debugf("stop previous advertisement: %v", err)
			}
			a.setState(StateStarting)
		}
		if err := a.radio.Configure(company, data); err != nil {
			a.finish(StateIdle)
			done <- fmt.Errorf("configure advertisement: %w", err)
			return
		}
		if err := a.radio.Start(); err != nil {
			a.finish(StateIdle)
			done <- fmt.Errorf("start advertisement: %w", err)
			return
		}
		a.finish(StateStarted)
		done <- nil
	}()
	return done
}

// Stop ends advertising. A start or stop still in progress is waited for
// first. Stopping an idle advertiser succeeds immediately.
func (a *Advertiser) Stop() <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- a.stop()
	}()
	return done
}

func (a *Advertiser) stop() error {
	for {
		a.mu.Lock()
		switch a.state {
		case StateIdle:
			a.mu.Unlock()
			return nil
		case StateStarting, StateStopping:
			pending := a.pending
			a.mu.Unlock()
			<-pending
			continue
		}
		a.state = StateStopping
		a.pending = make(chan struct{})
		a.mu.Unlock()

		err := a.radio.Stop()
		a.finish(StateIdle)
		if err != nil {
			return fmt.Errorf("stop advertisement: %w", err)
		}
		return nil
	}
}

// Close releases the radio. Advertising must be stopped first.
func (a *Advertiser) Close() error {
	return a.radio.Close()
}
