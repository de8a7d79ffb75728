package ble

import (
	"fmt"
	"sync"
	"time"

	"btdmx/internal/logger"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

const (
	bluezService       = "org.bluez"
	advertisingManager = "org.bluez.LEAdvertisingManager1"
	advertisementIface = "org.bluez.LEAdvertisement1"

	advertisementPath = dbus.ObjectPath("/org/btdmx/advertisement0")
)

// bluezRadio registers a broadcast advertisement with BlueZ.
type bluezRadio struct {
	conn       *dbus.Conn
	adapter    dbus.ObjectPath
	interval   time.Duration
	mu         sync.Mutex
	registered bool
}

// releaser answers BlueZ when it drops the advertisement.
type releaser struct {
	log *logger.Log
}

// Release implements org.bluez.LEAdvertisement1.
func (r releaser) Release() *dbus.Error {
	r.log.Debug("advertisement released by BlueZ")
	return nil
}

// NewAdvertiser connects to BlueZ on the system bus. adapter is the HCI
// name (hci0), interval the requested advertising interval (0 = BlueZ default).
func NewAdvertiser(log logger.Logger, adapter string, interval time.Duration) (*Advertiser, error) {
	if adapter == "" {
		adapter = "hci0"
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	a := newAdvertiser(log, nil)
	if err := conn.Export(releaser{log: a.log}, advertisementPath, advertisementIface); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to export advertisement: %w", err)
	}
	a.radio = &bluezRadio{
		conn:     conn,
		adapter:  dbus.ObjectPath("/org/bluez/" + adapter),
		interval: interval,
	}
	a.log.Infof("advertising on %s", adapter)
	return a, nil
}

func (r *bluezRadio) Configure(companyID uint16, data []byte) error {
	props := map[string]*prop.Prop{
		"Type": {Value: "broadcast", Emit: prop.EmitFalse},
		"ManufacturerData": {
			Value: map[uint16]dbus.Variant{companyID: dbus.MakeVariant(data)},
			Emit:  prop.EmitFalse,
		},
	}
	if r.interval > 0 {
		ms := uint32(r.interval / time.Millisecond)
		props["MinInterval"] = &prop.Prop{Value: ms, Emit: prop.EmitFalse}
		props["MaxInterval"] = &prop.Prop{Value: ms, Emit: prop.EmitFalse}
	}
	// BlueZ reads the properties when the advertisement is registered.
	if _, err := prop.Export(r.conn, advertisementPath, prop.Map{advertisementIface: props}); err != nil {
		return fmt.Errorf("failed to export properties: %w", err)
	}
	return nil
}

func (r *bluezRadio) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := r.conn.Object(bluezService, r.adapter)
	if err := obj.Call(advertisingManager+".RegisterAdvertisement", 0, advertisementPath, map[string]dbus.Variant{}).Err; err != nil {
		return err
	}
	r.registered = true
	return nil
}

func (r *bluezRadio) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.registered {
		return nil
	}
	r.registered = false
	obj := r.conn.Object(bluezService, r.adapter)
	return obj.Call(advertisingManager+".UnregisterAdvertisement", 0, advertisementPath).Err
}

func (r *bluezRadio) Close() error {
	_ = r.Stop()
	return r.conn.Close()
}
