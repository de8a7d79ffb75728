// Package sender turns the scheduler output into complete, obfuscated BLE
// advertising data.
package sender

import (
	"errors"
	"fmt"

	"btdmx/internal/carrier"
	"btdmx/internal/codec"
	"btdmx/internal/command"
	"btdmx/internal/logger"
	"btdmx/internal/scheduler"
)

// Carrier selects the wire framing of sent advertisements.
type Carrier string

const (
	CarrierNative  Carrier = "native"
	CarrierIBeacon Carrier = "ibeacon"
)

var (
	ErrCarrier   = errors.New("unknown carrier")
	ErrCompanyID = errors.New("company ID is not accepted by receivers")
)

// Options of a Sender.
type Options struct {
	Key       codec.SystemKey // Key - системный ключ, nil = ключ по умолчанию.
	Carrier   Carrier         // Carrier - native или ibeacon.
	CompanyID uint16          // CompanyID - для native, 0 = bluekitchen.
}

// Sender owns a scheduler and packs its commands. Like the scheduler it must
// only be used from the event loop.
type Sender struct {
	log       *logger.Log
	sched     *scheduler.Scheduler
	key       codec.SystemKey
	carrier   Carrier
	companyID uint16
}

// New creates a Sender around sched.
func New(log logger.Logger, sched *scheduler.Scheduler, opts Options) (*Sender, error) {
	if opts.Carrier == "" {
		opts.Carrier = CarrierNative
	}
	if opts.Carrier != CarrierNative && opts.Carrier != CarrierIBeacon {
		return nil, fmt.Errorf("%w: %q", ErrCarrier, opts.Carrier)
	}
	if opts.CompanyID == 0 {
		opts.CompanyID = carrier.CompanyBluekitchen
	}
	if !carrier.IsNativeCompany(opts.CompanyID) {
		return nil, fmt.Errorf("%w: 0x%04X", ErrCompanyID, opts.CompanyID)
	}
	if opts.Key == nil {
		opts.Key = codec.DefaultKey()
	}
	return &Sender{
		log:       log.With(logger.Fields{"module": "sender"}),
		sched:     sched,
		key:       opts.Key,
		carrier:   opts.Carrier,
		companyID: opts.CompanyID,
	}, nil
}

// Scheduler returns the scheduler fed by DMX or MQTT input.
func (s *Sender) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// GeneratePayload returns an encoded payload of at most maxBytes. Commands are
// padded with extended no-ops up to minBytes of plaintext (0 = maxBytes-2), so
// packets keep a constant size. The result is empty when there is nothing to send.
func (s *Sender) GeneratePayload(maxBytes, minBytes int) []byte {
	if minBytes == 0 {
		minBytes = maxBytes - codec.CRCSize
	}
	cmds := s.sched.GenerateCommands(maxBytes - codec.CRCSize)
	if len(cmds) == 0 {
		return nil
	}
	for len(cmds) < minBytes {
		cmds = append(cmds, command.ExtendedNop)
	}
	return codec.Encode(cmds, s.key)
}

// GenerateAdvData returns one manufacturer specific AD structure of at most
// maxBytes, or nil when there is nothing to send.
func (s *Sender) GenerateAdvData(maxBytes int) []byte {
	var mfg []byte
	switch s.carrier {
	case CarrierIBeacon:
		payload := s.GeneratePayload(maxBytes-carrier.IBeaconOverhead, 0)
		if len(payload) == 0 {
			return nil
		}
		mfg = carrier.WrapIBeacon(payload)
	default:
		payload := s.GeneratePayload(maxBytes-carrier.NativeOverhead, 0)
		if len(payload) == 0 {
			return nil
		}
		mfg = carrier.WrapNative(payload, s.companyID)
	}
	return carrier.ManufacturerData(mfg)
}
