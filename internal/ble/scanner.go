package ble

import (
	"context"
	"fmt"

	"btdmx/internal/carrier"
	"btdmx/internal/logger"
	"tinygo.org/x/bluetooth"
)

// Scanner passively receives advertisements.
type Scanner struct {
	log     *logger.Log
	adapter *bluetooth.Adapter
}

// NewScanner enables the default adapter.
func NewScanner(log logger.Logger) (*Scanner, error) {
	s := &Scanner{
		log:     log.With(logger.Fields{"module": "ble"}),
		adapter: bluetooth.DefaultAdapter,
	}
	if err := s.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE adapter: %w", err)
	}
	return s, nil
}

// Scan calls fn for every manufacturer data element received, rebuilt into a
// raw AD structure, until ctx is done. fn runs on the scanner goroutine.
func (s *Scanner) Scan(ctx context.Context, fn func(adv []byte)) error {
	stop := context.AfterFunc(ctx, func() {
		if err := s.adapter.StopScan(); err != nil {
			s.log.Debugf("stop scan: %v", err)
		}
	})
	defer stop()

	s.log.Info("scanning for advertisements")
	err := s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		if ctx.Err() != nil {
			return
		}
		for _, adv := range adStructs(result.ManufacturerData()) {
			fn(adv)
		}
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}

// adStructs rebuilds manufacturer specific AD structures from parsed elements.
func adStructs(elements []bluetooth.ManufacturerDataElement) [][]byte {
	out := make([][]byte, 0, len(elements))
	for _, e := range elements {
		mfg := make([]byte, 0, 2+len(e.Data))
		mfg = append(mfg, byte(e.CompanyID), byte(e.CompanyID>>8))
		mfg = append(mfg, e.Data...)
		out = append(out, carrier.ManufacturerData(mfg))
	}
	return out
}
