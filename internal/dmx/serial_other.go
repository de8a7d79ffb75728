//go:build !linux

package dmx

import (
	"context"
	"errors"

	"btdmx/internal/logger"
)

const DefaultBaud = 250000

var errUnsupported = errors.New("dmx: serial input is only supported on linux")

// SerialSource is not available on this platform.
type SerialSource struct{}

// OpenSerial always fails on this platform.
func OpenSerial(_ logger.Logger, _ string, _ int) (*SerialSource, error) {
	return nil, errUnsupported
}

// Run implements Source.
func (s *SerialSource) Run(_ context.Context, _ chan<- Event) error {
	return errUnsupported
}

// Close implements io.Closer.
func (s *SerialSource) Close() error {
	return nil
}
