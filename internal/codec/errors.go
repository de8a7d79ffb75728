package codec

import "errors"

var (
	ErrCRCMismatch = errors.New("payload CRC mismatch")
	ErrShortFrame  = errors.New("payload shorter than CRC")
)
