package codec

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// DefaultKeyInput is the key used when the operator configures none.
	DefaultKeyInput = "NothingGreatButBetterThanNothing"

	// keyFiller is returned for key-stream positions past the end of the key.
	keyFiller = 0x42

	hexKeyMinInput = 64
	hexKeyMaxBytes = 32
)

// SystemKey is the shared secret the payload is scrambled with.
type SystemKey []byte

// ParseSystemKey turns operator input into a key:
// empty input selects the default key, input of 64 or more characters is
// read as hex (whitespace ignored, at most 32 bytes), anything else is
// used literally.
func ParseSystemKey(input string) (SystemKey, error) {
	switch {
	case input == "":
		return SystemKey(DefaultKeyInput), nil
	case len(input) >= hexKeyMinInput:
		clean := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ':' || r == '-' {
				return -1
			}
			return r
		}, input)
		if len(clean)%2 != 0 {
			clean = clean[:len(clean)-1]
		}
		key, err := hex.DecodeString(clean)
		if err != nil {
			return nil, fmt.Errorf("system key is not valid hex: %w", err)
		}
		if len(key) > hexKeyMaxBytes {
			key = key[:hexKeyMaxBytes]
		}
		return SystemKey(key), nil
	default:
		return SystemKey(input), nil
	}
}

// DefaultKey returns the built-in key.
func DefaultKey() SystemKey {
	return SystemKey(DefaultKeyInput)
}

// Byte returns the key-stream byte for position i. Positions beyond the key
// do not wrap, they yield a fixed filler.
func (k SystemKey) Byte(i int) byte {
	if i < 0 || i >= len(k) {
		return keyFiller
	}
	return k[i]
}
