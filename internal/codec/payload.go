// Package codec scrambles p44DMX command bytes with the system key and
// protects them with a CRC16.
//
// Frame layout: plaintext[i] ^ key[i] for every byte, followed by the CRC16
// of the plaintext (high byte first), XORed with the next two key positions.
package codec

// CRCSize is the number of trailing CRC bytes in a frame.
const CRCSize = 2

// CRC16 adds one byte to a running CCITT CRC (polynomial 0x1021, nibble-shift form).
func CRC16(crc uint16, b byte) uint16 {
	s := (uint16(b) ^ crc) & 0xFF
	s ^= s << 4
	return (crc >> 8) ^ (s << 8) ^ (s << 3) ^ (s >> 4)
}

// Checksum computes the CRC16 over buf, starting from 0.
func Checksum(buf []byte) uint16 {
	var crc uint16
	for _, b := range buf {
		crc = CRC16(crc, b)
	}
	return crc
}

// Encode obfuscates plain and appends the obfuscated CRC.
func Encode(plain []byte, key SystemKey) []byte {
	out := make([]byte, 0, len(plain)+CRCSize)
	var crc uint16
	i := 0
	for ; i < len(plain); i++ {
		crc = CRC16(crc, plain[i])
		out = append(out, plain[i]^key.Byte(i))
	}
	out = append(out, byte(crc>>8)^key.Byte(i), byte(crc)^key.Byte(i+1))
	return out
}

// Decode reverses Encode. A frame whose CRC does not match returns
// ErrCRCMismatch and must be dropped by the caller.
func Decode(framed []byte, key SystemKey) ([]byte, error) {
	if len(framed) < CRCSize {
		return nil, ErrShortFrame
	}
	n := len(framed) - CRCSize
	plain := make([]byte, n)
	var crc uint16
	for i := 0; i < n; i++ {
		b := framed[i] ^ key.Byte(i)
		crc = CRC16(crc, b)
		plain[i] = b
	}
	received := uint16(framed[n]^key.Byte(n))<<8 | uint16(framed[n+1]^key.Byte(n+1))
	if received != crc {
		return nil, ErrCRCMismatch
	}
	return plain, nil
}
