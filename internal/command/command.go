// Package command encodes and decodes the plaintext p44DMX delta command stream.
//
// Every command starts with an address byte 3*light+kind, followed by the
// kind's data bytes:
//   - 0 brightness: B
//   - 1 HSB: H, S, B
//   - 2 other channel: channel index, value
//
// 0xFF is the lead-in of an extended command; the byte after it is the
// sub-opcode, of which only 0xFF (no-op filler) is defined.
package command

import "fmt"

// Kind is the command type carried in the low part of the address byte.
type Kind uint8

const (
	Brightness Kind = iota
	HSB
	Channel
)

const (
	// MaxLight is the highest light index an address byte can carry.
	MaxLight = (0xFF - 3) / 3

	ExtendedLeadIn = 0xFF
	ExtendedNop    = 0xFF
)

// Light channel layout shared by sender and receiver.
const (
	HueChannel        = 0
	SaturationChannel = 1
	BrightnessChannel = 2
	FirstOtherChannel = 3
)

// DataLen returns the number of data bytes following the address byte.
func (k Kind) DataLen() int {
	switch k {
	case Brightness:
		return 1
	case HSB:
		return 3
	case Channel:
		return 2
	}
	return 0
}

func (k Kind) String() string {
	switch k {
	case Brightness:
		return "brightness"
	case HSB:
		return "hsb"
	case Channel:
		return "channel"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Command is one addressed delta update.
type Command struct {
	Light uint16 // Light - глобальный номер светильника 0..84.
	Kind  Kind
	Data  []byte
}

// SetBrightness builds a brightness-only command.
func SetBrightness(light int, b uint8) Command {
	return Command{Light: uint16(light), Kind: Brightness, Data: []byte{b}}
}

// SetHSB builds a hue/saturation/brightness command.
func SetHSB(light int, h, s, b uint8) Command {
	return Command{Light: uint16(light), Kind: HSB, Data: []byte{h, s, b}}
}

// SetChannel builds an indexed channel command.
func SetChannel(light int, index, value uint8) Command {
	return Command{Light: uint16(light), Kind: Channel, Data: []byte{index, value}}
}

// AddrByte returns the on-wire address byte of the command.
func (c Command) AddrByte() byte {
	return byte(3*int(c.Light) + int(c.Kind))
}

// Size is the encoded length of the command.
func (c Command) Size() int {
	return 1 + c.Kind.DataLen()
}

// ChannelValues expands the command into (channel index, value) pairs
// within the addressed light.
func (c Command) ChannelValues() [][2]uint8 {
	switch c.Kind {
	case Brightness:
		return [][2]uint8{{BrightnessChannel, c.Data[0]}}
	case HSB:
		return [][2]uint8{
			{HueChannel, c.Data[0]},
			{SaturationChannel, c.Data[1]},
			{BrightnessChannel, c.Data[2]},
		}
	case Channel:
		return [][2]uint8{{c.Data[0], c.Data[1]}}
	}
	return nil
}

func (c Command) String() string {
	switch c.Kind {
	case Brightness:
		return fmt.Sprintf("L#%03d: V=%03d", c.Light, c.Data[0])
	case HSB:
		return fmt.Sprintf("L#%03d: V=%03d H=%03d S=%03d", c.Light, c.Data[2], c.Data[0], c.Data[1])
	case Channel:
		return fmt.Sprintf("L#%03d:     channel#%d=%03d", c.Light, c.Data[0], c.Data[1])
	}
	return fmt.Sprintf("L#%03d: %s %x", c.Light, c.Kind, c.Data)
}
