package command

import (
	"bytes"
	"reflect"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		stream   []byte
		want     []Command
		consumed int
	}{
		{
			name:     "hsb for light 0",
			stream:   []byte{0x01, 0x10, 0x20, 0x30},
			want:     []Command{SetHSB(0, 0x10, 0x20, 0x30)},
			consumed: 4,
		},
		{
			name:     "extended no-op",
			stream:   []byte{0xFF, 0xFF},
			want:     nil,
			consumed: 2,
		},
		{
			name:     "unknown extended opcode is skipped",
			stream:   []byte{0xFF, 0x07, 0x00, 0x64},
			want:     []Command{SetBrightness(0, 0x64)},
			consumed: 4,
		},
		{
			name:     "lone lead-in at end",
			stream:   []byte{0x00, 0x01, 0xFF},
			want:     []Command{SetBrightness(0, 0x01)},
			consumed: 3,
		},
		{
			name:   "mixed kinds",
			stream: []byte{0x03, 0xC8, 0x05, 0x04, 0x7F, 0xFC, 0x01},
			want: []Command{
				SetBrightness(1, 0xC8),
				SetChannel(1, 0x04, 0x7F),
				SetBrightness(84, 0x01),
			},
			consumed: 7,
		},
		{
			name:     "truncated hsb stops decoding",
			stream:   []byte{0x00, 0x10, 0x04, 0x01, 0x02},
			want:     []Command{SetBrightness(0, 0x10)},
			consumed: 2,
		},
		{
			name:     "truncated channel command",
			stream:   []byte{0x02, 0x05},
			want:     nil,
			consumed: 0,
		},
		{
			name:     "address without data",
			stream:   []byte{0x00},
			want:     nil,
			consumed: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n := DecodeAll(tt.stream)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeAll() = %v, want %v", got, tt.want)
			}
			if n != tt.consumed {
				t.Errorf("consumed = %d, want %d", n, tt.consumed)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	cmds := []Command{
		SetHSB(0, 0x10, 0x20, 0x30),
		SetBrightness(2, 0x99),
		SetChannel(84, 7, 0x42),
	}
	want := []byte{0x01, 0x10, 0x20, 0x30, 0x06, 0x99, 0xFE, 0x07, 0x42}
	got := Encode(cmds)
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode() = %x, want %x", got, want)
	}
	back, n := DecodeAll(got)
	if n != len(got) || !reflect.DeepEqual(back, cmds) {
		t.Errorf("DecodeAll(Encode()) = %v (%d bytes), want %v", back, n, cmds)
	}
}

func TestAddrByteNeverCollidesWithLeadIn(t *testing.T) {
	if got := SetChannel(MaxLight, 0, 0).AddrByte(); got == ExtendedLeadIn {
		t.Fatalf("highest address byte 0x%02X collides with extended lead-in", got)
	}
}

func TestChannelValues(t *testing.T) {
	got := SetHSB(3, 1, 2, 3).ChannelValues()
	want := [][2]uint8{{HueChannel, 1}, {SaturationChannel, 2}, {BrightnessChannel, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ChannelValues() = %v, want %v", got, want)
	}
}
