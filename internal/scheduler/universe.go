package scheduler

import (
	"errors"
	"fmt"

	"btdmx/internal/command"
)

const (
	// UniverseSize is the number of DMX channels in a universe.
	UniverseSize = 512
	// MaxLights is the number of lights an address byte can reach.
	MaxLights = command.MaxLight + 1

	DefaultLightChannels = 8
	MinLightChannels     = 3 // hue, saturation, brightness
	MaxLightChannels     = 32
)

// ErrLightWidth is returned for a light width outside MinLightChannels..MaxLightChannels.
var ErrLightWidth = errors.New("invalid number of channels per light")

// Channel is the sender side state of one DMX channel.
type Channel struct {
	Pending uint8 // Pending - последнее полученное значение.
	Current uint8 // Current - значение, считающееся переданным.
	Age     uint8 // Age - циклов с последней передачи, 255 = только что изменен.
}

// Universe is the fixed set of 512 channels.
type Universe struct {
	channels [UniverseSize]Channel
}

// Layout maps flat channel indices onto light blocks of Width channels.
type Layout struct {
	Width int
}

// NewLayout validates width.
func NewLayout(width int) (Layout, error) {
	if width < MinLightChannels || width > MaxLightChannels {
		return Layout{}, fmt.Errorf("%w: %d", ErrLightWidth, width)
	}
	return Layout{Width: width}, nil
}

// NumLights is the number of addressable lights, limited by the address byte.
func (l Layout) NumLights() int {
	n := UniverseSize / l.Width
	if n > MaxLights {
		n = MaxLights
	}
	return n
}

// Size is the number of addressable channels.
func (l Layout) Size() int {
	return l.NumLights() * l.Width
}

// LightOf returns the light a channel belongs to.
func (l Layout) LightOf(channel int) int {
	return channel / l.Width
}

// ChannelOf returns the channel index within its light.
func (l Layout) ChannelOf(channel int) int {
	return channel % l.Width
}

// Offset returns the first channel of light.
func (l Layout) Offset(light int) int {
	return light * l.Width
}
