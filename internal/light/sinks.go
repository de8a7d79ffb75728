package light

import (
	"fmt"

	"btdmx/internal/logger"
)

// LogLight only logs channel changes.
type LogLight struct {
	*Bank
	log *logger.Log
}

// NewLogLight creates a logging light with global number light.
func NewLogLight(log logger.Logger, light, width int) *LogLight {
	return &LogLight{
		Bank: NewBank(width),
		log:  log.With(logger.Fields{"module": "light", "light": light}),
	}
}

// Commit implements receiver.Light.
func (l *LogLight) Commit() bool {
	return l.CommitFunc(func(i int, from, to uint8) {
		l.log.Infof("Channel #%d changed from %d to %d", i, from, to)
	})
}

// Publisher sends a value as JSON below the configured topic prefix.
type Publisher interface {
	Publish(topic string, v interface{}) error
}

// MQTTLight publishes its state on every change.
type MQTTLight struct {
	*Bank
	log   *logger.Log
	pub   Publisher
	light int
	topic string
}

// NewMQTTLight creates a light publishing to light/<light>.
func NewMQTTLight(log logger.Logger, pub Publisher, light, width int) *MQTTLight {
	return &MQTTLight{
		Bank:  NewBank(width),
		log:   log.With(logger.Fields{"module": "light", "light": light}),
		pub:   pub,
		light: light,
		topic: fmt.Sprintf("light/%d", light),
	}
}

// Commit implements receiver.Light.
func (l *MQTTLight) Commit() bool {
	if !l.Bank.Commit() {
		return false
	}
	if err := l.pub.Publish(l.topic, l.State(l.light)); err != nil {
		l.log.Errorf("publish light state: %v", err)
	}
	return true
}

// ChannelWriter stores consecutive channels of an output universe.
type ChannelWriter interface {
	SetChannels(from int, data []byte)
}

// ArtNetLight mirrors its channels into an Art-Net universe.
type ArtNetLight struct {
	*Bank
	out   ChannelWriter
	first int
}

// NewArtNetLight creates the local light number local whose channels start at
// firstChannel + local*width of the output universe.
func NewArtNetLight(out ChannelWriter, firstChannel, local, width int) *ArtNetLight {
	return &ArtNetLight{
		Bank:  NewBank(width),
		out:   out,
		first: firstChannel + local*width,
	}
}

// Commit implements receiver.Light.
func (l *ArtNetLight) Commit() bool {
	if !l.Bank.Commit() {
		return false
	}
	l.out.SetChannels(l.first, l.Current())
	return true
}
