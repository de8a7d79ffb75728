package dmx

import "fmt"

// markParser splits a tty stream read with PARMRK into events:
//
//	FF 00 00  break
//	FF 00 x   framing or parity error on byte x
//	FF FF     literal FF
//
// Marks may span reads, so the parser keeps state between Feed calls.
type markParser struct {
	state int
	data  []byte
}

const (
	markNone = iota
	markFF
	markFF00
)

// Feed parses chunk and calls emit for every event, in stream order.
func (p *markParser) Feed(chunk []byte, emit func(Event)) {
	for _, b := range chunk {
		switch p.state {
		case markNone:
			if b == 0xFF {
				p.state = markFF
				continue
			}
			p.data = append(p.data, b)
		case markFF:
			switch b {
			case 0xFF:
				p.data = append(p.data, 0xFF)
				p.state = markNone
			case 0x00:
				p.state = markFF00
			default:
				// not a mark, keep both bytes
				p.data = append(p.data, 0xFF, b)
				p.state = markNone
			}
		case markFF00:
			p.flush(emit)
			if b == 0x00 {
				emit(Event{Type: EventBreak})
			} else {
				emit(Event{Type: EventError, Err: fmt.Errorf("framing error on byte 0x%02X", b)})
			}
			p.state = markNone
		}
	}
	p.flush(emit)
}

func (p *markParser) flush(emit func(Event)) {
	if len(p.data) == 0 {
		return
	}
	data := make([]byte, len(p.data))
	copy(data, p.data)
	p.data = p.data[:0]
	emit(Event{Type: EventData, Data: data})
}
