package midi

import (
	"fmt"
	"time"
)

// MessageType is the status byte high nibble of a channel voice message
type MessageType uint8

// MIDI message types
const (
	NoteOff         MessageType = 0x80
	NoteOn          MessageType = 0x90
	PolyPressure    MessageType = 0xA0
	ControlChange   MessageType = 0xB0
	ProgramChange   MessageType = 0xC0
	ChannelPressure MessageType = 0xD0
	PitchBend       MessageType = 0xE0
)

func (t MessageType) String() string {
	switch t {
	case NoteOff:
		return "note-off"
	case NoteOn:
		return "note-on"
	case PolyPressure:
		return "poly-pressure"
	case ControlChange:
		return "cc"
	case ProgramChange:
		return "program-change"
	case ChannelPressure:
		return "channel-pressure"
	case PitchBend:
		return "pitch-bend"
	}
	return fmt.Sprintf("type(0x%02X)", uint8(t))
}

// Valid reports whether t is one of the channel voice types
func (t MessageType) Valid() bool {
	return t >= NoteOff && t <= PitchBend && t&0x0F == 0
}

// DataBytes is how many data bytes follow the status byte on the wire
func (t MessageType) DataBytes() int {
	if t == ProgramChange || t == ChannelPressure {
		return 1
	}
	return 2
}

// Message is a single channel voice message
type Message struct {
	Type    MessageType
	Channel uint8 // 0-15
	Data1   uint8 // note, controller, program, pressure or bend LSB
	Data2   uint8 // velocity, value or bend MSB; unused for 1-byte messages
}

// Status returns the combined status byte
func (m Message) Status() uint8 {
	return uint8(m.Type) | m.Channel&0x0F
}

// Validate checks the message against the MIDI wire ranges
func (m Message) Validate() error {
	if !m.Type.Valid() {
		return &ValidationError{Field: "type", Value: int(m.Type)}
	}
	if m.Channel > 15 {
		return &ValidationError{Field: "channel", Value: int(m.Channel)}
	}
	if m.Data1 > 127 {
		return &ValidationError{Field: "data1", Value: int(m.Data1)}
	}
	if m.Data2 > 127 {
		return &ValidationError{Field: "data2", Value: int(m.Data2)}
	}
	return nil
}

// Bytes returns the wire encoding (2 or 3 bytes)
func (m Message) Bytes() []byte {
	if m.Type.DataBytes() == 1 {
		return []byte{m.Status(), m.Data1}
	}
	return []byte{m.Status(), m.Data1, m.Data2}
}

// IsNoteOff is true for note-off and for note-on with velocity 0
func (m Message) IsNoteOff() bool {
	return m.Type == NoteOff || (m.Type == NoteOn && m.Data2 == 0)
}

func (m Message) String() string {
	if m.Type == PitchBend {
		return fmt.Sprintf("%s{ch:%d, val:%d}", m.Type, m.Channel, DecodePitchBend(m.Data1, m.Data2))
	}
	if m.Type.DataBytes() == 1 {
		return fmt.Sprintf("%s{ch:%d, val:%d}", m.Type, m.Channel, m.Data1)
	}
	return fmt.Sprintf("%s{ch:%d, d1:%d, d2:%d}", m.Type, m.Channel, m.Data1, m.Data2)
}

// RawEvent is a message as handed in by a producer, before arbitration.
// Velocity, when non-zero, replaces the note-on velocity at conversion.
type RawEvent struct {
	Arrival time.Time
	Source  Source
	Message
	Velocity uint8
}

// Validate checks the source and the message bytes
func (e RawEvent) Validate() error {
	if !e.Source.Valid() {
		return &ValidationError{Field: "source", Value: int(e.Source)}
	}
	if e.Velocity > 127 {
		return &ValidationError{Field: "velocity", Value: int(e.Velocity)}
	}
	return e.Message.Validate()
}

// Resolved returns the message with the velocity override applied
func (e RawEvent) Resolved() Message {
	m := e.Message
	if e.Velocity > 0 && m.Type == NoteOn && m.Data2 > 0 {
		m.Data2 = e.Velocity
	}
	return m
}

// SampleEvent is an arbitrated message placed on the sample clock
type SampleEvent struct {
	Timestamp int64 // samples since the bridge epoch
	Source    Source
	Message
}

func (e SampleEvent) String() string {
	return fmt.Sprintf("%s@%d[%s]", e.Message, e.Timestamp, e.Source)
}
