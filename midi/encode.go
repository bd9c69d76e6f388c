package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// ReleaseVelocity is used for note-offs from controllers that don't report one
const ReleaseVelocity = 64

// Pitch bend range, 0 is center
const (
	PitchBendMin = -8192
	PitchBendMax = 8191
)

// Common controller numbers
const (
	CCModWheel    uint8 = 1
	CCBreath      uint8 = 2
	CCVolume      uint8 = 7
	CCPan         uint8 = 10
	CCExpression  uint8 = 11
	CCSustain     uint8 = 64
	CCAllSoundOff uint8 = 120
	CCResetAll    uint8 = 121
	CCAllNotesOff uint8 = 123
)

func clamp7(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

func clampChannel(ch int) uint8 {
	if ch < 0 {
		return 0
	}
	if ch > 15 {
		return 15
	}
	return uint8(ch)
}

// EncodeNoteOn builds a note-on, clamping every field into range
func EncodeNoteOn(channel, note, velocity int) Message {
	return Message{Type: NoteOn, Channel: clampChannel(channel), Data1: clamp7(note), Data2: clamp7(velocity)}
}

// EncodeNoteOff builds a note-off with ReleaseVelocity
func EncodeNoteOff(channel, note int) Message {
	return EncodeNoteOffVelocity(channel, note, ReleaseVelocity)
}

func EncodeNoteOffVelocity(channel, note, velocity int) Message {
	return Message{Type: NoteOff, Channel: clampChannel(channel), Data1: clamp7(note), Data2: clamp7(velocity)}
}

func EncodeControlChange(channel, controller, value int) Message {
	return Message{Type: ControlChange, Channel: clampChannel(channel), Data1: clamp7(controller), Data2: clamp7(value)}
}

func EncodeProgramChange(channel, program int) Message {
	return Message{Type: ProgramChange, Channel: clampChannel(channel), Data1: clamp7(program)}
}

func EncodeChannelPressure(channel, pressure int) Message {
	return Message{Type: ChannelPressure, Channel: clampChannel(channel), Data1: clamp7(pressure)}
}

// EncodePitchBend splits a signed bend (-8192..8191, clamped) into LSB/MSB
func EncodePitchBend(channel, value int) Message {
	if value < PitchBendMin {
		value = PitchBendMin
	}
	if value > PitchBendMax {
		value = PitchBendMax
	}
	u := value - PitchBendMin // 0..16383
	return Message{
		Type:    PitchBend,
		Channel: clampChannel(channel),
		Data1:   uint8(u & 0x7F),
		Data2:   uint8((u >> 7) & 0x7F),
	}
}

// DecodePitchBend reassembles LSB/MSB into a signed value centered at 0
func DecodePitchBend(lsb, msb uint8) int {
	return (int(msb&0x7F)<<7 | int(lsb&0x7F)) + PitchBendMin
}

// Gomidi converts the message into a gomidi message for sending
func (m Message) Gomidi() gomidi.Message {
	switch m.Type {
	case NoteOn:
		return gomidi.NoteOn(m.Channel, m.Data1, m.Data2)
	case NoteOff:
		return gomidi.NoteOffVelocity(m.Channel, m.Data1, m.Data2)
	case PolyPressure:
		return gomidi.PolyAfterTouch(m.Channel, m.Data1, m.Data2)
	case ControlChange:
		return gomidi.ControlChange(m.Channel, m.Data1, m.Data2)
	case ProgramChange:
		return gomidi.ProgramChange(m.Channel, m.Data1)
	case ChannelPressure:
		return gomidi.AfterTouch(m.Channel, m.Data1)
	case PitchBend:
		return gomidi.Pitchbend(m.Channel, int16(DecodePitchBend(m.Data1, m.Data2)))
	}
	return nil
}

// Decode parses a channel voice message from raw bytes.
// System and sysex messages return ErrInvalidMessage.
func Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return Message{}, &ValidationError{Field: "length", Value: 0}
	}
	status := b[0]
	t := MessageType(status & 0xF0)
	if status < 0x80 || !t.Valid() {
		return Message{}, &ValidationError{Field: "status", Value: int(status)}
	}
	need := 1 + t.DataBytes()
	if len(b) < need {
		return Message{}, &ValidationError{Field: "length", Value: len(b)}
	}
	m := Message{Type: t, Channel: status & 0x0F, Data1: b[1]}
	if need == 3 {
		m.Data2 = b[2]
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// FromGomidi decodes a message received through a gomidi port
func FromGomidi(msg gomidi.Message) (Message, error) {
	return Decode([]byte(msg))
}
