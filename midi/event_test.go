package midi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestEncodersClamp(t *testing.T) {
	tests := []struct {
		name string
		got  Message
		want Message
	}{
		{"note on in range", EncodeNoteOn(3, 60, 100), Message{NoteOn, 3, 60, 100}},
		{"note on clamps", EncodeNoteOn(-1, 200, 300), Message{NoteOn, 0, 127, 127}},
		{"channel clamps high", EncodeNoteOn(16, 60, 1), Message{NoteOn, 15, 60, 1}},
		{"note off default velocity", EncodeNoteOff(0, 64), Message{NoteOff, 0, 64, ReleaseVelocity}},
		{"note off explicit velocity", EncodeNoteOffVelocity(1, 64, 0), Message{NoteOff, 1, 64, 0}},
		{"cc clamps", EncodeControlChange(2, 999, -5), Message{ControlChange, 2, 127, 0}},
		{"program change", EncodeProgramChange(9, 130), Message{ProgramChange, 9, 127, 0}},
		{"channel pressure", EncodeChannelPressure(0, 42), Message{ChannelPressure, 0, 42, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
			assert.NoError(t, tt.got.Validate())
		})
	}
}

func TestPitchBendRoundTrip(t *testing.T) {
	for _, v := range []int{PitchBendMin, -1, 0, 1, 4096, PitchBendMax} {
		m := EncodePitchBend(0, v)
		assert.LessOrEqual(t, m.Data1, uint8(127))
		assert.LessOrEqual(t, m.Data2, uint8(127))
		assert.Equal(t, v, DecodePitchBend(m.Data1, m.Data2), "value %d", v)
	}

	center := EncodePitchBend(0, 0)
	assert.Equal(t, uint8(0x00), center.Data1)
	assert.Equal(t, uint8(0x40), center.Data2)

	assert.Equal(t, PitchBendMin, DecodePitchBend(EncodePitchBend(0, -100000).Data1, EncodePitchBend(0, -100000).Data2))
	assert.Equal(t, PitchBendMax, DecodePitchBend(EncodePitchBend(0, 100000).Data1, EncodePitchBend(0, 100000).Data2))
}

func TestPitchBendMatchesGomidi(t *testing.T) {
	for _, v := range []int{PitchBendMin, -2000, 0, 2000, PitchBendMax} {
		msg := EncodePitchBend(5, v).Gomidi()
		var ch uint8
		var rel int16
		var abs uint16
		require.True(t, msg.GetPitchBend(&ch, &rel, &abs))
		assert.Equal(t, uint8(5), ch)
		assert.Equal(t, int16(v), rel)
	}
}

func TestGomidiEncodingMatchesBytes(t *testing.T) {
	msgs := []Message{
		EncodeNoteOn(1, 60, 100),
		EncodeNoteOffVelocity(1, 60, 30),
		EncodeControlChange(2, int(CCSustain), 127),
		EncodeProgramChange(3, 12),
		EncodeChannelPressure(4, 80),
		EncodePitchBend(5, -1234),
		{Type: PolyPressure, Channel: 6, Data1: 60, Data2: 10},
	}
	for _, m := range msgs {
		t.Run(m.Type.String(), func(t *testing.T) {
			assert.Equal(t, m.Bytes(), []byte(m.Gomidi()))
		})
	}
}

func TestDecode(t *testing.T) {
	m, err := Decode([]byte{0x93, 60, 100})
	require.NoError(t, err)
	assert.Equal(t, Message{NoteOn, 3, 60, 100}, m)

	m, err = Decode([]byte{0xC2, 7})
	require.NoError(t, err)
	assert.Equal(t, Message{ProgramChange, 2, 7, 0}, m)

	m, err = FromGomidi(gomidi.ControlChange(1, 7, 90))
	require.NoError(t, err)
	assert.Equal(t, Message{ControlChange, 1, 7, 90}, m)

	bad := [][]byte{
		nil,
		{0x3C, 0x40},        // data byte as status
		{0xF8},              // clock
		{0xF0, 0x7E, 0xF7},  // sysex
		{0x90, 60},          // truncated
		{0x90, 60, 0x80},    // data byte with high bit
	}
	for _, b := range bad {
		_, err := Decode(b)
		assert.ErrorIs(t, err, ErrInvalidMessage, "% X", b)
	}
}

func TestNoteOffSemantics(t *testing.T) {
	assert.True(t, EncodeNoteOff(0, 60).IsNoteOff())
	assert.True(t, EncodeNoteOn(0, 60, 0).IsNoteOff())
	assert.False(t, EncodeNoteOn(0, 60, 1).IsNoteOff())
	assert.False(t, EncodeControlChange(0, 64, 0).IsNoteOff())
}

func TestRawEventValidateAndResolve(t *testing.T) {
	ev := RawEvent{Arrival: time.Now(), Source: SourceUser, Message: EncodeNoteOn(0, 60, 90), Velocity: 120}
	require.NoError(t, ev.Validate())
	assert.Equal(t, uint8(120), ev.Resolved().Data2)

	// velocity 0 note-on stays a note-off
	off := ev
	off.Message = EncodeNoteOn(0, 60, 0)
	assert.Equal(t, uint8(0), off.Resolved().Data2)

	// override only touches note-on
	cc := ev
	cc.Message = EncodeControlChange(0, 1, 5)
	assert.Equal(t, uint8(5), cc.Resolved().Data2)

	badSource := ev
	badSource.Source = Source(42)
	assert.ErrorIs(t, badSource.Validate(), ErrInvalidMessage)

	badData := ev
	badData.Data1 = 200
	var verr *ValidationError
	require.ErrorAs(t, badData.Validate(), &verr)
	assert.Equal(t, "data1", verr.Field)
}

func TestSourcePriorities(t *testing.T) {
	srcs := Sources()
	require.Len(t, srcs, NumSources)
	for i := 1; i < len(srcs); i++ {
		assert.Greater(t, srcs[i-1].Priority(), srcs[i].Priority())
	}
	assert.Equal(t, Priority(100), SourceHardware.Priority())
	assert.Equal(t, Priority(10), SourceSynthetic.Priority())
	assert.Equal(t, Priority(0), Source(99).Priority())

	s, ok := ParseSource(" Playback ")
	assert.True(t, ok)
	assert.Equal(t, SourcePlayback, s)
	_, ok = ParseSource("midi-file")
	assert.False(t, ok)
}
