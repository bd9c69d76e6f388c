package midi

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestThruSendsGomidiMessages(t *testing.T) {
	var sent []gomidi.Message
	thru := NewThru("out", func(msg gomidi.Message) error {
		sent = append(sent, msg)
		return nil
	}, zerolog.Nop())

	thru.HandleEvent(SampleEvent{Timestamp: 10, Source: SourceUser, Message: EncodeNoteOn(0, 60, 90)}, 0)
	thru.HandleEvent(SampleEvent{Timestamp: 20, Source: SourceUser, Message: Message{Type: 0x10}}, 0)
	require.NoError(t, thru.Close())

	require.Len(t, sent, 1)
	var ch, key, vel uint8
	assert.True(t, sent[0].GetNoteOn(&ch, &key, &vel))
	assert.Equal(t, uint8(60), key)

	s, f := thru.Counts()
	assert.Equal(t, uint64(1), s)
	assert.Equal(t, uint64(1), f)
	assert.Zero(t, thru.Dropped())
}

func TestThruCountsSendErrors(t *testing.T) {
	thru := NewThru("out", func(gomidi.Message) error { return errors.New("port gone") }, zerolog.Nop())
	thru.HandleEvent(SampleEvent{Message: EncodeControlChange(0, 1, 1)}, 3)
	require.NoError(t, thru.Close())
	_, f := thru.Counts()
	assert.Equal(t, uint64(1), f)
}

func TestThruNeverBlocksOnSlowPort(t *testing.T) {
	release := make(chan struct{})
	thru := NewThru("out", func(gomidi.Message) error {
		<-release
		return nil
	}, zerolog.Nop())

	const n = ThruBuffer + 50
	returned := make(chan struct{})
	go func() {
		for i := 0; i < n; i++ {
			thru.HandleEvent(SampleEvent{Message: EncodeNoteOn(0, i%128, 90)}, 0)
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleEvent blocked on the port")
	}
	assert.Positive(t, thru.Dropped())

	close(release)
	require.NoError(t, thru.Close())
	sent, failed := thru.Counts()
	assert.Zero(t, failed)
	assert.Equal(t, uint64(n), sent+thru.Dropped())

	thru.HandleEvent(SampleEvent{Message: EncodeNoteOn(0, 1, 1)}, 0)
	assert.Equal(t, uint64(n)+1, sent+thru.Dropped(), "events after close are dropped")
	assert.NoError(t, thru.Close())
}
