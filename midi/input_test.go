package midi

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/drivers"
)

type recordingQueue struct {
	mu     sync.Mutex
	events []RawEvent
}

func (q *recordingQueue) Queue(ev RawEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
}

func TestInputQueuesChannelMessages(t *testing.T) {
	q := &recordingQueue{}
	in := NewInput("Keystep", nil, q, zerolog.Nop())
	at := time.Unix(100, 0)
	in.now = func() time.Time { return at }

	in.handle([]byte{0x90, 60, 100})
	in.handle([]byte{0xF8}) // clock tick
	in.handle([]byte{0xE1, 0x00, 0x40})

	require.Len(t, q.events, 2)
	assert.Equal(t, SourceHardware, q.events[0].Source)
	assert.Equal(t, at, q.events[0].Arrival)
	assert.Equal(t, EncodeNoteOn(0, 60, 100), q.events[0].Message)
	assert.Equal(t, EncodePitchBend(1, 0), q.events[1].Message)

	received, ignored := in.Counts()
	assert.Equal(t, uint64(2), received)
	assert.Equal(t, uint64(1), ignored)
	assert.NoError(t, in.Close())
}

// fakePort only answers String; the manager's opener is faked too
type fakePort struct {
	drivers.In
	name string
}

func (p fakePort) String() string { return p.name }

func TestDeviceManagerReconcile(t *testing.T) {
	q := &recordingQueue{}
	dm := NewDeviceManager(q, "keystep", time.Second, zerolog.Nop())
	var opened []string
	dm.open = func(id string, port drivers.In) (*Input, error) {
		opened = append(opened, id)
		return NewInput(id, nil, q, zerolog.Nop()), nil
	}

	dm.reconcile([]drivers.In{fakePort{name: "Arturia KeyStep 37"}, fakePort{name: "IAC Bus 1"}})
	assert.Equal(t, []string{"Arturia KeyStep 37"}, opened)
	assert.Equal(t, []string{"Arturia KeyStep 37"}, dm.Inputs())

	ev := <-dm.Events()
	assert.Equal(t, DeviceConnected, ev.Type)
	assert.Equal(t, 1, ev.Open)

	// same port again: nothing new
	dm.reconcile([]drivers.In{fakePort{name: "Arturia KeyStep 37"}})
	assert.Len(t, opened, 1)

	dm.reconcile(nil)
	assert.Empty(t, dm.Inputs())
	ev = <-dm.Events()
	assert.Equal(t, DeviceDisconnected, ev.Type)
	assert.Equal(t, "Arturia KeyStep 37", ev.ID)
	assert.Equal(t, 0, ev.Open)
}

func TestDeviceManagerMatchesAllWhenEmpty(t *testing.T) {
	dm := NewDeviceManager(&recordingQueue{}, "", 0, zerolog.Nop())
	assert.True(t, dm.matches("anything"))
	assert.Equal(t, time.Second, dm.pollRate)
}

func TestDeviceManagerExcludesVirtualPorts(t *testing.T) {
	dm := NewDeviceManager(&recordingQueue{}, "", 0, zerolog.Nop())
	assert.False(t, dm.matches("Midi Through:Midi Through Port-0 14:0"))
	assert.True(t, dm.matches("Arturia KeyStep 37"))

	dm = NewDeviceManager(&recordingQueue{}, "KEYSTEP", 0, zerolog.Nop())
	assert.True(t, dm.matches("Arturia KeyStep 37"))
	assert.False(t, dm.matches("Launchpad Mini"))

	dm.SetExclude([]string{"arturia"})
	assert.False(t, dm.matches("Arturia KeyStep 37"))
	dm.SetExclude(nil)
	assert.True(t, dm.matches("Arturia KeyStep 37"))
}
