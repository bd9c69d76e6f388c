package midi

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// ThruBuffer is how many events may wait for the output port
const ThruBuffer = 256

// Thru forwards due events to a MIDI output port. HandleEvent only enqueues;
// a goroutine started by NewThru does the port I/O until Close.
type Thru struct {
	name    string
	send    func(msg gomidi.Message) error
	log     zerolog.Logger
	events  chan SampleEvent
	done    chan struct{}
	closed  atomic.Bool
	wg      sync.WaitGroup
	sent    atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewThru wraps an existing sender
func NewThru(name string, send func(msg gomidi.Message) error, log zerolog.Logger) *Thru {
	t := &Thru{
		name:   name,
		send:   send,
		log:    log.With().Str("cat", "thru").Str("port", name).Logger(),
		events: make(chan SampleEvent, ThruBuffer),
		done:   make(chan struct{}),
	}
	t.wg.Add(1)
	go t.loop()
	return t
}

// OpenThru finds an output port by name and opens it
func OpenThru(portName string, log zerolog.Logger) (*Thru, error) {
	out, err := gomidi.FindOutPort(portName)
	if err != nil {
		return nil, fmt.Errorf("find output %q: %w", portName, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", portName, err)
	}
	return NewThru(out.String(), send, log), nil
}

// HandleEvent queues the event for the port without blocking. Offset is
// ignored since the port has no sub-buffer timing. Events arriving while the
// buffer is full, or after Close, are dropped and counted.
func (t *Thru) HandleEvent(ev SampleEvent, offset int) {
	if t.closed.Load() {
		t.dropped.Add(1)
		return
	}
	select {
	case t.events <- ev:
	default:
		t.dropped.Add(1)
	}
}

func (t *Thru) loop() {
	defer t.wg.Done()
	for {
		select {
		case ev := <-t.events:
			t.forward(ev)
		case <-t.done:
			for {
				select {
				case ev := <-t.events:
					t.forward(ev)
				default:
					return
				}
			}
		}
	}
}

func (t *Thru) forward(ev SampleEvent) {
	msg := ev.Message.Gomidi()
	if msg == nil {
		t.failed.Add(1)
		return
	}
	if err := t.send(msg); err != nil {
		t.failed.Add(1)
		t.log.Debug().Err(err).Stringer("event", ev).Msg("send failed")
		return
	}
	t.sent.Add(1)
}

// Counts returns (sent, failed)
func (t *Thru) Counts() (sent, failed uint64) {
	return t.sent.Load(), t.failed.Load()
}

// Dropped is the number of events that found the buffer full or the thru closed
func (t *Thru) Dropped() uint64 {
	return t.dropped.Load()
}

// Close sends what is still buffered and stops the sender goroutine
func (t *Thru) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	close(t.done)
	t.wg.Wait()
	return nil
}

func (t *Thru) Name() string {
	return t.name
}
