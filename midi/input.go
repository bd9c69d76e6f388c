package midi

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Queuer accepts raw events from a producer. Implementations must not block.
type Queuer interface {
	Queue(ev RawEvent)
}

// Input listens on a hardware port and queues every channel voice message
type Input struct {
	id       string
	port     drivers.In
	queue    Queuer
	now      func() time.Time
	log      zerolog.Logger
	stopFunc func()

	received atomic.Uint64
	ignored  atomic.Uint64
}

// NewInput wires a port to a queue without opening it
func NewInput(id string, port drivers.In, q Queuer, log zerolog.Logger) *Input {
	return &Input{
		id:    id,
		port:  port,
		queue: q,
		now:   time.Now,
		log:   log.With().Str("cat", "input").Str("port", id).Logger(),
	}
}

// OpenInput creates an input and starts listening
func OpenInput(id string, port drivers.In, q Queuer, log zerolog.Logger) (*Input, error) {
	in := NewInput(id, port, q, log)
	if err := in.Open(); err != nil {
		return nil, err
	}
	return in, nil
}

// Open starts listening on the port
func (in *Input) Open() error {
	if in.port == nil {
		return nil
	}
	stop, err := gomidi.ListenTo(in.port, func(msg gomidi.Message, timestampms int32) {
		in.handle(msg)
	})
	if err != nil {
		return fmt.Errorf("open input %q: %w", in.id, err)
	}
	in.stopFunc = stop
	in.log.Info().Msg("input opened")
	return nil
}

// handle runs on the driver's callback thread
func (in *Input) handle(b []byte) {
	m, err := Decode(b)
	if err != nil {
		// clock, sysex, active sensing...
		in.ignored.Add(1)
		return
	}
	in.received.Add(1)
	in.queue.Queue(RawEvent{
		Arrival: in.now(),
		Source:  SourceHardware,
		Message: m,
	})
}

func (in *Input) ID() string {
	return in.id
}

// Counts returns (queued, ignored) message counts
func (in *Input) Counts() (received, ignored uint64) {
	return in.received.Load(), in.ignored.Load()
}

func (in *Input) Close() error {
	if in.stopFunc != nil {
		in.stopFunc()
		in.stopFunc = nil
		in.log.Info().Msg("input closed")
	}
	return nil
}
