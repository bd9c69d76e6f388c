package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"go-midibridge/midi"
)

// DefaultPendingCapacity bounds events waiting for the audio clock
const DefaultPendingCapacity = 4096

// Due is an event with its frame offset in the render window
type Due struct {
	Event  midi.SampleEvent
	Offset int
}

// Pending buffers delivered events until the render window reaches them.
// Events keep their delivery order.
type Pending struct {
	mu        sync.Mutex
	events    []midi.SampleEvent
	capacity  int
	discarded uint64
	log       zerolog.Logger
}

func NewPending(capacity int, log zerolog.Logger) *Pending {
	if capacity < 1 {
		capacity = DefaultPendingCapacity
	}
	return &Pending{
		events:   make([]midi.SampleEvent, 0, capacity),
		capacity: capacity,
		log:      log.With().Str("cat", "engine").Logger(),
	}
}

// Add appends a batch. When full, the oldest pending events are discarded.
func (p *Pending) Add(batch []midi.SampleEvent) {
	if len(batch) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(batch) > p.capacity {
		p.discard(len(p.events) + len(batch) - p.capacity)
		batch = batch[len(batch)-p.capacity:]
	} else if over := len(p.events) + len(batch) - p.capacity; over > 0 {
		p.discard(over)
	}
	p.events = append(p.events, batch...)
}

// discard drops up to n of the oldest events. Must hold p.mu.
func (p *Pending) discard(n int) {
	p.discarded += uint64(n)
	if n > len(p.events) {
		n = len(p.events)
	}
	if n == 0 {
		return
	}
	rest := copy(p.events, p.events[n:])
	clear(p.events[rest:])
	p.events = p.events[:rest]
	p.log.Warn().Int("discarded", n).Msg("pending buffer full")
}

// Due removes and returns the events with a timestamp before start+frames,
// appended to dst. Late events get offset 0.
func (p *Pending) Due(start int64, frames int, dst []Due) []Due {
	end := start + int64(frames)
	p.mu.Lock()
	defer p.mu.Unlock()

	keep := p.events[:0]
	for _, ev := range p.events {
		if ev.Timestamp >= end {
			keep = append(keep, ev)
			continue
		}
		off := 0
		if ev.Timestamp > start {
			off = int(ev.Timestamp - start)
		}
		dst = append(dst, Due{Event: ev, Offset: off})
	}
	clear(p.events[len(keep):])
	p.events = keep
	return dst
}

// Len is the number of events waiting
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// Discarded is the number of events lost to overflow
func (p *Pending) Discarded() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discarded
}

// Consume adds every batch from batches until it closes or ctx is done
func (p *Pending) Consume(ctx context.Context, batches <-chan []midi.SampleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			p.Add(batch)
		}
	}
}
