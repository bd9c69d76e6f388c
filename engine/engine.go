// Package engine is the consumer side of the router: it holds delivered
// events until the audio clock reaches them and hands them to a Synth.
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"go-midibridge/midi"
)

// Synth receives events as they fall due. offset is the frame within the
// current render buffer.
type Synth interface {
	HandleEvent(ev midi.SampleEvent, offset int)
}

// Renderer is a Synth that also produces audio. dst is interleaved stereo.
type Renderer interface {
	Synth
	Render(dst []float32)
}

// SynthFunc adapts a function to Synth
type SynthFunc func(ev midi.SampleEvent, offset int)

func (f SynthFunc) HandleEvent(ev midi.SampleEvent, offset int) {
	f(ev, offset)
}

// Tee fans each event out to every synth in order
func Tee(synths ...Synth) Synth {
	return SynthFunc(func(ev midi.SampleEvent, offset int) {
		for _, s := range synths {
			s.HandleEvent(ev, offset)
		}
	})
}

// LogSynth writes each event to the log. Used when no output port is set.
type LogSynth struct {
	log   zerolog.Logger
	count atomic.Uint64
}

func NewLogSynth(log zerolog.Logger) *LogSynth {
	return &LogSynth{log: log.With().Str("cat", "engine").Logger()}
}

func (s *LogSynth) HandleEvent(ev midi.SampleEvent, offset int) {
	s.count.Add(1)
	s.log.Debug().
		Stringer("source", ev.Source).
		Stringer("msg", ev.Message).
		Int64("ts", ev.Timestamp).
		Int("offset", offset).
		Msg("event")
}

// Count is the number of events handled
func (s *LogSynth) Count() uint64 {
	return s.count.Load()
}

// Recent keeps the last n events handled, for display
type Recent struct {
	mu    sync.Mutex
	ring  []midi.SampleEvent
	next  int
	count int
}

func NewRecent(n int) *Recent {
	if n < 1 {
		n = 1
	}
	return &Recent{ring: make([]midi.SampleEvent, n)}
}

func (r *Recent) HandleEvent(ev midi.SampleEvent, _ int) {
	r.mu.Lock()
	r.ring[r.next] = ev
	r.next = (r.next + 1) % len(r.ring)
	if r.count < len(r.ring) {
		r.count++
	}
	r.mu.Unlock()
}

// Events returns the held events, newest first
func (r *Recent) Events() []midi.SampleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]midi.SampleEvent, 0, r.count)
	for i := 1; i <= r.count; i++ {
		idx := (r.next - i + len(r.ring)) % len(r.ring)
		out = append(out, r.ring[idx])
	}
	return out
}
