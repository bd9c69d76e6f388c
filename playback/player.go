// Package playback is the automated producer: a drum pattern played on a
// ticker, queued into the router as SourcePlayback.
package playback

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"go-midibridge/midi"
)

const (
	DefaultTempo = 120
	MinTempo     = 20
	MaxTempo     = 300
	// gate is the note length as a share of one step
	gate = 0.8
)

// Player steps through a Pattern in sixteenth notes
type Player struct {
	mu       sync.Mutex
	pattern  *Pattern
	step     int // next step to play
	last     int // step last played, -1 before the first
	tempo    int
	playing  bool
	stopChan chan struct{}

	queue midi.Queuer
	now   func() time.Time
	after func(d time.Duration, f func()) // schedules note-offs
	log   zerolog.Logger

	// UpdateChan is signalled after each step
	UpdateChan chan struct{}
}

func New(q midi.Queuer, pattern *Pattern, log zerolog.Logger) *Player {
	if pattern == nil {
		pattern = DefaultPattern(GetKit(DefaultKit))
	}
	return &Player{
		pattern: pattern,
		last:    -1,
		tempo:   DefaultTempo,
		queue:   q,
		now:     time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		log:        log.With().Str("cat", "playback").Logger(),
		UpdateChan: make(chan struct{}, 1),
	}
}

func (p *Player) Play() {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = true
	p.stopChan = make(chan struct{})
	tempo := p.tempo
	p.mu.Unlock()

	p.log.Info().Int("tempo", tempo).Msg("playback started")
	go p.tickLoop()
}

func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.playing = false
	close(p.stopChan)
	p.log.Info().Int("step", p.step).Msg("playback stopped")
}

// Toggle starts or stops playback and reports whether it is now playing
func (p *Player) Toggle() bool {
	p.mu.Lock()
	playing := p.playing
	p.mu.Unlock()
	if playing {
		p.Stop()
		return false
	}
	p.Play()
	return true
}

func (p *Player) SetTempo(bpm int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tempo = max(MinTempo, min(bpm, MaxTempo))
}

// SetPattern swaps the pattern at the next step
func (p *Player) SetPattern(pattern *Pattern) {
	if pattern == nil {
		return
	}
	p.mu.Lock()
	p.pattern = pattern
	p.mu.Unlock()
}

// Pattern returns a copy of the current pattern
func (p *Player) Pattern() Pattern {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.pattern
}

// Playhead is the step last played on track, or -1 when stopped
func (p *Player) Playhead(track int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing || p.last < 0 || track < 0 || track >= NumTracks {
		return -1
	}
	length := p.pattern.Tracks[track].Length
	if length < 1 {
		return -1
	}
	return p.last % length
}

func (p *Player) State() (step int, playing bool, tempo int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.step, p.playing, p.tempo
}

// StepDuration is one sixteenth note at bpm
func StepDuration(bpm int) time.Duration {
	return time.Duration(float64(time.Second) * 60.0 / float64(bpm) / 4.0)
}

func (p *Player) tickLoop() {
	for {
		p.mu.Lock()
		if !p.playing {
			p.mu.Unlock()
			return
		}
		stop := p.stopChan
		stepDuration := StepDuration(p.tempo)
		p.mu.Unlock()

		p.tick(stepDuration)

		select {
		case p.UpdateChan <- struct{}{}:
		default:
		}

		select {
		case <-stop:
			return
		case <-time.After(stepDuration):
		}
	}
}

// tick queues the current step's notes, schedules their note-offs and
// advances the step counter
func (p *Player) tick(stepDuration time.Duration) {
	p.mu.Lock()
	msgs := p.pattern.Messages(p.step)
	p.last = p.step
	// count past the master length and wrap only when all tracks realign
	p.step = (p.step + 1) % p.pattern.Cycle()
	p.mu.Unlock()

	now := p.now()
	for _, m := range msgs {
		p.queue.Queue(midi.RawEvent{Arrival: now, Source: midi.SourcePlayback, Message: m})
	}
	if len(msgs) == 0 {
		return
	}
	p.after(time.Duration(float64(stepDuration)*gate), func() {
		off := p.now()
		for _, m := range msgs {
			p.queue.Queue(midi.RawEvent{
				Arrival: off,
				Source:  midi.SourcePlayback,
				Message: midi.Message{Type: midi.NoteOff, Channel: m.Channel, Data1: m.Data1, Data2: midi.ReleaseVelocity},
			})
		}
	})
}
