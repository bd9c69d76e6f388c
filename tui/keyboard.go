package tui

import (
	"sync"
	"time"

	"go-midibridge/midi"
	"go-midibridge/velocity"
)

// keyOffsets lays a chromatic octave over the home row, black keys above
var keyOffsets = map[string]int{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5, "t": 6,
	"g": 7, "y": 8, "h": 9, "u": 10, "j": 11, "k": 12, "o": 13, "l": 14,
}

const (
	MinOctave = 0
	MaxOctave = 8
)

// Keyboard turns key presses into SourceUser notes. The note-on carries the
// raw pressure; the normalized velocity rides along as the override.
type Keyboard struct {
	mu       sync.Mutex
	queue    midi.Queuer
	norm     *velocity.Normalizer
	octave   int
	pressure float64
	gate     time.Duration
	channel  uint8

	now   func() time.Time
	after func(d time.Duration, f func())
}

func NewKeyboard(q midi.Queuer, norm *velocity.Normalizer, octave int, pressure float64, gate time.Duration) *Keyboard {
	return &Keyboard{
		queue:    q,
		norm:     norm,
		octave:   max(MinOctave, min(octave, MaxOctave)),
		pressure: pressure,
		gate:     gate,
		now:      time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Press plays the note mapped to key and schedules its release. It reports
// false for unmapped keys.
func (k *Keyboard) Press(key string) (note, vel uint8, ok bool) {
	off, ok := keyOffsets[key]
	if !ok {
		return 0, 0, false
	}
	k.mu.Lock()
	n := 12*(k.octave+1) + off
	pressure, gate, ch := k.pressure, k.gate, k.channel
	k.mu.Unlock()
	if n > 127 {
		return 0, 0, false
	}
	note = uint8(n)
	vel = k.norm.Process(pressure)

	k.queue.Queue(midi.RawEvent{
		Arrival:  k.now(),
		Source:   midi.SourceUser,
		Message:  midi.Message{Type: midi.NoteOn, Channel: ch, Data1: note, Data2: rawVelocity(pressure)},
		Velocity: vel,
	})
	k.after(gate, func() {
		k.queue.Queue(midi.RawEvent{
			Arrival: k.now(),
			Source:  midi.SourceUser,
			Message: midi.Message{Type: midi.NoteOff, Channel: ch, Data1: note, Data2: midi.ReleaseVelocity},
		})
	})
	return note, vel, true
}

func rawVelocity(pressure float64) uint8 {
	v := int(pressure*127 + 0.5)
	return uint8(max(1, min(v, 127)))
}

// Shift moves the octave by delta, clamped
func (k *Keyboard) Shift(delta int) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.octave = max(MinOctave, min(k.octave+delta, MaxOctave))
	return k.octave
}

func (k *Keyboard) Octave() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.octave
}

// CycleProfile moves the normalizer to the next curve
func (k *Keyboard) CycleProfile() string {
	profiles := velocity.Profiles()
	cur := k.norm.Profile()
	next := profiles[0]
	for i, p := range profiles {
		if p == cur {
			next = profiles[(i+1)%len(profiles)]
			break
		}
	}
	k.norm.SetProfile(next)
	return next
}

func (k *Keyboard) Normalizer() *velocity.Normalizer {
	return k.norm
}
