package playback

import "go-midibridge/midi"

const (
	NumTracks = 16
	MaxSteps  = 32
	// DrumChannel is MIDI channel 10
	DrumChannel uint8 = 9
)

type Step struct {
	Active   bool
	Velocity uint8
}

type Track struct {
	Steps  [MaxSteps]Step
	Length int // 1-32, defaults to 16
	Note   uint8
}

// Pattern is a set of tracks that each loop at their own length
type Pattern struct {
	Tracks  [NumTracks]Track
	Channel uint8
}

// NewPattern returns an empty 16-step pattern with notes from kit
func NewPattern(kit Kit) *Pattern {
	p := &Pattern{Channel: DrumChannel}
	for t := range p.Tracks {
		p.Tracks[t].Length = 16
		p.Tracks[t].Note = kit.Notes[t]
		for s := range p.Tracks[t].Steps {
			p.Tracks[t].Steps[s].Velocity = 100
		}
	}
	return p
}

// DefaultPattern is a basic beat: kick on quarters, snare backbeat, eighth hats
func DefaultPattern(kit Kit) *Pattern {
	p := NewPattern(kit)
	for s := 0; s < 16; s += 4 {
		p.Set(0, s, 110)
	}
	p.Set(1, 4, 100)
	p.Set(1, 12, 100)
	for s := 0; s < 16; s += 2 {
		vel := uint8(70)
		if s%4 == 0 {
			vel = 90
		}
		p.Set(2, s, vel)
	}
	return p
}

// Set activates a step; velocity 0 clears it
func (p *Pattern) Set(track, step int, velocity uint8) {
	if track < 0 || track >= NumTracks || step < 0 || step >= MaxSteps {
		return
	}
	if velocity > 127 {
		velocity = 127
	}
	s := &p.Tracks[track].Steps[step]
	s.Active = velocity > 0
	if velocity > 0 {
		s.Velocity = velocity
	}
}

// SetLength sets a track's loop length, clamped to 1-32
func (p *Pattern) SetLength(track, length int) {
	if track < 0 || track >= NumTracks {
		return
	}
	p.Tracks[track].Length = max(1, min(length, MaxSteps))
}

// MasterLength is the longest track length
func (p *Pattern) MasterLength() int {
	n := 1
	for i := range p.Tracks {
		n = max(n, p.Tracks[i].Length)
	}
	return n
}

// Cycle is the number of steps after which every track lines up again
func (p *Pattern) Cycle() int {
	n := 1
	for i := range p.Tracks {
		if l := p.Tracks[i].Length; l > 0 {
			n = n / gcd(n, l) * l
		}
	}
	return n
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Messages returns the note-ons for a global step counter. Each track loops
// at its own length.
func (p *Pattern) Messages(step int) []midi.Message {
	var out []midi.Message
	for i := range p.Tracks {
		track := &p.Tracks[i]
		if track.Length < 1 {
			continue
		}
		s := track.Steps[step%track.Length]
		if s.Active {
			out = append(out, midi.Message{
				Type:    midi.NoteOn,
				Channel: p.Channel,
				Data1:   track.Note,
				Data2:   s.Velocity,
			})
		}
	}
	return out
}
