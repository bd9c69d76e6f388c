package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-midibridge/midi"
)

type recordingQueue struct {
	mu     sync.Mutex
	events []midi.RawEvent
}

func (q *recordingQueue) Queue(ev midi.RawEvent) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()
}

func (q *recordingQueue) Events() []midi.RawEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]midi.RawEvent(nil), q.events...)
}

func TestSetTempoClamps(t *testing.T) {
	p := New(&recordingQueue{}, nil, zerolog.Nop())
	_, _, tempo := p.State()
	assert.Equal(t, DefaultTempo, tempo)

	tests := []struct{ in, want int }{
		{10, MinTempo},
		{20, 20},
		{140, 140},
		{300, 300},
		{999, MaxTempo},
	}
	for _, tt := range tests {
		p.SetTempo(tt.in)
		_, _, tempo = p.State()
		assert.Equal(t, tt.want, tempo, "bpm %d", tt.in)
	}
}

func TestStepDuration(t *testing.T) {
	assert.Equal(t, 125*time.Millisecond, StepDuration(120))
	assert.Equal(t, 250*time.Millisecond, StepDuration(60))
}

func TestTickQueuesPlaybackNotesAndGatedOffs(t *testing.T) {
	q := &recordingQueue{}
	p := New(q, nil, zerolog.Nop())
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	var delay time.Duration
	var pendingOff func()
	p.after = func(d time.Duration, f func()) {
		delay = d
		pendingOff = f
	}

	p.tick(125 * time.Millisecond)

	events := q.Events()
	require.Len(t, events, 2) // kick and hat on step 0
	for _, ev := range events {
		assert.Equal(t, midi.SourcePlayback, ev.Source)
		assert.Equal(t, midi.NoteOn, ev.Type)
		assert.Equal(t, DrumChannel, ev.Channel)
		assert.Equal(t, at, ev.Arrival)
		assert.NoError(t, ev.Validate())
	}
	assert.Equal(t, uint8(36), events[0].Data1)
	assert.Equal(t, uint8(42), events[1].Data1)
	assert.Equal(t, 100*time.Millisecond, delay)

	require.NotNil(t, pendingOff)
	pendingOff()
	events = q.Events()
	require.Len(t, events, 4)
	assert.True(t, events[2].IsNoteOff())
	assert.Equal(t, uint8(36), events[2].Data1)
	assert.Equal(t, uint8(midi.ReleaseVelocity), events[2].Data2)

	step, _, _ := p.State()
	assert.Equal(t, 1, step)
}

func TestTickEmptyStepSchedulesNothing(t *testing.T) {
	q := &recordingQueue{}
	p := New(q, NewPattern(GetKit("gm")), zerolog.Nop())
	called := false
	p.after = func(time.Duration, func()) { called = true }

	p.tick(time.Millisecond)
	assert.Empty(t, q.Events())
	assert.False(t, called)
}

func TestPatternPolymeter(t *testing.T) {
	pat := NewPattern(GetKit("gm"))
	pat.Set(0, 0, 100)
	pat.SetLength(0, 3)
	pat.Set(1, 0, 90)
	pat.SetLength(1, 4)

	var hits [12][]uint8
	for step := range hits {
		for _, m := range pat.Messages(step) {
			hits[step] = append(hits[step], m.Data1)
		}
	}
	assert.Equal(t, []uint8{36, 38}, hits[0])
	assert.Equal(t, []uint8{36}, hits[3])
	assert.Equal(t, []uint8{38}, hits[4])
	assert.Equal(t, []uint8{36}, hits[6])
	assert.Nil(t, hits[1])
	assert.Equal(t, 16, pat.MasterLength())
}

func TestPatternSetBounds(t *testing.T) {
	pat := NewPattern(GetKit("gm"))
	pat.Set(-1, 0, 100)
	pat.Set(0, MaxSteps, 100)
	pat.Set(0, 1, 200)
	assert.Equal(t, uint8(127), pat.Tracks[0].Steps[1].Velocity)
	pat.Set(0, 1, 0)
	assert.False(t, pat.Tracks[0].Steps[1].Active)

	pat.SetLength(0, 0)
	assert.Equal(t, 1, pat.Tracks[0].Length)
	pat.SetLength(0, 99)
	assert.Equal(t, MaxSteps, pat.Tracks[0].Length)
}

func TestKits(t *testing.T) {
	for _, name := range KitNames() {
		kit, ok := Kits[name]
		require.True(t, ok, name)
		assert.NotEmpty(t, kit.Name)
	}
	assert.Equal(t, uint8(40), GetKit("rd8").Notes[1])
	assert.Equal(t, Kits[DefaultKit], GetKit("nope"))
}

func TestPlayStopToggle(t *testing.T) {
	q := &recordingQueue{}
	p := New(q, nil, zerolog.Nop())
	p.SetTempo(MaxTempo)

	assert.True(t, p.Toggle())
	p.Play() // already playing
	select {
	case <-p.UpdateChan:
	case <-time.After(time.Second):
		t.Fatal("no step played")
	}
	assert.False(t, p.Toggle())
	p.Stop() // already stopped

	_, playing, _ := p.State()
	assert.False(t, playing)
	assert.NotEmpty(t, q.Events())
}

func TestPlayheadAndPatternCopy(t *testing.T) {
	pat := DefaultPattern(GetKit("gm"))
	pat.SetLength(1, 3)
	p := New(&recordingQueue{}, pat, zerolog.Nop())
	p.after = func(time.Duration, func()) {}

	assert.Equal(t, -1, p.Playhead(0), "stopped")

	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()
	assert.Equal(t, -1, p.Playhead(0), "nothing played yet")

	for i := 0; i < 5; i++ {
		p.tick(time.Millisecond)
	}
	assert.Equal(t, 4, p.Playhead(0))
	assert.Equal(t, 1, p.Playhead(1), "three step track wraps")
	assert.Equal(t, -1, p.Playhead(NumTracks))

	cp := p.Pattern()
	cp.Set(0, 1, 100)
	assert.False(t, p.Pattern().Tracks[0].Steps[1].Active)
	assert.True(t, cp.Tracks[0].Steps[1].Active)
}

func TestPatternCycle(t *testing.T) {
	pat := NewPattern(GetKit("gm"))
	assert.Equal(t, 16, pat.Cycle())
	pat.SetLength(0, 3)
	assert.Equal(t, 48, pat.Cycle())
	pat.SetLength(1, 5)
	assert.Equal(t, 240, pat.Cycle())
}

func TestStepCounterWrapsAtCycle(t *testing.T) {
	pat := NewPattern(GetKit("gm"))
	pat.SetLength(0, 3)
	pat.Set(0, 0, 100)
	q := &recordingQueue{}
	p := New(q, pat, zerolog.Nop())
	p.after = func(time.Duration, func()) {}
	p.mu.Lock()
	p.playing = true
	p.step = pat.Cycle() - 2
	p.mu.Unlock()

	var heads []int
	hits := 0
	for i := 0; i < 6; i++ {
		before := len(q.Events())
		p.tick(time.Millisecond)
		if len(q.Events()) > before {
			hits++
		}
		heads = append(heads, p.Playhead(0))
	}
	assert.Equal(t, []int{1, 2, 0, 1, 2, 0}, heads, "three step track keeps its period across the wrap")
	assert.Equal(t, 2, hits)
	step, _, _ := p.State()
	assert.Equal(t, 4, step)
}
