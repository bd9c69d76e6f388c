// Package audio drives the sample clock from the audio callback.
package audio

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"go-midibridge/debug"
	"go-midibridge/engine"
	"go-midibridge/timing"
)

// bytesPerFrame is interleaved stereo float32
const bytesPerFrame = 8

// Clock is the audio callback. Each Read renders one buffer: due events are
// dispatched to the synth, audio is rendered, then the bridge advances.
type Clock struct {
	mu      sync.Mutex
	bridge  *timing.Bridge
	pending *engine.Pending
	synth   engine.Synth
	buf     []float32
	due     []engine.Due

	callbacks  atomic.Uint64
	dispatched atomic.Uint64
	lastFrames atomic.Int64

	log   zerolog.Logger
	trace zerolog.Logger
}

func NewClock(bridge *timing.Bridge, pending *engine.Pending, synth engine.Synth, log zerolog.Logger) *Clock {
	log = debug.Category(log, "audio")
	return &Clock{
		bridge:  bridge,
		pending: pending,
		synth:   synth,
		log:     log,
		trace:   debug.Every(log, 512),
	}
}

// Read fills p with float32 stereo frames
func (c *Clock) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	c.render(frames)

	need := frames * 2
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(c.buf[i]))
	}
	c.trace.Debug().Int("frames", frames).Dur("elapsed", time.Since(start)).Msg("callback")
	return frames * bytesPerFrame, nil
}

// render handles one buffer of frames into c.buf. Must hold c.mu.
func (c *Clock) render(frames int) {
	now := c.bridge.Now()
	c.due = c.pending.Due(now, frames, c.due[:0])
	for _, d := range c.due {
		c.synth.HandleEvent(d.Event, d.Offset)
	}
	c.dispatched.Add(uint64(len(c.due)))

	need := frames * 2
	if cap(c.buf) < need {
		c.buf = make([]float32, need)
	}
	c.buf = c.buf[:need]
	if r, ok := c.synth.(engine.Renderer); ok {
		r.Render(c.buf)
	} else {
		clear(c.buf)
	}

	c.bridge.Advance(frames)
	c.callbacks.Add(1)
	c.lastFrames.Store(int64(frames))
}

func (c *Clock) Close() error { return nil }

// Callbacks is the number of buffers rendered
func (c *Clock) Callbacks() uint64 {
	return c.callbacks.Load()
}

// Dispatched is the number of events handed to the synth
func (c *Clock) Dispatched() uint64 {
	return c.dispatched.Load()
}

// BufferFrames is the size of the last callback
func (c *Clock) BufferFrames() int {
	return int(c.lastFrames.Load())
}

// RunTicker stands in for an audio device, rendering frames-sized buffers
// every frames/sampleRate until ctx is done. Buffers are counted against
// elapsed wall time, so ticks the runtime drops are made up on the next one.
func (c *Clock) RunTicker(ctx context.Context, sampleRate, frames int) {
	if sampleRate <= 0 || frames <= 0 {
		return
	}
	period := timing.ToDuration(int64(frames), int64(sampleRate))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	c.log.Info().Int("rate", sampleRate).Int("frames", frames).Dur("period", period).Msg("ticker clock running")
	start := time.Now()
	var rendered int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rendered = c.catchUp(time.Since(start), int64(sampleRate), frames, rendered)
		}
	}
}

// catchUp renders whole buffers until rendered reaches the frames due after
// elapsed, and returns the new rendered count
func (c *Clock) catchUp(elapsed time.Duration, rate int64, frames int, rendered int64) int64 {
	due, err := timing.ToSamples(elapsed, rate)
	if err != nil {
		return rendered
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for due-rendered >= int64(frames) {
		c.render(frames)
		rendered += int64(frames)
		n++
	}
	if n > 1 {
		c.trace.Debug().Int("buffers", n).Msg("ticker clock caught up")
	}
	return rendered
}
