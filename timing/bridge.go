// Package timing maps wall-clock arrival times onto the sample clock the
// synthesis engine runs on.
package timing

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrNotInitialized is returned by Convert before Initialize
	ErrNotInitialized = errors.New("timing bridge not initialized")
	// ErrOverflow is returned when a timestamp does not fit in int64 samples
	ErrOverflow = errors.New("sample timestamp overflow")
	// ErrInvalidRate is returned by Initialize for a non-positive sample rate
	ErrInvalidRate = errors.New("sample rate must be positive")
)

// Bridge owns the epoch, the sample rate and the sample-time cursor.
//
// Convert and Initialize may be called from any goroutine. Advance and Now
// are lock-free so the audio callback can use them.
type Bridge struct {
	mu         sync.RWMutex
	sampleRate int64
	epoch      time.Time

	cursor atomic.Int64
}

// New returns an uninitialized bridge
func New() *Bridge {
	return &Bridge{}
}

// Initialize resets the epoch and zeroes the cursor. Called when an audio
// session starts, and again whenever audio restarts.
func (b *Bridge) Initialize(sampleRate int, epoch time.Time) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRate, sampleRate)
	}
	b.mu.Lock()
	b.sampleRate = int64(sampleRate)
	b.epoch = epoch
	b.cursor.Store(0)
	b.mu.Unlock()
	return nil
}

// SampleRate returns 0 before Initialize
func (b *Bridge) SampleRate() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return int(b.sampleRate)
}

func (b *Bridge) Epoch() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.epoch
}

// Convert returns round((arrival-epoch) * rate), floored at 0.
// It never touches the cursor.
func (b *Bridge) Convert(arrival time.Time) (int64, error) {
	b.mu.RLock()
	rate, epoch := b.sampleRate, b.epoch
	b.mu.RUnlock()

	if rate == 0 {
		return 0, ErrNotInitialized
	}
	return ToSamples(arrival.Sub(epoch), rate)
}

// ToSamples converts a duration to samples at rate, rounding half up.
// Negative durations yield 0.
func ToSamples(d time.Duration, rate int64) (int64, error) {
	if d <= 0 {
		return 0, nil
	}
	secs := int64(d / time.Second)
	rem := int64(d % time.Second)
	if secs > math.MaxInt64/rate {
		return 0, ErrOverflow
	}
	whole := secs * rate
	// rem < 1e9 and rate is a sample rate, so this cannot overflow
	frac := (rem*rate + int64(time.Second)/2) / int64(time.Second)
	if whole > math.MaxInt64-frac {
		return 0, ErrOverflow
	}
	return whole + frac, nil
}

// ToDuration is the inverse of ToSamples (truncated to nanoseconds)
func ToDuration(samples, rate int64) time.Duration {
	if rate <= 0 {
		return 0
	}
	secs := samples / rate
	rem := samples % rate
	return time.Duration(secs)*time.Second + time.Duration(rem)*time.Second/time.Duration(rate)
}

// Advance adds rendered samples to the cursor and returns the new value.
// Non-positive counts leave the cursor unchanged.
func (b *Bridge) Advance(samples int) int64 {
	if samples <= 0 {
		return b.cursor.Load()
	}
	return b.cursor.Add(int64(samples))
}

// Now is the current sample time, the engine's authoritative "now"
func (b *Bridge) Now() int64 {
	return b.cursor.Load()
}
