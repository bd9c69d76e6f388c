package timing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertTenMilliseconds(t *testing.T) {
	b := New()
	t0 := time.Now()
	require.NoError(t, b.Initialize(44100, t0))

	got, err := b.Convert(t0.Add(10 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int64(441), got)
}

func TestConvertRoundTripHasNoDrift(t *testing.T) {
	for _, rate := range []int64{22050, 44100, 48000, 96000} {
		b := New()
		t0 := time.Unix(1_700_000_000, 0)
		require.NoError(t, b.Initialize(int(rate), t0))

		for _, k := range []int64{0, 1, 2, 441, 44099, 44100, 1_000_003, 3600 * rate, 48 * 3600 * rate} {
			got, err := b.Convert(t0.Add(ToDuration(k, rate)))
			require.NoError(t, err)
			assert.Equal(t, k, got, "rate %d k %d", rate, k)
		}
	}
}

func TestConvertIsMonotoneAndFloored(t *testing.T) {
	b := New()
	t0 := time.Unix(0, 0)
	require.NoError(t, b.Initialize(48000, t0))

	got, err := b.Convert(t0.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	prev := int64(-1)
	for d := time.Duration(0); d < 5*time.Millisecond; d += 7 * time.Microsecond {
		s, err := b.Convert(t0.Add(d))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, s, prev)
		prev = s
	}
}

func TestConvertBeforeInitialize(t *testing.T) {
	_, err := New().Convert(time.Now())
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, New().Initialize(0, time.Now()), ErrInvalidRate)
	assert.ErrorIs(t, New().Initialize(-44100, time.Now()), ErrInvalidRate)
}

func TestToSamplesOverflow(t *testing.T) {
	_, err := ToSamples(time.Duration(1<<62), 1<<40)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestAdvanceAndReinitialize(t *testing.T) {
	b := New()
	require.NoError(t, b.Initialize(44100, time.Now()))
	assert.Equal(t, int64(512), b.Advance(512))
	assert.Equal(t, int64(1024), b.Advance(512))
	assert.Equal(t, int64(1024), b.Advance(0))
	assert.Equal(t, int64(1024), b.Advance(-10))
	assert.Equal(t, int64(1024), b.Now())

	// audio restart
	t1 := time.Now()
	require.NoError(t, b.Initialize(48000, t1))
	assert.Equal(t, int64(0), b.Now())
	assert.Equal(t, 48000, b.SampleRate())
	assert.Equal(t, t1, b.Epoch())
}

func TestAdvanceConcurrent(t *testing.T) {
	b := New()
	require.NoError(t, b.Initialize(44100, time.Now()))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				b.Advance(64)
				_, _ = b.Convert(time.Now())
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(8*1000*64), b.Now())
}
