package debug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"trace":   zerolog.TraceLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	log, closer, err := New(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	qlog := Category(log, "queue")
	qlog.Info().Int("depth", 3).Msg("hello")
	log.Debug().Msg("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cat":"queue"`)
	assert.Contains(t, string(data), `"depth":3`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, _, err := New(Config{Format: "xml", Output: "discard"})
	assert.Error(t, err)
}

func TestEverySamples(t *testing.T) {
	c := NewCapture(t)
	sampled := Every(c.Logger, 10)
	for i := 0; i < 100; i++ {
		sampled.Info().Msg("tick")
	}
	assert.Len(t, c.Find("tick"), 10)

	assert.Equal(t, 1, strings.Count(func() string {
		c2 := NewCapture(t)
		once := Every(c2.Logger, 1)
		once.Info().Msg("once")
		return c2.Output()
	}(), "once"))
}

func TestTimed(t *testing.T) {
	c := NewCapture(t)
	done := Timed(c.Logger, "shutdown")
	assert.Empty(t, c.Find("shutdown"))
	done()

	recs := c.Find("shutdown")
	require.Len(t, recs, 1)
	assert.Equal(t, "debug", recs[0]["level"])
	assert.Contains(t, recs[0], "elapsed")
}
