package playback

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalPatternKeepsHits(t *testing.T) {
	p := DefaultPattern(GetKit("gm"))
	p.SetLength(1, 14)

	data, err := MarshalPattern(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), "slot: kick")
	assert.Contains(t, string(data), "slot: closed hat")
	assert.NotContains(t, string(data), "open hat")

	got, err := UnmarshalPattern(data, GetKit("gm"))
	require.NoError(t, err)
	assert.Equal(t, *p, *got)
}

func TestUnmarshalPatternKitAndErrors(t *testing.T) {
	data := []byte("channel: 9\ntracks:\n  - slot: snare\n    steps: [0, 0, 0, 0, 120]\n")
	p, err := UnmarshalPattern(data, GetKit("rd8"))
	require.NoError(t, err)
	assert.Equal(t, uint8(40), p.Tracks[1].Note, "note from kit")
	assert.Equal(t, 5, p.Tracks[1].Length, "length from steps")
	assert.True(t, p.Tracks[1].Steps[4].Active)
	assert.Equal(t, uint8(120), p.Tracks[1].Steps[4].Velocity)
	assert.Equal(t, 16, p.Tracks[0].Length)

	_, err = UnmarshalPattern([]byte("tracks:\n  - slot: tuba\n"), GetKit("gm"))
	assert.ErrorContains(t, err, "unknown slot")
	_, err = UnmarshalPattern([]byte("channel: 16\n"), GetKit("gm"))
	assert.ErrorContains(t, err, "channel")
	_, err = UnmarshalPattern([]byte("tracks:\n  - slot: kick\n    steps: [200]\n"), GetKit("gm"))
	assert.ErrorContains(t, err, "velocity 200")
	_, err = UnmarshalPattern([]byte("tracks: [1"), GetKit("gm"))
	assert.Error(t, err)
}

func TestSaveListLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := LoadPattern("latest", GetKit("gm"))
	assert.ErrorIs(t, err, ErrNoSaves)

	saves, err := ListSaves()
	require.NoError(t, err)
	assert.Empty(t, saves)

	first := time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)
	older := NewPattern(GetKit("gm"))
	older.Set(0, 0, 100)
	_, err = SavePattern(older, "", first)
	require.NoError(t, err)

	newer := DefaultPattern(GetKit("gm"))
	path, err := SavePattern(newer, "groove", first.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15_15-30-00_groove.yaml", filepath.Base(path))

	dir, err := PatternsDir()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.yaml"), []byte("x"), 0644))

	saves, err = ListSaves()
	require.NoError(t, err)
	require.Len(t, saves, 2)
	assert.Equal(t, "groove", saves[0].Name)
	assert.Equal(t, "", saves[1].Name)

	latest, err := LoadPattern("latest", GetKit("gm"))
	require.NoError(t, err)
	assert.Equal(t, *newer, *latest)

	byName, err := LoadPattern(saves[1].Filename, GetKit("gm"))
	require.NoError(t, err)
	assert.Equal(t, *older, *byName)

	byPath, err := LoadPattern(path, GetKit("gm"))
	require.NoError(t, err)
	assert.Equal(t, *newer, *byPath)
}
