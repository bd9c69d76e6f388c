package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go-midibridge/midi"
)

func TestStatsMovingAverageWindow(t *testing.T) {
	s := NewStats()
	assert.Zero(t, s.Snapshot().AverageLatency)

	s.RecordProcessed(1, 2*time.Millisecond)
	s.RecordProcessed(1, 4*time.Millisecond)
	assert.Equal(t, 3*time.Millisecond, s.Snapshot().AverageLatency)

	for i := 0; i < latencyWindow; i++ {
		s.RecordProcessed(1, time.Millisecond)
	}
	assert.Equal(t, time.Millisecond, s.Snapshot().AverageLatency)

	for i := 0; i < latencyWindow/2; i++ {
		s.RecordProcessed(1, 3*time.Millisecond)
	}
	assert.Equal(t, 2*time.Millisecond, s.Snapshot().AverageLatency)
}

func TestStatsCounters(t *testing.T) {
	s := NewStats()
	s.RecordProcessed(3, time.Millisecond)
	s.RecordProcessed(0, time.Millisecond)
	s.RecordDropped()
	s.recordRejected()
	s.recordConversionError()
	s.recordReentrant()
	s.recordSource(midi.SourceUser, 3)
	s.recordSource(midi.Source(77), 1)
	s.setQueueLength(5)

	snap := s.Snapshot()
	assert.Equal(t, uint64(3), snap.TotalEvents)
	assert.Equal(t, uint64(1), snap.Batches)
	assert.Equal(t, uint64(1), snap.DroppedEvents)
	assert.Equal(t, uint64(1), snap.RejectedEvents)
	assert.Equal(t, uint64(1), snap.ConversionErrors)
	assert.Equal(t, uint64(1), snap.ReentrantSkips)
	assert.Equal(t, uint64(3), snap.EventsBySource[midi.SourceUser])
	assert.Equal(t, 5, snap.QueueLength)
	assert.Len(t, snap.EventsBySource, midi.NumSources)
}

func TestStatsSnapshotDoesNotAlias(t *testing.T) {
	s := NewStats()
	s.recordSource(midi.SourceHardware, 1)

	snap := s.Snapshot()
	snap.EventsBySource[midi.SourceHardware] = 999
	snap.TotalEvents = 999

	again := s.Snapshot()
	assert.Equal(t, uint64(1), again.EventsBySource[midi.SourceHardware])
	assert.Zero(t, again.TotalEvents)
}

func TestStatsReset(t *testing.T) {
	s := NewStats()
	s.RecordProcessed(4, time.Second)
	s.RecordDropped()
	s.recordSource(midi.SourcePlayback, 4)
	s.setQueueLength(2)

	s.Reset()
	snap := s.Snapshot()
	assert.Zero(t, snap.TotalEvents)
	assert.Zero(t, snap.DroppedEvents)
	assert.Zero(t, snap.AverageLatency)
	assert.Zero(t, snap.EventsBySource[midi.SourcePlayback])
	assert.Equal(t, 2, snap.QueueLength)

	// window restarts after reset
	s.RecordProcessed(1, 6*time.Millisecond)
	assert.Equal(t, 6*time.Millisecond, s.Snapshot().AverageLatency)
}
