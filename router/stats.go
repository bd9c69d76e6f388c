package router

import (
	"sync"
	"time"

	"go-midibridge/midi"
)

// latencyWindow is how many process durations the moving average covers
const latencyWindow = 100

// Statistics is a point-in-time copy of the router counters
type Statistics struct {
	TotalEvents      uint64 // emitted to the consumer
	DroppedEvents    uint64 // evicted on overflow
	RejectedEvents   uint64 // unknown/disabled source or malformed bytes
	ConversionErrors uint64 // skipped during process
	ReentrantSkips   uint64 // process calls that overlapped another
	Batches          uint64 // process calls that emitted at least one event
	EventsBySource   map[midi.Source]uint64
	QueueLength      int
	AverageLatency   time.Duration
}

// Stats holds the live counters. Mutated by the queue and the arbiter,
// read by diagnostics through Snapshot.
type Stats struct {
	mu sync.Mutex

	total, dropped, rejected uint64
	convErrors, reentrant    uint64
	batches                  uint64
	bySource                 [midi.NumSources]uint64
	queueLen                 int

	latencies [latencyWindow]time.Duration
	latIdx    int
	latCount  int
	latSum    time.Duration
}

func NewStats() *Stats {
	return &Stats{}
}

// RecordProcessed records one process pass: count events emitted in elapsed
func (s *Stats) RecordProcessed(count int, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total += uint64(count)
	if count > 0 {
		s.batches++
	}
	// ring buffer of the last latencyWindow durations with a running sum
	if s.latCount == latencyWindow {
		s.latSum -= s.latencies[s.latIdx]
	} else {
		s.latCount++
	}
	s.latencies[s.latIdx] = elapsed
	s.latSum += elapsed
	s.latIdx = (s.latIdx + 1) % latencyWindow
}

func (s *Stats) RecordDropped() {
	s.mu.Lock()
	s.dropped++
	s.mu.Unlock()
}

func (s *Stats) recordRejected() {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
}

func (s *Stats) recordConversionError() {
	s.mu.Lock()
	s.convErrors++
	s.mu.Unlock()
}

func (s *Stats) recordReentrant() {
	s.mu.Lock()
	s.reentrant++
	s.mu.Unlock()
}

func (s *Stats) recordSource(src midi.Source, n uint64) {
	if !src.Valid() {
		return
	}
	s.mu.Lock()
	s.bySource[src] += n
	s.mu.Unlock()
}

func (s *Stats) setQueueLength(n int) {
	s.mu.Lock()
	s.queueLen = n
	s.mu.Unlock()
}

// Snapshot returns a copy that shares nothing with the live counters
func (s *Stats) Snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Statistics{
		TotalEvents:      s.total,
		DroppedEvents:    s.dropped,
		RejectedEvents:   s.rejected,
		ConversionErrors: s.convErrors,
		ReentrantSkips:   s.reentrant,
		Batches:          s.batches,
		EventsBySource:   make(map[midi.Source]uint64, midi.NumSources),
		QueueLength:      s.queueLen,
	}
	for _, src := range midi.Sources() {
		out.EventsBySource[src] = s.bySource[src]
	}
	if s.latCount > 0 {
		out.AverageLatency = s.latSum / time.Duration(s.latCount)
	}
	return out
}

// Reset zeroes every counter. The queue length gauge is kept since it
// reflects what is currently buffered.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total, s.dropped, s.rejected = 0, 0, 0
	s.convErrors, s.reentrant, s.batches = 0, 0, 0
	s.bySource = [midi.NumSources]uint64{}
	s.latencies = [latencyWindow]time.Duration{}
	s.latIdx, s.latCount, s.latSum = 0, 0, 0
}
