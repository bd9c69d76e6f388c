// Package router arbitrates events from every source into one
// priority-ordered stream on the sample clock.
package router

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"go-midibridge/debug"
	"go-midibridge/midi"
	"go-midibridge/timing"
)

// Defaults
const (
	DefaultMaxQueueSize = 1000
	DefaultInterval     = 10 * time.Millisecond
	DefaultBatchBuffer  = 64
)

type queued struct {
	ev  midi.RawEvent
	seq uint64
}

// Router buffers raw events and emits ordered sample-domain batches.
//
// Queue may be called from any goroutine and never waits on Process.
// Process is non-reentrant: an overlapping call returns nil.
type Router struct {
	mu       sync.Mutex
	queue    []queued
	spare    []queued
	seq      uint64
	capacity int
	closed   bool

	processing atomic.Bool

	registry *Registry
	stats    *Stats
	bridge   *timing.Bridge
	now      func() time.Time

	log       zerolog.Logger // lifecycle, cat=router
	regLog    zerolog.Logger // cat=registry
	queueLog  zerolog.Logger // per-event records, cat=queue; sampled unless debugLog
	procLog   zerolog.Logger // cat=process
	procEvery zerolog.Logger // procLog, sampled unless debugLog
	debugLog  bool

	interval time.Duration
	batches  chan []midi.SampleEvent
}

// Option configures a Router
type Option func(*Router)

// WithCapacity sets max_queue_size; values < 1 fall back to the default
func WithCapacity(n int) Option {
	return func(r *Router) {
		if n >= 1 {
			r.capacity = n
		}
	}
}

// WithClock replaces time.Now for stamping events queued without an arrival time
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// WithLogger sets the diagnostic sink
func WithLogger(log zerolog.Logger) Option {
	return func(r *Router) {
		r.log = log
	}
}

// WithDebug enables per-event debug records
func WithDebug(on bool) Option {
	return func(r *Router) {
		r.debugLog = on
	}
}

// WithInterval sets how often Run processes the queue
func WithInterval(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchBuffer sets the capacity of the Batches channel
func WithBatchBuffer(n int) Option {
	return func(r *Router) {
		if n >= 1 {
			r.batches = make(chan []midi.SampleEvent, n)
		}
	}
}

// New creates a router that converts timestamps with bridge
func New(bridge *timing.Bridge, opts ...Option) *Router {
	r := &Router{
		capacity: DefaultMaxQueueSize,
		registry: NewRegistry(),
		stats:    NewStats(),
		bridge:   bridge,
		now:      time.Now,
		log:      zerolog.Nop(),
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.batches == nil {
		r.batches = make(chan []midi.SampleEvent, DefaultBatchBuffer)
	}
	base := r.log
	r.log = debug.Category(base, "router")
	r.regLog = debug.Category(base, "registry")
	r.queueLog = debug.Category(base, "queue")
	r.procLog = debug.Category(base, "process")
	r.procEvery = r.procLog
	if !r.debugLog {
		r.queueLog = debug.Every(r.queueLog, 16)
		r.procEvery = debug.Every(r.procLog, 16)
	}
	r.queue = make([]queued, 0, r.capacity)
	r.spare = make([]queued, 0, r.capacity)
	return r
}

// Registry access

func (r *Router) Register(src midi.Source, name string, enabled bool) {
	r.registry.Register(src, name, enabled)
	r.regLog.Info().Stringer("source", src).Str("name", name).Bool("enabled", enabled).Msg("source registered")
}

func (r *Router) Unregister(src midi.Source) {
	r.registry.Unregister(src)
	r.regLog.Info().Stringer("source", src).Msg("source unregistered")
}

// SetEnabled reports whether src was registered
func (r *Router) SetEnabled(src midi.Source, enabled bool) bool {
	ok := r.registry.SetEnabled(src, enabled)
	r.regLog.Info().Stringer("source", src).Bool("enabled", enabled).Bool("registered", ok).Msg("source toggled")
	return ok
}

func (r *Router) IsEnabled(src midi.Source) bool {
	return r.registry.IsEnabled(src)
}

// Sources lists registrations in priority order
func (r *Router) Sources() []Registration {
	return r.registry.List()
}

// Queue buffers an event. Events from unknown or disabled sources and
// malformed messages are counted as rejected. At capacity the lowest-priority
// (then oldest) buffered event is evicted first; the new event is always
// accepted.
func (r *Router) Queue(ev midi.RawEvent) {
	if ev.Arrival.IsZero() {
		ev.Arrival = r.now()
	}
	if err := ev.Validate(); err != nil {
		r.reject(ev, err.Error())
		return
	}
	if !r.registry.IsEnabled(ev.Source) {
		r.reject(ev, "source not enabled")
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.reject(ev, "router destroyed")
		return
	}
	var evicted *queued
	if len(r.queue) >= r.capacity {
		e := r.evictLocked()
		evicted = &e
	}
	r.queue = append(r.queue, queued{ev: ev, seq: r.seq})
	r.seq++
	n := len(r.queue)
	r.stats.setQueueLength(n)
	r.mu.Unlock()

	if evicted != nil {
		r.stats.RecordDropped()
		if r.debugLog {
			r.queueLog.Debug().Stringer("evicted", evicted.ev.Message).Stringer("source", evicted.ev.Source).
				Uint64("seq", evicted.seq).Msg("queue full, evicted")
		}
	}
	if r.debugLog {
		r.queueLog.Debug().Stringer("event", ev.Message).Stringer("source", ev.Source).Int("depth", n).Msg("queued")
	}
}

// evictLocked removes the lowest-priority buffered event, oldest first
// among equals. Must hold r.mu with a non-empty queue.
func (r *Router) evictLocked() queued {
	victim := 0
	for i := 1; i < len(r.queue); i++ {
		pi, pv := r.queue[i].ev.Source.Priority(), r.queue[victim].ev.Source.Priority()
		if pi < pv || (pi == pv && r.queue[i].seq < r.queue[victim].seq) {
			victim = i
		}
	}
	e := r.queue[victim]
	last := len(r.queue) - 1
	r.queue[victim] = r.queue[last]
	r.queue[last] = queued{}
	r.queue = r.queue[:last]
	return e
}

func (r *Router) reject(ev midi.RawEvent, reason string) {
	r.stats.recordRejected()
	if r.debugLog {
		r.queueLog.Debug().Stringer("event", ev.Message).Stringer("source", ev.Source).Str("reason", reason).Msg("rejected")
	}
}

// Process drains the buffer and returns its events ordered by priority
// (descending) then arrival (ascending), each placed on the sample clock.
// Events that fail conversion are skipped and counted.
func (r *Router) Process() []midi.SampleEvent {
	if !r.processing.CompareAndSwap(false, true) {
		r.stats.recordReentrant()
		return nil
	}
	defer r.processing.Store(false)

	start := time.Now()

	r.mu.Lock()
	batch := r.queue
	r.queue = r.spare[:0]
	r.spare = nil
	r.stats.setQueueLength(0)
	r.mu.Unlock()

	if len(batch) == 0 {
		r.recycle(batch)
		r.stats.RecordProcessed(0, time.Since(start))
		return nil
	}

	sort.SliceStable(batch, func(i, j int) bool {
		a, b := batch[i], batch[j]
		pa, pb := a.ev.Source.Priority(), b.ev.Source.Priority()
		if pa != pb {
			return pa > pb
		}
		if !a.ev.Arrival.Equal(b.ev.Arrival) {
			return a.ev.Arrival.Before(b.ev.Arrival)
		}
		return a.seq < b.seq
	})

	out := make([]midi.SampleEvent, 0, len(batch))
	var bySource [midi.NumSources]uint64
	for _, q := range batch {
		se, err := r.convert(q.ev)
		if err != nil {
			r.stats.recordConversionError()
			r.procLog.Warn().Err(err).Stringer("event", q.ev.Message).Stringer("source", q.ev.Source).Msg("conversion failed, event skipped")
			continue
		}
		bySource[se.Source]++
		out = append(out, se)
	}
	r.recycle(batch)

	for _, src := range midi.Sources() {
		if bySource[src] > 0 {
			r.stats.recordSource(src, bySource[src])
		}
	}
	elapsed := time.Since(start)
	r.stats.RecordProcessed(len(out), elapsed)

	if r.debugLog {
		r.procLog.Debug().Int("events", len(out)).Dur("elapsed", elapsed).Msg("processed")
	}
	return out
}

func (r *Router) convert(ev midi.RawEvent) (midi.SampleEvent, error) {
	ts, err := r.bridge.Convert(ev.Arrival)
	if err != nil {
		return midi.SampleEvent{}, err
	}
	msg := ev.Resolved()
	if err := msg.Validate(); err != nil {
		return midi.SampleEvent{}, err
	}
	return midi.SampleEvent{Timestamp: ts, Source: ev.Source, Message: msg}, nil
}

// recycle hands a drained buffer back for the next swap
func (r *Router) recycle(batch []queued) {
	clear(batch)
	r.mu.Lock()
	if r.spare == nil && !r.closed {
		r.spare = batch[:0]
	}
	r.mu.Unlock()
}

// Len is the number of buffered events
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Capacity is max_queue_size
func (r *Router) Capacity() int {
	return r.capacity
}

// Stats returns a snapshot of the counters
func (r *Router) Stats() Statistics {
	return r.stats.Snapshot()
}

// ResetStats zeroes the counters; registrations are untouched
func (r *Router) ResetStats() {
	r.stats.Reset()
}

// Advance reports rendered samples from the audio callback
func (r *Router) Advance(samples int) int64 {
	return r.bridge.Advance(samples)
}

// CurrentSampleTime is the bridge cursor
func (r *Router) CurrentSampleTime() int64 {
	return r.bridge.Now()
}

func (r *Router) Bridge() *timing.Bridge {
	return r.bridge
}

// Destroy clears the queue and the registry. Later Queue calls are
// rejected and Process returns nothing.
func (r *Router) Destroy() {
	r.mu.Lock()
	r.closed = true
	r.queue = nil
	r.spare = nil
	r.registry.Clear()
	r.stats.setQueueLength(0)
	r.mu.Unlock()
	r.log.Info().Msg("router destroyed")
}

// Batches delivers the non-empty batches produced by Run
func (r *Router) Batches() <-chan []midi.SampleEvent {
	return r.batches
}

// Run processes the queue every interval until ctx is done, then closes
// Batches. Call it once.
//
// When the consumer has not drained Batches the tick is skipped and the
// events stay buffered, where the drop policy bounds them.
func (r *Router) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.batches)

	r.log.Info().Dur("interval", r.interval).Int("capacity", r.capacity).Msg("router running")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Router) tick() {
	if len(r.batches) == cap(r.batches) {
		r.procEvery.Warn().Int("depth", r.Len()).Msg("consumer behind, tick skipped")
		return
	}
	batch := r.Process()
	if len(batch) == 0 {
		return
	}
	// Run is the only sender and there is room
	r.batches <- batch
}
