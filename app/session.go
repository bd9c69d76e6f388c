package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"go-midibridge/audio"
	"go-midibridge/config"
	"go-midibridge/debug"
	"go-midibridge/engine"
	"go-midibridge/midi"
	"go-midibridge/playback"
	"go-midibridge/router"
	"go-midibridge/timing"
	"go-midibridge/tui"
	"go-midibridge/velocity"
)

// session is one running bridge: producers -> router -> pending -> audio clock -> synth
type session struct {
	cfg *config.Config
	log zerolog.Logger

	bridge   *timing.Bridge
	router   *router.Router
	norm     *velocity.Normalizer
	pending  *engine.Pending
	recent   *engine.Recent
	synth    engine.Synth
	thru     *midi.Thru // nil without output.port
	clock    *audio.Clock
	player   *playback.Player
	keyboard *tui.Keyboard
	devices  *midi.DeviceManager

	wg sync.WaitGroup
}

func newSession(cfg *config.Config, log zerolog.Logger) (*session, error) {
	s := &session{
		cfg:    cfg,
		log:    log.With().Str("cat", "session").Logger(),
		bridge: timing.New(),
		norm:   velocity.New(),
		recent: engine.NewRecent(32),
	}

	routerLog := log
	if cfg.DebugLogging {
		routerLog = log.Level(zerolog.DebugLevel)
	}
	s.router = router.New(s.bridge,
		router.WithCapacity(cfg.MaxQueueSize),
		router.WithInterval(cfg.ProcessingInterval()),
		router.WithBatchBuffer(cfg.BatchBuffer),
		router.WithDebug(cfg.DebugLogging),
		router.WithLogger(routerLog),
	)

	if !s.norm.SetProfile(cfg.Velocity.Profile) {
		return nil, fmt.Errorf("%w: velocity.profile = %s", config.ErrInvalid, cfg.Velocity.Profile)
	}
	s.norm.SetSensitivity(cfg.Velocity.Sensitivity)

	var out engine.Synth = engine.NewLogSynth(log)
	if cfg.Output.Port != "" {
		thru, err := midi.OpenThru(cfg.Output.Port, log)
		if err != nil {
			return nil, err
		}
		s.thru = thru
		out = thru
	}
	s.synth = engine.Tee(out, s.recent)

	s.pending = engine.NewPending(engine.DefaultPendingCapacity, log)
	s.clock = audio.NewClock(s.bridge, s.pending, s.synth, log)

	kit := playback.GetKit(cfg.Playback.Kit)
	pattern := playback.DefaultPattern(kit)
	if cfg.Playback.Pattern != "" {
		p, err := playback.LoadPattern(cfg.Playback.Pattern, kit)
		if err != nil {
			return nil, fmt.Errorf("load pattern: %w", err)
		}
		pattern = p
	}
	s.player = playback.New(s.router, pattern, log)
	s.player.SetTempo(cfg.Playback.Tempo)

	s.keyboard = tui.NewKeyboard(s.router, s.norm, cfg.Keyboard.Octave, cfg.Keyboard.Pressure, cfg.Keyboard.Gate)
	s.devices = midi.NewDeviceManager(s.router, cfg.Input.Match, cfg.Input.PollInterval, log)
	s.devices.SetExclude(cfg.Input.Exclude)

	s.router.Register(midi.SourceUser, "computer keyboard", true)
	s.router.Register(midi.SourcePlayback, "pattern "+cfg.Playback.Kit, true)
	return s, nil
}

// start initializes the sample clock and launches every goroutine. They
// all return once ctx is done; see wait.
func (s *session) start(ctx context.Context) error {
	if err := s.bridge.Initialize(s.cfg.SampleRate, time.Now()); err != nil {
		return err
	}

	s.goRun(func() { s.router.Run(ctx) })
	s.goRun(func() { s.pending.Consume(ctx, s.router.Batches()) })
	s.goRun(func() { s.devices.Run(ctx) })
	s.goRun(func() {
		for ev := range s.devices.Events() {
			s.handleDevice(ev, s.devices.Inputs())
		}
	})

	s.startAudio(ctx)

	if s.cfg.Playback.Autostart {
		s.player.Play()
	}
	s.log.Info().
		Int("rate", s.cfg.SampleRate).
		Int("capacity", s.router.Capacity()).
		Dur("interval", s.cfg.ProcessingInterval()).
		Msg("bridge started")
	return nil
}

func (s *session) goRun(f func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		f()
	}()
}

// startAudio plays the clock on the sound card, or on a ticker when audio is
// disabled or no device can be opened
func (s *session) startAudio(ctx context.Context) {
	if s.cfg.Audio.Enabled {
		player, err := audio.NewPlayer(s.cfg.SampleRate, s.clock)
		if err == nil {
			player.Play()
			s.goRun(func() {
				<-ctx.Done()
				if err := player.Stop(); err != nil {
					s.log.Warn().Err(err).Msg("audio stop")
				}
			})
			return
		}
		s.log.Warn().Err(err).Msg("audio device unavailable, using ticker clock")
	}
	s.goRun(func() { s.clock.RunTicker(ctx, s.cfg.SampleRate, s.cfg.Audio.BufferFrames) })
}

// handleDevice keeps the hardware registration in step with open ports.
// The first port registers and enables hardware; the last one to go
// disables it and keeps the registration.
func (s *session) handleDevice(ev midi.DeviceEvent, inputs []string) {
	name := strings.Join(inputs, ", ")
	switch {
	case ev.Open == 0:
		s.router.SetEnabled(midi.SourceHardware, false)
	case ev.Type == midi.DeviceConnected && ev.Open == 1:
		s.router.Register(midi.SourceHardware, name, true)
	default:
		s.router.Register(midi.SourceHardware, name, s.router.IsEnabled(midi.SourceHardware))
	}
}

// wait stops playback, waits for the goroutines and tears the router down
func (s *session) wait() {
	defer debug.Timed(s.log, "shutdown")()
	s.player.Stop()
	s.wg.Wait()
	s.router.Destroy()

	stats := s.router.Stats()
	ev := s.log.Info().
		Uint64("emitted", stats.TotalEvents).
		Uint64("dropped", stats.DroppedEvents).
		Uint64("rejected", stats.RejectedEvents).
		Uint64("dispatched", s.clock.Dispatched()).
		Uint64("discarded", s.pending.Discarded())
	if s.thru != nil {
		s.thru.Close()
		sent, failed := s.thru.Counts()
		ev = ev.Uint64("sent", sent).Uint64("send_failed", failed).Uint64("thru_dropped", s.thru.Dropped())
	}
	ev.Msg("bridge stopped")
}

// logStats writes a stats line every interval until ctx is done
func (s *session) logStats(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.router.Stats()
			e := s.log.Info().
				Int64("cursor", s.router.CurrentSampleTime()).
				Int("queue", stats.QueueLength).
				Uint64("emitted", stats.TotalEvents).
				Uint64("dropped", stats.DroppedEvents).
				Uint64("rejected", stats.RejectedEvents).
				Dur("latency", stats.AverageLatency)
			for _, src := range midi.Sources() {
				e = e.Uint64(src.String(), stats.EventsBySource[src])
			}
			e.Msg("stats")
		}
	}
}
