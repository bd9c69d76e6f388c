package audio

import (
	"fmt"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Player plays a Clock through the system audio device
type Player struct {
	player *ebitaudio.Player
	clock  *Clock
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioContextRate int
)

// ebiten allows one audio context per process
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioContextRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioContextRate != sampleRate {
		return nil, fmt.Errorf("audio context already running at %d Hz (requested %d Hz)", audioContextRate, sampleRate)
	}
	return audioContext, nil
}

func NewPlayer(sampleRate int, clock *Clock) (*Player, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	pl, err := ctx.NewPlayerF32(clock)
	if err != nil {
		return nil, fmt.Errorf("create player: %w", err)
	}
	return &Player{player: pl, clock: clock}, nil
}

func (p *Player) Play() { p.player.Play() }

func (p *Player) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.clock.Close()
}
