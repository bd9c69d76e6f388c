package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"go-midibridge/midi"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	Enabled      rune // ● registered and enabled
	Disabled     rune // ○ registered, disabled
	Unregistered rune // · not registered

	GaugeFull  rune // █
	GaugeEmpty rune // ░

	NoteOn  rune // ▶
	NoteOff rune // ■
	Other   rune // ~

	StepEmpty    rune // ·
	StepActive   rune // ●
	StepPlayhead rune // ▶
	StepBeyond   rune // -
}

// New uses Plasma when palette is nil
func New(palette *Palette) *Theme {
	if palette == nil || len(palette.Colors) == 0 {
		palette = Plasma
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Enabled:      '●',
			Disabled:     '○',
			Unregistered: '·',

			GaugeFull:  '█',
			GaugeEmpty: '░',

			NoteOn:  '▶',
			NoteOff: '■',
			Other:   '~',

			StepEmpty:    '·',
			StepActive:   '●',
			StepPlayhead: '▶',
			StepBeyond:   '-',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

func (t *Theme) BG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleBG))
}

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Active() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleActive))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// Source colors a source by its priority, higher priority brighter
func (t *Theme) Source(src midi.Source) lipgloss.Color {
	p := float64(src.Priority())
	return t.Color(0.3 + 0.7*p/float64(midi.SourceHardware.Priority()))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
