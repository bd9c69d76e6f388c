package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"go-midibridge/engine"
	"go-midibridge/midi"
	"go-midibridge/playback"
	"go-midibridge/router"
	"go-midibridge/theme"
	"go-midibridge/widgets"
)

const refreshRate = time.Second / 15

// recentRows is how many delivered events the monitor lists
const recentRows = 8

// Inputs lists open hardware ports
type Inputs interface {
	Inputs() []string
}

type Model struct {
	Router   *router.Router
	Player   *playback.Player
	Keyboard *Keyboard
	Devices  Inputs         // may be nil
	Recent   *engine.Recent // may be nil
	Theme    *theme.Theme

	log      zerolog.Logger
	status   string
	quitting bool
	showHelp bool
	stats    router.Statistics
}

type TickMsg time.Time

type UpdateMsg struct{}

func NewModel(r *router.Router, player *playback.Player, kb *Keyboard, devices Inputs, recent *engine.Recent, th *theme.Theme, log zerolog.Logger) Model {
	if th == nil {
		th = theme.New(nil)
	}
	return Model{
		Router:   r,
		Player:   player,
		Keyboard: kb,
		Devices:  devices,
		Recent:   recent,
		Theme:    th,
		log:      log.With().Str("cat", "tui").Logger(),
		stats:    r.Stats(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func ListenForUpdates(player *playback.Player) tea.Cmd {
	return func() tea.Msg {
		<-player.UpdateChan
		return UpdateMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tick()}
	if m.Player != nil {
		cmds = append(cmds, ListenForUpdates(m.Player))
	}
	return tea.Batch(cmds...)
}

// sourceKeys toggle sources in priority order
var sourceKeys = map[string]midi.Source{
	"!": midi.SourceHardware, "f1": midi.SourceHardware,
	"@": midi.SourceUser, "f2": midi.SourceUser,
	"#": midi.SourcePlayback, "f3": midi.SourcePlayback,
	"$": midi.SourceSynthetic, "f4": midi.SourceSynthetic,
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "ctrl+c":
			m.quitting = true
			if m.Player != nil {
				m.Player.Stop()
			}
			return m, tea.Quit

		case "p":
			if m.Player != nil {
				if m.Player.Toggle() {
					m.status = "playback on"
				} else {
					m.status = "playback off"
				}
			}

		case "+", "=":
			if m.Player != nil {
				_, _, tempo := m.Player.State()
				m.Player.SetTempo(tempo + 5)
			}

		case "-", "_":
			if m.Player != nil {
				_, _, tempo := m.Player.State()
				m.Player.SetTempo(tempo - 5)
			}

		case "[":
			m.status = fmt.Sprintf("octave %d", m.Keyboard.Shift(-1))

		case "]":
			m.status = fmt.Sprintf("octave %d", m.Keyboard.Shift(1))

		case "v":
			m.status = "velocity " + m.Keyboard.CycleProfile()

		case "r":
			m.Router.ResetStats()
			m.status = "stats reset"

		case "ctrl+s":
			if m.Player != nil {
				pat := m.Player.Pattern()
				path, err := playback.SavePattern(&pat, "", time.Now())
				if err != nil {
					m.status = "save failed: " + err.Error()
					m.log.Error().Err(err).Msg("pattern save failed")
				} else {
					m.status = "saved " + filepath.Base(path)
					m.log.Info().Str("path", path).Msg("pattern saved")
				}
			}

		case "?":
			m.showHelp = !m.showHelp

		default:
			if src, ok := sourceKeys[key]; ok {
				m.toggle(src)
				break
			}
			if note, vel, ok := m.Keyboard.Press(key); ok {
				m.status = fmt.Sprintf("note %d vel %d", note, vel)
			}
		}
		m.stats = m.Router.Stats()

	case TickMsg:
		m.stats = m.Router.Stats()
		return m, tick()

	case UpdateMsg:
		return m, ListenForUpdates(m.Player)
	}

	return m, nil
}

func (m *Model) toggle(src midi.Source) {
	enabled := !m.Router.IsEnabled(src)
	if !m.Router.SetEnabled(src, enabled) {
		m.status = src.String() + " not registered"
		return
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	m.status = src.String() + " " + state
	m.log.Debug().Stringer("source", src).Bool("enabled", enabled).Msg("toggled from monitor")
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent()).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(m.header()))
	out.WriteString("\n\n")

	out.WriteString(m.sourcesView(labelStyle, dimStyle))
	out.WriteString("\n")
	out.WriteString(m.queueView(labelStyle, warnStyle))
	out.WriteString("\n")

	if m.Devices != nil {
		inputs := m.Devices.Inputs()
		line := "inputs: none"
		if len(inputs) > 0 {
			line = "inputs: " + strings.Join(inputs, ", ")
		}
		out.WriteString(dimStyle.Render(line))
		out.WriteString("\n")
	}

	if m.Player != nil {
		out.WriteString("\n")
		out.WriteString(m.patternView(labelStyle, dimStyle))
	}

	if m.Recent != nil {
		out.WriteString("\n")
		out.WriteString(m.recentView(dimStyle))
	}

	kb := m.Keyboard
	out.WriteString("\n")
	out.WriteString(labelStyle.Render(fmt.Sprintf("keys: octave %d  velocity %s x%.2f",
		kb.Octave(), kb.Normalizer().Profile(), kb.Normalizer().Sensitivity())))
	if m.status != "" {
		out.WriteString("  ")
		out.WriteString(dimStyle.Render(m.status))
	}
	out.WriteString("\n\n")
	if m.showHelp {
		out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(helpSections)))
	} else {
		out.WriteString(dimStyle.Render("a-l:play  !@#$:sources  p:play  ?:help  q:quit"))
	}
	return out.String()
}

var helpSections = []widgets.KeySection{
	{Title: "Keyboard", Keys: []widgets.KeyBinding{
		{Key: "a-l", Desc: "play notes (home row, white and black keys)"},
		{Key: "[ ]", Desc: "octave down/up"},
		{Key: "v", Desc: "cycle velocity profile"},
	}},
	{Title: "Router", Keys: []widgets.KeyBinding{
		{Key: "!@#$ F1-F4", Desc: "toggle hardware/user/playback/synthetic"},
		{Key: "r", Desc: "reset statistics"},
	}},
	{Title: "Playback", Keys: []widgets.KeyBinding{
		{Key: "p", Desc: "start/stop pattern"},
		{Key: "+ -", Desc: "tempo"},
		{Key: "ctrl+s", Desc: "save pattern"},
	}},
	{Keys: []widgets.KeyBinding{
		{Key: "?", Desc: "toggle this help"},
		{Key: "q", Desc: "quit"},
	}},
}

func (m Model) header() string {
	play := ""
	if m.Player != nil {
		step, playing, tempo := m.Player.State()
		state := "STOP"
		if playing {
			state = "PLAY"
		}
		play = fmt.Sprintf("  %s %3dbpm step:%02d", state, tempo, step%16)
	}
	b := m.Router.Bridge()
	return fmt.Sprintf("go-midibridge  %dHz  cursor:%d%s", b.SampleRate(), m.Router.CurrentSampleTime(), play)
}

func (m Model) sourcesView(label, dim lipgloss.Style) string {
	registered := map[midi.Source]router.Registration{}
	for _, reg := range m.Router.Sources() {
		registered[reg.Source] = reg
	}

	var out strings.Builder
	for i, src := range midi.Sources() {
		sym := m.Theme.Symbols.Unregistered
		name := "-"
		if reg, ok := registered[src]; ok {
			name = reg.Name
			sym = m.Theme.Symbols.Disabled
			if reg.Enabled {
				sym = m.Theme.Symbols.Enabled
			}
		}
		style := lipgloss.NewStyle().Foreground(m.Theme.Source(src))
		out.WriteString(fmt.Sprintf("%s %s %s %s %s\n",
			dim.Render(fmt.Sprintf("F%d", i+1)),
			style.Render(string(sym)),
			label.Render(fmt.Sprintf("%-10s", src)),
			dim.Render(fmt.Sprintf("p%-3d %-20s", src.Priority(), truncate(name, 20))),
			label.Render(fmt.Sprintf("%8d", m.stats.EventsBySource[src])),
		))
	}
	return out.String()
}

func (m Model) queueView(label, warn lipgloss.Style) string {
	s := m.stats
	capacity := m.Router.Capacity()
	sym := m.Theme.Symbols
	line := fmt.Sprintf("queue %s %d/%d",
		widgets.Gauge(s.QueueLength, capacity, 20, sym.GaugeFull, sym.GaugeEmpty), s.QueueLength, capacity)

	counters := fmt.Sprintf("emitted %d  batches %d  latency %s", s.TotalEvents, s.Batches, s.AverageLatency.Round(time.Microsecond))
	problems := fmt.Sprintf("dropped %d  rejected %d  conversion %d  overlap %d",
		s.DroppedEvents, s.RejectedEvents, s.ConversionErrors, s.ReentrantSkips)
	problemStyle := label
	if s.DroppedEvents > 0 || s.ConversionErrors > 0 {
		problemStyle = warn
	}
	return label.Render(line) + "\n" + label.Render(counters) + "\n" + problemStyle.Render(problems) + "\n"
}

// patternView draws every track with at least one hit
func (m Model) patternView(label, dim lipgloss.Style) string {
	pat := m.Player.Pattern()
	width := pat.MasterLength()
	sym := widgets.StepSymbols{
		Empty:    m.Theme.Symbols.StepEmpty,
		Active:   m.Theme.Symbols.StepActive,
		Playhead: m.Theme.Symbols.StepPlayhead,
		Beyond:   m.Theme.Symbols.StepBeyond,
	}
	playStyle := lipgloss.NewStyle().Foreground(m.Theme.Source(midi.SourcePlayback))

	var out strings.Builder
	for t := range pat.Tracks {
		track := &pat.Tracks[t]
		active := make([]bool, track.Length)
		hit := false
		for s := range active {
			active[s] = track.Steps[s].Active
			hit = hit || active[s]
		}
		if !hit {
			continue
		}
		out.WriteString(label.Render(fmt.Sprintf("%-10s", playback.SlotNames[t])))
		out.WriteString(" ")
		out.WriteString(playStyle.Render(widgets.RenderSteps(active, track.Length, m.Player.Playhead(t), width, sym)))
		out.WriteString(" ")
		out.WriteString(dim.Render(fmt.Sprintf("n%d", track.Note)))
		out.WriteString("\n")
	}
	if out.Len() == 0 {
		return dim.Render("pattern empty") + "\n"
	}
	return out.String()
}

func (m Model) recentView(dim lipgloss.Style) string {
	events := m.Recent.Events()
	if len(events) == 0 {
		return dim.Render("no events yet") + "\n"
	}
	var out strings.Builder
	for i, ev := range events {
		if i == recentRows {
			break
		}
		sym := m.Theme.Symbols.Other
		switch {
		case ev.IsNoteOff():
			sym = m.Theme.Symbols.NoteOff
		case ev.Type == midi.NoteOn:
			sym = m.Theme.Symbols.NoteOn
		}
		style := lipgloss.NewStyle().Foreground(m.Theme.Source(ev.Source))
		out.WriteString(style.Render(string(sym)))
		out.WriteString(" ")
		out.WriteString(dim.Render(fmt.Sprintf("%10d  %-9s %s", ev.Timestamp, ev.Source, ev.Message)))
		out.WriteString("\n")
	}
	return out.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
