// Package widgets renders small text-mode building blocks for the monitor.
package widgets

import (
	"fmt"
	"strings"
)

// StepSymbols are the glyphs of a step row
type StepSymbols struct {
	Empty    rune // · inactive step
	Active   rune // ● has hit
	Playhead rune // ▶ current step
	Beyond   rune // - past track length
}

// RenderSteps draws width cells of one track. Cells at or past length are
// drawn as Beyond; playhead < 0 hides the playhead.
func RenderSteps(active []bool, length, playhead, width int, sym StepSymbols) string {
	var out strings.Builder
	for s := 0; s < width; s++ {
		switch {
		case s >= length:
			out.WriteRune(sym.Beyond)
		case s == playhead:
			out.WriteRune(sym.Playhead)
		case s < len(active) && active[s]:
			out.WriteRune(sym.Active)
		default:
			out.WriteRune(sym.Empty)
		}
	}
	return out.String()
}

// Gauge draws n of capacity as a bar width cells wide, rounding up so any
// non-zero fill shows
func Gauge(n, capacity, width int, full, empty rune) string {
	filled := 0
	if capacity > 0 && n > 0 {
		filled = min(width, (n*width+capacity-1)/capacity)
	}
	return strings.Repeat(string(full), filled) + strings.Repeat(string(empty), width-filled)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
