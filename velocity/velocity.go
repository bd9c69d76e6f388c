// Package velocity maps gesture magnitudes (pressure, hold time, position)
// onto MIDI velocities through selectable response curves.
package velocity

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Curve maps a normalized input in [0,1] to an output in [0,1]
type Curve func(x float64) float64

// Sensitivity limits
const (
	MinSensitivity = 0.1
	MaxSensitivity = 2.0
)

// DefaultProfile is selected by New
const DefaultProfile = "linear"

var curves = map[string]Curve{
	"linear":      func(x float64) float64 { return x },
	"natural":     math.Sqrt,
	"quadratic":   func(x float64) float64 { return x * x },
	"logarithmic": func(x float64) float64 { return math.Log10(1 + 9*x) },
	"soft":        func(x float64) float64 { return math.Pow(x, 0.6) },
	"hard":        func(x float64) float64 { return math.Pow(x, 1.8) },
	// strings: smoothstep, gentle at both ends for bowed/pad swells
	"strings": func(x float64) float64 { return x * x * (3 - 2*x) },
	// organ: four registration steps, sustained instruments ignore fine dynamics
	"organ": func(x float64) float64 {
		switch {
		case x < 0.25:
			return 0.25
		case x < 0.5:
			return 0.5
		case x < 0.75:
			return 0.75
		}
		return 1
	},
}

// Profiles returns the available curve names, sorted
func Profiles() []string {
	names := make([]string, 0, len(curves))
	for n := range curves {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Normalizer converts raw magnitudes to velocities 1-127.
// Safe for concurrent use.
type Normalizer struct {
	mu          sync.RWMutex
	profile     string
	curve       Curve
	sensitivity float64
}

func New() *Normalizer {
	return &Normalizer{
		profile:     DefaultProfile,
		curve:       curves[DefaultProfile],
		sensitivity: 1.0,
	}
}

// SetProfile selects a curve by name. Unknown names leave the current
// profile in place and return false.
func (n *Normalizer) SetProfile(name string) bool {
	c, ok := curves[name]
	if !ok {
		return false
	}
	n.mu.Lock()
	n.profile = name
	n.curve = c
	n.mu.Unlock()
	return true
}

func (n *Normalizer) Profile() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.profile
}

// SetSensitivity scales input before the curve, clamped to [0.1, 2.0]
func (n *Normalizer) SetSensitivity(v float64) {
	if math.IsNaN(v) {
		return
	}
	n.mu.Lock()
	n.sensitivity = clamp(v, MinSensitivity, MaxSensitivity)
	n.mu.Unlock()
}

func (n *Normalizer) Sensitivity() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sensitivity
}

// Process maps raw (clamped to [0,1]) to a velocity in [1,127].
// 0 is never produced: a note-on with velocity 0 is a note-off.
func (n *Normalizer) Process(raw float64) uint8 {
	n.mu.RLock()
	curve, sens := n.curve, n.sensitivity
	n.mu.RUnlock()

	if math.IsNaN(raw) {
		raw = 0
	}
	x := clamp(raw, 0, 1)
	x = clamp(x*sens, 0, 1)
	y := curve(x)
	if math.IsNaN(y) {
		y = 0
	}
	v := math.Round(y * 127)
	return uint8(clamp(v, 1, 127))
}

// FromHold maps a key-hold duration onto [0,1], reaching 1 at full
func FromHold(hold, full time.Duration) float64 {
	if full <= 0 {
		return 1
	}
	return clamp(float64(hold)/float64(full), 0, 1)
}

// FromPosition maps a position within extent onto [0,1]
func FromPosition(pos, extent float64) float64 {
	if extent <= 0 {
		return 0
	}
	return clamp(pos/extent, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
