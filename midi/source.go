package midi

import (
	"fmt"
	"strings"
)

// Source identifies the kind of producer an event came from
type Source uint8

const (
	SourceHardware  Source = iota // external MIDI controllers
	SourceUser                    // direct interaction (computer keyboard, pointer)
	SourcePlayback                // automated/pattern playback
	SourceSynthetic               // generated/test traffic
	numSources
)

// Priority orders sources during arbitration; higher wins
type Priority int

// Fixed priority table. Never changes at runtime.
var priorities = [numSources]Priority{
	SourceHardware:  100,
	SourceUser:      75,
	SourcePlayback:  50,
	SourceSynthetic: 10,
}

var sourceNames = [numSources]string{
	SourceHardware:  "hardware",
	SourceUser:      "user",
	SourcePlayback:  "playback",
	SourceSynthetic: "synthetic",
}

// Sources lists every known source kind, highest priority first
func Sources() []Source {
	return []Source{SourceHardware, SourceUser, SourcePlayback, SourceSynthetic}
}

// NumSources is the number of source kinds
const NumSources = int(numSources)

func (s Source) Valid() bool {
	return s < numSources
}

// Priority returns the fixed priority, or 0 for an invalid source
func (s Source) Priority() Priority {
	if !s.Valid() {
		return 0
	}
	return priorities[s]
}

func (s Source) String() string {
	if !s.Valid() {
		return fmt.Sprintf("source(%d)", uint8(s))
	}
	return sourceNames[s]
}

// ParseSource looks a source up by name (case-insensitive)
func ParseSource(name string) (Source, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range sourceNames {
		if n == name {
			return Source(i), true
		}
	}
	return 0, false
}
