package playback

// SlotNames labels the 16 drum slots every kit maps
var SlotNames = [NumTracks]string{
	"kick", "snare", "closed hat", "open hat", "low tom", "mid tom", "high tom", "crash",
	"ride", "clap", "rimshot", "cowbell", "clave", "maracas", "low conga", "high conga",
}

// Kit maps the drum slots to MIDI notes
type Kit struct {
	Name  string
	Notes [NumTracks]uint8
}

// Kits contains all available drum kit mappings
var Kits = map[string]Kit{
	"gm": {
		Name:  "General MIDI",
		Notes: [NumTracks]uint8{36, 38, 42, 46, 41, 43, 45, 49, 51, 39, 37, 56, 75, 70, 64, 63},
	},
	"rd8": {
		// RD-8 snare sits on 40, not 38
		Name:  "Behringer RD-8",
		Notes: [NumTracks]uint8{36, 40, 42, 46, 45, 48, 50, 49, 51, 39, 37, 56, 75, 70, 64, 63},
	},
	"tr8s": {
		Name:  "Roland TR-8S",
		Notes: [NumTracks]uint8{36, 38, 42, 46, 41, 43, 45, 49, 51, 39, 37, 56, 75, 70, 62, 63},
	},
	"er1": {
		Name:  "Korg ER-1",
		Notes: [NumTracks]uint8{36, 38, 42, 46, 40, 41, 43, 49, 45, 39, 37, 56, 75, 70, 64, 63},
	},
}

// DefaultKit is the default kit name
const DefaultKit = "gm"

// KitNames returns the list of available kit names
func KitNames() []string {
	return []string{"gm", "rd8", "tr8s", "er1"}
}

// GetKit returns a kit by name, defaulting to GM if not found
func GetKit(name string) Kit {
	if kit, ok := Kits[name]; ok {
		return kit
	}
	return Kits[DefaultKit]
}
