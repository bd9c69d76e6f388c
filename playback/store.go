package playback

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// ErrNoSaves is returned when the latest save is requested and none exist
var ErrNoSaves = errors.New("no saved patterns")

const (
	saveExt    = ".yaml"
	saveLayout = "2006-01-02_15-04-05"
)

// SaveInfo describes one saved pattern file
type SaveInfo struct {
	Filename  string
	Name      string // parsed from filename, empty if unnamed
	Timestamp time.Time
}

// patternFile is the on-disk form. Only tracks with hits are written.
type patternFile struct {
	Channel uint8       `yaml:"channel"`
	Tracks  []trackFile `yaml:"tracks"`
}

type trackFile struct {
	Slot   string `yaml:"slot"`
	Note   uint8  `yaml:"note"`
	Length int    `yaml:"length"`
	Steps  []int  `yaml:"steps"` // velocity per step, 0 rests
}

// PatternsDir returns the directory pattern saves live in
func PatternsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-midibridge", "patterns"), nil
}

// ListSaves returns timestamped saves, newest first
func ListSaves() ([]SaveInfo, error) {
	dir, err := PatternsDir()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, err
	}

	var saves []SaveInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), saveExt) {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), saveExt)
		if len(base) < len(saveLayout) {
			continue
		}
		ts, err := time.Parse(saveLayout, base[:len(saveLayout)])
		if err != nil {
			continue
		}
		name := ""
		if len(base) > len(saveLayout)+1 && base[len(saveLayout)] == '_' {
			name = base[len(saveLayout)+1:]
		}
		saves = append(saves, SaveInfo{Filename: entry.Name(), Name: name, Timestamp: ts})
	}

	sort.Slice(saves, func(i, j int) bool {
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})
	return saves, nil
}

// SavePattern writes p to a timestamped file in PatternsDir and returns its path
func SavePattern(p *Pattern, name string, now time.Time) (string, error) {
	dir, err := PatternsDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	data, err := MarshalPattern(p)
	if err != nil {
		return "", err
	}

	filename := now.Format(saveLayout)
	if name = strings.TrimSpace(name); name != "" {
		filename += "_" + strings.ReplaceAll(name, string(filepath.Separator), "-")
	}
	path := filepath.Join(dir, filename+saveExt)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// LoadPattern reads a pattern. ref is a file path, a save filename in
// PatternsDir, or "latest" for the newest save. Notes of tracks missing
// from the file come from kit.
func LoadPattern(ref string, kit Kit) (*Pattern, error) {
	path, err := resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := UnmarshalPattern(data, kit)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", path, err)
	}
	return p, nil
}

func resolve(ref string) (string, error) {
	if ref != "latest" && strings.ContainsRune(ref, filepath.Separator) {
		return ref, nil
	}
	dir, err := PatternsDir()
	if err != nil {
		return "", err
	}
	if ref != "latest" {
		return filepath.Join(dir, ref), nil
	}
	saves, err := ListSaves()
	if err != nil {
		return "", err
	}
	if len(saves) == 0 {
		return "", ErrNoSaves
	}
	return filepath.Join(dir, saves[0].Filename), nil
}

// MarshalPattern encodes the tracks that have hits
func MarshalPattern(p *Pattern) ([]byte, error) {
	f := patternFile{Channel: p.Channel}
	for i := range p.Tracks {
		track := &p.Tracks[i]
		steps := make([]int, track.Length)
		hit := false
		for s := range steps {
			if track.Steps[s].Active {
				steps[s] = int(track.Steps[s].Velocity)
				hit = true
			}
		}
		if !hit {
			continue
		}
		f.Tracks = append(f.Tracks, trackFile{Slot: SlotNames[i], Note: track.Note, Length: track.Length, Steps: steps})
	}
	return yaml.Marshal(f)
}

// UnmarshalPattern decodes a pattern file on top of an empty kit pattern
func UnmarshalPattern(data []byte, kit Kit) (*Pattern, error) {
	var f patternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Channel > 15 {
		return nil, fmt.Errorf("channel %d out of range", f.Channel)
	}

	p := NewPattern(kit)
	p.Channel = f.Channel
	for _, tf := range f.Tracks {
		t := slotIndex(tf.Slot)
		if t < 0 {
			return nil, fmt.Errorf("unknown slot %q", tf.Slot)
		}
		if tf.Note > 127 {
			return nil, fmt.Errorf("slot %s: note %d out of range", tf.Slot, tf.Note)
		}
		if tf.Note > 0 {
			p.Tracks[t].Note = tf.Note
		}
		length := tf.Length
		if length == 0 {
			length = len(tf.Steps)
		}
		p.SetLength(t, length)
		for s, vel := range tf.Steps {
			if vel < 0 || vel > 127 {
				return nil, fmt.Errorf("slot %s: step %d velocity %d out of range", tf.Slot, s+1, vel)
			}
			p.Set(t, s, uint8(vel))
		}
	}
	return p, nil
}

func slotIndex(name string) int {
	for i, slot := range SlotNames {
		if slot == name {
			return i
		}
	}
	return -1
}
