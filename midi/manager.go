package midi

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// DeviceEvent is emitted when input ports connect/disconnect
type DeviceEvent struct {
	Type DeviceEventType
	ID   string
	Open int // inputs open after this event
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

func (t DeviceEventType) String() string {
	if t == DeviceConnected {
		return "connected"
	}
	return "disconnected"
}

// DeviceManager handles hot-plug detection of MIDI input ports
type DeviceManager struct {
	inputs   map[string]*Input
	mu       sync.RWMutex
	events   chan DeviceEvent
	pollRate time.Duration
	match    string
	exclude  []string
	queue    Queuer
	log      zerolog.Logger

	listPorts func() []drivers.In
	open      func(id string, port drivers.In) (*Input, error)
}

// DefaultExclude names virtual ports that are never opened automatically
var DefaultExclude = []string{"Midi Through", "Through Port"}

// NewDeviceManager creates a device manager that opens every input port whose
// name contains match (all ports when match is empty), skipping DefaultExclude.
// Matching ignores case.
func NewDeviceManager(q Queuer, match string, pollRate time.Duration, log zerolog.Logger) *DeviceManager {
	if pollRate <= 0 {
		pollRate = time.Second
	}
	dm := &DeviceManager{
		inputs:   make(map[string]*Input),
		events:   make(chan DeviceEvent, 16),
		pollRate: pollRate,
		match:    match,
		exclude:  DefaultExclude,
		queue:    q,
		log:      log.With().Str("cat", "input").Logger(),
		listPorts: func() []drivers.In {
			return gomidi.GetInPorts()
		},
	}
	dm.open = func(id string, port drivers.In) (*Input, error) {
		return OpenInput(id, port, dm.queue, dm.log)
	}
	return dm
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Inputs returns the IDs of open inputs, sorted
func (dm *DeviceManager) Inputs() []string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	ids := make([]string, 0, len(dm.inputs))
	for id := range dm.inputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	// CoreMIDI can hang while enumerating
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- dm.listPorts()
	}()

	var ports []drivers.In
	select {
	case ports = <-ch:
	case <-time.After(3 * time.Second):
		dm.log.Warn().Msg("port enumeration timed out, skipping scan")
		return
	}

	dm.reconcile(ports)
}

// reconcile opens newly seen matching ports and closes vanished ones
func (dm *DeviceManager) reconcile(ports []drivers.In) {
	seen := make(map[string]bool)

	for _, port := range ports {
		id := port.String()
		if !dm.matches(id) {
			continue
		}
		seen[id] = true

		dm.mu.RLock()
		_, exists := dm.inputs[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		in, err := dm.open(id, port)
		if err != nil {
			dm.log.Warn().Err(err).Str("port", id).Msg("could not open input")
			continue
		}

		dm.mu.Lock()
		dm.inputs[id] = in
		n := len(dm.inputs)
		dm.mu.Unlock()

		dm.emit(DeviceEvent{Type: DeviceConnected, ID: id, Open: n})
	}

	dm.mu.Lock()
	var gone []string
	for id := range dm.inputs {
		if !seen[id] {
			gone = append(gone, id)
		}
	}
	sort.Strings(gone)
	for _, id := range gone {
		dm.inputs[id].Close()
		delete(dm.inputs, id)
	}
	n := len(dm.inputs)
	dm.mu.Unlock()

	for _, id := range gone {
		dm.emit(DeviceEvent{Type: DeviceDisconnected, ID: id, Open: n})
	}
}

func (dm *DeviceManager) emit(ev DeviceEvent) {
	dm.log.Info().Str("port", ev.ID).Int("open", ev.Open).Msg("device " + ev.Type.String())
	select {
	case dm.events <- ev:
	default:
		dm.log.Warn().Str("port", ev.ID).Msg("device event dropped, nobody listening")
	}
}

// SetExclude replaces the excluded name patterns. Call before Run.
func (dm *DeviceManager) SetExclude(patterns []string) {
	dm.mu.Lock()
	dm.exclude = patterns
	dm.mu.Unlock()
}

func (dm *DeviceManager) matches(name string) bool {
	dm.mu.RLock()
	exclude := dm.exclude
	dm.mu.RUnlock()
	return MatchPort(name, dm.match, exclude)
}

// MatchPort reports whether an input port is opened: its name contains match
// (any name when match is empty) and none of exclude. Case is ignored.
func MatchPort(name, match string, exclude []string) bool {
	name = strings.ToLower(name)
	for _, ex := range exclude {
		if ex != "" && strings.Contains(name, strings.ToLower(ex)) {
			return false
		}
	}
	return match == "" || strings.Contains(name, strings.ToLower(match))
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, in := range dm.inputs {
		in.Close()
	}
	dm.inputs = make(map[string]*Input)
}
