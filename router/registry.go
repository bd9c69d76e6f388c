package router

import (
	"sync"

	"go-midibridge/midi"
)

// Registration is a registered source
type Registration struct {
	Source   midi.Source
	Name     string
	Enabled  bool
	Priority midi.Priority
}

// Registry tracks which sources may queue events. It is a fixed-size table
// indexed by source kind, so nothing here allocates after construction.
type Registry struct {
	mu    sync.RWMutex
	slots [midi.NumSources]slot
}

type slot struct {
	registered bool
	name       string
	enabled    bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds or replaces a source (last write wins). Invalid sources are ignored.
func (r *Registry) Register(src midi.Source, name string, enabled bool) {
	if !src.Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &r.slots[src]
	s.registered = true
	s.name = name
	s.enabled = enabled
}

// Unregister removes a source; unknown sources are a no-op
func (r *Registry) Unregister(src midi.Source) {
	if !src.Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[src] = slot{}
}

// SetEnabled toggles a registered source, reporting whether it was registered
func (r *Registry) SetEnabled(src midi.Source, enabled bool) bool {
	if !src.Valid() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &r.slots[src]
	if !s.registered {
		return false
	}
	s.enabled = enabled
	return true
}

// IsEnabled is false for unknown sources
func (r *Registry) IsEnabled(src midi.Source) bool {
	if !src.Valid() {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.slots[src]
	return s.registered && s.enabled
}

// List returns registrations in priority order
func (r *Registry) List() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Registration
	for _, src := range midi.Sources() {
		s := r.slots[src]
		if !s.registered {
			continue
		}
		out = append(out, Registration{
			Source:   src,
			Name:     s.name,
			Enabled:  s.enabled,
			Priority: src.Priority(),
		})
	}
	return out
}

// Clear unregisters everything
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = [midi.NumSources]slot{}
}
