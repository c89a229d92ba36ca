// ABOUTME: Endpoint registry for playback device selection
// ABOUTME: Retains the caller-selected endpoint ordinal between enumerations
package audio

import "sync"

// Registry enumerates playback endpoints and remembers which ordinal the
// caller selected. Selection is stored as-is, without validation against
// the current enumeration; the bounds check happens when a device is
// opened, where a stale or out-of-range ordinal falls back to the
// subsystem default.
type Registry struct {
	engine   Engine
	mu       sync.Mutex
	selected int
}

// NewRegistry creates a registry with no endpoint selected.
func NewRegistry(engine Engine) *Registry {
	return &Registry{
		engine:   engine,
		selected: UseDefaultEndpoint,
	}
}

// Endpoints returns a fresh enumeration snapshot.
func (r *Registry) Endpoints() ([]Endpoint, error) {
	return r.engine.Endpoints()
}

// Select stores the given ordinal for later device creation.
func (r *Registry) Select(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = index
}

// Selected returns the stored ordinal, or UseDefaultEndpoint if none was set.
func (r *Registry) Selected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}
