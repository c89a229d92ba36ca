// ABOUTME: Audio subsystem type definitions
// ABOUTME: Defines playback endpoints, stream config, and the engine/device contracts
package audio

import "errors"

// Sentinel errors for the audio subsystem. Engines wrap the underlying
// backend failure so callers can still match with errors.Is.
var (
	ErrEnumeration = errors.New("failed to enumerate playback endpoints")
	ErrDeviceInit  = errors.New("failed to initialize playback device")
	ErrDeviceStart = errors.New("failed to start playback device")
)

// UseDefaultEndpoint selects the subsystem's default playback device.
const UseDefaultEndpoint = -1

// Endpoint describes one playback destination from a single enumeration.
// Ordinals are only meaningful relative to that enumeration; a later call
// may renumber devices.
type Endpoint struct {
	Index     int
	Name      string
	IsDefault bool
}

// StreamConfig describes the interleaved float32 stream a device plays.
type StreamConfig struct {
	SampleRate uint32
	Channels   uint32
}

// DataCallback fills out with interleaved float32 little-endian samples.
// It runs on the audio subsystem's real-time thread: it must not block,
// allocate, or take locks.
type DataCallback func(out []byte, frames uint32)

// Device is a live playback device handle.
type Device interface {
	Start() error
	Stop() error
	Uninit()
}

// Engine abstracts the platform audio subsystem.
type Engine interface {
	// Endpoints returns a fresh enumeration of playback endpoints.
	Endpoints() ([]Endpoint, error)

	// Open creates (but does not start) a playback device bound to the
	// given endpoint ordinal. An ordinal that is out of range for the
	// current enumeration (including UseDefaultEndpoint) binds to the
	// subsystem default device.
	Open(cfg StreamConfig, endpoint int, cb DataCallback) (Device, error)

	Close() error
}
