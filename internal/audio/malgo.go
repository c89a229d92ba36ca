// ABOUTME: Malgo-based audio engine implementation
// ABOUTME: Uses miniaudio via malgo for endpoint enumeration and f32 playback devices
package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// MalgoEngine is the primary Engine implementation, backed by miniaudio.
type MalgoEngine struct {
	ctx *malgo.AllocatedContext
}

// NewMalgoEngine initializes a miniaudio context.
func NewMalgoEngine() (*MalgoEngine, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	return &MalgoEngine{ctx: ctx}, nil
}

// Endpoints enumerates the playback devices known to the subsystem.
func (e *MalgoEngine) Endpoints() ([]Endpoint, error) {
	infos, err := e.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEnumeration, err)
	}

	endpoints := make([]Endpoint, len(infos))
	for i, info := range infos {
		endpoints[i] = Endpoint{
			Index:     i,
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		}
	}
	return endpoints, nil
}

// Open creates a playback device for the given stream config. The endpoint
// ordinal is checked against a fresh enumeration; if it is out of range the
// device binds to the subsystem default instead.
func (e *MalgoEngine) Open(cfg StreamConfig, endpoint int, cb DataCallback) (Device, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = cfg.Channels
	deviceConfig.SampleRate = cfg.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	// Re-validate the stored ordinal at the point of use. Stale ordinals
	// from an earlier enumeration are not reconciled.
	var endpointID malgo.DeviceID
	if endpoint >= 0 {
		if infos, err := e.ctx.Devices(malgo.Playback); err == nil && endpoint < len(infos) {
			endpointID = infos[endpoint].ID
			deviceConfig.Playback.DeviceID = endpointID.Pointer()
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSamples, _ []byte, frameCount uint32) {
			cb(pOutputSamples, frameCount)
		},
	}

	device, err := malgo.InitDevice(e.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceInit, err)
	}

	return &malgoDevice{device: device}, nil
}

// Close releases the miniaudio context.
func (e *MalgoEngine) Close() error {
	if err := e.ctx.Uninit(); err != nil {
		return fmt.Errorf("failed to uninit audio context: %w", err)
	}
	e.ctx.Free()
	return nil
}

type malgoDevice struct {
	device *malgo.Device
}

func (d *malgoDevice) Start() error {
	if err := d.device.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceStart, err)
	}
	return nil
}

func (d *malgoDevice) Stop() error {
	return d.device.Stop()
}

func (d *malgoDevice) Uninit() {
	d.device.Uninit()
}
