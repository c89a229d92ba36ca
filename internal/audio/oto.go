// ABOUTME: Oto-based audio engine implementation
// ABOUTME: Fallback playback backend without endpoint enumeration support
package audio

import (
	"fmt"

	"github.com/ebitengine/oto/v3"
)

// OtoEngine is a fallback Engine implementation backed by oto. Oto cannot
// enumerate or address individual output devices, so it exposes a single
// synthetic "system default" endpoint and ignores endpoint ordinals.
type OtoEngine struct {
	ctx        *oto.Context
	sampleRate uint32
	channels   uint32
}

// NewOtoEngine creates an oto engine. The underlying context is created
// lazily on the first Open, because oto allows only one context per process
// and fixes the stream format at creation time.
func NewOtoEngine() *OtoEngine {
	return &OtoEngine{}
}

// Endpoints returns the single default endpoint oto can play to.
func (e *OtoEngine) Endpoints() ([]Endpoint, error) {
	return []Endpoint{{Index: 0, Name: "System default", IsDefault: true}}, nil
}

// Open creates a playback device feeding from the callback. The endpoint
// ordinal is ignored; oto always plays to the system default device.
func (e *OtoEngine) Open(cfg StreamConfig, endpoint int, cb DataCallback) (Device, error) {
	if e.ctx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   int(cfg.SampleRate),
			ChannelCount: int(cfg.Channels),
			Format:       oto.FormatFloat32LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeviceInit, err)
		}
		<-readyChan

		e.ctx = ctx
		e.sampleRate = cfg.SampleRate
		e.channels = cfg.Channels
	} else if e.sampleRate != cfg.SampleRate || e.channels != cfg.Channels {
		// oto fixes the stream format at context creation and cannot
		// reinitialize. Playing through the old context with a new
		// channel count would break the callback's byte framing, so a
		// mismatched reopen fails and the caller stays stopped.
		return nil, fmt.Errorf("%w: oto context is fixed at %dHz %dch, cannot reopen at %dHz %dch",
			ErrDeviceInit, e.sampleRate, e.channels, cfg.SampleRate, cfg.Channels)
	}

	player := e.ctx.NewPlayer(&callbackReader{cb: cb, channels: e.channels})
	return &otoDevice{player: player}, nil
}

// Close is a no-op: oto has no context teardown.
func (e *OtoEngine) Close() error {
	return nil
}

// callbackReader bridges the pull-based oto player to the fill callback.
type callbackReader struct {
	cb       DataCallback
	channels uint32
}

func (r *callbackReader) Read(p []byte) (int, error) {
	frameBytes := int(r.channels) * 4
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	n := frames * frameBytes
	r.cb(p[:n], uint32(frames))
	return n, nil
}

type otoDevice struct {
	player *oto.Player
}

func (d *otoDevice) Start() error {
	d.player.Play()
	if !d.player.IsPlaying() {
		return fmt.Errorf("%w: player did not enter playing state", ErrDeviceStart)
	}
	return nil
}

func (d *otoDevice) Stop() error {
	d.player.Pause()
	return nil
}

func (d *otoDevice) Uninit() {
	_ = d.player.Close()
}
