// ABOUTME: Tests for the noise session state machine
// ABOUTME: Covers lifecycle transitions, device ownership, clamping, and auto-stop
package noise

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/noisebox/noisebox-go/internal/audio"
)

// stubEngine implements audio.Engine and counts live device handles so
// tests can assert that at most one device exists at any instant.
type stubEngine struct {
	mu           sync.Mutex
	endpoints    []audio.Endpoint
	enumerateErr error
	openErr      error
	startErr     error

	opened       int
	live         int
	maxLive      int
	lastEndpoint int
}

func (e *stubEngine) Endpoints() ([]audio.Endpoint, error) {
	if e.enumerateErr != nil {
		return nil, e.enumerateErr
	}
	return e.endpoints, nil
}

func (e *stubEngine) Open(cfg audio.StreamConfig, endpoint int, cb audio.DataCallback) (audio.Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.openErr != nil {
		return nil, e.openErr
	}

	e.opened++
	e.live++
	if e.live > e.maxLive {
		e.maxLive = e.live
	}
	e.lastEndpoint = endpoint

	return &stubDevice{engine: e, startErr: e.startErr}, nil
}

func (e *stubEngine) Close() error { return nil }

func (e *stubEngine) stats() (opened, live, maxLive int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opened, e.live, e.maxLive
}

type stubDevice struct {
	engine   *stubEngine
	startErr error
	started  bool
}

func (d *stubDevice) Start() error {
	if d.startErr != nil {
		return d.startErr
	}
	d.started = true
	return nil
}

func (d *stubDevice) Stop() error {
	d.started = false
	return nil
}

func (d *stubDevice) Uninit() {
	d.engine.mu.Lock()
	d.engine.live--
	d.engine.mu.Unlock()
}

func newTestSession(engine *stubEngine) *Session {
	return NewSession(engine, audio.NewRegistry(engine))
}

func TestStartThenStopReturnsToIdle(t *testing.T) {
	engine := &stubEngine{}
	session := newTestSession(engine)
	defer session.Close()

	if err := session.Start(DefaultConfig()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if session.Status() != Active {
		t.Fatalf("expected Active, got %v", session.Status())
	}

	session.Stop()

	if session.Status() != Idle {
		t.Errorf("expected Idle after stop, got %v", session.Status())
	}
	if _, live, _ := engine.stats(); live != 0 {
		t.Errorf("expected no live device after stop, got %d", live)
	}
}

func TestRestartNeverOverlapsDevices(t *testing.T) {
	engine := &stubEngine{}
	session := newTestSession(engine)
	defer session.Close()

	for i := 0; i < 5; i++ {
		if err := session.Start(DefaultConfig()); err != nil {
			t.Fatalf("start %d failed: %v", i, err)
		}
	}

	opened, live, maxLive := engine.stats()
	if opened != 5 {
		t.Errorf("expected 5 devices created, got %d", opened)
	}
	if maxLive != 1 {
		t.Errorf("expected at most 1 live device, got %d", maxLive)
	}
	if live != 1 {
		t.Errorf("expected 1 live device while active, got %d", live)
	}

	session.Stop()
	if _, live, _ := engine.stats(); live != 0 {
		t.Errorf("expected 0 live devices after stop, got %d", live)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	engine := &stubEngine{}
	session := newTestSession(engine)
	defer session.Close()

	if err := session.Start(DefaultConfig()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	session.Stop()
	session.Stop()

	if session.Status() != Idle {
		t.Errorf("expected Idle, got %v", session.Status())
	}
	if _, live, _ := engine.stats(); live != 0 {
		t.Errorf("expected 0 live devices, got %d", live)
	}
}

func TestStopWhileIdleIsNoOp(t *testing.T) {
	session := newTestSession(&stubEngine{})
	defer session.Close()

	session.Stop()

	if session.Status() != Idle {
		t.Errorf("expected Idle, got %v", session.Status())
	}
}

func TestStartFailureLeavesNoPartialState(t *testing.T) {
	engine := &stubEngine{openErr: audio.ErrDeviceInit}
	session := newTestSession(engine)
	defer session.Close()

	err := session.Start(DefaultConfig())
	if !errors.Is(err, audio.ErrDeviceInit) {
		t.Fatalf("expected ErrDeviceInit, got %v", err)
	}
	if session.Status() != Idle {
		t.Errorf("expected Idle after failed start, got %v", session.Status())
	}
}

func TestDeviceStartFailureReleasesDevice(t *testing.T) {
	engine := &stubEngine{startErr: audio.ErrDeviceStart}
	session := newTestSession(engine)
	defer session.Close()

	err := session.Start(DefaultConfig())
	if !errors.Is(err, audio.ErrDeviceStart) {
		t.Fatalf("expected ErrDeviceStart, got %v", err)
	}
	if session.Status() != Idle {
		t.Errorf("expected Idle, got %v", session.Status())
	}
	if _, live, _ := engine.stats(); live != 0 {
		t.Errorf("expected failed device to be released, got %d live", live)
	}
}

func TestAutoStopAfterDeadline(t *testing.T) {
	engine := &stubEngine{}
	session := newTestSession(engine)
	defer session.Close()

	cfg := DefaultConfig()
	cfg.Duration = 150 * time.Millisecond

	if err := session.Start(cfg); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// The monitor polls every 50ms, so the session must be idle well
	// within 150ms + a few poll intervals.
	deadline := time.Now().Add(time.Second)
	for session.Status() == Active {
		if time.Now().After(deadline) {
			t.Fatal("session did not auto-stop after deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, live, _ := engine.stats(); live != 0 {
		t.Errorf("expected device released after auto-stop, got %d live", live)
	}
}

func TestUnboundedSessionKeepsPlaying(t *testing.T) {
	engine := &stubEngine{}
	session := newTestSession(engine)
	defer session.Close()

	cfg := DefaultConfig()
	cfg.Duration = 0

	if err := session.Start(cfg); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	if session.Status() != Active {
		t.Errorf("expected session still Active without a deadline, got %v", session.Status())
	}
	if snap := session.Snapshot(); !snap.Deadline.IsZero() {
		t.Errorf("expected no deadline armed, got %v", snap.Deadline)
	}
}

func TestManualStopCancelsDeadline(t *testing.T) {
	engine := &stubEngine{}
	session := newTestSession(engine)
	defer session.Close()

	cfg := DefaultConfig()
	cfg.Duration = time.Hour

	if err := session.Start(cfg); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	session.Stop()

	if snap := session.Snapshot(); !snap.Deadline.IsZero() {
		t.Errorf("expected deadline cleared by stop, got %v", snap.Deadline)
	}
}

func TestRestartWhileActiveRearmsDeadline(t *testing.T) {
	engine := &stubEngine{}
	session := newTestSession(engine)
	defer session.Close()

	cfg := DefaultConfig()
	cfg.Duration = time.Hour
	if err := session.Start(cfg); err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	cfg.Duration = 150 * time.Millisecond
	if err := session.Start(cfg); err != nil {
		t.Fatalf("second start failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for session.Status() == Active {
		if time.Now().After(deadline) {
			t.Fatal("reconfigured session did not auto-stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartUsesSelectedEndpoint(t *testing.T) {
	engine := &stubEngine{
		endpoints: []audio.Endpoint{
			{Index: 0, Name: "Speakers", IsDefault: true},
			{Index: 1, Name: "Headphones"},
		},
	}
	registry := audio.NewRegistry(engine)
	session := NewSession(engine, registry)
	defer session.Close()

	registry.Select(1)

	if err := session.Start(DefaultConfig()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if engine.lastEndpoint != 1 {
		t.Errorf("expected endpoint 1 passed to engine, got %d", engine.lastEndpoint)
	}
}

func TestStartSucceedsWithStaleEndpointOrdinal(t *testing.T) {
	// An ordinal that no longer exists in the enumeration must not
	// prevent playback; the engine falls back to the default device.
	engine := &stubEngine{
		endpoints: []audio.Endpoint{{Index: 0, Name: "Speakers", IsDefault: true}},
	}
	registry := audio.NewRegistry(engine)
	session := NewSession(engine, registry)
	defer session.Close()

	registry.Select(7)

	if err := session.Start(DefaultConfig()); err != nil {
		t.Fatalf("start with stale ordinal failed: %v", err)
	}
	if session.Status() != Active {
		t.Errorf("expected Active, got %v", session.Status())
	}
}

func TestConfigClamping(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "low sample rate clamped up",
			in:   Config{SampleRate: 4000, Channels: 2, Amplitude: 0.2},
			want: Config{SampleRate: 8000, Channels: 2, Amplitude: 0.2},
		},
		{
			name: "zero channels fall back to default",
			in:   Config{SampleRate: 48000, Channels: 0, Amplitude: 0.2},
			want: Config{SampleRate: 48000, Channels: 2, Amplitude: 0.2},
		},
		{
			name: "too many channels fall back to default",
			in:   Config{SampleRate: 48000, Channels: 9, Amplitude: 0.2},
			want: Config{SampleRate: 48000, Channels: 2, Amplitude: 0.2},
		},
		{
			name: "negative amplitude clamped to silence",
			in:   Config{SampleRate: 48000, Channels: 2, Amplitude: -0.5},
			want: Config{SampleRate: 48000, Channels: 2, Amplitude: 0},
		},
		{
			name: "overdriven amplitude clamped to full scale",
			in:   Config{SampleRate: 48000, Channels: 2, Amplitude: 1.7},
			want: Config{SampleRate: 48000, Channels: 2, Amplitude: 1.0},
		},
		{
			name: "negative duration treated as unbounded",
			in:   Config{SampleRate: 48000, Channels: 2, Amplitude: 0.2, Duration: -time.Second},
			want: Config{SampleRate: 48000, Channels: 2, Amplitude: 0.2, Duration: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Clamped(); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestClampedConfigAppliedOnStart(t *testing.T) {
	engine := &stubEngine{}
	session := newTestSession(engine)
	defer session.Close()

	if err := session.Start(Config{SampleRate: 4000, Channels: 9, Amplitude: 1.7}); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	snap := session.Snapshot()
	if snap.Config.SampleRate != 8000 {
		t.Errorf("expected sample rate 8000, got %d", snap.Config.SampleRate)
	}
	if snap.Config.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", snap.Config.Channels)
	}
	if snap.Config.Amplitude != 1.0 {
		t.Errorf("expected amplitude 1.0, got %v", snap.Config.Amplitude)
	}
}
