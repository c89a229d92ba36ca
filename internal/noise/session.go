// ABOUTME: Noise playback session state machine and deadline monitor
// ABOUTME: Owns the live device handle; serializes control paths under one lock
package noise

import (
	"log"
	"sync"
	"time"

	"github.com/noisebox/noisebox-go/internal/audio"
)

// Defaults applied by the control surface when a field is absent.
const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
	DefaultAmplitude  = 0.2
	DefaultDuration   = 3 * time.Second

	// monitorInterval is the deadline poll period. The monitor never
	// checks faster than this, so auto-stop lands within one interval
	// of the armed deadline.
	monitorInterval = 50 * time.Millisecond
)

// Status is the session lifecycle state.
type Status int

const (
	Idle Status = iota
	Active
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Config holds the parameters of one playback session.
type Config struct {
	SampleRate uint32
	Channels   uint32
	Amplitude  float32
	Duration   time.Duration // 0 = play until stopped
}

// DefaultConfig returns the config used when the caller supplies nothing.
func DefaultConfig() Config {
	return Config{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		Amplitude:  DefaultAmplitude,
		Duration:   DefaultDuration,
	}
}

// Clamped returns a copy with every field forced into its valid range.
// Invalid input is never rejected, only clamped: availability wins over
// strict validation.
func (c Config) Clamped() Config {
	if c.SampleRate < 8000 {
		c.SampleRate = 8000
	}
	if c.Channels == 0 || c.Channels > 8 {
		c.Channels = DefaultChannels
	}
	if c.Amplitude < 0 {
		c.Amplitude = 0
	}
	if c.Amplitude > 1 {
		c.Amplitude = 1
	}
	if c.Duration < 0 {
		c.Duration = 0
	}
	return c
}

// Snapshot is a point-in-time copy of the session state for rendering.
type Snapshot struct {
	Status   Status
	Config   Config
	Deadline time.Time // zero when no auto-stop is armed
}

// Session is the single process-wide noise playback session. All state
// transitions happen under one mutex; the real-time callback never takes
// it and only touches the Generator handed to the device at start time.
type Session struct {
	engine   audio.Engine
	registry *audio.Registry

	mu       sync.Mutex
	status   Status
	config   Config
	device   audio.Device
	deadline time.Time

	monitorRunning bool
	done           chan struct{}
	closeOnce      sync.Once
}

// NewSession creates an idle session. It lives for the process lifetime.
func NewSession(engine audio.Engine, registry *audio.Registry) *Session {
	return &Session{
		engine:   engine,
		registry: registry,
		done:     make(chan struct{}),
	}
}

// Start begins playback with the given config, tearing down any previous
// device first so two devices are never live at once. On failure the
// session is left Idle with no device handle retained.
func (s *Session) Start(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	cfg = cfg.Clamped()

	// The generator is created fresh per device and handed to the
	// callback closure. Nothing else touches it until the device is
	// stopped again under this lock.
	gen := NewGenerator(DefaultSeed)
	amplitude := cfg.Amplitude
	channels := cfg.Channels

	device, err := s.engine.Open(
		audio.StreamConfig{SampleRate: cfg.SampleRate, Channels: cfg.Channels},
		s.registry.Selected(),
		func(out []byte, frames uint32) {
			gen.Fill(out, frames, channels, amplitude)
		},
	)
	if err != nil {
		return err
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return err
	}

	s.device = device
	s.config = cfg
	s.status = Active

	if cfg.Duration > 0 {
		s.deadline = time.Now().Add(cfg.Duration)
		s.ensureMonitorLocked()
	} else {
		s.deadline = time.Time{}
	}

	log.Printf("Noise session started: %dHz, %d channels, amp %.2f, duration %v",
		cfg.SampleRate, cfg.Channels, cfg.Amplitude, cfg.Duration)

	return nil
}

// Stop ends playback and releases the device. Safe to call when already
// idle; the second call is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// stopLocked releases the device and clears the deadline. Callers must
// hold s.mu.
func (s *Session) stopLocked() {
	if s.device != nil {
		if err := s.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		s.device.Uninit()
		s.device = nil
		log.Printf("Noise session stopped")
	}
	s.status = Idle
	s.deadline = time.Time{}
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status:   s.status,
		Config:   s.config,
		Deadline: s.deadline,
	}
}

// ensureMonitorLocked starts the deadline monitor goroutine if it is not
// already running. The monitor stays up for the session's lifetime; a
// second call is a no-op. Callers must hold s.mu.
func (s *Session) ensureMonitorLocked() {
	if s.monitorRunning {
		return
	}
	s.monitorRunning = true
	go s.monitorLoop()
}

// monitorLoop polls the armed deadline and runs the same stop path as
// Stop once it elapses. It composes safely with a manual Stop because
// both are serialized by s.mu and stopping twice is harmless.
func (s *Session) monitorLoop() {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if s.status == Active && !s.deadline.IsZero() && !time.Now().Before(s.deadline) {
			log.Printf("Noise session deadline elapsed, stopping")
			s.stopLocked()
		}
		s.mu.Unlock()
	}
}

// Close forces the session idle and shuts down the monitor. Used on
// process shutdown.
func (s *Session) Close() {
	s.Stop()
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
