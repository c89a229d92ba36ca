// ABOUTME: HTTP control surface for the noise session
// ABOUTME: Serves the control page, endpoint selection, and start/stop routes
package server

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/noisebox/noisebox-go/internal/audio"
	"github.com/noisebox/noisebox-go/internal/discovery"
	"github.com/noisebox/noisebox-go/internal/noise"
)

//go:embed static/index.html
var indexHTML []byte

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Debug      bool
	UseTUI     bool
}

// Server exposes the noise session over HTTP. When the audio subsystem
// could not initialize at all, session and registry are nil and every
// audio route degrades to a fixed error response instead of crashing.
type Server struct {
	config   Config
	serverID string

	mux        *http.ServeMux
	httpServer *http.Server
	upgrader   websocket.Upgrader

	session  *noise.Session
	registry *audio.Registry

	mdnsManager *discovery.Manager

	tui       *ServerTUI
	startTime time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a server around the given session and registry. Both may be
// nil when the audio subsystem failed to initialize.
func New(config Config, session *noise.Session, registry *audio.Registry) *Server {
	return &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Local-network control surface, same policy as the
				// original web UI: accept everything.
				return true
			},
		},
		session:   session,
		registry:  registry,
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}
}

// registerRoutes wires the control surface onto the mux.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/audio/list", s.handleEndpointList)
	s.mux.HandleFunc("/audio/select", s.handleEndpointSelect)
	s.mux.HandleFunc("/audio/whitenoise", s.handleNoiseStart)
	s.mux.HandleFunc("/audio/whitenoise/stop", s.handleNoiseStop)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/ws", s.handleStatusSocket)
}

// Start runs the server until Stop is called or the listener fails.
func (s *Server) Start() error {
	var tuiLoopDone chan struct{}
	if s.config.UseTUI {
		s.tui = NewServerTUI()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.config.Name, s.config.Port); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()

		tuiLoopDone = make(chan struct{})
		go func() {
			defer close(tuiLoopDone)
			s.tuiUpdateLoop()
		}()
	}

	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	s.registerRoutes()

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("Control server listening on %s", addr)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	// Stop background loops before the TUI tears down its channels.
	s.Stop()
	if s.tui != nil {
		<-tuiLoopDone
		s.tui.Stop()
	}

	// The session is forced idle before the process exits.
	if s.session != nil {
		s.session.Stop()
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// handleIndex serves the embedded control page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

// tuiUpdateLoop pushes session snapshots to the TUI.
func (s *Server) tuiUpdateLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.tui.Update(s.serverStatus())
		}
	}
}

// serverStatus collects the state shown in the TUI.
func (s *Server) serverStatus() ServerStatus {
	status := ServerStatus{
		Name:   s.config.Name,
		Port:   s.config.Port,
		Uptime: time.Since(s.startTime),
	}

	if s.session == nil {
		status.Session = "audio unavailable"
		return status
	}

	snap := s.session.Snapshot()
	status.Session = snap.Status.String()
	if snap.Status == noise.Active {
		status.Detail = fmt.Sprintf("%dHz, %dch, amp %.2f", snap.Config.SampleRate, snap.Config.Channels, snap.Config.Amplitude)
		if !snap.Deadline.IsZero() {
			status.Remaining = time.Until(snap.Deadline).Round(100 * time.Millisecond)
		}
	}

	if s.registry != nil {
		if eps, err := s.registry.Endpoints(); err == nil {
			selected := s.registry.Selected()
			for _, ep := range eps {
				name := ep.Name
				if ep.Index == selected {
					name = "* " + name
				}
				status.Endpoints = append(status.Endpoints, name)
			}
		}
	}

	return status
}
