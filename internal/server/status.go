// ABOUTME: Session status reporting over JSON and websocket
// ABOUTME: Serves point-in-time snapshots and a periodic push stream
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/noisebox/noisebox-go/internal/noise"
	"github.com/noisebox/noisebox-go/internal/version"
)

// statusPushInterval is how often the websocket stream pushes a snapshot.
const statusPushInterval = 500 * time.Millisecond

type statusResponse struct {
	Server           string  `json:"server"`
	ID               string  `json:"id"`
	Version          string  `json:"version"`
	UptimeSeconds    int64   `json:"uptime_s"`
	Status           string  `json:"status"`
	SampleRate       uint32  `json:"rate,omitempty"`
	Channels         uint32  `json:"channels,omitempty"`
	Amplitude        float32 `json:"amp,omitempty"`
	RemainingMs      int64   `json:"remaining_ms,omitempty"`
	SelectedEndpoint *int    `json:"selected_endpoint,omitempty"`
}

// statusSnapshot builds the JSON view of the current session state.
func (s *Server) statusSnapshot() statusResponse {
	resp := statusResponse{
		Server:        s.config.Name,
		ID:            s.serverID,
		Version:       version.Version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}

	if s.session == nil {
		resp.Status = "unavailable"
		return resp
	}

	snap := s.session.Snapshot()
	resp.Status = snap.Status.String()

	if snap.Status == noise.Active {
		resp.SampleRate = snap.Config.SampleRate
		resp.Channels = snap.Config.Channels
		resp.Amplitude = snap.Config.Amplitude
		if !snap.Deadline.IsZero() {
			if remaining := time.Until(snap.Deadline).Milliseconds(); remaining > 0 {
				resp.RemainingMs = remaining
			}
		}
	}

	if s.registry != nil {
		if selected := s.registry.Selected(); selected >= 0 {
			resp.SelectedEndpoint = &selected
		}
	}

	return resp
}

// handleStatus returns one snapshot as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.statusSnapshot()); err != nil {
		log.Printf("Status encode error: %v", err)
	}
}

// handleStatusSocket streams snapshots over a websocket until the client
// disconnects or the server shuts down.
func (s *Server) handleStatusSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.config.Debug {
		log.Printf("[DEBUG] Status socket connected from %s", r.RemoteAddr)
	}

	// Drain reads so we notice the peer going away.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-clientGone:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.statusSnapshot()); err != nil {
				if s.config.Debug {
					log.Printf("[DEBUG] Status socket write error: %v", err)
				}
				return
			}
		}
	}
}
