// ABOUTME: HTTP handlers for endpoint listing, selection, and noise control
// ABOUTME: Accepts the original htmx control page's routes and JSON bodies
package server

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/noisebox/noisebox-go/internal/noise"
)

const (
	contextInitFailedHTML = `<div id="audio-list"><em>Audio context init failed</em></div>`
	enumerationFailedHTML = `<div id="audio-list"><em>Failed to enumerate devices</em></div>`
	startFailedHTML       = `<small>Failed to start noise.</small>`
	stoppedHTML           = `<small>White noise stopped.</small>`

	// Request bodies are tiny JSON objects; anything bigger is abuse.
	maxBodyBytes = 4096
)

// handleEndpointList renders the playback endpoint list fragment.
func (s *Server) handleEndpointList(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, s.renderEndpointList())
}

// handleEndpointSelect stores the requested endpoint ordinal and re-renders
// the list. The ordinal is stored without validation; a malformed index
// degrades to "no selection", matching the original UI.
func (s *Server) handleEndpointSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		index = -1
	}

	if s.registry != nil {
		s.registry.Select(index)
		if s.config.Debug {
			log.Printf("[DEBUG] Selected playback endpoint %d", index)
		}
	}

	writeHTML(w, s.renderEndpointList())
}

// handleNoiseStart starts (or reconfigures) noise playback from an
// optional JSON body. Missing or non-numeric fields fall back to the
// defaults; out-of-range values are clamped, never rejected.
func (s *Server) handleNoiseStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.session == nil {
		writeHTML(w, startFailedHTML)
		return
	}

	cfg := noise.DefaultConfig()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err == nil && len(body) > 0 {
		// Per-field fallback: a field that is absent or has the wrong
		// type keeps its default while the others still apply.
		var fields map[string]any
		if err := json.Unmarshal(body, &fields); err == nil {
			if v, ok := fields["rate"].(float64); ok {
				cfg.SampleRate = jsonUint32(v)
			}
			if v, ok := fields["channels"].(float64); ok {
				cfg.Channels = jsonUint32(v)
			}
			if v, ok := fields["duration_ms"].(float64); ok {
				cfg.Duration = time.Duration(v) * time.Millisecond
			}
			if v, ok := fields["amp"].(float64); ok {
				cfg.Amplitude = float32(v)
			}
		}
	}

	if err := s.session.Start(cfg); err != nil {
		writeHTML(w, startFailedHTML)
		return
	}

	applied := s.session.Snapshot().Config
	if applied.Duration > 0 {
		writeHTML(w, fmt.Sprintf("<small>White noise started for %d ms</small>", applied.Duration.Milliseconds()))
	} else {
		writeHTML(w, "<small>White noise started until stopped</small>")
	}
}

// handleNoiseStop stops playback. Always succeeds from the caller's
// perspective; stopping an idle session is a no-op.
func (s *Server) handleNoiseStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.session != nil {
		s.session.Stop()
	}
	writeHTML(w, stoppedHTML)
}

// renderEndpointList builds the htmx fragment for the endpoint list, with
// the currently selected ordinal marked.
func (s *Server) renderEndpointList() string {
	if s.registry == nil {
		return contextInitFailedHTML
	}

	endpoints, err := s.registry.Endpoints()
	if err != nil {
		return enumerationFailedHTML
	}

	selected := s.registry.Selected()

	var b strings.Builder
	b.WriteString(`<div id="audio-list"><ul>`)
	for _, ep := range endpoints {
		b.WriteString("<li>")
		if ep.Index == selected {
			b.WriteString("<strong>")
		}
		b.WriteString(html.EscapeString(ep.Name))
		if ep.Index == selected {
			b.WriteString("</strong>")
		}
		fmt.Fprintf(&b, ` <button hx-post="/audio/select?index=%d" hx-target="#audio-list" hx-swap="outerHTML">Select</button>`, ep.Index)
		b.WriteString("</li>")
	}
	b.WriteString("</ul></div>")
	return b.String()
}

// jsonUint32 converts a JSON number to uint32. Conversion of a negative
// or oversized float is not defined in Go, so pin the range first; the
// session's clamping then maps 0 to its usual fallback.
func jsonUint32(v float64) uint32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, body)
}
