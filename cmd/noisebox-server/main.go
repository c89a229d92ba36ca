// ABOUTME: Entry point for the noisebox control server
// ABOUTME: Parses CLI flags and starts the HTTP control surface
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/noisebox/noisebox-go/internal/audio"
	"github.com/noisebox/noisebox-go/internal/noise"
	"github.com/noisebox/noisebox-go/internal/server"
)

var (
	port    = flag.Int("port", 8080, "Control server port")
	name    = flag.String("name", "", "Server friendly name (default: hostname-noisebox)")
	logFile = flag.String("log-file", "", "Log file path (default: stdout only)")
	debug   = flag.Bool("debug", false, "Enable debug logging")
	noMDNS  = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	useTUI  = flag.Bool("tui", false, "Show a terminal status display")
	backend = flag.String("backend", "malgo", "Audio backend: malgo or oto")
)

func main() {
	flag.Parse()

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer f.Close()

		if *useTUI {
			// TUI mode owns the terminal; log only to the file.
			log.SetOutput(f)
		} else {
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-noisebox", hostname)
	}

	log.Printf("Starting Noisebox Server: %s on port %d", serverName, *port)
	if *debug {
		log.Printf("Debug logging enabled")
	}

	// A failed subsystem init degrades the audio routes instead of
	// killing the control surface.
	var session *noise.Session
	var registry *audio.Registry

	engine, err := newEngine(*backend)
	if err != nil {
		log.Printf("Audio subsystem unavailable, running degraded: %v", err)
	} else {
		defer engine.Close()
		registry = audio.NewRegistry(engine)
		session = noise.NewSession(engine, registry)
		defer session.Close()
	}

	config := server.Config{
		Port:       *port,
		Name:       serverName,
		EnableMDNS: !*noMDNS,
		Debug:      *debug,
		UseTUI:     *useTUI,
	}

	srv := server.New(config, session, registry)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}

func newEngine(backend string) (audio.Engine, error) {
	switch backend {
	case "malgo":
		return audio.NewMalgoEngine()
	case "oto":
		return audio.NewOtoEngine(), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q (use malgo or oto)", backend)
	}
}
