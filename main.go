// ABOUTME: Entry point for the one-shot noisebox CLI player
// ABOUTME: Plays white noise on the selected endpoint for a fixed duration
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noisebox/noisebox-go/internal/audio"
	"github.com/noisebox/noisebox-go/internal/discovery"
	"github.com/noisebox/noisebox-go/internal/noise"
)

var (
	rate     = flag.Uint("rate", 48000, "Sample rate in Hz")
	channels = flag.Uint("channels", 2, "Channel count (1-8)")
	duration = flag.Int("duration", 5, "Seconds to play")
	amp      = flag.Float64("amp", 0.2, "Amplitude 0..1")
	endpoint = flag.Int("endpoint", -1, "Playback endpoint ordinal (-1 = system default)")
	backend  = flag.String("backend", "malgo", "Audio backend: malgo or oto")
	list     = flag.Bool("list", false, "List playback endpoints and exit")
	discover = flag.Bool("discover", false, "Browse for running noisebox servers and exit")
)

func main() {
	flag.Parse()

	if *discover {
		discoverServers()
		return
	}

	engine, err := newEngine(*backend)
	if err != nil {
		log.Fatalf("Failed to open audio subsystem: %v", err)
	}
	defer engine.Close()

	registry := audio.NewRegistry(engine)

	if *list {
		listEndpoints(registry)
		return
	}

	playSeconds := *duration
	if playSeconds <= 0 {
		playSeconds = 1
	}

	registry.Select(*endpoint)

	session := noise.NewSession(engine, registry)
	defer session.Close()

	cfg := noise.Config{
		SampleRate: uint32(*rate),
		Channels:   uint32(*channels),
		Amplitude:  float32(*amp),
		// The CLI sleeps for the requested time itself; no deadline.
		Duration: 0,
	}

	if err := session.Start(cfg); err != nil {
		log.Fatalf("Failed to start playback: %v", err)
	}

	applied := session.Snapshot().Config
	fmt.Printf("Playing white noise: rate=%d, channels=%d, duration=%d s, amp=%.2f\n",
		applied.SampleRate, applied.Channels, playSeconds, applied.Amplitude)

	time.Sleep(time.Duration(playSeconds) * time.Second)

	session.Stop()
	fmt.Println("Done.")
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

func listEndpoints(registry *audio.Registry) {
	endpoints, err := registry.Endpoints()
	if err != nil {
		log.Fatalf("Failed to enumerate endpoints: %v", err)
	}

	if len(endpoints) == 0 {
		fmt.Println("No playback endpoints found")
		return
	}

	for _, ep := range endpoints {
		marker := " "
		if ep.IsDefault {
			marker = "*"
		}
		fmt.Printf("%s %d: %s\n", marker, ep.Index, ep.Name)
	}
}

func discoverServers() {
	mgr := discovery.NewManager(discovery.Config{})
	defer mgr.Stop()

	found := make(chan struct{})
	count := 0
	go func() {
		defer close(found)
		for server := range mgr.Servers() {
			fmt.Printf("%s at http://%s:%d\n", server.Name, server.Host, server.Port)
			count++
		}
	}()

	if err := mgr.Browse(); err != nil {
		log.Fatalf("Discovery failed: %v", err)
	}
	<-found

	if count == 0 {
		fmt.Println("No noisebox servers found")
		os.Exit(1)
	}
}
