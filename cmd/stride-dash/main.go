// stride-dash runs a simulated session behind the live web dashboard:
// run status and guidance events stream to the browser over websockets.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/strideworks/go-stride/internal/config"
	"github.com/strideworks/go-stride/internal/log"
	"github.com/strideworks/go-stride/pkg/announce"
	"github.com/strideworks/go-stride/pkg/cadence"
	"github.com/strideworks/go-stride/pkg/location"
	"github.com/strideworks/go-stride/pkg/nav"
	"github.com/strideworks/go-stride/pkg/session"
	"github.com/strideworks/go-stride/pkg/sim"
	"github.com/strideworks/go-stride/pkg/tts"
	"github.com/strideworks/go-stride/pkg/web"
)

func main() {
	godotenv.Load()

	port := flag.String("port", config.DashboardPort(), "Dashboard HTTP port")
	speed := flag.Float64("speed", 3.0, "Simulated running speed in m/s")
	spm := flag.Float64("cadence", 170, "Simulated cadence in steps per minute")
	flag.Parse()

	log.Init(config.LogLevel())
	logger := log.L()

	route, path, total := demoRoute()

	gps := &sim.GPSProvider{Path: path, Speed: *speed, Tick: time.Second}
	monitor := location.NewMonitor(gps, location.DefaultConfig())

	estimator := cadence.NewEstimator(&sim.GaitProvider{TargetSPM: *spm}, nil)

	navigator := nav.New(nav.DefaultConfig())

	speaker := &announce.LogSpeaker{Logger: log.With("component", "speaker")}
	var synth announce.Synthesizer
	if url := config.SpeechServiceURL(); url != "" {
		provider, err := newSpeechProvider(url)
		if err != nil {
			log.Warn("speech service misconfigured, using device voice", "error", err)
		} else {
			synth = provider
		}
	}
	queue := announce.NewQueue(synth, &sim.TimedPlayer{Duration: time.Second}, speaker)
	defer queue.Close()

	s := session.New(monitor, navigator, queue, estimator, session.DefaultConfig())
	s.SetRoute(route, total)

	server := web.NewServer(*port, s.Snapshot, navigator.RemainingWaypoints, logger)
	server.StartAsync()
	defer server.Shutdown()

	if err := s.Start(func(snap session.Snapshot) {
		server.PublishStatus(snap)
		if snap.OffRoute {
			server.AddEvent("nav", "off route, recalculating")
		}
	}); err != nil {
		logger.Error("session start failed", "error", err)
		return
	}
	defer s.Stop()

	server.AddEvent("session", fmt.Sprintf("run started, %d waypoint route", len(route)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()
}

// newSpeechProvider builds the synthesis provider for the configured speech
// service. With SPEECH_STREAMING set, the websocket streaming endpoint is
// tried first and the HTTP endpoint serves as fallback.
func newSpeechProvider(url string) (tts.Provider, error) {
	opts := []tts.Option{
		tts.WithBaseURL(url),
		tts.WithAPIKey(config.SpeechAPIKey()),
		tts.WithVoice(config.SpeechVoice()),
	}

	remote, err := tts.NewRemote(opts...)
	if err != nil {
		return nil, err
	}
	if !config.SpeechStreaming() {
		return remote, nil
	}

	stream, err := tts.NewStreamRemote(opts...)
	if err != nil {
		return nil, err
	}
	return tts.NewChain(stream, remote)
}

// demoRoute is a short rectangular course with four turns.
func demoRoute() ([]nav.Waypoint, []sim.Point, float64) {
	const (
		baseLat = 52.5200
		baseLng = 13.4050
		latM    = 1.0 / 111194.9 // degrees per meter, north
		lngM    = 1.0 / 68450.0  // degrees per meter, east at 52N
	)

	waypoints := []nav.Waypoint{
		{Latitude: baseLat + 400*latM, Longitude: baseLng, Instruction: "turn right onto the river path"},
		{Latitude: baseLat + 400*latM, Longitude: baseLng + 300*lngM, Instruction: "turn right at the bridge"},
		{Latitude: baseLat, Longitude: baseLng + 300*lngM, Instruction: "turn right onto the home stretch"},
		{Latitude: baseLat, Longitude: baseLng, Instruction: "you have arrived at your starting point"},
	}

	path := []sim.Point{
		{Latitude: baseLat, Longitude: baseLng},
		{Latitude: baseLat + 400*latM, Longitude: baseLng},
		{Latitude: baseLat + 400*latM, Longitude: baseLng + 300*lngM},
		{Latitude: baseLat, Longitude: baseLng + 300*lngM},
		{Latitude: baseLat, Longitude: baseLng},
	}

	return waypoints, path, 1400
}
