// stride-sim replays a synthetic run through the full session stack:
// simulated GPS and accelerometer, turn-by-turn guidance, and the
// announcement queue speaking through the log.
package main

import (
	"context"
	"flag"
	"log/slog"
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
)

func main() {
	godotenv.Load()

	speed := flag.Float64("speed", 3.0, "Simulated running speed in m/s")
	spm := flag.Float64("cadence", 170, "Simulated cadence in steps per minute")
	coachEvery := flag.Duration("coach-interval", 30*time.Second, "Coach summary interval")
	flag.Parse()

	log.Init(config.LogLevel())
	logger := log.L()

	s := buildSession(*speed, *spm, *coachEvery, logger)

	if err := s.Start(nil); err != nil {
		logger.Error("session start failed", "error", err)
		return
	}
	defer s.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Report progress until the user interrupts.
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.Snapshot()
			logger.Info("run progress",
				"distance_m", int(snap.DistanceMeters),
				"cadence_spm", int(snap.CadenceSPM),
				"next", snap.NextInstruction,
				"to_turn_m", int(snap.DistanceToTurn),
				"gps", snap.GPSStatus,
			)
		}
	}
}

func buildSession(speed, spm float64, coachEvery time.Duration, logger *slog.Logger) *session.Session {
	route, path, total := demoRoute()

	gps := &sim.GPSProvider{Path: path, Speed: speed, Tick: time.Second}
	monitor := location.NewMonitor(gps, location.DefaultConfig())

	motion := &sim.GaitProvider{TargetSPM: spm}
	estimator := cadence.NewEstimator(motion, nil)

	queue := buildQueue()

	navigator := nav.New(nav.DefaultConfig())

	cfg := session.DefaultConfig()
	cfg.CoachInterval = coachEvery
	s := session.New(monitor, navigator, queue, estimator, cfg)
	s.SetRoute(route, total)

	logger.Info("simulated run ready",
		"waypoints", len(route),
		"distance_m", int(total),
		"speed_mps", speed,
	)
	return s
}

// buildQueue wires the announcement queue, using the remote synthesizer
// when a speech service is configured and the log voice otherwise.
func buildQueue() *announce.Queue {
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

	return announce.NewQueue(synth, &sim.TimedPlayer{Duration: time.Second}, speaker)
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
