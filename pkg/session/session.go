// Package session owns one live run. It feeds validated positions from the
// location monitor into the navigator, routes guidance and system notices
// into the announcement queue, reads the cadence estimator, and exposes a
// snapshot of the run for the dashboard.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/strideworks/go-stride/pkg/announce"
	"github.com/strideworks/go-stride/pkg/cadence"
	"github.com/strideworks/go-stride/pkg/geo"
	"github.com/strideworks/go-stride/pkg/location"
	"github.com/strideworks/go-stride/pkg/nav"
)

// ErrAlreadyStarted is returned when Start is called on a running session.
var ErrAlreadyStarted = errors.New("session: already started")

// Config holds session settings.
type Config struct {
	// CoachInterval is how often a pace and cadence summary is spoken.
	CoachInterval time.Duration

	// MinCoachDistance suppresses coach summaries until the runner has
	// covered this many meters.
	MinCoachDistance float64

	Logger *slog.Logger
}

// DefaultConfig returns session settings with production defaults.
func DefaultConfig() *Config {
	return &Config{
		CoachInterval:    2 * time.Minute,
		MinCoachDistance: 100,
		Logger:           slog.Default(),
	}
}

// Snapshot is a read-only view of the run for dashboards and APIs.
type Snapshot struct {
	Active          bool      `json:"active"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	DistanceMeters  float64   `json:"distance_meters"`
	CadenceSPM      float64   `json:"cadence_spm"`
	GPSStatus       string    `json:"gps_status"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	NextInstruction string    `json:"next_instruction"`
	DistanceToTurn  float64   `json:"distance_to_turn_meters"`
	WaypointIndex   int       `json:"waypoint_index"`
	OffRoute        bool      `json:"off_route"`
	QueueLength     int       `json:"queue_length"`
	Speaking        bool      `json:"speaking"`
}

// Session coordinates one run. All collaborators are injected so tests and
// multiple concurrent sessions stay isolated.
type Session struct {
	mu sync.Mutex

	cfg    *Config
	logger *slog.Logger

	monitor   *location.Monitor
	navigator *nav.Navigator
	queue     *announce.Queue
	estimator *cadence.Estimator

	active    bool
	startedAt time.Time
	distance  float64
	lat, lng  float64
	hasFix    bool

	stopCoach  chan struct{}
	onSnapshot func(Snapshot)
}

// New creates a session over the given collaborators.
func New(monitor *location.Monitor, navigator *nav.Navigator, queue *announce.Queue, estimator *cadence.Estimator, cfg *Config) *Session {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:       cfg,
		logger:    logger.With("component", "session"),
		monitor:   monitor,
		navigator: navigator,
		queue:     queue,
		estimator: estimator,
	}
}

// SetRoute loads a route into the navigator. Safe to call before Start.
func (s *Session) SetRoute(waypoints []nav.Waypoint, totalDistance float64) {
	s.navigator.Initialize(waypoints, totalDistance, s.handleGuidance)
}

// Start begins the run: position monitoring, cadence estimation, and the
// periodic coach summary. onSnapshot, when non-nil, receives a fresh
// snapshot after every accepted position sample.
func (s *Session) Start(onSnapshot func(Snapshot)) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.active = true
	s.startedAt = time.Now()
	s.distance = 0
	s.hasFix = false
	s.onSnapshot = onSnapshot
	s.stopCoach = make(chan struct{})
	stop := s.stopCoach
	s.mu.Unlock()

	if err := s.estimator.Start(s.handleCadence); err != nil {
		s.abortStart()
		return err
	}

	err := s.monitor.Start(location.Callbacks{
		OnLocationUpdate: s.handleSample,
		OnSpikeFiltered: func(sample location.Sample, reason string) {
			s.logger.Debug("position sample filtered", "reason", reason)
		},
		OnRecoveryStarted: func(attempt int) {
			s.logger.Info("gps recovery started", "attempt", attempt)
		},
		OnRecoverySuccess: func() {
			s.queue.EnqueueSystem("GPS signal restored", nil)
		},
		OnGPSLost: func() {
			s.queue.Interrupt("GPS signal lost", announce.DomainSystem)
		},
	})
	if err != nil {
		s.estimator.Stop()
		s.abortStart()
		return err
	}

	s.queue.EnqueueSystem("Run started", nil)
	go s.coachLoop(stop)

	s.logger.Info("session started")
	return nil
}

// Stop ends the run and releases all sensor and audio resources. Safe to
// call at any time, including more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stopCoach)
	s.stopCoach = nil
	distance := s.distance
	duration := time.Since(s.startedAt)
	s.mu.Unlock()

	s.monitor.Stop()
	s.estimator.Stop()
	s.queue.Clear()
	s.queue.EnqueueSystem(runSummary(distance, duration), nil)

	s.logger.Info("session stopped",
		"distance_m", fmt.Sprintf("%.0f", distance),
		"duration", duration.Round(time.Second),
	)
}

// NotifyAppActive forwards an app-foreground signal to the location
// monitor, giving stale subscriptions an immediate recovery nudge.
func (s *Session) NotifyAppActive() {
	s.monitor.NotifyAppActive()
}

// Snapshot assembles the current view of the run.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Active:         s.active,
		StartedAt:      s.startedAt,
		DistanceMeters: s.distance,
		Latitude:       s.lat,
		Longitude:      s.lng,
	}
	if s.active {
		snap.DurationSeconds = time.Since(s.startedAt).Seconds()
	}
	s.mu.Unlock()

	snap.CadenceSPM = s.estimator.CurrentSPM()
	snap.GPSStatus = s.monitor.Status().String()
	snap.QueueLength = s.queue.QueueLength()
	snap.Speaking = s.queue.IsPlaying()

	state := s.navigator.GetState()
	snap.NextInstruction = state.NextInstruction
	snap.DistanceToTurn = state.DistanceToNextTurn
	snap.WaypointIndex = state.CurrentIndex
	snap.OffRoute = state.OffRoute
	return snap
}

func (s *Session) abortStart() {
	s.mu.Lock()
	s.active = false
	if s.stopCoach != nil {
		close(s.stopCoach)
		s.stopCoach = nil
	}
	s.mu.Unlock()
}

// handleSample accumulates distance and drives the navigator with each
// validated position.
func (s *Session) handleSample(sample location.Sample) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	if s.hasFix {
		s.distance += geo.Distance(s.lat, s.lng, sample.Latitude, sample.Longitude)
	}
	s.lat = sample.Latitude
	s.lng = sample.Longitude
	s.hasFix = true
	distance := s.distance
	onSnapshot := s.onSnapshot
	s.mu.Unlock()

	s.navigator.UpdatePosition(sample.Latitude, sample.Longitude, distance)

	if onSnapshot != nil {
		onSnapshot(s.Snapshot())
	}
}

// handleGuidance routes navigator events onto the audio channel. Off-route
// notices interrupt whatever is playing; everything else queues normally.
func (s *Session) handleGuidance(ev nav.Event) {
	switch ev.Kind {
	case nav.EventOffRoute:
		s.queue.Interrupt(ev.Text, announce.DomainNavigation)
	default:
		s.queue.EnqueueNavigation(ev.Text, nil)
	}
}

func (s *Session) handleCadence(spm float64) {
	s.logger.Debug("cadence update", "spm", fmt.Sprintf("%.0f", spm))
}

func (s *Session) coachLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.CoachInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			distance := s.distance
			duration := time.Since(s.startedAt)
			s.mu.Unlock()

			if distance < s.cfg.MinCoachDistance {
				continue
			}
			s.queue.EnqueueCoach(coachSummary(distance, duration, s.estimator.CurrentSPM()), nil)
		}
	}
}

// coachSummary phrases the periodic pace and cadence report.
func coachSummary(distanceMeters float64, elapsed time.Duration, spm float64) string {
	km := distanceMeters / 1000
	text := fmt.Sprintf("You have covered %.1f kilometers", km)

	if km > 0 {
		paceSec := elapsed.Seconds() / km
		text += fmt.Sprintf(", average pace %d minutes %d seconds per kilometer",
			int(paceSec)/60, int(paceSec)%60)
	}
	if spm > 0 {
		text += fmt.Sprintf(", cadence %.0f steps per minute", spm)
	}
	return text
}

func runSummary(distanceMeters float64, elapsed time.Duration) string {
	return fmt.Sprintf("Run complete. %.1f kilometers in %d minutes %d seconds",
		distanceMeters/1000, int(elapsed.Seconds())/60, int(elapsed.Seconds())%60)
}
