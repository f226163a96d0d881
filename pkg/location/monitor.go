package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/strideworks/go-stride/pkg/geo"
)

// Sentinel errors returned by Start.
var (
	// ErrPermissionDenied is returned when location access is denied.
	ErrPermissionDenied = errors.New("location: permission denied")

	// ErrAlreadyStarted is returned when Start is called on a running monitor.
	ErrAlreadyStarted = errors.New("location: monitor already started")
)

// Status describes the health of the position stream.
type Status int

const (
	StatusHealthy Status = iota
	StatusStale
	StatusRecovering
	StatusLost
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusStale:
		return "stale"
	case StatusRecovering:
		return "recovering"
	case StatusLost:
		return "lost"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Config holds all tunable parameters for the monitor.
type Config struct {
	// Validation thresholds
	MaxSpeed    float64 // m/s, implied speed above this is a GPS spike
	MaxAccuracy float64 // meters, reported accuracy worse than this is rejected
	WindowSize  int     // accepted samples kept for the smoothed location

	// Health / recovery
	HealthCheckInterval time.Duration // how often to check for staleness
	StaleAfter          time.Duration // no accepted sample for this long means stale
	SettleDelay         time.Duration // pause between reopen and direct fetch
	FetchTimeout        time.Duration // deadline for the recovery fetch
	MaxRecoveryAttempts int           // attempts before the stream is declared lost

	// Subscription
	Subscribe SubscribeOptions

	// Observability
	Logger *slog.Logger
}

// DefaultConfig returns the recommended configuration for a running session.
func DefaultConfig() Config {
	return Config{
		MaxSpeed:    12.5, // physically implausible for a runner
		MaxAccuracy: 50,
		WindowSize:  5,

		HealthCheckInterval: 10 * time.Second,
		StaleAfter:          15 * time.Second,
		SettleDelay:         1 * time.Second,
		FetchTimeout:        10 * time.Second,
		MaxRecoveryAttempts: 5,

		Subscribe: SubscribeOptions{
			Accuracy:    AccuracyHigh,
			MinInterval: time.Second,
			MinDistance: 2,
		},

		Logger: slog.Default(),
	}
}

// Callbacks groups the monitor's event callbacks.
// Nil fields are skipped. Callbacks are invoked outside the monitor's lock
// and must not be assumed to run on any particular goroutine.
type Callbacks struct {
	OnLocationUpdate  func(Sample)
	OnSpikeFiltered   func(sample Sample, reason string)
	OnRecoveryStarted func(attempt int)
	OnRecoverySuccess func()
	OnRecoveryFailed  func()
	OnGPSLost         func()
}

// Monitor owns the raw position subscription and exposes filtered, validated
// position events plus a running health status.
type Monitor struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger

	mu             sync.Mutex
	running        bool
	cb             Callbacks
	sub            Subscription
	window         []Sample
	lastAccepted   *Sample
	lastAcceptedAt time.Time
	status         Status
	attempts       int
	recovering     bool // at-most-one recovery in flight
	lifetime       context.Context
	cancel         context.CancelFunc
}

// NewMonitor creates a monitor over the given positioning provider.
func NewMonitor(provider Provider, cfg Config) *Monitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With("component", "location.monitor"),
	}
}

// Start requests permission, opens the subscription, and begins periodic
// health checks. Returns ErrPermissionDenied if location access is refused.
func (m *Monitor) Start(cb Callbacks) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	permCtx, permCancel := context.WithTimeout(ctx, 30*time.Second)
	granted, err := m.provider.RequestPermission(permCtx)
	permCancel()
	if err != nil {
		cancel()
		return fmt.Errorf("request permission: %w", err)
	}
	if !granted {
		cancel()
		return ErrPermissionDenied
	}

	sub, err := m.provider.Subscribe(m.cfg.Subscribe, m.handleSample)
	if err != nil {
		cancel()
		return fmt.Errorf("open subscription: %w", err)
	}

	m.mu.Lock()
	m.running = true
	m.cb = cb
	m.sub = sub
	m.window = nil
	m.lastAccepted = nil
	m.lastAcceptedAt = time.Now()
	m.status = StatusHealthy
	m.attempts = 0
	m.recovering = false
	m.lifetime = ctx
	m.cancel = cancel
	m.mu.Unlock()

	go m.healthLoop(ctx)

	m.logger.Info("monitor started",
		"health_interval", m.cfg.HealthCheckInterval,
		"stale_after", m.cfg.StaleAfter,
	)
	return nil
}

// Stop tears down the subscription, cancels the health check and any
// in-flight recovery, and clears buffered state. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	sub := m.sub
	m.cancel = nil
	m.sub = nil
	m.window = nil
	m.lastAccepted = nil
	m.attempts = 0
	m.recovering = false
	m.status = StatusHealthy
	m.cb = Callbacks{}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		sub.Close()
	}
	m.logger.Info("monitor stopped")
}

// NotifyAppActive should be called on a background-to-active application
// transition. The OS may have suspended the subscription while backgrounded,
// so a recovery attempt is triggered proactively.
func (m *Monitor) NotifyAppActive() {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()
	if !running {
		return
	}
	m.logger.Debug("app foregrounded, probing subscription")
	m.triggerRecovery()
}

// handleSample validates a raw sample before exposing it.
// Rejected samples are reported but never update monitor state.
func (m *Monitor) handleSample(s Sample) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}

	if reason := m.validateLocked(s); reason != "" {
		cb := m.cb.OnSpikeFiltered
		m.mu.Unlock()
		m.logger.Debug("sample rejected", "reason", reason,
			"lat", s.Latitude, "lng", s.Longitude)
		if cb != nil {
			cb(s, reason)
		}
		return
	}

	m.window = append(m.window, s)
	if len(m.window) > m.cfg.WindowSize {
		m.window = m.window[len(m.window)-m.cfg.WindowSize:]
	}
	m.lastAccepted = &s
	m.lastAcceptedAt = time.Now()
	if m.status == StatusStale {
		m.status = StatusHealthy
	}
	cb := m.cb.OnLocationUpdate
	m.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

// validateLocked returns a rejection reason, or "" when the sample is valid.
func (m *Monitor) validateLocked(s Sample) string {
	if m.lastAccepted != nil {
		elapsed := s.Timestamp.Sub(m.lastAccepted.Timestamp)
		if elapsed <= 0 {
			return "non-monotonic timestamp"
		}
		dist := geo.Distance(m.lastAccepted.Latitude, m.lastAccepted.Longitude,
			s.Latitude, s.Longitude)
		if dist/elapsed.Seconds() > m.cfg.MaxSpeed {
			return "implied speed exceeds limit"
		}
	}
	if s.Accuracy != nil && *s.Accuracy > m.cfg.MaxAccuracy {
		return "poor accuracy"
	}
	return ""
}

// healthLoop runs the periodic staleness check until the context is canceled.
func (m *Monitor) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

// checkHealth marks the stream stale when no accepted sample has arrived
// within StaleAfter and triggers a recovery attempt. A tick that fires while
// a recovery is active is a no-op.
func (m *Monitor) checkHealth() {
	m.mu.Lock()
	if !m.running || m.recovering || m.status == StatusLost {
		m.mu.Unlock()
		return
	}
	stale := time.Since(m.lastAcceptedAt) > m.cfg.StaleAfter
	if stale {
		m.status = StatusStale
	}
	m.mu.Unlock()

	if stale {
		m.logger.Warn("position stream stale", "since", m.cfg.StaleAfter)
		m.triggerRecovery()
	}
}

// triggerRecovery starts one recovery attempt unless one is already in
// flight or the stream has been declared lost.
func (m *Monitor) triggerRecovery() {
	m.mu.Lock()
	if !m.running || m.recovering || m.status == StatusLost {
		m.mu.Unlock()
		return
	}
	m.recovering = true
	m.attempts++
	attempt := m.attempts

	if attempt > m.cfg.MaxRecoveryAttempts {
		m.status = StatusLost
		m.recovering = false
		failed := m.cb.OnRecoveryFailed
		lost := m.cb.OnGPSLost
		m.mu.Unlock()
		m.logger.Error("recovery attempts exhausted", "attempts", attempt-1)
		if failed != nil {
			failed()
		}
		if lost != nil {
			lost()
		}
		return
	}

	m.status = StatusRecovering
	started := m.cb.OnRecoveryStarted
	m.mu.Unlock()

	m.logger.Info("recovery attempt started",
		"attempt", attempt, "max", m.cfg.MaxRecoveryAttempts)
	if started != nil {
		started(attempt)
	}

	go m.runRecovery(attempt)
}

// runRecovery closes and reopens the subscription, waits for the hardware to
// settle, then attempts one direct high-accuracy fetch.
func (m *Monitor) runRecovery(attempt int) {
	m.mu.Lock()
	// Tied to the monitor lifetime so Stop aborts mid-recovery.
	ctx := m.lifetime
	if ctx == nil {
		ctx = context.Background()
	}
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()

	if sub != nil {
		sub.Close()
	}

	select {
	case <-time.After(m.cfg.SettleDelay):
	case <-ctx.Done():
		return
	}

	newSub, err := m.provider.Subscribe(m.cfg.Subscribe, m.handleSample)
	if err == nil {
		m.mu.Lock()
		if m.running {
			m.sub = newSub
		} else {
			err = errors.New("monitor stopped")
		}
		m.mu.Unlock()
		if err != nil {
			newSub.Close()
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
		sample, fetchErr := m.provider.FetchOnce(fetchCtx, AccuracyHigh)
		cancel()
		if fetchErr == nil {
			m.finishRecovery(sample)
			return
		}
		err = fetchErr
	}

	m.failRecovery(attempt, err)
}

// finishRecovery resets the attempt counter and reports success.
func (m *Monitor) finishRecovery(sample Sample) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.attempts = 0
	m.recovering = false
	m.status = StatusHealthy
	m.lastAcceptedAt = time.Now()
	success := m.cb.OnRecoverySuccess
	m.mu.Unlock()

	m.logger.Info("recovery succeeded")
	if success != nil {
		success()
	}
	m.handleSample(sample)
}

// failRecovery leaves the counter incremented. At the attempt bound it
// signals failure and loss exactly once.
func (m *Monitor) failRecovery(attempt int, err error) {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.recovering = false
	exhausted := attempt >= m.cfg.MaxRecoveryAttempts
	if exhausted {
		m.status = StatusLost
	} else {
		m.status = StatusStale
	}
	failed := m.cb.OnRecoveryFailed
	lost := m.cb.OnGPSLost
	m.mu.Unlock()

	m.logger.Warn("recovery attempt failed",
		"attempt", attempt, "error", err, "exhausted", exhausted)
	if exhausted {
		if failed != nil {
			failed()
		}
		if lost != nil {
			lost()
		}
	}
}

// SmoothedLocation returns the mean of the bounded recent-sample window.
// Returns false when no sample has been accepted yet.
func (m *Monitor) SmoothedLocation() (Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.window) == 0 {
		return Sample{}, false
	}
	var lat, lng float64
	for _, s := range m.window {
		lat += s.Latitude
		lng += s.Longitude
	}
	n := float64(len(m.window))
	latest := m.window[len(m.window)-1]
	return Sample{
		Latitude:  lat / n,
		Longitude: lng / n,
		Timestamp: latest.Timestamp,
	}, true
}

// LastLocation returns the most recently accepted sample.
func (m *Monitor) LastLocation() (Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastAccepted == nil {
		return Sample{}, false
	}
	return *m.lastAccepted, true
}

// Healthy reports whether the stream is currently healthy.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running && m.status == StatusHealthy
}

// Status returns the current health status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// RecoveryAttempts returns the current recovery-attempt counter.
func (m *Monitor) RecoveryAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}
