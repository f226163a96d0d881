package cadence

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/strideworks/go-stride/pkg/geo"
)

// ErrAlreadyStarted is returned when Start is called on a running estimator.
var ErrAlreadyStarted = errors.New("cadence: estimator already started")

// Config holds estimator settings.
type Config struct {
	// SampleInterval is the accelerometer sampling period.
	SampleInterval time.Duration

	// ReportInterval is how often the update callback fires while active.
	ReportInterval time.Duration

	// Window is the rolling span of retained step timestamps.
	Window time.Duration

	// MinPeakMagnitude and MaxPeakMagnitude bound an accepted step peak,
	// filtering out jitter below and shocks above.
	MinPeakMagnitude float64
	MaxPeakMagnitude float64

	// MinStepGap and MaxStepGap bound the time between consecutive steps,
	// covering the plausible 60-300 steps/min physiological range.
	MinStepGap time.Duration
	MaxStepGap time.Duration

	// MaxSPM caps the reported estimate.
	MaxSPM float64

	Logger *slog.Logger
}

// DefaultConfig returns estimator settings with production defaults.
func DefaultConfig() *Config {
	return &Config{
		SampleInterval:   50 * time.Millisecond,
		ReportInterval:   2 * time.Second,
		Window:           15 * time.Second,
		MinPeakMagnitude: 0.8,
		MaxPeakMagnitude: 3.5,
		MinStepGap:       200 * time.Millisecond,
		MaxStepGap:       time.Second,
		MaxSPM:           220,
		Logger:           slog.Default(),
	}
}

// Estimator derives steps-per-minute from accelerometer magnitude using a
// rising/falling-edge peak detector over a rolling window.
type Estimator struct {
	mu sync.Mutex

	cfg      *Config
	provider MotionProvider
	logger   *slog.Logger

	sub      MotionSubscription
	active   bool
	stopTick chan struct{}

	// Peak detector state.
	prevMagnitude float64
	prevTimestamp time.Time
	rising        bool
	hasPrev       bool

	// Accepted step timestamps, oldest first, pruned to cfg.Window.
	steps []time.Time
}

// NewEstimator creates a cadence estimator over the given accelerometer.
func NewEstimator(provider MotionProvider, cfg *Config) *Estimator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Estimator{
		cfg:      cfg,
		provider: provider,
		logger:   cfg.Logger.With("component", "cadence.estimator"),
	}
}

// Start subscribes to the accelerometer and begins reporting the current
// estimate through onUpdate every report interval. onUpdate may be nil.
func (e *Estimator) Start(onUpdate func(spm float64)) error {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}

	sub, err := e.provider.Subscribe(e.cfg.SampleInterval, e.handleSample)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	e.sub = sub
	e.active = true
	e.stopTick = make(chan struct{})
	stop := e.stopTick
	e.mu.Unlock()

	e.logger.Debug("cadence estimation started")

	if onUpdate != nil {
		go e.reportLoop(stop, onUpdate)
	}
	return nil
}

// Stop releases the sensor subscription and discards all buffered steps.
// Safe to call at any time.
func (e *Estimator) Stop() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	sub := e.sub
	e.sub = nil
	close(e.stopTick)
	e.stopTick = nil
	e.steps = nil
	e.hasPrev = false
	e.rising = false
	e.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	e.logger.Debug("cadence estimation stopped")
}

// Active reports whether the estimator is running.
func (e *Estimator) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// CurrentSPM returns the current steps-per-minute estimate, or 0 when the
// window holds too little signal to extrapolate.
func (e *Estimator) CurrentSPM() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentSPMLocked()
}

func (e *Estimator) currentSPMLocked() float64 {
	if len(e.steps) < 2 {
		return 0
	}
	span := e.steps[len(e.steps)-1].Sub(e.steps[0])
	if span < time.Second {
		return 0
	}
	spm := float64(len(e.steps)-1) / float64(span.Milliseconds()) * 60000
	return geo.Clamp(spm, 0, e.cfg.MaxSPM)
}

// handleSample advances the peak detector with one accelerometer reading.
// The transition from rising to falling magnitude marks a candidate peak,
// accepted as a step only when its magnitude and spacing are plausible.
func (e *Estimator) handleSample(s MotionSample) {
	mag := s.Magnitude()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return
	}

	if !e.hasPrev {
		e.prevMagnitude = mag
		e.prevTimestamp = s.Timestamp
		e.hasPrev = true
		return
	}

	switch {
	case mag > e.prevMagnitude:
		e.rising = true
	case e.rising && mag < e.prevMagnitude:
		e.rising = false
		e.recordPeakLocked(e.prevMagnitude, e.prevTimestamp)
	}

	e.prevMagnitude = mag
	e.prevTimestamp = s.Timestamp
	e.pruneLocked(s.Timestamp)
}

func (e *Estimator) recordPeakLocked(magnitude float64, at time.Time) {
	if magnitude < e.cfg.MinPeakMagnitude || magnitude > e.cfg.MaxPeakMagnitude {
		return
	}

	if len(e.steps) > 0 {
		gap := at.Sub(e.steps[len(e.steps)-1])
		if gap < e.cfg.MinStepGap || gap > e.cfg.MaxStepGap {
			return
		}
	}
	e.steps = append(e.steps, at)
}

func (e *Estimator) pruneLocked(now time.Time) {
	cutoff := now.Add(-e.cfg.Window)
	i := 0
	for i < len(e.steps) && e.steps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		e.steps = e.steps[i:]
	}
}

func (e *Estimator) reportLoop(stop <-chan struct{}, onUpdate func(float64)) {
	ticker := time.NewTicker(e.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			onUpdate(e.CurrentSPM())
		}
	}
}
