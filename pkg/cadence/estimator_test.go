package cadence_test

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strideworks/go-stride/pkg/cadence"
)

// emitPeak drives one rise/fall cycle peaking at the given magnitude, using
// three samples spaced 10 ms around the peak timestamp. The 0.2 baseline is
// below the step magnitude floor so only the peak sample can register.
func emitPeak(p *cadence.MockMotionProvider, at time.Time, peak float64) {
	p.Emit(cadence.MotionSample{X: 0.2, Timestamp: at.Add(-10 * time.Millisecond)})
	p.Emit(cadence.MotionSample{X: peak, Timestamp: at})
	p.Emit(cadence.MotionSample{X: 0.2, Timestamp: at.Add(10 * time.Millisecond)})
}

// gait emits count steps of the given peak magnitude at a fixed interval.
func gait(p *cadence.MockMotionProvider, start time.Time, interval time.Duration, count int, peak float64) {
	for i := 0; i < count; i++ {
		emitPeak(p, start.Add(time.Duration(i)*interval), peak)
	}
}

func startedEstimator(t *testing.T) (*cadence.Estimator, *cadence.MockMotionProvider) {
	t.Helper()
	provider := &cadence.MockMotionProvider{}
	est := cadence.NewEstimator(provider, nil)
	if err := est.Start(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(est.Stop)
	return est, provider
}

func TestMotionSample_Magnitude(t *testing.T) {
	s := cadence.MotionSample{X: 3, Y: 4, Z: 0}
	if got := s.Magnitude(); math.Abs(got-5) > 1e-9 {
		t.Errorf("expected magnitude 5, got %v", got)
	}
}

func TestEstimator_SteadyGait(t *testing.T) {
	est, provider := startedEstimator(t)

	// 10 steps at 350 ms spacing is roughly 171 steps/min.
	base := time.Now()
	gait(provider, base, 350*time.Millisecond, 10, 1.5)

	spm := est.CurrentSPM()
	if spm < 170 || spm > 173 {
		t.Errorf("expected roughly 171 SPM, got %v", spm)
	}
}

func TestEstimator_PeakMagnitudeFilter(t *testing.T) {
	tests := []struct {
		name string
		peak float64
	}{
		{"jitter below threshold", 0.5},
		{"shock above threshold", 4.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, provider := startedEstimator(t)
			gait(provider, time.Now(), 350*time.Millisecond, 10, tt.peak)

			if spm := est.CurrentSPM(); spm != 0 {
				t.Errorf("expected 0 SPM for rejected peaks, got %v", spm)
			}
		})
	}
}

func TestEstimator_StepGapFilter(t *testing.T) {
	t.Run("too fast", func(t *testing.T) {
		est, provider := startedEstimator(t)
		base := time.Now()
		// A second peak 100 ms after the first is rejected, leaving a
		// single accepted step.
		gait(provider, base, 100*time.Millisecond, 2, 1.5)

		if spm := est.CurrentSPM(); spm != 0 {
			t.Errorf("expected 0 SPM, got %v", spm)
		}
	})

	t.Run("too slow", func(t *testing.T) {
		est, provider := startedEstimator(t)
		base := time.Now()
		gait(provider, base, 2*time.Second, 5, 1.5)

		if spm := est.CurrentSPM(); spm != 0 {
			t.Errorf("expected 0 SPM, got %v", spm)
		}
	})
}

func TestEstimator_ClampsToMaxSPM(t *testing.T) {
	est, provider := startedEstimator(t)

	// 250 ms spacing is 240 steps/min before the clamp.
	gait(provider, time.Now(), 250*time.Millisecond, 10, 1.5)

	if spm := est.CurrentSPM(); spm != 220 {
		t.Errorf("expected estimate clamped to 220, got %v", spm)
	}
}

func TestEstimator_InsufficientSignal(t *testing.T) {
	t.Run("fewer than two steps", func(t *testing.T) {
		est, provider := startedEstimator(t)
		emitPeak(provider, time.Now(), 1.5)

		if spm := est.CurrentSPM(); spm != 0 {
			t.Errorf("expected 0 SPM, got %v", spm)
		}
	})

	t.Run("window under one second", func(t *testing.T) {
		est, provider := startedEstimator(t)
		base := time.Now()
		emitPeak(provider, base, 1.5)
		emitPeak(provider, base.Add(500*time.Millisecond), 1.5)

		if spm := est.CurrentSPM(); spm != 0 {
			t.Errorf("expected 0 SPM, got %v", spm)
		}
	})
}

func TestEstimator_PrunesOldSteps(t *testing.T) {
	est, provider := startedEstimator(t)

	base := time.Now()
	gait(provider, base, 350*time.Millisecond, 10, 1.5)
	if spm := est.CurrentSPM(); spm == 0 {
		t.Fatal("expected a cadence estimate before pruning")
	}

	// A sample far in the future prunes everything out of the window.
	provider.Emit(cadence.MotionSample{X: 1.0, Timestamp: base.Add(30 * time.Second)})

	if spm := est.CurrentSPM(); spm != 0 {
		t.Errorf("expected 0 SPM after window pruning, got %v", spm)
	}
}

func TestEstimator_Lifecycle(t *testing.T) {
	provider := &cadence.MockMotionProvider{}
	est := cadence.NewEstimator(provider, nil)

	if err := est.Start(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !est.Active() {
		t.Error("expected estimator active after start")
	}
	if err := est.Start(nil); !errors.Is(err, cadence.ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	gait(provider, time.Now(), 350*time.Millisecond, 10, 1.5)

	est.Stop()
	est.Stop()
	if est.Active() {
		t.Error("expected estimator inactive after stop")
	}
	if provider.Closes() != 1 {
		t.Errorf("expected 1 subscription close, got %d", provider.Closes())
	}
	if spm := est.CurrentSPM(); spm != 0 {
		t.Errorf("expected buffered steps discarded on stop, got %v SPM", spm)
	}

	// Restart works.
	if err := est.Start(nil); err != nil {
		t.Fatalf("unexpected error on restart: %v", err)
	}
	est.Stop()
}

func TestEstimator_PeriodicReporting(t *testing.T) {
	provider := &cadence.MockMotionProvider{}
	cfg := cadence.DefaultConfig()
	cfg.ReportInterval = 10 * time.Millisecond
	est := cadence.NewEstimator(provider, cfg)

	var updates atomic.Int32
	if err := est.Start(func(float64) { updates.Add(1) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for updates.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if updates.Load() < 2 {
		t.Fatal("expected periodic cadence updates")
	}

	est.Stop()
	settled := updates.Load()
	time.Sleep(30 * time.Millisecond)
	if got := updates.Load(); got != settled {
		t.Errorf("expected no updates after stop, got %d more", got-settled)
	}
}
