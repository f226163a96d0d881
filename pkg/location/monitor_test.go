package location_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strideworks/go-stride/pkg/location"
)

// fastConfig returns a config with intervals shrunk for tests.
func fastConfig() location.Config {
	cfg := location.DefaultConfig()
	cfg.HealthCheckInterval = 5 * time.Millisecond
	cfg.StaleAfter = 1 * time.Millisecond
	cfg.SettleDelay = 1 * time.Millisecond
	cfg.FetchTimeout = 20 * time.Millisecond
	return cfg
}

// quietConfig keeps the health checker from firing during a test.
func quietConfig() location.Config {
	cfg := location.DefaultConfig()
	cfg.HealthCheckInterval = time.Hour
	cfg.StaleAfter = time.Hour
	return cfg
}

func ptr(v float64) *float64 { return &v }

func TestMonitor_PermissionDenied(t *testing.T) {
	provider := location.NewMockProvider()
	provider.PermissionFunc = func(ctx context.Context) (bool, error) {
		return false, nil
	}

	m := location.NewMonitor(provider, quietConfig())
	err := m.Start(location.Callbacks{})
	if !errors.Is(err, location.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestMonitor_SampleValidation(t *testing.T) {
	provider := location.NewMockProvider()
	m := location.NewMonitor(provider, quietConfig())
	defer m.Stop()

	var accepted []location.Sample
	var rejected []string
	err := m.Start(location.Callbacks{
		OnLocationUpdate: func(s location.Sample) { accepted = append(accepted, s) },
		OnSpikeFiltered:  func(s location.Sample, reason string) { rejected = append(rejected, reason) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Now()
	provider.Emit(location.Sample{Latitude: 52.0, Longitude: 13.0, Timestamp: base})

	t.Run("First sample accepted", func(t *testing.T) {
		if len(accepted) != 1 {
			t.Fatalf("expected 1 accepted, got %d", len(accepted))
		}
	})

	t.Run("Zero elapsed time rejected", func(t *testing.T) {
		provider.Emit(location.Sample{Latitude: 52.0, Longitude: 13.0, Timestamp: base})
		if len(rejected) != 1 {
			t.Fatalf("expected 1 rejected, got %d", len(rejected))
		}
		last, _ := m.LastLocation()
		if !last.Timestamp.Equal(base) {
			t.Error("last location must not change on rejection")
		}
	})

	t.Run("Implausible speed rejected", func(t *testing.T) {
		// ~1.1 km in one second
		provider.Emit(location.Sample{
			Latitude: 52.01, Longitude: 13.0,
			Timestamp: base.Add(time.Second),
		})
		if len(rejected) != 2 {
			t.Fatalf("expected 2 rejected, got %d", len(rejected))
		}
	})

	t.Run("Poor accuracy rejected", func(t *testing.T) {
		provider.Emit(location.Sample{
			Latitude: 52.0001, Longitude: 13.0,
			Timestamp: base.Add(2 * time.Second),
			Accuracy:  ptr(80),
		})
		if len(rejected) != 3 {
			t.Fatalf("expected 3 rejected, got %d", len(rejected))
		}
	})

	t.Run("Plausible sample accepted", func(t *testing.T) {
		provider.Emit(location.Sample{
			Latitude: 52.0001, Longitude: 13.0,
			Timestamp: base.Add(3 * time.Second),
			Accuracy:  ptr(10),
		})
		if len(accepted) != 2 {
			t.Fatalf("expected 2 accepted, got %d", len(accepted))
		}
	})
}

func TestMonitor_SmoothedLocation(t *testing.T) {
	provider := location.NewMockProvider()
	m := location.NewMonitor(provider, quietConfig())
	defer m.Stop()

	if _, ok := m.SmoothedLocation(); ok {
		t.Error("expected no smoothed location before any sample")
	}

	if err := m.Start(location.Callbacks{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := time.Now()
	provider.Emit(location.Sample{Latitude: 52.0, Longitude: 13.0, Timestamp: base})
	provider.Emit(location.Sample{Latitude: 52.0001, Longitude: 13.0001, Timestamp: base.Add(time.Second)})

	smoothed, ok := m.SmoothedLocation()
	if !ok {
		t.Fatal("expected smoothed location")
	}
	if smoothed.Latitude < 52.0 || smoothed.Latitude > 52.0001 {
		t.Errorf("smoothed latitude outside window bounds: %v", smoothed.Latitude)
	}
}

func TestMonitor_RecoverySuccess(t *testing.T) {
	provider := location.NewMockProvider()
	provider.FetchOnceFunc = func(ctx context.Context, accuracy location.Accuracy) (location.Sample, error) {
		return location.Sample{Latitude: 52.0, Longitude: 13.0, Timestamp: time.Now()}, nil
	}

	var started, succeeded, updates atomic.Int32
	cfg := quietConfig()
	cfg.SettleDelay = time.Millisecond
	m := location.NewMonitor(provider, cfg)
	defer m.Stop()

	err := m.Start(location.Callbacks{
		OnLocationUpdate:  func(s location.Sample) { updates.Add(1) },
		OnRecoveryStarted: func(attempt int) { started.Add(1) },
		OnRecoverySuccess: func() { succeeded.Add(1) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.NotifyAppActive()

	deadline := time.Now().Add(time.Second)
	for updates.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if succeeded.Load() == 0 {
		t.Fatal("expected a successful recovery")
	}
	if started.Load() != 1 {
		t.Errorf("expected one recovery attempt, got %d", started.Load())
	}
	if m.RecoveryAttempts() != 0 {
		t.Errorf("expected attempt counter reset, got %d", m.RecoveryAttempts())
	}
	if got := m.Status(); got != location.StatusHealthy {
		t.Errorf("expected healthy status, got %v", got)
	}
	if updates.Load() == 0 {
		t.Error("expected the recovery fetch to surface as a location update")
	}
}

func TestMonitor_RecoveryExhaustion(t *testing.T) {
	provider := location.NewMockProvider()
	provider.FetchOnceFunc = func(ctx context.Context, accuracy location.Accuracy) (location.Sample, error) {
		return location.Sample{}, errors.New("no fix")
	}

	var started, failed, lost atomic.Int32
	m := location.NewMonitor(provider, fastConfig())
	defer m.Stop()

	err := m.Start(location.Callbacks{
		OnRecoveryStarted: func(attempt int) { started.Add(1) },
		OnRecoveryFailed:  func() { failed.Add(1) },
		OnGPSLost:         func() { lost.Add(1) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for lost.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// Let a few more health ticks fire after exhaustion.
	time.Sleep(50 * time.Millisecond)

	if got := failed.Load(); got != 1 {
		t.Errorf("expected exactly one OnRecoveryFailed, got %d", got)
	}
	if got := lost.Load(); got != 1 {
		t.Errorf("expected exactly one OnGPSLost, got %d", got)
	}
	if got := started.Load(); got > 5 {
		t.Errorf("expected at most 5 recovery attempts, got %d", got)
	}
	if got := m.Status(); got != location.StatusLost {
		t.Errorf("expected lost status, got %v", got)
	}
}

func TestMonitor_SingleRecoveryInFlight(t *testing.T) {
	release := make(chan struct{})
	provider := location.NewMockProvider()
	provider.FetchOnceFunc = func(ctx context.Context, accuracy location.Accuracy) (location.Sample, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return location.Sample{Latitude: 52.0, Longitude: 13.0, Timestamp: time.Now()}, nil
	}

	var started atomic.Int32
	cfg := quietConfig()
	cfg.SettleDelay = time.Millisecond
	cfg.FetchTimeout = time.Second
	m := location.NewMonitor(provider, cfg)
	defer m.Stop()

	err := m.Start(location.Callbacks{
		OnRecoveryStarted: func(attempt int) { started.Add(1) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.NotifyAppActive()
	time.Sleep(20 * time.Millisecond)
	m.NotifyAppActive() // must be a no-op while the first is in flight
	time.Sleep(20 * time.Millisecond)

	if got := started.Load(); got != 1 {
		t.Errorf("expected one recovery in flight, got %d started", got)
	}
	close(release)
}

func TestMonitor_StopIsIdempotent(t *testing.T) {
	provider := location.NewMockProvider()
	m := location.NewMonitor(provider, quietConfig())

	if err := m.Start(location.Callbacks{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.Stop()
	m.Stop()

	if provider.Closes() != 1 {
		t.Errorf("expected subscription closed once, got %d", provider.Closes())
	}
	if _, ok := m.LastLocation(); ok {
		t.Error("expected buffered state cleared after stop")
	}
}

func TestMonitor_RestartAfterStop(t *testing.T) {
	provider := location.NewMockProvider()
	m := location.NewMonitor(provider, quietConfig())

	if err := m.Start(location.Callbacks{}); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := m.Start(location.Callbacks{}); !errors.Is(err, location.ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	m.Stop()

	if err := m.Start(location.Callbacks{}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	m.Stop()
}
