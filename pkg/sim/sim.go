// Package sim provides simulated sensors for running the full session
// stack without hardware: a GPS provider that walks a route, an
// accelerometer producing a synthetic gait, and a timed audio player.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/strideworks/go-stride/pkg/announce"
	"github.com/strideworks/go-stride/pkg/cadence"
	"github.com/strideworks/go-stride/pkg/geo"
	"github.com/strideworks/go-stride/pkg/location"
)

// Point is one vertex of the simulated path.
type Point struct {
	Latitude  float64
	Longitude float64
}

// GPSProvider implements location.Provider by walking the path at a fixed
// speed, emitting an interpolated sample every tick.
type GPSProvider struct {
	Path  []Point
	Speed float64 // m/s
	Tick  time.Duration

	mu       sync.Mutex
	traveled float64
	last     location.Sample
	hasLast  bool
}

// RequestPermission always grants.
func (p *GPSProvider) RequestPermission(ctx context.Context) (bool, error) {
	return true, nil
}

// Subscribe starts the walk and delivers samples until the subscription
// is closed.
func (p *GPSProvider) Subscribe(opts location.SubscribeOptions, fn func(location.Sample)) (location.Subscription, error) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(p.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				sample, ok := p.advance(p.Speed * p.Tick.Seconds())
				if !ok {
					return
				}
				fn(sample)
			}
		}
	}()
	return &gpsSubscription{done: done}, nil
}

// FetchOnce returns the most recent simulated position.
func (p *GPSProvider) FetchOnce(ctx context.Context, accuracy location.Accuracy) (location.Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasLast {
		return p.last, nil
	}
	if len(p.Path) > 0 {
		return location.Sample{
			Latitude:  p.Path[0].Latitude,
			Longitude: p.Path[0].Longitude,
			Timestamp: time.Now(),
		}, nil
	}
	return location.Sample{Timestamp: time.Now()}, nil
}

// advance moves the walker along the path and returns the new sample.
// ok is false once the path is exhausted.
func (p *GPSProvider) advance(meters float64) (location.Sample, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.traveled += meters
	remaining := p.traveled
	for i := 0; i+1 < len(p.Path); i++ {
		a, b := p.Path[i], p.Path[i+1]
		leg := geo.Distance(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
		if remaining > leg {
			remaining -= leg
			continue
		}
		frac := 0.0
		if leg > 0 {
			frac = remaining / leg
		}
		p.last = location.Sample{
			Latitude:  a.Latitude + (b.Latitude-a.Latitude)*frac,
			Longitude: a.Longitude + (b.Longitude-a.Longitude)*frac,
			Timestamp: time.Now(),
		}
		p.hasLast = true
		return p.last, true
	}
	return location.Sample{}, false
}

type gpsSubscription struct {
	once sync.Once
	done chan struct{}
}

func (s *gpsSubscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

var _ location.Provider = (*GPSProvider)(nil)

// GaitProvider implements cadence.MotionProvider with a sinusoidal
// magnitude whose period matches the target cadence.
type GaitProvider struct {
	TargetSPM float64 // steps per minute
	Amplitude float64 // magnitude swing around 1g
}

// Subscribe emits synthetic accelerometer samples at the given interval.
func (p *GaitProvider) Subscribe(interval time.Duration, fn func(cadence.MotionSample)) (cadence.MotionSubscription, error) {
	spm := p.TargetSPM
	if spm <= 0 {
		spm = 170
	}
	amp := p.Amplitude
	if amp <= 0 {
		amp = 0.6
	}
	stepPeriod := time.Duration(60000/spm) * time.Millisecond

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		start := time.Now()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				phase := 2 * math.Pi * float64(now.Sub(start)) / float64(stepPeriod)
				fn(cadence.MotionSample{
					X:         1.0 + amp*math.Sin(phase),
					Timestamp: now,
				})
			}
		}
	}()
	return &gaitSubscription{done: done}, nil
}

type gaitSubscription struct {
	once sync.Once
	done chan struct{}
}

func (s *gaitSubscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

var _ cadence.MotionProvider = (*GaitProvider)(nil)

// TimedPlayer implements announce.Player by holding each playback open for
// a fixed duration, standing in for real audio output.
type TimedPlayer struct {
	Duration time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// Play completes after the configured duration.
func (p *TimedPlayer) Play(path string, done func(error)) {
	d := p.Duration
	if d <= 0 {
		d = 500 * time.Millisecond
	}

	p.mu.Lock()
	p.timer = time.AfterFunc(d, func() {
		if done != nil {
			done(nil)
		}
	})
	p.mu.Unlock()
}

// Stop cancels the pending completion. The queue settles the item itself.
func (p *TimedPlayer) Stop() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
}

var _ announce.Player = (*TimedPlayer)(nil)
