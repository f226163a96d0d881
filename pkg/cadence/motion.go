// Package cadence estimates steps-per-minute from raw accelerometer
// magnitude, without platform step-counting APIs.
package cadence

import (
	"math"
	"sync"
	"time"
)

// MotionSample is one triaxial accelerometer reading, in g.
type MotionSample struct {
	X, Y, Z   float64
	Timestamp time.Time
}

// Magnitude returns the euclidean norm of the sample.
func (s MotionSample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// MotionSubscription is an active accelerometer stream.
type MotionSubscription interface {
	Close() error
}

// MotionProvider abstracts the accelerometer. Implementations deliver
// samples at the requested interval until the subscription is closed.
type MotionProvider interface {
	Subscribe(interval time.Duration, fn func(MotionSample)) (MotionSubscription, error)
}

// MockMotionProvider implements MotionProvider for testing. Tests push
// samples through Emit.
type MockMotionProvider struct {
	// SubscribeFunc overrides Subscribe when set.
	SubscribeFunc func(interval time.Duration, fn func(MotionSample)) (MotionSubscription, error)

	mu     sync.Mutex
	fn     func(MotionSample)
	closes int
}

// Subscribe registers the callback for Emit.
func (p *MockMotionProvider) Subscribe(interval time.Duration, fn func(MotionSample)) (MotionSubscription, error) {
	if p.SubscribeFunc != nil {
		return p.SubscribeFunc(interval, fn)
	}

	p.mu.Lock()
	p.fn = fn
	p.mu.Unlock()
	return &mockMotionSubscription{provider: p}, nil
}

// Emit delivers a sample to the active subscriber, if any.
func (p *MockMotionProvider) Emit(s MotionSample) {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()

	if fn != nil {
		fn(s)
	}
}

// Closes returns how many subscriptions have been closed.
func (p *MockMotionProvider) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

type mockMotionSubscription struct {
	provider *MockMotionProvider
	once     sync.Once
}

func (s *mockMotionSubscription) Close() error {
	s.once.Do(func() {
		s.provider.mu.Lock()
		s.provider.fn = nil
		s.provider.closes++
		s.provider.mu.Unlock()
	})
	return nil
}

var _ MotionProvider = (*MockMotionProvider)(nil)
