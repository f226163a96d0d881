package location

import (
	"context"
	"sync"
	"time"
)

// MockProvider implements Provider for testing.
// All methods can be customized via function fields; Emit delivers a raw
// sample to the active subscriber.
type MockProvider struct {
	// PermissionFunc is called when RequestPermission is invoked.
	// If nil, permission is granted.
	PermissionFunc func(ctx context.Context) (bool, error)

	// SubscribeFunc is called when Subscribe is invoked.
	// If nil, the subscriber is recorded and samples flow via Emit.
	SubscribeFunc func(opts SubscribeOptions, fn func(Sample)) (Subscription, error)

	// FetchOnceFunc is called when FetchOnce is invoked.
	// If nil, returns the last emitted sample or a zero sample at now.
	FetchOnceFunc func(ctx context.Context, accuracy Accuracy) (Sample, error)

	mu         sync.Mutex
	subscriber func(Sample)
	last       *Sample
	calls      []string
	closes     int
}

// NewMockProvider creates a mock positioning provider with permissive defaults.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// RequestPermission implements Provider.
func (m *MockProvider) RequestPermission(ctx context.Context) (bool, error) {
	m.record("RequestPermission")
	if m.PermissionFunc != nil {
		return m.PermissionFunc(ctx)
	}
	return true, nil
}

// Subscribe implements Provider.
func (m *MockProvider) Subscribe(opts SubscribeOptions, fn func(Sample)) (Subscription, error) {
	m.record("Subscribe")
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(opts, fn)
	}
	m.mu.Lock()
	m.subscriber = fn
	m.mu.Unlock()
	return &mockSubscription{provider: m}, nil
}

// FetchOnce implements Provider.
func (m *MockProvider) FetchOnce(ctx context.Context, accuracy Accuracy) (Sample, error) {
	m.record("FetchOnce")
	if m.FetchOnceFunc != nil {
		return m.FetchOnceFunc(ctx, accuracy)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last != nil {
		return *m.last, nil
	}
	return Sample{Timestamp: time.Now()}, nil
}

// Emit delivers a raw sample to the current subscriber, if any.
func (m *MockProvider) Emit(s Sample) {
	m.mu.Lock()
	fn := m.subscriber
	m.last = &s
	m.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// CallCount returns the number of times a method was called.
func (m *MockProvider) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c == method {
			count++
		}
	}
	return count
}

// Closes returns how many subscriptions have been closed.
func (m *MockProvider) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

func (m *MockProvider) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

type mockSubscription struct {
	provider *MockProvider
	once     sync.Once
}

// Close implements Subscription.
func (s *mockSubscription) Close() error {
	s.once.Do(func() {
		s.provider.mu.Lock()
		s.provider.subscriber = nil
		s.provider.closes++
		s.provider.mu.Unlock()
	})
	return nil
}

// Verify MockProvider implements Provider at compile time.
var _ Provider = (*MockProvider)(nil)
