// Package location supervises a continuous position subscription, filters
// physically implausible samples, and recovers automatically from prolonged
// staleness through a bounded retry automaton.
package location

import (
	"context"
	"time"
)

// Accuracy is a hint passed to the positioning capability.
type Accuracy int

const (
	// AccuracyBalanced trades precision for battery.
	AccuracyBalanced Accuracy = iota

	// AccuracyHigh requests the best fix the hardware can produce.
	// Used for one-shot recovery fetches.
	AccuracyHigh
)

// Sample is a single position report from the positioning capability.
// Immutable once captured.
type Sample struct {
	Latitude  float64
	Longitude float64
	Timestamp time.Time

	// Accuracy is the reported horizontal accuracy in meters, nil if the
	// capability does not report one.
	Accuracy *float64

	// Speed is the reported ground speed in m/s, nil if not reported.
	Speed *float64
}

// SubscribeOptions configure a position subscription.
type SubscribeOptions struct {
	Accuracy    Accuracy
	MinInterval time.Duration
	MinDistance float64 // meters
}

// Subscription is an open position stream. Close releases it.
type Subscription interface {
	Close() error
}

// Provider is the positioning capability the monitor supervises.
// Implementations wrap platform location services; tests use Mock.
type Provider interface {
	// RequestPermission asks for location access.
	// Returns false when the user or platform denies it.
	RequestPermission(ctx context.Context) (bool, error)

	// Subscribe opens a continuous position stream.
	// The callback is invoked for every raw sample until Close.
	Subscribe(opts SubscribeOptions, fn func(Sample)) (Subscription, error)

	// FetchOnce performs a single direct position fetch.
	FetchOnce(ctx context.Context, accuracy Accuracy) (Sample, error)
}
