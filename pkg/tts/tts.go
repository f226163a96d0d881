// Package tts provides a unified interface for speech-synthesis providers.
//
// The package supports a remote HTTP synthesis service, a websocket
// streaming variant, and a mock for testing. All providers implement the
// Provider interface, enabling seamless switching without changing caller
// code; Chain composes providers into a fallback sequence.
//
// Example usage:
//
//	provider, _ := tts.NewRemote(
//	    tts.WithBaseURL("https://speech.example.com"),
//	    tts.WithVoice("en-US-standard"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Turn left in 90 meters")
//	// result.Audio contains encoded audio bytes
package tts

import (
	"context"
	"time"
)

// Provider defines the speech-synthesis provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks provider connectivity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the encoded audio data.
	Audio []byte

	// ContentType is the MIME type of the audio data (e.g., audio/mpeg).
	ContentType string

	// Duration is the estimated playback duration, zero if unknown.
	Duration time.Duration

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the time to first byte in milliseconds.
	LatencyMs int64
}
