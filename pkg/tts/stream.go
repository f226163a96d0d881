package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const providerStream = "stream"

// StreamRemote implements Provider over the synthesis service's websocket
// streaming endpoint. Audio arrives in chunks and is assembled into a
// complete buffer, which keeps time-to-first-byte low on long texts.
type StreamRemote struct {
	config *Config
	logger *slog.Logger
	dialer *websocket.Dialer
}

// streamChunk is one websocket frame from the streaming endpoint.
type streamChunk struct {
	Audio string `json:"audio,omitempty"` // base64-encoded audio bytes
	Final bool   `json:"final,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewStreamRemote creates a websocket streaming synthesis provider.
func NewStreamRemote(opts ...Option) (*StreamRemote, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &StreamRemote{
		config: cfg,
		logger: cfg.Logger.With("component", "tts.stream"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}, nil
}

// wsURL converts the configured HTTP base URL to the websocket endpoint.
func (s *StreamRemote) wsURL() string {
	base := s.config.BaseURL
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/v1/synthesize/stream"
}

// Synthesize streams audio chunks over the websocket and returns the
// assembled buffer.
func (s *StreamRemote) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := synthesizeRequest{
		Text:  text,
		Voice: s.config.Voice,
		Pitch: s.config.Pitch,
		Rate:  s.config.Rate,
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, WrapError(providerStream, fmt.Errorf("send request: %w", err))
	}

	deadline := time.Now().Add(s.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	var audio []byte
	var firstByte int64
	for {
		var chunk streamChunk
		if err := conn.ReadJSON(&chunk); err != nil {
			return nil, WrapError(providerStream, fmt.Errorf("read chunk: %w", err))
		}
		if chunk.Error != "" {
			return nil, &APIError{
				StatusCode: http.StatusBadGateway,
				Message:    chunk.Error,
				Provider:   providerStream,
			}
		}
		if chunk.Audio != "" {
			decoded, err := base64.StdEncoding.DecodeString(chunk.Audio)
			if err != nil {
				return nil, WrapError(providerStream, fmt.Errorf("decode chunk: %w", err))
			}
			if firstByte == 0 {
				firstByte = time.Since(start).Milliseconds()
			}
			audio = append(audio, decoded...)
		}
		if chunk.Final {
			break
		}
	}

	if len(audio) == 0 {
		return nil, WrapError(providerStream, ErrEmptyAudio)
	}

	s.logger.Debug("streamed audio",
		"chars", len(text),
		"bytes", len(audio),
		"first_byte_ms", firstByte,
	)

	return &AudioResult{
		Audio:     audio,
		CharCount: len(text),
		LatencyMs: firstByte,
	}, nil
}

// Health dials the streaming endpoint and closes it.
func (s *StreamRemote) Health(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Close releases provider resources.
func (s *StreamRemote) Close() error {
	return nil
}

// dial opens the websocket connection with auth headers.
func (s *StreamRemote) dial(ctx context.Context) (*websocket.Conn, error) {
	headers := http.Header{}
	if s.config.APIKey != "" {
		headers.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.wsURL(), headers)
	if err != nil {
		if resp != nil {
			return nil, WrapError(providerStream,
				fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err))
		}
		return nil, WrapError(providerStream, fmt.Errorf("websocket dial failed: %w", err))
	}
	return conn, nil
}

// Verify StreamRemote implements Provider at compile time.
var _ Provider = (*StreamRemote)(nil)
