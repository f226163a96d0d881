package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/strideworks/go-stride/internal/httpc"
)

const providerRemote = "remote"

// Remote implements Provider against the HTTP speech-synthesis service.
type Remote struct {
	config *Config
	client *http.Client
	logger *slog.Logger
}

// synthesizeRequest is the JSON request body for POST /v1/synthesize.
type synthesizeRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Pitch float64 `json:"pitch,omitempty"`
	Rate  float64 `json:"rate,omitempty"`
}

// NewRemote creates a remote HTTP synthesis provider.
func NewRemote(opts ...Option) (*Remote, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Remote{
		config: cfg,
		client: httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "tts.remote"),
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (r *Remote) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	return r.SynthesizeVoice(ctx, text, r.config.Pitch, r.config.Rate)
}

// SynthesizeVoice converts text to audio with per-call pitch and rate,
// overriding the configured defaults.
func (r *Remote) SynthesizeVoice(ctx context.Context, text string, pitch, rate float64) (*AudioResult, error) {
	start := time.Now()

	payload := synthesizeRequest{
		Text:  text,
		Voice: r.config.Voice,
		Pitch: pitch,
		Rate:  rate,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerRemote, fmt.Errorf("marshal payload: %w", err))
	}

	url := r.config.BaseURL + "/v1/synthesize"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerRemote, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if r.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, WrapError(providerRemote, fmt.Errorf("synthesis request: %w", err))
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	if resp.StatusCode != http.StatusOK {
		return nil, r.parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerRemote, fmt.Errorf("read response: %w", err))
	}
	if len(audio) == 0 {
		return nil, WrapError(providerRemote, ErrEmptyAudio)
	}

	r.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
	)

	return &AudioResult{
		Audio:       audio,
		ContentType: resp.Header.Get("Content-Type"),
		CharCount:   len(text),
		LatencyMs:   latency,
	}, nil
}

// Health checks service connectivity.
func (r *Remote) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.config.BaseURL+"/healthz", nil)
	if err != nil {
		return WrapError(providerRemote, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return WrapError(providerRemote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return r.parseError(resp)
	}
	return nil
}

// Close releases provider resources.
func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

// parseError extracts a structured error from a non-200 response.
func (r *Remote) parseError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Provider:   providerRemote,
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// Verify Remote implements Provider at compile time.
var _ Provider = (*Remote)(nil)
