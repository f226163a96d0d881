package announce

import (
	"log/slog"
	"sync"
)

// Player plays an audio file from disk and reports completion through done.
// Implementations must call done exactly once per Play, including after Stop.
type Player interface {
	Play(path string, done func(error))
	Stop()
}

// Speaker is the device's built-in speech synthesis, used when the remote
// synthesis collaborator fails. done must be called exactly once per Speak.
type Speaker interface {
	Speak(text string, params VoiceParams, done func(error))
	Stop()
}

// LogSpeaker is a Speaker that logs instead of producing audio. Useful for
// headless simulation runs.
type LogSpeaker struct {
	Logger *slog.Logger
}

// Speak logs the text and completes immediately.
func (s *LogSpeaker) Speak(text string, params VoiceParams, done func(error)) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("speak", "text", text, "pitch", params.Pitch, "rate", params.Rate)
	if done != nil {
		done(nil)
	}
}

// Stop is a no-op.
func (s *LogSpeaker) Stop() {}

var _ Speaker = (*LogSpeaker)(nil)

// MockPlayer is a Player for tests. Playback stays open until a test calls
// Finish, or completes immediately when AutoFinish is set.
type MockPlayer struct {
	mu         sync.Mutex
	AutoFinish bool
	paths      []string
	done       func(error)
	stops      int
}

// Play records the path and holds the done callback.
func (p *MockPlayer) Play(path string, done func(error)) {
	p.mu.Lock()
	p.paths = append(p.paths, path)
	auto := p.AutoFinish
	if auto {
		p.done = nil
	} else {
		p.done = done
	}
	p.mu.Unlock()

	if auto && done != nil {
		done(nil)
	}
}

// Stop records the stop call.
func (p *MockPlayer) Stop() {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
}

// Finish completes the in-flight playback with err.
func (p *MockPlayer) Finish(err error) {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()

	if done != nil {
		done(err)
	}
}

// Plays returns the paths played so far.
func (p *MockPlayer) Plays() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

// Stops returns how many times Stop was called.
func (p *MockPlayer) Stops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

var _ Player = (*MockPlayer)(nil)

// MockSpeaker is a Speaker for tests, recording spoken text.
type MockSpeaker struct {
	mu       sync.Mutex
	SpeakErr error
	spoken   []string
	params   []VoiceParams
	stops    int
}

// Speak records the text and completes immediately.
func (s *MockSpeaker) Speak(text string, params VoiceParams, done func(error)) {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.params = append(s.params, params)
	err := s.SpeakErr
	s.mu.Unlock()

	if done != nil {
		done(err)
	}
}

// Stop records the stop call.
func (s *MockSpeaker) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

// Spoken returns the texts spoken so far.
func (s *MockSpeaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

// Params returns the voice parameters used so far.
func (s *MockSpeaker) Params() []VoiceParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]VoiceParams(nil), s.params...)
}

// Stops returns how many times Stop was called.
func (s *MockSpeaker) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

var _ Speaker = (*MockSpeaker)(nil)
