package announce

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strideworks/go-stride/pkg/tts"
)

var (
	// ErrPlaybackTimeout indicates the watchdog terminated a stuck playback.
	ErrPlaybackTimeout = errors.New("announce: playback watchdog timeout")

	// ErrInterrupted indicates playback was halted by an interrupt or clear.
	ErrInterrupted = errors.New("announce: playback interrupted")
)

// Synthesizer produces audio for announcement text. *tts.Remote, *tts.Chain
// and *tts.Mock all satisfy it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*tts.AudioResult, error)
}

// voiceSynthesizer is an optional upgrade for providers that accept
// per-call pitch and rate.
type voiceSynthesizer interface {
	SynthesizeVoice(ctx context.Context, text string, pitch, rate float64) (*tts.AudioResult, error)
}

// Item is a pending or in-flight announcement.
type Item struct {
	ID         string
	Text       string
	Domain     Domain
	Priority   int
	EnqueuedAt time.Time

	onComplete func(error)
	watchdog   *time.Timer

	// finished and discarded are guarded by the queue mutex.
	finished  bool
	discarded bool
}

// Config holds queue settings.
type Config struct {
	// Throttle is the minimum gap between consecutive playbacks.
	Throttle time.Duration

	// WatchdogTimeout bounds how long a single playback may run without
	// signalling completion.
	WatchdogTimeout time.Duration

	// SynthesisTimeout bounds the remote synthesis request.
	SynthesisTimeout time.Duration

	Logger *slog.Logger
}

// Option configures the queue.
type Option func(*Config)

// DefaultConfig returns queue settings with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Throttle:         3 * time.Second,
		WatchdogTimeout:  45 * time.Second,
		SynthesisTimeout: 15 * time.Second,
		Logger:           slog.Default(),
	}
}

// WithThrottle sets the minimum gap between playbacks.
func WithThrottle(d time.Duration) Option {
	return func(c *Config) { c.Throttle = d }
}

// WithWatchdogTimeout sets the stuck-playback timeout.
func WithWatchdogTimeout(d time.Duration) Option {
	return func(c *Config) { c.WatchdogTimeout = d }
}

// WithSynthesisTimeout sets the remote synthesis timeout.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(c *Config) { c.SynthesisTimeout = d }
}

// WithLogger sets the queue logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Queue serializes announcements onto the single audio channel. Items are
// ordered by priority descending, FIFO within equal priority. At most one
// playback is active at any instant.
type Queue struct {
	mu sync.Mutex

	cfg     *Config
	synth   Synthesizer
	player  Player
	speaker Speaker
	voices  map[Domain]VoiceParams
	logger  *slog.Logger

	items    []*Item
	current  *Item
	enabled  bool
	closed   bool
	lastDone time.Time

	throttleTimer *time.Timer
}

// NewQueue creates an announcement queue. player and speaker must be
// non-nil; synth may be nil to force device speech for every item.
func NewQueue(synth Synthesizer, player Player, speaker Speaker, opts ...Option) *Queue {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	voices := make(map[Domain]VoiceParams, len(defaultVoices))
	for d, p := range defaultVoices {
		voices[d] = p
	}

	return &Queue{
		cfg:     cfg,
		synth:   synth,
		player:  player,
		speaker: speaker,
		voices:  voices,
		logger:  cfg.Logger.With("component", "announce.queue"),
		enabled: true,
	}
}

// Enqueue queues text for playback and returns the item ID, or "" when the
// queue is disabled or the text is empty after sanitizing.
func (q *Queue) Enqueue(text string, domain Domain, onComplete func(error)) string {
	sanitized := Sanitize(text)

	q.mu.Lock()
	if q.closed || !q.enabled || sanitized == "" {
		q.mu.Unlock()
		return ""
	}

	item := &Item{
		ID:         uuid.NewString(),
		Text:       sanitized,
		Domain:     domain,
		Priority:   domain.Priority(),
		EnqueuedAt: time.Now(),
		onComplete: onComplete,
	}
	q.insertLocked(item)
	q.mu.Unlock()

	q.process()
	return item.ID
}

// EnqueueNavigation queues turn guidance.
func (q *Queue) EnqueueNavigation(text string, onComplete func(error)) string {
	return q.Enqueue(text, DomainNavigation, onComplete)
}

// EnqueueCoach queues a coaching message.
func (q *Queue) EnqueueCoach(text string, onComplete func(error)) string {
	return q.Enqueue(text, DomainCoach, onComplete)
}

// EnqueueSystem queues a session-level notice.
func (q *Queue) EnqueueSystem(text string, onComplete func(error)) string {
	return q.Enqueue(text, DomainSystem, onComplete)
}

// insertLocked places item ahead of the first pending item with a strictly
// lower priority, keeping FIFO order within equal priority.
func (q *Queue) insertLocked(item *Item) {
	for i, existing := range q.items {
		if existing.Priority < item.Priority {
			q.items = append(q.items, nil)
			copy(q.items[i+1:], q.items[i:])
			q.items[i] = item
			return
		}
	}
	q.items = append(q.items, item)
}

// Interrupt halts current playback, discarding its completion callback, and
// queues text for immediate consideration. The throttle window is waived.
func (q *Queue) Interrupt(text string, domain Domain) {
	sanitized := Sanitize(text)

	q.mu.Lock()
	if q.closed || !q.enabled || sanitized == "" {
		q.mu.Unlock()
		return
	}

	cur := q.current
	if cur != nil {
		cur.discarded = true
	}
	q.lastDone = time.Time{}

	q.insertLocked(&Item{
		ID:         uuid.NewString(),
		Text:       sanitized,
		Domain:     domain,
		Priority:   domain.Priority(),
		EnqueuedAt: time.Now(),
	})
	q.mu.Unlock()

	if cur != nil {
		q.player.Stop()
		q.speaker.Stop()
		q.finish(cur, ErrInterrupted)
	} else {
		q.process()
	}
}

// Clear drops all pending items and halts current playback.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	cur := q.current
	if cur != nil {
		cur.discarded = true
	}
	q.mu.Unlock()

	if cur != nil {
		q.player.Stop()
		q.speaker.Stop()
		q.finish(cur, ErrInterrupted)
	}
}

// ClearDomain drops pending items from one domain. If the currently playing
// item belongs to that domain its playback is halted.
func (q *Queue) ClearDomain(domain Domain) {
	q.mu.Lock()
	kept := q.items[:0]
	for _, item := range q.items {
		if item.Domain != domain {
			kept = append(kept, item)
		}
	}
	q.items = kept

	var cur *Item
	if q.current != nil && q.current.Domain == domain {
		cur = q.current
		cur.discarded = true
	}
	q.mu.Unlock()

	if cur != nil {
		q.player.Stop()
		q.speaker.Stop()
		q.finish(cur, ErrInterrupted)
	}
}

// SetEnabled enables or disables the channel. Disabling clears the queue
// and halts playback; re-enabling does not replay discarded items.
func (q *Queue) SetEnabled(enabled bool) {
	q.mu.Lock()
	q.enabled = enabled

	var cur *Item
	if !enabled {
		q.items = nil
		if q.throttleTimer != nil {
			q.throttleTimer.Stop()
			q.throttleTimer = nil
		}
		cur = q.current
		if cur != nil {
			cur.discarded = true
		}
	}
	q.mu.Unlock()

	if cur != nil {
		q.player.Stop()
		q.speaker.Stop()
		q.finish(cur, ErrInterrupted)
	}
	if enabled {
		q.process()
	}
}

// SetCoachVoice configures the coach domain's voice parameters.
func (q *Queue) SetCoachVoice(params VoiceParams) {
	q.mu.Lock()
	q.voices[DomainCoach] = params
	q.mu.Unlock()
}

// QueueLength returns the number of pending items.
func (q *Queue) QueueLength() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsPlaying reports whether an item is currently playing.
func (q *Queue) IsPlaying() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current != nil
}

// Close shuts the queue down, releasing all pending work.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.items = nil
	if q.throttleTimer != nil {
		q.throttleTimer.Stop()
		q.throttleTimer = nil
	}
	cur := q.current
	if cur != nil {
		cur.discarded = true
	}
	q.mu.Unlock()

	if cur != nil {
		q.player.Stop()
		q.speaker.Stop()
		q.finish(cur, ErrInterrupted)
	}
	return nil
}

// process considers the head of the queue for playback. It reschedules
// itself when the throttle window has not yet elapsed.
func (q *Queue) process() {
	q.mu.Lock()
	item := q.nextLocked()
	q.mu.Unlock()

	if item != nil {
		go q.play(item)
	}
}

func (q *Queue) nextLocked() *Item {
	if q.closed || !q.enabled || q.current != nil || len(q.items) == 0 {
		return nil
	}

	if !q.lastDone.IsZero() {
		if wait := q.cfg.Throttle - time.Since(q.lastDone); wait > 0 {
			if q.throttleTimer == nil {
				q.throttleTimer = time.AfterFunc(wait, func() {
					q.mu.Lock()
					q.throttleTimer = nil
					q.mu.Unlock()
					q.process()
				})
			}
			return nil
		}
	}

	item := q.items[0]
	q.items = q.items[1:]
	q.current = item
	item.watchdog = time.AfterFunc(q.cfg.WatchdogTimeout, func() {
		q.watchdogFired(item)
	})
	return item
}

// play synthesizes and plays one item, falling back to device speech when
// synthesis fails. Completion is routed through finish.
func (q *Queue) play(item *Item) {
	q.mu.Lock()
	if item.finished {
		q.mu.Unlock()
		return
	}
	params := q.voices[item.Domain]
	q.mu.Unlock()

	if q.synth != nil {
		path, err := q.synthesizeToFile(item.Text, params)
		if err == nil {
			q.mu.Lock()
			finished := item.finished
			q.mu.Unlock()
			if finished {
				os.Remove(path)
				return
			}
			q.player.Play(path, func(perr error) {
				os.Remove(path)
				q.finish(item, perr)
			})
			return
		}
		q.logger.Warn("synthesis failed, falling back to device speech",
			"id", item.ID, "error", err)
	}

	q.mu.Lock()
	finished := item.finished
	q.mu.Unlock()
	if finished {
		return
	}
	q.speaker.Speak(item.Text, params, func(serr error) {
		q.finish(item, serr)
	})
}

// synthesizeToFile requests audio and persists it to a transient file.
// The caller owns the file and must remove it.
func (q *Queue) synthesizeToFile(text string, params VoiceParams) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.SynthesisTimeout)
	defer cancel()

	var (
		result *tts.AudioResult
		err    error
	)
	if vs, ok := q.synth.(voiceSynthesizer); ok {
		result, err = vs.SynthesizeVoice(ctx, text, params.Pitch, params.Rate)
	} else {
		result, err = q.synth.Synthesize(ctx, text)
	}
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp("", "announce-*.audio")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(result.Audio); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// finish settles one item exactly once: cancels the watchdog, records the
// completion time for throttling, clears the current marker, invokes the
// completion callback, and resumes processing.
func (q *Queue) finish(item *Item, err error) {
	q.mu.Lock()
	if item.finished {
		q.mu.Unlock()
		return
	}
	item.finished = true
	if item.watchdog != nil {
		item.watchdog.Stop()
	}
	if q.current == item {
		q.current = nil
	}
	discarded := item.discarded
	if !discarded {
		q.lastDone = time.Now()
	}
	cb := item.onComplete
	q.mu.Unlock()

	if cb != nil && !discarded {
		cb(err)
	}
	q.process()
}

func (q *Queue) watchdogFired(item *Item) {
	q.mu.Lock()
	if item.finished {
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	q.logger.Warn("playback watchdog fired", "id", item.ID, "text", item.Text)
	q.player.Stop()
	q.speaker.Stop()
	q.finish(item, ErrPlaybackTimeout)
}
