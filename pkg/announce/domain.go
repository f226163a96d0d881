// Package announce serializes spoken output onto a single audio channel.
// Items from multiple logical domains are priority-ordered, throttled, and
// guarded by a playback watchdog so a stuck synthesis or playback can never
// wedge the channel.
package announce

import (
	"strings"
	"unicode"
)

// Domain identifies the logical source of an announcement.
type Domain int

const (
	// DomainCoach carries pace and encouragement messages.
	DomainCoach Domain = iota
	// DomainNavigation carries turn-by-turn guidance.
	DomainNavigation
	// DomainSystem carries session-level notices (GPS lost, paused).
	DomainSystem
)

// String returns the domain name.
func (d Domain) String() string {
	switch d {
	case DomainCoach:
		return "coach"
	case DomainNavigation:
		return "navigation"
	case DomainSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Priority returns the scheduling priority for the domain.
// Higher values drain first.
func (d Domain) Priority() int {
	switch d {
	case DomainSystem:
		return 3
	case DomainNavigation:
		return 2
	case DomainCoach:
		return 1
	default:
		return 0
	}
}

// VoiceParams tune how a domain's text is spoken.
type VoiceParams struct {
	Pitch float64
	Rate  float64
}

// Navigation speech is faster and slightly higher-pitched than coach
// speech so guidance cuts through during a run.
var defaultVoices = map[Domain]VoiceParams{
	DomainSystem:     {Pitch: 1.0, Rate: 1.0},
	DomainNavigation: {Pitch: 1.1, Rate: 1.15},
	DomainCoach:      {Pitch: 1.0, Rate: 1.0},
}

// Sanitize strips pictographic and other non-speakable characters and
// collapses runs of whitespace. Returns "" when nothing speakable remains.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.In(r, unicode.So, unicode.Sk, unicode.Cf) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
