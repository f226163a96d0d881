// Package config provides configuration helpers for go-stride commands.
package config

import (
	"os"
	"strings"
)

// Defaults for the dashboard and speech service.
const (
	DefaultDashboardPort = "8090"
	DefaultSpeechVoice   = "en-US-standard"
)

// LogLevel returns the log level from LOG_LEVEL env var.
// Falls back to "info" if not set.
func LogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

// SpeechServiceURL returns the speech synthesis service base URL from
// SPEECH_SERVICE_URL. Empty means remote synthesis is disabled and the
// announcement queue speaks through the device voice only.
func SpeechServiceURL() string {
	return os.Getenv("SPEECH_SERVICE_URL")
}

// SpeechAPIKey returns the speech service API key from SPEECH_API_KEY.
func SpeechAPIKey() string {
	return os.Getenv("SPEECH_API_KEY")
}

// SpeechStreaming reports whether SPEECH_STREAMING selects the websocket
// streaming synthesis endpoint.
func SpeechStreaming() bool {
	switch strings.ToLower(os.Getenv("SPEECH_STREAMING")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// SpeechVoice returns the synthesis voice from SPEECH_VOICE or the default.
func SpeechVoice() string {
	if v := os.Getenv("SPEECH_VOICE"); v != "" {
		return v
	}
	return DefaultSpeechVoice
}

// DashboardPort returns the dashboard port from DASHBOARD_PORT or the default.
func DashboardPort() string {
	if port := os.Getenv("DASHBOARD_PORT"); port != "" {
		return port
	}
	return DefaultDashboardPort
}
