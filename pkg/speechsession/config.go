package speechsession

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// RecognizerConfig carries the tunables that shape connection, pacing, and
// telemetry behavior for a session. Fields map onto the connection query
// parameters and config-message properties the service expects.
type RecognizerConfig struct {
	// Endpoint is the wss:// base URL of the recognition service.
	Endpoint string

	// Format, Language, From, To, Profanity mirror the connection query
	// parameters of the same name.
	Format    string
	Language  string
	From      string
	To        string
	Profanity string

	StoreAudio              bool
	WordLevelTimestamps     bool
	InitialSilenceTimeoutMs int
	EndSilenceTimeoutMs     int
	StableIntermediateThreshold string
	StableTranslation           bool

	// TransmitLengthBeforeThrottleMs is the fast-lane byte budget window,
	// expressed as the duration of unthrottled audio (at AvgBytesPerSec)
	// the pump will send before switching to real-time pacing. Mirrors
	// the service property SPEECH-TransmitLengthBeforThrottleMs.
	TransmitLengthBeforeThrottleMs int

	// AvgBytesPerSec is the nominal byte rate of the audio format in use
	// (e.g. 32000 for 16kHz/16-bit mono PCM).
	AvgBytesPerSec int

	// TelemetryEnabled toggles whether telemetry is collected and sent;
	// when false, the speech.config payload is reduced to a minimal
	// system-context document.
	TelemetryEnabled bool

	// HandshakeTimeout bounds the transport dial.
	HandshakeTimeout time.Duration
}

// DefaultRecognizerConfig returns the documented defaults.
func DefaultRecognizerConfig() RecognizerConfig {
	return RecognizerConfig{
		Format:                          "simple",
		TransmitLengthBeforeThrottleMs:  5000,
		AvgBytesPerSec:                  32000,
		TelemetryEnabled:                true,
		HandshakeTimeout:                10 * time.Second,
	}
}

// Validate checks field-level invariants, returning the first violation.
func (c RecognizerConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("speechsession: Endpoint must not be empty")
	}
	if c.AvgBytesPerSec <= 0 {
		return fmt.Errorf("speechsession: AvgBytesPerSec must be positive, got %d", c.AvgBytesPerSec)
	}
	if c.TransmitLengthBeforeThrottleMs < 0 {
		return fmt.Errorf("speechsession: TransmitLengthBeforeThrottleMs must not be negative, got %d", c.TransmitLengthBeforeThrottleMs)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("speechsession: HandshakeTimeout must be positive, got %s", c.HandshakeTimeout)
	}
	return nil
}

// LoadRecognizerConfigFromEnv builds a RecognizerConfig from environment
// variables, applying defaults for anything unset and validating the
// result.
func LoadRecognizerConfigFromEnv() (RecognizerConfig, error) {
	cfg := DefaultRecognizerConfig()

	cfg.Endpoint = envOr("SPEECHSESSION_ENDPOINT", cfg.Endpoint)
	cfg.Format = envOr("SPEECHSESSION_FORMAT", cfg.Format)
	cfg.Language = envOr("SPEECHSESSION_LANGUAGE", cfg.Language)
	cfg.From = envOr("SPEECHSESSION_FROM", cfg.From)
	cfg.To = envOr("SPEECHSESSION_TO", cfg.To)
	cfg.Profanity = envOr("SPEECHSESSION_PROFANITY", cfg.Profanity)
	cfg.StableIntermediateThreshold = envOr("SPEECHSESSION_STABLE_INTERMEDIATE_THRESHOLD", cfg.StableIntermediateThreshold)

	cfg.StoreAudio = envBoolOr("SPEECHSESSION_STORE_AUDIO", cfg.StoreAudio)
	cfg.WordLevelTimestamps = envBoolOr("SPEECHSESSION_WORD_LEVEL_TIMESTAMPS", cfg.WordLevelTimestamps)
	cfg.StableTranslation = envBoolOr("SPEECHSESSION_STABLE_TRANSLATION", cfg.StableTranslation)
	cfg.TelemetryEnabled = envBoolOr("SPEECHSESSION_TELEMETRY_ENABLED", cfg.TelemetryEnabled)

	cfg.InitialSilenceTimeoutMs = envIntOr("SPEECHSESSION_INITIAL_SILENCE_TIMEOUT_MS", cfg.InitialSilenceTimeoutMs)
	cfg.EndSilenceTimeoutMs = envIntOr("SPEECHSESSION_END_SILENCE_TIMEOUT_MS", cfg.EndSilenceTimeoutMs)
	cfg.TransmitLengthBeforeThrottleMs = envIntOr("SPEECHSESSION_TRANSMIT_LENGTH_BEFORE_THROTTLE_MS", cfg.TransmitLengthBeforeThrottleMs)
	cfg.AvgBytesPerSec = envIntOr("SPEECHSESSION_AVG_BYTES_PER_SEC", cfg.AvgBytesPerSec)

	cfg.HandshakeTimeout = envDurationOr("SPEECHSESSION_HANDSHAKE_TIMEOUT", cfg.HandshakeTimeout)

	if err := cfg.Validate(); err != nil {
		return RecognizerConfig{}, err
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
