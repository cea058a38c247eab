package speechsession

import (
	"sync"
	"time"
)

// RecognitionMode selects single-shot vs continuous recognition.
type RecognitionMode int

const (
	ModeSingleShot RecognitionMode = iota
	ModeContinuous
)

// SessionState is the derived, internal lifecycle state of a recognition.
type SessionState int

const (
	StateIdle SessionState = iota
	StateAuthenticating
	StateConnecting
	StateConfiguring
	StateStreaming
	StateDraining
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StateConnecting:
		return "connecting"
	case StateConfiguring:
		return "configuring"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// telemetryEvent is one recorded phase timing or forwarded transport event.
type telemetryEvent struct {
	Name string    `json:"name"`
	At   time.Time `json:"at"`
	Err  string    `json:"err,omitempty"`
}

// RequestSession is the pure in-memory state machine for one recognition.
// It performs no I/O; every method is non-blocking and safe to call from
// the upstream pump and downstream dispatcher, which both run on the same
// cooperative context but may be invoked from different goroutines when
// driven by the Go scheduler, so state mutation is guarded by a mutex.
type RequestSession struct {
	mu sync.Mutex

	audioSourceID string

	sessionID   string
	requestID   string
	recogNumber int

	state SessionState
	mode  RecognitionMode

	bytesSent              int64
	currentTurnAudioOffset int64

	isRecognizing bool
	isSpeechEnded bool

	telemetryEnabled bool
	telemetry        []telemetryEvent
}

// NewRequestSession creates a session bound to a stable audio source id.
func NewRequestSession(audioSourceID string, telemetryEnabled bool) *RequestSession {
	return &RequestSession{
		audioSourceID:    audioSourceID,
		telemetryEnabled: telemetryEnabled,
	}
}

// StartNewRecognition resets per-recognition state and mints fresh ids,
// incrementing recogNumber so any still-running pump from a prior
// recognition observes supersession.
func (s *RequestSession) StartNewRecognition(mode RecognitionMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = newID()
	s.requestID = newID()
	s.recogNumber++
	s.state = StateIdle
	s.mode = mode
	s.bytesSent = 0
	s.currentTurnAudioOffset = 0
	s.isRecognizing = true
	s.isSpeechEnded = false
}

func (s *RequestSession) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *RequestSession) RequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestID
}

func (s *RequestSession) RecogNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recogNumber
}

func (s *RequestSession) Mode() RecognitionMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *RequestSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *RequestSession) setState(st SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *RequestSession) IsRecognizing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRecognizing
}

func (s *RequestSession) IsSpeechEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSpeechEnded
}

func (s *RequestSession) OnSpeechEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isSpeechEnded = true
}

func (s *RequestSession) OnStopRecognizing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRecognizing = false
}

func (s *RequestSession) OnAudioSent(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bytesSent += int64(n)
}

func (s *RequestSession) BytesSent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesSent
}

// OnServiceRecognized advances the cumulative audio offset across
// concluded turns, used when speech.enddetected arrives in continuous
// mode.
func (s *RequestSession) OnServiceRecognized(offsetTicks int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentTurnAudioOffset += offsetTicks
}

func (s *RequestSession) CurrentTurnAudioOffset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTurnAudioOffset
}

// OnServiceTurnEndResponse decides whether a new turn begins (continuous
// mode, speech not yet ended) or the recognition is over.
func (s *RequestSession) OnServiceTurnEndResponse() (beginsNewTurn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == ModeContinuous && !s.isSpeechEnded {
		s.requestID = newID()
		s.bytesSent = 0
		return true
	}
	s.isRecognizing = false
	return false
}

func (s *RequestSession) recordLocked(name string, err error) {
	if !s.telemetryEnabled {
		return
	}
	ev := telemetryEvent{Name: name, At: time.Now()}
	if err != nil {
		ev.Err = err.Error()
	}
	s.telemetry = append(s.telemetry, ev)
}

func (s *RequestSession) Record(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordLocked(name, err)
}

// DrainTelemetry returns the buffered telemetry events and clears the
// buffer. It returns nil when there is nothing to report, so callers can
// suppress an empty flush.
func (s *RequestSession) DrainTelemetry() []telemetryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.telemetry) == 0 {
		return nil
	}
	drained := s.telemetry
	s.telemetry = nil
	return drained
}
