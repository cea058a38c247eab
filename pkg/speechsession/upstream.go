package speechsession

import (
	"context"
	"log/slog"
	"time"
)

// fetchConnectionFunc is the pump's view of Configurator.Configure: it may
// redial and reconfigure transparently on each call.
type fetchConnectionFunc func(ctx context.Context) (Connection, error)

// UpstreamPump implements the read-and-upload cycle described in the
// component design: burst through a fast lane, then pace sends at twice
// real time, scheduling the next read immediately (no timer) for realtime
// audio sources and via a timer otherwise.
type UpstreamPump struct {
	cfg             RecognizerConfig
	session         *RequestSession
	source          *ReplayableAudioSource
	fetchConnection fetchConnectionFunc
	logger          *slog.Logger

	startRecogNumber int
	maxUnthrottled   int64
	lastConn         Connection
}

// NewUpstreamPump constructs a pump bound to the given source and
// connection supplier. startRecogNumber must be captured from the session
// at the moment recognize() begins, so the pump can detect supersession.
func NewUpstreamPump(cfg RecognizerConfig, session *RequestSession, source *ReplayableAudioSource, fetchConnection fetchConnectionFunc, logger *slog.Logger) *UpstreamPump {
	if logger == nil {
		logger = slog.Default()
	}
	maxUnthrottled := int64(cfg.AvgBytesPerSec) * int64(cfg.TransmitLengthBeforeThrottleMs) / 1000
	return &UpstreamPump{
		cfg:              cfg,
		session:          session,
		source:           source,
		fetchConnection:  fetchConnection,
		logger:           logger,
		startRecogNumber: session.RecogNumber(),
		maxUnthrottled:   maxUnthrottled,
	}
}

// Run drives the pump to completion: it returns nil once end-of-stream has
// been sent, or once the pump observes a stopped session, speech already
// ended, or supersession by a newer recognition. It has no disposal check of
// its own: it stops only through the session's state, an error, or ctx.
func (p *UpstreamPump) Run(ctx context.Context) error {
	for {
		if done := p.checkTermination(); done {
			return nil
		}

		conn, err := p.fetchConnection(ctx)
		if err != nil {
			return err
		}
		if p.lastConn != nil && conn != p.lastConn {
			// The connection was silently replaced (reconnect after a
			// mid-stream disconnect): re-queue everything the service
			// never acknowledged before reading fresh data.
			p.logger.Info("connection replaced, replaying unacknowledged audio", "request_id", p.session.RequestID())
			p.source.PrepareReplay()
		}
		p.lastConn = conn

		chunk, err := p.source.Read(ctx)
		if err != nil {
			if p.session.IsSpeechEnded() {
				return nil
			}
			return newRuntimeError(p.session.RequestID(), "read audio chunk", err)
		}

		// A stop or a superseding recognition may have landed while this
		// cycle fetched the connection or read audio.
		if p.checkTermination() {
			return nil
		}

		if chunk.IsEnd {
			if err := conn.Send(ctx, NewBinaryFrame(p.session.RequestID(), nil)); err != nil {
				return newRuntimeError(p.session.RequestID(), "send end-of-audio", err)
			}
			p.session.OnSpeechEnded()
			return nil
		}

		if len(chunk.Data) == 0 {
			continue
		}

		if err := conn.Send(ctx, NewBinaryFrame(p.session.RequestID(), chunk.Data)); err != nil {
			return newRuntimeError(p.session.RequestID(), "send audio", err)
		}
		p.session.OnAudioSent(len(chunk.Data))

		if p.source.IsRealtime() {
			continue
		}

		if delay := p.pacingDelay(len(chunk.Data)); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// pacingDelay returns how long to wait before the next send once the fast
// lane has been exhausted. Within the fast lane, sends are unthrottled.
func (p *UpstreamPump) pacingDelay(sentBytes int) time.Duration {
	if p.session.BytesSent() <= p.maxUnthrottled {
		return 0
	}
	if p.cfg.AvgBytesPerSec <= 0 {
		return 0
	}
	// Target twice real time, matching the source protocol's pacing
	// formula: nextSendTime = now + L*1000/(avgBytesPerSec*2) ms.
	millis := float64(sentBytes) * 1000 / (float64(p.cfg.AvgBytesPerSec) * 2)
	return time.Duration(millis) * time.Millisecond
}

func (p *UpstreamPump) checkTermination() bool {
	if !p.session.IsRecognizing() {
		return true
	}
	if p.session.IsSpeechEnded() {
		return true
	}
	if p.session.RecogNumber() != p.startRecogNumber {
		return true
	}
	return false
}
