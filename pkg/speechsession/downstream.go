package speechsession

import (
	"context"
	"encoding/json"
	"log/slog"
)

// TypeSpecificHandler is the sole extension point for downstream message
// paths not handled directly by DownstreamDispatcher (e.g. phrase and
// hypothesis results). Implementations must not mutate connection or pump
// state; they only report results outward via handlers.
type TypeSpecificHandler interface {
	HandleMessage(frame Frame, handlers SessionHandlers)
}

type offsetBody struct {
	Offset int64 `json:"Offset"`
}

// DownstreamDispatcher implements the receive loop: it reads one framed
// message at a time and dispatches on its Path, delegating anything it
// doesn't recognize to a TypeSpecificHandler.
type DownstreamDispatcher struct {
	session *RequestSession
	cfg     RecognizerConfig
	handlers SessionHandlers
	typeHandler TypeSpecificHandler
	logger  *slog.Logger

	// fetchConnection returns the current configured connection, cached
	// unless invalidated by a disconnect.
	fetchConnection fetchConnectionFunc
	// reconfigureForNewTurn re-sends speech.context (and speech.config,
	// if the connection was silently replaced) at the start of a new
	// turn in continuous mode.
	reconfigureForNewTurn fetchConnectionFunc

	mustReportEndOfStream bool
}

// NewDownstreamDispatcher constructs a dispatcher. typeHandler may be nil,
// in which case unrecognized paths are logged and dropped.
func NewDownstreamDispatcher(session *RequestSession, cfg RecognizerConfig, handlers SessionHandlers, typeHandler TypeSpecificHandler, fetchConnection, reconfigureForNewTurn fetchConnectionFunc, logger *slog.Logger) *DownstreamDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DownstreamDispatcher{
		session:                session,
		cfg:                    cfg,
		handlers:                handlers,
		typeHandler:             typeHandler,
		fetchConnection:         fetchConnection,
		reconfigureForNewTurn:   reconfigureForNewTurn,
		logger:                  logger,
	}
}

// Run drives the receive loop to completion.
func (d *DownstreamDispatcher) Run(ctx context.Context) error {
	for {
		if !d.session.IsRecognizing() {
			return nil
		}

		conn, err := d.fetchConnection(ctx)
		if err != nil {
			return err
		}

		frame, err := conn.Read(ctx)
		if err != nil {
			return newRuntimeError(d.session.RequestID(), "read downstream frame", err)
		}
		if frame == nil {
			// Draining: the connection has no frame to hand out. Keep
			// looping while still recognizing (fetchConnection redials
			// if the connection is now Disconnected); otherwise the loop
			// exits at its head above.
			continue
		}

		if frame.RequestID != "" && !sameRequestID(frame.RequestID, d.session.RequestID()) {
			continue
		}

		done, err := d.dispatch(ctx, conn, *frame)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func sameRequestID(a, b string) bool {
	return samePath(a, b)
}

func (d *DownstreamDispatcher) dispatch(ctx context.Context, conn Connection, frame Frame) (done bool, err error) {
	switch {
	case samePath(frame.Path, PathTurnStart):
		d.mustReportEndOfStream = true
		return false, nil

	case samePath(frame.Path, PathSpeechStartDetected):
		var body offsetBody
		_ = json.Unmarshal(frame.Body, &body)
		if d.handlers.OnSpeechStartDetected != nil {
			d.handlers.OnSpeechStartDetected(SpeechStartDetectedEvent{
				Offset:    body.Offset,
				SessionID: d.session.SessionID(),
			})
		}
		return false, nil

	case samePath(frame.Path, PathSpeechEndDetected):
		var body offsetBody
		if len(frame.Body) > 0 {
			_ = json.Unmarshal(frame.Body, &body)
		}
		offsetBefore := d.session.CurrentTurnAudioOffset()
		if d.session.Mode() == ModeContinuous {
			d.session.OnServiceRecognized(body.Offset)
		}
		if d.handlers.OnSpeechEndDetected != nil {
			d.handlers.OnSpeechEndDetected(SpeechEndDetectedEvent{
				Offset:    body.Offset + offsetBefore,
				SessionID: d.session.SessionID(),
			})
		}
		return false, nil

	case samePath(frame.Path, PathTurnEnd):
		return d.handleTurnEnd(ctx, conn)

	default:
		if d.typeHandler != nil {
			d.typeHandler.HandleMessage(frame, d.handlers)
		} else {
			d.logger.Debug("dropping unhandled downstream message", "path", frame.Path)
		}
		return false, nil
	}
}

func (d *DownstreamDispatcher) handleTurnEnd(ctx context.Context, conn Connection) (bool, error) {
	if tf, ok := buildTelemetryFrame(d.session.RequestID(), d.session.DrainTelemetry()); ok {
		_ = conn.Send(ctx, tf)
	}

	if d.session.IsSpeechEnded() && d.mustReportEndOfStream {
		d.mustReportEndOfStream = false
		if d.handlers.OnCancellation != nil {
			d.handlers.OnCancellation(CancellationEvent{
				Reason:    CancelEndOfStream,
				Code:      CodeNoError,
				SessionID: d.session.SessionID(),
				RequestID: d.session.RequestID(),
			})
		}
	}

	beginsNewTurn := d.session.OnServiceTurnEndResponse()

	if !beginsNewTurn {
		if d.handlers.OnSessionStopped != nil {
			d.handlers.OnSessionStopped(d.session.SessionID())
		}
		return true, nil
	}

	if _, err := d.reconfigureForNewTurn(ctx); err != nil {
		return false, err
	}
	return false, nil
}
