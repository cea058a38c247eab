package speechsession

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Controller is the public SessionController: recognize, stop, connect,
// disconnect, and local cancellation, sequencing connection establishment
// and configuration before launching the upstream pump and downstream
// dispatcher concurrently.
type Controller struct {
	cfg         RecognizerConfig
	session     *RequestSession
	manager     *ConnectionManager
	configurator *Configurator
	typeHandler TypeSpecificHandler
	logger      *slog.Logger

	mu      chanMutex
	conn    Connection
	source  *ReplayableAudioSource
}

// chanMutex is a trivial non-reentrant mutex built on a buffered channel,
// used only to guard disconnect/dispose bookkeeping on Controller.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	m := make(chanMutex, 1)
	m <- struct{}{}
	return m
}

func (m chanMutex) Lock()   { <-m }
func (m chanMutex) Unlock() { m <- struct{}{} }

// NewController wires a Controller from its collaborators. auth and
// factory are required: both are invoked on every connect attempt, so a
// nil value is a construction-time programmer error rather than something
// recoverable at runtime.
func NewController(cfg RecognizerConfig, auth Auth, factory ConnectionFactory, typeHandler TypeSpecificHandler, audioSourceID string, logger *slog.Logger) (*Controller, error) {
	if auth == nil {
		return nil, newArgumentError("auth must not be nil")
	}
	if factory == nil {
		return nil, newArgumentError("connection factory must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	session := NewRequestSession(audioSourceID, cfg.TelemetryEnabled)
	manager := NewConnectionManager(cfg, auth, factory, session, logger)
	configurator := NewConfigurator(manager, session, cfg, logger)
	return &Controller{
		cfg:          cfg,
		session:      session,
		manager:      manager,
		configurator: configurator,
		typeHandler:  typeHandler,
		logger:       logger,
		mu:           newChanMutex(),
	}, nil
}

// Connect eagerly establishes the connection without attaching audio.
func (c *Controller) Connect(ctx context.Context) error {
	_, err := c.manager.Connect(ctx)
	return err
}

// Disconnect issues a local, user-initiated cancellation and disposes the
// connection most recently handed out by Configure, if any. It does not wait
// for a configure attempt still in flight; a connection such an attempt
// yields afterwards is not disposed here.
func (c *Controller) Disconnect(ctx context.Context, handlers SessionHandlers) {
	c.cancelRecognitionLocal(CancelUserInitiated, CodeNoError, nil, handlers)

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Dispose()
	}
}

// StopRecognizing halts the active recognition gracefully: it marks the
// session stopped, flushes telemetry, and sends the end-of-audio frame so
// the service can close out the turn.
func (c *Controller) StopRecognizing(ctx context.Context) {
	if !c.session.IsRecognizing() {
		return
	}
	c.session.OnStopRecognizing()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	if tf, ok := buildTelemetryFrame(c.session.RequestID(), c.session.DrainTelemetry()); ok {
		_ = conn.Send(ctx, tf)
	}
	_ = conn.Send(ctx, NewBinaryFrame(c.session.RequestID(), nil))
}

// cancelRecognitionLocal marks the session stopped, flushes telemetry, and
// reports a cancellation to the caller's handlers.
func (c *Controller) cancelRecognitionLocal(reason CancellationReason, code CancellationCode, err error, handlers SessionHandlers) {
	if c.session.IsRecognizing() {
		c.session.OnStopRecognizing()
		events := c.session.DrainTelemetry()
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			if tf, ok := buildTelemetryFrame(c.session.RequestID(), events); ok {
				_ = conn.Send(context.Background(), tf)
			}
		}
	}
	if handlers.OnCancellation != nil {
		handlers.OnCancellation(CancellationEvent{
			Reason:    reason,
			Code:      code,
			Err:       err,
			SessionID: c.session.SessionID(),
			RequestID: c.session.RequestID(),
		})
	}
}

// Recognize runs one recognition to completion: connect, configure, then
// run the upstream pump and the downstream dispatcher concurrently and
// return once both have finished, or once one of them fails (which cancels
// the other's context).
func (c *Controller) Recognize(ctx context.Context, mode RecognitionMode, audioSource AudioSource, grammar *DynamicGrammarBuilder, extraConfig []byte, handlers SessionHandlers) error {
	c.manager.Reset()
	c.configurator.Reset()

	c.session.StartNewRecognition(mode)

	replayBudget := c.cfg.AvgBytesPerSec * c.cfg.TransmitLengthBeforeThrottleMs / 1000
	if replayBudget <= 0 {
		replayBudget = c.cfg.AvgBytesPerSec
	}
	source := NewReplayableAudioSource(audioSource, replayBudget)
	c.source = source

	speechCtx := NewSpeechContext(grammar)
	speechCtx.SetDeviceInfo(audioSource.DeviceInfo())

	conn, err := c.configurator.Configure(ctx, speechCtx, extraConfig)
	if err != nil {
		c.cancelRecognitionLocal(CancelError, CodeConnectionFailure, err, handlers)
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if handlers.OnSessionStarted != nil {
		handlers.OnSessionStarted(c.session.SessionID())
	}

	pump := NewUpstreamPump(c.cfg, c.session, source, c.fetchConfiguredConnection(speechCtx, extraConfig), c.logger)
	dispatcher := NewDownstreamDispatcher(
		c.session,
		c.cfg,
		handlers,
		c.typeHandler,
		c.fetchConfiguredConnection(speechCtx, extraConfig),
		c.reconfigureForNewTurn(speechCtx, extraConfig),
		c.logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pump.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })

	if err := g.Wait(); err != nil {
		c.cancelRecognitionLocal(CancelError, CodeRuntimeError, err, handlers)
		return err
	}
	return nil
}

func (c *Controller) fetchConfiguredConnection(speechCtx *SpeechContext, extraConfig []byte) fetchConnectionFunc {
	return func(ctx context.Context) (Connection, error) {
		conn, err := c.configurator.Configure(ctx, speechCtx, extraConfig)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		return conn, nil
	}
}

func (c *Controller) reconfigureForNewTurn(speechCtx *SpeechContext, extraConfig []byte) fetchConnectionFunc {
	return func(ctx context.Context) (Connection, error) {
		conn, err := c.configurator.SendContextForNewTurn(ctx, speechCtx, extraConfig)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		return conn, nil
	}
}

// Session exposes the underlying RequestSession, primarily for tests and
// diagnostics.
func (c *Controller) Session() *RequestSession { return c.session }
