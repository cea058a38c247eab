package speechsession

import (
	"context"
	"log/slog"
)

// Configurator owns the single-flight "configured connection" future. It
// guarantees that, for any physical connection it hands out, a
// speech.config send has completed before a speech.context send is
// attempted, and that speech.config is sent at most once per connection.
type Configurator struct {
	manager *ConnectionManager
	session *RequestSession
	cfg     RecognizerConfig
	logger  *slog.Logger

	future       singleFlightFuture[Connection]
	configuredConnIDs map[Connection]bool
}

// NewConfigurator constructs a Configurator bound to a ConnectionManager.
func NewConfigurator(manager *ConnectionManager, session *RequestSession, cfg RecognizerConfig, logger *slog.Logger) *Configurator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Configurator{
		manager:           manager,
		session:           session,
		cfg:               cfg,
		logger:            logger,
		configuredConnIDs: make(map[Connection]bool),
	}
}

// Reset forces the next Configure call to re-send speech.context, even
// against an otherwise-still-valid connection; speech.config is re-sent
// only if that call obtains a connection not configured before.
// SessionController calls this at the start of every recognize().
func (c *Configurator) Reset() {
	c.future.reset()
}

// Configure returns a connection on which speech.config (if not already
// sent on this physical connection) and a fresh speech.context have both
// been sent successfully.
func (c *Configurator) Configure(ctx context.Context, speechCtx *SpeechContext, extraConfig []byte) (Connection, error) {
	return c.future.run(func() (Connection, error) {
		conn, err := c.manager.Connect(ctx)
		if err != nil {
			return nil, err
		}

		if !c.configuredConnIDs[conn] {
			body, err := buildSpeechConfigBody(c.cfg, extraConfig)
			if err != nil {
				return nil, newConnectionFailureError("build speech.config body", err)
			}
			if err := conn.Send(ctx, NewTextFrame(PathSpeechConfig, c.session.RequestID(), body)); err != nil {
				return nil, newConnectionFailureError("send speech.config", err)
			}
			c.configuredConnIDs[conn] = true
		}

		ctxBody, err := speechCtx.Build()
		if err != nil {
			return nil, newConnectionFailureError("build speech.context body", err)
		}
		if err := conn.Send(ctx, NewTextFrame(PathSpeechContext, c.session.RequestID(), ctxBody)); err != nil {
			return nil, newConnectionFailureError("send speech.context", err)
		}

		return conn, nil
	}, func(conn Connection) bool {
		return conn.State() == ConnectionDisconnected
	})
}

// SendContextForNewTurn re-sends speech.context on the current connection
// for a new turn within a continuous recognition, routed back through
// Configure so a silently-redialed connection transparently gets
// speech.config resent first.
func (c *Configurator) SendContextForNewTurn(ctx context.Context, speechCtx *SpeechContext, extraConfig []byte) (Connection, error) {
	c.Reset()
	return c.Configure(ctx, speechCtx, extraConfig)
}
