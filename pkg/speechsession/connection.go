package speechsession

import (
	"context"
	"fmt"
	"log/slog"
)

// ConnectionManager owns the single-flight "connected" future: Connect
// returns the same in-flight or cached Connection to every caller unless
// the cached connection has failed or been observed Disconnected, in
// which case it transparently redials.
type ConnectionManager struct {
	cfg     RecognizerConfig
	auth    Auth
	factory ConnectionFactory
	session *RequestSession
	logger  *slog.Logger

	future         singleFlightFuture[Connection]
	usedFetchOnExpiry bool
}

// NewConnectionManager constructs a ConnectionManager. logger defaults to
// slog.Default() when nil.
func NewConnectionManager(cfg RecognizerConfig, auth Auth, factory ConnectionFactory, session *RequestSession, logger *slog.Logger) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{cfg: cfg, auth: auth, factory: factory, session: session, logger: logger}
}

// Connect returns an open Connection, dialing (and re-authenticating on a
// 403) as needed.
func (m *ConnectionManager) Connect(ctx context.Context) (Connection, error) {
	return m.future.run(func() (Connection, error) {
		return m.connectOnce(ctx, false)
	}, func(conn Connection) bool {
		return conn.State() == ConnectionDisconnected
	})
}

// Reset forces the next Connect call to redial rather than reuse a cached
// connection, even if that connection still reports itself Connected.
// SessionController calls this at the start of every recognize() so a new
// recognition always re-sends speech.config and speech.context.
func (m *ConnectionManager) Reset() {
	m.future.reset()
}

func (m *ConnectionManager) connectOnce(ctx context.Context, isRetry bool) (Connection, error) {
	authFetchEventID := newID()
	connectionID := newID()

	m.session.Record("auth_start", nil)
	var authInfo AuthInfo
	var err error
	if isRetry {
		authInfo, err = m.auth.FetchOnExpiry(ctx, authFetchEventID)
		m.usedFetchOnExpiry = true
	} else {
		authInfo, err = m.auth.Fetch(ctx, authFetchEventID)
	}
	if err != nil {
		m.session.Record("auth_failed", err)
		return nil, newAuthFailureError("credential fetch failed", err)
	}
	m.session.Record("auth_complete", nil)

	conn, err := m.factory.Create(m.cfg, authInfo, connectionID)
	if err != nil {
		return nil, newConnectionFailureError("create connection", err)
	}

	go m.forwardEvents(conn)

	m.session.Record("connect_start", nil)
	status, _, err := conn.Open(ctx)
	if err != nil {
		m.session.Record("connect_failed", err)
		return nil, newConnectionFailureError("transport open failed", err)
	}

	switch {
	case status == 200:
		m.session.Record("connect_complete", nil)
		return conn, nil
	case status == 403 && !isRetry:
		m.logger.Warn("connection rejected as expired, retrying with fresh credentials", "connection_id", connectionID)
		conn.Dispose()
		return m.connectOnce(ctx, true)
	default:
		err := fmt.Errorf("unexpected status %d from endpoint %s", status, m.cfg.Endpoint)
		m.session.Record("connect_failed", err)
		return nil, newConnectionFailureError(err.Error(), nil)
	}
}

func (m *ConnectionManager) forwardEvents(conn Connection) {
	for ev := range conn.Events() {
		m.session.Record("transport_event:"+ev.Name, ev.Err)
	}
}
