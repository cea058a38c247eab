package speechsession

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ConnectionState mirrors the transport-level states a Connection can be
// observed in.
type ConnectionState int

const (
	ConnectionNone ConnectionState = iota
	ConnectionConnecting
	ConnectionConnected
	ConnectionDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionNone:
		return "none"
	case ConnectionConnecting:
		return "connecting"
	case ConnectionConnected:
		return "connected"
	case ConnectionDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnectionEvent is a transport-originated diagnostic, forwarded into
// session telemetry.
type ConnectionEvent struct {
	Name string
	At   time.Time
	Err  error
}

// Connection is a framed duplex message channel to the service. A single
// Connection is shared by the upstream pump and the downstream dispatcher.
type Connection interface {
	// Open performs the handshake and returns the HTTP-style status code
	// the service responded with (200 on success, 403 on auth expiry),
	// along with the response header set (for X-ConnectionId, etc).
	Open(ctx context.Context) (status int, header http.Header, err error)
	Send(ctx context.Context, frame Frame) error
	// Read returns the next inbound frame. A nil frame with a nil error
	// indicates the read queue is draining: no frame is available and no
	// read error is being reported. wsConnection returns this once its read
	// loop has ended, after a normal close or after the read error was
	// already reported by an earlier call.
	Read(ctx context.Context) (*Frame, error)
	State() ConnectionState
	Events() <-chan ConnectionEvent
	Dispose() error
}

// ConnectionFactory creates a new, unopened Connection for a recognition
// attempt.
type ConnectionFactory interface {
	Create(cfg RecognizerConfig, auth AuthInfo, connectionID string) (Connection, error)
}

// wsConnectionFactory is the production ConnectionFactory, dialing the
// service over a websocket.
type wsConnectionFactory struct{}

// NewWebSocketConnectionFactory returns the default ConnectionFactory used
// against a real recognition service.
func NewWebSocketConnectionFactory() ConnectionFactory {
	return &wsConnectionFactory{}
}

func (f *wsConnectionFactory) Create(cfg RecognizerConfig, auth AuthInfo, connectionID string) (Connection, error) {
	u, err := buildConnectionURL(cfg, connectionID)
	if err != nil {
		return nil, newConnectionFailureError("build connection url", err)
	}
	return &wsConnection{
		url:     u,
		cfg:     cfg,
		auth:    auth,
		events:  make(chan ConnectionEvent, 32),
		readCh:  make(chan *Frame, 32),
		errCh:   make(chan error, 1),
	}, nil
}

func buildConnectionURL(cfg RecognizerConfig, connectionID string) (string, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("cid", connectionID)
	setIfNonEmpty(q, "format", cfg.Format)
	setIfNonEmpty(q, "language", cfg.Language)
	setIfNonEmpty(q, "from", cfg.From)
	setIfNonEmpty(q, "to", cfg.To)
	setIfNonEmpty(q, "profanity", cfg.Profanity)
	q.Set("storeAudio", strconv.FormatBool(cfg.StoreAudio))
	q.Set("wordLevelTimestamps", strconv.FormatBool(cfg.WordLevelTimestamps))
	if cfg.InitialSilenceTimeoutMs > 0 {
		q.Set("initialSilenceTimeoutMs", strconv.Itoa(cfg.InitialSilenceTimeoutMs))
	}
	if cfg.EndSilenceTimeoutMs > 0 {
		q.Set("endSilenceTimeoutMs", strconv.Itoa(cfg.EndSilenceTimeoutMs))
	}
	setIfNonEmpty(q, "stableIntermediateThreshold", cfg.StableIntermediateThreshold)
	q.Set("stableTranslation", strconv.FormatBool(cfg.StableTranslation))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func setIfNonEmpty(q url.Values, key, val string) {
	if val != "" {
		q.Set(key, val)
	}
}

// wsConnection is the websocket-backed Connection implementation, grounded
// on the dial-then-dedicated-read-loop shape of a typical streaming
// speech client.
type wsConnection struct {
	url  string
	cfg  RecognizerConfig
	auth AuthInfo

	conn  *websocket.Conn
	state atomic.Int32

	writeMu sync.Mutex
	events  chan ConnectionEvent
	readCh  chan *Frame
	errCh   chan error
	closed  atomic.Bool
}

func (c *wsConnection) Open(ctx context.Context) (int, http.Header, error) {
	c.state.Store(int32(ConnectionConnecting))

	headers := http.Header{}
	if c.auth.Token != "" {
		headers.Set("Authorization", "Bearer "+c.auth.Token)
	}
	for k, v := range c.auth.Headers {
		headers.Set(k, v)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.url, headers)
	if err != nil {
		c.state.Store(int32(ConnectionNone))
		status := 0
		var header http.Header
		if resp != nil {
			status = resp.StatusCode
			header = resp.Header
			resp.Body.Close()
		}
		if status != 0 {
			return status, header, nil
		}
		return 0, nil, fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	c.state.Store(int32(ConnectionConnected))
	go c.readLoop()
	// A completed websocket upgrade reports 101; callers expect 200.
	return http.StatusOK, resp.Header, nil
}

func (c *wsConnection) readLoop() {
	defer close(c.readCh)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.state.Store(int32(ConnectionDisconnected))
			c.emitEvent("disconnected", err)
			select {
			case c.errCh <- err:
			default:
			}
			return
		}
		frame, err := decodeInboundFrame(msgType, data)
		if err != nil {
			c.emitEvent("decode_error", err)
			continue
		}
		c.readCh <- frame
	}
}

func decodeInboundFrame(msgType int, data []byte) (*Frame, error) {
	var header struct {
		Path      string `json:"path"`
		RequestID string `json:"requestId"`
	}
	switch msgType {
	case websocket.TextMessage:
		if err := json.Unmarshal(data, &header); err != nil {
			return nil, fmt.Errorf("decode text frame: %w", err)
		}
		return &Frame{Type: FrameText, Path: header.Path, RequestID: header.RequestID, Body: data}, nil
	case websocket.BinaryMessage:
		return &Frame{Type: FrameBinary, Path: PathAudio, Body: data}, nil
	default:
		return nil, fmt.Errorf("unsupported websocket message type %d", msgType)
	}
}

func (c *wsConnection) Send(ctx context.Context, frame Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.State() != ConnectionConnected {
		return newConnectionFailureError("send on non-connected connection", nil)
	}

	switch frame.Type {
	case FrameText:
		return c.conn.WriteMessage(websocket.TextMessage, frame.Body)
	case FrameBinary:
		return c.conn.WriteMessage(websocket.BinaryMessage, frame.Body)
	default:
		return fmt.Errorf("unknown frame type %d", frame.Type)
	}
}

func (c *wsConnection) Read(ctx context.Context) (*Frame, error) {
	select {
	case f, ok := <-c.readCh:
		if !ok {
			select {
			case err := <-c.errCh:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil, nil
				}
				return nil, fmt.Errorf("read loop ended: %w", err)
			default:
				return nil, nil
			}
		}
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *wsConnection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *wsConnection) Events() <-chan ConnectionEvent {
	return c.events
}

func (c *wsConnection) emitEvent(name string, err error) {
	select {
	case c.events <- ConnectionEvent{Name: name, At: time.Now(), Err: err}:
	default:
	}
}

func (c *wsConnection) Dispose() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.state.Store(int32(ConnectionDisconnected))
	if c.conn == nil {
		return nil
	}
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
