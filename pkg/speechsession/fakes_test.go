package speechsession

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
)

// fakeAuth is a scripted Auth collaborator recording how many times each
// method was called.
type fakeAuth struct {
	fetchCalls         atomic.Int32
	fetchOnExpiryCalls atomic.Int32
	fetchErr           error
}

func (a *fakeAuth) Fetch(ctx context.Context, fetchEventID string) (AuthInfo, error) {
	a.fetchCalls.Add(1)
	if a.fetchErr != nil {
		return AuthInfo{}, a.fetchErr
	}
	return AuthInfo{Token: "fake-token"}, nil
}

func (a *fakeAuth) FetchOnExpiry(ctx context.Context, fetchEventID string) (AuthInfo, error) {
	a.fetchOnExpiryCalls.Add(1)
	return AuthInfo{Token: "fake-token-refreshed"}, nil
}

// fakeConnection is an in-memory Connection used to drive deterministic
// scenarios without a real network.
type fakeConnection struct {
	openStatus int
	openErr    error

	mu       sync.Mutex
	sent     []Frame
	inbound  []*Frame
	inboundI int
	state    atomic.Int32
	events   chan ConnectionEvent
	disposed atomic.Bool
}

func newFakeConnection(openStatus int, inbound []*Frame) *fakeConnection {
	return &fakeConnection{
		openStatus: openStatus,
		inbound:    inbound,
		events:     make(chan ConnectionEvent, 8),
	}
}

func (c *fakeConnection) Open(ctx context.Context) (int, http.Header, error) {
	if c.openErr != nil {
		return 0, nil, c.openErr
	}
	if c.openStatus == 200 {
		c.state.Store(int32(ConnectionConnected))
	}
	return c.openStatus, http.Header{}, nil
}

func (c *fakeConnection) Send(ctx context.Context, frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, frame)
	return nil
}

func (c *fakeConnection) SentFrames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeConnection) Read(ctx context.Context) (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inboundI >= len(c.inbound) {
		c.state.Store(int32(ConnectionDisconnected))
		return nil, fmt.Errorf("fake connection exhausted")
	}
	f := c.inbound[c.inboundI]
	c.inboundI++
	return f, nil
}

func (c *fakeConnection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

func (c *fakeConnection) Events() <-chan ConnectionEvent {
	return c.events
}

func (c *fakeConnection) Dispose() error {
	c.disposed.Store(true)
	c.state.Store(int32(ConnectionDisconnected))
	return nil
}

// fakeConnectionFactory hands out a scripted sequence of connections, one
// per Create call (extra calls reuse the last entry).
type fakeConnectionFactory struct {
	mu    sync.Mutex
	conns []*fakeConnection
	next  int
}

func (f *fakeConnectionFactory) Create(cfg RecognizerConfig, auth AuthInfo, connectionID string) (Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil, fmt.Errorf("no fake connections scripted")
	}
	idx := f.next
	if idx >= len(f.conns) {
		idx = len(f.conns) - 1
	} else {
		f.next++
	}
	return f.conns[idx], nil
}

// fakeAudioSource yields a fixed sequence of chunks, optionally flagged
// realtime.
type fakeAudioSource struct {
	chunks    []AudioChunk
	i         int
	realtime  bool
	deviceInfo any
}

func (s *fakeAudioSource) Read(ctx context.Context) (AudioChunk, error) {
	if s.i >= len(s.chunks) {
		return AudioChunk{IsEnd: true}, nil
	}
	c := s.chunks[s.i]
	s.i++
	return c, nil
}

func (s *fakeAudioSource) IsRealtime() bool { return s.realtime }
func (s *fakeAudioSource) DeviceInfo() any  { return s.deviceInfo }

func textFrame(path, requestID string, v any) *Frame {
	body, _ := json.Marshal(v)
	return &Frame{Type: FrameText, Path: path, RequestID: requestID, Body: body}
}
