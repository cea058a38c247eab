package speechsession

import (
	"context"
	"sync"
)

// AudioChunk is one unit read from an AudioSource.
type AudioChunk struct {
	Data  []byte
	IsEnd bool
}

// AudioSource is the external collaborator that produces captured audio.
// Realtime sources (e.g. a live microphone) must be paced without
// interposing a timer; file/stream sources are throttled by UpstreamPump.
type AudioSource interface {
	Read(ctx context.Context) (AudioChunk, error)
	// IsRealtime reports whether this source's production rate is
	// already bounded by wall clock.
	IsRealtime() bool
	// DeviceInfo returns a JSON-serializable description of the capture
	// device, installed into the per-turn speech context.
	DeviceInfo() any
}

// ReplayableAudioSource wraps a raw AudioSource so that a transparent
// reconnect can re-send bytes the service never acknowledged. The replay
// window is bounded by maxBufferedBytes, matching the fast-lane byte
// budget: anything the pump could have burst-sent before a disconnect
// must remain replayable.
type ReplayableAudioSource struct {
	inner           AudioSource
	maxBufferedBytes int

	mu      sync.Mutex
	buffer  [][]byte
	bufSize int
	replay  [][]byte // pending chunks to re-deliver before reading inner again
}

// NewReplayableAudioSource wraps src with a replay buffer sized to budget
// bytes.
func NewReplayableAudioSource(src AudioSource, budget int) *ReplayableAudioSource {
	return &ReplayableAudioSource{inner: src, maxBufferedBytes: budget}
}

func (r *ReplayableAudioSource) IsRealtime() bool  { return r.inner.IsRealtime() }
func (r *ReplayableAudioSource) DeviceInfo() any   { return r.inner.DeviceInfo() }

// Read returns the next chunk, preferring any buffered chunks queued for
// replay after a reconnect before reading fresh data from the inner
// source.
func (r *ReplayableAudioSource) Read(ctx context.Context) (AudioChunk, error) {
	r.mu.Lock()
	if len(r.replay) > 0 {
		chunk := r.replay[0]
		r.replay = r.replay[1:]
		r.mu.Unlock()
		return AudioChunk{Data: chunk}, nil
	}
	r.mu.Unlock()

	chunk, err := r.inner.Read(ctx)
	if err != nil {
		return AudioChunk{}, err
	}
	if !chunk.IsEnd && len(chunk.Data) > 0 {
		r.remember(chunk.Data)
	}
	return chunk, nil
}

func (r *ReplayableAudioSource) remember(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer = append(r.buffer, data)
	r.bufSize += len(data)
	for r.bufSize > r.maxBufferedBytes && len(r.buffer) > 0 {
		r.bufSize -= len(r.buffer[0])
		r.buffer = r.buffer[1:]
	}
}

// PrepareReplay queues every buffered, unacknowledged chunk for re-delivery
// on the next calls to Read. Called by the upstream pump right after it
// observes a reconnect.
func (r *ReplayableAudioSource) PrepareReplay() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replay = append([][]byte{}, r.buffer...)
}

// Acknowledge drops buffered chunks once the service has confirmed receipt
// past a byte offset, bounding memory use.
func (r *ReplayableAudioSource) Acknowledge(throughBytes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for dropped < throughBytes && len(r.buffer) > 0 {
		dropped += len(r.buffer[0])
		r.buffer = r.buffer[1:]
	}
	r.bufSize -= dropped
	if r.bufSize < 0 {
		r.bufSize = 0
	}
}
