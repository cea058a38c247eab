package speechsession

import (
	"context"
	"testing"
)

func TestReplayableAudioSourceReplaysUnacknowledgedChunksAfterReconnect(t *testing.T) {
	inner := &fakeAudioSource{chunks: []AudioChunk{{Data: []byte("one")}, {Data: []byte("two")}}}
	r := NewReplayableAudioSource(inner, 1024)

	c1, err := r.Read(context.Background())
	if err != nil || string(c1.Data) != "one" {
		t.Fatalf("Read() = (%v, %v), want (\"one\", nil)", c1, err)
	}
	c2, err := r.Read(context.Background())
	if err != nil || string(c2.Data) != "two" {
		t.Fatalf("Read() = (%v, %v), want (\"two\", nil)", c2, err)
	}

	r.PrepareReplay()

	replayed1, _ := r.Read(context.Background())
	replayed2, _ := r.Read(context.Background())
	if string(replayed1.Data) != "one" || string(replayed2.Data) != "two" {
		t.Fatalf("replayed chunks = (%q, %q), want (\"one\", \"two\")", replayed1.Data, replayed2.Data)
	}

	// After the replay queue is drained, fresh reads resume from the
	// inner source (which is exhausted here, so IsEnd is reported).
	fresh, _ := r.Read(context.Background())
	if !fresh.IsEnd {
		t.Fatalf("expected IsEnd once both the replay queue and inner source are drained")
	}
}

func TestReplayableAudioSourceAcknowledgeBoundsBuffer(t *testing.T) {
	inner := &fakeAudioSource{chunks: []AudioChunk{{Data: []byte("aaaa")}, {Data: []byte("bbbb")}}}
	r := NewReplayableAudioSource(inner, 1024)

	r.Read(context.Background())
	r.Read(context.Background())
	r.Acknowledge(4) // drop "aaaa"

	r.PrepareReplay()
	replayed, _ := r.Read(context.Background())
	if string(replayed.Data) != "bbbb" {
		t.Fatalf("replayed = %q, want \"bbbb\" (acknowledged chunk must not replay)", replayed.Data)
	}
}

func TestReplayableAudioSourceBoundsBufferToBudget(t *testing.T) {
	inner := &fakeAudioSource{chunks: []AudioChunk{{Data: make([]byte, 100)}, {Data: make([]byte, 100)}, {Data: make([]byte, 100)}}}
	r := NewReplayableAudioSource(inner, 150) // budget smaller than all three chunks combined

	for i := 0; i < 3; i++ {
		r.Read(context.Background())
	}
	r.mu.Lock()
	size := r.bufSize
	r.mu.Unlock()
	if size > 150 {
		t.Fatalf("buffered size = %d, want <= budget 150", size)
	}
}
