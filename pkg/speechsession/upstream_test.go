package speechsession

import (
	"context"
	"testing"
	"time"
)

func TestPacingDelayWithinFastLaneIsZero(t *testing.T) {
	cfg := DefaultRecognizerConfig()
	cfg.AvgBytesPerSec = 32000
	cfg.TransmitLengthBeforeThrottleMs = 5000 // 160,000 byte fast lane

	session := NewRequestSession("mic-1", false)
	session.StartNewRecognition(ModeSingleShot)
	source := NewReplayableAudioSource(&fakeAudioSource{}, 320000)
	pump := NewUpstreamPump(cfg, session, source, nil, nil)

	session.OnAudioSent(160000)
	if d := pump.pacingDelay(3200); d != 0 {
		t.Fatalf("pacingDelay() = %v at exactly the fast-lane boundary, want 0", d)
	}
}

func TestPacingDelayAfterFastLaneTargetsTwiceRealtime(t *testing.T) {
	cfg := DefaultRecognizerConfig()
	cfg.AvgBytesPerSec = 32000
	cfg.TransmitLengthBeforeThrottleMs = 5000

	session := NewRequestSession("mic-1", false)
	session.StartNewRecognition(ModeSingleShot)
	source := NewReplayableAudioSource(&fakeAudioSource{}, 320000)
	pump := NewUpstreamPump(cfg, session, source, nil, nil)

	session.OnAudioSent(160001) // one byte past the fast lane
	got := pump.pacingDelay(3200)
	want := time.Duration(float64(3200) * 1000 / (32000 * 2)) * time.Millisecond
	if diff := got - want; diff > 20*time.Millisecond || diff < -20*time.Millisecond {
		t.Fatalf("pacingDelay() = %v, want within 20ms of %v", got, want)
	}
}

func TestUpstreamPumpSendsEndOfAudioAndMarksSpeechEnded(t *testing.T) {
	conn := newFakeConnection(200, nil)
	session := NewRequestSession("mic-1", false)
	session.StartNewRecognition(ModeSingleShot)
	source := NewReplayableAudioSource(&fakeAudioSource{
		chunks: []AudioChunk{{Data: []byte("abcd")}},
	}, 320000)

	calls := 0
	fetch := func(ctx context.Context) (Connection, error) { calls++; return conn, nil }
	pump := NewUpstreamPump(DefaultRecognizerConfig(), session, source, fetch, nil)

	if err := pump.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !session.IsSpeechEnded() {
		t.Fatalf("expected IsSpeechEnded() true after EOS")
	}

	sent := conn.SentFrames()
	if len(sent) != 2 {
		t.Fatalf("sent %d frames, want 2 (audio, eos)", len(sent))
	}
	last := sent[len(sent)-1]
	if last.Path != PathAudio || len(last.Body) != 0 {
		t.Fatalf("last frame = %+v, want an empty-body audio frame", last)
	}
}

func TestUpstreamPumpExitsOnSupersessionWithoutSendingMore(t *testing.T) {
	conn := newFakeConnection(200, nil)
	session := NewRequestSession("mic-1", false)
	session.StartNewRecognition(ModeContinuous)
	source := NewReplayableAudioSource(&fakeAudioSource{
		chunks: []AudioChunk{{Data: []byte("abcd")}, {Data: []byte("efgh")}},
	}, 320000)

	fetch := func(ctx context.Context) (Connection, error) {
		// Simulate supersession occurring concurrently, right as the
		// pump is about to fetch a connection for its second send.
		if len(conn.SentFrames()) >= 1 {
			session.StartNewRecognition(ModeContinuous)
		}
		return conn, nil
	}
	pump := NewUpstreamPump(DefaultRecognizerConfig(), session, source, fetch, nil)

	if err := pump.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(conn.SentFrames()) != 1 {
		t.Fatalf("sent %d frames after supersession, want exactly 1", len(conn.SentFrames()))
	}
}

func TestUpstreamPumpRealtimeSourceNeverDelays(t *testing.T) {
	conn := newFakeConnection(200, nil)
	session := NewRequestSession("mic-1", false)
	session.StartNewRecognition(ModeSingleShot)
	cfg := DefaultRecognizerConfig()
	cfg.TransmitLengthBeforeThrottleMs = 0 // force throttled-lane math immediately
	source := NewReplayableAudioSource(&fakeAudioSource{
		realtime: true,
		chunks:   []AudioChunk{{Data: make([]byte, 64000)}, {Data: make([]byte, 64000)}},
	}, 320000)

	fetch := func(ctx context.Context) (Connection, error) { return conn, nil }
	pump := NewUpstreamPump(cfg, session, source, fetch, nil)

	start := time.Now()
	if err := pump.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("realtime source pump took %v, want no timer-paced delay", elapsed)
	}
}
