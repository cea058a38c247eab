package speechsession

import "testing"

func TestStartNewRecognitionIncrementsRecogNumberAndMintsFreshIDs(t *testing.T) {
	s := NewRequestSession("mic-1", true)

	s.StartNewRecognition(ModeSingleShot)
	firstSession, firstRequest, firstNum := s.SessionID(), s.RequestID(), s.RecogNumber()

	if !isValidID(firstSession) || !isValidID(firstRequest) {
		t.Fatalf("ids must be valid: session=%q request=%q", firstSession, firstRequest)
	}
	if !s.IsRecognizing() {
		t.Fatalf("expected IsRecognizing() true after StartNewRecognition")
	}

	s.StartNewRecognition(ModeContinuous)
	if s.SessionID() == firstSession || s.RequestID() == firstRequest {
		t.Fatalf("expected fresh ids on second StartNewRecognition")
	}
	if s.RecogNumber() != firstNum+1 {
		t.Fatalf("RecogNumber() = %d, want %d", s.RecogNumber(), firstNum+1)
	}
}

func TestOnServiceTurnEndResponseContinuousBeginsNewTurn(t *testing.T) {
	s := NewRequestSession("mic-1", false)
	s.StartNewRecognition(ModeContinuous)
	firstRequest := s.RequestID()
	s.OnAudioSent(1000)

	beginsNewTurn := s.OnServiceTurnEndResponse()
	if !beginsNewTurn {
		t.Fatalf("expected continuous, non-ended recognition to begin a new turn")
	}
	if s.RequestID() == firstRequest {
		t.Fatalf("expected a fresh requestId for the new turn")
	}
	if s.BytesSent() != 0 {
		t.Fatalf("BytesSent() = %d, want reset to 0 for new turn", s.BytesSent())
	}
	if !s.IsRecognizing() {
		t.Fatalf("expected still recognizing mid-continuous-session")
	}
}

func TestOnServiceTurnEndResponseSingleShotEndsRecognition(t *testing.T) {
	s := NewRequestSession("mic-1", false)
	s.StartNewRecognition(ModeSingleShot)

	beginsNewTurn := s.OnServiceTurnEndResponse()
	if beginsNewTurn {
		t.Fatalf("single-shot recognition must not begin a new turn")
	}
	if s.IsRecognizing() {
		t.Fatalf("expected IsRecognizing() false after single-shot turn end")
	}
}

func TestOnServiceTurnEndResponseContinuousSpeechEndedStops(t *testing.T) {
	s := NewRequestSession("mic-1", false)
	s.StartNewRecognition(ModeContinuous)
	s.OnSpeechEnded()

	beginsNewTurn := s.OnServiceTurnEndResponse()
	if beginsNewTurn {
		t.Fatalf("continuous recognition with speech ended must not begin a new turn")
	}
	if s.IsRecognizing() {
		t.Fatalf("expected IsRecognizing() false once speech has ended")
	}
}

func TestOnServiceRecognizedAccumulatesAcrossTurns(t *testing.T) {
	s := NewRequestSession("mic-1", false)
	s.StartNewRecognition(ModeContinuous)

	s.OnServiceRecognized(10_000_000)
	if s.CurrentTurnAudioOffset() != 10_000_000 {
		t.Fatalf("CurrentTurnAudioOffset() = %d, want 10_000_000", s.CurrentTurnAudioOffset())
	}
	s.OnServiceRecognized(10_000_000)
	if s.CurrentTurnAudioOffset() != 20_000_000 {
		t.Fatalf("CurrentTurnAudioOffset() = %d, want 20_000_000", s.CurrentTurnAudioOffset())
	}
}

func TestTelemetryDrainSuppressesEmptyFlush(t *testing.T) {
	s := NewRequestSession("mic-1", true)
	if drained := s.DrainTelemetry(); drained != nil {
		t.Fatalf("DrainTelemetry() on empty session = %v, want nil", drained)
	}

	s.Record("connect_start", nil)
	drained := s.DrainTelemetry()
	if len(drained) != 1 {
		t.Fatalf("DrainTelemetry() = %v, want 1 event", drained)
	}
	if drained2 := s.DrainTelemetry(); drained2 != nil {
		t.Fatalf("DrainTelemetry() after drain = %v, want nil", drained2)
	}
}

func TestTelemetryDisabledRecordsNothing(t *testing.T) {
	s := NewRequestSession("mic-1", false)
	s.Record("connect_start", nil)
	if drained := s.DrainTelemetry(); drained != nil {
		t.Fatalf("DrainTelemetry() with telemetry disabled = %v, want nil", drained)
	}
}
