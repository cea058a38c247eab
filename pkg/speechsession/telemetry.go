package speechsession

import "encoding/json"

// systemContext describes the system-context document sent with every
// speech.config; when telemetry is disabled it is the whole payload.
type systemContext struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// telemetryPayload is the document sent on the "telemetry" path.
type telemetryPayload struct {
	Events []telemetryEvent `json:"events"`
}

// buildTelemetryFrame serializes buffered telemetry events into a Text
// frame, or returns (Frame{}, false) when there is nothing to flush, so
// the caller can suppress the send entirely.
func buildTelemetryFrame(requestID string, events []telemetryEvent) (Frame, bool) {
	if len(events) == 0 {
		return Frame{}, false
	}
	body, err := json.Marshal(telemetryPayload{Events: events})
	if err != nil {
		return Frame{}, false
	}
	return NewTextFrame(PathTelemetry, requestID, body), true
}

// configContext is the context envelope nested under speech.config.
type configContext struct {
	System systemContext `json:"system"`
}

type configPayloadFull struct {
	Context configContext `json:"context"`
	Config  json.RawMessage `json:"config,omitempty"`
}

type configPayloadMinimal struct {
	Context configContext `json:"context"`
}

// buildSpeechConfigBody renders the speech.config payload. When telemetry
// is disabled the payload is reduced to {context:{system:...}}, per the
// suppression invariant; otherwise the caller-supplied recognizer config
// fields are nested under "config".
func buildSpeechConfigBody(cfg RecognizerConfig, extra json.RawMessage) ([]byte, error) {
	sys := systemContext{Name: "speechsession", Version: "1"}
	if !cfg.TelemetryEnabled {
		return json.Marshal(configPayloadMinimal{Context: configContext{System: sys}})
	}
	return json.Marshal(configPayloadFull{
		Context: configContext{System: sys},
		Config:  extra,
	})
}
