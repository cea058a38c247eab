// Package speechsession implements the client-side engine that drives a
// bidirectional, long-lived connection to a cloud speech-recognition
// service: authentication and connection management, the
// speech.config/speech.context handshake, paced upstream audio delivery,
// downstream event dispatch, and the turn-based recognition lifecycle
// across continuous and single-shot modes.
package speechsession
