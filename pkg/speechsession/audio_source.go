package speechsession

import (
	"context"
	"io"
)

// ReaderAudioSource adapts an io.Reader (a file, a pipe, a recorded clip)
// into an AudioSource, reading fixed-size chunks. It reports IsRealtime
// as false: readers back a file or stream, never a live device, so the
// upstream pump paces sends with a timer once its fast lane is used up.
type ReaderAudioSource struct {
	r         io.Reader
	chunkSize int
	device    any
}

// NewReaderAudioSource wraps r, reading chunkSize bytes at a time.
func NewReaderAudioSource(r io.Reader, chunkSize int, device any) *ReaderAudioSource {
	if chunkSize <= 0 {
		chunkSize = 3200
	}
	return &ReaderAudioSource{r: r, chunkSize: chunkSize, device: device}
}

func (s *ReaderAudioSource) Read(ctx context.Context) (AudioChunk, error) {
	buf := make([]byte, s.chunkSize)
	n, err := s.r.Read(buf)
	if n > 0 {
		return AudioChunk{Data: buf[:n]}, nil
	}
	if err == io.EOF {
		return AudioChunk{IsEnd: true}, nil
	}
	if err != nil {
		return AudioChunk{}, err
	}
	return AudioChunk{}, nil
}

func (s *ReaderAudioSource) IsRealtime() bool { return false }
func (s *ReaderAudioSource) DeviceInfo() any  { return s.device }

// DeviceAudioSource wraps an io.Reader that is known to already be paced
// by a live capture device (e.g. a microphone callback feeding a pipe):
// IsRealtime reports true, so the upstream pump never interposes a timer
// delay between reads.
type DeviceAudioSource struct {
	*ReaderAudioSource
}

// NewDeviceAudioSource wraps r as a realtime capture source.
func NewDeviceAudioSource(r io.Reader, chunkSize int, device any) *DeviceAudioSource {
	return &DeviceAudioSource{ReaderAudioSource: NewReaderAudioSource(r, chunkSize, device)}
}

func (s *DeviceAudioSource) IsRealtime() bool { return true }
