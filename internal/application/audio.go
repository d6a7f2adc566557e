package application

import (
	"context"
	"errors"
)

// ErrAccessDenied is returned by a CaptureFacility when the platform refuses
// to grant an input stream (no device, no permission, missing backend).
var ErrAccessDenied = errors.New("audio capture access denied")

// CaptureFacility is the platform service that grants live audio input.
type CaptureFacility interface {
	// RequestAudioStream asks for an audio-only input stream. It may block
	// while the platform decides and fails with ErrAccessDenied on refusal.
	RequestAudioStream(ctx context.Context) (MediaStream, error)
	// NewRecorder builds a recorder bound to a granted stream.
	NewRecorder(stream MediaStream) (MediaRecorder, error)
	// ContentType is the type of the byte stream the recorders emit.
	ContentType() string
	Name() string
}

type MediaStream interface {
	Tracks() []MediaTrack
}

// MediaTrack is a hardware resource held by a stream.
type MediaTrack interface {
	Stop()
}

// MediaRecorder emits encoded fragments of a stream while started.
//
// Data delivers fragments in the order they were produced. The facility
// closes the channel after the last fragment once a requested Stop has
// completed; the close is the stop confirmation.
type MediaRecorder interface {
	Start() error
	Stop() error
	Data() <-chan []byte
}

type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}
}
