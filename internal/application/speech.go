package application

import (
	"context"
	"errors"
)

var ErrTranscriptionDisabled = errors.New("speech-to-text not configured: set openai.api_key to enable transcription")

type SpeechToText interface {
	// Transcribe converts audio to text. format is the file extension of the
	// audio container ("webm", "wav", ...).
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// NoopSTT is used when no transcription backend is configured.
type NoopSTT struct{}

func (n *NoopSTT) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return "", ErrTranscriptionDisabled
}
