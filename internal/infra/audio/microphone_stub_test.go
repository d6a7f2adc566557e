//go:build !portaudio
// +build !portaudio

package audio_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"voice-recorder/internal/application"
	"voice-recorder/internal/infra/audio"
)

func TestMicrophoneFacility_StubDeniesAccess(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mic := audio.NewMicrophoneFacility(application.DefaultAudioFormat(), 1024, logger)

	_, err := mic.RequestAudioStream(context.Background())
	assert.ErrorIs(t, err, application.ErrAccessDenied)

	rec := application.NewRecorder(mic, logger)
	assert.False(t, rec.BeginCapture(context.Background()))
	assert.False(t, rec.IsRecording())
}
