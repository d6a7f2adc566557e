//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"voice-recorder/internal/application"
	"voice-recorder/internal/domain"
)

// MicrophoneFacility stub when portaudio is not available
type MicrophoneFacility struct {
	logger *slog.Logger
}

func NewMicrophoneFacility(_ application.AudioFormat, _ int, logger *slog.Logger) *MicrophoneFacility {
	return &MicrophoneFacility{logger: logger}
}

func (m *MicrophoneFacility) Name() string {
	return "microphone"
}

func (m *MicrophoneFacility) ContentType() string {
	return domain.ContentTypeWAV
}

func (m *MicrophoneFacility) RequestAudioStream(_ context.Context) (application.MediaStream, error) {
	return nil, fmt.Errorf("%w: microphone not available: rebuild with -tags portaudio", application.ErrAccessDenied)
}

func (m *MicrophoneFacility) NewRecorder(_ application.MediaStream) (application.MediaRecorder, error) {
	return nil, fmt.Errorf("microphone not available")
}
