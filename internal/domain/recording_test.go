package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"voice-recorder/internal/domain"
)

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"audio/webm", "webm"},
		{"audio/webm;codecs=opus", "webm"},
		{"Audio/WAV", "wav"},
		{"audio/x-wav", "wav"},
		{"audio/ogg", "ogg"},
		{"audio/mpeg", "mp3"},
		{"video/mp4", "bin"},
		{"", "bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.ExtensionFor(tt.contentType), tt.contentType)
	}
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, domain.ContentTypeWebM, domain.ContentTypeFor(".webm"))
	assert.Equal(t, domain.ContentTypeWAV, domain.ContentTypeFor("WAV"))
	assert.Equal(t, domain.ContentTypeOgg, domain.ContentTypeFor("opus"))
	assert.Equal(t, "application/octet-stream", domain.ContentTypeFor(".flac"))
}

func TestRecording_Duration(t *testing.T) {
	start := time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC)
	rec := &domain.Recording{StartedAt: start, StoppedAt: start.Add(90 * time.Second)}
	assert.Equal(t, 90*time.Second, rec.Duration())

	rec.StoppedAt = start.Add(-time.Second)
	assert.Zero(t, rec.Duration())
	assert.Zero(t, rec.Size())
}
