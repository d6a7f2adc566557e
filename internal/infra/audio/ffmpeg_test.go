package audio_test

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-recorder/internal/application"
	"voice-recorder/internal/domain"
	"voice-recorder/internal/infra/audio"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestFFmpegConfig_Args(t *testing.T) {
	cfg := audio.FFmpegConfig{
		InputFormat: "pulse",
		InputDevice: "default",
		SampleRate:  16000,
		Channels:    1,
	}

	assert.Equal(t, []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "pulse",
		"-i", "default",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libopus",
		"-f", "webm",
		"pipe:1",
	}, cfg.Args())
}

func TestFFmpegFacility_Defaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	facility := audio.NewFFmpegFacility(audio.FFmpegConfig{SampleRate: 16000, Channels: 1}, logger)

	assert.Equal(t, "ffmpeg", facility.Name())
	assert.Equal(t, domain.ContentTypeWebM, facility.ContentType())
}

func TestCommandFacility_MissingBinaryDenied(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	facility := audio.NewCommandFacility([]string{"definitely-not-a-recorder-binary"}, domain.ContentTypeWAV, logger)

	_, err := facility.RequestAudioStream(context.Background())
	assert.ErrorIs(t, err, application.ErrAccessDenied)

	recorder := application.NewRecorder(facility, logger)
	assert.False(t, recorder.BeginCapture(context.Background()))
	assert.False(t, recorder.IsRecording())
}

func TestCommandFacility_StopInterruptsProcess(t *testing.T) {
	requireShell(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	facility := audio.NewCommandFacility([]string{"sh", "-c", "printf hello; exec sleep 30"}, domain.ContentTypeWAV, logger)

	stream, err := facility.RequestAudioStream(context.Background())
	require.NoError(t, err)
	rec, err := facility.NewRecorder(stream)
	require.NoError(t, err)
	require.NoError(t, rec.Start())

	select {
	case chunk := <-rec.Data():
		assert.Equal(t, "hello", string(chunk))
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for output")
	}

	require.NoError(t, rec.Stop())

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-rec.Data():
			if !ok {
				for _, track := range stream.Tracks() {
					track.Stop()
				}
				return
			}
		case <-deadline:
			t.Fatal("process did not exit after interrupt")
		}
	}
}

func TestCommandFacility_WithRecorder(t *testing.T) {
	requireShell(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	facility := audio.NewCommandFacility([]string{"sh", "-c", "trap '' INT; printf abc; printf def"}, domain.ContentTypeWAV, logger)
	recorder := application.NewRecorder(facility, logger)

	require.True(t, recorder.BeginCapture(context.Background()))
	time.Sleep(300 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := recorder.EndCapture(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(got.Data))
	assert.False(t, recorder.IsRecording())
}

func TestCommandFacility_TrackKillsRunningProcess(t *testing.T) {
	requireShell(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	facility := audio.NewCommandFacility([]string{"sh", "-c", "while :; do sleep 1; done"}, domain.ContentTypeWAV, logger)

	stream, err := facility.RequestAudioStream(context.Background())
	require.NoError(t, err)
	rec, err := facility.NewRecorder(stream)
	require.NoError(t, err)
	require.NoError(t, rec.Start())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, track := range stream.Tracks() {
			track.Stop()
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("track stop did not reap the process")
	}

	_, ok := <-rec.Data()
	assert.False(t, ok)
}
