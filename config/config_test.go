package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-recorder/config"
)

func TestLoad_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ffmpeg", cfg.Audio.Driver)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 1, cfg.Audio.Channels)
	assert.Equal(t, 1024, cfg.Audio.FramesPerBuffer)
	assert.Equal(t, "reject", cfg.Recorder.OnActiveBegin)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30, cfg.HTTP.RequestsPerMinute)
	assert.Equal(t, "whisper-1", cfg.OpenAI.Model)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	require.NotNil(t, cfg.Log.MaxBackups)
	require.NotNil(t, cfg.Log.MaxAgeDays)
	assert.Equal(t, 3, *cfg.Log.MaxBackups)
	assert.Equal(t, 28, *cfg.Log.MaxAgeDays)
}

func TestParse_KeepsExplicitZeroLogRetention(t *testing.T) {
	cfg, err := config.Parse([]byte("log:\n  max_backups: 0\n  max_age_days: 0\n"))
	require.NoError(t, err)

	require.NotNil(t, cfg.Log.MaxBackups)
	require.NotNil(t, cfg.Log.MaxAgeDays)
	assert.Equal(t, 0, *cfg.Log.MaxBackups)
	assert.Equal(t, 0, *cfg.Log.MaxAgeDays)
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("RECORDER_TEST_OPENAI_KEY", "sk-test")
	t.Setenv("RECORDER_TEST_TOKEN", "secret")

	cfg, err := config.Parse([]byte(`
audio:
  driver: file
  file: ./samples/hello.webm
recorder:
  on_active_begin: restart
http:
  addr: 127.0.0.1:9000
  auth_token: ${RECORDER_TEST_TOKEN}
openai:
  api_key: ${RECORDER_TEST_OPENAI_KEY}
  language: en
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Audio.Driver)
	assert.Equal(t, "./samples/hello.webm", cfg.Audio.File)
	assert.Equal(t, "restart", cfg.Recorder.OnActiveBegin)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, "secret", cfg.HTTP.AuthToken)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown driver", "audio:\n  driver: pulse\n"},
		{"unknown policy", "recorder:\n  on_active_begin: queue\n"},
		{"file driver without file", "audio:\n  driver: file\n"},
		{"command driver without command", "audio:\n  driver: command\n"},
		{"sample rate too low", "audio:\n  sample_rate: 100\n"},
		{"bad log level", "log:\n  level: verbose\n"},
		{"negative max backups", "log:\n  max_backups: -1\n"},
		{"malformed yaml", "audio: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
