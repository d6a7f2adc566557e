package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	Recorder RecorderConfig `yaml:"recorder"`
	HTTP     HTTPConfig     `yaml:"http"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Log      LogConfig      `yaml:"log"`
}

type AudioConfig struct {
	Driver          string   `yaml:"driver" validate:"oneof=ffmpeg command portaudio file"`
	SampleRate      int      `yaml:"sample_rate" validate:"min=8000,max=192000"`
	Channels        int      `yaml:"channels" validate:"min=1,max=2"`
	FramesPerBuffer int      `yaml:"frames_per_buffer" validate:"min=64"`
	FFmpegPath      string   `yaml:"ffmpeg_path"`
	InputFormat     string   `yaml:"input_format"`
	InputDevice     string   `yaml:"input_device"`
	Command         []string `yaml:"command" validate:"required_if=Driver command"`
	File            string   `yaml:"file" validate:"required_if=Driver file"`
	FileInterval    string   `yaml:"file_interval"`
	ContentType     string   `yaml:"content_type"`
}

type RecorderConfig struct {
	OnActiveBegin string `yaml:"on_active_begin" validate:"oneof=reject restart"`
}

type HTTPConfig struct {
	Addr              string `yaml:"addr" validate:"required"`
	AuthToken         string `yaml:"auth_token"`
	RequestsPerMinute int    `yaml:"requests_per_minute" validate:"min=1"`
	TrustProxyHeaders bool   `yaml:"trust_proxy_headers"`
}

type OpenAIConfig struct {
	APIKey   string `yaml:"api_key"`
	Language string `yaml:"language"`
	Model    string `yaml:"model"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=text json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=1"`
	// MaxBackups and MaxAgeDays keep an explicit 0, which disables that
	// cleanup rule.
	MaxBackups *int   `yaml:"max_backups" validate:"omitempty,min=0"`
	MaxAgeDays *int   `yaml:"max_age_days" validate:"omitempty,min=0"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it, applies
// defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Audio.Driver == "" {
		c.Audio.Driver = "ffmpeg"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.FramesPerBuffer == 0 {
		c.Audio.FramesPerBuffer = 1024
	}
	if c.Audio.FFmpegPath == "" {
		c.Audio.FFmpegPath = "ffmpeg"
	}
	if c.Audio.FileInterval == "" {
		c.Audio.FileInterval = "100ms"
	}
	if c.Recorder.OnActiveBegin == "" {
		c.Recorder.OnActiveBegin = "reject"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RequestsPerMinute == 0 {
		c.HTTP.RequestsPerMinute = 30
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "whisper-1"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == nil {
		c.Log.MaxBackups = intPtr(3)
	}
	if c.Log.MaxAgeDays == nil {
		c.Log.MaxAgeDays = intPtr(28)
	}
}

func intPtr(v int) *int {
	return &v
}
