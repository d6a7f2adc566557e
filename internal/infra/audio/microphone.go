//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"voice-recorder/internal/application"
	"voice-recorder/internal/domain"
)

// MicrophoneFacility captures the default input device through PortAudio
// and emits a WAV stream: a header fragment followed by PCM16-LE buffers.
type MicrophoneFacility struct {
	format          application.AudioFormat
	framesPerBuffer int
	logger          *slog.Logger
}

func NewMicrophoneFacility(format application.AudioFormat, framesPerBuffer int, logger *slog.Logger) *MicrophoneFacility {
	return &MicrophoneFacility{
		format:          format,
		framesPerBuffer: framesPerBuffer,
		logger:          logger,
	}
}

func (m *MicrophoneFacility) Name() string {
	return "microphone"
}

func (m *MicrophoneFacility) ContentType() string {
	return domain.ContentTypeWAV
}

func (m *MicrophoneFacility) RequestAudioStream(_ context.Context) (application.MediaStream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initializing portaudio: %w", application.ErrAccessDenied, err)
	}

	buffer := make([]int16, m.framesPerBuffer*m.format.Channels)
	stream, err := portaudio.OpenDefaultStream(
		m.format.Channels,
		0,
		float64(m.format.SampleRate),
		m.framesPerBuffer,
		buffer,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: opening input stream: %w", application.ErrAccessDenied, err)
	}

	m.logger.Debug("microphone opened", "sampleRate", m.format.SampleRate, "channels", m.format.Channels)

	return &micStream{
		stream: stream,
		buffer: buffer,
		track:  &micTrack{stream: stream},
	}, nil
}

func (m *MicrophoneFacility) NewRecorder(stream application.MediaStream) (application.MediaRecorder, error) {
	ms, ok := stream.(*micStream)
	if !ok {
		return nil, fmt.Errorf("unsupported stream type %T", stream)
	}
	return &micRecorder{
		mic:    ms,
		header: StreamingWAVHeader(m.format.SampleRate, m.format.Channels, 16),
		data:   make(chan []byte, 64),
		quit:   make(chan struct{}),
		logger: m.logger,
	}, nil
}

type micStream struct {
	stream *portaudio.Stream
	buffer []int16
	track  *micTrack
}

func (s *micStream) Tracks() []application.MediaTrack {
	return []application.MediaTrack{s.track}
}

type micTrack struct {
	stream *portaudio.Stream
	once   sync.Once
}

func (t *micTrack) Stop() {
	t.once.Do(func() {
		t.stream.Close()
		portaudio.Terminate()
	})
}

type micRecorder struct {
	mic      *micStream
	header   []byte
	data     chan []byte
	quit     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

func (r *micRecorder) Data() <-chan []byte {
	return r.data
}

func (r *micRecorder) Start() error {
	if err := r.mic.stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	go r.loop()
	return nil
}

func (r *micRecorder) loop() {
	defer close(r.data)
	defer func() {
		if err := r.mic.stream.Stop(); err != nil {
			r.logger.Warn("stopping microphone stream", "error", err)
		}
	}()

	r.data <- r.header

	for {
		select {
		case <-r.quit:
			return
		default:
		}

		if err := r.mic.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				r.logger.Debug("microphone input overflowed")
				continue
			}
			r.logger.Error("reading from microphone", "error", err)
			return
		}

		r.data <- PCM16ToBytes(r.mic.buffer)
	}
}

func (r *micRecorder) Stop() error {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
	return nil
}
