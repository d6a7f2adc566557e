package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"voice-recorder/internal/application"
	"voice-recorder/internal/domain"
)

// FileFacility replays an audio file as if it were a live input, one chunk
// per interval. Once the file is exhausted the recorder idles until stopped.
type FileFacility struct {
	path      string
	chunkSize int
	interval  time.Duration
	logger    *slog.Logger
}

func NewFileFacility(path string, chunkSize int, interval time.Duration, logger *slog.Logger) *FileFacility {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &FileFacility{
		path:      path,
		chunkSize: chunkSize,
		interval:  interval,
		logger:    logger,
	}
}

func (f *FileFacility) Name() string {
	return "file"
}

func (f *FileFacility) ContentType() string {
	return domain.ContentTypeFor(filepath.Ext(f.path))
}

func (f *FileFacility) RequestAudioStream(_ context.Context) (application.MediaStream, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", application.ErrAccessDenied, err)
	}
	return &fileStream{track: &fileTrack{file: file}}, nil
}

func (f *FileFacility) NewRecorder(stream application.MediaStream) (application.MediaRecorder, error) {
	fs, ok := stream.(*fileStream)
	if !ok {
		return nil, fmt.Errorf("unsupported stream type %T", stream)
	}
	return &fileRecorder{
		file:      fs.track.file,
		chunkSize: f.chunkSize,
		interval:  f.interval,
		data:      make(chan []byte, 16),
		quit:      make(chan struct{}),
		logger:    f.logger,
	}, nil
}

type fileStream struct {
	track *fileTrack
}

func (s *fileStream) Tracks() []application.MediaTrack {
	return []application.MediaTrack{s.track}
}

type fileTrack struct {
	file *os.File
	once sync.Once
}

func (t *fileTrack) Stop() {
	t.once.Do(func() {
		t.file.Close()
	})
}

type fileRecorder struct {
	file      *os.File
	chunkSize int
	interval  time.Duration
	data      chan []byte
	quit      chan struct{}
	stopOnce  sync.Once
	logger    *slog.Logger
}

func (r *fileRecorder) Data() <-chan []byte {
	return r.data
}

func (r *fileRecorder) Start() error {
	go r.loop()
	return nil
}

func (r *fileRecorder) loop() {
	defer close(r.data)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	exhausted := false
	for {
		select {
		case <-r.quit:
			return
		case <-ticker.C:
			if exhausted {
				continue
			}
			buf := make([]byte, r.chunkSize)
			n, err := io.ReadFull(r.file, buf)
			if n > 0 {
				r.data <- buf[:n]
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					r.logger.Error("reading audio file", "path", r.file.Name(), "error", err)
				}
				exhausted = true
			}
		}
	}
}

func (r *fileRecorder) Stop() error {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
	return nil
}
