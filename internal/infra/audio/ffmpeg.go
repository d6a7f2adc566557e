package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"voice-recorder/internal/application"
	"voice-recorder/internal/domain"
)

const defaultChunkSize = 4096

type FFmpegConfig struct {
	Path        string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
}

// DefaultFFmpegInput returns the capture backend and device name ffmpeg
// uses for the default microphone on this OS.
func DefaultFFmpegInput() (format, device string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "alsa", "default"
	}
}

// Args builds an ffmpeg invocation that records the input device as mono
// Opus in a WebM container written to stdout.
func (c FFmpegConfig) Args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", c.InputFormat,
		"-i", c.InputDevice,
		"-ac", strconv.Itoa(c.Channels),
		"-ar", strconv.Itoa(c.SampleRate),
		"-c:a", "libopus",
		"-f", "webm",
		"pipe:1",
	}
}

// CommandFacility captures audio by running an external program that writes
// the encoded stream to stdout until it is interrupted.
type CommandFacility struct {
	argv        []string
	contentType string
	chunkSize   int
	logger      *slog.Logger
}

func NewFFmpegFacility(cfg FFmpegConfig, logger *slog.Logger) *CommandFacility {
	path := cfg.Path
	if path == "" {
		path = "ffmpeg"
	}
	argv := append([]string{path}, cfg.Args()...)
	return NewCommandFacility(argv, domain.ContentTypeWebM, logger)
}

// NewCommandFacility runs argv for every session. contentType describes
// what the program writes to stdout.
func NewCommandFacility(argv []string, contentType string, logger *slog.Logger) *CommandFacility {
	return &CommandFacility{
		argv:        argv,
		contentType: contentType,
		chunkSize:   defaultChunkSize,
		logger:      logger,
	}
}

func (f *CommandFacility) Name() string {
	if len(f.argv) == 0 {
		return "command"
	}
	return f.argv[0]
}

func (f *CommandFacility) ContentType() string {
	return f.contentType
}

func (f *CommandFacility) RequestAudioStream(_ context.Context) (application.MediaStream, error) {
	if len(f.argv) == 0 {
		return nil, fmt.Errorf("%w: no capture command configured", application.ErrAccessDenied)
	}
	path, err := exec.LookPath(f.argv[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", application.ErrAccessDenied, err)
	}
	return &processStream{
		path:  path,
		args:  f.argv[1:],
		track: &processTrack{},
	}, nil
}

func (f *CommandFacility) NewRecorder(stream application.MediaStream) (application.MediaRecorder, error) {
	ps, ok := stream.(*processStream)
	if !ok {
		return nil, fmt.Errorf("unsupported stream type %T", stream)
	}

	cmd := exec.Command(ps.path, ps.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}

	return &processRecorder{
		cmd:       cmd,
		stdout:    stdout,
		stdin:     stdin,
		track:     ps.track,
		chunkSize: f.chunkSize,
		data:      make(chan []byte, 64),
		exited:    make(chan struct{}),
		logger:    f.logger,
	}, nil
}

type processStream struct {
	path  string
	args  []string
	track *processTrack
}

func (s *processStream) Tracks() []application.MediaTrack {
	return []application.MediaTrack{s.track}
}

// processTrack owns the capture process once it is started.
type processTrack struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	exited <-chan struct{}
}

func (t *processTrack) attach(cmd *exec.Cmd, exited <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cmd = cmd
	t.exited = exited
}

// Stop kills the process if it is still running and waits until it is reaped.
func (t *processTrack) Stop() {
	t.mu.Lock()
	cmd, exited := t.cmd, t.exited
	t.mu.Unlock()

	if cmd == nil {
		return
	}
	select {
	case <-exited:
		return
	default:
	}
	_ = cmd.Process.Kill()
	<-exited
}

type processRecorder struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stdin     io.WriteCloser
	track     *processTrack
	chunkSize int
	data      chan []byte
	exited    chan struct{}
	logger    *slog.Logger
}

func (r *processRecorder) Data() <-chan []byte {
	return r.data
}

func (r *processRecorder) Start() error {
	if err := r.cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", r.cmd.Path, err)
	}
	r.track.attach(r.cmd, r.exited)
	go r.pump()
	return nil
}

func (r *processRecorder) pump() {
	defer close(r.data)
	defer close(r.exited)

	buf := make([]byte, r.chunkSize)
	for {
		n, err := r.stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			r.data <- chunk
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				r.logger.Warn("reading capture output", "error", err)
			}
			break
		}
	}

	if err := r.cmd.Wait(); err != nil {
		r.logger.Debug("capture process exited", "error", err)
	}
}

// Stop interrupts the process so it can flush its container. If the
// interrupt cannot be delivered, ffmpeg's "q" command is sent on stdin.
func (r *processRecorder) Stop() error {
	if r.cmd.Process == nil {
		return fmt.Errorf("capture process not started")
	}

	err := r.cmd.Process.Signal(os.Interrupt)
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}

	if _, werr := io.WriteString(r.stdin, "q\n"); werr != nil {
		return fmt.Errorf("interrupting capture process: %w", errors.Join(err, werr))
	}
	return r.stdin.Close()
}
