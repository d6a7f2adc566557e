package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"voice-recorder/internal/domain"
)

// ActiveBeginPolicy decides what BeginCapture does while a session is live.
type ActiveBeginPolicy string

const (
	// PolicyReject makes BeginCapture return false and keep the live session.
	PolicyReject ActiveBeginPolicy = "reject"
	// PolicyRestart ends the live session, discards its audio and starts over.
	PolicyRestart ActiveBeginPolicy = "restart"
)

// Recorder captures audio from a CaptureFacility one session at a time and
// assembles each session's fragments into a single domain.Recording.
type Recorder struct {
	capture     CaptureFacility
	contentType string
	policy      ActiveBeginPolicy
	logger      *slog.Logger
	now         func() time.Time

	// op serializes BeginCapture and EndCapture; callers wait for it under
	// their own ctx.
	op      *semaphore.Weighted
	session *captureSession
	active  atomic.Bool
}

type RecorderOption func(*Recorder)

// WithContentType overrides the content type reported by the facility.
func WithContentType(contentType string) RecorderOption {
	return func(r *Recorder) {
		if contentType != "" {
			r.contentType = contentType
		}
	}
}

func WithActiveBeginPolicy(policy ActiveBeginPolicy) RecorderOption {
	return func(r *Recorder) {
		if policy != "" {
			r.policy = policy
		}
	}
}

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

func NewRecorder(capture CaptureFacility, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		capture:     capture,
		contentType: capture.ContentType(),
		policy:      PolicyReject,
		logger:      logger,
		now:         time.Now,
		op:          semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsRecording reports whether a session is active. It does not wait for a
// pending EndCapture.
func (r *Recorder) IsRecording() bool {
	return r.active.Load()
}

// BeginCapture starts a new capture session. It returns false when the
// platform denies access, the session cannot be built or started, or a
// session is already active under PolicyReject, or ctx ends while another
// operation is in progress. Reasons are logged only.
func (r *Recorder) BeginCapture(ctx context.Context) bool {
	if err := r.op.Acquire(ctx, 1); err != nil {
		r.logger.Warn("waiting for pending capture operation", "error", err)
		return false
	}
	defer r.op.Release(1)

	if r.session != nil {
		if r.policy != PolicyRestart {
			r.logger.Warn("capture already active, ignoring begin", "session", r.session.id)
			return false
		}
		r.logger.Info("capture already active, restarting", "session", r.session.id)
		prev, err := r.endLocked(ctx)
		if err != nil {
			r.logger.Error("ending previous capture", "error", err)
			return false
		}
		r.logger.Info("discarded previous recording", "session", prev.ID, "bytes", prev.Size())
	}

	sess, err := r.open(ctx)
	if err != nil {
		r.logger.Error("starting capture", "source", r.capture.Name(), "error", err)
		return false
	}

	r.session = sess
	r.active.Store(true)
	r.logger.Info("capture started", "session", sess.id, "source", r.capture.Name())
	return true
}

func (r *Recorder) open(ctx context.Context) (*captureSession, error) {
	stream, err := r.capture.RequestAudioStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("requesting audio stream: %w", err)
	}

	mr, err := r.capture.NewRecorder(stream)
	if err != nil {
		releaseTracks(stream)
		return nil, fmt.Errorf("creating recorder: %w", err)
	}

	sess := &captureSession{
		id:        uuid.NewString(),
		stream:    stream,
		recorder:  mr,
		startedAt: r.now(),
		done:      make(chan struct{}),
	}

	if err := mr.Start(); err != nil {
		releaseTracks(stream)
		return nil, fmt.Errorf("starting recorder: %w", err)
	}
	// Fragments sent before collect runs wait on Data.
	go sess.collect()

	return sess, nil
}

// EndCapture stops the active session and returns its recording. With no
// active session it returns nil, nil. It waits for the facility's stop
// confirmation without a deadline of its own; if ctx ends first the session
// stays active with stop already requested and a later call can collect it.
// The same ctx bounds the wait for any operation already in progress.
func (r *Recorder) EndCapture(ctx context.Context) (*domain.Recording, error) {
	if err := r.op.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for pending capture operation: %w", err)
	}
	defer r.op.Release(1)

	if r.session == nil {
		return nil, nil
	}
	return r.endLocked(ctx)
}

func (r *Recorder) endLocked(ctx context.Context) (*domain.Recording, error) {
	sess := r.session

	if err := sess.requestStop(); err != nil {
		r.logger.Warn("stopping recorder", "session", sess.id, "error", err)
	}

	select {
	case <-sess.done:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for capture %s to stop: %w", sess.id, ctx.Err())
	}

	rec := sess.assemble(r.contentType, r.now())
	r.active.Store(false)
	sess.release()
	r.session = nil

	r.logger.Info("capture finished",
		"session", rec.ID,
		"fragments", rec.Fragments,
		"bytes", rec.Size(),
		"duration", rec.Duration(),
	)
	return rec, nil
}

// Close ends any active session and drops its recording.
func (r *Recorder) Close(ctx context.Context) error {
	rec, err := r.EndCapture(ctx)
	if err != nil {
		return err
	}
	if rec != nil {
		r.logger.Info("discarded recording on close", "session", rec.ID, "bytes", rec.Size())
	}
	return nil
}

type captureSession struct {
	id        string
	stream    MediaStream
	recorder  MediaRecorder
	startedAt time.Time

	mu     sync.Mutex
	chunks [][]byte
	size   int

	done        chan struct{}
	stopOnce    sync.Once
	stopErr     error
	releaseOnce sync.Once
}

func (s *captureSession) collect() {
	defer close(s.done)
	for chunk := range s.recorder.Data() {
		s.mu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.size += len(chunk)
		s.mu.Unlock()
	}
}

func (s *captureSession) requestStop() error {
	s.stopOnce.Do(func() {
		s.stopErr = s.recorder.Stop()
	})
	return s.stopErr
}

func (s *captureSession) assemble(contentType string, stoppedAt time.Time) *domain.Recording {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := make([]byte, 0, s.size)
	for _, chunk := range s.chunks {
		data = append(data, chunk...)
	}

	return &domain.Recording{
		ID:          s.id,
		ContentType: contentType,
		Data:        data,
		Fragments:   len(s.chunks),
		StartedAt:   s.startedAt,
		StoppedAt:   stoppedAt,
	}
}

func (s *captureSession) release() {
	s.releaseOnce.Do(func() {
		releaseTracks(s.stream)
	})
}

func releaseTracks(stream MediaStream) {
	for _, track := range stream.Tracks() {
		track.Stop()
	}
}
