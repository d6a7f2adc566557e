package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"voice-recorder/internal/application"
	"voice-recorder/internal/domain"
)

// maxUploadBytes matches the transcription API's file size limit.
const maxUploadBytes = 25 << 20

type RecordingController interface {
	BeginCapture(ctx context.Context) bool
	EndCapture(ctx context.Context) (*domain.Recording, error)
	IsRecording() bool
}

// Server exposes the recorder and the transcription client over HTTP.
type Server struct {
	addr        string
	authToken   string
	recorder    RecordingController
	stt         application.SpeechToText
	logger      *slog.Logger
	mux         *http.ServeMux
	rateLimiter *RateLimiter

	mu      sync.Mutex
	server  *http.Server
	running bool
}

type ServerOption func(*serverOptions)

type serverOptions struct {
	trustProxyHeaders bool
}

// WithTrustedProxyHeaders rate-limits by X-Forwarded-For / X-Real-IP. Use it
// only when a reverse proxy in front of the server sets those headers.
func WithTrustedProxyHeaders(trust bool) ServerOption {
	return func(o *serverOptions) {
		o.trustProxyHeaders = trust
	}
}

func NewServer(
	addr string,
	authToken string,
	requestsPerMinute int,
	recorder RecordingController,
	stt application.SpeechToText,
	logger *slog.Logger,
	opts ...ServerOption,
) *Server {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30
	}
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}
	s := &Server{
		addr:        addr,
		authToken:   authToken,
		recorder:    recorder,
		stt:         stt,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(requestsPerMinute, time.Minute, o.trustProxyHeaders),
	}
	s.mux.HandleFunc("POST /recording/start", s.authorize(s.rateLimiter.Middleware(s.handleStart)))
	s.mux.HandleFunc("POST /recording/stop", s.authorize(s.rateLimiter.Middleware(s.handleStop)))
	s.mux.HandleFunc("GET /recording", s.authorize(s.handleStatus))
	s.mux.HandleFunc("POST /transcribe", s.authorize(s.rateLimiter.Middleware(s.handleTranscribe)))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx ends, then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.mux,
		ReadTimeout: 30 * time.Second,
		// Stop requests wait for the capture to flush.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	s.running = true
	srv := s.server
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.setRunning(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
		return s.shutdown(srv)
	}
}

func (s *Server) shutdown(srv *http.Server) error {
	defer s.setRunning(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := srv.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	return nil
}

func (s *Server) setRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
}

func (s *Server) authorize(next http.HandlerFunc) http.HandlerFunc {
	if s.authToken == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.logger.Warn("unauthorized request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if s.recorder.BeginCapture(r.Context()) {
		writeJSON(w, http.StatusCreated, map[string]string{"status": "recording"})
		return
	}

	if s.recorder.IsRecording() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already recording"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "audio capture unavailable"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recorder.EndCapture(r.Context())
	if err != nil {
		s.logger.Warn("stopping capture", "error", err)
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "capture did not stop in time"})
		return
	}

	if rec == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(rec.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="recording-%s.%s"`, rec.ID, rec.Extension()))
	w.Header().Set("X-Recording-Id", rec.ID)
	w.Header().Set("X-Recording-Fragments", strconv.Itoa(rec.Fragments))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(rec.Data); err != nil {
		s.logger.Warn("writing recording", "session", rec.ID, "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"recording": s.recorder.IsRecording()})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing audio upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read upload"})
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty audio"})
		return
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if format == "" {
		format = "wav"
	}

	text, err := s.stt.Transcribe(r.Context(), data, format)
	if err != nil {
		s.logger.Error("transcribing upload", "bytes", len(data), "format", format, "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, application.ErrTranscriptionDisabled) {
			status = http.StatusNotImplemented
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	s.logger.Info("transcribed upload", "bytes", len(data), "format", format)
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	status := "ok"
	statusCode := http.StatusOK
	if !running {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]any{
		"status":    status,
		"running":   running,
		"recording": s.recorder.IsRecording(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
