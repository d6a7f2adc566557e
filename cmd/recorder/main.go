package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"voice-recorder/config"
	"voice-recorder/internal/application"
	"voice-recorder/internal/domain"
	"voice-recorder/internal/infra/audio"
	"voice-recorder/internal/infra/httpapi"
	"voice-recorder/internal/infra/openai"
)

var errCaptureAbandoned = errors.New("capture abandoned before it stopped")

type recordOptions struct {
	duration   time.Duration
	out        string
	transcribe bool
	// stopContext bounds the wait for the capture to stop. Defaults to a
	// context cancelled by the next SIGINT or SIGTERM.
	stopContext func() (context.Context, context.CancelFunc)
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	mode := flag.String("mode", "serve", "serve (HTTP control API) or record (single capture)")
	duration := flag.Duration("duration", 0, "record mode: stop after this long (0 waits for Ctrl-C)")
	out := flag.String("out", "", "record mode: output file (default recording-<id>.<ext>)")
	transcribe := flag.Bool("transcribe", false, "record mode: print a transcript of the recording")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger, closeLog := setupLogger(cfg.Log)

	err = run(cfg, *mode, recordOptions{
		duration:   *duration,
		out:        *out,
		transcribe: *transcribe,
	}, logger)
	closeLog()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("recorder error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, mode string, opts recordOptions, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	facility := createCaptureFacility(cfg.Audio, logger)
	recorder := application.NewRecorder(
		facility,
		logger,
		application.WithContentType(cfg.Audio.ContentType),
		application.WithActiveBeginPolicy(application.ActiveBeginPolicy(cfg.Recorder.OnActiveBegin)),
	)
	stt := createSpeechToText(cfg.OpenAI)

	logger.Info("starting voice recorder",
		"mode", mode,
		"driver", cfg.Audio.Driver,
		"source", facility.Name(),
	)

	switch mode {
	case "serve":
		return serve(ctx, cfg.HTTP, recorder, stt, logger)
	case "record":
		return record(ctx, recorder, stt, opts, logger)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func serve(ctx context.Context, cfg config.HTTPConfig, recorder *application.Recorder, stt application.SpeechToText, logger *slog.Logger) error {
	server := httpapi.NewServer(cfg.Addr, cfg.AuthToken, cfg.RequestsPerMinute, recorder, stt, logger,
		httpapi.WithTrustedProxyHeaders(cfg.TrustProxyHeaders),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := recorder.Close(closeCtx); err != nil {
			return fmt.Errorf("closing recorder: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func record(ctx context.Context, recorder *application.Recorder, stt application.SpeechToText, opts recordOptions, logger *slog.Logger) error {
	if !recorder.BeginCapture(ctx) {
		return fmt.Errorf("audio capture could not be started")
	}

	waitCtx := ctx
	if opts.duration > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
		logger.Info("recording", "duration", opts.duration)
	} else {
		logger.Info("recording, press Ctrl-C to stop")
	}
	<-waitCtx.Done()

	// A second interrupt abandons a capture that will not stop.
	stopContext := opts.stopContext
	if stopContext == nil {
		stopContext = func() (context.Context, context.CancelFunc) {
			return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		}
	}
	stopCtx, stop := stopContext()
	defer stop()

	rec, err := recorder.EndCapture(stopCtx)
	if err != nil {
		if stopCtx.Err() != nil {
			// main treats context.Canceled as a clean exit, so it stays out of the chain.
			return fmt.Errorf("%w: %v", errCaptureAbandoned, err)
		}
		return fmt.Errorf("ending capture: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("no recording captured")
	}

	path := opts.out
	if path == "" {
		path = fmt.Sprintf("recording-%s.%s", rec.ID, rec.Extension())
	}
	if err := os.WriteFile(path, rec.Data, 0644); err != nil {
		return fmt.Errorf("writing recording: %w", err)
	}
	logger.Info("recording saved", "path", path, "bytes", rec.Size(), "duration", rec.Duration())

	if !opts.transcribe {
		return nil
	}
	return printTranscript(stopCtx, stt, rec)
}

func printTranscript(ctx context.Context, stt application.SpeechToText, rec *domain.Recording) error {
	if rec.Size() == 0 {
		return fmt.Errorf("recording is empty, nothing to transcribe")
	}
	text, err := stt.Transcribe(ctx, rec.Data, rec.Extension())
	if err != nil {
		return fmt.Errorf("transcribing: %w", err)
	}
	fmt.Println(text)
	return nil
}

func createCaptureFacility(cfg config.AudioConfig, logger *slog.Logger) application.CaptureFacility {
	switch cfg.Driver {
	case "ffmpeg":
		return newFFmpegFacility(cfg, logger)
	case "command":
		contentType := cfg.ContentType
		if contentType == "" {
			contentType = domain.ContentTypeWAV
		}
		return audio.NewCommandFacility(cfg.Command, contentType, logger)
	case "portaudio":
		format := application.AudioFormat{
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			BitDepth:   16,
		}
		return audio.NewMicrophoneFacility(format, cfg.FramesPerBuffer, logger)
	case "file":
		interval, err := time.ParseDuration(cfg.FileInterval)
		if err != nil {
			logger.Warn("invalid file interval, using default", "error", err, "value", cfg.FileInterval)
			interval = 100 * time.Millisecond
		}
		return audio.NewFileFacility(cfg.File, 0, interval, logger)
	default:
		logger.Warn("unknown audio driver, using ffmpeg", "driver", cfg.Driver)
		return newFFmpegFacility(cfg, logger)
	}
}

func newFFmpegFacility(cfg config.AudioConfig, logger *slog.Logger) application.CaptureFacility {
	format, device := audio.DefaultFFmpegInput()
	if cfg.InputFormat != "" {
		format = cfg.InputFormat
	}
	if cfg.InputDevice != "" {
		device = cfg.InputDevice
	}
	return audio.NewFFmpegFacility(audio.FFmpegConfig{
		Path:        cfg.FFmpegPath,
		InputFormat: format,
		InputDevice: device,
		SampleRate:  cfg.SampleRate,
		Channels:    cfg.Channels,
	}, logger)
}

func createSpeechToText(cfg config.OpenAIConfig) application.SpeechToText {
	if cfg.APIKey == "" {
		return &application.NoopSTT{}
	}
	return openai.NewWhisperClient(cfg.APIKey, cfg.Language, cfg.Model)
}

func setupLogger(cfg config.LogConfig) (*slog.Logger, func()) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: derefInt(cfg.MaxBackups),
			MaxAge:     derefInt(cfg.MaxAgeDays),
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closeFn = func() { rotator.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler), closeFn
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
