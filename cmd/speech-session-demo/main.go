// Command speech-session-demo drives pkg/speechsession.Controller against
// a recognition endpoint using an audio file as the input source. It is a
// manual exercising tool, not a production client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/speechcore/speech-session-core/internal/dotenv"
	"github.com/speechcore/speech-session-core/pkg/speechsession"
)

type options struct {
	endpoint   string
	apiKey     string
	audioPath  string
	language   string
	continuous bool
	chunkBytes int
	debug      bool
}

func main() {
	if err := runMain(); err != nil {
		fmt.Fprintln(os.Stderr, "speech-session-demo:", err)
		os.Exit(1)
	}
}

func runMain() error {
	if cwd, err := os.Getwd(); err == nil {
		_ = dotenv.LoadFile(filepath.Join(cwd, ".env"))
	}

	opt := options{}
	flag.StringVar(&opt.endpoint, "endpoint", os.Getenv("SPEECHSESSION_ENDPOINT"), "wss:// recognition endpoint")
	flag.StringVar(&opt.apiKey, "api-key", os.Getenv("SPEECHSESSION_API_KEY"), "bearer token for the recognition service")
	flag.StringVar(&opt.audioPath, "audio", "", "path to a raw PCM audio file to stream")
	flag.StringVar(&opt.language, "language", "en-US", "recognition language")
	flag.BoolVar(&opt.continuous, "continuous", false, "use continuous recognition instead of single-shot")
	flag.IntVar(&opt.chunkBytes, "chunk-bytes", 3200, "bytes read per upstream audio chunk")
	flag.BoolVar(&opt.debug, "debug", false, "enable debug logging")
	flag.Parse()

	if opt.audioPath == "" {
		return fmt.Errorf("--audio is required")
	}
	if opt.endpoint == "" {
		return fmt.Errorf("--endpoint (or SPEECHSESSION_ENDPOINT) is required")
	}

	level := slog.LevelInfo
	if opt.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := speechsession.LoadRecognizerConfigFromEnv()
	if err != nil {
		cfg = speechsession.DefaultRecognizerConfig()
	}
	cfg.Endpoint = opt.endpoint
	cfg.Language = opt.language
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid recognizer config: %w", err)
	}

	audioFile, err := os.Open(opt.audioPath)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}
	defer audioFile.Close()

	source := speechsession.NewReaderAudioSource(audioFile, opt.chunkBytes, map[string]string{
		"kind": "file",
		"path": filepath.Base(opt.audioPath),
	})

	auth := speechsession.StaticAuth{Token: opt.apiKey}
	controller, err := speechsession.NewController(
		cfg,
		auth,
		speechsession.NewWebSocketConnectionFactory(),
		&printingTypeHandler{logger: logger},
		"demo-audio-source",
		logger,
	)
	if err != nil {
		return fmt.Errorf("construct controller: %w", err)
	}

	mode := speechsession.ModeSingleShot
	if opt.continuous {
		mode = speechsession.ModeContinuous
	}

	done := make(chan struct{})
	handlers := speechsession.SessionHandlers{
		OnSessionStarted: func(sessionID string) {
			logger.Info("session started", "session_id", sessionID)
		},
		OnSessionStopped: func(sessionID string) {
			logger.Info("session stopped", "session_id", sessionID)
			close(done)
		},
		OnSpeechStartDetected: func(e speechsession.SpeechStartDetectedEvent) {
			logger.Info("speech start detected", "offset", e.Offset)
		},
		OnSpeechEndDetected: func(e speechsession.SpeechEndDetectedEvent) {
			logger.Info("speech end detected", "offset", e.Offset)
		},
		OnCancellation: func(e speechsession.CancellationEvent) {
			logger.Info("cancellation", "reason", e.Reason.String(), "err", e.Err)
		},
	}

	go func() {
		<-ctx.Done()
		controller.StopRecognizing(context.Background())
	}()

	start := time.Now()
	if err := controller.Recognize(ctx, mode, source, nil, nil, handlers); err != nil {
		return fmt.Errorf("recognize: %w", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}

	logger.Info("recognition finished", "elapsed", time.Since(start))
	return nil
}

// printingTypeHandler is the TypeSpecificHandler for this demo: it logs
// every downstream message path the core doesn't already understand
// (phrase and hypothesis results, most notably) instead of parsing them
// into a structured result type.
type printingTypeHandler struct {
	logger *slog.Logger
}

func (h *printingTypeHandler) HandleMessage(frame speechsession.Frame, handlers speechsession.SessionHandlers) {
	body := strings.TrimSpace(string(frame.Body))
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	h.logger.Info("downstream message", "path", frame.Path, "body", body)
}
