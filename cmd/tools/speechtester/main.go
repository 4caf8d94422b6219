// Command speechtester sends one audio file through the configured
// speech-to-text provider and prints the transcript.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/aura/backend/internal/config"
	"github.com/zhouzirui/aura/backend/internal/logging"
	"github.com/zhouzirui/aura/backend/internal/service/speech"
)

func main() {
	audioPath := flag.String("audio", "", "path of the audio file to transcribe")
	format := flag.String("format", "", "audio format; inferred from the file extension when empty")
	language := flag.String("lang", "", "language code; defaults to SPEECH_ASR_LANGUAGE")
	session := flag.String("session", "", "session id sent to the provider; generated when empty")
	timeout := flag.Duration("timeout", 45*time.Second, "request timeout")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if *audioPath == "" {
		flag.Usage()
		logger.Fatal("-audio is required")
	}
	if !cfg.Speech.Enabled() {
		logger.Fatal("speech provider credentials are not configured", zap.String("provider", cfg.Speech.Provider))
	}

	audio, err := os.ReadFile(*audioPath)
	if err != nil {
		logger.Fatal("failed to read audio file", zap.String("path", *audioPath), zap.Error(err))
	}

	if *format == "" {
		*format = speech.FormatFromFilename(*audioPath)
	}
	sessionID := *session
	if sessionID == "" {
		sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	svc, err := speech.NewService(cfg.Speech)
	if err != nil {
		logger.Fatal("failed to build speech service", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger.Info("transcribing",
		zap.String("provider", svc.Provider()),
		zap.String("session_id", sessionID),
		zap.String("format", *format),
		zap.Int("bytes", len(audio)),
	)

	started := time.Now()
	text, err := svc.Transcribe(ctx, sessionID, audio, *format, *language)
	if err != nil {
		logger.Fatal("transcription failed", zap.Error(err))
	}

	logger.Info("transcription complete", zap.Duration("elapsed", time.Since(started)))
	fmt.Println(text)
}
