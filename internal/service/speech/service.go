package speech

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/aura/backend/internal/config"
	speechmodel "github.com/zhouzirui/aura/backend/internal/model/speech"
)

var errNoSynthesizer = errors.New("no text-to-speech provider configured")

// DefaultFormat is used when the upload carries no recognisable extension.
const DefaultFormat = "wav"

var contentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"webm": "audio/webm",
	"m4a":  "audio/mp4",
	"aac":  "audio/aac",
	"ogg":  "audio/ogg",
}

// FormatFromFilename maps an upload name to an audio format.
func FormatFromFilename(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if _, ok := contentTypes[ext]; ok {
		return ext
	}
	return DefaultFormat
}

// ContentType returns the MIME type for a format.
func ContentType(format string) string {
	if ct, ok := contentTypes[format]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Recognizer is a single speech-to-text provider.
type Recognizer interface {
	Recognize(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error)
}

// Synthesizer voices text and returns a URL for the audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Service turns recorded audio into text through the configured provider,
// and text into audio when a synthesizer is attached.
type Service struct {
	provider    string
	language    string
	recognizer  Recognizer
	synthesizer Synthesizer
	logger      *zap.Logger
}

// NewService selects the provider named in cfg.
func NewService(cfg config.SpeechConfig) (*Service, error) {
	logger := zap.L().Named("speech")

	var recognizer Recognizer
	switch cfg.Provider {
	case config.STTProviderHume, "":
		if cfg.HumeAPIKey == "" {
			return nil, errMissingHumeKey
		}
		recognizer = NewHumeClient(cfg, logger)
	case config.STTProviderVolcengine:
		if _, _, err := volcengineCredentials(cfg); err != nil {
			return nil, err
		}
		recognizer = NewVolcengineClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported speech provider %q", cfg.Provider)
	}

	logger.Info("speech service ready",
		zap.String("provider", cfg.Provider),
		zap.String("hume_key", config.MaskSecret(cfg.HumeAPIKey)),
		zap.String("hume_url", cfg.HumeAPIURL),
	)
	svc := NewServiceWithRecognizer(cfg.Provider, cfg.Language, recognizer, logger)
	if cfg.HumeAPIKey != "" {
		// Hume voices replies whichever provider transcribes.
		svc.synthesizer = NewHumeClient(cfg, logger)
	}
	return svc, nil
}

// NewServiceWithRecognizer wraps an existing recognizer.
func NewServiceWithRecognizer(provider, language string, recognizer Recognizer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider:   provider,
		language:   language,
		recognizer: recognizer,
		logger:     logger,
	}
}

// WithSynthesizer attaches a text-to-speech provider.
func (s *Service) WithSynthesizer(synthesizer Synthesizer) *Service {
	s.synthesizer = synthesizer
	return s
}

// CanSynthesize reports whether Synthesize has a provider behind it.
func (s *Service) CanSynthesize() bool {
	return s.synthesizer != nil
}

// Synthesize voices text through the attached provider.
func (s *Service) Synthesize(ctx context.Context, text string) (string, error) {
	if s.synthesizer == nil {
		return "", errNoSynthesizer
	}
	url, err := s.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return "", err
	}
	s.logger.Info("synthesized speech", zap.Int("chars", len(text)))
	return url, nil
}

// Provider names the backing recognizer.
func (s *Service) Provider() string {
	return s.provider
}

// Transcribe returns the transcript for one clip. An empty language uses the configured default.
func (s *Service) Transcribe(ctx context.Context, sessionID string, audio []byte, format, language string) (string, error) {
	if language == "" {
		language = s.language
	}
	if format == "" {
		format = DefaultFormat
	}

	resp, err := s.recognizer.Recognize(ctx, &speechmodel.ASRRequest{
		SessionID: sessionID,
		AudioData: audio,
		Format:    format,
		Language:  language,
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("transcribed audio",
		zap.String("provider", resp.Provider),
		zap.Int("audio_bytes", len(audio)),
		zap.Int64("duration_ms", resp.Duration),
		zap.Int("chars", len(resp.Text)),
	)
	return resp.Text, nil
}
