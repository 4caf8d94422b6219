package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/aura/backend/internal/apperr"
	"github.com/zhouzirui/aura/backend/internal/model/chat"
)

// Responder produces the assistant's reply for a conversation.
type Responder interface {
	GenerateReply(ctx context.Context, history []chat.Message, userMessage string) (string, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, sessionID string, audio []byte, format, language string) (string, error)
}

// Reply is the outcome of one relayed chat turn.
type Reply struct {
	Response   string
	SessionID  string
	Timestamp  time.Time
	NewSession bool
}

// VoiceReply is a Reply plus the transcript that produced it.
type VoiceReply struct {
	Reply
	Transcription string
}

// Relay orchestrates a chat turn between the store and the collaborators.
type Relay struct {
	store       *Service
	responder   Responder
	transcriber Transcriber
	timeout     time.Duration
	logger      *zap.Logger
}

// NewRelay wires a relay. responder and transcriber may be nil when the
// corresponding provider is not configured; calls then fail as unavailable.
func NewRelay(store *Service, responder Responder, transcriber Transcriber, timeout time.Duration) *Relay {
	return &Relay{
		store:       store,
		responder:   responder,
		transcriber: transcriber,
		timeout:     timeout,
		logger:      zap.L().Named("relay"),
	}
}

// HandleChat appends the user message, asks the responder and appends its reply.
// On responder failure the user message stays and no assistant message is stored.
func (r *Relay) HandleChat(ctx context.Context, sessionID, message string) (Reply, error) {
	if strings.TrimSpace(message) == "" {
		return Reply{}, apperr.Validation("message is required")
	}
	if r.responder == nil {
		return Reply{}, apperr.Unavailable("ai responses are not configured")
	}

	newSession := false
	if sessionID == "" {
		id, err := r.store.CreateSession(ctx)
		if err != nil {
			return Reply{}, err
		}
		sessionID = id
		newSession = true
	}

	appended, err := r.store.Append(ctx, sessionID, chat.RoleUser, message)
	if err != nil {
		return Reply{}, err
	}
	newSession = newSession || appended.Created
	history := appended.Prior

	callCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	response, err := r.responder.GenerateReply(callCtx, history, message)
	if err != nil {
		r.logger.Error("responder failed", zap.String("session_id", sessionID), zap.Error(err))
		return Reply{}, apperr.Upstream("failed to generate response", err)
	}
	if strings.TrimSpace(response) == "" {
		return Reply{}, apperr.Upstream("failed to generate response", errors.New("empty reply from language model"))
	}

	stored, err := r.store.Append(ctx, sessionID, chat.RoleAssistant, response)
	if err != nil {
		return Reply{}, err
	}

	return Reply{
		Response:   response,
		SessionID:  sessionID,
		Timestamp:  stored.Message.Timestamp,
		NewSession: newSession,
	}, nil
}

// Transcribe converts audio to text without touching the store.
func (r *Relay) Transcribe(ctx context.Context, sessionID string, audio []byte, format, language string) (string, error) {
	if len(audio) == 0 {
		return "", apperr.Validation("audio file is empty")
	}
	if r.transcriber == nil {
		return "", apperr.Unavailable("speech transcription is not configured")
	}

	callCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	text, err := r.transcriber.Transcribe(callCtx, sessionID, audio, format, language)
	if err != nil {
		r.logger.Error("transcriber failed", zap.Error(err))
		return "", apperr.Upstream("failed to transcribe audio", err)
	}
	return strings.TrimSpace(text), nil
}

// HandleVoice transcribes audio and relays the transcript as a chat turn.
func (r *Relay) HandleVoice(ctx context.Context, sessionID string, audio []byte, format, language string) (VoiceReply, error) {
	text, err := r.Transcribe(ctx, sessionID, audio, format, language)
	if err != nil {
		return VoiceReply{}, err
	}
	if text == "" {
		return VoiceReply{}, apperr.Validation("no speech detected in audio")
	}

	reply, err := r.HandleChat(ctx, sessionID, text)
	if err != nil {
		return VoiceReply{}, err
	}
	return VoiceReply{Reply: reply, Transcription: text}, nil
}

func (r *Relay) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
