package speech

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/aura/backend/internal/apperr"
	chatService "github.com/zhouzirui/aura/backend/internal/service/chat"
	speechService "github.com/zhouzirui/aura/backend/internal/service/speech"
	"github.com/zhouzirui/aura/backend/pkg/utils"
)

// MaxUploadSize bounds a single audio upload.
const MaxUploadSize = 32 << 20

// Handler serves the voice endpoints.
type Handler struct {
	relay       *chatService.Relay
	synthesizer speechService.Synthesizer
	logger      *zap.Logger
}

// New creates the voice handler. A nil synthesizer makes /voice/synthesize
// answer with a null audio_url.
func New(relay *chatService.Relay, synthesizer speechService.Synthesizer) *Handler {
	return &Handler{
		relay:       relay,
		synthesizer: synthesizer,
		logger:      zap.L().Named("voice"),
	}
}

// RegisterRoutes mounts /voice routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/voice", func(voice chi.Router) {
		voice.Post("/transcribe", h.handleTranscribe)
		voice.Post("/chat", h.handleVoiceChat)
		voice.Post("/synthesize", h.handleSynthesize)
	})
}

type upload struct {
	audio     []byte
	format    string
	language  string
	sessionID string
}

type transcribeResponse struct {
	Transcription string `json:"transcription"`
	Status        string `json:"status"`
}

type voiceChatResponse struct {
	Transcription string    `json:"transcription"`
	Response      string    `json:"response"`
	SessionID     string    `json:"session_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	in, err := readUpload(w, r)
	if err != nil {
		utils.RespondAppError(w, r, err)
		return
	}

	text, err := h.relay.Transcribe(r.Context(), in.sessionID, in.audio, in.format, in.language)
	if err != nil {
		utils.RespondAppError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, transcribeResponse{
		Transcription: text,
		Status:        "success",
	})
}

func (h *Handler) handleVoiceChat(w http.ResponseWriter, r *http.Request) {
	in, err := readUpload(w, r)
	if err != nil {
		utils.RespondAppError(w, r, err)
		return
	}

	reply, err := h.relay.HandleVoice(r.Context(), in.sessionID, in.audio, in.format, in.language)
	if err != nil {
		utils.RespondAppError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, voiceChatResponse{
		Transcription: reply.Transcription,
		Response:      reply.Response,
		SessionID:     reply.SessionID,
		Timestamp:     reply.Timestamp,
	})
}

type synthesizeRequest struct {
	Text string `json:"text" validate:"required"`
}

type synthesizeResponse struct {
	AudioURL *string `json:"audio_url"`
	Status   string  `json:"status"`
}

// handleSynthesize never fails on provider trouble; clients fall back to text.
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var payload synthesizeRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondAppError(w, r, err)
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		utils.RespondAppError(w, r, apperr.Validation("text is required"))
		return
	}

	resp := synthesizeResponse{Status: "success"}
	if h.synthesizer == nil {
		h.logger.Debug("no synthesizer configured, returning text only")
		utils.RespondJSON(w, http.StatusOK, resp)
		return
	}

	url, err := h.synthesizer.Synthesize(r.Context(), payload.Text)
	if err != nil {
		h.logger.Warn("speech synthesis failed", zap.Error(err))
	} else if url != "" {
		resp.AudioURL = &url
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func readUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return upload{}, apperr.Validation("audio file is too large")
		}
		return upload{}, apperr.Validation("multipart form with an audio file is required")
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return upload{}, apperr.Validation("audio file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return upload{}, apperr.Validation("failed to read audio file")
	}

	return upload{
		audio:     data,
		format:    speechService.FormatFromFilename(header.Filename),
		language:  r.FormValue("language"),
		sessionID: r.FormValue("session_id"),
	}, nil
}
