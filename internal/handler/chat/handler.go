package chat

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/aura/backend/internal/model/chat"
	chatService "github.com/zhouzirui/aura/backend/internal/service/chat"
	"github.com/zhouzirui/aura/backend/pkg/utils"
)

// Handler serves text chat and transcript lookups.
type Handler struct {
	relay *chatService.Relay
	store *chatService.Service
}

// New creates the chat handler.
func New(relay *chatService.Relay, store *chatService.Service) *Handler {
	return &Handler{
		relay: relay,
		store: store,
	}
}

// RegisterRoutes mounts the chat routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/conversations/{sessionID}", h.handleHistory)
}

type chatRequest struct {
	Message   string  `json:"message" validate:"required"`
	SessionID *string `json:"session_id"`
}

type chatResponse struct {
	Response  string    `json:"response"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

type historyResponse struct {
	SessionID     string         `json:"session_id"`
	Messages      []chat.Message `json:"messages"`
	TotalMessages int            `json:"total_messages"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondAppError(w, r, err)
		return
	}

	sessionID := ""
	if payload.SessionID != nil {
		sessionID = *payload.SessionID
	}

	reply, err := h.relay.HandleChat(r.Context(), sessionID, payload.Message)
	if err != nil {
		utils.RespondAppError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{
		Response:  reply.Response,
		SessionID: reply.SessionID,
		Timestamp: reply.Timestamp,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.store.Get(r.Context(), sessionID)
	if err != nil {
		utils.RespondAppError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, historyResponse{
		SessionID:     sessionID,
		Messages:      messages,
		TotalMessages: len(messages),
	})
}
