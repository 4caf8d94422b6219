package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/aura/backend/internal/service/export"
	"github.com/zhouzirui/aura/backend/pkg/utils"
)

// Handler serves anonymized aggregate views. Callers mount it behind the admin gate.
type Handler struct {
	exporter *export.Exporter
}

// New creates the admin handler.
func New(exporter *export.Exporter) *Handler {
	return &Handler{exporter: exporter}
}

// RegisterRoutes mounts the admin routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stats", h.handleStats)
	r.Get("/conversations", h.handleConversations)
	r.Get("/download/csv", h.handleDownload(h.exporter.CSV))
	r.Get("/download/json", h.handleDownload(h.exporter.JSON))
}

type conversationsResponse struct {
	TotalConversations int                   `json:"total_conversations"`
	Conversations      []export.Conversation `json:"conversations"`
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.exporter.Stats(r.Context()))
}

func (h *Handler) handleConversations(w http.ResponseWriter, r *http.Request) {
	view := h.exporter.Conversations(r.Context())
	utils.RespondJSON(w, http.StatusOK, conversationsResponse{
		TotalConversations: len(view),
		Conversations:      view,
	})
}

func (h *Handler) handleDownload(render func(ctx context.Context) (export.Export, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := render(r.Context())
		if err != nil {
			utils.RespondAppError(w, r, err)
			return
		}
		utils.RespondAttachment(w, out.Filename, out.ContentType, out.Body)
	}
}
