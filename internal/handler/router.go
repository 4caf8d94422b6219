package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	adminHandler "github.com/zhouzirui/aura/backend/internal/handler/admin"
	chatHandler "github.com/zhouzirui/aura/backend/internal/handler/chat"
	speechHandler "github.com/zhouzirui/aura/backend/internal/handler/speech"
	middlewarePkg "github.com/zhouzirui/aura/backend/internal/middleware"
	"github.com/zhouzirui/aura/backend/internal/service/admin"
	chatService "github.com/zhouzirui/aura/backend/internal/service/chat"
	"github.com/zhouzirui/aura/backend/internal/service/export"
	speechService "github.com/zhouzirui/aura/backend/internal/service/speech"
	"github.com/zhouzirui/aura/backend/pkg/utils"
)

// Dependencies are the services the HTTP surface needs.
type Dependencies struct {
	Logger    *zap.Logger
	Store     *chatService.Service
	Relay     *chatService.Relay
	Exporter  *export.Exporter
	Gate      *admin.Gate
	StaticDir string

	// Synthesizer is optional; without it /api/voice/synthesize returns no audio.
	Synthesizer speechService.Synthesizer
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", handleHealth)

		chatHandler.New(deps.Relay, deps.Store).RegisterRoutes(api)
		speechHandler.New(deps.Relay, deps.Synthesizer).RegisterRoutes(api)

		api.Route("/admin", func(ar chi.Router) {
			ar.Use(middlewarePkg.AdminGate(deps.Gate, logger))
			adminHandler.New(deps.Exporter).RegisterRoutes(ar)
		})
	})

	mountStatic(r, deps.StaticDir, logger)

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// mountStatic serves the bundled web UI when dir exists.
func mountStatic(r chi.Router, dir string, logger *zap.Logger) {
	if dir == "" {
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logger.Info("static directory not found, ui disabled", zap.String("dir", dir))
		return
	}

	index := filepath.Join(dir, "index.html")
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		if _, err := os.Stat(index); err != nil {
			utils.RespondError(w, http.StatusNotFound, "frontend not found")
			return
		}
		http.ServeFile(w, req, index)
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
}
