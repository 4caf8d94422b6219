package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/aura/backend/internal/config"
	"github.com/zhouzirui/aura/backend/internal/handler"
	"github.com/zhouzirui/aura/backend/internal/logging"
	"github.com/zhouzirui/aura/backend/internal/service/admin"
	"github.com/zhouzirui/aura/backend/internal/service/ai"
	"github.com/zhouzirui/aura/backend/internal/service/chat"
	"github.com/zhouzirui/aura/backend/internal/service/export"
	"github.com/zhouzirui/aura/backend/internal/service/speech"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

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

	if envErr != nil {
		logger.Info("no .env file loaded, using process environment", zap.Error(envErr))
	}

	store := chat.NewService(chat.WithLogger(logger))

	var responder chat.Responder
	if cfg.LLM.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.LLM)
		if err != nil {
			logger.Warn("ai service unavailable, chat will return 503", zap.Error(err))
		} else {
			responder = aiService
		}
	} else {
		logger.Warn("llm credentials not configured, chat will return 503", zap.String("provider", cfg.LLM.Provider))
	}

	var transcriber chat.Transcriber
	var synthesizer speech.Synthesizer
	if cfg.Speech.Enabled() {
		speechService, err := speech.NewService(cfg.Speech)
		if err != nil {
			logger.Warn("speech service unavailable, voice endpoints will return 503", zap.Error(err))
		} else {
			transcriber = speechService
			if speechService.CanSynthesize() {
				synthesizer = speechService
			}
		}
	} else {
		logger.Warn("speech credentials not configured, voice endpoints will return 503", zap.String("provider", cfg.Speech.Provider))
	}

	gate := admin.NewGate(cfg.Admin.Key)
	if gate.Mode() == admin.ModeInsecureDev {
		logger.Warn("ADMIN_KEY not set, admin endpoints are open to everyone", zap.String("mode", gate.Mode().String()))
	}

	router := handler.NewRouter(handler.Dependencies{
		Logger:    logger,
		Store:     store,
		Relay:     chat.NewRelay(store, responder, transcriber, max(cfg.LLM.Timeout, cfg.Speech.Timeout)),
		Exporter:  export.NewExporter(store, nil),
		Gate:      gate,
		StaticDir: cfg.Server.StaticDir,

		Synthesizer: synthesizer,
	})

	startServer(ctx, logger, cfg.Server, router)
}

func startServer(ctx context.Context, logger *zap.Logger, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("aura backend listening", zap.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
