// Voice Gateway - duplex voice stream relay with sideband intent dispatch
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/moltlabs/voice-gateway/internal/api"
	"github.com/moltlabs/voice-gateway/internal/autonomy"
	"github.com/moltlabs/voice-gateway/internal/capability"
	"github.com/moltlabs/voice-gateway/internal/channels"
	"github.com/moltlabs/voice-gateway/internal/config"
	"github.com/moltlabs/voice-gateway/internal/heartbeat"
	"github.com/moltlabs/voice-gateway/internal/intent"
	"github.com/moltlabs/voice-gateway/internal/middleware"
	"github.com/moltlabs/voice-gateway/internal/relay"
	"github.com/moltlabs/voice-gateway/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting gateway", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Initialize services.
	svc := capability.NewClient(cfg.OrchestratorURL, cfg.ForgeURL)
	if cfg.OrchestratorURL == "" {
		slog.Warn("ORCHESTRATOR_URL not set, orchestrator capabilities disabled")
	}
	if cfg.ForgeURL == "" {
		slog.Warn("FORGE_URL not set, forge capabilities disabled")
	}

	dispatcher := intent.NewDispatcher(svc)
	gaps := autonomy.NewTracker()
	ladder := autonomy.NewLadder(autonomy.NewSynthesizer(svc), repo, logger)
	notifier := channels.NewNotifier(repo, logger)

	pipeline := &relay.Pipeline{
		Dispatcher:   dispatcher,
		Gaps:         gaps,
		Ladder:       ladder,
		Notifier:     notifier,
		GapThreshold: cfg.GapThreshold,
	}

	registry := relay.NewRegistry()
	wsHandler := relay.NewHandler(cfg.TunnelURL, pipeline, registry, cfg.IsDevelopment())

	// Initialize handlers.
	apiHandler := api.NewHandler(repo, notifier)
	healthHandler := api.NewHealthHandler(repo)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	// Public routes.
	healthHandler.RegisterHealth(r)
	apiHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/voice", wsHandler.ServeHTTP)

	// WriteTimeout stays 0: voice sessions hold the connection open for the
	// lifetime of a conversation.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start heartbeat worker.
	hb := heartbeat.NewRunner(svc, cfg.TunnelURL, cfg.HeartbeatPath, logger)
	hb.Start(ctx, cfg.HeartbeatInterval)
	slog.Info("Heartbeat worker started", "interval", cfg.HeartbeatInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	registry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
