// Package api provides the HTTP surface of the voice gateway.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/moltlabs/voice-gateway/internal/channels"
	"github.com/moltlabs/voice-gateway/internal/domain"
	"github.com/moltlabs/voice-gateway/internal/store"
)

// ServiceName identifies this service in health responses.
const ServiceName = "voice-gateway"

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Handler serves the review-queue and push endpoints.
type Handler struct {
	repo     store.Repository
	notifier *channels.Notifier
}

// NewHandler creates the API handler.
func NewHandler(repo store.Repository, notifier *channels.Notifier) *Handler {
	return &Handler{repo: repo, notifier: notifier}
}

// RegisterRoutes mounts the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/reviews", h.listReviews)
	r.Delete("/api/reviews/{id}", h.clearReview)
	r.Post("/api/push/subscribe", h.subscribe)
	r.Get("/api/push/notifications", h.notifications)
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	pending, err := h.repo.PendingProjectRequests(r.Context())
	if err != nil {
		slog.Error("Failed to list project requests", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"pending": pending, "count": len(pending)})
}

func (h *Handler) clearReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cleared, err := h.repo.ClearProjectRequest(r.Context(), id)
	if err != nil {
		slog.Error("Failed to clear project request", "id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to clear review")
		return
	}
	if !cleared {
		Error(w, http.StatusNotFound, "review not found")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var sub domain.PushSubscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		Error(w, http.StatusBadRequest, "invalid subscription payload")
		return
	}
	if err := h.notifier.Subscribe(r.Context(), &sub); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	JSON(w, http.StatusCreated, map[string]bool{"subscribed": true})
}

func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = "anonymous"
	}
	queued, err := h.notifier.Queued(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list notifications", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if queued == nil {
		queued = []*domain.Notification{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"notifications": queued})
}

// HealthHandler answers external monitoring probes.
type HealthHandler struct {
	repo store.Repository
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(repo store.Repository) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// Health reports service liveness. The store being unreachable degrades the
// status but the voice path keeps serving.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	JSON(w, code, map[string]string{
		"status":    status,
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
