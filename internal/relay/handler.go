package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// tunnelConnectTimeout bounds the backend dial during session setup.
const tunnelConnectTimeout = 10 * time.Second

// Handler upgrades voice connections and runs a session per connection.
type Handler struct {
	tunnelURL string
	pipeline  *Pipeline
	registry  *Registry
	isDev     bool
}

// NewHandler creates the voice WebSocket handler. tunnelURL may be empty;
// sessions then run in loopback mode.
func NewHandler(tunnelURL string, pipeline *Pipeline, registry *Registry, isDev bool) *Handler {
	return &Handler{
		tunnelURL: tunnelURL,
		pipeline:  pipeline,
		registry:  registry,
		isDev:     isDev,
	}
}

// ServeHTTP accepts a voice WebSocket connection and relays it until either
// side closes. The backend being unreachable never fails the client
// connection; the session degrades instead.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		userID = "anonymous"
	}
	slog.Info("Voice connection request", "user_id", userID, "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(-1)

	session := NewSession(userID, ws, h.pipeline, slog.Default())
	h.registry.Register(session)
	defer h.registry.Unregister(session)
	defer session.Close()

	if h.tunnelURL != "" {
		tunnel := NewTunnel(h.tunnelURL, session, slog.Default())
		session.AttachTunnel(tunnel)

		connectCtx, cancel := context.WithTimeout(r.Context(), tunnelConnectTimeout)
		err := tunnel.Connect(connectCtx)
		cancel()
		if err != nil {
			if errors.Is(err, ErrTunnelUnavailable) {
				slog.Warn("Backend tunnel unavailable, session degraded", "user_id", userID)
			} else {
				slog.Warn("Backend tunnel connect failed, session degraded",
					"user_id", userID, "error", err)
			}
		}
	} else {
		slog.Info("No tunnel configured, session in loopback mode", "user_id", userID)
	}

	session.Run(r.Context())
	slog.Info("Voice session ended", "user_id", userID)
}
