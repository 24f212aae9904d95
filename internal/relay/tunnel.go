// Package relay bridges client voice connections to the backend speech
// service and feeds intercepted sideband traffic into the intent pipeline.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/moltlabs/voice-gateway/internal/sideband"
)

// ErrTunnelUnavailable reports that the backend did not yield a duplex
// channel. Callers must treat it as non-fatal; sessions run degraded.
var ErrTunnelUnavailable = errors.New("tunnel unavailable")

// sendTimeout bounds a single tunnel write. Sends never block indefinitely;
// a write that cannot complete drops the connection.
const sendTimeout = 5 * time.Second

// TunnelEvents receives traffic and status changes from the backend side of
// a session. Methods are called from the tunnel's read goroutine.
type TunnelEvents interface {
	AudioFromBackend(data []byte)
	SidebandFromBackend(msg sideband.Message)
	TunnelStatus(connected bool)
}

// BackendTunnel is the session's view of its backend connection.
type BackendTunnel interface {
	Connected() bool
	SendAudio(data []byte)
	SendSideband(msg sideband.Message)
	Close()
}

// Tunnel wraps one outbound duplex WebSocket to the backend. All sends are
// no-ops while disconnected; the status observer is notified exactly once
// per connection loss.
type Tunnel struct {
	wsURL  string
	events TunnelEvents
	logger *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	notified bool
	cancel   context.CancelFunc
}

// NewTunnel creates a tunnel for the given backend base URL. The URL may use
// http(s) or ws(s) scheme; it is normalized to the backend's voice WebSocket
// path.
func NewTunnel(tunnelURL string, events TunnelEvents, logger *slog.Logger) *Tunnel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tunnel{
		wsURL:  normalizeTunnelURL(tunnelURL),
		events: events,
		logger: logger,
	}
}

func normalizeTunnelURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/voice"
	u.RawQuery = ""
	return u.String()
}

// Connect dials the backend. On success a read goroutine runs until the
// connection drops or Close is called.
func (t *Tunnel) Connect(ctx context.Context) error {
	if t.wsURL == "" || strings.HasPrefix(t.wsURL, "ws:///") {
		return ErrTunnelUnavailable
	}

	conn, _, err := websocket.Dial(ctx, t.wsURL, nil)
	if err != nil {
		return errors.Join(ErrTunnelUnavailable, err)
	}
	// Audio frames can be large; the gateway does not inspect them.
	conn.SetReadLimit(-1)

	readCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.conn = conn
	t.notified = false
	t.cancel = cancel
	t.mu.Unlock()

	t.events.TunnelStatus(true)
	go t.readLoop(readCtx, conn)
	return nil
}

// Connected reports whether the tunnel currently has a live connection.
func (t *Tunnel) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// SendAudio forwards a binary audio frame to the backend. No-op while
// disconnected; send failures drop the connection.
func (t *Tunnel) SendAudio(data []byte) {
	t.send(websocket.MessageBinary, data)
}

// SendSideband forwards a sideband message to the backend. No-op while
// disconnected.
func (t *Tunnel) SendSideband(msg sideband.Message) {
	raw, err := msg.Encode()
	if err != nil {
		t.logger.Warn("Failed to encode sideband for tunnel", "error", err)
		return
	}
	t.send(websocket.MessageText, raw)
}

func (t *Tunnel) send(typ websocket.MessageType, data []byte) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := conn.Write(ctx, typ, data); err != nil {
		t.logger.Debug("Tunnel write failed", "error", err)
		t.dropConnection(conn)
	}
}

func (t *Tunnel) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer t.dropConnection(conn)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				t.logger.Debug("Tunnel read error", "error", err)
			}
			return
		}

		switch typ {
		case websocket.MessageBinary:
			t.events.AudioFromBackend(data)
		case websocket.MessageText:
			msg, err := sideband.Decode(data)
			if err != nil {
				t.logger.Warn("Dropping malformed sideband from backend", "error", err)
				continue
			}
			t.events.SidebandFromBackend(msg)
		}
	}
}

// dropConnection tears down one specific connection and notifies the status
// observer once. A stale drop for an already-replaced connection is ignored.
func (t *Tunnel) dropConnection(conn *websocket.Conn) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	cancel := t.cancel
	t.cancel = nil
	alreadyNotified := t.notified
	t.notified = true
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = conn.Close(websocket.StatusNormalClosure, "tunnel closed")
	if !alreadyNotified {
		t.events.TunnelStatus(false)
	}
}

// Close tears down the tunnel. Safe to call repeatedly.
func (t *Tunnel) Close() {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		t.dropConnection(conn)
	}
}
