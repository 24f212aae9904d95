package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/moltlabs/voice-gateway/internal/autonomy"
	"github.com/moltlabs/voice-gateway/internal/channels"
	"github.com/moltlabs/voice-gateway/internal/intent"
	"github.com/moltlabs/voice-gateway/internal/sideband"
)

// DefaultGapThreshold is the failure count at which a gap escalates.
const DefaultGapThreshold = 3

// clientWriteTimeout bounds one write to the client connection.
const clientWriteTimeout = 5 * time.Second

// State is the per-session bookkeeping, owned exclusively by its session.
type State struct {
	UserID       string
	ConnectedAt  time.Time
	LastActivity time.Time
	FrameCount   int64
}

// ClientConn is the client-facing side of a session. *websocket.Conn
// satisfies it.
type ClientConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Pipeline bundles the shared intent-processing dependencies every session
// uses. One Pipeline serves all sessions.
type Pipeline struct {
	Dispatcher   *intent.Dispatcher
	Gaps         *autonomy.Tracker
	Ladder       *autonomy.Ladder
	Notifier     *channels.Notifier
	GapThreshold int
}

// Session relays one client's voice connection. Client frames are processed
// one at a time on the Run loop; backend traffic arrives on the tunnel's
// read goroutine. Audio forwarding never waits on intent dispatch.
type Session struct {
	userID   string
	pipeline *Pipeline
	client   ClientConn
	tunnel   BackendTunnel
	logger   *slog.Logger

	state State

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewSession creates a session for one client connection. The tunnel is
// attached separately because connecting it may fail without failing the
// session.
func NewSession(userID string, client ClientConn, pipeline *Pipeline, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	return &Session{
		userID:   userID,
		pipeline: pipeline,
		client:   client,
		logger:   logger.With("user_id", userID),
		state: State{
			UserID:       userID,
			ConnectedAt:  now,
			LastActivity: now,
		},
	}
}

// AttachTunnel wires the backend tunnel. A session without a tunnel runs
// degraded: audio echoes back to the client and client sideband is dropped.
func (s *Session) AttachTunnel(t BackendTunnel) {
	s.tunnel = t
}

// State returns a copy of the session state.
func (s *Session) State() State {
	return s.state
}

// Run reads client frames until the connection closes or ctx is done.
func (s *Session) Run(ctx context.Context) {
	defer s.Close()
	for {
		typ, data, err := s.client.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				s.logger.Debug("Client closed connection")
			} else if ctx.Err() == nil {
				s.logger.Debug("Client read error", "error", err)
			}
			return
		}
		s.HandleFrame(typ, data)
	}
}

// HandleFrame processes one inbound client frame.
func (s *Session) HandleFrame(typ websocket.MessageType, data []byte) {
	s.state.FrameCount++
	s.state.LastActivity = time.Now()

	switch typ {
	case websocket.MessageBinary:
		if s.tunnelConnected() {
			s.tunnel.SendAudio(data)
		} else {
			// Loopback keeps the session observably alive without a backend.
			s.writeClient(websocket.MessageBinary, data)
		}
	case websocket.MessageText:
		msg, err := sideband.Decode(data)
		if err != nil {
			// Malformed sideband is dropped, not an error.
			return
		}
		s.handleClientSideband(msg)
	}
}

func (s *Session) handleClientSideband(msg sideband.Message) {
	if msg.Type == sideband.TypeControl && msg.Data.Command == sideband.CommandPing {
		s.sendPong()
		return
	}
	if s.tunnelConnected() {
		s.tunnel.SendSideband(msg)
	}
}

// sendPong answers a ping locally; it never reaches the backend.
func (s *Session) sendPong() {
	reply := sideband.Message{
		Type: sideband.TypeControl,
		Data: sideband.Data{
			Command: sideband.CommandStop,
			ContextData: map[string]any{
				"pong":            true,
				"uptime":          time.Since(s.state.ConnectedAt).Milliseconds(),
				"frameCount":      s.state.FrameCount,
				"tunnelConnected": s.tunnelConnected(),
			},
		},
		Timestamp: sideband.Now(),
	}
	s.writeSideband(reply)
}

// AudioFromBackend forwards backend audio to the client.
func (s *Session) AudioFromBackend(data []byte) {
	s.writeClient(websocket.MessageBinary, data)
}

// SidebandFromBackend forwards backend sideband to the client and feeds it
// through the intent pipeline. Dispatch runs on its own goroutine so the
// tunnel's read loop keeps relaying audio.
func (s *Session) SidebandFromBackend(msg sideband.Message) {
	s.writeSideband(msg)
	go s.dispatch(msg)
}

// TunnelStatus logs tunnel connectivity changes.
func (s *Session) TunnelStatus(connected bool) {
	if connected {
		s.logger.Info("Backend tunnel connected")
	} else {
		s.logger.Info("Backend tunnel disconnected")
	}
}

// dispatch runs the intent pipeline for one backend sideband message and
// sends the packaged context frame back to the backend. Dispatch failures
// feed the gap tracker; a session that closes mid-dispatch simply discards
// the results.
func (s *Session) dispatch(msg sideband.Message) {
	ctx := context.Background()

	out, result := s.pipeline.Dispatcher.Dispatch(ctx, msg)
	if out == nil {
		return
	}
	if s.tunnelConnected() {
		s.tunnel.SendSideband(*out)
	}

	failed := result.Errors()
	if len(failed) == 0 {
		return
	}
	for _, f := range failed {
		s.pipeline.Gaps.RecordFailure(result.Category, result.Entities, f.Error)
	}
	s.escalateIfSignificant(ctx, result.Category)
}

func (s *Session) escalateIfSignificant(ctx context.Context, category string) {
	threshold := s.pipeline.GapThreshold
	if threshold <= 0 {
		threshold = DefaultGapThreshold
	}

	gap, ok := s.pipeline.Gaps.Get(category)
	if !ok || gap.FailureCount < threshold {
		return
	}

	res, err := s.pipeline.Ladder.Escalate(ctx, gap)
	if err != nil {
		// Losing a review request is an operator-facing fault.
		s.logger.Error("Escalation storage failed", "category", category, "error", err)
		return
	}

	if res.Resolved {
		s.pipeline.Gaps.Resolve(category)
		s.logger.Info("Capability gap resolved", "category", category, "tier", string(res.Tier))
		return
	}

	if res.RequiresNotification && s.pipeline.Notifier != nil {
		title := "Capability gap needs review"
		if res.Tier == autonomy.TierL4 {
			title = "Critical capability gap"
		}
		if _, err := s.pipeline.Notifier.Notify(ctx, s.userID, channels.Payload{
			Title: title,
			Body:  res.Description,
			Tag:   "escalation",
		}); err != nil {
			s.logger.Warn("Failed to queue escalation notification", "error", err)
		}
	}
}

func (s *Session) tunnelConnected() bool {
	return s.tunnel != nil && s.tunnel.Connected()
}

func (s *Session) writeSideband(msg sideband.Message) {
	raw, err := msg.Encode()
	if err != nil {
		s.logger.Warn("Failed to encode sideband for client", "error", err)
		return
	}
	s.writeClient(websocket.MessageText, raw)
}

func (s *Session) writeClient(typ websocket.MessageType, data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), clientWriteTimeout)
	defer cancel()
	if err := s.client.Write(ctx, typ, data); err != nil {
		s.logger.Debug("Client write failed", "error", err)
	}
}

// Close tears down the session. Safe to call repeatedly.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.tunnel != nil {
			s.tunnel.Close()
		}
		_ = s.client.Close(websocket.StatusNormalClosure, "session ended")
		s.logger.Info("Session closed", "frames", s.state.FrameCount)
	})
}
