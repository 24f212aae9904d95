package relay

import (
	"log/slog"
	"sync"
)

// Registry tracks the active session per user. A new connection for a user
// replaces and closes the previous one.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{active: make(map[string]*Session)}
}

// Get returns the active session for a user, or nil.
func (r *Registry) Get(userID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[userID]
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Register makes the session the active one for its user, closing any
// session it replaces.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	existing := r.active[s.userID]
	r.active[s.userID] = s
	r.mu.Unlock()

	if existing != nil && existing != s {
		existing.Close()
	}
	slog.Info("Voice session registered", "user_id", s.userID)
}

// CloseAll closes every active session. Used during shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.active))
	for _, s := range r.active {
		sessions = append(sessions, s)
	}
	r.active = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Unregister removes the session if it is still the active one for its user.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.active[s.userID]; ok && current == s {
		delete(r.active, s.userID)
		slog.Info("Voice session unregistered", "user_id", s.userID)
	}
}
