package relay

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/voicebridge/voicebridge/pkg/voicelive"
)

// ErrSessionNotFound is returned for lookups of unknown or removed sessions.
var ErrSessionNotFound = errors.New("relay: session not found")

// Registry is the process-wide session table. A single instance is built at
// startup and passed to everything that needs session access; it is the only
// component that creates and destroys sessions.
type Registry struct {
	cfg    *voicelive.Config
	tokens voicelive.TokenProvider
	log    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds an empty registry. All sessions it creates share the
// upstream configuration and token provider.
func NewRegistry(cfg *voicelive.Config, tokens voicelive.TokenProvider) *Registry {
	return &Registry{
		cfg:      cfg,
		tokens:   tokens,
		log:      slog.Default(),
		sessions: make(map[string]*Session),
	}
}

// CreateSession registers a new session under a fresh identifier. The
// upstream link is not dialed yet; the first outbound command connects it.
func (r *Registry) CreateSession() *Session {
	id := uuid.NewString()
	s := newSession(id, voicelive.NewLink(id, r.cfg, r.tokens))

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.log.Info("session created", "session_id", id)
	return s
}

// GetSession looks up a live session by identifier.
func (r *Registry) GetSession(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// RemoveSession closes and deregisters a session. Removing an unknown
// identifier is a no-op.
func (r *Registry) RemoveSession(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return
	}

	s.Close()
	r.log.Info("session removed", "session_id", id)
}

// SessionIDs returns the identifiers of all live sessions.
func (r *Registry) SessionIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown closes every live session. Used on process exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	if len(sessions) > 0 {
		r.log.Info("all sessions closed", "count", len(sessions))
	}
}
