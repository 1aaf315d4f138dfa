package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/domain"
)

// SessionInfo is the listing view of one active session.
type SessionInfo struct {
	ID               domain.SessionID `json:"id"`
	ParticipantCount int              `json:"participant_count"`
	RequiresApproval bool             `json:"requires_approval"`
}

// Registry owns the table of active sessions. It is the only state
// shared across all callers; everything else hangs off a *Session and
// is reachable only through here.
type Registry struct {
	opts Options

	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts,
		sessions: make(map[domain.SessionID]*Session),
	}
}

// GetOrCreate returns the session for id, creating it when absent.
// hostID seeds the host seat on creation only; for an existing session it
// is ignored. Concurrent calls with the same id converge on one session.
func (r *Registry) GetOrCreate(id domain.SessionID, hostID domain.ParticipantID, requiresApproval bool) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.sessions[id]; ok {
		return s, false
	}
	s = NewSession(id, hostID, requiresApproval, r.opts)
	r.sessions[id] = s
	log.Info().Str("module", "core.registry").
		Str("session", string(id)).
		Str("host", string(hostID)).
		Bool("requires_approval", requiresApproval).
		Msg("session created")
	return s, true
}

func (r *Registry) Get(id domain.SessionID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove deletes a session from the table once its roster is empty.
// A session that still has participants, or that does not exist, is
// left alone; both are documented no-ops.
func (r *Registry) Remove(id domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	if !s.closeIfEmpty() {
		return
	}
	delete(r.sessions, id)
	log.Info().Str("module", "core.registry").Str("session", string(id)).Msg("session removed")
}

func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, SessionInfo{
			ID:               id,
			ParticipantCount: s.ParticipantCount(),
			RequiresApproval: s.RequiresApproval,
		})
	}
	return out
}
