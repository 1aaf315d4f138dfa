package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/domain"
)

// Options tune per-session behaviour. Zero values mean: unlimited
// participants, no admission timeout, default subscriber buffer.
type Options struct {
	MaxParticipants  int
	AdmissionTimeout time.Duration
	SubscriberBuffer int
}

const defaultSubscriberBuffer = 16

// Session is one live meeting instance. All mutating operations take
// s.mu, which is the single mutation path the invariants rely on;
// readers get immutable Snapshot copies, never interior pointers.
type Session struct {
	ID               domain.SessionID
	RequiresApproval bool
	CreatedAt        time.Time

	opts Options

	mu           sync.Mutex
	closed       bool
	hostID       domain.ParticipantID
	participants map[domain.ParticipantID]*domain.Participant
	pending      []*admission
	resolvedLog  map[domain.RequestID]domain.AdmissionStatus
	version      uint64
	subs         map[domain.ParticipantID]*Subscriber
}

func NewSession(id domain.SessionID, hostID domain.ParticipantID, requiresApproval bool, opts Options) *Session {
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = defaultSubscriberBuffer
	}
	return &Session{
		ID:               id,
		RequiresApproval: requiresApproval,
		CreatedAt:        time.Now(),
		opts:             opts,
		hostID:           hostID,
		participants:     make(map[domain.ParticipantID]*domain.Participant),
		resolvedLog:      make(map[domain.RequestID]domain.AdmissionStatus),
		subs:             make(map[domain.ParticipantID]*Subscriber),
	}
}

func (s *Session) ParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

func (s *Session) HostID() domain.ParticipantID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostID
}

func (s *Session) IsHost(id domain.ParticipantID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id != "" && id == s.hostID
}

// Snapshot returns the current state as an immutable copy.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked("")
}

// publishLocked bumps the version and fans the new snapshot out to every
// subscriber. Sends never block (buffered channel, drop on overflow), so
// holding s.mu here is safe and keeps per-subscriber delivery in version
// order. Caller must hold s.mu.
func (s *Session) publishLocked(kind ChangeKind) {
	s.version++
	snap := s.snapshotLocked(kind)
	for _, sub := range s.subs {
		if err := sub.trySend(snap); err != nil {
			log.Warn().Str("module", "core.session").
				Str("session", string(s.ID)).
				Str("subscriber", string(sub.ParticipantID)).
				Uint64("version", snap.Version).
				Msg("snapshot dropped, subscriber is slow")
		}
	}
}

// closeIfEmpty tears the session down when the roster is empty. Any
// still-pending admission requests resolve to denied, subscribers get a
// final session_ended snapshot and their channels close. Returns false
// if someone rejoined since the emptiness check that triggered teardown.
func (s *Session) closeIfEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	if len(s.participants) > 0 {
		return false
	}
	s.closed = true
	for _, a := range s.pending {
		a.resolveLocked(s, domain.AdmissionDenied)
	}
	s.pending = nil
	s.publishLocked(ChangeSessionEnded)
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = make(map[domain.ParticipantID]*Subscriber)
	log.Info().Str("module", "core.session").Str("session", string(s.ID)).Msg("session closed")
	return true
}
