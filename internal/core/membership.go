package core

import (
	"github.com/rs/zerolog/log"

	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/domain"
)

// AddParticipant inserts a participant into the roster. The session
// enforces the single-host invariant: a claimed host flag is honoured
// only when the seat is free or already belongs to this participant.
func (s *Session) AddParticipant(p *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addParticipantLocked(p)
}

func (s *Session) addParticipantLocked(p *domain.Participant) error {
	if s.closed {
		return ErrSessionClosed
	}
	if _, ok := s.participants[p.ID]; ok {
		return ErrDuplicateParticipant
	}
	if s.opts.MaxParticipants > 0 && len(s.participants) >= s.opts.MaxParticipants {
		return ErrSessionFull
	}

	switch {
	case p.IsHost && s.hostID == "":
		s.hostID = p.ID
	case p.IsHost && s.hostID != p.ID:
		log.Warn().Str("module", "core.session").
			Str("session", string(s.ID)).
			Str("participant", string(p.ID)).
			Str("host", string(s.hostID)).
			Msg("host seat taken, joining as regular participant")
		p.IsHost = false
	case !p.IsHost && s.hostID == p.ID:
		p.IsHost = true
	}

	s.participants[p.ID] = p
	s.publishLocked(ChangeParticipantJoined)
	log.Info().Str("module", "core.session").
		Str("session", string(s.ID)).
		Str("participant", string(p.ID)).
		Bool("host", p.IsHost).
		Msg("participant added")
	return nil
}

// RemoveParticipant takes a participant out of the roster. Removing an
// absent id is a no-op, since a leave may race with a host-initiated
// removal. Returns the remaining roster size for lifecycle decisions.
func (s *Session) RemoveParticipant(id domain.ParticipantID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[id]; !ok {
		return len(s.participants)
	}
	delete(s.participants, id)
	if s.hostID == id {
		s.hostID = ""
	}
	s.publishLocked(ChangeParticipantLeft)
	log.Info().Str("module", "core.session").
		Str("session", string(s.ID)).
		Str("participant", string(id)).
		Int("remaining", len(s.participants)).
		Msg("participant removed")
	return len(s.participants)
}

// UpdateCapabilities applies a partial media-flag update for one
// participant.
func (s *Session) UpdateCapabilities(id domain.ParticipantID, update domain.CapabilityUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return ErrParticipantNotFound
	}
	p.Capabilities.Apply(update)
	s.publishLocked(ChangeCapabilities)
	return nil
}

// TransferHost atomically moves the host seat from one participant to
// another. Readers observe either the old assignment or the new one,
// never both and never neither.
func (s *Session) TransferHost(from, to domain.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if from == "" || from != s.hostID {
		return ErrInvalidHostTransfer
	}
	target, ok := s.participants[to]
	if !ok {
		return ErrParticipantNotFound
	}
	if prev, ok := s.participants[from]; ok {
		prev.IsHost = false
	}
	target.IsHost = true
	s.hostID = to
	s.publishLocked(ChangeHost)
	log.Info().Str("module", "core.session").
		Str("session", string(s.ID)).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("host transferred")
	return nil
}
