package core

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/domain"
)

// admission pairs a request with its resolution signal and idle timer.
type admission struct {
	req   *domain.AdmissionRequest
	done  chan struct{}
	timer *time.Timer
}

// resolveLocked performs the single pending -> approved/denied transition.
// Caller must hold s.mu and remove the entry from s.pending itself.
func (a *admission) resolveLocked(s *Session, status domain.AdmissionStatus) {
	a.req.Status = status
	s.resolvedLog[a.req.ID] = status
	if a.timer != nil {
		a.timer.Stop()
	}
	close(a.done)
}

// AdmissionTicket is the requester's handle on a queued request.
// Resolved() closes exactly once, when the request leaves pending.
type AdmissionTicket struct {
	s           *Session
	id          domain.RequestID
	participant domain.ParticipantID
	done        <-chan struct{}
}

func (t *AdmissionTicket) ID() domain.RequestID { return t.id }

func (t *AdmissionTicket) ParticipantID() domain.ParticipantID { return t.participant }

func (t *AdmissionTicket) Resolved() <-chan struct{} { return t.done }

func (t *AdmissionTicket) Status() domain.AdmissionStatus {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if status, ok := t.s.resolvedLog[t.id]; ok {
		return status
	}
	return domain.AdmissionPending
}

// RequestAdmission queues a pending request for a session that requires
// host approval. Requesting again with the same participant id returns
// the existing ticket, so a reconnecting requester does not grow the
// host's queue. The caller is notified of the resolution through the
// ticket and through snapshot broadcasts.
func (s *Session) RequestAdmission(participantID domain.ParticipantID, displayName string) (*AdmissionTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.opts.MaxParticipants > 0 && len(s.participants) >= s.opts.MaxParticipants {
		return nil, ErrSessionFull
	}
	for _, a := range s.pending {
		if a.req.ParticipantID == participantID {
			return &AdmissionTicket{s: s, id: a.req.ID, participant: participantID, done: a.done}, nil
		}
	}

	req, err := domain.NewAdmissionRequest(participantID, displayName)
	if err != nil {
		return nil, err
	}
	a := &admission{req: req, done: make(chan struct{})}
	if s.opts.AdmissionTimeout > 0 {
		a.timer = time.AfterFunc(s.opts.AdmissionTimeout, func() {
			s.expire(req.ID)
		})
	}
	s.pending = append(s.pending, a)
	s.publishLocked(ChangeAdmissionPending)
	log.Info().Str("module", "core.session").
		Str("session", string(s.ID)).
		Str("request", string(req.ID)).
		Str("participant", string(participantID)).
		Msg("admission requested")
	return &AdmissionTicket{s: s, id: req.ID, participant: participantID, done: a.done}, nil
}

// Resolve applies the host's decision to one pending request. Exactly one
// resolution succeeds per request; every later attempt reports
// ErrAlreadyResolved. On approval the participant enters the roster in
// the same critical section, so no attendee can observe the approval
// without the roster change.
func (s *Session) Resolve(requestID domain.RequestID, decision domain.Decision, resolverID domain.ParticipantID) (domain.AdmissionRequest, error) {
	if decision != domain.AdmissionApproved && decision != domain.AdmissionDenied {
		return domain.AdmissionRequest{}, ErrInvalidDecision
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if resolverID == "" || resolverID != s.hostID {
		return domain.AdmissionRequest{}, ErrForbidden
	}

	idx := -1
	for i, a := range s.pending {
		if a.req.ID == requestID {
			idx = i
			break
		}
	}
	if idx < 0 {
		if _, ok := s.resolvedLog[requestID]; ok {
			return domain.AdmissionRequest{}, ErrAlreadyResolved
		}
		return domain.AdmissionRequest{}, ErrRequestNotFound
	}
	a := s.pending[idx]

	if decision == domain.AdmissionApproved {
		p, err := domain.NewParticipant(a.req.ParticipantID, a.req.DisplayName, false)
		if err != nil {
			return domain.AdmissionRequest{}, err
		}
		if err := s.addParticipantLocked(p); err != nil && err != ErrDuplicateParticipant {
			// Leave the request pending; the host can deny it or retry
			// once a seat frees up.
			return domain.AdmissionRequest{}, err
		}
	}

	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	a.resolveLocked(s, decision)
	s.publishLocked(ChangeAdmissionResolved)
	log.Info().Str("module", "core.session").
		Str("session", string(s.ID)).
		Str("request", string(requestID)).
		Str("decision", string(decision)).
		Str("resolver", string(resolverID)).
		Msg("admission resolved")
	return *a.req, nil
}

// Withdraw cancels the requester's own pending request, resolving it to
// denied so nothing is left dangling.
func (s *Session) Withdraw(requestID domain.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, a := range s.pending {
		if a.req.ID == requestID {
			idx = i
			break
		}
	}
	if idx < 0 {
		if _, ok := s.resolvedLog[requestID]; ok {
			return ErrAlreadyResolved
		}
		return ErrRequestNotFound
	}
	a := s.pending[idx]
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	a.resolveLocked(s, domain.AdmissionDenied)
	s.publishLocked(ChangeAdmissionResolved)
	log.Info().Str("module", "core.session").
		Str("session", string(s.ID)).
		Str("request", string(requestID)).
		Msg("admission withdrawn")
	return nil
}

// expire denies a request that sat in the queue past the configured
// admission timeout. No-op when the request was resolved in the meantime.
func (s *Session) expire(requestID domain.RequestID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.pending {
		if a.req.ID != requestID {
			continue
		}
		s.pending = append(s.pending[:i], s.pending[i+1:]...)
		a.resolveLocked(s, domain.AdmissionDenied)
		s.publishLocked(ChangeAdmissionResolved)
		log.Info().Str("module", "core.session").
			Str("session", string(s.ID)).
			Str("request", string(requestID)).
			Msg("admission timed out")
		return
	}
}

// PendingRequests exposes the host's approval queue, oldest first.
func (s *Session) PendingRequests() []domain.AdmissionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AdmissionRequest, 0, len(s.pending))
	for _, a := range s.pending {
		out = append(out, *a.req)
	}
	return out
}
