// Package app wires the session registry, admission control and
// lifecycle into the flows the transport adapters call.
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/core"
	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/domain"
)

type Coordinator struct {
	Registry *core.Registry

	gracePeriod time.Duration
}

func NewCoordinator(registry *core.Registry, gracePeriod time.Duration) *Coordinator {
	return &Coordinator{
		Registry:    registry,
		gracePeriod: gracePeriod,
	}
}

// JoinResult is what a join attempt produced: either roster membership
// with a snapshot, or a queued admission ticket to wait on.
type JoinResult struct {
	Admitted bool
	Decision domain.AdmissionStatus
	Ticket   *core.AdmissionTicket
	Session  *core.Session
	Snapshot core.Snapshot
}

// Join resolves or creates the session and either admits the caller
// immediately (open session, recognized host, or creator) or queues an
// admission request. It never blocks; use Await for the pending case.
//
// Identity is trusted as handed in: the booking collaborator vouches for
// asHost, and the first caller of a session with no designation becomes
// its host.
func (c *Coordinator) Join(
	sessionID domain.SessionID,
	participantID domain.ParticipantID,
	displayName string,
	asHost bool,
	requiresApproval bool,
) (JoinResult, error) {
	for {
		var hostSeed domain.ParticipantID
		if asHost {
			hostSeed = participantID
		}
		sess, created := c.Registry.GetOrCreate(sessionID, hostSeed, requiresApproval)
		if created && hostSeed == "" {
			// No designation supplied: the creator takes the host seat.
			asHost = true
		}

		// A host claim only bypasses the queue while the seat is free or
		// already theirs; a conflicting claim against an approval-required
		// session waits in line like anyone else.
		seat := sess.HostID()
		hostClaim := asHost && (seat == "" || seat == participantID)
		if !sess.RequiresApproval || created || hostClaim || sess.IsHost(participantID) {
			p, err := domain.NewParticipant(participantID, displayName, hostClaim || created)
			if err != nil {
				return JoinResult{}, err
			}
			if err := sess.AddParticipant(p); err != nil {
				if err == core.ErrSessionClosed {
					// Lost a race with grace-period teardown; drop the
					// dead entry and create a fresh session.
					c.Registry.Remove(sessionID)
					continue
				}
				return JoinResult{}, err
			}
			return JoinResult{
				Admitted: true,
				Decision: domain.AdmissionApproved,
				Session:  sess,
				Snapshot: sess.Snapshot(),
			}, nil
		}

		ticket, err := sess.RequestAdmission(participantID, displayName)
		if err != nil {
			if err == core.ErrSessionClosed {
				c.Registry.Remove(sessionID)
				continue
			}
			return JoinResult{}, err
		}
		return JoinResult{
			Admitted: false,
			Decision: domain.AdmissionPending,
			Ticket:   ticket,
			Session:  sess,
		}, nil
	}
}

// Await blocks until the queued request resolves or ctx ends. A
// cancelled caller withdraws its own request so the host's queue never
// holds a dead entry.
func (c *Coordinator) Await(ctx context.Context, sess *core.Session, ticket *core.AdmissionTicket) (JoinResult, error) {
	select {
	case <-ticket.Resolved():
	case <-ctx.Done():
		c.Abandon(sess, ticket)
		return JoinResult{}, ctx.Err()
	}

	decision := ticket.Status()
	res := JoinResult{
		Admitted: decision == domain.AdmissionApproved,
		Decision: decision,
		Session:  sess,
	}
	if res.Admitted {
		res.Snapshot = sess.Snapshot()
	}
	return res, nil
}

// Abandon ends a requester's interest in a queued request when the
// requester itself goes away. A still-pending request is withdrawn; a
// request the host approved in the meantime has already put the
// requester in the roster, so the abandon becomes a leave — otherwise
// the phantom participant would pin the session open forever.
func (c *Coordinator) Abandon(sess *core.Session, ticket *core.AdmissionTicket) {
	err := sess.Withdraw(ticket.ID())
	if err == nil || err == core.ErrRequestNotFound {
		return
	}
	if err != core.ErrAlreadyResolved {
		log.Warn().Str("module", "app.coordinator").
			Str("session", string(sess.ID)).
			Str("request", string(ticket.ID())).
			Err(err).
			Msg("withdraw on abandon failed")
		return
	}
	if ticket.Status() == domain.AdmissionApproved {
		log.Info().Str("module", "app.coordinator").
			Str("session", string(sess.ID)).
			Str("participant", string(ticket.ParticipantID())).
			Msg("requester gone after approval, leaving roster")
		c.Leave(sess.ID, ticket.ParticipantID())
	}
}

// Leave removes the participant and, when the roster empties, schedules
// the session for removal after the grace period. Leaving an unknown
// session or an absent participant is a no-op.
func (c *Coordinator) Leave(sessionID domain.SessionID, participantID domain.ParticipantID) {
	sess, err := c.Registry.Get(sessionID)
	if err != nil {
		return
	}
	if remaining := sess.RemoveParticipant(participantID); remaining > 0 {
		return
	}
	if c.gracePeriod <= 0 {
		c.Registry.Remove(sessionID)
		return
	}
	// Remove re-checks emptiness when the timer fires, so a reconnect
	// during the grace period keeps the session alive.
	time.AfterFunc(c.gracePeriod, func() {
		c.Registry.Remove(sessionID)
	})
	log.Info().Str("module", "app.coordinator").
		Str("session", string(sessionID)).
		Dur("grace", c.gracePeriod).
		Msg("empty session, teardown scheduled")
}

func (c *Coordinator) UpdateCapabilities(sessionID domain.SessionID, participantID domain.ParticipantID, update domain.CapabilityUpdate) error {
	sess, err := c.Registry.Get(sessionID)
	if err != nil {
		return err
	}
	return sess.UpdateCapabilities(participantID, update)
}

func (c *Coordinator) TransferHost(sessionID domain.SessionID, from, to domain.ParticipantID) error {
	sess, err := c.Registry.Get(sessionID)
	if err != nil {
		return err
	}
	return sess.TransferHost(from, to)
}

func (c *Coordinator) Resolve(sessionID domain.SessionID, requestID domain.RequestID, decision domain.Decision, resolverID domain.ParticipantID) (domain.AdmissionRequest, error) {
	sess, err := c.Registry.Get(sessionID)
	if err != nil {
		return domain.AdmissionRequest{}, err
	}
	return sess.Resolve(requestID, decision, resolverID)
}

func (c *Coordinator) Withdraw(sessionID domain.SessionID, requestID domain.RequestID) error {
	sess, err := c.Registry.Get(sessionID)
	if err != nil {
		return err
	}
	return sess.Withdraw(requestID)
}

func (c *Coordinator) Snapshot(sessionID domain.SessionID) (core.Snapshot, error) {
	sess, err := c.Registry.Get(sessionID)
	if err != nil {
		return core.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

func (c *Coordinator) Sessions() []core.SessionInfo {
	return c.Registry.List()
}
