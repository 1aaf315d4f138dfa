package core

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/domain"
)

// ChangeKind labels why a snapshot was published.
type ChangeKind string

const (
	ChangeParticipantJoined ChangeKind = "participant_joined"
	ChangeParticipantLeft   ChangeKind = "participant_left"
	ChangeCapabilities      ChangeKind = "capabilities_changed"
	ChangeHost              ChangeKind = "host_changed"
	ChangeAdmissionPending  ChangeKind = "admission_requested"
	ChangeAdmissionResolved ChangeKind = "admission_resolved"
	ChangeSessionEnded      ChangeKind = "session_ended"
)

// ParticipantView is a read-only projection for APIs (no transport fields).
type ParticipantView struct {
	ID          domain.ParticipantID `json:"id"`
	DisplayName string               `json:"display_name"`
	IsHost      bool                 `json:"is_host"`
	Audio       bool                 `json:"audio"`
	Video       bool                 `json:"video"`
	Presenting  bool                 `json:"presenting"`
	JoinedAt    time.Time            `json:"joined_at"`
}

// PendingView is the host-facing projection of a pending admission request.
type PendingView struct {
	ID          domain.RequestID `json:"id"`
	DisplayName string           `json:"display_name"`
	RequestedAt time.Time        `json:"requested_at"`
}

// Snapshot is the full observable state of one session at one instant.
// Version increases by one per mutation, so any attendee can check it
// never observes a roster older than one it has already seen.
type Snapshot struct {
	SessionID        domain.SessionID     `json:"session_id"`
	Version          uint64               `json:"version"`
	Change           ChangeKind           `json:"change"`
	HostID           domain.ParticipantID `json:"host_id,omitempty"`
	RequiresApproval bool                 `json:"requires_approval"`
	CreatedAt        time.Time            `json:"created_at"`
	Participants     []ParticipantView    `json:"participants"`
	Pending          []PendingView        `json:"pending"`
}

// snapshotLocked builds an immutable copy of the session state.
// Caller must hold s.mu.
func (s *Session) snapshotLocked(kind ChangeKind) Snapshot {
	participants := make([]ParticipantView, 0, len(s.participants))
	for _, p := range s.participants {
		participants = append(participants, ParticipantView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			IsHost:      p.IsHost,
			Audio:       p.Capabilities.Audio,
			Video:       p.Capabilities.Video,
			Presenting:  p.Capabilities.Presenting,
			JoinedAt:    p.JoinedAt,
		})
	}
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].ID < participants[j].ID
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})

	// Pending requests keep arrival order so the host's queue is stable.
	pending := lo.Map(s.pending, func(a *admission, _ int) PendingView {
		return PendingView{
			ID:          a.req.ID,
			DisplayName: a.req.DisplayName,
			RequestedAt: a.req.RequestedAt,
		}
	})

	return Snapshot{
		SessionID:        s.ID,
		Version:          s.version,
		Change:           kind,
		HostID:           s.hostID,
		RequiresApproval: s.RequiresApproval,
		CreatedAt:        s.CreatedAt,
		Participants:     participants,
		Pending:          pending,
	}
}
