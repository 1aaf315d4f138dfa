// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"time"
)

const (
	MaxParticipantIDLen = 64
	MaxDisplayNameLen   = 64
)

var (
	ErrDisplayNameEmpty     = errors.New("display name empty")
	ErrDisplayNameTooLong   = errors.New("display name too long")
	ErrParticipantIDEmpty   = errors.New("participant id empty")
	ErrParticipantIDTooLong = errors.New("participant id too long")
)

type (
	SessionID     string
	ParticipantID string
)

// Capabilities are the media flags the coordinator tracks for a participant.
// The actual bitstreams live in the external media transport; these are
// on/off markers only.
type Capabilities struct {
	Audio      bool `json:"audio"`
	Video      bool `json:"video"`
	Presenting bool `json:"presenting"`
}

// CapabilityUpdate is a partial update: nil fields are left untouched.
type CapabilityUpdate struct {
	Audio      *bool `json:"audio,omitempty"`
	Video      *bool `json:"video,omitempty"`
	Presenting *bool `json:"presenting,omitempty"`
}

// Participant is one attendee currently counted as "in" a session.
type Participant struct {
	ID           ParticipantID
	DisplayName  string
	IsHost       bool
	Capabilities Capabilities
	JoinedAt     time.Time
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(id ParticipantID, displayName string, isHost bool) (*Participant, error) {
	if err := validateParticipantID(id); err != nil {
		return nil, err
	}
	if err := validateDisplayName(displayName); err != nil {
		return nil, err
	}
	return &Participant{
		ID:          id,
		DisplayName: displayName,
		IsHost:      isHost,
		JoinedAt:    time.Now(),
	}, nil
}

func validateParticipantID(id ParticipantID) error {
	if len(id) == 0 {
		return ErrParticipantIDEmpty
	}
	if len(id) > MaxParticipantIDLen {
		return ErrParticipantIDTooLong
	}
	return nil
}

func validateDisplayName(name string) error {
	if len(name) == 0 {
		return ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	return nil
}

// Apply merges a partial update into the flags.
func (c *Capabilities) Apply(u CapabilityUpdate) {
	if u.Audio != nil {
		c.Audio = *u.Audio
	}
	if u.Video != nil {
		c.Video = *u.Video
	}
	if u.Presenting != nil {
		c.Presenting = *u.Presenting
	}
}
