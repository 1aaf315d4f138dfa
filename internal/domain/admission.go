package domain

import (
	"time"

	"github.com/google/uuid"
)

type RequestID string

type AdmissionStatus string

const (
	AdmissionPending  AdmissionStatus = "pending"
	AdmissionApproved AdmissionStatus = "approved"
	AdmissionDenied   AdmissionStatus = "denied"
)

// Decision is the host's verdict on a pending request.
type Decision = AdmissionStatus

// AdmissionRequest is a pending ask to join a session that requires
// host approval. Status transitions out of pending at most once.
type AdmissionRequest struct {
	ID            RequestID
	ParticipantID ParticipantID
	DisplayName   string
	RequestedAt   time.Time
	Status        AdmissionStatus
}

func NewAdmissionRequest(participantID ParticipantID, displayName string) (*AdmissionRequest, error) {
	if err := validateParticipantID(participantID); err != nil {
		return nil, err
	}
	if err := validateDisplayName(displayName); err != nil {
		return nil, err
	}
	return &AdmissionRequest{
		ID:            RequestID(uuid.NewString()),
		ParticipantID: participantID,
		DisplayName:   displayName,
		RequestedAt:   time.Now(),
		Status:        AdmissionPending,
	}, nil
}
