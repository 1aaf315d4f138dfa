package core

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionClosed        = errors.New("session closed")
	ErrSessionFull          = errors.New("session full")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrDuplicateParticipant = errors.New("duplicate participant")
	ErrRequestNotFound      = errors.New("admission request not found")
	ErrAlreadyResolved      = errors.New("admission request already resolved")
	ErrForbidden            = errors.New("host permission required")
	ErrInvalidHostTransfer  = errors.New("invalid host transfer")
	ErrInvalidDecision      = errors.New("invalid admission decision")
	ErrBackpressure         = errors.New("subscriber buffer full")
)
