package ws

import (
	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/core"
	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/domain"
)

// Inbound payloads. Every message carries a "type" discriminator; the
// remaining fields depend on it.

type joinPayload struct {
	Type             string `json:"type"`
	Session          string `json:"session"`
	Name             string `json:"name"`
	AsHost           bool   `json:"as_host,omitempty"`
	RequiresApproval bool   `json:"requires_approval,omitempty"`
}

type updateMediaPayload struct {
	Type       string `json:"type"`
	Audio      *bool  `json:"audio,omitempty"`
	Video      *bool  `json:"video,omitempty"`
	Presenting *bool  `json:"presenting,omitempty"`
}

type transferHostPayload struct {
	Type string `json:"type"`
	To   string `json:"to"`
}

type resolvePayload struct {
	Type     string `json:"type"`
	Request  string `json:"request"`
	Decision string `json:"decision"`
}

type withdrawPayload struct {
	Type    string `json:"type"`
	Request string `json:"request"`
}

// Outbound payloads.

type sessionStateMsg struct {
	Type     string        `json:"type"`
	Snapshot core.Snapshot `json:"snapshot"`
}

type admissionPendingMsg struct {
	Type    string           `json:"type"`
	Session domain.SessionID `json:"session"`
	Request domain.RequestID `json:"request"`
}

type admissionResultMsg struct {
	Type     string                 `json:"type"`
	Session  domain.SessionID       `json:"session"`
	Request  domain.RequestID       `json:"request"`
	Decision domain.AdmissionStatus `json:"decision"`
}

type whoamiMsg struct {
	Type        string               `json:"type"`
	Participant domain.ParticipantID `json:"participant"`
	Session     domain.SessionID     `json:"session,omitempty"`
}

type errorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}
