package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionEventType names what happened to a session.
type SessionEventType string

const (
	SessionEventSubmitted SessionEventType = "submitted"
)

// SessionEvent is broadcast to stream subscribers of a session.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	SessionID uuid.UUID        `json:"session_id"`
	// Auto is set when the deadline, not the user, ended the session.
	Auto bool      `json:"auto"`
	At   time.Time `json:"at"`
}
