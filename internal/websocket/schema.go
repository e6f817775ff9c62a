package websocket

import (
	"github.com/google/uuid"
	"github.com/stemsi/litmusq-backend/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionState    Action = "state"
	ActionGoTo     Action = "goto"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	ActionAnswer   Action = "answer"
	ActionClear    Action = "clear"
	ActionMark     Action = "mark"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// Request is every client message. Index and Option are read only by the
// actions that need them.
type Request struct {
	Action Action `json:"action"`
	Index  *int   `json:"index,omitempty"`
	Option string `json:"option,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventSubmitted Event = "submitted"
	EventPong      Event = "pong"
)

// StateResponse carries the full session view after every command.
type StateResponse struct {
	Event   Event             `json:"event"`
	Session model.SessionView `json:"session"`
}

// TickResponse is the countdown pushed at the session's refresh interval.
type TickResponse struct {
	Event            Event   `json:"event"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	RefreshSeconds   float64 `json:"refresh_seconds"`
}

// SubmittedResponse announces the end of the session.
type SubmittedResponse struct {
	Event     Event               `json:"event"`
	SessionID uuid.UUID           `json:"session_id"`
	Auto      bool                `json:"auto"`
	Result    *model.HistoryEntry `json:"result,omitempty"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
