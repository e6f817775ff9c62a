package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/litmusq-backend/internal/quiz"
)

// StartSessionRequest is the payload for configuring a new test.
type StartSessionRequest struct {
	BankID          uuid.UUID `json:"bank_id" binding:"required"`
	ExamName        string    `json:"exam_name" binding:"omitempty,max=255"`
	Count           int       `json:"count" binding:"min=0,max=500"`
	DurationMinutes int       `json:"duration_minutes" binding:"min=0,max=600"`
	UseFinalKey     bool      `json:"use_final_key"`
	// Shuffle has no default; the client must choose.
	Shuffle *bool `json:"shuffle" binding:"required"`
}

// GoToRequest moves the session to a question.
type GoToRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// AnswerRequest selects an option for a question.
type AnswerRequest struct {
	Option string `json:"option" binding:"required,option"`
}

// RetestRequest configures a session derived from a past result.
type RetestRequest struct {
	Mode            string `json:"mode" binding:"omitempty,retest_mode"`
	Count           int    `json:"count" binding:"min=0,max=500"`
	DurationMinutes int    `json:"duration_minutes" binding:"min=0,max=600"`
	UseFinalKey     bool   `json:"use_final_key"`
	Shuffle         *bool  `json:"shuffle" binding:"required"`
}

// QuestionForCandidate is a question without its answer key or explanation.
type QuestionForCandidate struct {
	Index         int       `json:"index"`
	SerialNo      int       `json:"serial_no"`
	Text          string    `json:"text"`
	Options       [4]string `json:"options"`
	Marks         float64   `json:"marks"`
	NegativeMarks float64   `json:"negative_marks,omitempty"`
}

// NewQuestionForCandidate strips the answer keys from q.
func NewQuestionForCandidate(q quiz.QuestionRecord) QuestionForCandidate {
	return QuestionForCandidate{
		Index:         q.Index,
		SerialNo:      q.SerialNo,
		Text:          q.Text,
		Options:       q.OptionText,
		Marks:         q.Marks,
		NegativeMarks: q.NegativeMarks,
	}
}

// SessionView is what a client needs to render a running session.
type SessionView struct {
	ID           uuid.UUID             `json:"id"`
	ExamName     string                `json:"exam_name"`
	BankID       string                `json:"bank_id,omitempty"`
	OriginOf     *uuid.UUID            `json:"origin_of,omitempty"`
	StartedAt    time.Time             `json:"started_at"`
	Deadline     *time.Time            `json:"deadline,omitempty"`
	Submitted    bool                  `json:"submitted"`
	CurrentIndex int                   `json:"current_index"`
	Current      QuestionForCandidate  `json:"current"`
	Statuses     []quiz.QuestionStatus `json:"statuses"`
	Palette      quiz.Palette          `json:"palette"`
	// RemainingSeconds is nil for untimed sessions.
	RemainingSeconds *float64 `json:"remaining_seconds,omitempty"`
	// RefreshSeconds suggests how often to redraw the countdown.
	RefreshSeconds float64 `json:"refresh_seconds,omitempty"`
}

// NewSessionView renders s as seen at now.
func NewSessionView(s *quiz.Session, now time.Time) SessionView {
	current, _ := s.Question(s.CurrentIndex())
	v := SessionView{
		ID:           s.ID,
		ExamName:     s.ExamName,
		BankID:       s.BankID,
		OriginOf:     s.OriginOf,
		StartedAt:    s.StartedAt,
		Deadline:     s.Clock.Deadline,
		Submitted:    s.Submitted(),
		CurrentIndex: s.CurrentIndex(),
		Current:      NewQuestionForCandidate(current),
		Statuses:     s.Statuses(),
		Palette:      s.Palette(),
	}
	if left, ok := s.Clock.Remaining(now); ok {
		secs := left.Seconds()
		v.RemainingSeconds = &secs
		v.RefreshSeconds = s.Clock.RefreshInterval(now).Seconds()
	}
	return v
}

// HistoryEntry is one row of a user's test history.
type HistoryEntry struct {
	ID             uuid.UUID  `json:"id"`
	ExamName       string     `json:"exam_name"`
	BankID         string     `json:"bank_id,omitempty"`
	OriginOf       *uuid.UUID `json:"origin_of,omitempty"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	TotalQuestions int        `json:"total_questions"`
	Attempted      int        `json:"attempted"`
	CorrectCount   int        `json:"correct_count"`
	TotalMarks     float64    `json:"total_marks"`
	ObtainedMarks  float64    `json:"obtained_marks"`
	Percentage     float64    `json:"percentage"`
}

// NewHistoryEntry summarises r.
func NewHistoryEntry(r quiz.Result) HistoryEntry {
	return HistoryEntry{
		ID:             r.ID,
		ExamName:       r.ExamName,
		BankID:         r.BankID,
		OriginOf:       r.OriginOf,
		SubmittedAt:    r.SubmittedAt,
		TotalQuestions: r.TotalQuestions,
		Attempted:      r.Attempted,
		CorrectCount:   r.CorrectCount,
		TotalMarks:     r.TotalMarks,
		ObtainedMarks:  r.ObtainedMarks,
		Percentage:     r.Percentage,
	}
}
