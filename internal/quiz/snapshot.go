package quiz

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the serialisable form of a Session, used to park a session in a
// store between requests.
type Snapshot struct {
	ID           uuid.UUID        `json:"id"`
	ExamName     string           `json:"exam_name"`
	BankID       string           `json:"bank_id,omitempty"`
	UseFinalKey  bool             `json:"use_final_key"`
	OriginOf     *uuid.UUID       `json:"origin_of,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	Deadline     *time.Time       `json:"deadline,omitempty"`
	SubmittedAt  *time.Time       `json:"submitted_at,omitempty"`
	Submitted    bool             `json:"submitted"`
	CurrentIndex int              `json:"current_index"`
	Questions    []QuestionRecord `json:"questions"`
	Statuses     []QuestionStatus `json:"statuses"`
}

// Snapshot captures the full state of s.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:           s.ID,
		ExamName:     s.ExamName,
		BankID:       s.BankID,
		UseFinalKey:  s.UseFinalKey,
		OriginOf:     s.OriginOf,
		StartedAt:    s.StartedAt,
		Deadline:     s.Clock.Deadline,
		SubmittedAt:  s.SubmittedAt,
		Submitted:    s.submitted,
		CurrentIndex: s.current,
		Questions:    s.Questions(),
		Statuses:     s.tracker.Statuses(),
	}
}

// Restore rebuilds a session from a snapshot, rejecting snapshots that break
// the status invariants.
func Restore(snap Snapshot) (*Session, error) {
	n := len(snap.Questions)
	if n == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrCorruptSnapshot)
	}
	if len(snap.Statuses) != n {
		return nil, fmt.Errorf("%w: %d statuses for %d questions", ErrCorruptSnapshot, len(snap.Statuses), n)
	}
	if snap.CurrentIndex < 0 || snap.CurrentIndex >= n {
		return nil, fmt.Errorf("%w: current index %d", ErrCorruptSnapshot, snap.CurrentIndex)
	}
	for i, st := range snap.Statuses {
		if !st.valid() {
			return nil, fmt.Errorf("%w: status %d violates invariants", ErrCorruptSnapshot, i)
		}
		if snap.Questions[i].Index != i {
			return nil, fmt.Errorf("%w: question %d has index %d", ErrCorruptSnapshot, i, snap.Questions[i].Index)
		}
	}

	t := NewTracker(n)
	copy(t.statuses, snap.Statuses)

	s := &Session{
		ID:          snap.ID,
		ExamName:    snap.ExamName,
		BankID:      snap.BankID,
		UseFinalKey: snap.UseFinalKey,
		OriginOf:    snap.OriginOf,
		StartedAt:   snap.StartedAt,
		SubmittedAt: snap.SubmittedAt,
		Clock:       Clock{Deadline: snap.Deadline},
		questions:   append([]QuestionRecord(nil), snap.Questions...),
		tracker:     t,
		current:     snap.CurrentIndex,
		submitted:   snap.Submitted,
		now:         time.Now,
	}
	if s.submitted {
		t.Close()
	}
	return s, nil
}
