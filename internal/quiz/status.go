package quiz

import (
	"fmt"
	"time"
)

// Phase is the palette state of a single question.
type Phase uint8

const (
	PhaseNotVisited Phase = iota
	PhaseNotAnswered
	PhaseAnswered
	PhaseMarkedUnanswered
	PhaseMarkedAnswered
	PhaseCleared
	PhaseClearedMarked
)

var phaseNames = [...]string{
	PhaseNotVisited:       "not_visited",
	PhaseNotAnswered:      "not_answered",
	PhaseAnswered:         "answered",
	PhaseMarkedUnanswered: "marked_unanswered",
	PhaseMarkedAnswered:   "marked_answered",
	PhaseCleared:          "cleared",
	PhaseClearedMarked:    "cleared_marked",
}

// Phases lists every phase in declaration order.
var Phases = [...]Phase{
	PhaseNotVisited, PhaseNotAnswered, PhaseAnswered,
	PhaseMarkedUnanswered, PhaseMarkedAnswered,
	PhaseCleared, PhaseClearedMarked,
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	if int(p) >= len(phaseNames) {
		return nil, fmt.Errorf("unknown phase %d", uint8(p))
	}
	return []byte(phaseNames[p]), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if name == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// IsMarked reports whether p is one of the marked-for-review variants.
func (p Phase) IsMarked() bool {
	switch p {
	case PhaseMarkedUnanswered, PhaseMarkedAnswered, PhaseClearedMarked:
		return true
	}
	return false
}

// IsAnswered reports whether p carries a selected option.
func (p Phase) IsAnswered() bool {
	return p == PhaseAnswered || p == PhaseMarkedAnswered
}

// withMark returns the variant of p with the given mark flag.
// NotVisited has no marked variant; marking it first counts as a visit.
func (p Phase) withMark(marked bool) Phase {
	switch p {
	case PhaseNotVisited, PhaseNotAnswered, PhaseMarkedUnanswered:
		if marked {
			return PhaseMarkedUnanswered
		}
		return PhaseNotAnswered
	case PhaseAnswered, PhaseMarkedAnswered:
		if marked {
			return PhaseMarkedAnswered
		}
		return PhaseAnswered
	case PhaseCleared, PhaseClearedMarked:
		if marked {
			return PhaseClearedMarked
		}
		return PhaseCleared
	}
	panic(fmt.Sprintf("quiz: unhandled phase %d", uint8(p)))
}

// QuestionStatus is the mutable per-question state of a session.
type QuestionStatus struct {
	Phase     Phase      `json:"phase"`
	Selected  Option     `json:"selected_option,omitempty"`
	Marked    bool       `json:"marked"`
	VisitedAt *time.Time `json:"visited_at,omitempty"`
}

// valid checks the phase/selection/mark invariants.
func (s QuestionStatus) valid() bool {
	if (s.Selected != OptionNone) != s.Phase.IsAnswered() {
		return false
	}
	if s.Selected != OptionNone && !s.Selected.Valid() {
		return false
	}
	return s.Marked == s.Phase.IsMarked()
}

// Tracker owns the statuses of one session and enforces the state machine.
// It is not safe for concurrent use.
type Tracker struct {
	statuses []QuestionStatus
	closed   bool
}

// NewTracker returns a tracker with n questions in NotVisited.
func NewTracker(n int) *Tracker {
	return &Tracker{statuses: make([]QuestionStatus, n)}
}

// Len returns the number of tracked questions.
func (t *Tracker) Len() int { return len(t.statuses) }

// Status returns a copy of the status at idx.
func (t *Tracker) Status(idx int) (QuestionStatus, error) {
	if idx < 0 || idx >= len(t.statuses) {
		return QuestionStatus{}, fmt.Errorf("%w: %d", ErrQuestionOutOfRange, idx)
	}
	return t.statuses[idx], nil
}

// Statuses returns a copy of all statuses in question order.
func (t *Tracker) Statuses() []QuestionStatus {
	out := make([]QuestionStatus, len(t.statuses))
	copy(out, t.statuses)
	return out
}

// Close makes every further transition fail with ErrSessionTerminated.
func (t *Tracker) Close() { t.closed = true }

// Closed reports whether Close has been called.
func (t *Tracker) Closed() bool { return t.closed }

// Visit moves a NotVisited question to NotAnswered. Later visits change nothing.
func (t *Tracker) Visit(idx int, now time.Time) error {
	st, err := t.mutable(idx)
	if err != nil {
		return err
	}
	if st.Phase == PhaseNotVisited {
		st.Phase = PhaseNotAnswered
		at := now
		st.VisitedAt = &at
	}
	return nil
}

// Select records option as the answer. OptionNone is the same as Clear.
func (t *Tracker) Select(idx int, option Option) error {
	if option == OptionNone {
		return t.Clear(idx)
	}
	if !option.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOption, string(option))
	}
	st, err := t.mutable(idx)
	if err != nil {
		return err
	}
	st.Selected = option
	st.Phase = PhaseAnswered.withMark(st.Marked)
	return nil
}

// Clear removes the answer. The question lands in Cleared, not NotAnswered, so the
// palette can tell a deliberately emptied question from an untouched one.
func (t *Tracker) Clear(idx int) error {
	st, err := t.mutable(idx)
	if err != nil {
		return err
	}
	st.Selected = OptionNone
	st.Phase = PhaseCleared.withMark(st.Marked)
	return nil
}

// ToggleMark flips the review mark without touching the answer.
func (t *Tracker) ToggleMark(idx int) error {
	st, err := t.mutable(idx)
	if err != nil {
		return err
	}
	st.Marked = !st.Marked
	st.Phase = st.Phase.withMark(st.Marked)
	return nil
}

func (t *Tracker) mutable(idx int) (*QuestionStatus, error) {
	if t.closed {
		return nil, ErrSessionTerminated
	}
	if idx < 0 || idx >= len(t.statuses) {
		return nil, fmt.Errorf("%w: %d", ErrQuestionOutOfRange, idx)
	}
	return &t.statuses[idx], nil
}
