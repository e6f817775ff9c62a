package quiz

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Config describes how a session is assembled from a question list.
type Config struct {
	ExamName string
	BankID   string
	// Count is how many questions to draw. Zero, negative or too large means all.
	Count           int
	DurationMinutes int
	UseFinalKey     bool
	// Shuffle draws a random sample without replacement; otherwise the first Count
	// questions are taken in source order.
	Shuffle bool
	// OriginOf links a retest to the result it was derived from.
	OriginOf *uuid.UUID
}

// Session is one attempt at a configured set of questions. It is owned by a
// single caller and is not safe for concurrent use.
type Session struct {
	ID          uuid.UUID
	ExamName    string
	BankID      string
	UseFinalKey bool
	OriginOf    *uuid.UUID

	StartedAt   time.Time
	SubmittedAt *time.Time
	Clock       Clock

	questions []QuestionRecord
	tracker   *Tracker
	current   int
	submitted bool
	now       func() time.Time
}

// Start builds a new session from questions. rng drives shuffling; a nil rng
// uses the package-level source.
func Start(questions []QuestionRecord, cfg Config, now time.Time, rng *rand.Rand) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	for i, q := range questions {
		if q.Marks < 0 {
			return nil, fmt.Errorf("%w: question %d has %g", ErrNegativeMarks, i+1, q.Marks)
		}
	}

	count := cfg.Count
	if count <= 0 || count > len(questions) {
		count = len(questions)
	}

	picked := make([]QuestionRecord, 0, count)
	if cfg.Shuffle {
		var perm []int
		if rng != nil {
			perm = rng.Perm(len(questions))
		} else {
			perm = rand.Perm(len(questions))
		}
		for _, p := range perm[:count] {
			picked = append(picked, questions[p])
		}
	} else {
		picked = append(picked, questions[:count]...)
	}
	for i := range picked {
		picked[i] = picked[i].withIndex(i)
	}

	return &Session{
		ID:          uuid.New(),
		ExamName:    cfg.ExamName,
		BankID:      cfg.BankID,
		UseFinalKey: cfg.UseFinalKey,
		OriginOf:    cfg.OriginOf,
		StartedAt:   now,
		Clock:       NewClock(now, cfg.DurationMinutes),
		questions:   picked,
		tracker:     NewTracker(len(picked)),
		now:         time.Now,
	}, nil
}

// SetNow replaces the time source used to stamp visits.
func (s *Session) SetNow(now func() time.Time) { s.now = now }

// Questions returns the session's questions in display order.
func (s *Session) Questions() []QuestionRecord {
	out := make([]QuestionRecord, len(s.questions))
	copy(out, s.questions)
	return out
}

// Question returns the question at idx.
func (s *Session) Question(idx int) (QuestionRecord, error) {
	if idx < 0 || idx >= len(s.questions) {
		return QuestionRecord{}, fmt.Errorf("%w: %d", ErrQuestionOutOfRange, idx)
	}
	return s.questions[idx], nil
}

// Len returns the number of questions.
func (s *Session) Len() int { return len(s.questions) }

// CurrentIndex returns the question the caller is looking at.
func (s *Session) CurrentIndex() int { return s.current }

// Submitted reports whether the session reached its terminal state.
func (s *Session) Submitted() bool { return s.submitted }

// Status returns the status of the question at idx.
func (s *Session) Status(idx int) (QuestionStatus, error) { return s.tracker.Status(idx) }

// Statuses returns every status in question order.
func (s *Session) Statuses() []QuestionStatus { return s.tracker.Statuses() }

// GoTo moves to idx and visits it. Out-of-range indexes are ignored.
func (s *Session) GoTo(idx int) error {
	if s.submitted {
		return ErrSessionTerminated
	}
	if idx < 0 || idx >= len(s.questions) {
		return nil
	}
	if err := s.tracker.Visit(idx, s.now()); err != nil {
		return err
	}
	s.current = idx
	return nil
}

// Next moves forward one question; at the last question it does nothing.
func (s *Session) Next() error { return s.GoTo(s.current + 1) }

// Previous moves back one question; at the first question it does nothing.
func (s *Session) Previous() error { return s.GoTo(s.current - 1) }

// Answer selects option for the question at idx.
func (s *Session) Answer(idx int, option Option) error {
	if s.submitted {
		return ErrSessionTerminated
	}
	if !option.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOption, string(option))
	}
	if err := s.touch(idx); err != nil {
		return err
	}
	return s.tracker.Select(idx, option)
}

// ClearAnswer removes the answer for the question at idx.
func (s *Session) ClearAnswer(idx int) error {
	if s.submitted {
		return ErrSessionTerminated
	}
	if err := s.touch(idx); err != nil {
		return err
	}
	return s.tracker.Clear(idx)
}

// ToggleMark flips the review mark of the question at idx.
func (s *Session) ToggleMark(idx int) error {
	if s.submitted {
		return ErrSessionTerminated
	}
	if err := s.touch(idx); err != nil {
		return err
	}
	return s.tracker.ToggleMark(idx)
}

// IsExpired reports whether the deadline has passed at now.
func (s *Session) IsExpired(now time.Time) bool { return s.Clock.IsExpired(now) }

// Submit moves the session to its terminal state. Repeated calls keep the first
// submission time.
func (s *Session) Submit(now time.Time) {
	if s.submitted {
		return
	}
	s.submitted = true
	at := now
	s.SubmittedAt = &at
	s.tracker.Close()
}

// touch visits a question that is answered or marked without being navigated to.
func (s *Session) touch(idx int) error {
	if idx < 0 || idx >= len(s.questions) {
		return fmt.Errorf("%w: %d", ErrQuestionOutOfRange, idx)
	}
	return s.tracker.Visit(idx, s.now())
}

// Palette counts questions per phase.
type Palette struct {
	Total    int           `json:"total"`
	Answered int           `json:"answered"`
	Marked   int           `json:"marked"`
	ByPhase  map[Phase]int `json:"by_phase"`
}

// Palette summarises the session for the question palette and footer.
func (s *Session) Palette() Palette {
	p := Palette{Total: len(s.questions), ByPhase: make(map[Phase]int, len(Phases))}
	for _, ph := range Phases {
		p.ByPhase[ph] = 0
	}
	for _, st := range s.tracker.statuses {
		p.ByPhase[st.Phase]++
		if st.Selected != OptionNone {
			p.Answered++
		}
		if st.Marked {
			p.Marked++
		}
	}
	return p
}
