package quiz

import (
	"time"

	"github.com/google/uuid"
)

// QuestionResult is the scored outcome of one question. It carries the question
// itself so that a stored result is enough to build a retest.
type QuestionResult struct {
	Index         int            `json:"index"`
	Question      QuestionRecord `json:"question"`
	UserAnswer    Option         `json:"user_answer,omitempty"`
	CorrectAnswer Option         `json:"correct_answer,omitempty"`
	IsCorrect     bool           `json:"is_correct"`
	Marked        bool           `json:"marked"`
}

// Result is the immutable outcome of a submitted session.
type Result struct {
	// ID equals the session ID, so rescoring a session yields the same result.
	ID             uuid.UUID        `json:"id"`
	ExamName       string           `json:"exam_name"`
	BankID         string           `json:"bank_id,omitempty"`
	OriginOf       *uuid.UUID       `json:"origin_of,omitempty"`
	UseFinalKey    bool             `json:"use_final_key"`
	StartedAt      time.Time        `json:"started_at"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	TotalQuestions int              `json:"total_questions"`
	Attempted      int              `json:"attempted"`
	CorrectCount   int              `json:"correct_count"`
	TotalMarks     float64          `json:"total_marks"`
	ObtainedMarks  float64          `json:"obtained_marks"`
	Percentage     float64          `json:"percentage"`
	PerQuestion    []QuestionResult `json:"per_question"`
}

// Score computes the result of a submitted session. There is no negative
// marking: a wrong answer scores the same as no answer.
func Score(s *Session, resolver KeyResolver) (*Result, error) {
	if !s.submitted {
		return nil, ErrSessionNotSubmitted
	}
	if resolver == nil {
		resolver = DefaultResolver
	}

	r := &Result{
		ID:             s.ID,
		ExamName:       s.ExamName,
		BankID:         s.BankID,
		OriginOf:       s.OriginOf,
		UseFinalKey:    s.UseFinalKey,
		StartedAt:      s.StartedAt,
		TotalQuestions: len(s.questions),
		PerQuestion:    make([]QuestionResult, 0, len(s.questions)),
	}
	if s.SubmittedAt != nil {
		r.SubmittedAt = *s.SubmittedAt
	}

	for i, q := range s.questions {
		st := s.tracker.statuses[i]
		correct := resolver.Resolve(q, s.UseFinalKey)
		isCorrect := st.Selected != OptionNone && st.Selected == correct

		r.TotalMarks += q.Marks
		if st.Selected != OptionNone {
			r.Attempted++
		}
		if isCorrect {
			r.CorrectCount++
			r.ObtainedMarks += q.Marks
		}

		r.PerQuestion = append(r.PerQuestion, QuestionResult{
			Index:         i,
			Question:      q,
			UserAnswer:    st.Selected,
			CorrectAnswer: correct,
			IsCorrect:     isCorrect,
			Marked:        st.Marked,
		})
	}

	if r.TotalMarks > 0 {
		r.Percentage = r.ObtainedMarks / r.TotalMarks * 100
	}
	return r, nil
}
