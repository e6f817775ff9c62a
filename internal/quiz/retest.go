package quiz

import (
	"fmt"
	"sort"
	"strings"
)

// RetestMode selects which questions of a past result go into a retest.
type RetestMode string

const (
	RetestAll                    RetestMode = "all"
	RetestIncorrectOnly          RetestMode = "incorrect"
	RetestUnansweredOnly         RetestMode = "unanswered"
	RetestIncorrectAndUnanswered RetestMode = "incorrect_and_unanswered"
)

// DefaultRetestMode is used when the caller does not pick one.
const DefaultRetestMode = RetestIncorrectAndUnanswered

// ParseRetestMode accepts the mode names above; the empty string yields the default.
func ParseRetestMode(raw string) (RetestMode, error) {
	m := RetestMode(strings.ToLower(strings.TrimSpace(raw)))
	switch m {
	case "":
		return DefaultRetestMode, nil
	case RetestAll, RetestIncorrectOnly, RetestUnansweredOnly, RetestIncorrectAndUnanswered:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRetestMode, raw)
}

// Outcome classifies one past answer.
type Outcome uint8

const (
	OutcomeCorrect Outcome = iota
	OutcomeIncorrect
	OutcomeUnanswered
)

// Classify returns the outcome of a scored question.
func (qr QuestionResult) Classify() Outcome {
	switch {
	case qr.UserAnswer == OptionNone:
		return OutcomeUnanswered
	case !qr.IsCorrect:
		return OutcomeIncorrect
	default:
		return OutcomeCorrect
	}
}

func (m RetestMode) includes(o Outcome) bool {
	switch m {
	case RetestAll:
		return true
	case RetestIncorrectOnly:
		return o == OutcomeIncorrect
	case RetestUnansweredOnly:
		return o == OutcomeUnanswered
	case RetestIncorrectAndUnanswered:
		return o == OutcomeIncorrect || o == OutcomeUnanswered
	}
	return false
}

// DeriveRetestQuestions picks the questions of past that match mode, ordered by
// their original index. Start assigns fresh indexes to the returned records.
// An empty pick fails with ErrEmptySelection.
func DeriveRetestQuestions(past *Result, mode RetestMode) ([]QuestionRecord, error) {
	mode, err := ParseRetestMode(string(mode))
	if err != nil {
		return nil, err
	}

	// A result read back from a store is not trusted to keep index order.
	picked := make([]QuestionResult, 0, len(past.PerQuestion))
	for _, qr := range past.PerQuestion {
		if mode.includes(qr.Classify()) {
			picked = append(picked, qr)
		}
	}
	if len(picked) == 0 {
		return nil, ErrEmptySelection
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].Index < picked[j].Index })

	out := make([]QuestionRecord, len(picked))
	for i, qr := range picked {
		out[i] = qr.Question
	}
	return out, nil
}
