package quiz

import (
	"fmt"
	"strings"
)

// Option is one of the four answer choices of a question.
// The zero value means "no option" (unanswered, or an unknown answer key).
type Option string

const (
	OptionNone Option = ""
	OptionA    Option = "A"
	OptionB    Option = "B"
	OptionC    Option = "C"
	OptionD    Option = "D"
)

// DefaultMarks is the weight of a question whose bank gives none.
const DefaultMarks = 1.0

// Options lists the valid options in display order.
var Options = [4]Option{OptionA, OptionB, OptionC, OptionD}

// Valid reports whether o is one of A, B, C or D.
func (o Option) Valid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// ParseOption accepts "A".."D" in any case, surrounded by whitespace.
func ParseOption(raw string) (Option, error) {
	o := Option(strings.ToUpper(strings.TrimSpace(raw)))
	if !o.Valid() {
		return OptionNone, fmt.Errorf("%w: %q", ErrInvalidOption, raw)
	}
	return o, nil
}

// QuestionRecord is one question as loaded from a question bank. It is never mutated
// once a session owns it.
type QuestionRecord struct {
	// Index is the position in the session's ordered question list, 0-based.
	Index int `json:"index"`
	// SerialNo is the bank's own numbering ("Sl No"), kept for display.
	SerialNo int `json:"serial_no"`

	Text        string    `json:"text"`
	OptionText  [4]string `json:"option_text"`
	Explanation string    `json:"explanation"`

	// Raw answer keys as they appear in the bank. Nil means the column was absent.
	CorrectFinal       *string `json:"correct_final,omitempty"`
	CorrectProvisional *string `json:"correct_provisional,omitempty"`

	// Marks is the question's non-negative weight. Zero is a valid weight;
	// loaders apply DefaultMarks when the bank leaves it blank.
	Marks float64 `json:"marks"`
	// NegativeMarks is carried for display only; scoring does not apply it.
	NegativeMarks float64 `json:"negative_marks,omitempty"`
}

// OptionTextFor returns the text of option o, or "" for an invalid option.
func (q QuestionRecord) OptionTextFor(o Option) string {
	for i, opt := range Options {
		if opt == o {
			return q.OptionText[i]
		}
	}
	return ""
}

// withIndex returns a copy of q positioned at idx.
func (q QuestionRecord) withIndex(idx int) QuestionRecord {
	q.Index = idx
	return q
}
