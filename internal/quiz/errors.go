package quiz

import "errors"

// Errors returned by the session engine. Callers match them with errors.Is.
var (
	// ErrInvalidOption means an answer was not one of A, B, C or D.
	ErrInvalidOption = errors.New("option must be one of A, B, C, D")
	// ErrSessionTerminated means a mutation was attempted after submit.
	ErrSessionTerminated = errors.New("session already submitted")
	// ErrSessionNotSubmitted means scoring was attempted before submit.
	ErrSessionNotSubmitted = errors.New("session not submitted")
	// ErrEmptySelection means a retest would contain no questions.
	ErrEmptySelection = errors.New("nothing to retest")

	ErrNoQuestions        = errors.New("no questions to start a session with")
	ErrNegativeMarks      = errors.New("question marks must not be negative")
	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrInvalidRetestMode  = errors.New("invalid retest mode")
	ErrCorruptSnapshot    = errors.New("corrupt session snapshot")
)
