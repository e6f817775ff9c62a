package service

import "errors"

// Boundary errors. Core errors from package quiz pass through unchanged.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrResultNotFound  = errors.New("result not found")
	ErrBankNotFound    = errors.New("question bank not found")
	ErrNotOwner        = errors.New("session belongs to another user")
)
