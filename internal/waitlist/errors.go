package waitlist

import "errors"

var (
	// ErrNotFound covers lookup misses. For token verification it
	// deliberately doesn't distinguish wrong, expired and already used,
	// so callers can't be turned into a token-guessing oracle
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned when a user insert trips the email
	// unique constraint
	ErrEmailTaken = errors.New("email already registered")

	// ErrRefCodeExhausted is returned when ref code generation gives up
	// after the retry bound
	ErrRefCodeExhausted = errors.New("failed to generate a unique ref code")

	// ErrInvalidTransition is returned for backwards progress level moves
	ErrInvalidTransition = errors.New("progress level can only move forward")
)
