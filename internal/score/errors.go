package score

import (
	"errors"
	"fmt"
)

// Sentinel errors for scoring.
var (
	// ErrLengthMismatch indicates the candidate and golden vectors differ in length.
	ErrLengthMismatch = errors.New("score: vector lengths differ")
	// ErrEmpty indicates an empty vector.
	ErrEmpty = errors.New("score: empty vector")
	// ErrInvalidK indicates k < 1.
	ErrInvalidK = errors.New("score: k must be at least 1")
	// ErrValidationMismatch is wrapped by MismatchError.
	ErrValidationMismatch = errors.New("score: validation mismatch")
)

// MismatchError reports a top-k accuracy below the required bound.
type MismatchError struct {
	Score float64
	Bound float64
}

// Error implements error.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("score: top-k accuracy %.6f below %.6f", e.Score, e.Bound)
}

// Unwrap returns ErrValidationMismatch so errors.Is matches it.
func (e *MismatchError) Unwrap() error {
	return ErrValidationMismatch
}
