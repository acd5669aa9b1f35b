package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrStatusConflict = errors.New("job opening status does not allow this operation")
	ErrInvalidInput   = errors.New("invalid input")
)

// ExtractionError is returned when a PDF could not be turned into text.
type ExtractionError struct {
	Provider string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract text (%s): %v", e.Provider, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ScoringError covers model failures as well as verdicts that cannot be accepted.
type ScoringError struct {
	Reason string
	Err    error
}

func (e *ScoringError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("score cv: %s: %v", e.Reason, e.Err)
	}
	return "score cv: " + e.Reason
}

func (e *ScoringError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed write of analysis results.
type PersistenceError struct {
	JobOpeningID string
	Err          error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist job opening %s: %v", e.JobOpeningID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError describes rejected user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
