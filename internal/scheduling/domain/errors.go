package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTimeRange = errors.New("end time must be after start time")
	ErrNoParticipants   = errors.New("session requires at least one participant")
	ErrNotParticipant   = errors.New("user is not a participant of this session")
	ErrTimezoneRequired = errors.New("timezone is required when conflict checking is requested")
	ErrSessionNotFound  = errors.New("session not found")
	ErrArtifactNotFound = errors.New("conflict artifact not found")
	ErrAlternativeIndex = errors.New("alternative index out of range")

	// ErrAlreadyExists reports that a create-only write hit an existing key.
	// Callers treat this as success-with-no-op, not as a failure.
	ErrAlreadyExists = errors.New("record already exists")
)

// ConflictError is the terminal, non-retryable outcome of a checked write
// whose proposed range collides with existing sessions. It is a business
// result surfaced as a typed error, not a bug.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	titles := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		titles[i] = c.Title
	}
	return fmt.Sprintf("CONFLICT_DETECTED: overlaps with %s", strings.Join(titles, ", "))
}

// Titles returns the titles of the colliding sessions.
func (e *ConflictError) Titles() []string {
	titles := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		titles[i] = c.Title
	}
	return titles
}

// IsConflict reports whether err is a detected scheduling conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
