package domain

import (
	"time"
)

// ArtifactKind distinguishes the message-like records this engine posts.
type ArtifactKind string

const (
	ArtifactConflictWarning ArtifactKind = "conflict_warning"
	ArtifactRescheduled     ArtifactKind = "reschedule_confirmation"
	ArtifactNudge           ArtifactKind = "unconfirmed_nudge"
)

// ConflictArtifact is a posted message-like record carrying a conflict
// explanation and the ranked alternatives offered to the user.
type ConflictArtifact struct {
	ConflictID     string            `json:"conflict_id"`
	ConversationID string            `json:"conversation_id"`
	Kind           ArtifactKind      `json:"kind"`
	Message        string            `json:"message"`
	Alternatives   []AlternativeSlot `json:"suggested_alternatives,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Alternative returns the slot at index, or ErrAlternativeIndex when the
// index is out of range.
func (a *ConflictArtifact) Alternative(index int) (AlternativeSlot, error) {
	if index < 0 || index >= len(a.Alternatives) {
		return AlternativeSlot{}, ErrAlternativeIndex
	}
	return a.Alternatives[index], nil
}
