package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GuardKind names the idempotency guard families. Each family uses its own
// deterministic key format so retried operations collapse onto one record.
type GuardKind string

const (
	// GuardConflictLog suppresses duplicate conflict warnings per
	// correlation+user.
	GuardConflictLog GuardKind = "conflict_log"
	// GuardReschedule claims an alternative selection so a retried tap is
	// a no-op.
	GuardReschedule GuardKind = "reschedule_op"
	// GuardNudge records that a nudge was already sent for an event.
	GuardNudge GuardKind = "nudge_log"
)

// ConflictLogKey builds the create-only key for conflict warning posting.
func ConflictLogKey(correlationID string, userID uuid.UUID) string {
	return fmt.Sprintf("%s__%s", correlationID, userID)
}

// RescheduleKey builds the create-only key for applying one alternative.
func RescheduleKey(conflictID string, alternativeIndex int) string {
	return fmt.Sprintf("%s_%d", conflictID, alternativeIndex)
}

// NudgeKey builds the key guarding periodic-sweep nudges.
func NudgeKey(eventID uuid.UUID, nudgeType string) string {
	return fmt.Sprintf("%s_%s", eventID, nudgeType)
}

// RescheduleRecord is the audit entry written for every applied selection.
type RescheduleRecord struct {
	ConflictID       string
	EventID          uuid.UUID
	UserID           uuid.UUID
	AlternativeIndex int
	OldStart         time.Time
	OldEnd           time.Time
	NewStart         time.Time
	NewEnd           time.Time
	AppliedAt        time.Time
}
