package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Conflict identifies one existing session that overlaps a proposed range.
type Conflict struct {
	EventID uuid.UUID
	Title   string
	Range   TimeRange
}

// ConflictContext carries everything needed to generate alternatives for a
// single conflict occurrence. Built per occurrence, never persisted.
type ConflictContext struct {
	Proposed      TimeRange
	ProposedTitle string
	Conflicts     []Conflict
	UserID        uuid.UUID
	Timezone      *time.Location
	Duration      time.Duration
	WorkingHours  WeeklyHours
	// Blocks is the user's 7-day forward schedule used to re-validate
	// generator output.
	Blocks []ScheduleBlock
}

// ConflictPair is one overlapping pair found by the pairwise sweep.
type ConflictPair struct {
	EventA         *Event
	EventB         *Event
	OverlapMinutes int
}

// conflictBucket groups proposals into 15-minute buckets so retried
// detections of the same proposal collapse to one conflict ID.
const conflictBucket = 15 * time.Minute

// CompositeConflictID derives a deterministic conflict ID for conflicts
// detected before the session exists in the store.
func CompositeConflictID(conversationID string, proposedStart time.Time) string {
	bucket := proposedStart.UTC().Unix() / int64(conflictBucket/time.Second)
	return fmt.Sprintf("conflict_%s_%d", conversationID, bucket)
}
