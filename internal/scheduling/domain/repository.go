package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventRepository defines persistence operations for sessions.
//
// Transact runs fn inside a single transaction against the backing store,
// making check-then-write sequences atomic: two concurrent creates with
// overlapping ranges cannot both succeed. The transaction layer retries
// contention internally; a ConflictError returned by fn is terminal and
// aborts the transaction without retry. Repository calls made with the
// context passed to fn join the transaction.
type EventRepository interface {
	Transact(ctx context.Context, fn func(ctx context.Context) error) error

	Save(ctx context.Context, event *Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*Event, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByParticipant returns the user's sessions intersecting
	// [from, to). Rows with corrupt timestamps are skipped with a
	// warning so one bad record cannot block detection for the rest.
	FindByParticipant(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*Event, error)

	// FindPendingBetween returns pending sessions across all users
	// starting inside [from, to).
	FindPendingBetween(ctx context.Context, from, to time.Time) ([]*Event, error)

	// ActiveParticipants returns the distinct participants of sessions
	// starting inside [from, to).
	ActiveParticipants(ctx context.Context, from, to time.Time) ([]uuid.UUID, error)
}

// GuardRepository provides create-only idempotency records. Create returns
// ErrAlreadyExists when the key was claimed before; callers treat that as
// the operation having already completed.
type GuardRepository interface {
	Create(ctx context.Context, kind GuardKind, key string) error
	Exists(ctx context.Context, kind GuardKind, key string) (bool, error)
}

// ArtifactRepository persists posted conflict artifacts so a later
// selection can be resolved against the alternatives that were offered.
type ArtifactRepository interface {
	Save(ctx context.Context, artifact *ConflictArtifact) error
	FindLatestByConflictID(ctx context.Context, conflictID string) (*ConflictArtifact, error)
}

// RescheduleLogRepository keeps the audit trail of applied selections.
type RescheduleLogRepository interface {
	Record(ctx context.Context, rec RescheduleRecord) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]RescheduleRecord, error)
}
