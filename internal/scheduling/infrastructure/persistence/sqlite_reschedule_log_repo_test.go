package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRescheduleLogRepository_RecordAndList(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteRescheduleLogRepository(db.DB, nil)
	ctx := context.Background()

	eventID := uuid.New()
	userID := uuid.New()
	base := time.Date(2026, 9, 14, 15, 0, 0, 0, time.UTC)

	first := domain.RescheduleRecord{
		ConflictID:       "conflict-1",
		EventID:          eventID,
		UserID:           userID,
		AlternativeIndex: 0,
		OldStart:         base,
		OldEnd:           base.Add(time.Hour),
		NewStart:         base.Add(24 * time.Hour),
		NewEnd:           base.Add(25 * time.Hour),
		AppliedAt:        base.Add(time.Minute),
	}
	second := first
	second.ConflictID = "conflict-2"
	second.AlternativeIndex = 1
	second.OldStart = first.NewStart
	second.OldEnd = first.NewEnd
	second.NewStart = base.Add(48 * time.Hour)
	second.NewEnd = base.Add(49 * time.Hour)
	second.AppliedAt = base.Add(2 * time.Hour)

	require.NoError(t, repo.Record(ctx, first))
	require.NoError(t, repo.Record(ctx, second))

	// An unrelated event's entry must not leak into the listing.
	other := first
	other.EventID = uuid.New()
	require.NoError(t, repo.Record(ctx, other))

	records, err := repo.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "conflict-1", records[0].ConflictID)
	assert.Equal(t, userID, records[0].UserID)
	assert.True(t, records[0].NewStart.Equal(first.NewStart))
	assert.Equal(t, "conflict-2", records[1].ConflictID)
	assert.Equal(t, 1, records[1].AlternativeIndex)
	assert.True(t, records[1].AppliedAt.Equal(second.AppliedAt))
}

func TestSQLiteRescheduleLogRepository_ListEmpty(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteRescheduleLogRepository(db.DB, nil)

	records, err := repo.ListByEvent(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, records)
}
