package commands

import (
	"context"
	"testing"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/application/queries"
	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateSession_Retitle(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	session, err := domain.NewEvent("Algebra", start, start.Add(time.Hour), []uuid.UUID{userID}, userID, "conv-1")
	require.NoError(t, err)

	repo := newMemoryEventRepo(session)
	handler := NewUpdateSessionHandler(repo, queries.NewConflictFinder(repo, nil), nil, nil)

	// A rename alone needs no timezone.
	updated, err := handler.Handle(context.Background(), UpdateSessionInput{
		EventID: session.ID(),
		UserID:  userID,
		Title:   "Algebra II",
	})
	require.NoError(t, err)
	assert.Equal(t, "Algebra II", updated.Title())
	assert.Equal(t, start, updated.StartTime())
}

func TestUpdateSession_RescheduleRequiresTimezone(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	session, err := domain.NewEvent("Algebra", start, start.Add(time.Hour), []uuid.UUID{userID}, userID, "conv-1")
	require.NoError(t, err)

	repo := newMemoryEventRepo(session)
	handler := NewUpdateSessionHandler(repo, queries.NewConflictFinder(repo, nil), nil, nil)

	_, err = handler.Handle(context.Background(), UpdateSessionInput{
		EventID:   session.ID(),
		UserID:    userID,
		StartTime: start.Add(24 * time.Hour),
		EndTime:   start.Add(25 * time.Hour),
	})
	require.ErrorIs(t, err, domain.ErrTimezoneRequired)
}

func TestUpdateSession_RescheduleClearsConflictFlag(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	session, err := domain.NewEvent("Algebra", start, start.Add(time.Hour), []uuid.UUID{userID}, userID, "conv-1")
	require.NoError(t, err)
	session.FlagConflict()

	repo := newMemoryEventRepo(session)
	handler := NewUpdateSessionHandler(repo, queries.NewConflictFinder(repo, nil), nil, nil)

	updated, err := handler.Handle(context.Background(), UpdateSessionInput{
		EventID:   session.ID(),
		UserID:    userID,
		StartTime: start.Add(24 * time.Hour),
		EndTime:   start.Add(25 * time.Hour),
		Timezone:  "UTC",
	})
	require.NoError(t, err)
	assert.False(t, updated.HasConflict())
	assert.Equal(t, start.Add(24*time.Hour), updated.StartTime())
}

func TestUpdateSession_RescheduleIntoConflict(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	session, err := domain.NewEvent("Algebra", start, start.Add(time.Hour), []uuid.UUID{userID}, userID, "conv-1")
	require.NoError(t, err)
	other, err := domain.NewEvent("Piano lesson", start.Add(3*time.Hour), start.Add(4*time.Hour), []uuid.UUID{userID}, userID, "conv-1")
	require.NoError(t, err)

	repo := newMemoryEventRepo(session, other)
	escalator := &recordingEscalator{}
	handler := NewUpdateSessionHandler(repo, queries.NewConflictFinder(repo, nil), escalator, nil)

	_, err = handler.Handle(context.Background(), UpdateSessionInput{
		EventID:   session.ID(),
		UserID:    userID,
		StartTime: start.Add(3*time.Hour + 30*time.Minute),
		EndTime:   start.Add(4*time.Hour + 30*time.Minute),
		Timezone:  "UTC",
	})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, 0, repo.saves)

	// The escalator sees the proposed (not yet persisted) range.
	require.Equal(t, 1, escalator.calls)
	assert.Equal(t, start.Add(3*time.Hour+30*time.Minute), escalator.proposed.StartTime())
}

func TestUpdateSession_ExcludesOwnRange(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	session, err := domain.NewEvent("Algebra", start, start.Add(time.Hour), []uuid.UUID{userID}, userID, "conv-1")
	require.NoError(t, err)

	repo := newMemoryEventRepo(session)
	handler := NewUpdateSessionHandler(repo, queries.NewConflictFinder(repo, nil), nil, nil)

	// Nudging the session within its own slot must not conflict with itself.
	updated, err := handler.Handle(context.Background(), UpdateSessionInput{
		EventID:   session.ID(),
		UserID:    userID,
		StartTime: start.Add(15 * time.Minute),
		EndTime:   start.Add(75 * time.Minute),
		Timezone:  "UTC",
	})
	require.NoError(t, err)
	assert.Equal(t, start.Add(15*time.Minute), updated.StartTime())
}

func TestUpdateSession_NonParticipant(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	session, err := domain.NewEvent("Algebra", start, start.Add(time.Hour), []uuid.UUID{userID}, userID, "conv-1")
	require.NoError(t, err)

	repo := newMemoryEventRepo(session)
	handler := NewUpdateSessionHandler(repo, queries.NewConflictFinder(repo, nil), nil, nil)

	_, err = handler.Handle(context.Background(), UpdateSessionInput{
		EventID: session.ID(),
		UserID:  uuid.New(),
		Title:   "Hijacked",
	})
	require.ErrorIs(t, err, domain.ErrNotParticipant)
}
