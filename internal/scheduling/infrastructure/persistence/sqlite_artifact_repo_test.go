package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteArtifactRepository_SaveAndFindLatest(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteArtifactRepository(db.DB, nil)
	ctx := context.Background()

	createdAt := time.Date(2026, 9, 14, 15, 0, 0, 0, time.UTC)
	first := &domain.ConflictArtifact{
		ConflictID:     "conflict-1",
		ConversationID: "conv-1",
		Kind:           domain.ArtifactConflictWarning,
		Message:        "Scheduling conflict detected",
		Alternatives: []domain.AlternativeSlot{
			{
				Start:  createdAt.Add(24 * time.Hour),
				End:    createdAt.Add(25 * time.Hour),
				Reason: "Same time tomorrow",
				Score:  70,
			},
		},
		CreatedAt: createdAt,
	}
	require.NoError(t, repo.Save(ctx, first))

	second := &domain.ConflictArtifact{
		ConflictID:     "conflict-1",
		ConversationID: "conv-1",
		Kind:           domain.ArtifactConflictWarning,
		Message:        "Updated warning",
		CreatedAt:      createdAt,
	}
	require.NoError(t, repo.Save(ctx, second))

	latest, err := repo.FindLatestByConflictID(ctx, "conflict-1")
	require.NoError(t, err)
	assert.Equal(t, "Updated warning", latest.Message)
	assert.Equal(t, domain.ArtifactConflictWarning, latest.Kind)
	assert.Empty(t, latest.Alternatives)
	assert.True(t, latest.CreatedAt.Equal(createdAt))
}

func TestSQLiteArtifactRepository_AlternativesRoundTrip(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteArtifactRepository(db.DB, nil)
	ctx := context.Background()

	createdAt := time.Date(2026, 9, 14, 15, 0, 0, 0, time.UTC)
	artifact := &domain.ConflictArtifact{
		ConflictID:     "conflict-2",
		ConversationID: "conv-1",
		Kind:           domain.ArtifactConflictWarning,
		Message:        "Try one of these",
		Alternatives: []domain.AlternativeSlot{
			{Start: createdAt.Add(24 * time.Hour), End: createdAt.Add(25 * time.Hour), Reason: "Same time tomorrow", Score: 70},
			{Start: createdAt.Add(43 * time.Hour), End: createdAt.Add(44 * time.Hour), Reason: "Morning in two days", Score: 60},
		},
		CreatedAt: createdAt,
	}
	require.NoError(t, repo.Save(ctx, artifact))

	latest, err := repo.FindLatestByConflictID(ctx, "conflict-2")
	require.NoError(t, err)
	require.Len(t, latest.Alternatives, 2)
	assert.Equal(t, "Same time tomorrow", latest.Alternatives[0].Reason)
	assert.Equal(t, 60, latest.Alternatives[1].Score)

	slot, err := latest.Alternative(1)
	require.NoError(t, err)
	assert.True(t, slot.Start.Equal(createdAt.Add(43*time.Hour)))
}

func TestSQLiteArtifactRepository_FindLatestMissing(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteArtifactRepository(db.DB, nil)

	_, err := repo.FindLatestByConflictID(context.Background(), "no-such-conflict")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}
