package persistence

import (
	"context"
	"testing"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteGuardRepository_CreateClaimsOnce(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteGuardRepository(db.DB, nil)
	ctx := context.Background()

	key := domain.ConflictLogKey("corr-1", uuid.New())
	require.NoError(t, repo.Create(ctx, domain.GuardConflictLog, key))
	assert.ErrorIs(t, repo.Create(ctx, domain.GuardConflictLog, key), domain.ErrAlreadyExists)
}

func TestSQLiteGuardRepository_KindsDoNotCollide(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteGuardRepository(db.DB, nil)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.GuardConflictLog, "shared-key"))
	assert.NoError(t, repo.Create(ctx, domain.GuardReschedule, "shared-key"))
}

func TestSQLiteGuardRepository_Exists(t *testing.T) {
	db := newSQLiteTestDB(t)
	repo := NewSQLiteGuardRepository(db.DB, nil)
	ctx := context.Background()

	key := domain.NudgeKey(uuid.New(), "unconfirmed_24h")

	exists, err := repo.Exists(ctx, domain.GuardNudge, key)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Create(ctx, domain.GuardNudge, key))

	exists, err = repo.Exists(ctx, domain.GuardNudge, key)
	require.NoError(t, err)
	assert.True(t, exists)
}
