package commands

import (
	"context"
	"testing"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDeleteSession(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	session, err := domain.NewEvent("Algebra", start, start.Add(time.Hour), []uuid.UUID{userID}, userID, "conv-1")
	require.NoError(t, err)

	repo := newMemoryEventRepo(session)
	handler := NewDeleteSessionHandler(repo, nil)

	require.NoError(t, handler.Handle(context.Background(), DeleteSessionInput{
		EventID: session.ID(), UserID: userID,
	}))

	_, err = repo.FindByID(context.Background(), session.ID())
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestDeleteSession_NonParticipant(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	session, err := domain.NewEvent("Algebra", start, start.Add(time.Hour), []uuid.UUID{userID}, userID, "conv-1")
	require.NoError(t, err)

	repo := newMemoryEventRepo(session)
	handler := NewDeleteSessionHandler(repo, nil)

	err = handler.Handle(context.Background(), DeleteSessionInput{
		EventID: session.ID(), UserID: uuid.New(),
	})
	require.ErrorIs(t, err, domain.ErrNotParticipant)
}

func TestDeleteSession_Missing(t *testing.T) {
	repo := newMemoryEventRepo()
	handler := NewDeleteSessionHandler(repo, nil)

	err := handler.Handle(context.Background(), DeleteSessionInput{
		EventID: uuid.New(), UserID: uuid.New(),
	})
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}
