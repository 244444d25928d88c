package commands

import (
	"context"
	"testing"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/application/queries"
	"github.com/tutorloop/tutorloop/internal/scheduling/application/services"
	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryEventRepo struct {
	events map[uuid.UUID]*domain.Event
	saves  int
}

func newMemoryEventRepo(events ...*domain.Event) *memoryEventRepo {
	repo := &memoryEventRepo{events: make(map[uuid.UUID]*domain.Event)}
	for _, e := range events {
		repo.events[e.ID()] = e
	}
	return repo
}

func (r *memoryEventRepo) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *memoryEventRepo) Save(ctx context.Context, event *domain.Event) error {
	r.events[event.ID()] = event
	r.saves++
	return nil
}

func (r *memoryEventRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	event, ok := r.events[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return event, nil
}

func (r *memoryEventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.events[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *memoryEventRepo) FindByParticipant(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Event, error) {
	var out []*domain.Event
	for _, e := range r.events {
		if e.HasParticipant(userID) && e.StartTime().Before(to) && e.EndTime().After(from) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryEventRepo) FindPendingBetween(ctx context.Context, from, to time.Time) ([]*domain.Event, error) {
	return nil, nil
}

func (r *memoryEventRepo) ActiveParticipants(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

type recordingEscalator struct {
	calls    int
	proposed *domain.Event
}

func (e *recordingEscalator) HandleSessionConflict(ctx context.Context, proposed *domain.Event, conversationID, timezone string) (*services.ConflictOutcome, error) {
	e.calls++
	e.proposed = proposed
	return &services.ConflictOutcome{HasConflict: true}, nil
}

func validCreateInput(userID uuid.UUID) CreateSessionInput {
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	return CreateSessionInput{
		Title:          "Algebra session",
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		Participants:   []uuid.UUID{userID},
		CreatedBy:      userID,
		ConversationID: "conv-1",
		Timezone:       "UTC",
	}
}

func TestCreateSession_Success(t *testing.T) {
	userID := uuid.New()
	repo := newMemoryEventRepo()
	handler := NewCreateSessionHandler(repo, queries.NewConflictFinder(repo, nil), nil, nil)

	event, err := handler.Handle(context.Background(), validCreateInput(userID))
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, domain.StatusPending, event.Status())
	assert.Equal(t, 1, repo.saves)
}

func TestCreateSession_OverlapRejectedAndEscalated(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	existing, err := domain.NewEvent("Piano lesson", start, start.Add(time.Hour), []uuid.UUID{userID}, userID, "conv-1")
	require.NoError(t, err)

	repo := newMemoryEventRepo(existing)
	escalator := &recordingEscalator{}
	handler := NewCreateSessionHandler(repo, queries.NewConflictFinder(repo, nil), escalator, nil)

	in := validCreateInput(userID)
	in.StartTime = start.Add(30 * time.Minute)
	in.EndTime = in.StartTime.Add(time.Hour)

	_, err = handler.Handle(context.Background(), in)
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))

	var conflictErr *domain.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Contains(t, conflictErr.Titles(), "Piano lesson")

	assert.Equal(t, 0, repo.saves)
	assert.Equal(t, 1, escalator.calls)
	assert.Equal(t, "Algebra session", escalator.proposed.Title())
}

func TestCreateSession_BackToBackAllowed(t *testing.T) {
	userID := uuid.New()
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	existing, err := domain.NewEvent("Piano lesson", start, start.Add(time.Hour), []uuid.UUID{userID}, userID, "conv-1")
	require.NoError(t, err)

	repo := newMemoryEventRepo(existing)
	handler := NewCreateSessionHandler(repo, queries.NewConflictFinder(repo, nil), nil, nil)

	in := validCreateInput(userID)
	in.StartTime = start.Add(time.Hour)
	in.EndTime = in.StartTime.Add(time.Hour)

	event, err := handler.Handle(context.Background(), in)
	require.NoError(t, err)
	assert.NotNil(t, event)
}

func TestCreateSession_InputValidation(t *testing.T) {
	userID := uuid.New()
	repo := newMemoryEventRepo()
	handler := NewCreateSessionHandler(repo, queries.NewConflictFinder(repo, nil), nil, nil)

	t.Run("missing timezone", func(t *testing.T) {
		in := validCreateInput(userID)
		in.Timezone = ""
		_, err := handler.Handle(context.Background(), in)
		require.ErrorIs(t, err, domain.ErrTimezoneRequired)
	})

	t.Run("unknown timezone", func(t *testing.T) {
		in := validCreateInput(userID)
		in.Timezone = "Nowhere/Special"
		_, err := handler.Handle(context.Background(), in)
		require.Error(t, err)
	})

	t.Run("missing title", func(t *testing.T) {
		in := validCreateInput(userID)
		in.Title = ""
		_, err := handler.Handle(context.Background(), in)
		require.Error(t, err)
	})

	t.Run("no participants", func(t *testing.T) {
		in := validCreateInput(userID)
		in.Participants = nil
		_, err := handler.Handle(context.Background(), in)
		require.Error(t, err)
	})

	t.Run("end before start", func(t *testing.T) {
		in := validCreateInput(userID)
		in.EndTime = in.StartTime.Add(-time.Hour)
		_, err := handler.Handle(context.Background(), in)
		require.ErrorIs(t, err, domain.ErrInvalidTimeRange)
	})
}
