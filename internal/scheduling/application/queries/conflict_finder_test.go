package queries

import (
	"context"
	"testing"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEventRepo is an in-memory EventRepository for query tests.
type mockEventRepo struct {
	events []*domain.Event
	err    error
}

func (m *mockEventRepo) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *mockEventRepo) Save(ctx context.Context, event *domain.Event) error {
	for i, e := range m.events {
		if e.ID() == event.ID() {
			m.events[i] = event
			return nil
		}
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	for _, e := range m.events {
		if e.ID() == id {
			return e, nil
		}
	}
	return nil, domain.ErrSessionNotFound
}

func (m *mockEventRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockEventRepo) FindByParticipant(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Event
	for _, e := range m.events {
		if !e.HasParticipant(userID) {
			continue
		}
		if e.EndTime().Before(from) || !e.StartTime().Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockEventRepo) FindPendingBetween(ctx context.Context, from, to time.Time) ([]*domain.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Event
	for _, e := range m.events {
		if e.Status() != domain.StatusPending {
			continue
		}
		if e.StartTime().Before(from) || !e.StartTime().Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *mockEventRepo) ActiveParticipants(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, e := range m.events {
		if e.StartTime().Before(from) || !e.StartTime().Before(to) {
			continue
		}
		for _, p := range e.Participants() {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func makeEvent(t *testing.T, title string, userID uuid.UUID, start time.Time, d time.Duration) *domain.Event {
	t.Helper()
	event, err := domain.NewEvent(title, start, start.Add(d), []uuid.UUID{userID, uuid.New()}, userID, "conv-1")
	require.NoError(t, err)
	return event
}

func TestConflictFinder_OverlapDetected(t *testing.T) {
	userID := uuid.New()
	monday14 := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	repo := &mockEventRepo{}
	existing := makeEvent(t, "Event A", userID, monday14, time.Hour)
	require.NoError(t, repo.Save(context.Background(), existing))

	finder := NewConflictFinder(repo, nil)

	// Event B at Mon 14:30-15:30 collides with Event A.
	proposed := domain.TimeRange{Start: monday14.Add(30 * time.Minute), End: monday14.Add(90 * time.Minute)}
	conflicts, err := finder.FindConflicts(context.Background(), userID, proposed, uuid.Nil)

	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "Event A", conflicts[0].Title)
	assert.Equal(t, existing.ID(), conflicts[0].EventID)
}

func TestConflictFinder_BackToBackIsClear(t *testing.T) {
	userID := uuid.New()
	monday14 := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	repo := &mockEventRepo{}
	require.NoError(t, repo.Save(context.Background(), makeEvent(t, "Event A", userID, monday14, time.Hour)))

	finder := NewConflictFinder(repo, nil)

	// Event C at Mon 15:00-16:00 starts exactly when Event A ends.
	proposed := domain.TimeRange{Start: monday14.Add(time.Hour), End: monday14.Add(2 * time.Hour)}
	conflicts, err := finder.FindConflicts(context.Background(), userID, proposed, uuid.Nil)

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestConflictFinder_ExcludesEventBeingUpdated(t *testing.T) {
	userID := uuid.New()
	monday14 := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	repo := &mockEventRepo{}
	existing := makeEvent(t, "Event A", userID, monday14, time.Hour)
	require.NoError(t, repo.Save(context.Background(), existing))

	finder := NewConflictFinder(repo, nil)

	proposed := domain.TimeRange{Start: monday14.Add(15 * time.Minute), End: monday14.Add(45 * time.Minute)}
	conflicts, err := finder.FindConflicts(context.Background(), userID, proposed, existing.ID())

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestConflictFinder_SkipsDeclinedSessions(t *testing.T) {
	userID := uuid.New()
	monday14 := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	repo := &mockEventRepo{}
	declined := makeEvent(t, "Declined", userID, monday14, time.Hour)
	require.NoError(t, declined.RecordRSVP(declined.Participants()[1], domain.RSVPDecline))
	require.NoError(t, repo.Save(context.Background(), declined))

	finder := NewConflictFinder(repo, nil)

	proposed := domain.TimeRange{Start: monday14, End: monday14.Add(time.Hour)}
	conflicts, err := finder.FindConflicts(context.Background(), userID, proposed, uuid.Nil)

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestConflictFinder_ZeroDurationProposalIsClear(t *testing.T) {
	userID := uuid.New()
	monday14 := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	repo := &mockEventRepo{}
	require.NoError(t, repo.Save(context.Background(), makeEvent(t, "Event A", userID, monday14, time.Hour)))

	finder := NewConflictFinder(repo, nil)

	conflicts, err := finder.FindConflicts(context.Background(), userID,
		domain.TimeRange{Start: monday14, End: monday14}, uuid.Nil)

	require.NoError(t, err)
	assert.Empty(t, conflicts)
}
