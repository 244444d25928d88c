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

func TestSweepPairs_ReportsOverlapMinutes(t *testing.T) {
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	a := makeEvent(t, "A", userID, base, time.Hour)
	b := makeEvent(t, "B", userID, base.Add(30*time.Minute), time.Hour)

	pairs, _ := sweepPairs([]*domain.Event{b, a})

	require.Len(t, pairs, 1)
	assert.Equal(t, 30, pairs[0].OverlapMinutes)
	assert.Equal(t, "A", pairs[0].EventA.Title())
	assert.Equal(t, "B", pairs[0].EventB.Title())
}

func TestSweepPairs_EarlyTermination(t *testing.T) {
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// Six non-overlapping sessions spaced 26 hours apart: every session is
	// past the cutoff of the one before it, so the sweep compares only
	// adjacent-or-nothing and must not scan all 15 pairs.
	var events []*domain.Event
	for i := 0; i < 6; i++ {
		events = append(events, makeEvent(t, "S", userID, base.Add(time.Duration(i)*26*time.Hour), time.Hour))
	}

	pairs, compared := sweepPairs(events)

	assert.Empty(t, pairs)
	assert.Zero(t, compared, "each inner loop should break before comparing")
}

func TestSweepPairs_BackToBackNotReported(t *testing.T) {
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	a := makeEvent(t, "A", userID, base, time.Hour)
	b := makeEvent(t, "B", userID, base.Add(time.Hour), time.Hour)

	pairs, compared := sweepPairs([]*domain.Event{a, b})

	assert.Empty(t, pairs)
	assert.Equal(t, 1, compared)
}

func TestSweepPairs_MultipleOverlapsSameEvent(t *testing.T) {
	userID := uuid.New()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	long := makeEvent(t, "Long", userID, base, 4*time.Hour)
	first := makeEvent(t, "First", userID, base.Add(time.Hour), time.Hour)
	second := makeEvent(t, "Second", userID, base.Add(3*time.Hour), time.Hour)

	pairs, _ := sweepPairs([]*domain.Event{long, first, second})

	assert.Len(t, pairs, 2)
}

func TestMonitorConflicts_Handle(t *testing.T) {
	userID := uuid.New()
	soon := time.Now().UTC().Add(2 * time.Hour)

	repo := &mockEventRepo{}
	require.NoError(t, repo.Save(context.Background(), makeEvent(t, "A", userID, soon, time.Hour)))
	require.NoError(t, repo.Save(context.Background(), makeEvent(t, "B", userID, soon.Add(20*time.Minute), time.Hour)))

	handler := NewMonitorConflictsHandler(repo, nil)
	pairs, err := handler.Handle(context.Background(), userID, 0)

	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 40, pairs[0].OverlapMinutes)
}
