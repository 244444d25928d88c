package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvent(t *testing.T, participants ...uuid.UUID) *Event {
	t.Helper()
	creator := participants[0]
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	event, err := NewEvent("Algebra session", start, start.Add(time.Hour), participants, creator, "conv-1")
	require.NoError(t, err)
	return event
}

func TestNewEvent_Validation(t *testing.T) {
	creator := uuid.New()
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	_, err := NewEvent("Bad range", start, start, []uuid.UUID{creator}, creator, "")
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	_, err = NewEvent("No one", start, start.Add(time.Hour), nil, creator, "")
	assert.ErrorIs(t, err, ErrNoParticipants)
}

func TestEvent_StatusDerivation(t *testing.T) {
	creator := uuid.New()
	student := uuid.New()
	other := uuid.New()
	event := newTestEvent(t, creator, student, other)

	assert.Equal(t, StatusPending, event.Status())

	require.NoError(t, event.RecordRSVP(student, RSVPAccept))
	assert.Equal(t, StatusPending, event.Status(), "one of two non-creators accepted")

	require.NoError(t, event.RecordRSVP(other, RSVPAccept))
	assert.Equal(t, StatusConfirmed, event.Status(), "creator is excluded from the quorum")
}

func TestEvent_AnyDeclineWins(t *testing.T) {
	creator := uuid.New()
	student := uuid.New()
	other := uuid.New()
	event := newTestEvent(t, creator, student, other)

	require.NoError(t, event.RecordRSVP(student, RSVPAccept))
	require.NoError(t, event.RecordRSVP(other, RSVPDecline))

	assert.Equal(t, StatusDeclined, event.Status())
}

func TestEvent_RecordRSVP_NonParticipant(t *testing.T) {
	creator := uuid.New()
	event := newTestEvent(t, creator, uuid.New())

	err := event.RecordRSVP(uuid.New(), RSVPAccept)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestEvent_UnrespondedParticipants(t *testing.T) {
	creator := uuid.New()
	student := uuid.New()
	other := uuid.New()
	event := newTestEvent(t, creator, student, other)

	require.NoError(t, event.RecordRSVP(student, RSVPAccept))

	missing := event.UnrespondedParticipants()
	require.Len(t, missing, 1)
	assert.Equal(t, other, missing[0])
}

func TestEvent_RescheduleClearsConflictFlag(t *testing.T) {
	creator := uuid.New()
	event := newTestEvent(t, creator, uuid.New())
	event.FlagConflict()
	require.True(t, event.HasConflict())

	newStart := event.StartTime().AddDate(0, 0, 1)
	require.NoError(t, event.Reschedule(newStart, newStart.Add(time.Hour)))

	assert.False(t, event.HasConflict())
	assert.Equal(t, newStart, event.StartTime())
}

func TestEvent_Reschedule_RejectsInvertedRange(t *testing.T) {
	creator := uuid.New()
	event := newTestEvent(t, creator, uuid.New())

	err := event.Reschedule(event.EndTime(), event.StartTime())
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestRehydrateEvent_RoundTrip(t *testing.T) {
	creator := uuid.New()
	original := newTestEvent(t, creator, uuid.New())
	require.NoError(t, original.RecordRSVP(original.Participants()[1], RSVPAccept))

	copy := RehydrateEvent(
		original.ID(),
		original.Title(),
		original.StartTime(), original.EndTime(),
		original.Participants(),
		original.CreatedBy(),
		original.Status(),
		original.RSVPs(),
		original.ConversationID(),
		original.HasConflict(),
		original.CreatedAt(), original.UpdatedAt(),
	)

	assert.Equal(t, original.ID(), copy.ID())
	assert.Equal(t, original.Status(), copy.Status())
	assert.Equal(t, original.Participants(), copy.Participants())
}

func TestCompositeConflictID_Deterministic(t *testing.T) {
	start := time.Date(2026, 3, 2, 14, 3, 0, 0, time.UTC)
	retry := time.Date(2026, 3, 2, 14, 9, 0, 0, time.UTC)
	later := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)

	assert.Equal(t, CompositeConflictID("conv-1", start), CompositeConflictID("conv-1", retry))
	assert.NotEqual(t, CompositeConflictID("conv-1", start), CompositeConflictID("conv-1", later))
	assert.NotEqual(t, CompositeConflictID("conv-1", start), CompositeConflictID("conv-2", start))
}
