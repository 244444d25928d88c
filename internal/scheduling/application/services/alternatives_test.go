package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	slots []domain.AlternativeSlot
	err   error
	calls int
}

func (s *stubSource) Generate(ctx context.Context, cctx domain.ConflictContext) ([]domain.AlternativeSlot, error) {
	s.calls++
	return s.slots, s.err
}

func newPipeline(source AlternativeSource) *AlternativePipeline {
	return NewAlternativePipeline(source, NewFallbackGenerator(nil), DefaultPipelineConfig(), nil)
}

// Wednesday 14:00-15:00 UTC with default working hours.
func testConflictContext() domain.ConflictContext {
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	return domain.ConflictContext{
		Proposed:      domain.TimeRange{Start: start, End: start.Add(time.Hour)},
		ProposedTitle: "Algebra session",
		UserID:        uuid.New(),
		Timezone:      time.UTC,
		Duration:      time.Hour,
		WorkingHours:  domain.DefaultWeeklyHours(),
	}
}

func slotAt(start time.Time, score int) domain.AlternativeSlot {
	return domain.AlternativeSlot{
		Start:  start,
		End:    start.Add(time.Hour),
		Reason: "suggested by generator",
		Score:  score,
	}
}

func TestPipeline_ValidCandidatesRankedAndCapped(t *testing.T) {
	cctx := testConflictContext()
	thursday := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	friday := thursday.AddDate(0, 0, 1)

	source := &stubSource{slots: []domain.AlternativeSlot{
		slotAt(thursday.Add(10*time.Hour), 80),
		slotAt(thursday.Add(9*time.Hour), 90),
		slotAt(friday.Add(13*time.Hour), 70),
		slotAt(friday.Add(15*time.Hour), 60),
	}}

	result := newPipeline(source).Generate(context.Background(), cctx)
	require.Len(t, result, 3)
	assert.Equal(t, []int{90, 80, 70}, []int{result[0].Score, result[1].Score, result[2].Score})
	assert.Equal(t, domain.DayTypeWeekday, result[0].DayType)
	assert.Equal(t, domain.TimeOfDayMorning, result[0].TimeOfDay)
}

func TestPipeline_RejectsCandidateTooCloseToProposed(t *testing.T) {
	cctx := testConflictContext()
	source := &stubSource{slots: []domain.AlternativeSlot{
		// One hour after the proposed start: not meaningfully different.
		slotAt(cctx.Proposed.Start.Add(time.Hour), 95),
		// Next day is far enough.
		slotAt(cctx.Proposed.Start.AddDate(0, 0, 1).Add(-3*time.Hour), 50),
	}}

	result := newPipeline(source).Generate(context.Background(), cctx)
	require.Len(t, result, 1)
	assert.Equal(t, 50, result[0].Score)
}

func TestPipeline_RejectsBufferedBlockOverlap(t *testing.T) {
	cctx := testConflictContext()
	thursday := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	cctx.Blocks = []domain.ScheduleBlock{
		{Start: thursday.Add(11 * time.Hour), End: thursday.Add(12 * time.Hour), Title: "Piano"},
	}

	source := &stubSource{slots: []domain.AlternativeSlot{
		// 12:15 start is inside the 15-minute buffer around the block.
		slotAt(thursday.Add(12*time.Hour+15*time.Minute), 90),
		// 12:30 clears the buffer on both sides.
		slotAt(thursday.Add(12*time.Hour+30*time.Minute), 80),
	}}

	result := newPipeline(source).Generate(context.Background(), cctx)
	require.Len(t, result, 1)
	assert.Equal(t, 80, result[0].Score)
}

func TestPipeline_RejectsOutsideWorkingHours(t *testing.T) {
	cctx := testConflictContext()
	thursday := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	source := &stubSource{slots: []domain.AlternativeSlot{
		slotAt(thursday.Add(19*time.Hour), 90), // evening
		slotAt(saturday.Add(10*time.Hour), 85), // weekend
		slotAt(thursday.Add(16*time.Hour), 75), // ends exactly at 17:00
	}}

	result := newPipeline(source).Generate(context.Background(), cctx)
	require.Len(t, result, 1)
	assert.Equal(t, 75, result[0].Score)
}

func TestPipeline_SourceErrorFallsBack(t *testing.T) {
	cctx := testConflictContext()
	source := &stubSource{err: errors.New("generator down")}

	result := newPipeline(source).Generate(context.Background(), cctx)
	// Fallback proposes Thu 14:00, Fri 10:00, and Sat 14:00; the Saturday
	// slot fails working-hours validation.
	require.Len(t, result, 2)
	assert.Equal(t, 70, result[0].Score)
	assert.Equal(t, 60, result[1].Score)
	assert.Equal(t, 1, source.calls)
}

func TestPipeline_AllCandidatesInvalidFallsBack(t *testing.T) {
	cctx := testConflictContext()
	source := &stubSource{slots: []domain.AlternativeSlot{
		slotAt(cctx.Proposed.Start.Add(30*time.Minute), 99),
	}}

	result := newPipeline(source).Generate(context.Background(), cctx)
	require.Len(t, result, 2)
	assert.Equal(t, 70, result[0].Score)
}

func TestPipeline_NilSourceUsesFallback(t *testing.T) {
	cctx := testConflictContext()
	result := newPipeline(nil).Generate(context.Background(), cctx)
	require.NotEmpty(t, result)
	assert.Equal(t, 70, result[0].Score)
}

func TestPipeline_NeverReturnsEmpty(t *testing.T) {
	cctx := testConflictContext()
	// No working hours at all: everything fails validation, so the raw
	// fallback slots are returned rather than nothing.
	cctx.WorkingHours = domain.WeeklyHours{}

	result := newPipeline(nil).Generate(context.Background(), cctx)
	require.Len(t, result, 3)
	assert.Equal(t, 70, result[0].Score)
}

func TestPipeline_DeduplicatesIdenticalSlots(t *testing.T) {
	cctx := testConflictContext()
	thursday := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	dup := slotAt(thursday.Add(10*time.Hour), 80)

	source := &stubSource{slots: []domain.AlternativeSlot{dup, dup, dup}}
	result := newPipeline(source).Generate(context.Background(), cctx)
	require.Len(t, result, 1)
}
