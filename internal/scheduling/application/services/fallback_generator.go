package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
)

// Fixed local clock times used by the rule-based alternatives.
const (
	fallbackMorningHour   = 10
	fallbackAfternoonHour = 14
)

// FallbackGenerator deterministically synthesizes alternatives when the
// external generator is unavailable or produced nothing usable. Given the
// same proposed range it always returns the same three slots.
type FallbackGenerator struct {
	logger *slog.Logger
}

// NewFallbackGenerator creates the rule-based generator.
func NewFallbackGenerator(logger *slog.Logger) *FallbackGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackGenerator{logger: logger}
}

// Generate returns exactly three alternatives: the same time next day, two
// days later at a fixed morning slot, and three days later at a fixed
// afternoon slot. Day type and time of day are computed from each slot's
// own date, never hardcoded.
func (g *FallbackGenerator) Generate(ctx context.Context, cctx domain.ConflictContext) ([]domain.AlternativeSlot, error) {
	loc := cctx.Timezone
	if loc == nil {
		loc = time.UTC
	}
	duration := cctx.Duration
	if duration <= 0 {
		duration = cctx.Proposed.Duration()
	}

	local := cctx.Proposed.Start.In(loc)

	nextDay := local.AddDate(0, 0, 1)
	morning := time.Date(local.Year(), local.Month(), local.Day(), fallbackMorningHour, 0, 0, 0, loc).AddDate(0, 0, 2)
	afternoon := time.Date(local.Year(), local.Month(), local.Day(), fallbackAfternoonHour, 0, 0, 0, loc).AddDate(0, 0, 3)

	slots := []domain.AlternativeSlot{
		{
			Start:  nextDay,
			End:    nextDay.Add(duration),
			Reason: "Same time the next day",
			Score:  70,
		},
		{
			Start:  morning,
			End:    morning.Add(duration),
			Reason: "Morning slot two days later",
			Score:  60,
		},
		{
			Start:  afternoon,
			End:    afternoon.Add(duration),
			Reason: "Afternoon slot three days later",
			Score:  50,
		},
	}
	for i := range slots {
		slots[i].Start = slots[i].Start.UTC()
		slots[i].End = slots[i].End.UTC()
		slots[i].Classify(loc)
	}

	g.logger.Debug("fallback alternatives generated", "count", len(slots))
	return slots, nil
}
