package queries

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
)

// pairwiseCutoff is how far past one session's end the sweep keeps scanning.
// Once a later session starts more than this after the current one ends, no
// remaining pair sharing it can overlap (the slice is sorted by start).
const pairwiseCutoff = 24 * time.Hour

// DefaultLookaheadDays bounds the sweep window.
const DefaultLookaheadDays = 14

// MonitorConflictsHandler runs the pairwise conflict sweep over a user's
// near-term calendar. Pure detection: it mutates and posts nothing.
type MonitorConflictsHandler struct {
	events domain.EventRepository
	logger *slog.Logger
}

// NewMonitorConflictsHandler creates the sweep handler.
func NewMonitorConflictsHandler(events domain.EventRepository, logger *slog.Logger) *MonitorConflictsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MonitorConflictsHandler{events: events, logger: logger}
}

// Handle reports every truly-overlapping pair among the user's sessions in
// the next lookaheadDays days, with overlap minutes for prioritization.
func (h *MonitorConflictsHandler) Handle(
	ctx context.Context,
	userID uuid.UUID,
	lookaheadDays int,
) ([]domain.ConflictPair, error) {
	if lookaheadDays <= 0 {
		lookaheadDays = DefaultLookaheadDays
	}

	now := time.Now().UTC()
	events, err := h.events.FindByParticipant(ctx, userID, now, now.AddDate(0, 0, lookaheadDays))
	if err != nil {
		return nil, err
	}

	pairs, compared := sweepPairs(events)
	h.logger.Debug("schedule conflict sweep completed",
		"user_id", userID,
		"events", len(events),
		"pairs_compared", compared,
		"conflicts", len(pairs),
	)
	return pairs, nil
}

// sweepPairs scans sorted pairs with early termination and returns the
// overlapping ones plus the number of comparisons performed. The O(n²)
// shape is intentional at per-user volumes; the sorted early exit keeps the
// common case near-linear.
func sweepPairs(events []*domain.Event) ([]domain.ConflictPair, int) {
	sorted := append([]*domain.Event(nil), events...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartTime().Before(sorted[j].StartTime())
	})

	var pairs []domain.ConflictPair
	compared := 0
	for i := 0; i < len(sorted); i++ {
		a := sorted[i]
		if a.Status() == domain.StatusDeclined {
			continue
		}
		for j := i + 1; j < len(sorted); j++ {
			b := sorted[j]
			if b.StartTime().After(a.EndTime().Add(pairwiseCutoff)) {
				break
			}
			compared++
			if b.Status() == domain.StatusDeclined {
				continue
			}
			if overlap := a.Range().OverlapDuration(b.Range()); overlap > 0 {
				pairs = append(pairs, domain.ConflictPair{
					EventA:         a,
					EventB:         b,
					OverlapMinutes: int(overlap.Minutes()),
				})
			}
		}
	}
	return pairs, compared
}
