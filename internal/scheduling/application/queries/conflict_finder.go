// Package queries contains the read-side operations of the scheduling
// context: conflict lookup, the pairwise sweep, and unconfirmed-session
// detection.
package queries

import (
	"context"
	"log/slog"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
)

// conflictWindowPadding bounds the fetch around the proposed range; anything
// further away cannot overlap it.
const conflictWindowPadding = 24 * time.Hour

// ConflictFinder applies the time-range algebra to a user's nearby sessions.
type ConflictFinder struct {
	events domain.EventRepository
	logger *slog.Logger
}

// NewConflictFinder creates a conflict finder.
func NewConflictFinder(events domain.EventRepository, logger *slog.Logger) *ConflictFinder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConflictFinder{events: events, logger: logger}
}

// FindConflicts returns the sessions of userID whose ranges truly overlap
// the proposed range. excludeID skips the session being updated; pass
// uuid.Nil for creates. The overlap test operates on UTC instants.
func (f *ConflictFinder) FindConflicts(
	ctx context.Context,
	userID uuid.UUID,
	proposed domain.TimeRange,
	excludeID uuid.UUID,
) ([]domain.Conflict, error) {
	if proposed.IsZero() {
		return nil, nil
	}

	from := proposed.Start.Add(-conflictWindowPadding)
	to := proposed.End.Add(conflictWindowPadding)

	candidates, err := f.events.FindByParticipant(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	var conflicts []domain.Conflict
	for _, event := range candidates {
		if event.ID() == excludeID {
			continue
		}
		if event.Status() == domain.StatusDeclined {
			continue
		}
		if proposed.Overlaps(event.Range()) {
			conflicts = append(conflicts, domain.Conflict{
				EventID: event.ID(),
				Title:   event.Title(),
				Range:   event.Range(),
			})
			f.logger.Debug("conflict detected",
				"user_id", userID,
				"event_id", event.ID(),
				"event_title", event.Title(),
			)
		}
	}
	return conflicts, nil
}

// ScheduleBlocks returns the user's sessions in [from, to) projected as
// read-only blocks, excluding excludeID.
func (f *ConflictFinder) ScheduleBlocks(
	ctx context.Context,
	userID uuid.UUID,
	from, to time.Time,
	excludeID uuid.UUID,
) ([]domain.ScheduleBlock, error) {
	events, err := f.events.FindByParticipant(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	blocks := make([]domain.ScheduleBlock, 0, len(events))
	for _, event := range events {
		if event.ID() == excludeID || event.Status() == domain.StatusDeclined {
			continue
		}
		blocks = append(blocks, event.Block())
	}
	return blocks, nil
}
