package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/application/queries"
	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
)

// UpdateSessionInput carries a partial session update. Zero-valued fields
// are left unchanged; a reschedule supplies both StartTime and EndTime.
type UpdateSessionInput struct {
	EventID        uuid.UUID `validate:"required"`
	UserID         uuid.UUID `validate:"required"`
	Title          string
	StartTime      time.Time
	EndTime        time.Time
	ConversationID string
	Timezone       string
}

func (in UpdateSessionInput) reschedules() bool {
	return !in.StartTime.IsZero() || !in.EndTime.IsZero()
}

// Validate checks field-level constraints. A timezone is only required when
// the update moves the session, because only then is conflict handling
// involved.
func (in UpdateSessionInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid update input: %w", err)
	}
	if !in.reschedules() {
		return nil
	}
	if !in.EndTime.After(in.StartTime) {
		return domain.ErrInvalidTimeRange
	}
	if in.Timezone == "" {
		return domain.ErrTimezoneRequired
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", in.Timezone, err)
	}
	return nil
}

// UpdateSessionHandler applies session updates with the same transactional
// conflict contract as creation, excluding the session's own range.
type UpdateSessionHandler struct {
	events    domain.EventRepository
	finder    *queries.ConflictFinder
	escalator ConflictEscalator
	logger    *slog.Logger
}

// NewUpdateSessionHandler creates the handler. escalator may be nil.
func NewUpdateSessionHandler(
	events domain.EventRepository,
	finder *queries.ConflictFinder,
	escalator ConflictEscalator,
	logger *slog.Logger,
) *UpdateSessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateSessionHandler{events: events, finder: finder, escalator: escalator, logger: logger}
}

// Handle loads the session, applies the changes, and saves inside one
// transaction. Moving the session re-runs conflict detection against the
// requester's calendar with the session itself excluded; a detected
// conflict aborts the write.
func (h *UpdateSessionHandler) Handle(ctx context.Context, in UpdateSessionInput) (*domain.Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var proposed *domain.Event
	var updated *domain.Event
	err := h.events.Transact(ctx, func(txCtx context.Context) error {
		event, err := h.events.FindByID(txCtx, in.EventID)
		if err != nil {
			return err
		}
		if !event.HasParticipant(in.UserID) {
			return domain.ErrNotParticipant
		}

		if in.Title != "" {
			event.Retitle(in.Title)
		}
		if in.reschedules() {
			newRange := domain.TimeRange{Start: in.StartTime, End: in.EndTime}
			conflicts, err := h.finder.FindConflicts(txCtx, in.UserID, newRange, event.ID())
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				if err := event.Reschedule(in.StartTime, in.EndTime); err != nil {
					return err
				}
				proposed = event
				return &domain.ConflictError{Conflicts: conflicts}
			}
			if err := event.Reschedule(in.StartTime, in.EndTime); err != nil {
				return err
			}
		}

		updated = event
		return h.events.Save(txCtx, event)
	})
	if err != nil {
		var conflictErr *domain.ConflictError
		if errors.As(err, &conflictErr) && proposed != nil {
			h.escalate(ctx, proposed, h.conversationID(in, proposed), in.Timezone)
		}
		return nil, err
	}

	h.logger.Info("session updated", "event_id", updated.ID(), "start", updated.StartTime())
	return updated, nil
}

func (h *UpdateSessionHandler) conversationID(in UpdateSessionInput, event *domain.Event) string {
	if in.ConversationID != "" {
		return in.ConversationID
	}
	return event.ConversationID()
}

func (h *UpdateSessionHandler) escalate(ctx context.Context, event *domain.Event, conversationID, timezone string) {
	if h.escalator == nil {
		return
	}
	if _, err := h.escalator.HandleSessionConflict(ctx, event, conversationID, timezone); err != nil {
		h.logger.Error("conflict escalation failed", "event_id", event.ID(), "error", err)
	}
}
