// Package commands contains the write-side operations of the scheduling
// context. Conflict checks and writes run inside a single transaction so
// concurrent proposals cannot both claim an overlapping slot.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/application/queries"
	"github.com/tutorloop/tutorloop/internal/scheduling/application/services"
	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// ConflictEscalator posts the conflict-warning workflow for a rejected
// write. Implemented by services.ConflictOrchestrator; nil disables
// escalation.
type ConflictEscalator interface {
	HandleSessionConflict(ctx context.Context, proposed *domain.Event, conversationID, timezone string) (*services.ConflictOutcome, error)
}

// CreateSessionInput carries a new session proposal.
type CreateSessionInput struct {
	Title          string       `validate:"required,max=200"`
	StartTime      time.Time    `validate:"required"`
	EndTime        time.Time    `validate:"required"`
	Participants   []uuid.UUID  `validate:"required,min=1"`
	CreatedBy      uuid.UUID    `validate:"required"`
	ConversationID string       `validate:"required"`
	Timezone       string
}

// Validate checks field-level constraints. The timezone is required because
// conflict handling renders times and alternatives in the requester's local
// clock.
func (in CreateSessionInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid session input: %w", err)
	}
	if in.Timezone == "" {
		return domain.ErrTimezoneRequired
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", in.Timezone, err)
	}
	return nil
}

// CreateSessionHandler creates sessions with an atomic conflict check.
type CreateSessionHandler struct {
	events    domain.EventRepository
	finder    *queries.ConflictFinder
	escalator ConflictEscalator
	logger    *slog.Logger
}

// NewCreateSessionHandler creates the handler. escalator may be nil.
func NewCreateSessionHandler(
	events domain.EventRepository,
	finder *queries.ConflictFinder,
	escalator ConflictEscalator,
	logger *slog.Logger,
) *CreateSessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateSessionHandler{events: events, finder: finder, escalator: escalator, logger: logger}
}

// Handle validates the proposal, then runs the conflict check and the
// insert inside one transaction. A detected conflict aborts the write and
// surfaces as *domain.ConflictError after the escalator has posted the
// warning with alternatives.
func (h *CreateSessionHandler) Handle(ctx context.Context, in CreateSessionInput) (*domain.Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	event, err := domain.NewEvent(in.Title, in.StartTime, in.EndTime, in.Participants, in.CreatedBy, in.ConversationID)
	if err != nil {
		return nil, err
	}

	err = h.events.Transact(ctx, func(txCtx context.Context) error {
		conflicts, err := h.finder.FindConflicts(txCtx, in.CreatedBy, event.Range(), uuid.Nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &domain.ConflictError{Conflicts: conflicts}
		}
		return h.events.Save(txCtx, event)
	})
	if err != nil {
		var conflictErr *domain.ConflictError
		if errors.As(err, &conflictErr) {
			h.escalate(ctx, event, in.ConversationID, in.Timezone)
		}
		return nil, err
	}

	h.logger.Info("session created",
		"event_id", event.ID(),
		"title", event.Title(),
		"start", event.StartTime(),
	)
	return event, nil
}

func (h *CreateSessionHandler) escalate(ctx context.Context, event *domain.Event, conversationID, timezone string) {
	if h.escalator == nil {
		return
	}
	if _, err := h.escalator.HandleSessionConflict(ctx, event, conversationID, timezone); err != nil {
		h.logger.Error("conflict escalation failed", "event_title", event.Title(), "error", err)
	}
}
