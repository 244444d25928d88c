package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
)

// RecordRSVPInput carries one participant response.
type RecordRSVPInput struct {
	EventID  uuid.UUID           `validate:"required"`
	UserID   uuid.UUID           `validate:"required"`
	Response domain.RSVPResponse `validate:"required,oneof=accept decline"`
}

// RecordRSVPHandler records responses and persists the derived status.
type RecordRSVPHandler struct {
	events domain.EventRepository
	logger *slog.Logger
}

// NewRecordRSVPHandler creates the handler.
func NewRecordRSVPHandler(events domain.EventRepository, logger *slog.Logger) *RecordRSVPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordRSVPHandler{events: events, logger: logger}
}

// Handle stores the response inside a transaction. The session status is
// rederived from all recorded responses, so repeated or changed responses
// converge on the right state.
func (h *RecordRSVPHandler) Handle(ctx context.Context, in RecordRSVPInput) (*domain.Event, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid rsvp input: %w", err)
	}

	var updated *domain.Event
	err := h.events.Transact(ctx, func(txCtx context.Context) error {
		event, err := h.events.FindByID(txCtx, in.EventID)
		if err != nil {
			return err
		}
		if err := event.RecordRSVP(in.UserID, in.Response); err != nil {
			return err
		}
		updated = event
		return h.events.Save(txCtx, event)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("rsvp recorded",
		"event_id", updated.ID(),
		"user_id", in.UserID,
		"response", in.Response,
		"status", updated.Status(),
	)
	return updated, nil
}
