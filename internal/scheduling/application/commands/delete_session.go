package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
)

// DeleteSessionInput identifies the session to remove and the requester.
type DeleteSessionInput struct {
	EventID uuid.UUID `validate:"required"`
	UserID  uuid.UUID `validate:"required"`
}

// DeleteSessionHandler removes sessions on behalf of a participant.
type DeleteSessionHandler struct {
	events domain.EventRepository
	logger *slog.Logger
}

// NewDeleteSessionHandler creates the handler.
func NewDeleteSessionHandler(events domain.EventRepository, logger *slog.Logger) *DeleteSessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeleteSessionHandler{events: events, logger: logger}
}

// Handle deletes the session after confirming the requester takes part in
// it. Deleting an already-missing session returns ErrSessionNotFound.
func (h *DeleteSessionHandler) Handle(ctx context.Context, in DeleteSessionInput) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid delete input: %w", err)
	}

	err := h.events.Transact(ctx, func(txCtx context.Context) error {
		event, err := h.events.FindByID(txCtx, in.EventID)
		if err != nil {
			return err
		}
		if !event.HasParticipant(in.UserID) {
			return domain.ErrNotParticipant
		}
		return h.events.Delete(txCtx, event.ID())
	})
	if err != nil {
		return err
	}

	h.logger.Info("session deleted", "event_id", in.EventID, "user_id", in.UserID)
	return nil
}
