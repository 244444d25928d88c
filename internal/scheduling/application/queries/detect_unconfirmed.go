package queries

import (
	"context"
	"log/slog"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
)

// The unconfirmed sweep looks at sessions starting roughly a day out, far
// enough that a nudge can still change the outcome.
const (
	UnconfirmedWindowStart = 20 * time.Hour
	UnconfirmedWindowEnd   = 28 * time.Hour
)

// UnconfirmedSession is a pending session nearing its start time with
// participants who have not responded.
type UnconfirmedSession struct {
	Event          *domain.Event
	HoursTillStart float64
}

// DetectUnconfirmedHandler finds sessions that need a confirmation nudge.
type DetectUnconfirmedHandler struct {
	events domain.EventRepository
	logger *slog.Logger
}

// NewDetectUnconfirmedHandler creates the handler.
func NewDetectUnconfirmedHandler(events domain.EventRepository, logger *slog.Logger) *DetectUnconfirmedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetectUnconfirmedHandler{events: events, logger: logger}
}

// Handle returns pending sessions starting inside [now+20h, now+28h) where
// at least one participant has not recorded a response.
func (h *DetectUnconfirmedHandler) Handle(ctx context.Context) ([]UnconfirmedSession, error) {
	now := time.Now().UTC()
	from := now.Add(UnconfirmedWindowStart)
	to := now.Add(UnconfirmedWindowEnd)

	pending, err := h.events.FindPendingBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var out []UnconfirmedSession
	for _, event := range pending {
		if len(event.UnrespondedParticipants()) == 0 {
			continue
		}
		out = append(out, UnconfirmedSession{
			Event:          event,
			HoursTillStart: event.StartTime().Sub(now).Hours(),
		})
	}

	h.logger.Debug("unconfirmed sweep completed", "pending", len(pending), "unconfirmed", len(out))
	return out, nil
}
