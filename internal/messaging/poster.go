// Package messaging delivers artifacts (conflict warnings, reschedule
// confirmations, nudges) to conversations. Delivery guarantees belong to
// the consuming notification layer; posting is fire-and-forget here.
package messaging

import (
	"context"
	"log/slog"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
)

// ArtifactPoster posts a message-like artifact to a conversation and
// returns the artifact ID assigned to it.
type ArtifactPoster interface {
	Post(ctx context.Context, conversationID string, artifact *domain.ConflictArtifact) (string, error)
	Close() error
}

// NoopPoster logs artifacts instead of delivering them. Used in development
// when no broker is configured.
type NoopPoster struct {
	logger *slog.Logger
}

// NewNoopPoster creates a poster that only logs.
func NewNoopPoster(logger *slog.Logger) *NoopPoster {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopPoster{logger: logger}
}

// Post logs the artifact and returns a generated ID.
func (p *NoopPoster) Post(ctx context.Context, conversationID string, artifact *domain.ConflictArtifact) (string, error) {
	id := uuid.New().String()
	p.logger.Info("artifact posted (noop)",
		"artifact_id", id,
		"conversation_id", conversationID,
		"kind", artifact.Kind,
		"conflict_id", artifact.ConflictID,
	)
	return id, nil
}

// Close is a no-op.
func (p *NoopPoster) Close() error { return nil }
