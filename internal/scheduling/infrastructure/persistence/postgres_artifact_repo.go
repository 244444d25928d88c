package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	sharedPersistence "github.com/tutorloop/tutorloop/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresArtifactRepository implements domain.ArtifactRepository.
type PostgresArtifactRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresArtifactRepository creates the repository.
func NewPostgresArtifactRepository(pool *pgxpool.Pool, logger *slog.Logger) *PostgresArtifactRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresArtifactRepository{pool: pool, logger: logger}
}

func (r *PostgresArtifactRepository) executor(ctx context.Context) pgxExecutor {
	if tx, ok := sharedPersistence.PgxTxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

// Save stores the artifact.
func (r *PostgresArtifactRepository) Save(ctx context.Context, artifact *domain.ConflictArtifact) error {
	alternatives, err := json.Marshal(artifact.Alternatives)
	if err != nil {
		return fmt.Errorf("encode alternatives: %w", err)
	}

	_, err = r.executor(ctx).Exec(ctx, `
		INSERT INTO conflict_artifacts (id, conflict_id, conversation_id, kind, message, alternatives, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		uuid.NewString(),
		artifact.ConflictID,
		artifact.ConversationID,
		string(artifact.Kind),
		artifact.Message,
		alternatives,
		artifact.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return nil
}

// FindLatestByConflictID returns the most recent artifact for the conflict.
func (r *PostgresArtifactRepository) FindLatestByConflictID(ctx context.Context, conflictID string) (*domain.ConflictArtifact, error) {
	row := r.executor(ctx).QueryRow(ctx, `
		SELECT conflict_id, conversation_id, kind, message, alternatives, created_at
		FROM conflict_artifacts
		WHERE conflict_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, conflictID)

	var (
		artifact         domain.ConflictArtifact
		kind             string
		alternativesJSON []byte
		createdAt        time.Time
	)
	err := row.Scan(&artifact.ConflictID, &artifact.ConversationID, &kind,
		&artifact.Message, &alternativesJSON, &createdAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	if len(alternativesJSON) > 0 {
		if err := json.Unmarshal(alternativesJSON, &artifact.Alternatives); err != nil {
			return nil, fmt.Errorf("decode alternatives: %w", err)
		}
	}
	artifact.Kind = domain.ArtifactKind(kind)
	artifact.CreatedAt = createdAt.UTC()
	return &artifact, nil
}
