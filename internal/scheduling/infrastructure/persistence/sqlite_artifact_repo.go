package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	sharedPersistence "github.com/tutorloop/tutorloop/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

// SQLiteArtifactRepository implements domain.ArtifactRepository on SQLite.
type SQLiteArtifactRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteArtifactRepository creates the repository.
func NewSQLiteArtifactRepository(db *sql.DB, logger *slog.Logger) *SQLiteArtifactRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteArtifactRepository{db: db, logger: logger}
}

func (r *SQLiteArtifactRepository) executor(ctx context.Context) sqliteExecutor {
	if tx, ok := sharedPersistence.SQLiteTxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// Save stores the artifact.
func (r *SQLiteArtifactRepository) Save(ctx context.Context, artifact *domain.ConflictArtifact) error {
	alternatives, err := json.Marshal(artifact.Alternatives)
	if err != nil {
		return fmt.Errorf("encode alternatives: %w", err)
	}

	_, err = r.executor(ctx).ExecContext(ctx, `
		INSERT INTO conflict_artifacts (id, conflict_id, conversation_id, kind, message, alternatives, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.NewString(),
		artifact.ConflictID,
		artifact.ConversationID,
		string(artifact.Kind),
		artifact.Message,
		string(alternatives),
		artifact.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return nil
}

// FindLatestByConflictID returns the most recent artifact for the conflict.
func (r *SQLiteArtifactRepository) FindLatestByConflictID(ctx context.Context, conflictID string) (*domain.ConflictArtifact, error) {
	row := r.executor(ctx).QueryRowContext(ctx, `
		SELECT conflict_id, conversation_id, kind, message, alternatives, created_at
		FROM conflict_artifacts
		WHERE conflict_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, conflictID)

	var (
		artifact         domain.ConflictArtifact
		kind, createdRaw string
		alternativesJSON sql.NullString
	)
	err := row.Scan(&artifact.ConflictID, &artifact.ConversationID, &kind,
		&artifact.Message, &alternativesJSON, &createdRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	if alternativesJSON.Valid && alternativesJSON.String != "" {
		if err := json.Unmarshal([]byte(alternativesJSON.String), &artifact.Alternatives); err != nil {
			return nil, fmt.Errorf("decode alternatives: %w", err)
		}
	}
	createdAt, err := parseStoredTime(createdRaw)
	if err != nil {
		return nil, fmt.Errorf("corrupt created_at %q: %w", createdRaw, err)
	}
	artifact.Kind = domain.ArtifactKind(kind)
	artifact.CreatedAt = createdAt
	return &artifact, nil
}
