package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	sharedPersistence "github.com/tutorloop/tutorloop/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRescheduleLogRepository implements domain.RescheduleLogRepository.
type PostgresRescheduleLogRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresRescheduleLogRepository creates the repository.
func NewPostgresRescheduleLogRepository(pool *pgxpool.Pool, logger *slog.Logger) *PostgresRescheduleLogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRescheduleLogRepository{pool: pool, logger: logger}
}

func (r *PostgresRescheduleLogRepository) executor(ctx context.Context) pgxExecutor {
	if tx, ok := sharedPersistence.PgxTxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

// Record appends one audit entry.
func (r *PostgresRescheduleLogRepository) Record(ctx context.Context, rec domain.RescheduleRecord) error {
	_, err := r.executor(ctx).Exec(ctx, `
		INSERT INTO reschedule_log (conflict_id, event_id, user_id, alternative_index,
			old_start, old_end, new_start, new_end, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.ConflictID,
		rec.EventID.String(),
		rec.UserID.String(),
		rec.AlternativeIndex,
		rec.OldStart, rec.OldEnd,
		rec.NewStart, rec.NewEnd,
		rec.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("record reschedule: %w", err)
	}
	return nil
}

// ListByEvent returns the audit trail for one session, oldest first.
func (r *PostgresRescheduleLogRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.RescheduleRecord, error) {
	rows, err := r.executor(ctx).Query(ctx, `
		SELECT conflict_id, event_id, user_id, alternative_index,
			old_start, old_end, new_start, new_end, applied_at
		FROM reschedule_log
		WHERE event_id = $1
		ORDER BY applied_at
	`, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("query reschedule log: %w", err)
	}
	defer rows.Close()

	var records []domain.RescheduleRecord
	for rows.Next() {
		var (
			rec               domain.RescheduleRecord
			eventRaw, userRaw string
			oldStart, oldEnd  time.Time
			newStart, newEnd  time.Time
			appliedAt         time.Time
		)
		err := rows.Scan(&rec.ConflictID, &eventRaw, &userRaw, &rec.AlternativeIndex,
			&oldStart, &oldEnd, &newStart, &newEnd, &appliedAt)
		if err != nil {
			return nil, err
		}
		if rec.EventID, err = uuid.Parse(eventRaw); err != nil {
			r.logger.Warn("skipping reschedule entry with bad event id", "value", eventRaw)
			continue
		}
		if rec.UserID, err = uuid.Parse(userRaw); err != nil {
			r.logger.Warn("skipping reschedule entry with bad user id", "value", userRaw)
			continue
		}
		rec.OldStart, rec.OldEnd = oldStart.UTC(), oldEnd.UTC()
		rec.NewStart, rec.NewEnd = newStart.UTC(), newEnd.UTC()
		rec.AppliedAt = appliedAt.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}
