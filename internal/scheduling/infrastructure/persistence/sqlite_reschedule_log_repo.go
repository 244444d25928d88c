package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	sharedPersistence "github.com/tutorloop/tutorloop/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

// SQLiteRescheduleLogRepository implements domain.RescheduleLogRepository
// on SQLite.
type SQLiteRescheduleLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteRescheduleLogRepository creates the repository.
func NewSQLiteRescheduleLogRepository(db *sql.DB, logger *slog.Logger) *SQLiteRescheduleLogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRescheduleLogRepository{db: db, logger: logger}
}

func (r *SQLiteRescheduleLogRepository) executor(ctx context.Context) sqliteExecutor {
	if tx, ok := sharedPersistence.SQLiteTxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// Record appends one audit entry.
func (r *SQLiteRescheduleLogRepository) Record(ctx context.Context, rec domain.RescheduleRecord) error {
	_, err := r.executor(ctx).ExecContext(ctx, `
		INSERT INTO reschedule_log (conflict_id, event_id, user_id, alternative_index,
			old_start, old_end, new_start, new_end, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ConflictID,
		rec.EventID.String(),
		rec.UserID.String(),
		rec.AlternativeIndex,
		rec.OldStart.UTC().Format(time.RFC3339),
		rec.OldEnd.UTC().Format(time.RFC3339),
		rec.NewStart.UTC().Format(time.RFC3339),
		rec.NewEnd.UTC().Format(time.RFC3339),
		rec.AppliedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record reschedule: %w", err)
	}
	return nil
}

// ListByEvent returns the audit trail for one session, oldest first.
func (r *SQLiteRescheduleLogRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.RescheduleRecord, error) {
	rows, err := r.executor(ctx).QueryContext(ctx, `
		SELECT conflict_id, event_id, user_id, alternative_index,
			old_start, old_end, new_start, new_end, applied_at
		FROM reschedule_log
		WHERE event_id = ?
		ORDER BY applied_at, id
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
			rawTimes          [5]string
		)
		err := rows.Scan(&rec.ConflictID, &eventRaw, &userRaw, &rec.AlternativeIndex,
			&rawTimes[0], &rawTimes[1], &rawTimes[2], &rawTimes[3], &rawTimes[4])
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

		parsed := make([]time.Time, 0, len(rawTimes))
		ok := true
		for _, raw := range rawTimes {
			t, err := parseStoredTime(raw)
			if err != nil {
				r.logger.Warn("skipping reschedule entry with corrupt timestamp", "value", raw)
				ok = false
				break
			}
			parsed = append(parsed, t)
		}
		if !ok {
			continue
		}
		rec.OldStart, rec.OldEnd = parsed[0], parsed[1]
		rec.NewStart, rec.NewEnd = parsed[2], parsed[3]
		rec.AppliedAt = parsed[4]
		records = append(records, rec)
	}
	return records, rows.Err()
}
