package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	sharedPersistence "github.com/tutorloop/tutorloop/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

// sqliteExecutor is satisfied by both *sql.DB and *sql.Tx.
type sqliteExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteEventRepository implements domain.EventRepository on SQLite for
// zero-config local mode. Timestamps are stored as RFC 3339 text.
type SQLiteEventRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteEventRepository creates the repository.
func NewSQLiteEventRepository(db *sql.DB, logger *slog.Logger) *SQLiteEventRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteEventRepository{db: db, logger: logger}
}

func (r *SQLiteEventRepository) executor(ctx context.Context) sqliteExecutor {
	if tx, ok := sharedPersistence.SQLiteTxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// Transact runs fn inside a transaction. SQLite's single writer makes the
// check-then-write sequence atomic without an isolation knob.
func (r *SQLiteEventRepository) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return sharedPersistence.RunSQLiteTx(ctx, r.db, fn)
}

// Save upserts the session.
func (r *SQLiteEventRepository) Save(ctx context.Context, event *domain.Event) error {
	participants, rsvps, err := encodeEventJSON(event)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO events (id, title, start_time, end_time, participants, created_by,
			status, rsvps, conversation_id, has_conflict, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			participants = excluded.participants,
			status = excluded.status,
			rsvps = excluded.rsvps,
			conversation_id = excluded.conversation_id,
			has_conflict = excluded.has_conflict,
			updated_at = excluded.updated_at
	`
	_, err = r.executor(ctx).ExecContext(ctx, query,
		event.ID().String(),
		event.Title(),
		event.StartTime().UTC().Format(time.RFC3339),
		event.EndTime().UTC().Format(time.RFC3339),
		string(participants),
		event.CreatedBy().String(),
		string(event.Status()),
		string(rsvps),
		event.ConversationID(),
		event.HasConflict(),
		event.CreatedAt().UTC().Format(time.RFC3339),
		event.UpdatedAt().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

// FindByID loads one session.
func (r *SQLiteEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	row := r.executor(ctx).QueryRowContext(ctx, `
		SELECT id, title, start_time, end_time, participants, created_by,
			status, rsvps, conversation_id, has_conflict, created_at, updated_at
		FROM events WHERE id = ?
	`, id.String())

	event, err := r.scanEventRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return event, nil
}

// Delete removes a session.
func (r *SQLiteEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.executor(ctx).ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// FindByParticipant returns the user's sessions intersecting [from, to).
// Rows with corrupt timestamps are skipped with a warning.
func (r *SQLiteEventRepository) FindByParticipant(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Event, error) {
	rows, err := r.executor(ctx).QueryContext(ctx, `
		SELECT id, title, start_time, end_time, participants, created_by,
			status, rsvps, conversation_id, has_conflict, created_at, updated_at
		FROM events
		WHERE EXISTS (SELECT 1 FROM json_each(events.participants) WHERE value = ?)
		  AND start_time < ? AND end_time > ?
		ORDER BY start_time
	`, userID.String(), to.UTC().Format(time.RFC3339), from.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("query events by participant: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// FindPendingBetween returns pending sessions starting inside [from, to).
func (r *SQLiteEventRepository) FindPendingBetween(ctx context.Context, from, to time.Time) ([]*domain.Event, error) {
	rows, err := r.executor(ctx).QueryContext(ctx, `
		SELECT id, title, start_time, end_time, participants, created_by,
			status, rsvps, conversation_id, has_conflict, created_at, updated_at
		FROM events
		WHERE status = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time
	`, string(domain.StatusPending), from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// ActiveParticipants returns distinct participants of sessions starting
// inside [from, to).
func (r *SQLiteEventRepository) ActiveParticipants(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	rows, err := r.executor(ctx).QueryContext(ctx, `
		SELECT DISTINCT value FROM events, json_each(events.participants)
		WHERE start_time >= ? AND start_time < ?
	`, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("query active participants: %w", err)
	}
	defer rows.Close()

	var users []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			r.logger.Warn("skipping malformed participant id", "value", raw)
			continue
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (r *SQLiteEventRepository) collect(rows *sql.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		event, err := r.scanEventRow(rows.Scan)
		if err != nil {
			r.logger.Warn("skipping unreadable event row", "error", err)
			continue
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) scanEventRow(scan func(dest ...any) error) (*domain.Event, error) {
	var (
		id, title, startRaw, endRaw, createdBy         string
		status, conversationID, createdRaw, updatedRaw string
		participantsJSON, rsvpsJSON                    []byte
		hasConflict                                    bool
	)
	err := scan(&id, &title, &startRaw, &endRaw, &participantsJSON, &createdBy,
		&status, &rsvpsJSON, &conversationID, &hasConflict, &createdRaw, &updatedRaw)
	if err != nil {
		return nil, err
	}

	startTime, err := parseStoredTime(startRaw)
	if err != nil {
		return nil, fmt.Errorf("corrupt start_time %q: %w", startRaw, err)
	}
	endTime, err := parseStoredTime(endRaw)
	if err != nil {
		return nil, fmt.Errorf("corrupt end_time %q: %w", endRaw, err)
	}
	createdAt, err := parseStoredTime(createdRaw)
	if err != nil {
		return nil, fmt.Errorf("corrupt created_at %q: %w", createdRaw, err)
	}
	updatedAt, err := parseStoredTime(updatedRaw)
	if err != nil {
		return nil, fmt.Errorf("corrupt updated_at %q: %w", updatedRaw, err)
	}

	return decodeEvent(id, title, startTime, endTime, participantsJSON, createdBy,
		status, rsvpsJSON, conversationID, hasConflict, createdAt, updatedAt)
}

func parseStoredTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
