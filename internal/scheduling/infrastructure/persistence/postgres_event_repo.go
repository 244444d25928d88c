// Package persistence implements the scheduling repositories for both
// database drivers. Sessions store participants and responses as JSON so
// the row shape stays identical across drivers.
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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxExecutor is satisfied by both *pgxpool.Pool and pgx.Tx, letting
// repository methods transparently join a context transaction.
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresEventRepository implements domain.EventRepository on PostgreSQL.
type PostgresEventRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresEventRepository creates the repository.
func NewPostgresEventRepository(pool *pgxpool.Pool, logger *slog.Logger) *PostgresEventRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresEventRepository{pool: pool, logger: logger}
}

func (r *PostgresEventRepository) executor(ctx context.Context) pgxExecutor {
	if tx, ok := sharedPersistence.PgxTxFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

// Transact runs fn inside a serializable transaction so conflict checks and
// writes are atomic against concurrent proposals.
func (r *PostgresEventRepository) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return sharedPersistence.RunSerializable(ctx, r.pool, fn)
}

const eventColumns = `id, title, start_time, end_time, participants, created_by,
	status, rsvps, conversation_id, has_conflict, created_at, updated_at`

// Save upserts the session.
func (r *PostgresEventRepository) Save(ctx context.Context, event *domain.Event) error {
	participants, rsvps, err := encodeEventJSON(event)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			participants = EXCLUDED.participants,
			status = EXCLUDED.status,
			rsvps = EXCLUDED.rsvps,
			conversation_id = EXCLUDED.conversation_id,
			has_conflict = EXCLUDED.has_conflict,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.executor(ctx).Exec(ctx, query,
		event.ID().String(),
		event.Title(),
		event.StartTime(),
		event.EndTime(),
		participants,
		event.CreatedBy().String(),
		string(event.Status()),
		rsvps,
		event.ConversationID(),
		event.HasConflict(),
		event.CreatedAt(),
		event.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	return nil
}

// FindByID loads one session.
func (r *PostgresEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	row := r.executor(ctx).QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id.String())

	event, err := r.scanEvent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return event, nil
}

// Delete removes a session.
func (r *PostgresEventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.executor(ctx).Exec(ctx, `DELETE FROM events WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// FindByParticipant returns the user's sessions intersecting [from, to).
func (r *PostgresEventRepository) FindByParticipant(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Event, error) {
	// jsonb ? tests membership of the user ID in the participants array.
	rows, err := r.executor(ctx).Query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE participants ? $1
		  AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`, userID.String(), from, to)
	if err != nil {
		return nil, fmt.Errorf("query events by participant: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// FindPendingBetween returns pending sessions starting inside [from, to).
func (r *PostgresEventRepository) FindPendingBetween(ctx context.Context, from, to time.Time) ([]*domain.Event, error) {
	rows, err := r.executor(ctx).Query(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE status = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time
	`, string(domain.StatusPending), from, to)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// ActiveParticipants returns distinct participants of sessions starting
// inside [from, to).
func (r *PostgresEventRepository) ActiveParticipants(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	rows, err := r.executor(ctx).Query(ctx, `
		SELECT DISTINCT p FROM events, jsonb_array_elements_text(participants) AS p
		WHERE start_time >= $1 AND start_time < $2
	`, from, to)
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

func (r *PostgresEventRepository) collect(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			// One bad row must not block detection for the rest.
			r.logger.Warn("skipping unreadable event row", "error", err)
			continue
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *PostgresEventRepository) scanEvent(row pgx.Row) (*domain.Event, error) {
	var (
		id, createdBy, title, status, conversationID string
		startTime, endTime, createdAt, updatedAt     time.Time
		participantsJSON, rsvpsJSON                  []byte
		hasConflict                                  bool
	)
	err := row.Scan(&id, &title, &startTime, &endTime, &participantsJSON, &createdBy,
		&status, &rsvpsJSON, &conversationID, &hasConflict, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	return decodeEvent(id, title, startTime, endTime, participantsJSON, createdBy,
		status, rsvpsJSON, conversationID, hasConflict, createdAt, updatedAt)
}

// encodeEventJSON renders participants and responses as JSON documents.
func encodeEventJSON(event *domain.Event) (participants, rsvps []byte, err error) {
	ids := make([]string, 0, len(event.Participants()))
	for _, p := range event.Participants() {
		ids = append(ids, p.String())
	}
	participants, err = json.Marshal(ids)
	if err != nil {
		return nil, nil, fmt.Errorf("encode participants: %w", err)
	}

	responses := make(map[string]domain.RSVP, len(event.RSVPs()))
	for userID, rsvp := range event.RSVPs() {
		responses[userID.String()] = rsvp
	}
	rsvps, err = json.Marshal(responses)
	if err != nil {
		return nil, nil, fmt.Errorf("encode rsvps: %w", err)
	}
	return participants, rsvps, nil
}

// decodeEvent rehydrates a session from raw column values. Any malformed
// field fails the whole row.
func decodeEvent(
	id, title string,
	startTime, endTime time.Time,
	participantsJSON []byte,
	createdBy, status string,
	rsvpsJSON []byte,
	conversationID string,
	hasConflict bool,
	createdAt, updatedAt time.Time,
) (*domain.Event, error) {
	eventID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse event id %q: %w", id, err)
	}
	creatorID, err := uuid.Parse(createdBy)
	if err != nil {
		return nil, fmt.Errorf("parse creator id %q: %w", createdBy, err)
	}

	var rawParticipants []string
	if err := json.Unmarshal(participantsJSON, &rawParticipants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	participants := make([]uuid.UUID, 0, len(rawParticipants))
	for _, raw := range rawParticipants {
		p, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse participant id %q: %w", raw, err)
		}
		participants = append(participants, p)
	}

	var rawRSVPs map[string]domain.RSVP
	if err := json.Unmarshal(rsvpsJSON, &rawRSVPs); err != nil {
		return nil, fmt.Errorf("decode rsvps: %w", err)
	}
	rsvps := make(map[uuid.UUID]domain.RSVP, len(rawRSVPs))
	for raw, rsvp := range rawRSVPs {
		userID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse rsvp user id %q: %w", raw, err)
		}
		rsvps[userID] = rsvp
	}

	return domain.RehydrateEvent(
		eventID, title,
		startTime.UTC(), endTime.UTC(),
		participants, creatorID,
		domain.Status(status), rsvps,
		conversationID, hasConflict,
		createdAt.UTC(), updatedAt.UTC(),
	), nil
}
