package preferences

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteRepository implements Repository using SQLite for local mode.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite preferences repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Find loads a user's preference record.
func (r *SQLiteRepository) Find(ctx context.Context, userID uuid.UUID) (*UserPreferences, error) {
	query := `
		SELECT user_id, timezone, working_hours
		FROM user_preferences
		WHERE user_id = ?
	`

	var (
		idRaw    string
		timezone string
		hoursRaw string
	)
	err := r.db.QueryRowContext(ctx, query, userID.String()).Scan(&idRaw, &timezone, &hoursRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find preferences: %w", err)
	}

	id, err := uuid.Parse(idRaw)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}

	prefs := &UserPreferences{UserID: id, Timezone: timezone}
	if hoursRaw != "" {
		if err := json.Unmarshal([]byte(hoursRaw), &prefs.WorkingHours); err != nil {
			return nil, fmt.Errorf("decode working hours: %w", err)
		}
	}
	return prefs, nil
}

// Save upserts a user's preference record.
func (r *SQLiteRepository) Save(ctx context.Context, prefs *UserPreferences) error {
	hoursRaw, err := json.Marshal(prefs.WorkingHours)
	if err != nil {
		return fmt.Errorf("encode working hours: %w", err)
	}

	query := `
		INSERT INTO user_preferences (user_id, timezone, working_hours, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			timezone = excluded.timezone,
			working_hours = excluded.working_hours,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		prefs.UserID.String(), prefs.Timezone, string(hoursRaw), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
