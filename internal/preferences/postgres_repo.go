package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL preferences repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Find loads a user's preference record.
func (r *PostgresRepository) Find(ctx context.Context, userID uuid.UUID) (*UserPreferences, error) {
	query := `
		SELECT user_id, timezone, working_hours
		FROM user_preferences
		WHERE user_id = $1
	`

	var (
		prefs    UserPreferences
		hoursRaw []byte
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(&prefs.UserID, &prefs.Timezone, &hoursRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find preferences: %w", err)
	}

	if len(hoursRaw) > 0 {
		if err := json.Unmarshal(hoursRaw, &prefs.WorkingHours); err != nil {
			return nil, fmt.Errorf("decode working hours: %w", err)
		}
	}
	return &prefs, nil
}

// Save upserts a user's preference record.
func (r *PostgresRepository) Save(ctx context.Context, prefs *UserPreferences) error {
	hoursRaw, err := json.Marshal(prefs.WorkingHours)
	if err != nil {
		return fmt.Errorf("encode working hours: %w", err)
	}

	query := `
		INSERT INTO user_preferences (user_id, timezone, working_hours, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			timezone = EXCLUDED.timezone,
			working_hours = EXCLUDED.working_hours,
			updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, prefs.UserID, prefs.Timezone, hoursRaw); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
