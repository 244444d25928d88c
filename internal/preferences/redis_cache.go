package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CachedRepository is a read-through Redis cache over a Repository.
// Preferences change rarely and are read on every conflict, so a short TTL
// removes most database round trips.
type CachedRepository struct {
	inner  Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRepository wraps inner with a Redis cache.
func NewCachedRepository(inner Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

func cacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("prefs:%s", userID)
}

// Find returns the cached record when present, otherwise reads through and
// populates the cache. Cache failures degrade to the inner repository.
func (r *CachedRepository) Find(ctx context.Context, userID uuid.UUID) (*UserPreferences, error) {
	raw, err := r.client.Get(ctx, cacheKey(userID)).Bytes()
	if err == nil {
		var prefs UserPreferences
		if jsonErr := json.Unmarshal(raw, &prefs); jsonErr == nil {
			return &prefs, nil
		}
		// Corrupt cache entry: fall through to the source of truth.
		r.logger.Warn("dropping corrupt preferences cache entry", "user_id", userID)
		r.client.Del(ctx, cacheKey(userID))
	} else if err != redis.Nil {
		r.logger.Warn("preferences cache read failed", "user_id", userID, "error", err)
	}

	prefs, err := r.inner.Find(ctx, userID)
	if err != nil {
		return nil, err
	}

	if encoded, jsonErr := json.Marshal(prefs); jsonErr == nil {
		if setErr := r.client.Set(ctx, cacheKey(userID), encoded, r.ttl).Err(); setErr != nil {
			r.logger.Warn("preferences cache write failed", "user_id", userID, "error", setErr)
		}
	}
	return prefs, nil
}

// Save writes through and invalidates the cached entry.
func (r *CachedRepository) Save(ctx context.Context, prefs *UserPreferences) error {
	if err := r.inner.Save(ctx, prefs); err != nil {
		return err
	}
	if err := r.client.Del(ctx, cacheKey(prefs.UserID)).Err(); err != nil {
		r.logger.Warn("preferences cache invalidation failed", "user_id", prefs.UserID, "error", err)
	}
	return nil
}
