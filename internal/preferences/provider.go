// Package preferences resolves per-user scheduling preferences: the IANA
// timezone used for display and the weekly working hours used to constrain
// alternative slots.
package preferences

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when a user has no stored
// preferences. The provider maps it to defaults.
var ErrNotFound = errors.New("preferences not found")

// UserPreferences is the stored preference record.
type UserPreferences struct {
	UserID       uuid.UUID          `json:"user_id"`
	Timezone     string             `json:"timezone"`
	WorkingHours domain.WeeklyHours `json:"working_hours"`
}

// Repository defines persistence for preference records.
type Repository interface {
	Find(ctx context.Context, userID uuid.UUID) (*UserPreferences, error)
	Save(ctx context.Context, prefs *UserPreferences) error
}

// Provider resolves preferences with sensible defaults: UTC and 09:00-17:00
// weekdays when nothing is stored.
type Provider struct {
	repo   Repository
	logger *slog.Logger
}

// NewProvider creates a provider over the given repository.
func NewProvider(repo Repository, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{repo: repo, logger: logger}
}

// Timezone returns the user's IANA timezone, defaulting to UTC.
func (p *Provider) Timezone(ctx context.Context, userID uuid.UUID) (string, error) {
	prefs, err := p.repo.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "UTC", nil
		}
		return "", err
	}
	if prefs.Timezone == "" {
		return "UTC", nil
	}
	return prefs.Timezone, nil
}

// WorkingHours returns the user's weekly hours, defaulting to weekday
// business hours.
func (p *Provider) WorkingHours(ctx context.Context, userID uuid.UUID) (domain.WeeklyHours, error) {
	prefs, err := p.repo.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.DefaultWeeklyHours(), nil
		}
		return nil, err
	}
	if prefs.WorkingHours.IsEmpty() {
		return domain.DefaultWeeklyHours(), nil
	}
	return prefs.WorkingHours, nil
}
