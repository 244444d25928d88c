// Package workers contains the background loops of the scheduling context.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/application/queries"
	"github.com/tutorloop/tutorloop/internal/scheduling/application/services"
	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
)

// DefaultNudgeInterval is the default interval between unconfirmed sweeps.
const DefaultNudgeInterval = time.Hour

// DefaultSweepInterval is the default interval between full conflict sweeps.
const DefaultSweepInterval = 24 * time.Hour

// nudgeType24h tags the day-before confirmation nudge in the guard key.
const nudgeType24h = "unconfirmed_24h"

// ScheduleMonitorConfig configures the monitor worker.
type ScheduleMonitorConfig struct {
	NudgeInterval time.Duration
	SweepInterval time.Duration
	LookaheadDays int
}

// DefaultScheduleMonitorConfig returns the default configuration.
func DefaultScheduleMonitorConfig() ScheduleMonitorConfig {
	return ScheduleMonitorConfig{
		NudgeInterval: DefaultNudgeInterval,
		SweepInterval: DefaultSweepInterval,
		LookaheadDays: queries.DefaultLookaheadDays,
	}
}

// ScheduleMonitor periodically nudges unconfirmed sessions and sweeps every
// active calendar for conflicts that slipped in after booking. Both cycles
// use create-only guards, so a duplicate run at worst re-reads and never
// re-posts.
type ScheduleMonitor struct {
	events      domain.EventRepository
	guards      domain.GuardRepository
	artifacts   domain.ArtifactRepository
	unconfirmed *queries.DetectUnconfirmedHandler
	monitor     *queries.MonitorConflictsHandler
	prefs       services.PreferenceProvider
	poster      services.ArtifactPoster
	config      ScheduleMonitorConfig
	logger      *slog.Logger
	running     atomic.Bool
	stopCh      chan struct{}
}

// NewScheduleMonitor creates the monitor worker.
func NewScheduleMonitor(
	events domain.EventRepository,
	guards domain.GuardRepository,
	artifacts domain.ArtifactRepository,
	unconfirmed *queries.DetectUnconfirmedHandler,
	monitor *queries.MonitorConflictsHandler,
	prefs services.PreferenceProvider,
	poster services.ArtifactPoster,
	config ScheduleMonitorConfig,
	logger *slog.Logger,
) *ScheduleMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleMonitor{
		events:      events,
		guards:      guards,
		artifacts:   artifacts,
		unconfirmed: unconfirmed,
		monitor:     monitor,
		prefs:       prefs,
		poster:      poster,
		config:      config,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

// Run starts both cycles and blocks until the context is cancelled or
// Stop() is called.
func (w *ScheduleMonitor) Run(ctx context.Context) error {
	w.running.Store(true)
	w.logger.Info("schedule monitor started",
		"nudge_interval", w.config.NudgeInterval,
		"sweep_interval", w.config.SweepInterval,
	)

	// Run immediately on start
	w.runNudgeCycle(ctx)
	w.runSweepCycle(ctx)

	nudgeTicker := time.NewTicker(w.config.NudgeInterval)
	defer nudgeTicker.Stop()
	sweepTicker := time.NewTicker(w.config.SweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.running.Store(false)
			w.logger.Info("schedule monitor stopped (context cancelled)")
			return ctx.Err()
		case <-w.stopCh:
			w.running.Store(false)
			w.logger.Info("schedule monitor stopped (stop signal)")
			return nil
		case <-nudgeTicker.C:
			w.runNudgeCycle(ctx)
		case <-sweepTicker.C:
			w.runSweepCycle(ctx)
		}
	}
}

// Stop signals the worker to stop gracefully.
func (w *ScheduleMonitor) Stop() {
	if w.running.Load() {
		close(w.stopCh)
	}
}

// IsRunning returns true if the worker is currently running.
func (w *ScheduleMonitor) IsRunning() bool {
	return w.running.Load()
}

// runNudgeCycle finds sessions starting in roughly a day that still have
// silent participants and posts one reminder per session. An exact-once
// delivery is not required here; the guard keeps repeats rare and a missed
// cycle is caught by the next one.
func (w *ScheduleMonitor) runNudgeCycle(ctx context.Context) {
	sessions, err := w.unconfirmed.Handle(ctx)
	if err != nil {
		w.logger.Error("unconfirmed sweep failed", "error", err)
		return
	}

	nudged := 0
	for _, session := range sessions {
		if w.nudge(ctx, session) {
			nudged++
		}
	}
	if nudged > 0 {
		w.logger.Info("confirmation nudges posted", "count", nudged, "candidates", len(sessions))
	}
}

func (w *ScheduleMonitor) nudge(ctx context.Context, session queries.UnconfirmedSession) bool {
	event := session.Event
	key := domain.NudgeKey(event.ID(), nudgeType24h)

	sent, err := w.guards.Exists(ctx, domain.GuardNudge, key)
	if err != nil {
		w.logger.Error("nudge guard lookup failed", "event_id", event.ID(), "error", err)
		return false
	}
	if sent {
		return false
	}
	if err := w.guards.Create(ctx, domain.GuardNudge, key); err != nil {
		// Lost the race against another worker instance.
		w.logger.Debug("nudge already claimed", "event_id", event.ID())
		return false
	}

	loc := w.userLocation(ctx, event)
	artifact := &domain.ConflictArtifact{
		ConflictID:     event.ID().String(),
		ConversationID: event.ConversationID(),
		Kind:           domain.ArtifactNudge,
		Message: fmt.Sprintf("%q starts %s and %d participant(s) have not confirmed yet.",
			event.Title(),
			event.StartTime().In(loc).Format("Mon Jan 2 at 15:04"),
			len(event.UnrespondedParticipants()),
		),
		CreatedAt: time.Now().UTC(),
	}
	if err := w.artifacts.Save(ctx, artifact); err != nil {
		w.logger.Error("failed to persist nudge artifact", "event_id", event.ID(), "error", err)
		return false
	}
	if _, err := w.poster.Post(ctx, event.ConversationID(), artifact); err != nil {
		w.logger.Warn("failed to post nudge", "event_id", event.ID(), "error", err)
		return false
	}
	return true
}

// runSweepCycle runs the pairwise conflict sweep for every user with a
// session in the lookahead window and posts one guarded warning per newly
// found overlapping pair.
func (w *ScheduleMonitor) runSweepCycle(ctx context.Context) {
	now := time.Now().UTC()
	users, err := w.events.ActiveParticipants(ctx, now, now.AddDate(0, 0, w.config.LookaheadDays))
	if err != nil {
		w.logger.Error("failed to list active participants", "error", err)
		return
	}

	warned := 0
	for _, userID := range users {
		pairs, err := w.monitor.Handle(ctx, userID, w.config.LookaheadDays)
		if err != nil {
			w.logger.Error("conflict sweep failed", "user_id", userID, "error", err)
			continue
		}
		for _, pair := range pairs {
			if w.warn(ctx, pair) {
				warned++
			}
		}
	}
	w.logger.Info("conflict sweep cycle completed", "users", len(users), "warnings", warned)
}

func (w *ScheduleMonitor) warn(ctx context.Context, pair domain.ConflictPair) bool {
	// Key on the pair so each clash is announced once regardless of which
	// user's sweep found it.
	key := domain.NudgeKey(pair.EventA.ID(), "pair_"+pair.EventB.ID().String())
	if err := w.guards.Create(ctx, domain.GuardNudge, key); err != nil {
		return false
	}

	loc := w.userLocation(ctx, pair.EventA)
	artifact := &domain.ConflictArtifact{
		ConflictID:     pair.EventA.ID().String(),
		ConversationID: pair.EventA.ConversationID(),
		Kind:           domain.ArtifactConflictWarning,
		Message: fmt.Sprintf("Heads up: %q (%s) overlaps %q by %d minutes.",
			pair.EventA.Title(),
			pair.EventA.StartTime().In(loc).Format("Mon Jan 2, 15:04"),
			pair.EventB.Title(),
			pair.OverlapMinutes,
		),
		CreatedAt: time.Now().UTC(),
	}
	if err := w.artifacts.Save(ctx, artifact); err != nil {
		w.logger.Error("failed to persist sweep warning", "event_id", pair.EventA.ID(), "error", err)
		return false
	}
	if _, err := w.poster.Post(ctx, pair.EventA.ConversationID(), artifact); err != nil {
		w.logger.Warn("failed to post sweep warning", "event_id", pair.EventA.ID(), "error", err)
		return false
	}
	return true
}

func (w *ScheduleMonitor) userLocation(ctx context.Context, event *domain.Event) *time.Location {
	tz, err := w.prefs.Timezone(ctx, event.CreatedBy())
	if err != nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
