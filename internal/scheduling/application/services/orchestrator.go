package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/application/queries"
	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/tutorloop/tutorloop/pkg/observability"
	"github.com/google/uuid"
)

// scheduleLookahead is how much forward schedule the generator sees.
const scheduleLookahead = 7 * 24 * time.Hour

// maxNamedConflicts caps how many colliding sessions the user-facing
// message names before collapsing to "and N more".
const maxNamedConflicts = 2

// PreferenceProvider resolves per-user display timezone and working hours.
type PreferenceProvider interface {
	Timezone(ctx context.Context, userID uuid.UUID) (string, error)
	WorkingHours(ctx context.Context, userID uuid.UUID) (domain.WeeklyHours, error)
}

// ArtifactPoster delivers artifacts to conversations.
type ArtifactPoster interface {
	Post(ctx context.Context, conversationID string, artifact *domain.ConflictArtifact) (string, error)
}

// ConflictOutcome is the structured result of conflict handling. A detected
// conflict is a business outcome, never an exception.
type ConflictOutcome struct {
	HasConflict  bool
	ConflictID   string
	Message      string
	Alternatives []domain.AlternativeSlot
}

// ConflictOrchestrator wires the conflict finder and the alternative
// pipeline together, and applies user selections exactly once.
type ConflictOrchestrator struct {
	finder    *queries.ConflictFinder
	events    domain.EventRepository
	guards    domain.GuardRepository
	artifacts domain.ArtifactRepository
	reslog    domain.RescheduleLogRepository
	pipeline  *AlternativePipeline
	prefs     PreferenceProvider
	poster    ArtifactPoster
	logger    *slog.Logger
}

// NewConflictOrchestrator creates the orchestrator.
func NewConflictOrchestrator(
	finder *queries.ConflictFinder,
	events domain.EventRepository,
	guards domain.GuardRepository,
	artifacts domain.ArtifactRepository,
	reslog domain.RescheduleLogRepository,
	pipeline *AlternativePipeline,
	prefs PreferenceProvider,
	poster ArtifactPoster,
	logger *slog.Logger,
) *ConflictOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConflictOrchestrator{
		finder:    finder,
		events:    events,
		guards:    guards,
		artifacts: artifacts,
		reslog:    reslog,
		pipeline:  pipeline,
		prefs:     prefs,
		poster:    poster,
		logger:    logger,
	}
}

// HandleSessionConflict checks the proposed session against the creator's
// calendar and, on conflict, generates alternatives and posts a warning
// artifact at most once per correlation+user.
func (o *ConflictOrchestrator) HandleSessionConflict(
	ctx context.Context,
	proposed *domain.Event,
	conversationID string,
	timezone string,
) (*ConflictOutcome, error) {
	if timezone == "" {
		return nil, domain.ErrTimezoneRequired
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	userID := proposed.CreatedBy()
	conflicts, err := o.finder.FindConflicts(ctx, userID, proposed.Range(), proposed.ID())
	if err != nil {
		return nil, err
	}
	if len(conflicts) == 0 {
		return &ConflictOutcome{HasConflict: false}, nil
	}

	hours, err := o.prefs.WorkingHours(ctx, userID)
	if err != nil {
		o.logger.Warn("failed to load working hours, using defaults", "user_id", userID, "error", err)
		hours = domain.DefaultWeeklyHours()
	}
	blocks, err := o.finder.ScheduleBlocks(ctx, userID,
		proposed.StartTime(), proposed.StartTime().Add(scheduleLookahead), proposed.ID())
	if err != nil {
		return nil, err
	}

	cctx := domain.ConflictContext{
		Proposed:      proposed.Range(),
		ProposedTitle: proposed.Title(),
		Conflicts:     conflicts,
		UserID:        userID,
		Timezone:      loc,
		Duration:      proposed.Duration(),
		WorkingHours:  hours,
		Blocks:        blocks,
	}
	alternatives := o.pipeline.Generate(ctx, cctx)
	message := buildConflictMessage(proposed.Title(), proposed.Range(), conflicts, loc)

	conflictID := o.resolveConflictID(ctx, proposed, conversationID)
	outcome := &ConflictOutcome{
		HasConflict:  true,
		ConflictID:   conflictID,
		Message:      message,
		Alternatives: alternatives,
	}

	correlationID := observability.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = conflictID
	}
	logKey := domain.ConflictLogKey(correlationID, userID)
	if err := o.guards.Create(ctx, domain.GuardConflictLog, logKey); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// A concurrent or retried trigger already posted the warning.
			o.logger.Info("conflict already handled, skipping artifact", "key", logKey)
			return outcome, nil
		}
		return nil, err
	}

	artifact := &domain.ConflictArtifact{
		ConflictID:     conflictID,
		ConversationID: conversationID,
		Kind:           domain.ArtifactConflictWarning,
		Message:        message,
		Alternatives:   alternatives,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.artifacts.Save(ctx, artifact); err != nil {
		return nil, err
	}
	if _, err := o.poster.Post(ctx, conversationID, artifact); err != nil {
		// Posting is fire-and-forget; the artifact is persisted and the
		// caller still gets the full outcome.
		o.logger.Warn("failed to post conflict artifact", "conflict_id", conflictID, "error", err)
	}

	o.logger.Info("conflict artifact posted",
		"conflict_id", conflictID,
		"conflicts", len(conflicts),
		"alternatives", len(alternatives),
	)
	return outcome, nil
}

// HandleAlternativeSelection applies the user's chosen alternative exactly
// once. Retried taps hit the reschedule guard and return success without a
// second mutation.
func (o *ConflictOrchestrator) HandleAlternativeSelection(
	ctx context.Context,
	conflictID string,
	alternativeIndex int,
	conversationID string,
	userID uuid.UUID,
) (bool, error) {
	opKey := domain.RescheduleKey(conflictID, alternativeIndex)
	if err := o.guards.Create(ctx, domain.GuardReschedule, opKey); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			o.logger.Info("reschedule already applied", "key", opKey)
			return true, nil
		}
		return false, err
	}

	artifact, err := o.artifacts.FindLatestByConflictID(ctx, conflictID)
	if err != nil {
		return false, err
	}
	slot, err := artifact.Alternative(alternativeIndex)
	if err != nil {
		return false, err
	}

	eventID, parseErr := uuid.Parse(conflictID)
	if parseErr != nil {
		// Composite conflict ID: the conflict was detected before the
		// session was created, so there is nothing to mutate. The claim
		// alone completes the operation.
		o.logger.Info("selection on pre-creation conflict, no event to update", "conflict_id", conflictID)
		return true, nil
	}

	event, err := o.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			o.logger.Info("selection references missing session, marking complete", "event_id", eventID)
			return true, nil
		}
		return false, err
	}

	oldStart, oldEnd := event.StartTime(), event.EndTime()
	if err := event.Reschedule(slot.Start, slot.End); err != nil {
		return false, err
	}
	if err := o.events.Save(ctx, event); err != nil {
		return false, err
	}

	if err := o.reslog.Record(ctx, domain.RescheduleRecord{
		ConflictID:       conflictID,
		EventID:          eventID,
		UserID:           userID,
		AlternativeIndex: alternativeIndex,
		OldStart:         oldStart,
		OldEnd:           oldEnd,
		NewStart:         slot.Start,
		NewEnd:           slot.End,
		AppliedAt:        time.Now().UTC(),
	}); err != nil {
		o.logger.Warn("failed to record reschedule audit entry", "event_id", eventID, "error", err)
	}

	o.postRescheduleConfirmation(ctx, conversationID, conflictID, event, slot, userID)

	o.logger.Info("alternative applied",
		"event_id", eventID,
		"alternative_index", alternativeIndex,
		"new_start", slot.Start,
	)
	return true, nil
}

func (o *ConflictOrchestrator) postRescheduleConfirmation(
	ctx context.Context,
	conversationID, conflictID string,
	event *domain.Event,
	slot domain.AlternativeSlot,
	userID uuid.UUID,
) {
	loc := time.UTC
	if tz, err := o.prefs.Timezone(ctx, userID); err == nil {
		if parsed, err := time.LoadLocation(tz); err == nil {
			loc = parsed
		}
	}

	confirmation := &domain.ConflictArtifact{
		ConflictID:     conflictID,
		ConversationID: conversationID,
		Kind:           domain.ArtifactRescheduled,
		Message: fmt.Sprintf("%q has been rescheduled to %s.",
			event.Title(), formatRange(slot.Range(), loc)),
		CreatedAt: time.Now().UTC(),
	}
	if err := o.artifacts.Save(ctx, confirmation); err != nil {
		o.logger.Warn("failed to persist confirmation artifact", "conflict_id", conflictID, "error", err)
	}
	if _, err := o.poster.Post(ctx, conversationID, confirmation); err != nil {
		o.logger.Warn("failed to post confirmation artifact", "conflict_id", conflictID, "error", err)
	}
}

// resolveConflictID reuses the session ID when the conflict concerns a
// persisted session (reschedule-in-place); otherwise it derives a
// deterministic composite ID so retried detections collapse together.
func (o *ConflictOrchestrator) resolveConflictID(ctx context.Context, proposed *domain.Event, conversationID string) string {
	if _, err := o.events.FindByID(ctx, proposed.ID()); err == nil {
		return proposed.ID().String()
	}
	return domain.CompositeConflictID(conversationID, proposed.StartTime())
}

// buildConflictMessage renders the user-facing warning in the requester's
// timezone, naming at most maxNamedConflicts colliding sessions.
func buildConflictMessage(title string, proposed domain.TimeRange, conflicts []domain.Conflict, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scheduling conflict: %q (%s) overlaps with ", title, formatRange(proposed, loc))

	named := len(conflicts)
	if named > maxNamedConflicts {
		named = maxNamedConflicts
	}
	parts := make([]string, 0, named)
	for _, c := range conflicts[:named] {
		parts = append(parts, fmt.Sprintf("%q (%s)", c.Title, formatRange(c.Range, loc)))
	}
	b.WriteString(strings.Join(parts, " and "))
	if rest := len(conflicts) - named; rest > 0 {
		fmt.Fprintf(&b, " and %d more", rest)
	}
	b.WriteString(".")
	return b.String()
}

func formatRange(r domain.TimeRange, loc *time.Location) string {
	return fmt.Sprintf("%s-%s",
		r.Start.In(loc).Format("Mon Jan 2, 15:04"),
		r.End.In(loc).Format("15:04"))
}
