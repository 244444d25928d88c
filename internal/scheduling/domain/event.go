// Package domain contains the scheduling core: session aggregates, time
// range algebra, working hours, conflicts, and alternative slots.
package domain

import (
	"time"

	sharedDomain "github.com/tutorloop/tutorloop/internal/shared/domain"
	"github.com/google/uuid"
)

// Status is the RSVP-derived lifecycle state of a session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusDeclined  Status = "declined"
)

// RSVPResponse is a participant's answer to a session proposal.
type RSVPResponse string

const (
	RSVPAccept  RSVPResponse = "accept"
	RSVPDecline RSVPResponse = "decline"
)

// RSVP records one participant's response.
type RSVP struct {
	Response    RSVPResponse `json:"response"`
	RespondedAt time.Time    `json:"responded_at"`
}

// Event is a proposed or booked tutoring session. Status is always derived
// from the recorded RSVPs, never counted incrementally.
type Event struct {
	sharedDomain.BaseEntity
	title          string
	startTime      time.Time
	endTime        time.Time
	participants   []uuid.UUID
	createdBy      uuid.UUID
	status         Status
	rsvps          map[uuid.UUID]RSVP
	conversationID string
	hasConflict    bool
}

// NewEvent creates a session proposal. Start and end must form a valid
// range and at least one participant is required.
func NewEvent(
	title string,
	startTime, endTime time.Time,
	participants []uuid.UUID,
	createdBy uuid.UUID,
	conversationID string,
) (*Event, error) {
	if !endTime.After(startTime) {
		return nil, ErrInvalidTimeRange
	}
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	return &Event{
		BaseEntity:     sharedDomain.NewBaseEntity(),
		title:          title,
		startTime:      startTime.UTC(),
		endTime:        endTime.UTC(),
		participants:   append([]uuid.UUID(nil), participants...),
		createdBy:      createdBy,
		status:         StatusPending,
		rsvps:          make(map[uuid.UUID]RSVP),
		conversationID: conversationID,
	}, nil
}

func (e *Event) Title() string          { return e.title }
func (e *Event) StartTime() time.Time   { return e.startTime }
func (e *Event) EndTime() time.Time     { return e.endTime }
func (e *Event) CreatedBy() uuid.UUID   { return e.createdBy }
func (e *Event) Status() Status         { return e.status }
func (e *Event) ConversationID() string { return e.conversationID }
func (e *Event) HasConflict() bool      { return e.hasConflict }

// Participants returns a copy of the participant set.
func (e *Event) Participants() []uuid.UUID {
	return append([]uuid.UUID(nil), e.participants...)
}

// RSVPs returns a copy of the recorded responses.
func (e *Event) RSVPs() map[uuid.UUID]RSVP {
	out := make(map[uuid.UUID]RSVP, len(e.rsvps))
	for k, v := range e.rsvps {
		out[k] = v
	}
	return out
}

// Range returns the session's time range.
func (e *Event) Range() TimeRange {
	return TimeRange{Start: e.startTime, End: e.endTime}
}

// Block returns the read-only schedule projection of this session.
func (e *Event) Block() ScheduleBlock {
	return ScheduleBlock{Start: e.startTime, End: e.endTime, Title: e.title}
}

// Duration returns the session length.
func (e *Event) Duration() time.Duration {
	return e.endTime.Sub(e.startTime)
}

// HasParticipant reports whether the user takes part in this session.
func (e *Event) HasParticipant(userID uuid.UUID) bool {
	for _, p := range e.participants {
		if p == userID {
			return true
		}
	}
	return false
}

// RecordRSVP stores a participant response and recomputes the status.
func (e *Event) RecordRSVP(userID uuid.UUID, response RSVPResponse) error {
	if !e.HasParticipant(userID) {
		return ErrNotParticipant
	}
	e.rsvps[userID] = RSVP{Response: response, RespondedAt: time.Now().UTC()}
	e.recomputeStatus()
	e.Touch()
	return nil
}

// recomputeStatus derives the status from scratch on every change: declined
// if anyone declined, confirmed once every participant except the creator
// accepted, otherwise pending.
func (e *Event) recomputeStatus() {
	for _, rsvp := range e.rsvps {
		if rsvp.Response == RSVPDecline {
			e.status = StatusDeclined
			return
		}
	}

	accepted := 0
	required := 0
	for _, p := range e.participants {
		if p == e.createdBy {
			continue
		}
		required++
		if rsvp, ok := e.rsvps[p]; ok && rsvp.Response == RSVPAccept {
			accepted++
		}
	}
	if required > 0 && accepted == required {
		e.status = StatusConfirmed
		return
	}
	e.status = StatusPending
}

// UnrespondedParticipants returns participants (creator excluded) without a
// recorded response.
func (e *Event) UnrespondedParticipants() []uuid.UUID {
	var missing []uuid.UUID
	for _, p := range e.participants {
		if p == e.createdBy {
			continue
		}
		if _, ok := e.rsvps[p]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

// Reschedule moves the session to a new range and clears the conflict flag.
func (e *Event) Reschedule(newStart, newEnd time.Time) error {
	if !newEnd.After(newStart) {
		return ErrInvalidTimeRange
	}
	e.startTime = newStart.UTC()
	e.endTime = newEnd.UTC()
	e.hasConflict = false
	e.Touch()
	return nil
}

// Retitle updates the session title.
func (e *Event) Retitle(title string) {
	e.title = title
	e.Touch()
}

// FlagConflict marks the session as part of an unresolved conflict.
func (e *Event) FlagConflict() {
	e.hasConflict = true
	e.Touch()
}

// RehydrateEvent recreates a session from persisted state.
func RehydrateEvent(
	id uuid.UUID,
	title string,
	startTime, endTime time.Time,
	participants []uuid.UUID,
	createdBy uuid.UUID,
	status Status,
	rsvps map[uuid.UUID]RSVP,
	conversationID string,
	hasConflict bool,
	createdAt, updatedAt time.Time,
) *Event {
	if rsvps == nil {
		rsvps = make(map[uuid.UUID]RSVP)
	}
	return &Event{
		BaseEntity:     sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		title:          title,
		startTime:      startTime,
		endTime:        endTime,
		participants:   participants,
		createdBy:      createdBy,
		status:         status,
		rsvps:          rsvps,
		conversationID: conversationID,
		hasConflict:    hasConflict,
	}
}

// ScheduleBlock is a read-only projection of a session used for overlap
// checks. It is never mutated.
type ScheduleBlock struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Title string    `json:"title"`
}

// Range returns the block's time range.
func (b ScheduleBlock) Range() TimeRange {
	return TimeRange{Start: b.Start, End: b.End}
}
