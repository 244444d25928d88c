package domain

import (
	"time"
)

// TimeRange represents a time period with UTC start and end instants.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange creates a time range, rejecting end <= start.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if !end.After(start) {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Start: start, End: end}, nil
}

// IsZero returns true for a zero-duration range. Zero-duration ranges act
// as sentinels and never participate in conflict detection.
func (t TimeRange) IsZero() bool {
	return !t.Start.Before(t.End)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// Overlaps checks if two time ranges truly overlap. Back-to-back ranges
// (one's end equals the other's start) do not overlap, and zero-duration
// ranges never overlap anything.
func (t TimeRange) Overlaps(other TimeRange) bool {
	if t.IsZero() || other.IsZero() {
		return false
	}
	return t.Start.Before(other.End) && other.Start.Before(t.End)
}

// OverlapsWithBuffer expands both ranges symmetrically by buffer before
// comparing. Used during alternative validation only; primary conflict
// detection uses zero buffer so exact back-to-back bookings stay legal.
func (t TimeRange) OverlapsWithBuffer(other TimeRange, buffer time.Duration) bool {
	if t.IsZero() || other.IsZero() {
		return false
	}
	a := TimeRange{Start: t.Start.Add(-buffer), End: t.End.Add(buffer)}
	b := TimeRange{Start: other.Start.Add(-buffer), End: other.End.Add(buffer)}
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// OverlapDuration returns how long two ranges overlap, zero when they don't.
func (t TimeRange) OverlapDuration(other TimeRange) time.Duration {
	if !t.Overlaps(other) {
		return 0
	}
	start := t.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := t.End
	if other.End.Before(end) {
		end = other.End
	}
	return end.Sub(start)
}

// In returns the range shifted into the given location for display.
func (t TimeRange) In(loc *time.Location) TimeRange {
	return TimeRange{Start: t.Start.In(loc), End: t.End.In(loc)}
}

// DayType classifies a slot's date.
type DayType string

const (
	DayTypeWeekday DayType = "weekday"
	DayTypeWeekend DayType = "weekend"
)

// TimeOfDay classifies a slot's starting hour.
type TimeOfDay string

const (
	TimeOfDayMorning   TimeOfDay = "morning"
	TimeOfDayMidday    TimeOfDay = "midday"
	TimeOfDayAfternoon TimeOfDay = "afternoon"
	TimeOfDayEvening   TimeOfDay = "evening"
)

// ClassifyDay returns the day type of t evaluated in loc.
func ClassifyDay(t time.Time, loc *time.Location) DayType {
	switch t.In(loc).Weekday() {
	case time.Saturday, time.Sunday:
		return DayTypeWeekend
	default:
		return DayTypeWeekday
	}
}

// ClassifyTimeOfDay returns the time-of-day bucket of t evaluated in loc.
// Buckets: morning [05:00,12:00), midday [12:00,14:00),
// afternoon [14:00,18:00), evening otherwise.
func ClassifyTimeOfDay(t time.Time, loc *time.Location) TimeOfDay {
	hour := t.In(loc).Hour()
	switch {
	case hour >= 5 && hour < 12:
		return TimeOfDayMorning
	case hour >= 12 && hour < 14:
		return TimeOfDayMidday
	case hour >= 14 && hour < 18:
		return TimeOfDayAfternoon
	default:
		return TimeOfDayEvening
	}
}
