package domain

import (
	"time"
)

// HourRange is an allowed scheduling window within a day, expressed as
// minutes from local midnight. End is exclusive.
type HourRange struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// Contains reports whether the local clock time of t falls inside the range.
func (h HourRange) Contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	return minute >= h.StartMinute && minute < h.EndMinute
}

// WeeklyHours is a per-weekday set of allowed scheduling windows.
type WeeklyHours map[time.Weekday][]HourRange

// DefaultWeeklyHours returns 09:00-17:00 Monday through Friday, used when a
// user has no stored preference.
func DefaultWeeklyHours() WeeklyHours {
	hours := make(WeeklyHours, 5)
	for day := time.Monday; day <= time.Friday; day++ {
		hours[day] = []HourRange{{StartMinute: 9 * 60, EndMinute: 17 * 60}}
	}
	return hours
}

// Covers reports whether the instant, evaluated in loc, falls inside one of
// the allowed windows for its weekday.
func (w WeeklyHours) Covers(instant time.Time, loc *time.Location) bool {
	local := instant.In(loc)
	for _, r := range w[local.Weekday()] {
		if r.Contains(local) {
			return true
		}
	}
	return false
}

// CoversEnd reports whether instant can serve as a slot end. Window ends
// are inclusive for slot endpoints: a slot may finish exactly when the
// window closes.
func (w WeeklyHours) CoversEnd(instant time.Time, loc *time.Location) bool {
	local := instant.In(loc)
	minute := local.Hour()*60 + local.Minute()
	for _, r := range w[local.Weekday()] {
		if minute > r.StartMinute && minute <= r.EndMinute {
			return true
		}
	}
	return false
}

// IsEmpty reports whether no windows are configured at all.
func (w WeeklyHours) IsEmpty() bool {
	for _, ranges := range w {
		if len(ranges) > 0 {
			return false
		}
	}
	return true
}
