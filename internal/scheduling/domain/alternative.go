package domain

import (
	"time"
)

// AlternativeSlot is a proposed replacement range for a conflicting session.
// Slots are produced transiently by a generator and embedded into a
// ConflictArtifact when persisted.
type AlternativeSlot struct {
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
	Reason    string    `json:"reason"`
	Score     int       `json:"score"`
	DayType   DayType   `json:"day_type"`
	TimeOfDay TimeOfDay `json:"time_of_day"`
}

// Range returns the slot's time range.
func (s AlternativeSlot) Range() TimeRange {
	return TimeRange{Start: s.Start, End: s.End}
}

// Classify fills DayType and TimeOfDay from the slot's own start instant
// evaluated in loc, overriding whatever the generator claimed.
func (s *AlternativeSlot) Classify(loc *time.Location) {
	s.DayType = ClassifyDay(s.Start, loc)
	s.TimeOfDay = ClassifyTimeOfDay(s.Start, loc)
}
