// Package layout turns raw events into per-day segments placed in
// non-overlapping columns, ordered for a day-grouped timeline.
package layout

import (
	"fmt"
	"time"

	"lanecal/internal/clock"
	"lanecal/internal/model"
)

// Unassigned is the column of a segment the packer has not placed yet.
const Unassigned = -1

// Segment is one calendar-day slice of an event.
type Segment struct {
	// Event is shared by all segments of the same source event.
	Event *model.RawEvent

	Date      clock.Date
	DayIndex  int // 1-based
	TotalDays int

	// StartTime and EndTime are the effective times used for layout.
	StartTime clock.TimeOfDay
	EndTime   clock.TimeOfDay
	// NominalEnd is the end time before the overnight clamp to 23:59.
	NominalEnd clock.TimeOfDay
	// CrossesMidnight marks a segment whose activity continues into the
	// next calendar day.
	CrossesMidnight bool

	// Start and End are the absolute instants of the effective times.
	Start time.Time
	End   time.Time

	Column int
}

// IsMultiDay reports whether the source event spans more than one day.
func (s Segment) IsMultiDay() bool {
	return s.TotalDays > 1
}

// DayLabel is "Day 2/3" for multi-day events and empty otherwise.
func (s Segment) DayLabel() string {
	if !s.IsMultiDay() {
		return ""
	}
	return fmt.Sprintf("Day %d/%d", s.DayIndex, s.TotalDays)
}

// Duration of the effective interval.
func (s Segment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

func (s Segment) String() string {
	name := ""
	if s.Event != nil {
		name = s.Event.Name
	}
	return fmt.Sprintf("%s %s-%s %q col=%d", s.Date, s.StartTime, s.EndTime, name, s.Column)
}
