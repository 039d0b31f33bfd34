package layout

import (
	"errors"
	"fmt"

	"lanecal/internal/clock"
	appLog "lanecal/internal/log"
	"lanecal/internal/model"
)

var ErrInvalidEventSpan = errors.New("invalid event span")

// MaxDays is the longest event span laid out; longer ones are rejected.
const MaxDays = 366

// DefaultTimes is the fallback used for any day whose schedule entry lacks a
// start or end time. It is the single default for the whole pipeline.
type DefaultTimes struct {
	Start clock.TimeOfDay
	End   clock.TimeOfDay
}

// AllDay is the default policy: an unscheduled day spans the whole day.
var AllDay = DefaultTimes{Start: clock.Midnight, End: clock.LastMinute}

// Issue records why an event was left out of the layout.
type Issue struct {
	EventID   string
	EventName string
	Err       error
}

func (i Issue) Error() string {
	return fmt.Sprintf("event %q (%s): %v", i.EventName, i.EventID, i.Err)
}

func (i Issue) Unwrap() error {
	return i.Err
}

// dayTimes is a resolved schedule entry before overnight handling.
type dayTimes struct {
	start, end       clock.TimeOfDay
	hasStart, hasEnd bool
}

// Normalize splits one event into TotalDays segments, one per covered day.
// TotalDays drives iteration; DailySchedule only overrides per-day times.
func Normalize(clk *clock.Clock, ev model.RawEvent, defaults DefaultTimes) ([]Segment, error) {
	if ev.TotalDays < 1 || ev.TotalDays > MaxDays {
		return nil, fmt.Errorf("%w: total days %d", ErrInvalidEventSpan, ev.TotalDays)
	}
	if ev.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: missing start date", clock.ErrInvalidDateFormat)
	}
	if len(ev.DailySchedule) > ev.TotalDays {
		appLog.Warn("schedule entries beyond total days ignored",
			"id", ev.ID, "total_days", ev.TotalDays, "entries", len(ev.DailySchedule))
	}

	days := make([]dayTimes, ev.TotalDays)
	for i := range days {
		dt, err := resolveDay(ev.Schedule(i), defaults)
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", i+1, err)
		}
		days[i] = dt
	}

	src := ev
	segs := make([]Segment, ev.TotalDays)
	var carry *clock.TimeOfDay

	for i, dt := range days {
		// An overnight session continues on an unscheduled following day.
		if carry != nil && !dt.hasStart && !dt.hasEnd {
			dt = dayTimes{start: clock.Midnight, end: *carry, hasStart: true, hasEnd: true}
		}
		carry = nil

		seg := Segment{
			Event:      &src,
			Date:       ev.StartDate.AddDays(i),
			DayIndex:   i + 1,
			TotalDays:  ev.TotalDays,
			StartTime:  dt.start,
			EndTime:    dt.end,
			NominalEnd: dt.end,
			Column:     Unassigned,
		}
		if dt.end.Before(dt.start) {
			seg.CrossesMidnight = true
			seg.EndTime = clock.LastMinute
			nominal := dt.end
			carry = &nominal
		}
		seg.Start = clk.At(seg.Date, seg.StartTime)
		seg.End = clk.At(seg.Date, seg.EndTime)
		segs[i] = seg
	}

	// A day explicitly scheduled to 23:59 followed by one explicitly starting
	// at 00:00 is a single session split at midnight.
	for i := 0; i+1 < len(segs); i++ {
		if segs[i].CrossesMidnight {
			continue
		}
		if days[i].hasEnd && days[i].end == clock.LastMinute &&
			days[i+1].hasStart && days[i+1].start == clock.Midnight {
			segs[i].CrossesMidnight = true
		}
	}

	return segs, nil
}

func resolveDay(s model.DaySchedule, defaults DefaultTimes) (dayTimes, error) {
	dt := dayTimes{start: defaults.Start, end: defaults.End}
	if s.StartTime != "" {
		t, err := clock.ParseTimeOfDay(s.StartTime)
		if err != nil {
			return dayTimes{}, fmt.Errorf("start: %w", err)
		}
		dt.start, dt.hasStart = t, true
	}
	if s.EndTime != "" {
		t, err := clock.ParseTimeOfDay(s.EndTime)
		if err != nil {
			return dayTimes{}, fmt.Errorf("end: %w", err)
		}
		dt.end, dt.hasEnd = t, true
	}
	return dt, nil
}

// NormalizeAll normalizes every event, skipping the ones that fail. The
// returned segments keep input order: event by event, day by day.
func NormalizeAll(clk *clock.Clock, events []model.RawEvent, defaults DefaultTimes) ([]Segment, []Issue) {
	segs := make([]Segment, 0, len(events))
	var issues []Issue

	for _, ev := range events {
		s, err := Normalize(clk, ev, defaults)
		if err != nil {
			appLog.Warn("event skipped", "id", ev.ID, "name", ev.Name, "reason", err.Error())
			issues = append(issues, Issue{EventID: ev.ID, EventName: ev.Name, Err: err})
			continue
		}
		segs = append(segs, s...)
	}
	return segs, issues
}
