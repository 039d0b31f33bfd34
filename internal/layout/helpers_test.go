package layout_test

import (
	"time"

	"lanecal/internal/clock"
	"lanecal/internal/layout"
	"lanecal/internal/model"
)

var (
	testClock = mustClock()
	june7     = clock.NewDate(2025, time.June, 7)
)

func mustClock() *clock.Clock {
	c, err := clock.New("Europe/Berlin")
	if err != nil {
		panic(err)
	}
	return c
}

// seg builds a single positioned-ready segment without going through Normalize.
func seg(name string, date clock.Date, start, end string) layout.Segment {
	st := clock.MustTimeOfDay(start)
	en := clock.MustTimeOfDay(end)
	return layout.Segment{
		Event:      &model.RawEvent{ID: name, Name: name},
		Date:       date,
		DayIndex:   1,
		TotalDays:  1,
		StartTime:  st,
		EndTime:    en,
		NominalEnd: en,
		Start:      testClock.At(date, st),
		End:        testClock.At(date, en),
		Column:     layout.Unassigned,
	}
}

func event(name string, start clock.Date, days int, schedule ...model.DaySchedule) model.RawEvent {
	return model.RawEvent{
		ID:            name,
		Name:          name,
		StartDate:     start,
		TotalDays:     days,
		DailySchedule: schedule,
		Categories:    []model.Category{model.CategoryOther},
	}
}

func day(start, end string) model.DaySchedule {
	return model.DaySchedule{StartTime: start, EndTime: end}
}

func names(segs []layout.Segment) []string {
	out := make([]string, len(segs))
	for i, s := range segs {
		out[i] = s.Event.Name
	}
	return out
}
