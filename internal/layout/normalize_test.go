package layout_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanecal/internal/clock"
	"lanecal/internal/layout"
	"lanecal/internal/model"
)

func TestNormalizeOvernightFestival(t *testing.T) {
	ev := event("rave", june7, 3, day("20:00", "23:59"), day("00:00", "02:00"), day("10:00", "17:00"))

	segs, err := layout.Normalize(testClock, ev, layout.AllDay)
	require.NoError(t, err)
	require.Len(t, segs, 3)

	assert.Equal(t, june7, segs[0].Date)
	assert.Equal(t, clock.NewDate(2025, time.June, 8), segs[1].Date)
	assert.Equal(t, clock.NewDate(2025, time.June, 9), segs[2].Date)

	assert.True(t, segs[0].CrossesMidnight)
	assert.False(t, segs[1].CrossesMidnight)
	assert.False(t, segs[2].CrossesMidnight)

	for i, s := range segs {
		assert.Equal(t, i+1, s.DayIndex)
		assert.Equal(t, 3, s.TotalDays)
		assert.Equal(t, layout.Unassigned, s.Column)
		assert.Same(t, segs[0].Event, s.Event)
	}
	assert.Equal(t, "Day 2/3", segs[1].DayLabel())
}

func TestNormalizeConsecutiveDates(t *testing.T) {
	ev := event("summit", clock.NewDate(2025, time.June, 29), 4)

	segs, err := layout.Normalize(testClock, ev, layout.AllDay)
	require.NoError(t, err)
	require.Len(t, segs, ev.TotalDays)

	for i, s := range segs {
		assert.Equal(t, ev.StartDate.AddDays(i), s.Date)
		assert.Equal(t, clock.Midnight, s.StartTime)
		assert.Equal(t, clock.LastMinute, s.EndTime)
		assert.False(t, s.CrossesMidnight, "all-day defaults are not overnight sessions")
	}
	assert.Equal(t, clock.NewDate(2025, time.July, 2), segs[3].Date)
}

func TestNormalizeReversedTimesClampToEndOfDay(t *testing.T) {
	ev := event("party", june7, 2, day("22:00", "02:00"))

	segs, err := layout.Normalize(testClock, ev, layout.AllDay)
	require.NoError(t, err)
	require.Len(t, segs, 2)

	assert.True(t, segs[0].CrossesMidnight)
	assert.Equal(t, "23:59", segs[0].EndTime.String())
	assert.Equal(t, "02:00", segs[0].NominalEnd.String())
	assert.Positive(t, segs[0].Duration())

	// The unscheduled second day carries the rest of the night.
	assert.Equal(t, "00:00", segs[1].StartTime.String())
	assert.Equal(t, "02:00", segs[1].EndTime.String())
	assert.False(t, segs[1].CrossesMidnight)
}

func TestNormalizeReversedTimesKeepExplicitNextDay(t *testing.T) {
	ev := event("party", june7, 3, day("22:00", "02:00"), day("21:00", "01:00"), day("10:00", "12:00"))

	segs, err := layout.Normalize(testClock, ev, layout.AllDay)
	require.NoError(t, err)

	assert.True(t, segs[0].CrossesMidnight)
	assert.Equal(t, "21:00", segs[1].StartTime.String())
	assert.Equal(t, "23:59", segs[1].EndTime.String())
	assert.True(t, segs[1].CrossesMidnight)
	assert.Equal(t, "10:00", segs[2].StartTime.String())
}

func TestNormalizeSingleDayOvernight(t *testing.T) {
	segs, err := layout.Normalize(testClock, event("late", june7, 1, day("22:00", "03:00")), layout.AllDay)
	require.NoError(t, err)
	require.Len(t, segs, 1)

	assert.True(t, segs[0].CrossesMidnight)
	assert.Equal(t, clock.LastMinute, segs[0].EndTime)
}

func TestNormalizeDefaults(t *testing.T) {
	business := layout.DefaultTimes{Start: clock.MustTimeOfDay("09:00"), End: clock.MustTimeOfDay("17:00")}
	ev := event("expo", june7, 3, model.DaySchedule{StartTime: "10:00"}, model.DaySchedule{})

	segs, err := layout.Normalize(testClock, ev, business)
	require.NoError(t, err)

	assert.Equal(t, "10:00-17:00", segs[0].StartTime.String()+"-"+segs[0].EndTime.String())
	assert.Equal(t, "09:00-17:00", segs[1].StartTime.String()+"-"+segs[1].EndTime.String())
	assert.Equal(t, "09:00-17:00", segs[2].StartTime.String()+"-"+segs[2].EndTime.String())
}

func TestNormalizeIgnoresSurplusSchedule(t *testing.T) {
	ev := event("meetup", june7, 1, day("18:00", "20:00"), day("18:00", "20:00"), day("18:00", "20:00"))

	segs, err := layout.Normalize(testClock, ev, layout.AllDay)
	require.NoError(t, err)
	assert.Len(t, segs, 1)
}

func TestNormalizeKeepsWallTimeAcrossDST(t *testing.T) {
	ev := event("hack", clock.NewDate(2025, time.March, 29), 3,
		day("10:00", "12:00"), day("10:00", "12:00"), day("10:00", "12:00"))

	segs, err := layout.Normalize(testClock, ev, layout.AllDay)
	require.NoError(t, err)

	for _, s := range segs {
		assert.Equal(t, 10, s.Start.Hour())
		assert.Equal(t, 2*time.Hour, s.Duration())
	}
	assert.Equal(t, clock.NewDate(2025, time.March, 31), segs[2].Date)
}

func TestNormalizeErrors(t *testing.T) {
	_, err := layout.Normalize(testClock, event("none", june7, 0), layout.AllDay)
	assert.ErrorIs(t, err, layout.ErrInvalidEventSpan)

	_, err = layout.Normalize(testClock, event("neg", june7, -2), layout.AllDay)
	assert.ErrorIs(t, err, layout.ErrInvalidEventSpan)

	_, err = layout.Normalize(testClock, event("bad", june7, 2, day("10:00", "12:00"), day("25:00", "26:00")), layout.AllDay)
	assert.ErrorIs(t, err, clock.ErrInvalidTimeFormat)
	assert.Contains(t, err.Error(), "day 2")

	_, err = layout.Normalize(testClock, event("nodate", clock.Date{}, 1), layout.AllDay)
	assert.ErrorIs(t, err, clock.ErrInvalidDateFormat)
}

func TestNormalizeAllIsolatesFailures(t *testing.T) {
	events := []model.RawEvent{
		event("first", june7, 2),
		event("broken", june7, 1, day("noon", "13:00")),
		event("last", june7, 1, day("18:00", "19:00")),
	}

	segs, issues := layout.NormalizeAll(testClock, events, layout.AllDay)

	assert.Equal(t, []string{"first", "first", "last"}, names(segs))
	require.Len(t, issues, 1)
	assert.Equal(t, "broken", issues[0].EventID)
	assert.ErrorIs(t, issues[0], clock.ErrInvalidTimeFormat)
	assert.Contains(t, issues[0].Error(), `"broken"`)
}

func TestNormalizeRejectsSpanBeyondMaxDays(t *testing.T) {
	_, err := layout.Normalize(testClock, event("year", june7, layout.MaxDays), layout.AllDay)
	assert.NoError(t, err)

	_, err = layout.Normalize(testClock, event("long", june7, layout.MaxDays+1), layout.AllDay)
	assert.ErrorIs(t, err, layout.ErrInvalidEventSpan)
}

func TestComputeSkipsHugeSpan(t *testing.T) {
	events := []model.RawEvent{
		event("ok", june7, 1),
		event("huge", june7, math.MaxInt),
		event("after", june7, 1, day("18:00", "19:00")),
	}

	l := layout.Compute(events, layout.Options{Clock: testClock})

	assert.Equal(t, []string{"ok", "after"}, names(l.Segments))
	require.Len(t, l.Issues, 1)
	assert.Equal(t, "huge", l.Issues[0].EventID)
	assert.ErrorIs(t, l.Issues[0], layout.ErrInvalidEventSpan)
}

func TestNormalizeSameHourReversalCrossesMidnight(t *testing.T) {
	segs, err := layout.Normalize(testClock, event("late", june7, 1, day("23:30", "23:10")), layout.AllDay)
	require.NoError(t, err)
	require.Len(t, segs, 1)

	assert.True(t, segs[0].CrossesMidnight)
	assert.Equal(t, clock.LastMinute, segs[0].EndTime)
	assert.Equal(t, "23:10", segs[0].NominalEnd.String())
}
