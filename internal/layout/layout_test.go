package layout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanecal/internal/clock"
	"lanecal/internal/layout"
	"lanecal/internal/model"
)

func festival() []model.RawEvent {
	return []model.RawEvent{
		event("conference", june7.AddDays(1), 2, day("09:00", "18:00"), day("09:00", "17:00")),
		event("rave", june7, 3, day("20:00", "23:59"), day("00:00", "02:00"), day("10:00", "17:00")),
		event("breakfast", june7.AddDays(1), 1, day("08:00", "10:00")),
		event("broken", june7, 0),
		event("afterparty", june7.AddDays(1), 1, day("17:30", "23:00")),
	}
}

func TestComputePipeline(t *testing.T) {
	l := layout.Compute(festival(), layout.Options{Clock: testClock})

	assert.Equal(t, []string{
		"rave",
		"rave", "breakfast", "conference", "afterparty",
		"conference", "rave",
	}, names(l.Segments))

	// June 8: rave 00-02 col 0, breakfast 08-10 col 0, conference 09-18 col 1,
	// afterparty 17:30-23 overlaps conference only, so col 0.
	assert.Equal(t, []int{0, 0, 0, 1, 0, 0, 1}, columns(l.Segments))
	assert.Equal(t, 1, l.MaxColumn)

	require.Len(t, l.Issues, 1)
	assert.ErrorIs(t, l.Issues[0], layout.ErrInvalidEventSpan)
}

func TestComputeIsIdempotent(t *testing.T) {
	first := layout.Compute(festival(), layout.Options{Clock: testClock})
	second := layout.Compute(festival(), layout.Options{Clock: testClock})

	assert.Equal(t, names(first.Segments), names(second.Segments))
	assert.Equal(t, columns(first.Segments), columns(second.Segments))
	assert.Equal(t, first.Segments, second.Segments)
	assert.Equal(t, first.MaxColumn, second.MaxColumn)
}

func TestComputeDays(t *testing.T) {
	l := layout.Compute(festival(), layout.Options{Clock: testClock})

	days := l.Days()
	require.Len(t, days, 3)
	assert.Equal(t, june7, days[0].Date)
	assert.Equal(t, 0, days[0].MaxColumn)
	assert.Equal(t, []string{"rave", "breakfast", "conference", "afterparty"}, names(days[1].Segments))
	assert.Equal(t, 1, days[1].MaxColumn)

	byDate := l.ByDate()
	assert.Len(t, byDate, 3)
	assert.Equal(t, []string{"conference", "rave"}, names(byDate["2025-06-09"]))
}

func TestComputeWindow(t *testing.T) {
	l := layout.Compute(festival(), layout.Options{
		Clock:  testClock,
		Window: layout.DateRange{From: june7.AddDays(1), To: june7.AddDays(1)},
	})

	for _, s := range l.Segments {
		assert.Equal(t, june7.AddDays(1), s.Date)
	}
	assert.Len(t, l.Segments, 4)
}

func TestComputeBusinessDefaults(t *testing.T) {
	opts := layout.Options{
		Clock:    testClock,
		Defaults: layout.DefaultTimes{Start: clock.MustTimeOfDay("09:00"), End: clock.MustTimeOfDay("17:00")},
	}
	l := layout.Compute([]model.RawEvent{event("expo", june7, 1)}, opts)

	require.Len(t, l.Segments, 1)
	assert.Equal(t, "09:00", l.Segments[0].StartTime.String())
	assert.Equal(t, "17:00", l.Segments[0].EndTime.String())
}

func TestComputeEmpty(t *testing.T) {
	l := layout.Compute(nil, layout.Options{})

	assert.Empty(t, l.Segments)
	assert.Equal(t, -1, l.MaxColumn)
	assert.Empty(t, l.Days())
}

func TestDateRange(t *testing.T) {
	r := layout.DateRange{From: june7}
	assert.False(t, r.Contains(june7.AddDays(-1)))
	assert.True(t, r.Contains(june7.AddDays(100)))
	assert.True(t, layout.DateRange{}.Contains(june7))
}
