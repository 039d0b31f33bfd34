package layout

import (
	"lanecal/internal/clock"
	appLog "lanecal/internal/log"
	"lanecal/internal/model"
)

// DateRange is an inclusive window of civil dates. A zero bound is open.
type DateRange struct {
	From clock.Date
	To   clock.Date
}

// Contains reports whether d lies inside the window.
func (r DateRange) Contains(d clock.Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

// Options configures Compute.
type Options struct {
	// Clock fixes the zone for instants. Nil uses clock.DefaultZone.
	Clock *clock.Clock
	// Defaults fills missing schedule times. The zero value means AllDay.
	Defaults DefaultTimes
	// Window drops segments outside it. The zero value keeps everything.
	Window DateRange
}

// Layout is the positioned, ordered result of one computation.
type Layout struct {
	Segments  []Segment
	MaxColumn int
	Issues    []Issue
}

// Day is the segments of one date in display order.
type Day struct {
	Date      clock.Date
	Segments  []Segment
	MaxColumn int
}

// Compute runs normalize, sequence and pack over events. It is deterministic:
// the same input always yields the same order and columns.
func Compute(events []model.RawEvent, opts Options) Layout {
	clk := opts.Clock
	if clk == nil {
		c, err := clock.New(clock.DefaultZone)
		if err != nil {
			appLog.Error("default zone unavailable; using UTC", err)
			c = clock.NewWithLocation(nil)
		}
		clk = c
	}
	defaults := opts.Defaults
	if defaults == (DefaultTimes{}) {
		defaults = AllDay
	}

	segs, issues := NormalizeAll(clk, events, defaults)

	if opts.Window != (DateRange{}) {
		kept := segs[:0]
		for _, s := range segs {
			if opts.Window.Contains(s.Date) {
				kept = append(kept, s)
			}
		}
		segs = kept
	}

	Sequence(segs)
	maxColumn := AssignColumns(segs)

	appLog.Debug("layout computed",
		"events", len(events), "segments", len(segs), "max_column", maxColumn, "issues", len(issues))

	return Layout{Segments: segs, MaxColumn: maxColumn, Issues: issues}
}

// Days groups the segments by date, keeping their order.
func (l Layout) Days() []Day {
	return GroupByDay(l.Segments)
}

// ByDate maps "YYYY-MM-DD" to that date's segments in order.
func (l Layout) ByDate() map[string][]Segment {
	out := make(map[string][]Segment)
	for _, s := range l.Segments {
		key := s.Date.String()
		out[key] = append(out[key], s)
	}
	return out
}

// GroupByDay collects segments into days in order of first appearance, which
// for sequenced input is ascending date order.
func GroupByDay(segs []Segment) []Day {
	var days []Day
	index := make(map[clock.Date]int)
	for _, s := range segs {
		i, ok := index[s.Date]
		if !ok {
			i = len(days)
			index[s.Date] = i
			days = append(days, Day{Date: s.Date, MaxColumn: -1})
		}
		days[i].Segments = append(days[i].Segments, s)
		if s.Column > days[i].MaxColumn {
			days[i].MaxColumn = s.Column
		}
	}
	return days
}
