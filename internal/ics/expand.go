package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"lanecal/internal/clock"
	appLog "lanecal/internal/log"
	"lanecal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// instanceNamespace seeds IDs of individual recurring instances.
var instanceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("lanecal:ics-instance"))

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// Clock fixes the zone occurrences are converted into.
	Clock *clock.Clock

	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE expansion. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the converted events and the UIDs whose expansion hit
// the cap.
type ExpandResult struct {
	Events          []model.RawEvent
	TruncatedEvents []string
}

// occurrence is one concrete instance before conversion.
type occurrence struct {
	ev         ParsedEvent
	start, end time.Time
	recurring  bool
}

// ToRawEvents expands parsed events (RRULE, EXDATE, RECURRENCE-ID overrides)
// inside the configured window and converts each occurrence into a RawEvent
// with one schedule entry per covered day. The output is ordered by start,
// then UID, so repeated imports are identical.
func ToRawEvents(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.Clock == nil {
		return result, errors.New("expand: clock is required")
	}
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID, keeping first-seen order.
	var uids []string
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	var occs []occurrence
	for _, uid := range uids {
		truncated := false
		for _, ev := range baseByUID[uid] {
			o, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			occs = append(occs, o...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: occurrences truncated", "uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	sort.SliceStable(occs, func(i, j int) bool {
		if !occs[i].start.Equal(occs[j].start) {
			return occs[i].start.Before(occs[j].start)
		}
		return occs[i].ev.UID < occs[j].ev.UID
	})

	result.Events = make([]model.RawEvent, 0, len(occs))
	for _, o := range occs {
		result.Events = append(result.Events, toRawEvent(o, cfg.Clock))
	}
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]occurrence, bool) {
	if ev.RawRRule == "" {
		if !timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		if o, ok := findOverrideForStart(overrides, ev.Start); ok {
			return []occurrence{{ev: o, start: o.Start, end: o.End}}, false
		}
		return []occurrence{{ev: ev, start: ev.Start, end: ev.End}}, false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	starts := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]occurrence, 0, len(starts))
	for _, s := range starts {
		occ := occurrence{ev: ev, start: s, end: s.Add(dur), recurring: true}
		if ev.AllDay {
			// Whole days keep their day count rather than a duration.
			days := ev.StartDate.DaysUntil(ev.EndDate)
			occ.end = s.AddDate(0, 0, days)
		}
		if o, ok := findOverrideForStart(overrides, s); ok {
			occ.ev, occ.start, occ.end = o, o.Start, o.End
		}
		out = append(out, occ)
	}
	return out, hitCap
}

// findOverrideForStart finds the override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// toRawEvent lays one occurrence out over the civil days it touches in the
// clock's zone. Timed occurrences get explicit per-day times: the first day
// starts at the real start, the last ends at the real end, and days between
// run 00:00-23:59. All-day occurrences leave the schedule empty.
func toRawEvent(o occurrence, clk *clock.Clock) model.RawEvent {
	ev := o.ev
	raw := model.RawEvent{
		ID:          ev.UID,
		SourceID:    ev.SourceID,
		Name:        ev.Summary,
		Organizer:   ev.Organizer,
		Description: ev.Description,
		Venue:       ev.Location,
		EventLink:   ev.URL,
		Categories:  categories(ev.Categories),
	}
	if o.recurring {
		raw.ID = uuid.NewSHA1(instanceNamespace, []byte(ev.UID+"|"+o.start.UTC().Format(time.RFC3339))).String()
	}

	if ev.AllDay {
		y, m, d := o.start.Date()
		raw.StartDate = clock.NewDate(y, m, d)
		ey, em, ed := o.end.Date()
		raw.TotalDays = raw.StartDate.DaysUntil(clock.NewDate(ey, em, ed))
		if raw.TotalDays < 1 {
			raw.TotalDays = 1
		}
		return raw
	}

	start := o.start.In(clk.Location())
	end := o.end.In(clk.Location())
	first := clk.DateOf(start)
	last := clk.DateOf(end)

	endTime := clock.TimeOfDay{Hour: end.Hour(), Minute: end.Minute()}
	// Ending exactly at midnight belongs to the previous day.
	if end.After(start) && endTime == clock.Midnight && last.After(first) {
		last = last.AddDays(-1)
		endTime = clock.LastMinute
	}

	raw.StartDate = first
	raw.TotalDays = first.DaysUntil(last) + 1
	raw.DailySchedule = make([]model.DaySchedule, raw.TotalDays)
	for i := range raw.DailySchedule {
		ds := model.DaySchedule{StartTime: clock.Midnight.String(), EndTime: clock.LastMinute.String()}
		if i == 0 {
			ds.StartTime = clock.TimeOfDay{Hour: start.Hour(), Minute: start.Minute()}.String()
		}
		if i == raw.TotalDays-1 {
			ds.EndTime = endTime.String()
		}
		raw.DailySchedule[i] = ds
	}
	return raw
}

func categories(names []string) []model.Category {
	if len(names) == 0 {
		return []model.Category{model.CategoryOther}
	}
	out := make([]model.Category, 0, len(names))
	for _, n := range names {
		out = append(out, model.ParseCategory(n))
	}
	return out
}

// timeRangesOverlap treats both ranges as closed intervals.
func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
