// Package clock performs all date arithmetic in one fixed civil timezone,
// independent of the host's local zone, so day boundaries are stable.
package clock

import (
	"errors"
	"fmt"
	"strings"
	"time"

	// Embedded zone database so the fixed zone resolves on hosts without tzdata.
	_ "time/tzdata"
)

// DefaultZone is the civil timezone used when none is configured.
const DefaultZone = "Europe/Berlin"

var (
	ErrInvalidDateFormat = errors.New("invalid date format")
	ErrInvalidTimeFormat = errors.New("invalid time format")
)

// layoutsWithoutZone are interpreted as wall-clock values in the clock's zone.
var layoutsWithoutZone = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// Clock anchors every instant to a single location.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Clock for the given IANA zone name. An empty name selects
// DefaultZone.
func New(zone string) (*Clock, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("clock: load zone %q: %w", zone, err)
	}
	return NewWithLocation(loc), nil
}

// NewWithLocation wraps an already resolved location.
func NewWithLocation(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: time.Now}
}

// WithNow returns a copy of c whose Now reports fn() instead of the wall clock.
func (c *Clock) WithNow(fn func() time.Time) *Clock {
	cp := *c
	cp.now = fn
	return &cp
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the clock's zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today is the civil date of Now.
func (c *Clock) Today() Date {
	return c.DateOf(c.Now())
}

// Parse reads an ISO date or date-time. Values carrying an offset (RFC 3339)
// are converted into the clock's zone; values without one are taken as wall
// time in that zone.
func (c *Clock) Parse(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDateFormat)
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.In(c.loc), nil
	}
	for _, layout := range layoutsWithoutZone {
		if t, err := time.ParseInLocation(layout, v, c.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
}

// ParseDate parses s like Parse and returns the civil date it falls on.
func (c *Clock) ParseDate(s string) (Date, error) {
	t, err := c.Parse(s)
	if err != nil {
		return Date{}, err
	}
	return c.DateOf(t), nil
}

// AddDays moves t by n civil days, keeping its wall-clock time of day.
// Across a DST change the elapsed duration is 23h or 25h per day, not 24h.
func (c *Clock) AddDays(t time.Time, n int) time.Time {
	return t.In(c.loc).AddDate(0, 0, n)
}

// DateOf returns the civil date of t in the clock's zone.
func (c *Clock) DateOf(t time.Time) Date {
	y, m, d := t.In(c.loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// At builds the instant for date d at wall time tod.
func (c *Clock) At(d Date, tod TimeOfDay) time.Time {
	return time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, 0, 0, c.loc)
}

// StartOfDay is At(d, Midnight).
func (c *Clock) StartOfDay(d Date) time.Time {
	return c.At(d, Midnight)
}

// UnixMilli is the ordering key for instants.
func (c *Clock) UnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}
