package model

import (
	"lanecal/internal/clock"
)

// Category classifies an event for filtering and colouring.
type Category string

const (
	CategoryConference Category = "Conference"
	CategoryHackathon  Category = "Hackathon"
	CategoryMeetup     Category = "Meetup"
	CategoryParty      Category = "Party"
	CategoryCoworking  Category = "Coworking"
	CategoryHappyHour  Category = "Happy Hour"
	CategoryOther      Category = "Other"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryConference,
	CategoryHackathon,
	CategoryMeetup,
	CategoryParty,
	CategoryCoworking,
	CategoryHappyHour,
	CategoryOther,
}

// ParseCategory maps free text onto a known category; anything else is Other.
func ParseCategory(s string) Category {
	for _, c := range Categories {
		if string(c) == s {
			return c
		}
	}
	return CategoryOther
}

// ChatPlatform names the messenger an event's group chat lives on.
type ChatPlatform string

const (
	ChatMatrix   ChatPlatform = "Matrix"
	ChatTelegram ChatPlatform = "Telegram"
	ChatDiscord  ChatPlatform = "Discord"
	ChatSignal   ChatPlatform = "Signal"
	ChatOther    ChatPlatform = "Other"
)

// Logo is an uploaded image reference.
type Logo struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// DaySchedule holds the optional "HH:MM" start/end for one day of an event.
// An empty string means the value was not provided.
type DaySchedule struct {
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// IsEmpty reports whether neither time was provided.
func (d DaySchedule) IsEmpty() bool {
	return d.StartTime == "" && d.EndTime == ""
}

// RawEvent is the canonical input record. Everything except ID, Name,
// StartDate, TotalDays and DailySchedule is descriptive metadata that the
// layout carries through untouched.
type RawEvent struct {
	// ID identifies the event in issue reports and API responses.
	ID string `json:"id"`
	// SourceID names the configured source the event came from.
	SourceID string `json:"source_id,omitempty"`

	Name      string     `json:"name"`
	StartDate clock.Date `json:"start_date"`
	// TotalDays is authoritative for how many day segments are produced.
	TotalDays int `json:"total_days"`
	// DailySchedule is indexed by day offset from StartDate.
	DailySchedule []DaySchedule `json:"daily_schedule,omitempty"`

	Organizer    string       `json:"organizer"`
	Description  string       `json:"description"`
	Categories   []Category   `json:"categories"`
	Venue        string       `json:"venue"`
	VenueAddress string       `json:"venue_address"`
	VenueLink    string       `json:"venue_link,omitempty"`
	EventLink    string       `json:"event_link"`
	ChatLink     string       `json:"chat_link,omitempty"`
	ChatPlatform ChatPlatform `json:"chat_platform,omitempty"`
	Logo         []Logo       `json:"logo,omitempty"`

	// SubmissionTime is the RFC 3339 timestamp of the form submission, if any.
	SubmissionTime string `json:"submission_time,omitempty"`
}

// EndDate is the last covered day. It is derived for display only and never
// used to decide how many segments exist.
func (e RawEvent) EndDate() clock.Date {
	days := e.TotalDays
	if days < 1 {
		days = 1
	}
	return e.StartDate.AddDays(days - 1)
}

// Schedule returns the schedule entry for a zero-based day offset, or an
// empty entry when the schedule is too short.
func (e RawEvent) Schedule(offset int) DaySchedule {
	if offset < 0 || offset >= len(e.DailySchedule) {
		return DaySchedule{}
	}
	return e.DailySchedule[offset]
}

// HasCategory reports whether c is one of the event's categories.
func (e RawEvent) HasCategory(c Category) bool {
	for _, ec := range e.Categories {
		if ec == c {
			return true
		}
	}
	return false
}
