// Package source maps form-backend submissions onto RawEvents and fetches
// source payloads over HTTP or from disk.
package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"lanecal/internal/clock"
	"lanecal/internal/layout"
	appLog "lanecal/internal/log"
	"lanecal/internal/model"
)

// ScheduleSlots is how many "Day N" time questions the form carries.
const ScheduleSlots = 7

// Question names on the submission form.
const (
	qName         = "Event Name"
	qStartDate    = "Event Start Date"
	qDays         = "Number of Days"
	qOrganizer    = "Organizer Name"
	qDescription  = "Event Description"
	qType         = "Event Type"
	qVenue        = "Venue Name"
	qVenueAddress = "Venue Address"
	qVenueLink    = "Venue Link"
	qEventLink    = "Event Link/Website"
	qChatLink     = "Link to Event Group Chat"
	qChatPlatform = "Event Group Chat Platform"
	qLogo         = "Logo"
)

// idNamespace seeds IDs for submissions that carry none.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("lanecal:submission"))

// Question is one answered field. Value may be a string, number, boolean,
// list of strings, list of uploaded files or null.
type Question struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type Submission struct {
	SubmissionID   string     `json:"submissionId"`
	SubmissionTime string     `json:"submissionTime"`
	Questions      []Question `json:"questions"`
}

// Response is the payload returned by the form backend.
type Response struct {
	Responses      []Submission `json:"responses"`
	TotalResponses int          `json:"totalResponses"`
	PageCount      int          `json:"pageCount"`
}

// DecodeResponse parses a form backend payload.
func DecodeResponse(body []byte) (Response, error) {
	var resp Response
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("decode submissions: %w", err)
	}
	return resp, nil
}

// answers indexes a submission's questions by name; the last answer wins.
type answers map[string]json.RawMessage

func (a answers) text(name string) string {
	raw, ok := a[name]
	if !ok {
		return ""
	}
	return rawText(raw)
}

// FromSubmissions converts submissions into RawEvents. Missing fields default
// to "", a single Other category and one day. A submission whose start date
// cannot be parsed is reported and left out. The result is ordered by
// ascending submission time; submissions without one come last.
func FromSubmissions(clk *clock.Clock, sourceID string, subs []Submission) ([]model.RawEvent, []layout.Issue) {
	type timed struct {
		ev model.RawEvent
		at time.Time
	}
	out := make([]timed, 0, len(subs))
	var issues []layout.Issue

	for _, sub := range subs {
		a := make(answers, len(sub.Questions))
		for _, q := range sub.Questions {
			a[q.Name] = q.Value
		}

		ev := model.RawEvent{
			ID:             sub.SubmissionID,
			SourceID:       sourceID,
			Name:           a.text(qName),
			Organizer:      a.text(qOrganizer),
			Description:    a.text(qDescription),
			Categories:     categories(a[qType]),
			Venue:          a.text(qVenue),
			VenueAddress:   a.text(qVenueAddress),
			VenueLink:      a.text(qVenueLink),
			EventLink:      a.text(qEventLink),
			ChatLink:       a.text(qChatLink),
			Logo:           logos(a[qLogo]),
			SubmissionTime: sub.SubmissionTime,
		}
		if p := a.text(qChatPlatform); p != "" {
			ev.ChatPlatform = model.ChatPlatform(p)
		}
		ev.DailySchedule = schedule(a)

		rawStart := a.text(qStartDate)
		if ev.ID == "" {
			ev.ID = uuid.NewSHA1(idNamespace, []byte(ev.Name+"|"+rawStart+"|"+sub.SubmissionTime)).String()
		}

		days, err := dayCount(a[qDays])
		if err != nil {
			appLog.Warn("submission skipped", "source", sourceID, "id", ev.ID, "reason", err.Error())
			issues = append(issues, layout.Issue{EventID: ev.ID, EventName: ev.Name, Err: err})
			continue
		}
		ev.TotalDays = days

		start, err := clk.ParseDate(rawStart)
		if err != nil {
			appLog.Warn("submission skipped", "source", sourceID, "id", ev.ID, "reason", err.Error())
			issues = append(issues, layout.Issue{EventID: ev.ID, EventName: ev.Name, Err: err})
			continue
		}
		ev.StartDate = start

		var at time.Time
		if sub.SubmissionTime != "" {
			if t, err := time.Parse(time.RFC3339Nano, sub.SubmissionTime); err == nil {
				at = t
			}
		}
		out = append(out, timed{ev: ev, at: at})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].at, out[j].at
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.Before(b)
	})

	events := make([]model.RawEvent, len(out))
	for i, t := range out {
		events[i] = t.ev
	}
	return events, issues
}

func schedule(a answers) []model.DaySchedule {
	days := make([]model.DaySchedule, ScheduleSlots)
	last := -1
	for i := range days {
		days[i] = model.DaySchedule{
			StartTime: a.text(fmt.Sprintf("Day %d - Start Time", i+1)),
			EndTime:   a.text(fmt.Sprintf("Day %d - End Time", i+1)),
		}
		if !days[i].IsEmpty() {
			last = i
		}
	}
	return days[:last+1]
}

// dayCount reads "Number of Days"; a missing, zero or non-numeric answer is 1.
// Fractions, negatives and spans beyond layout.MaxDays are rejected.
func dayCount(raw json.RawMessage) (int, error) {
	s := rawText(raw)
	if s == "" {
		return 1, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f == 0 {
		return 1, nil
	}
	if f != math.Trunc(f) || f < 1 || f > layout.MaxDays {
		return 0, fmt.Errorf("%w: number of days %s", layout.ErrInvalidEventSpan, s)
	}
	return int(f), nil
}

func categories(raw json.RawMessage) []model.Category {
	var names []string
	if len(raw) > 0 && json.Unmarshal(raw, &names) == nil && len(names) > 0 {
		out := make([]model.Category, 0, len(names))
		for _, n := range names {
			out = append(out, model.ParseCategory(n))
		}
		return out
	}
	return []model.Category{model.CategoryOther}
}

func logos(raw json.RawMessage) []model.Logo {
	var files []model.Logo
	if len(raw) == 0 || json.Unmarshal(raw, &files) != nil {
		return nil
	}
	return files
}

// rawText renders scalar JSON as text. Null, arrays and objects are empty.
func rawText(raw json.RawMessage) string {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return ""
	}
	switch v[0] {
	case '"':
		var s string
		if json.Unmarshal(v, &s) != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case 't', 'f':
		var b bool
		if json.Unmarshal(v, &b) != nil {
			return ""
		}
		return strconv.FormatBool(b)
	case 'n', '[', '{':
		return ""
	default:
		var n json.Number
		if json.Unmarshal(v, &n) != nil {
			return ""
		}
		return n.String()
	}
}
