package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanecal/internal/clock"
	"lanecal/internal/config"
	"lanecal/internal/layout"
	"lanecal/internal/model"
	"lanecal/internal/source"
)

const submissions = `{
  "responses": [
    {
      "submissionId": "meetup",
      "submissionTime": "2025-05-02T10:00:00.000Z",
      "questions": [
        {"id": "1", "name": "Event Name", "type": "ShortAnswer", "value": "Meetup"},
        {"id": "2", "name": "Event Start Date", "type": "DatePicker", "value": "2025-06-09"}
      ]
    },
    {
      "submissionId": "broken",
      "submissionTime": "2025-05-03T10:00:00.000Z",
      "questions": [
        {"id": "1", "name": "Event Name", "type": "ShortAnswer", "value": "Broken"},
        {"id": "2", "name": "Event Start Date", "type": "DatePicker", "value": "later"}
      ]
    }
  ],
  "totalResponses": 2,
  "pageCount": 1
}`

const calendar = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//lanecal//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:talk@example.org\r\n" +
	"DTSTART:20250610T100000\r\n" +
	"DTEND:20250610T110000\r\n" +
	"SUMMARY:Talk\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, loc source.Location) (source.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[loc.ID]; err != nil {
		return source.FetchResult{}, err
	}
	return source.FetchResult{Location: loc, Body: []byte(f.bodies[loc.ID])}, nil
}

func (f *fakeFetcher) fail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
}

func testSetup(t *testing.T) (*config.Config, *clock.Clock, *fakeFetcher) {
	t.Helper()
	clk, err := clock.New("Europe/Berlin")
	require.NoError(t, err)
	clk = clk.WithNow(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, clk.Location()) })

	cfg := config.DefaultConfig()
	cfg.Sources = []config.SourceConfig{
		{ID: "forms", Kind: config.KindSubmissions, Path: "forms.json"},
		{ID: "cal", Kind: config.KindICS, Path: "cal.ics"},
	}
	ff := &fakeFetcher{
		bodies: map[string]string{"forms": submissions, "cal": calendar},
		errs:   map[string]error{},
	}
	return cfg, clk, ff
}

func names(t *testing.T, st *Store) []string {
	t.Helper()
	var out []string
	for _, e := range st.Snapshot().Events {
		out = append(out, e.Name)
	}
	return out
}

func TestLoaderMergesSources(t *testing.T) {
	cfg, clk, ff := testSetup(t)
	l := NewLoader(cfg, clk, ff)

	events, issues, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Meetup", events[0].Name)
	assert.Equal(t, "forms", events[0].SourceID)
	assert.Equal(t, "Talk", events[1].Name)
	assert.Equal(t, "cal", events[1].SourceID)

	require.Len(t, issues, 1)
	assert.Equal(t, "broken", issues[0].EventID)
	assert.ErrorIs(t, issues[0], clock.ErrInvalidDateFormat)
}

func TestLoaderKeepsLastGoodResult(t *testing.T) {
	cfg, clk, ff := testSetup(t)
	l := NewLoader(cfg, clk, ff)

	_, _, err := l.Load(context.Background())
	require.NoError(t, err)

	ff.fail("cal", errors.New("network down"))
	events, _, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestLoaderFailsWhenNothingLoaded(t *testing.T) {
	cfg, clk, ff := testSetup(t)
	ff.fail("forms", errors.New("gone"))
	ff.fail("cal", errors.New("gone"))

	_, _, err := NewLoader(cfg, clk, ff).Load(context.Background())
	assert.Error(t, err)
}

func TestLoaderSkipsFailingSource(t *testing.T) {
	cfg, clk, ff := testSetup(t)
	ff.fail("forms", errors.New("gone"))

	events, _, err := NewLoader(cfg, clk, ff).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Talk", events[0].Name)
}

func TestLoaderHonoursWindowForICS(t *testing.T) {
	cfg, clk, ff := testSetup(t)
	cfg.WindowStart = "2025-06-11"
	cfg.WindowEnd = "2025-06-20"

	events, _, err := NewLoader(cfg, clk, ff).Load(context.Background())
	require.NoError(t, err)
	// The talk on the 10th is outside the expansion window; submissions are
	// not filtered here.
	require.Len(t, events, 1)
	assert.Equal(t, "Meetup", events[0].Name)
}

func TestRefresherRefresh(t *testing.T) {
	cfg, clk, ff := testSetup(t)
	st := New()
	r := NewRefresher(cfg.RefreshCron, clk.Location(), NewLoader(cfg, clk, ff), st)

	require.NoError(t, r.Refresh(context.Background()))
	assert.Equal(t, []string{"Meetup", "Talk"}, names(t, st))
	assert.False(t, st.Snapshot().UpdatedAt.IsZero())

	ff.fail("forms", errors.New("gone"))
	ff.fail("cal", errors.New("gone"))
	r2 := NewRefresher(cfg.RefreshCron, clk.Location(), NewLoader(cfg, clk, ff), st)
	assert.Error(t, r2.Refresh(context.Background()))
	assert.Equal(t, []string{"Meetup", "Talk"}, names(t, st))
}

func TestRefresherStart(t *testing.T) {
	cfg, clk, ff := testSetup(t)
	st := New()
	r := NewRefresher(cfg.RefreshCron, clk.Location(), NewLoader(cfg, clk, ff), st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	require.Eventually(t, func() bool {
		return len(st.Snapshot().Events) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	r.Stop()
}

func TestRefresherRejectsBadSchedule(t *testing.T) {
	cfg, clk, ff := testSetup(t)
	r := NewRefresher("not a schedule", clk.Location(), NewLoader(cfg, clk, ff), New())
	assert.Error(t, r.Start(context.Background()))
}

func TestSnapshotIsACopy(t *testing.T) {
	cfg, clk, ff := testSetup(t)
	events, issues, err := NewLoader(cfg, clk, ff).Load(context.Background())
	require.NoError(t, err)

	st := New()
	st.Replace(events, issues, time.Now())
	snap := st.Snapshot()
	snap.Events[0].Name = "changed"
	assert.Equal(t, "Meetup", st.Snapshot().Events[0].Name)
}

func TestSnapshotLayoutLeavesIssuesAlone(t *testing.T) {
	clk, err := clock.New("Europe/Berlin")
	require.NoError(t, err)

	loadIssues := make([]layout.Issue, 1, 4)
	loadIssues[0] = layout.Issue{EventID: "bad", EventName: "Bad", Err: clock.ErrInvalidDateFormat}
	snap := Snapshot{
		Events: []model.RawEvent{
			{ID: "ok", Name: "OK", StartDate: clock.NewDate(2025, time.June, 7), TotalDays: 1},
			{ID: "zero", Name: "Zero", StartDate: clock.NewDate(2025, time.June, 7), TotalDays: 0},
		},
		Issues: loadIssues,
	}

	l := snap.Layout(layout.Options{Clock: clk})

	require.Len(t, l.Segments, 1)
	require.Len(t, l.Issues, 2)
	assert.Equal(t, "bad", l.Issues[0].EventID)
	assert.Equal(t, "zero", l.Issues[1].EventID)
	assert.Len(t, snap.Issues, 1)
	assert.Equal(t, layout.Issue{}, loadIssues[:2][1], "spare capacity of the snapshot must not be written")
}
