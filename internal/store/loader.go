package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lanecal/internal/clock"
	"lanecal/internal/config"
	"lanecal/internal/ics"
	"lanecal/internal/layout"
	appLog "lanecal/internal/log"
	"lanecal/internal/model"
	"lanecal/internal/source"
)

// Fetcher reads a source payload. *source.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, loc source.Location) (source.FetchResult, error)
}

// Loader reads every configured source and converts it to RawEvents.
type Loader struct {
	cfg     *config.Config
	clk     *clock.Clock
	fetcher Fetcher

	// lastGood remembers each source's previous result so one failing
	// source does not blank its events.
	mu       sync.Mutex
	lastGood map[string]sourceResult
}

type sourceResult struct {
	events []model.RawEvent
	issues []layout.Issue
}

func NewLoader(cfg *config.Config, clk *clock.Clock, fetcher Fetcher) *Loader {
	return &Loader{
		cfg:      cfg,
		clk:      clk,
		fetcher:  fetcher,
		lastGood: make(map[string]sourceResult),
	}
}

// Load reads all sources in config order. A source that fails is logged and
// its last good result is reused. Load returns an error only when every
// source failed and none has a previous result.
func (l *Loader) Load(ctx context.Context) ([]model.RawEvent, []layout.Issue, error) {
	var (
		events []model.RawEvent
		issues []layout.Issue
		errs   []error
		used   int
	)

	for _, src := range l.cfg.Sources {
		res, err := l.loadSource(ctx, src)

		l.mu.Lock()
		if err != nil {
			appLog.Error("source load failed", err, "source", src.ID, "kind", src.Kind)
			errs = append(errs, fmt.Errorf("source %q: %w", src.ID, err))
			prev, ok := l.lastGood[src.ID]
			l.mu.Unlock()
			if !ok {
				continue
			}
			appLog.Warn("using last good result", "source", src.ID, "event_count", len(prev.events))
			res = prev
		} else {
			l.lastGood[src.ID] = res
			l.mu.Unlock()
		}

		used++
		events = append(events, res.events...)
		issues = append(issues, res.issues...)
	}

	if used == 0 && len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	return events, issues, nil
}

func (l *Loader) loadSource(ctx context.Context, src config.SourceConfig) (sourceResult, error) {
	fr, err := l.fetcher.Fetch(ctx, source.Location{ID: src.ID, URL: src.URL, Path: src.Path})
	if err != nil {
		return sourceResult{}, err
	}

	switch src.Kind {
	case config.KindICS:
		parsed, err := ics.ParseICS(src.ID, fr.Body, l.clk.Location())
		if err != nil {
			return sourceResult{}, fmt.Errorf("parse ics: %w", err)
		}
		from, to := l.expandRange()
		res, err := ics.ToRawEvents(parsed, ics.ExpandConfig{
			Clock:      l.clk,
			RangeStart: from,
			RangeEnd:   to,
		})
		if err != nil {
			return sourceResult{}, err
		}
		appLog.Debug("ics source loaded", "source", src.ID, "event_count", len(res.Events), "from_cache", fr.FromCache)
		return sourceResult{events: res.Events}, nil

	default:
		resp, err := source.DecodeResponse(fr.Body)
		if err != nil {
			return sourceResult{}, err
		}
		evs, issues := source.FromSubmissions(l.clk, src.ID, resp.Responses)
		appLog.Debug("submission source loaded", "source", src.ID, "event_count", len(evs), "issue_count", len(issues), "from_cache", fr.FromCache)
		return sourceResult{events: evs, issues: issues}, nil
	}
}

// expandRange is the window recurring ICS events are expanded in: the
// configured festival window when set, otherwise today plus HorizonDays.
func (l *Loader) expandRange() (time.Time, time.Time) {
	today := l.clk.Today()
	from := l.clk.StartOfDay(today)
	to := l.clk.StartOfDay(today.AddDays(l.cfg.HorizonDays))

	if w, err := l.cfg.Window(); err == nil {
		if !w.From.IsZero() {
			from = l.clk.StartOfDay(w.From)
		}
		if !w.To.IsZero() {
			to = l.clk.StartOfDay(w.To.AddDays(1))
		}
	}
	return from, to
}
