package store

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "lanecal/internal/log"
)

// Refresher reloads a Store from a Loader on a cron schedule.
type Refresher struct {
	cron     *cron.Cron
	schedule string
	loader   *Loader
	store    *Store
	now      func() time.Time
}

// NewRefresher builds a Refresher whose schedule is evaluated in loc.
func NewRefresher(schedule string, loc *time.Location, loader *Loader, st *Store) *Refresher {
	if loc == nil {
		loc = time.UTC
	}
	return &Refresher{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: schedule,
		loader:   loader,
		store:    st,
		now:      time.Now,
	}
}

// Refresh loads once and replaces the snapshot on success.
func (r *Refresher) Refresh(ctx context.Context) error {
	started := r.now()
	events, issues, err := r.loader.Load(ctx)
	if err != nil {
		return err
	}
	r.store.Replace(events, issues, r.now())
	appLog.Info("events refreshed",
		"event_count", len(events),
		"issue_count", len(issues),
		"elapsed", r.now().Sub(started).String(),
	)
	return nil
}

// Start runs an initial refresh, schedules the periodic one and blocks until
// ctx is done.
func (r *Refresher) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.schedule, func() { r.refreshLogged(ctx) }); err != nil {
		return fmt.Errorf("add refresh job: %w", err)
	}

	r.refreshLogged(ctx)

	r.cron.Start()
	appLog.Info("refresher started", "schedule", r.schedule)

	<-ctx.Done()
	return nil
}

// Stop waits for a running refresh to finish.
func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	appLog.Info("refresher stopped")
}

func (r *Refresher) refreshLogged(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		appLog.Error("refresh failed; keeping previous snapshot", err)
	}
}
