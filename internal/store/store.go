// Package store keeps the most recently loaded events in memory and refreshes
// them from the configured sources on a schedule.
package store

import (
	"sync"
	"time"

	"lanecal/internal/layout"
	"lanecal/internal/model"
)

// Snapshot is one consistent view of the loaded events.
type Snapshot struct {
	Events    []model.RawEvent
	Issues    []layout.Issue
	UpdatedAt time.Time
}

// Store holds the current Snapshot. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

func New() *Store {
	return &Store{}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Events:    append([]model.RawEvent(nil), s.snap.Events...),
		Issues:    append([]layout.Issue(nil), s.snap.Issues...),
		UpdatedAt: s.snap.UpdatedAt,
	}
}

// Replace swaps in a new set of events.
func (s *Store) Replace(events []model.RawEvent, issues []layout.Issue, at time.Time) {
	s.mu.Lock()
	s.snap = Snapshot{Events: events, Issues: issues, UpdatedAt: at}
	s.mu.Unlock()
}

// Layout computes the layout of the snapshot's events. Load issues come
// first, then normalizer issues; the snapshot's slices are left untouched.
func (s Snapshot) Layout(opts layout.Options) layout.Layout {
	l := layout.Compute(s.Events, opts)
	issues := make([]layout.Issue, 0, len(s.Issues)+len(l.Issues))
	issues = append(issues, s.Issues...)
	l.Issues = append(issues, l.Issues...)
	return l
}
