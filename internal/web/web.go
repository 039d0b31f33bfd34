// Package web serves computed layouts over HTTP.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/justinas/alice"

	"lanecal/internal/clock"
	"lanecal/internal/config"
	"lanecal/internal/layout"
	appLog "lanecal/internal/log"
	"lanecal/internal/model"
	"lanecal/internal/store"
)

const layoutCacheTTL = 30 * time.Second

// Server provides the layout API.
type Server struct {
	cfg   *config.Config
	clk   *clock.Clock
	store *store.Store
	opts  layout.Options
	mux   *http.ServeMux

	// Computed layouts keyed by category filter. An entry is reused while it
	// is younger than layoutCacheTTL and the snapshot has not changed.
	cacheMu sync.RWMutex
	cache   map[string]layoutCache

	now func() time.Time
}

type layoutCache struct {
	layout    layout.Layout
	snapshot  time.Time
	updatedAt time.Time
}

// NewServer constructs a new Server. cfg must already be validated.
func NewServer(cfg *config.Config, clk *clock.Clock, st *store.Store) *Server {
	defaults, err := cfg.DefaultTimes()
	if err != nil {
		appLog.Error("invalid default times; using all-day", err)
		defaults = layout.AllDay
	}
	window, err := cfg.Window()
	if err != nil {
		appLog.Error("invalid window; rendering all dates", err)
		window = layout.DateRange{}
	}

	s := &Server{
		cfg:   cfg,
		clk:   clk,
		store: st,
		opts:  layout.Options{Clock: clk, Defaults: defaults, Window: window},
		mux:   http.NewServeMux(),
		cache: make(map[string]layoutCache),
		now:   time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	chain := alice.New(recoverPanic, logRequests)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		chain = chain.Append(s.basicAuthMiddleware)
	}
	return chain.Then(s.mux)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(started).String(),
		)
	})
}

func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				appLog.Error("handler panic", fmt.Errorf("%v", v), "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="lanecal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/layout", s.getOnly(s.handleLayout))
	s.mux.HandleFunc("/api/days", s.getOnly(s.handleDays))
	s.mux.HandleFunc("/api/categories", s.getOnly(s.handleCategories))
}

func (s *Server) getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// segmentDTO is a JSON-friendly view of a positioned segment.
type segmentDTO struct {
	EventID         string           `json:"event_id"`
	SourceID        string           `json:"source_id"`
	Name            string           `json:"name"`
	Organizer       string           `json:"organizer,omitempty"`
	Venue           string           `json:"venue,omitempty"`
	EventLink       string           `json:"event_link,omitempty"`
	Categories      []model.Category `json:"categories"`
	Date            clock.Date       `json:"date"`
	EndDate         clock.Date       `json:"end_date"`
	DayIndex        int              `json:"day_index"`
	TotalDays       int              `json:"total_days"`
	DayLabel        string           `json:"day_label,omitempty"`
	StartTime       clock.TimeOfDay  `json:"start_time"`
	EndTime         clock.TimeOfDay  `json:"end_time"`
	NominalEnd      clock.TimeOfDay  `json:"nominal_end"`
	CrossesMidnight bool             `json:"crosses_midnight"`
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	Column          int              `json:"column"`
}

type issueDTO struct {
	EventID   string `json:"event_id"`
	EventName string `json:"event_name"`
	Error     string `json:"error"`
}

// layoutResponse is the JSON response shape for /api/layout.
type layoutResponse struct {
	Segments   []segmentDTO            `json:"segments"`
	MaxColumn  int                     `json:"max_column"`
	Days       map[string][]segmentDTO `json:"days"`
	Issues     []issueDTO              `json:"issues"`
	Categories []model.Category        `json:"categories"`
	Timezone   string                  `json:"timezone"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

type dayDTO struct {
	Date      clock.Date   `json:"date"`
	Weekday   string       `json:"weekday"`
	MaxColumn int          `json:"max_column"`
	Segments  []segmentDTO `json:"segments"`
}

// daysResponse is the JSON response shape for /api/days.
type daysResponse struct {
	Days      []dayDTO  `json:"days"`
	MaxColumn int       `json:"max_column"`
	Timezone  string    `json:"timezone"`
	UpdatedAt time.Time `json:"updated_at"`
}

// categoriesResponse is the JSON response shape for /api/categories.
type categoriesResponse struct {
	Known    []model.Category    `json:"known"`
	Selected []model.Category    `json:"selected"`
	Stats    model.CategoryStats `json:"stats"`
}

// handleLayout returns every segment with its column.
//
// GET /api/layout?categories=Conference,Party
//   - categories: comma-separated selection (default: all)
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r.URL.Query().Get("categories"), r.URL.Query().Has("categories"))
	lc := s.computeLayout(filter)

	resp := layoutResponse{
		Segments:   make([]segmentDTO, 0, len(lc.layout.Segments)),
		MaxColumn:  lc.layout.MaxColumn,
		Days:       make(map[string][]segmentDTO),
		Issues:     make([]issueDTO, 0),
		Categories: filter.Selected(),
		Timezone:   s.clk.Location().String(),
		UpdatedAt:  lc.snapshot,
	}
	for _, seg := range lc.layout.Segments {
		dto := toSegmentDTO(seg)
		resp.Segments = append(resp.Segments, dto)
		key := seg.Date.String()
		resp.Days[key] = append(resp.Days[key], dto)
	}
	for _, is := range lc.layout.Issues {
		resp.Issues = append(resp.Issues, issueDTO{EventID: is.EventID, EventName: is.EventName, Error: is.Err.Error()})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleDays returns the layout grouped by date in ascending order.
func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r.URL.Query().Get("categories"), r.URL.Query().Has("categories"))
	lc := s.computeLayout(filter)

	resp := daysResponse{
		Days:      make([]dayDTO, 0),
		MaxColumn: lc.layout.MaxColumn,
		Timezone:  s.clk.Location().String(),
		UpdatedAt: lc.snapshot,
	}
	for _, d := range lc.layout.Days() {
		dd := dayDTO{
			Date:      d.Date,
			Weekday:   d.Date.Weekday().String(),
			MaxColumn: d.MaxColumn,
			Segments:  make([]segmentDTO, 0, len(d.Segments)),
		}
		for _, seg := range d.Segments {
			dd.Segments = append(dd.Segments, toSegmentDTO(seg))
		}
		resp.Days = append(resp.Days, dd)
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCategories returns per-category counts for the filter bar.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r.URL.Query().Get("categories"), r.URL.Query().Has("categories"))
	snap := s.store.Snapshot()

	writeJSON(w, http.StatusOK, categoriesResponse{
		Known:    model.Categories,
		Selected: filter.Selected(),
		Stats:    model.CountByCategory(snap.Events, filter),
	})
}

// computeLayout returns the cached layout for filter or computes a new one.
func (s *Server) computeLayout(filter model.CategoryFilter) layoutCache {
	key := filterKey(filter)
	snap := s.store.Snapshot()
	now := s.now()

	s.cacheMu.RLock()
	lc, ok := s.cache[key]
	s.cacheMu.RUnlock()
	if ok && lc.snapshot.Equal(snap.UpdatedAt) && now.Sub(lc.updatedAt) < layoutCacheTTL {
		return lc
	}

	snap.Events = filter.Apply(snap.Events)
	l := snap.Layout(s.opts)

	lc = layoutCache{layout: l, snapshot: snap.UpdatedAt, updatedAt: now}

	s.cacheMu.Lock()
	s.cache[key] = lc
	s.cacheMu.Unlock()

	appLog.Debug("layout recomputed", "filter", key, "segments", len(l.Segments), "max_column", l.MaxColumn)
	return lc
}

func toSegmentDTO(seg layout.Segment) segmentDTO {
	dto := segmentDTO{
		Date:            seg.Date,
		DayIndex:        seg.DayIndex,
		TotalDays:       seg.TotalDays,
		DayLabel:        seg.DayLabel(),
		StartTime:       seg.StartTime,
		EndTime:         seg.EndTime,
		NominalEnd:      seg.NominalEnd,
		CrossesMidnight: seg.CrossesMidnight,
		Start:           seg.Start,
		End:             seg.End,
		Column:          seg.Column,
	}
	if ev := seg.Event; ev != nil {
		dto.EventID = ev.ID
		dto.SourceID = ev.SourceID
		dto.Name = ev.Name
		dto.Organizer = ev.Organizer
		dto.Venue = ev.Venue
		dto.EventLink = ev.EventLink
		dto.Categories = ev.Categories
		dto.EndDate = ev.EndDate()
	}
	return dto
}

// parseFilter reads a comma-separated category list. A missing parameter
// selects everything; a present but empty one selects nothing.
func parseFilter(raw string, present bool) model.CategoryFilter {
	if !present {
		return model.AllCategories()
	}
	var cats []model.Category
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			cats = append(cats, model.ParseCategory(part))
		}
	}
	return model.NewCategoryFilter(cats...)
}

func filterKey(f model.CategoryFilter) string {
	sel := f.Selected()
	parts := make([]string, len(sel))
	for i, c := range sel {
		parts[i] = string(c)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
