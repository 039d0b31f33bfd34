package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"lanecal/internal/clock"
	"lanecal/internal/layout"
)

// Source kinds.
const (
	KindSubmissions = "submissions"
	KindICS         = "ics"
)

// SourceConfig describes a single event source.
type SourceConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Kind is "submissions" (form backend JSON) or "ics".
	Kind string `yaml:"kind" json:"kind"`
	// URL is fetched over HTTP with conditional caching. Path reads a local
	// file instead; exactly one should be set.
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone all dates are computed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used for periodic source reloads.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// DefaultStart / DefaultEnd fill days without a scheduled time.
	DefaultStart string `yaml:"default_start" json:"default_start"`
	DefaultEnd   string `yaml:"default_end" json:"default_end"`

	// WindowStart / WindowEnd ("YYYY-MM-DD") bound the rendered dates.
	// Empty means unbounded.
	WindowStart string `yaml:"window_start,omitempty" json:"window_start,omitempty"`
	WindowEnd   string `yaml:"window_end,omitempty" json:"window_end,omitempty"`

	// HorizonDays is how far ahead recurring ICS events are expanded.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// CacheDir holds conditional-fetch caches for URL sources.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     clock.DefaultZone,
		LogLevel:     "info",
		RefreshCron:  "*/15 * * * *",
		DefaultStart: "00:00",
		DefaultEnd:   "23:59",
		HorizonDays:  90,
		CacheDir:     "./var/source-cache",
		Sources:      []SourceConfig{},
		BasicAuth:    nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.DefaultStart == "" {
		c.DefaultStart = def.DefaultStart
	}
	if c.DefaultEnd == "" {
		c.DefaultEnd = def.DefaultEnd
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = def.HorizonDays
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		src := &c.Sources[i]
		if src.Kind == "" {
			src.Kind = KindSubmissions
		}
		if src.ID == "" {
			switch {
			case src.Name != "":
				src.ID = src.Name
			case src.URL != "":
				src.ID = src.URL
			default:
				src.ID = src.Path
			}
		}
	}
}

// Validate checks the values Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := clock.New(c.Timezone); err != nil {
		return err
	}
	if _, err := c.DefaultTimes(); err != nil {
		return err
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	for _, src := range c.Sources {
		if src.Kind != KindSubmissions && src.Kind != KindICS {
			return fmt.Errorf("source %q: unknown kind %q", src.ID, src.Kind)
		}
		if (src.URL == "") == (src.Path == "") {
			return fmt.Errorf("source %q: exactly one of url or path is required", src.ID)
		}
	}
	return nil
}

// DefaultTimes parses DefaultStart/DefaultEnd.
func (c *Config) DefaultTimes() (layout.DefaultTimes, error) {
	start, err := clock.ParseTimeOfDay(c.DefaultStart)
	if err != nil {
		return layout.DefaultTimes{}, fmt.Errorf("default_start: %w", err)
	}
	end, err := clock.ParseTimeOfDay(c.DefaultEnd)
	if err != nil {
		return layout.DefaultTimes{}, fmt.Errorf("default_end: %w", err)
	}
	return layout.DefaultTimes{Start: start, End: end}, nil
}

// Window parses WindowStart/WindowEnd.
func (c *Config) Window() (layout.DateRange, error) {
	var r layout.DateRange
	var err error
	if c.WindowStart != "" {
		if r.From, err = clock.ParseCivilDate(c.WindowStart); err != nil {
			return layout.DateRange{}, fmt.Errorf("window_start: %w", err)
		}
	}
	if c.WindowEnd != "" {
		if r.To, err = clock.ParseCivilDate(c.WindowEnd); err != nil {
			return layout.DateRange{}, fmt.Errorf("window_end: %w", err)
		}
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return layout.DateRange{}, errors.New("window_end is before window_start")
	}
	return r, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".lanecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
