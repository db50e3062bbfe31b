package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: first-run behavior mirrors the data file: a missing config is
// created with defaults and 0600 permissions.

const (
	defaultListen        = "127.0.0.1:8080"
	defaultWeekStart     = "sunday"
	defaultDataDir       = "/var/lib/coursecal"
	defaultStatusRefresh = "@every 1m"
	defaultImportDays    = 120
	defaultLogLevel      = "info"

	// Swipe thresholds, in CSS pixels.
	defaultWeekSwipeDistance = 50
	defaultDaySwipeDistance  = 80
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// SwipeConfig sets the minimum horizontal drag distances for navigation.
type SwipeConfig struct {
	WeekMinDistance float64 `yaml:"week_min_distance" json:"week_min_distance"`
	DayMinDistance  float64 `yaml:"day_min_distance" json:"day_min_distance"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for calendar-day comparisons. Empty
	// means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// DataDir holds the persisted course data.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// StatusRefresh is the cron spec driving the "happening now" tracker.
	StatusRefresh string `yaml:"status_refresh" json:"status_refresh"`

	// RejectInvertedIntervals drops records whose endTime precedes startTime.
	RejectInvertedIntervals bool `yaml:"reject_inverted_intervals" json:"reject_inverted_intervals"`

	// ImportDays is the expansion window, from today, for ICS imports.
	ImportDays int `yaml:"import_days" json:"import_days"`

	Swipe SwipeConfig `yaml:"swipe" json:"swipe"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        defaultListen,
		Timezone:      "",
		WeekStart:     defaultWeekStart,
		DataDir:       defaultDataDir,
		StatusRefresh: defaultStatusRefresh,
		ImportDays:    defaultImportDays,
		Swipe: SwipeConfig{
			WeekMinDistance: defaultWeekSwipeDistance,
			DayMinDistance:  defaultDaySwipeDistance,
		},
		LogLevel:  defaultLogLevel,
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		c.WeekStart = defaultWeekStart
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.StatusRefresh == "" {
		c.StatusRefresh = defaultStatusRefresh
	}
	if c.ImportDays <= 0 {
		c.ImportDays = defaultImportDays
	}
	if c.Swipe.WeekMinDistance <= 0 {
		c.Swipe.WeekMinDistance = defaultWeekSwipeDistance
	}
	if c.Swipe.DayMinDistance <= 0 {
		c.Swipe.DayMinDistance = defaultDaySwipeDistance
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}

// FirstWeekday maps WeekStart onto a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// Location resolves Timezone, falling back to time.Local when it is empty.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating parent directories) and returned.
//   - Otherwise the YAML is unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
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

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, with 0600
// permissions on the result.
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

	tmp, err := os.CreateTemp(dir, ".coursecal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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
