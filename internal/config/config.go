// Package config holds the YAML configuration of emscal.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"emscal/internal/ems"
	"emscal/internal/synth"
	"emscal/internal/syncer"
)

// Supported sinks.
const (
	SinkGoogle = "google"
	SinkICloud = "icloud"
)

// ICloudConfig holds the CalDAV credentials of the iCloud sink.
type ICloudConfig struct {
	Username string `yaml:"username"`
	// Password is an app-specific password, not the Apple ID password.
	Password string `yaml:"password"`
	Calendar string `yaml:"calendar"`
	Endpoint string `yaml:"endpoint"`
}

// Config is the top-level application configuration.
type Config struct {
	StudentID  string `yaml:"student_id"`
	SemesterID string `yaml:"semester_id"`

	// BaseURL is the EMS portal the timetable is fetched from.
	BaseURL string `yaml:"base_url"`

	// SemesterStart is the first day of the semester, as YYYY-MM-DD. Meeting
	// dates in earlier months are placed in the following year. When empty,
	// every date falls in the current year.
	SemesterStart string `yaml:"semester_start"`

	// Sink selects where events are written: "google" or "icloud".
	Sink string `yaml:"sink"`

	// CalendarID and GoogleAccount select the Google calendar and the saved
	// token used to write to it.
	CalendarID    string `yaml:"calendar_id"`
	GoogleAccount string `yaml:"google_account"`

	ICloud ICloudConfig `yaml:"icloud"`

	// Pace is the minimum delay between two calendar writes. An explicit 0
	// disables pacing.
	Pace      time.Duration `yaml:"pace"`
	StateFile string        `yaml:"state_file"`

	// Schedule is a cron spec; when set, sync keeps running on it.
	Schedule string `yaml:"schedule"`
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       ems.DefaultBaseURL,
		Sink:          SinkGoogle,
		CalendarID:    "primary",
		GoogleAccount: "default",
		Pace:          syncer.DefaultPace,
		StateFile:     syncer.DefaultStateFile,
		LogLevel:      "info",
	}
}

// Normalize fills in missing values with defaults. Pace is not touched: zero
// disables pacing.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.Sink == "" {
		c.Sink = d.Sink
	}
	if c.CalendarID == "" {
		c.CalendarID = d.CalendarID
	}
	if c.GoogleAccount == "" {
		c.GoogleAccount = d.GoogleAccount
	}
	if c.StateFile == "" {
		c.StateFile = d.StateFile
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	var errs []error
	if c.StudentID == "" {
		errs = append(errs, errors.New("student_id is required"))
	}
	if c.SemesterID == "" {
		errs = append(errs, errors.New("semester_id is required"))
	}
	if c.SemesterStart != "" {
		if _, err := time.Parse(time.DateOnly, c.SemesterStart); err != nil {
			errs = append(errs, fmt.Errorf("semester_start %q is not YYYY-MM-DD", c.SemesterStart))
		}
	}
	if c.Pace < 0 {
		errs = append(errs, fmt.Errorf("pace %s is negative", c.Pace))
	}
	return errors.Join(errs...)
}

// ValidateSink checks the fields the selected sink needs.
func (c *Config) ValidateSink() error {
	switch c.Sink {
	case SinkGoogle:
		if c.CalendarID == "" {
			return errors.New("calendar_id is required for the google sink")
		}
	case SinkICloud:
		var errs []error
		if c.ICloud.Username == "" {
			errs = append(errs, errors.New("icloud.username is required"))
		}
		if c.ICloud.Password == "" {
			errs = append(errs, errors.New("icloud.password is required"))
		}
		if c.ICloud.Calendar == "" {
			errs = append(errs, errors.New("icloud.calendar is required"))
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("unknown sink %q, want %q or %q", c.Sink, SinkGoogle, SinkICloud)
	}
	return nil
}

// Target names the calendar events are written to, as "<sink>/<owner>/<calendar>".
// It scopes the entries of the sync state.
func (c *Config) Target() string {
	if c.Sink == SinkICloud {
		return SinkICloud + "/" + c.ICloud.Username + "/" + c.ICloud.Calendar
	}
	return SinkGoogle + "/" + c.GoogleAccount + "/" + c.CalendarID
}

// YearPolicy returns how meeting dates are assigned a year. now supplies the
// year when no semester start is configured.
func (c *Config) YearPolicy(now time.Time) (synth.YearPolicy, error) {
	if c.SemesterStart == "" {
		return synth.FixedYear(now.Year()), nil
	}
	start, err := time.Parse(time.DateOnly, c.SemesterStart)
	if err != nil {
		return nil, fmt.Errorf("invalid semester_start: %w", err)
	}
	return synth.SemesterYear(start), nil
}

// Load reads the YAML file at path and normalizes it. An empty path or a
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}
