// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults and Load(ctx) to layer sources.
// - External errors must be wrapped with this package's sentinel errors.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/types"
)

const defaultProblemCount = 9

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":4000".
	Addr string `koanf:"addr"`

	// QueueSize bounds the delivery channel between the relay and the board.
	QueueSize int `koanf:"queue_size"`

	// DedupeWindow is 1 to ignore a post identical to the previous one, 0 to accept all.
	DedupeWindow int `koanf:"dedupe_window"`

	// ContestStart is the RFC3339 start instant. Empty leaves the contest unscheduled.
	ContestStart string `koanf:"contest_start"`

	// ContestDuration is the contest length in minutes.
	ContestDuration int `koanf:"contest_duration"`

	// Problems lists the problem columns. ProblemCount, when set, wins.
	Problems     []model.Problem `koanf:"problems"`
	ProblemCount int             `koanf:"problem_count"`

	// SoundEnabled is the initial audio flag.
	SoundEnabled bool `koanf:"sound_enabled"`

	// CORSOrigins is a comma separated allowlist shared by CORS and the websocket.
	CORSOrigins string `koanf:"cors_origins"`

	// PageSize is how many teams one board page holds.
	PageSize int `koanf:"page_size"`

	// TopTeams is the size of the top teams answer.
	TopTeams int `koanf:"top_teams"`

	// TickIntervalMS is the contest clock period.
	TickIntervalMS int `koanf:"tick_interval_ms"`
}

// New creates a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":4000",
		QueueSize:       64,
		DedupeWindow:    1,
		ContestDuration: 300,
		SoundEnabled:    true,
		CORSOrigins:     "http://localhost:5173,http://localhost:3000",
		PageSize:        20,
		TopTeams:        3,
		TickIntervalMS:  1000,
	}
}

// Validate checks the invariants Load enforces.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.DedupeWindow < 0 || c.DedupeWindow > 1:
		return fmt.Errorf("%w: dedupe_window must be 0 or 1", ErrInvalidConfig)
	case c.ContestDuration <= 0:
		return fmt.Errorf("%w: contest_duration must be positive", ErrInvalidConfig)
	case c.PageSize <= 0:
		return fmt.Errorf("%w: page_size must be positive", ErrInvalidConfig)
	case c.TopTeams <= 0:
		return fmt.Errorf("%w: top_teams must be positive", ErrInvalidConfig)
	case c.TickIntervalMS <= 0:
		return fmt.Errorf("%w: tick_interval_ms must be positive", ErrInvalidConfig)
	}
	if _, err := c.start(); err != nil {
		return err
	}
	return nil
}

// ContestTime is the configured window in relay form.
func (c *Config) ContestTime() (types.ContestTime, bool) {
	start, err := c.start()
	if err != nil || start.IsZero() {
		return types.ContestTime{}, false
	}
	return types.ContestTime{StartTime: start, Duration: c.ContestDuration}, true
}

// Origins splits CORSOrigins.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ProblemSet returns the problem columns, filling missing ids and labels by position.
func (c *Config) ProblemSet() []model.Problem {
	switch {
	case c.ProblemCount > 0:
		return model.DefaultProblems(c.ProblemCount)
	case len(c.Problems) == 0:
		return model.DefaultProblems(defaultProblemCount)
	}
	out := make([]model.Problem, len(c.Problems))
	for i, p := range c.Problems {
		if p.ID == "" {
			p.ID = model.ProblemID(i)
		}
		if p.Label == "" {
			p.Label = model.ProblemLabel(i)
		}
		if p.Name == "" {
			p.Name = "Problem " + p.Label
		}
		out[i] = p
	}
	return out
}

// TickInterval returns the contest clock period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

func (c *Config) start() (time.Time, error) {
	s := strings.TrimSpace(c.ContestStart)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: contest_start: %w", ErrInvalidConfig, err)
	}
	return t, nil
}
