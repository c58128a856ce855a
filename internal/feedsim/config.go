// Package feedsim is a mock standings producer. It mutates a roster on a fixed cadence
// and posts scraper-shaped rows to the relay.
package feedsim

import (
	"errors"
	"time"
)

// Errors returned by the simulator.
var (
	ErrInvalidConfig = errors.New("invalid feed-sim config")
	ErrVerify        = errors.New("verification failed")
	ErrRelay         = errors.New("relay request failed")
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the relay
	Interval   time.Duration // Delay between posts
	Iterations int           // Number of posts; 0 runs until cancelled
	Teams      int           // Generated roster size when RosterFile is empty
	Problems   int           // Problems per team
	RosterFile string        // Optional YAML roster
	Seed       uint64        // Random seed; 0 picks one from the clock
	Timeout    time.Duration // HTTP request timeout

	// ContestStart, when set, is posted to /api/postContestTime before the first row set.
	ContestStart    time.Time
	ContestDuration int // minutes

	Verify bool // Read the relay back after every post
	Watch  bool // Log websocket pushes
}

// DefaultConfig returns the settings used when no flag overrides them.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:4000",
		Interval:        5 * time.Second,
		Teams:           12,
		Problems:        9,
		Timeout:         10 * time.Second,
		ContestDuration: 300,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("base url is required"))
	case c.Interval <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("interval must be positive"))
	case c.Iterations < 0:
		return errors.Join(ErrInvalidConfig, errors.New("iterations must not be negative"))
	case c.RosterFile == "" && c.Teams < 2:
		return errors.Join(ErrInvalidConfig, errors.New("at least two teams are required"))
	case c.Problems < 1:
		return errors.Join(ErrInvalidConfig, errors.New("at least one problem is required"))
	case !c.ContestStart.IsZero() && c.ContestDuration <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("contest duration must be positive"))
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	Posted    int
	Unchanged int
	Failed    int
	Verified  int
	Pushes    int64
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
