package repository

import (
	"github.com/jonboulle/clockwork"

	"github.com/okian/scoreboard/internal/domain/types"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithClock sets the clock used to stamp snapshots.
func WithClock(c clockwork.Clock) Option {
	return func(s *MemoryStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithContest seeds the store with a contest time.
func WithContest(ct types.ContestTime) Option {
	return func(s *MemoryStore) {
		if !ct.StartTime.IsZero() {
			s.contest = &ct
		}
	}
}
