package board

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/scoreboard/internal/domain/contest"
	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/sequencer"
	"github.com/okian/scoreboard/pkg/logger"
)

// Option applies a configuration option to the Board.
type Option func(*Board)

// WithClock sets the clock driving ticks and deferred actions.
func WithClock(c clockwork.Clock) Option {
	return func(b *Board) {
		if c != nil {
			b.clock = c
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Board) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithPublisher sets where board events are pushed.
func WithPublisher(p Publisher) Option {
	return func(b *Board) {
		b.publisher = p
	}
}

// WithOnEnded registers the teardown run once the contest is over.
func WithOnEnded(fn func(ctx context.Context)) Option {
	return func(b *Board) {
		b.onEnded = fn
	}
}

// WithWindow sets the initial contest window.
func WithWindow(w contest.Window) Option {
	return func(b *Board) {
		b.window = w
	}
}

// WithSound sets the initial sound flag.
func WithSound(enabled bool) Option {
	return func(b *Board) {
		b.sound = enabled
	}
}

// WithTiming overrides the animation schedule.
func WithTiming(t sequencer.Timing) Option {
	return func(b *Board) {
		b.timing = t
	}
}

// WithProblems sets the problem columns included in projections.
func WithProblems(p []model.Problem) Option {
	return func(b *Board) {
		b.problems = p
	}
}

// WithPageSize sets how many teams a page holds.
func WithPageSize(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

// WithTickInterval sets the phase clock period.
func WithTickInterval(d time.Duration) Option {
	return func(b *Board) {
		if d > 0 {
			b.tickInterval = d
		}
	}
}
