package contest

import (
	"context"
	"time"

	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

// Clock tracks the phase across ticks and fires OnAfter exactly once, the first time
// the contest is observed to be over. It is owned by a single goroutine.
type Clock struct {
	window  Window
	status  Status
	started bool
	ended   bool

	onTransition func(ctx context.Context, from, to Phase)
	onAfter      func(ctx context.Context)
	logger       logger.Logger
}

// Option applies a configuration option to the Clock.
type Option func(*Clock)

// WithOnTransition registers a callback for every phase change.
func WithOnTransition(fn func(ctx context.Context, from, to Phase)) Option {
	return func(c *Clock) { c.onTransition = fn }
}

// WithOnAfter registers the callback run on first entering the after phase.
func WithOnAfter(fn func(ctx context.Context)) Option {
	return func(c *Clock) { c.onAfter = fn }
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Clock) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClock creates a Clock for window. Phase is unknown until the first Tick.
func NewClock(window Window, opts ...Option) *Clock {
	c := &Clock{window: window}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("contest")
	}
	return c
}

// SetWindow replaces the window. The next Tick re-derives the phase. Once the after
// phase has been entered the latch stays set.
func (c *Clock) SetWindow(w Window) {
	c.window = w
}

// Window returns the configured window.
func (c *Clock) Window() Window { return c.window }

// Tick re-derives the status at now and runs the callbacks for any transition.
func (c *Clock) Tick(ctx context.Context, now time.Time) Status {
	next := c.window.StatusAt(now)
	prev := c.status.Phase
	c.status = next
	if c.started && prev == next.Phase {
		return next
	}
	c.started = true

	metrics.UpdateContestPhase(string(next.Phase))
	c.logger.Info(ctx, "contest phase changed",
		logger.String("from", string(prev)),
		logger.String("to", string(next.Phase)),
		logger.String("countdown", next.Countdown))
	if c.onTransition != nil {
		c.onTransition(ctx, prev, next.Phase)
	}
	if next.Phase == PhaseAfter && !c.ended {
		c.ended = true
		if c.onAfter != nil {
			c.onAfter(ctx)
		}
	}
	return next
}

// Status returns the status computed by the last Tick.
func (c *Clock) Status() Status { return c.status }

// Phase returns the phase computed by the last Tick.
func (c *Clock) Phase() Phase { return c.status.Phase }

// Ended reports whether the after phase has been entered.
func (c *Clock) Ended() bool { return c.ended }
