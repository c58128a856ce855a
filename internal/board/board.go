// Package board runs the live scoreboard: it owns the canonical standings, the animation
// sequencer and the contest clock on a single event loop.
package board

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/scoreboard/internal/domain/classify"
	"github.com/okian/scoreboard/internal/domain/contest"
	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/sequencer"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

// Topics published by the board.
const (
	TopicBoardState = "boardState"
	TopicClock      = "clock"
	TopicCue        = "cue"
)

const (
	defaultPageSize     = 20
	defaultTickInterval = time.Second
	inboxSize           = 16
	topLogged           = 5
)

// Publisher receives board events. Publish is called from the board loop and must
// not block.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Result describes what Apply did with a list.
type Result struct {
	Phase    contest.Phase   `json:"phase"`
	Change   classify.Change `json:"-"`
	Kind     string          `json:"change"`
	Animated bool            `json:"animated"`
	Applied  bool            `json:"applied"`
}

// ClockEvent is published every time the countdown display changes.
type ClockEvent struct {
	Phase     contest.Phase `json:"phase"`
	Label     string        `json:"label"`
	Countdown string        `json:"countdown"`
}

type command struct {
	fn   func(ctx context.Context)
	done chan struct{}
}

// Board serializes every state change through Run.
type Board struct {
	clock        clockwork.Clock
	logger       logger.Logger
	publisher    Publisher
	onEnded      func(ctx context.Context)
	window       contest.Window
	sound        bool
	timing       sequencer.Timing
	problems     []model.Problem
	pageSize     int
	tickInterval time.Duration

	seq   *sequencer.Sequencer
	phase *contest.Clock

	truth     []model.Team
	ended     bool
	published uint64
	lastClock ClockEvent

	inbox   chan command
	done    chan struct{}
	running atomic.Bool
}

// New creates a Board. Nothing happens until Run is called.
func New(opts ...Option) *Board {
	b := &Board{
		sound:        true,
		timing:       sequencer.DefaultTiming(),
		pageSize:     defaultPageSize,
		tickInterval: defaultTickInterval,
		inbox:        make(chan command, inboxSize),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.clock == nil {
		b.clock = clockwork.NewRealClock()
	}
	if b.logger == nil {
		b.logger = logger.Get().Named("board")
	}

	player := &cuePlayer{board: b}
	b.seq = sequencer.New(b.clock,
		sequencer.WithPlayer(player),
		sequencer.WithTiming(b.timing),
		sequencer.WithSound(b.sound),
		sequencer.WithLogger(b.logger.Named("sequencer")),
	)
	player.sched = b.seq
	b.phase = contest.NewClock(b.window,
		contest.WithOnAfter(b.end),
		contest.WithLogger(b.logger.Named("contest")),
	)
	return b
}

// Run processes commands, ticks and deferred actions until ctx is cancelled.
func (b *Board) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(b.done)

	ticker := b.clock.NewTicker(b.tickInterval)
	defer ticker.Stop()

	var (
		timer clockwork.Timer
		armed time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	b.logger.Info(ctx, "board started",
		logger.Duration("tick", b.tickInterval),
		logger.Bool("sound", b.sound))
	b.advance(ctx)

	for {
		var wake <-chan time.Time
		if due, ok := b.seq.NextDue(); ok {
			if timer == nil || !due.Equal(armed) {
				if timer != nil {
					timer.Stop()
				}
				timer = b.clock.NewTimer(due.Sub(b.clock.Now()))
				armed = due
			}
			wake = timer.Chan()
		} else if timer != nil {
			timer.Stop()
			timer = nil
		}

		select {
		case <-ctx.Done():
			b.logger.Info(ctx, "board stopped")
			return nil
		case cmd := <-b.inbox:
			b.advance(ctx)
			cmd.fn(ctx)
			b.advance(ctx)
			close(cmd.done)
		case <-ticker.Chan():
			b.advance(ctx)
		case <-wake:
			timer = nil
			b.advance(ctx)
		}
	}
}

// Apply hands a new canonical list to the board.
func (b *Board) Apply(ctx context.Context, teams []model.Team) (Result, error) {
	var (
		res Result
		err error
	)
	if derr := b.do(ctx, func(ctx context.Context) {
		res, err = b.apply(ctx, teams)
	}); derr != nil {
		return Result{}, derr
	}
	return res, err
}

// SetSound toggles audio.
func (b *Board) SetSound(ctx context.Context, enabled bool) error {
	return b.do(ctx, func(ctx context.Context) {
		b.sound = enabled
		b.seq.SetSound(ctx, enabled)
		b.logger.Info(ctx, "sound toggled", logger.Bool("enabled", enabled))
	})
}

// SetWindow replaces the contest window.
func (b *Board) SetWindow(ctx context.Context, w contest.Window) error {
	return b.do(ctx, func(ctx context.Context) {
		b.window = w
		b.phase.SetWindow(w)
		b.logger.Info(ctx, "contest window updated",
			logger.Time("start", w.Start),
			logger.Time("end", w.End))
	})
}

// View returns the projection of the given 1-based page. A page below 1 returns every team.
func (b *Board) View(ctx context.Context, page int) (Projection, error) {
	var p Projection
	err := b.do(ctx, func(context.Context) {
		p = b.project(page)
	})
	return p, err
}

// Done is closed when Run returns.
func (b *Board) Done() <-chan struct{} { return b.done }

func (b *Board) do(ctx context.Context, fn func(ctx context.Context)) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case b.inbox <- cmd:
	case <-b.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-b.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Board) apply(ctx context.Context, teams []model.Team) (Result, error) {
	res := Result{Phase: b.phase.Phase()}
	if b.ended {
		return res, ErrStopped
	}
	if len(teams) == 0 {
		metrics.RecordSnapshotEmpty()
		b.logger.Debug(ctx, "empty standings ignored")
		return res, nil
	}

	prev := b.truth
	b.truth = teams
	res.Applied = true

	if res.Phase != contest.PhaseDuring {
		b.seq.Replace(ctx, teams)
		res.Kind = "replace"
		return res, nil
	}

	res.Change = classify.Classify(prev, teams)
	res.Kind = res.Change.String()
	metrics.RecordClassification(res.Kind)
	res.Animated = b.seq.Apply(ctx, res.Change, prev, teams) && res.Change != classify.Silent
	b.logger.Debug(ctx, "standings classified",
		logger.String("change", res.Kind),
		logger.Any("top", model.IDs(teams[:min(len(teams), topLogged)])),
		logger.Bool("animated", res.Animated),
		logger.String("state", string(b.seq.State())))
	return res, nil
}

// advance brings the phase and the deferred actions up to the current time and
// publishes whatever became visible.
func (b *Board) advance(ctx context.Context) {
	b.phase.Tick(ctx, b.clock.Now())
	b.seq.RunDue(ctx)
	b.flush(ctx)
}

// end runs once, the first time the contest is seen to be over.
func (b *Board) end(ctx context.Context) {
	b.seq.Abort(ctx, "contest ended")
	b.ended = true
	b.logger.Info(ctx, "contest ended; update delivery torn down",
		logger.Int("teams", len(b.truth)))
	if b.onEnded != nil {
		b.onEnded(ctx)
	}
}

func (b *Board) flush(ctx context.Context) {
	st := b.phase.Status()
	clock := ClockEvent{Phase: st.Phase, Label: st.Label, Countdown: st.Countdown}
	rev := b.seq.Revision()
	if rev != b.published || clock.Phase != b.lastClock.Phase {
		b.published = rev
		b.lastClock = clock
		b.publish(ctx, TopicBoardState, b.project(0))
		return
	}
	if clock != b.lastClock {
		b.lastClock = clock
		b.publish(ctx, TopicClock, clock)
	}
}

func (b *Board) publish(ctx context.Context, topic string, payload any) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.Publish(ctx, topic, payload); err != nil {
		metrics.RecordErrorByComponent("board", "publish")
		b.logger.Warn(ctx, "publish failed", logger.String("topic", topic), logger.Error(err))
	}
}
