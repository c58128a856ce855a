// Package sequencer drives the single-slot animation state machine that decides when
// a new canonical team list becomes visible.
//
// A Sequencer is owned by exactly one goroutine. Every method, every deferred action
// and every cue completion callback must run on that goroutine; nothing here locks.
package sequencer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/scoreboard/internal/domain/classify"
	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

// State is the animation slot.
type State string

// States.
const (
	Idle      State = "idle"
	Emergency State = "emergency"
	Glitching State = "glitching"
)

// Cue is a fixed-length audio cue with a fade tail.
type Cue struct {
	Name  string        `json:"name"`
	Sound time.Duration `json:"sound"`
	Fade  time.Duration `json:"fade"`
}

// Length is the full playback time including the fade.
func (c Cue) Length() time.Duration { return c.Sound + c.Fade }

// Player renders audio cues. done reports that playback finished; it must be invoked
// on the sequencer's goroutine and may never be invoked at all.
type Player interface {
	Play(ctx context.Context, cue Cue, done func()) error
	Stop(ctx context.Context, cue Cue)
}

// Timing holds every delay of the state machine.
type Timing struct {
	EmergencySwap  time.Duration
	EmergencyTotal time.Duration
	GlitchSwap     time.Duration
	GlitchTotal    time.Duration
	Watchdog       time.Duration
	Siren          Cue
	Radio          Cue
}

// DefaultTiming returns the production schedule.
func DefaultTiming() Timing {
	return Timing{
		EmergencySwap:  1200 * time.Millisecond,
		EmergencyTotal: 3400 * time.Millisecond,
		GlitchSwap:     150 * time.Millisecond,
		GlitchTotal:    3000 * time.Millisecond,
		Watchdog:       6000 * time.Millisecond,
		Siren:          Cue{Name: "siren", Sound: 3000 * time.Millisecond, Fade: 400 * time.Millisecond},
		Radio:          Cue{Name: "radio", Sound: 2600 * time.Millisecond, Fade: 400 * time.Millisecond},
	}
}

// View is a read-only projection of the sequencer.
type View struct {
	State     State        `json:"state"`
	Dropping  string       `json:"droppingTeamId,omitempty"`
	Displayed []model.Team `json:"-"`
	Sound     bool         `json:"soundEnabled"`
	Revision  uint64       `json:"revision"`
}

// IsEmergency reports whether the emergency animation is running.
func (v View) IsEmergency() bool { return v.State == Emergency }

// IsGlitching reports whether the glitch animation is running.
func (v View) IsGlitching() bool { return v.State == Glitching }

type cueHandle struct {
	cue Cue
}

// Sequencer is the animation state machine.
type Sequencer struct {
	clock  clockwork.Clock
	player Player
	logger logger.Logger
	timing Timing

	state     State
	epoch     uint64
	dropping  string
	displayed []model.Team
	truth     []model.Team
	sound     bool
	cue       *cueHandle
	revision  uint64

	tasks  []task
	nextID TaskID
}

// New creates an idle Sequencer.
func New(clock clockwork.Clock, opts ...Option) *Sequencer {
	s := &Sequencer{
		clock:  clock,
		timing: DefaultTiming(),
		state:  Idle,
		sound:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("sequencer")
	}
	metrics.UpdateAnimationState(string(s.state))
	return s
}

// Apply records next as the current truth and, when idle, starts the animation for
// change. A non-idle sequencer rejects animated changes and defers silent ones until
// it is idle again. It reports whether next was acted on now.
func (s *Sequencer) Apply(ctx context.Context, change classify.Change, prev, next []model.Team) bool {
	s.truth = next
	if s.state != Idle {
		if change == classify.Silent {
			s.logger.Debug(ctx, "silent update deferred until animation ends",
				logger.String("state", string(s.state)))
			return false
		}
		s.logger.Warn(ctx, "animation trigger rejected",
			logger.String("state", string(s.state)),
			logger.String("change", change.String()))
		metrics.RecordTriggerRejected(change.String())
		return false
	}

	switch change {
	case classify.LeaderChange:
		s.startEmergency(ctx, prev, next)
	case classify.TopTierShuffle:
		s.startGlitch(ctx, next)
	default:
		s.show(next)
	}
	return true
}

// Replace records next as the truth and shows it immediately when idle.
func (s *Sequencer) Replace(_ context.Context, next []model.Team) {
	s.truth = next
	if s.state == Idle {
		s.show(next)
	}
}

// SetSound toggles audio. Disabling it silences the active cue and, while glitching,
// ends the animation at once because its completion signal can no longer arrive.
func (s *Sequencer) SetSound(ctx context.Context, enabled bool) {
	if s.sound == enabled {
		return
	}
	s.sound = enabled
	s.revision++
	if enabled {
		return
	}
	s.stopCue(ctx)
	if s.state == Glitching {
		s.toIdle(ctx, "sound disabled")
	}
}

// Abort cancels every deferred action, silences audio and leaves the sequencer idle
// with the truth displayed and no dropping mark.
func (s *Sequencer) Abort(ctx context.Context, reason string) {
	n := s.CancelAll()
	s.stopCue(ctx)
	s.toIdle(ctx, reason)
	s.logger.Info(ctx, "animations aborted",
		logger.String("reason", reason),
		logger.Int("cancelled", n))
}

// View returns the current projection.
func (s *Sequencer) View() View {
	return View{
		State:     s.state,
		Dropping:  s.dropping,
		Displayed: s.displayed,
		Sound:     s.sound,
		Revision:  s.revision,
	}
}

// State returns the animation state.
func (s *Sequencer) State() State { return s.state }

// Displayed returns the list currently shown.
func (s *Sequencer) Displayed() []model.Team { return s.displayed }

// Truth returns the latest canonical list.
func (s *Sequencer) Truth() []model.Team { return s.truth }

// Revision increases on every visible change.
func (s *Sequencer) Revision() uint64 { return s.revision }

func (s *Sequencer) startEmergency(ctx context.Context, prev, next []model.Team) {
	epoch := s.enter(ctx, Emergency)
	if len(prev) > 0 {
		s.dropping = prev[0].ID
	}
	if s.sound {
		s.play(ctx, s.timing.Siren, nil)
	}
	s.ScheduleDeferred(s.timing.EmergencySwap, func(context.Context) {
		if !s.current(epoch, Emergency) {
			return
		}
		s.dropping = ""
		s.show(next)
	})
	s.ScheduleDeferred(s.timing.EmergencyTotal, func(ctx context.Context) {
		if s.current(epoch, Emergency) {
			s.toIdle(ctx, "emergency complete")
		}
	})
}

func (s *Sequencer) startGlitch(ctx context.Context, next []model.Team) {
	epoch := s.enter(ctx, Glitching)
	s.ScheduleDeferred(s.timing.GlitchSwap, func(context.Context) {
		if s.current(epoch, Glitching) {
			s.show(next)
		}
	})
	if s.sound {
		s.play(ctx, s.timing.Radio, func(ctx context.Context) {
			if s.current(epoch, Glitching) {
				s.toIdle(ctx, "glitch cue complete")
			}
		})
		return
	}
	s.ScheduleDeferred(s.timing.GlitchTotal, func(ctx context.Context) {
		if s.current(epoch, Glitching) {
			s.toIdle(ctx, "glitch complete")
		}
	})
}

// enter moves from idle into state and arms the watchdog for this excursion.
func (s *Sequencer) enter(ctx context.Context, state State) uint64 {
	s.epoch++
	epoch := s.epoch
	s.state = state
	s.revision++
	metrics.UpdateAnimationState(string(state))
	s.logger.Debug(ctx, "animation started", logger.String("state", string(state)))

	s.ScheduleDeferred(s.timing.Watchdog, func(ctx context.Context) {
		if s.epoch != epoch || s.state == Idle {
			return
		}
		s.logger.Warn(ctx, "watchdog reset animation",
			logger.String("state", string(s.state)),
			logger.Duration("after", s.timing.Watchdog))
		metrics.RecordWatchdogReset()
		s.toIdle(ctx, "watchdog")
	})
	return epoch
}

func (s *Sequencer) current(epoch uint64, state State) bool {
	return s.epoch == epoch && s.state == state
}

// toIdle ends the excursion and catches the display up to the truth.
func (s *Sequencer) toIdle(ctx context.Context, reason string) {
	s.stopCue(ctx)
	s.state = Idle
	s.dropping = ""
	if s.truth != nil {
		s.displayed = s.truth
	}
	s.revision++
	metrics.UpdateAnimationState(string(Idle))
	s.logger.Debug(ctx, "animation ended", logger.String("reason", reason))
}

func (s *Sequencer) show(teams []model.Team) {
	s.displayed = teams
	s.revision++
}

// play starts cue, interrupting any cue still playing. onDone runs when the player
// reports completion for this very cue.
func (s *Sequencer) play(ctx context.Context, cue Cue, onDone func(ctx context.Context)) {
	s.stopCue(ctx)
	if s.player == nil {
		s.logger.Debug(ctx, "no audio player; cue unavailable", logger.String("cue", cue.Name))
		return
	}
	h := &cueHandle{cue: cue}
	s.cue = h
	err := s.player.Play(ctx, cue, func() {
		if s.cue != h {
			return
		}
		s.cue = nil
		if onDone != nil {
			onDone(ctx)
		}
	})
	if err != nil {
		s.cue = nil
		metrics.RecordCueFailure(cue.Name)
		s.logger.Error(ctx, "cue unavailable", logger.String("cue", cue.Name), logger.Error(err))
	}
}

func (s *Sequencer) stopCue(ctx context.Context) {
	if s.cue == nil {
		return
	}
	h := s.cue
	s.cue = nil
	s.player.Stop(ctx, h.cue)
}
