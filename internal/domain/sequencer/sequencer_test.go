package sequencer_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scoreboard/internal/domain/classify"
	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/sequencer"
	"github.com/okian/scoreboard/pkg/logger"
)

type fakePlayer struct {
	fail  bool
	plays []string
	stops []string
	done  []func()
}

func (p *fakePlayer) Play(_ context.Context, cue sequencer.Cue, done func()) error {
	if p.fail {
		return errors.New("audio device busy")
	}
	p.plays = append(p.plays, cue.Name)
	p.done = append(p.done, done)
	return nil
}

func (p *fakePlayer) Stop(_ context.Context, cue sequencer.Cue) {
	p.stops = append(p.stops, cue.Name)
}

func teams(ids ...string) []model.Team {
	out := make([]model.Team, len(ids))
	for i, id := range ids {
		out[i] = model.Team{ID: id, Name: id, Rank: i + 1}
	}
	return out
}

type rig struct {
	ctx    context.Context
	clock  *clockwork.FakeClock
	player *fakePlayer
	seq    *sequencer.Sequencer
}

func newRig(sound bool, initial []model.Team) *rig {
	_ = logger.InitWithWriter(io.Discard, false)
	r := &rig{
		ctx:    context.Background(),
		clock:  clockwork.NewFakeClock(),
		player: &fakePlayer{},
	}
	r.seq = sequencer.New(r.clock,
		sequencer.WithPlayer(r.player),
		sequencer.WithSound(sound),
		sequencer.WithInitial(initial),
	)
	return r
}

func (r *rig) advance(d time.Duration) {
	r.clock.Advance(d)
	r.seq.RunDue(r.ctx)
}

func TestEmergency(t *testing.T) {
	prev := teams("A", "B", "C", "D", "E")
	next := teams("B", "A", "C", "D", "E")

	Convey("Given an idle sequencer with sound on", t, func() {
		r := newRig(true, prev)

		Convey("When the leader changes", func() {
			ok := r.seq.Apply(r.ctx, classify.LeaderChange, prev, next)

			Convey("Then it enters emergency and marks the outgoing leader", func() {
				So(ok, ShouldBeTrue)
				view := r.seq.View()
				So(view.IsEmergency(), ShouldBeTrue)
				So(view.Dropping, ShouldEqual, "A")
				So(model.IDs(view.Displayed), ShouldResemble, model.IDs(prev))
				So(r.player.plays, ShouldResemble, []string{"siren"})
			})

			Convey("Then the list swaps at 1200ms and the mark clears", func() {
				r.advance(1199 * time.Millisecond)
				So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(prev))
				So(r.seq.View().Dropping, ShouldEqual, "A")

				r.advance(time.Millisecond)
				So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(next))
				So(r.seq.View().Dropping, ShouldEqual, "")
				So(r.seq.State(), ShouldEqual, sequencer.Emergency)
			})

			Convey("Then it returns to idle at 3400ms on the timer", func() {
				r.advance(3399 * time.Millisecond)
				So(r.seq.State(), ShouldEqual, sequencer.Emergency)
				r.advance(time.Millisecond)
				So(r.seq.State(), ShouldEqual, sequencer.Idle)
			})

			Convey("Then the siren completion does not end the animation early", func() {
				r.player.done[0]()
				So(r.seq.State(), ShouldEqual, sequencer.Emergency)
			})
		})
	})

	Convey("Given an idle sequencer with sound off", t, func() {
		r := newRig(false, prev)

		Convey("When the leader changes", func() {
			r.seq.Apply(r.ctx, classify.LeaderChange, prev, next)

			Convey("Then the same timers drive the animation without audio", func() {
				So(r.player.plays, ShouldBeEmpty)
				r.advance(1200 * time.Millisecond)
				So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(next))
				r.advance(2200 * time.Millisecond)
				So(r.seq.State(), ShouldEqual, sequencer.Idle)
			})
		})
	})
}

func TestGlitch(t *testing.T) {
	prev := teams("A", "B", "C", "D", "E")
	next := teams("A", "C", "B", "D", "E")

	Convey("Given an idle sequencer with sound on", t, func() {
		r := newRig(true, prev)

		Convey("When the top tier shuffles", func() {
			r.seq.Apply(r.ctx, classify.TopTierShuffle, prev, next)

			Convey("Then the list swaps at 150ms", func() {
				So(r.seq.View().IsGlitching(), ShouldBeTrue)
				r.advance(149 * time.Millisecond)
				So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(prev))
				r.advance(time.Millisecond)
				So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(next))
			})

			Convey("Then it waits for the cue to complete", func() {
				So(r.player.plays, ShouldResemble, []string{"radio"})
				r.advance(3000 * time.Millisecond)
				So(r.seq.State(), ShouldEqual, sequencer.Glitching)
				r.player.done[0]()
				So(r.seq.State(), ShouldEqual, sequencer.Idle)
			})
		})
	})

	Convey("Given an idle sequencer with sound off", t, func() {
		r := newRig(false, prev)

		Convey("When the top tier shuffles", func() {
			r.seq.Apply(r.ctx, classify.TopTierShuffle, prev, next)

			Convey("Then a 3000ms timer ends the glitch", func() {
				r.advance(2999 * time.Millisecond)
				So(r.seq.State(), ShouldEqual, sequencer.Glitching)
				r.advance(time.Millisecond)
				So(r.seq.State(), ShouldEqual, sequencer.Idle)
			})
		})
	})
}

func TestSilentAndReplace(t *testing.T) {
	prev := teams("A", "B", "C", "D", "E", "F")
	next := teams("A", "B", "C", "D", "E", "G")

	Convey("Given an idle sequencer", t, func() {
		r := newRig(true, prev)

		Convey("A silent change swaps synchronously without touching the state", func() {
			rev := r.seq.Revision()
			So(r.seq.Apply(r.ctx, classify.Silent, prev, next), ShouldBeTrue)
			So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(next))
			So(r.seq.State(), ShouldEqual, sequencer.Idle)
			So(r.seq.Revision(), ShouldBeGreaterThan, rev)
			So(r.seq.Pending(), ShouldEqual, 0)
		})

		Convey("Replace shows the list immediately", func() {
			r.seq.Replace(r.ctx, next)
			So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(next))
		})
	})
}

func TestSingleSlot(t *testing.T) {
	a := teams("A", "B", "C", "D", "E")
	b := teams("B", "A", "C", "D", "E")
	c := teams("C", "B", "A", "D", "E")

	Convey("Given a sequencer running an emergency", t, func() {
		r := newRig(true, a)
		r.seq.Apply(r.ctx, classify.LeaderChange, a, b)

		Convey("When another leader change arrives", func() {
			ok := r.seq.Apply(r.ctx, classify.LeaderChange, b, c)

			Convey("Then it is rejected and not queued", func() {
				So(ok, ShouldBeFalse)
				So(r.seq.State(), ShouldEqual, sequencer.Emergency)
				So(r.seq.View().Dropping, ShouldEqual, "A")
				So(r.player.plays, ShouldHaveLength, 1)

				r.advance(3400 * time.Millisecond)
				So(r.seq.State(), ShouldEqual, sequencer.Idle)
				r.advance(10 * time.Second)
				So(r.seq.State(), ShouldEqual, sequencer.Idle)
				So(r.player.plays, ShouldHaveLength, 1)
			})

			Convey("Then the truth moves on and the display catches up at idle", func() {
				So(model.IDs(r.seq.Truth()), ShouldResemble, model.IDs(c))
				r.advance(1200 * time.Millisecond)
				So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(b))
				r.advance(2200 * time.Millisecond)
				So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(c))
			})
		})

		Convey("When a silent update arrives", func() {
			d := teams("B", "A", "C", "D", "E", "Z")
			So(r.seq.Apply(r.ctx, classify.Silent, b, d), ShouldBeFalse)

			Convey("Then it is shown only once the animation ends", func() {
				r.advance(1200 * time.Millisecond)
				So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(b))
				r.advance(2200 * time.Millisecond)
				So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(d))
			})
		})
	})
}

func TestWatchdog(t *testing.T) {
	prev := teams("A", "B", "C", "D", "E")
	next := teams("A", "C", "B", "D", "E")

	Convey("Given audio that fails to start", t, func() {
		r := newRig(true, prev)
		r.player.fail = true

		Convey("When a voiced glitch starts", func() {
			r.seq.Apply(r.ctx, classify.TopTierShuffle, prev, next)

			Convey("Then the swap still happens and the watchdog ends it at 6000ms", func() {
				r.advance(150 * time.Millisecond)
				So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(next))
				r.advance(5849 * time.Millisecond)
				So(r.seq.State(), ShouldEqual, sequencer.Glitching)
				r.advance(time.Millisecond)
				So(r.seq.State(), ShouldEqual, sequencer.Idle)
			})
		})
	})

	Convey("Given audio that never reports completion", t, func() {
		r := newRig(true, prev)
		r.seq.Apply(r.ctx, classify.TopTierShuffle, prev, next)

		Convey("Then the watchdog resets to idle and the late completion is ignored", func() {
			r.advance(6 * time.Second)
			So(r.seq.State(), ShouldEqual, sequencer.Idle)
			So(r.player.stops, ShouldResemble, []string{"radio"})

			r.seq.Apply(r.ctx, classify.TopTierShuffle, next, prev)
			So(r.seq.State(), ShouldEqual, sequencer.Glitching)
			r.player.done[0]()
			So(r.seq.State(), ShouldEqual, sequencer.Glitching)
			r.player.done[1]()
			So(r.seq.State(), ShouldEqual, sequencer.Idle)
		})
	})

	Convey("Given any excursion", t, func() {
		Convey("Then the state is idle within 6000ms of entry", func() {
			for _, sound := range []bool{true, false} {
				for _, change := range []classify.Change{classify.LeaderChange, classify.TopTierShuffle} {
					r := newRig(sound, prev)
					r.player.fail = sound
					r.seq.Apply(r.ctx, change, prev, teams("E", "D", "C", "B", "A"))
					r.advance(6 * time.Second)
					So(r.seq.State(), ShouldEqual, sequencer.Idle)
					So(r.seq.View().Dropping, ShouldEqual, "")
				}
			}
		})
	})
}

func TestSoundToggle(t *testing.T) {
	prev := teams("A", "B", "C", "D", "E")

	Convey("Given a voiced glitch in progress", t, func() {
		r := newRig(true, prev)
		r.seq.Apply(r.ctx, classify.TopTierShuffle, prev, teams("A", "C", "B", "D", "E"))

		Convey("When sound is disabled", func() {
			r.seq.SetSound(r.ctx, false)

			Convey("Then audio stops and the state is idle in the same call", func() {
				So(r.player.stops, ShouldResemble, []string{"radio"})
				So(r.seq.State(), ShouldEqual, sequencer.Idle)
				So(r.seq.View().Sound, ShouldBeFalse)
				So(model.IDs(r.seq.Displayed()), ShouldResemble, []string{"A", "C", "B", "D", "E"})
			})

			Convey("Then the pending swap no longer fires", func() {
				r.seq.Replace(r.ctx, prev)
				r.advance(150 * time.Millisecond)
				So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(prev))
			})
		})
	})

	Convey("Given a voiced emergency in progress", t, func() {
		r := newRig(true, prev)
		r.seq.Apply(r.ctx, classify.LeaderChange, prev, teams("B", "A", "C", "D", "E"))

		Convey("When sound is disabled", func() {
			r.seq.SetSound(r.ctx, false)

			Convey("Then the siren stops but the timers still run the animation", func() {
				So(r.player.stops, ShouldResemble, []string{"siren"})
				So(r.seq.State(), ShouldEqual, sequencer.Emergency)
				r.advance(3400 * time.Millisecond)
				So(r.seq.State(), ShouldEqual, sequencer.Idle)
			})
		})
	})
}

func TestAbortAndDeferred(t *testing.T) {
	prev := teams("A", "B", "C", "D", "E")
	next := teams("B", "A", "C", "D", "E")

	Convey("Given an emergency in progress", t, func() {
		r := newRig(true, prev)
		r.seq.Apply(r.ctx, classify.LeaderChange, prev, next)
		So(r.seq.Pending(), ShouldBeGreaterThan, 0)

		Convey("When aborted", func() {
			r.seq.Abort(r.ctx, "contest over")

			Convey("Then everything is cancelled and the display is clean", func() {
				So(r.seq.Pending(), ShouldEqual, 0)
				So(r.seq.State(), ShouldEqual, sequencer.Idle)
				So(r.seq.View().Dropping, ShouldEqual, "")
				So(model.IDs(r.seq.Displayed()), ShouldResemble, model.IDs(next))
				So(r.player.stops, ShouldResemble, []string{"siren"})
				_, ok := r.seq.NextDue()
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given deferred actions with equal due times", t, func() {
		r := newRig(false, nil)
		var order []int
		r.seq.ScheduleDeferred(time.Second, func(context.Context) { order = append(order, 2) })
		r.seq.ScheduleDeferred(time.Second, func(context.Context) { order = append(order, 3) })
		r.seq.ScheduleDeferred(500*time.Millisecond, func(context.Context) {
			order = append(order, 1)
			r.seq.ScheduleDeferred(0, func(context.Context) { order = append(order, 0) })
		})

		Convey("Then they run by due time then registration order, including late arrivals", func() {
			due, ok := r.seq.NextDue()
			So(ok, ShouldBeTrue)
			So(due, ShouldEqual, r.clock.Now().Add(500*time.Millisecond))

			r.clock.Advance(time.Second)
			So(r.seq.RunDue(r.ctx), ShouldEqual, 4)
			So(order, ShouldResemble, []int{1, 2, 3, 0})
		})
	})
}
