package board_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scoreboard/internal/board"
	"github.com/okian/scoreboard/internal/domain/contest"
	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/pkg/logger"
)

type event struct {
	topic   string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Publish(_ context.Context, topic string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{topic: topic, payload: payload})
	return nil
}

func (r *recorder) cues() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if c, ok := e.payload.(board.CueEvent); ok {
			out = append(out, c.Cue+":"+c.Action)
		}
	}
	return out
}

func (r *recorder) lastState() (board.Projection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if p, ok := r.events[i].payload.(board.Projection); ok {
			return p, true
		}
	}
	return board.Projection{}, false
}

func teams(ids ...string) []model.Team {
	out := make([]model.Team, len(ids))
	for i, id := range ids {
		out[i] = model.Team{ID: id, Name: id, Rank: i + 1, Solved: len(ids) - i}
	}
	return out
}

var start = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type rig struct {
	ctx    context.Context
	cancel context.CancelFunc
	clock  *clockwork.FakeClock
	rec    *recorder
	board  *board.Board
	ended  atomic.Int32
}

func newRig(window contest.Window, opts ...board.Option) *rig {
	_ = logger.InitWithWriter(io.Discard, false)
	r := &rig{clock: clockwork.NewFakeClockAt(start), rec: &recorder{}}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	opts = append([]board.Option{
		board.WithClock(r.clock),
		board.WithPublisher(r.rec),
		board.WithWindow(window),
		board.WithOnEnded(func(context.Context) { r.ended.Add(1) }),
	}, opts...)
	r.board = board.New(opts...)
	go func() { _ = r.board.Run(r.ctx) }()
	return r
}

func (r *rig) stop() {
	r.cancel()
	<-r.board.Done()
}

func (r *rig) view() board.Projection {
	p, err := r.board.View(r.ctx, 0)
	So(err, ShouldBeNil)
	return p
}

func (r *rig) apply(list []model.Team) board.Result {
	res, err := r.board.Apply(r.ctx, list)
	So(err, ShouldBeNil)
	return res
}

func during() contest.Window {
	return contest.NewWindow(start.Add(-time.Minute), time.Hour)
}

func TestLeaderChangeDuringContest(t *testing.T) {
	Convey("Given a running board during the contest", t, func() {
		r := newRig(during())
		defer r.stop()
		r.apply(teams("A", "B", "C", "D", "E"))

		Convey("When the leader changes", func() {
			res := r.apply(teams("B", "A", "C", "D", "E"))

			Convey("Then the emergency animation starts with the old leader dropping", func() {
				So(res.Kind, ShouldEqual, "leader_change")
				So(res.Animated, ShouldBeTrue)
				p := r.view()
				So(p.IsEmergency, ShouldBeTrue)
				So(p.DroppingTeamID, ShouldEqual, "A")
				So(model.IDs(p.Teams)[0], ShouldEqual, "A")
				So(r.rec.cues(), ShouldResemble, []string{"siren:play"})
			})

			Convey("Then the list swaps at 1200ms", func() {
				r.clock.Advance(1200 * time.Millisecond)
				p := r.view()
				So(p.IsEmergency, ShouldBeTrue)
				So(p.DroppingTeamID, ShouldBeEmpty)
				So(model.IDs(p.Teams)[0], ShouldEqual, "B")
			})

			Convey("Then the board is idle again at 3400ms", func() {
				r.clock.Advance(3400 * time.Millisecond)
				p := r.view()
				So(p.IsEmergency, ShouldBeFalse)
				So(model.IDs(p.Teams)[:2], ShouldResemble, []string{"B", "A"})

				last, ok := r.rec.lastState()
				So(ok, ShouldBeTrue)
				So(last.Revision, ShouldEqual, p.Revision)
			})

			Convey("And another leader change arrives mid-animation", func() {
				r.clock.Advance(500 * time.Millisecond)
				res := r.apply(teams("C", "B", "A", "D", "E"))

				Convey("Then it is rejected but caught up on return to idle", func() {
					So(res.Animated, ShouldBeFalse)
					So(r.view().IsEmergency, ShouldBeTrue)

					r.clock.Advance(2900 * time.Millisecond)
					p := r.view()
					So(p.IsEmergency, ShouldBeFalse)
					So(model.IDs(p.Teams)[:3], ShouldResemble, []string{"C", "B", "A"})
				})
			})
		})
	})
}

func TestShuffleDuringContest(t *testing.T) {
	Convey("Given a running board during the contest", t, func() {
		r := newRig(during())
		defer r.stop()
		r.apply(teams("A", "B", "C", "D", "E", "F"))

		Convey("When ranks two and three swap", func() {
			res := r.apply(teams("A", "C", "B", "D", "E", "F"))
			So(res.Kind, ShouldEqual, "top_tier_shuffle")

			Convey("Then the glitch swaps the list at 150ms and ends with the radio cue", func() {
				So(r.view().IsGlitching, ShouldBeTrue)

				r.clock.Advance(150 * time.Millisecond)
				p := r.view()
				So(p.IsGlitching, ShouldBeTrue)
				So(model.IDs(p.Teams)[1], ShouldEqual, "C")

				r.clock.Advance(2850 * time.Millisecond)
				So(r.view().IsGlitching, ShouldBeFalse)
				So(r.rec.cues(), ShouldResemble, []string{"radio:play"})
			})

			Convey("Then disabling sound ends the glitch at once", func() {
				So(r.board.SetSound(r.ctx, false), ShouldBeNil)
				p := r.view()
				So(p.IsGlitching, ShouldBeFalse)
				So(p.SoundEnabled, ShouldBeFalse)
				So(model.IDs(p.Teams)[1], ShouldEqual, "C")
				So(r.rec.cues(), ShouldResemble, []string{"radio:play", "radio:stop"})
			})
		})

		Convey("When only rank seven changes", func() {
			res := r.apply(teams("A", "B", "C", "D", "E", "G"))

			Convey("Then the list is replaced silently", func() {
				So(res.Kind, ShouldEqual, "silent")
				p := r.view()
				So(p.IsGlitching, ShouldBeFalse)
				So(p.IsEmergency, ShouldBeFalse)
				So(model.IDs(p.Teams)[5], ShouldEqual, "G")
			})
		})
	})
}

func TestPhaseGating(t *testing.T) {
	Convey("Given a contest that has not started", t, func() {
		r := newRig(contest.NewWindow(start.Add(time.Hour), time.Hour))
		defer r.stop()
		r.apply(teams("A", "B", "C"))

		Convey("Then a leader change replaces the display without animation", func() {
			res := r.apply(teams("B", "A", "C"))
			So(res.Kind, ShouldEqual, "replace")
			p := r.view()
			So(p.Phase, ShouldEqual, contest.PhaseBefore)
			So(p.Label, ShouldEqual, contest.LabelStartsIn)
			So(p.Countdown, ShouldEqual, "01:00:00")
			So(p.IsEmergency, ShouldBeFalse)
			So(model.IDs(p.Teams)[0], ShouldEqual, "B")
		})

		Convey("When the window is moved to include now", func() {
			So(r.board.SetWindow(r.ctx, during()), ShouldBeNil)
			res := r.apply(teams("B", "A", "C"))

			Convey("Then updates animate", func() {
				So(res.Phase, ShouldEqual, contest.PhaseDuring)
				So(res.Animated, ShouldBeTrue)
			})
		})
	})

	Convey("Given no contest window", t, func() {
		r := newRig(contest.Window{})
		defer r.stop()
		r.apply(teams("A", "B"))
		res := r.apply(teams("B", "A"))

		So(res.Phase, ShouldEqual, contest.PhaseIdle)
		So(res.Animated, ShouldBeFalse)
		So(model.IDs(r.view().Teams), ShouldResemble, []string{"B", "A"})
	})
}

func TestContestEnd(t *testing.T) {
	Convey("Given an emergency running two seconds before the end", t, func() {
		r := newRig(contest.Window{Start: start.Add(-time.Hour), End: start.Add(2 * time.Second)})
		defer r.stop()
		r.apply(teams("A", "B", "C"))
		r.apply(teams("B", "A", "C"))
		So(r.view().IsEmergency, ShouldBeTrue)

		Convey("When the clock passes the end", func() {
			r.clock.Advance(2500 * time.Millisecond)
			p := r.view()

			Convey("Then the animation is cancelled and the truth is shown cleanly", func() {
				So(p.Phase, ShouldEqual, contest.PhaseAfter)
				So(p.Ended, ShouldBeTrue)
				So(p.IsEmergency, ShouldBeFalse)
				So(p.DroppingTeamID, ShouldBeEmpty)
				So(model.IDs(p.Teams), ShouldResemble, []string{"B", "A", "C"})
				So(r.rec.cues(), ShouldResemble, []string{"siren:play", "siren:stop"})
			})

			Convey("Then the teardown hook ran once and updates are refused", func() {
				r.clock.Advance(time.Minute)
				r.view()
				So(r.ended.Load(), ShouldEqual, 1)

				_, err := r.board.Apply(r.ctx, teams("C", "B", "A"))
				So(err, ShouldEqual, board.ErrStopped)
			})
		})
	})
}

func TestPagination(t *testing.T) {
	Convey("Given five teams and a page size of two", t, func() {
		r := newRig(contest.Window{}, board.WithPageSize(2), board.WithProblems(model.DefaultProblems(3)))
		defer r.stop()
		r.apply(teams("A", "B", "C", "D", "E"))

		Convey("Then pages are sliced and clamped", func() {
			p, err := r.board.View(r.ctx, 2)
			So(err, ShouldBeNil)
			So(model.IDs(p.Teams), ShouldResemble, []string{"C", "D"})
			So(p.Pages, ShouldEqual, 3)
			So(p.Total, ShouldEqual, 5)
			So(len(p.Problems), ShouldEqual, 3)

			p, err = r.board.View(r.ctx, 9)
			So(err, ShouldBeNil)
			So(p.Page, ShouldEqual, 3)
			So(model.IDs(p.Teams), ShouldResemble, []string{"E"})
		})

		Convey("Then an empty list is ignored", func() {
			res := r.apply(nil)
			So(res.Applied, ShouldBeFalse)
			So(r.view().Total, ShouldEqual, 5)
		})
	})
}

func TestLifecycle(t *testing.T) {
	Convey("Given a stopped board", t, func() {
		r := newRig(contest.Window{})
		r.view()
		So(r.board.Run(r.ctx), ShouldEqual, board.ErrRunning)
		r.stop()

		Convey("Then commands fail with ErrStopped", func() {
			_, err := r.board.View(context.Background(), 1)
			So(err, ShouldEqual, board.ErrStopped)
		})
	})
}
