package contest_test

import (
	"context"
	"io"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scoreboard/internal/domain/contest"
	"github.com/okian/scoreboard/pkg/logger"
)

func TestPhaseAt(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	w := contest.NewWindow(start, 5*time.Hour)

	Convey("Given a five hour window", t, func() {
		Convey("Then the phase follows the inclusive interval", func() {
			So(w.PhaseAt(start.Add(-time.Second)), ShouldEqual, contest.PhaseBefore)
			So(w.PhaseAt(start), ShouldEqual, contest.PhaseDuring)
			So(w.PhaseAt(start.Add(2*time.Hour)), ShouldEqual, contest.PhaseDuring)
			So(w.PhaseAt(w.End), ShouldEqual, contest.PhaseDuring)
			So(w.PhaseAt(w.End.Add(time.Millisecond)), ShouldEqual, contest.PhaseAfter)
		})

		Convey("Then the status carries label and countdown", func() {
			st := w.StatusAt(start.Add(-90 * time.Minute))
			So(st.Label, ShouldEqual, contest.LabelStartsIn)
			So(st.Countdown, ShouldEqual, "01:30:00")

			st = w.StatusAt(w.End.Add(-1500 * time.Millisecond))
			So(st.Label, ShouldEqual, contest.LabelEndsIn)
			So(st.Countdown, ShouldEqual, "00:00:01")

			st = w.StatusAt(w.End.Add(time.Hour))
			So(st.Label, ShouldEqual, contest.LabelEnded)
			So(st.Countdown, ShouldEqual, "00:00:00")
		})
	})

	Convey("Given no configured window", t, func() {
		var w contest.Window
		So(w.Configured(), ShouldBeFalse)
		So(w.PhaseAt(time.Now()), ShouldEqual, contest.PhaseIdle)
		So(w.StatusAt(time.Now()).Label, ShouldBeEmpty)
	})
}

func TestFormatHMS(t *testing.T) {
	Convey("FormatHMS truncates and clamps", t, func() {
		So(contest.FormatHMS(0), ShouldEqual, "00:00:00")
		So(contest.FormatHMS(-5*time.Second), ShouldEqual, "00:00:00")
		So(contest.FormatHMS(999*time.Millisecond), ShouldEqual, "00:00:00")
		So(contest.FormatHMS(61*time.Second), ShouldEqual, "00:01:01")
		So(contest.FormatHMS(5*time.Hour), ShouldEqual, "05:00:00")
		So(contest.FormatHMS(123*time.Hour+4*time.Second), ShouldEqual, "123:00:04")
	})
}

func TestClock(t *testing.T) {
	_ = logger.InitWithWriter(io.Discard, false)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	Convey("Given a clock with transition hooks", t, func() {
		var transitions []string
		afters := 0
		c := contest.NewClock(contest.NewWindow(start, time.Hour),
			contest.WithOnTransition(func(_ context.Context, from, to contest.Phase) {
				transitions = append(transitions, string(from)+">"+string(to))
			}),
			contest.WithOnAfter(func(context.Context) { afters++ }),
		)

		Convey("When ticking through the whole contest", func() {
			c.Tick(ctx, start.Add(-time.Minute))
			c.Tick(ctx, start.Add(-30*time.Second))
			c.Tick(ctx, start)
			c.Tick(ctx, start.Add(time.Minute))
			c.Tick(ctx, start.Add(2*time.Hour))
			c.Tick(ctx, start.Add(3*time.Hour))

			Convey("Then each change is reported once", func() {
				So(transitions, ShouldResemble, []string{">before", "before>during", "during>after"})
				So(c.Phase(), ShouldEqual, contest.PhaseAfter)
			})

			Convey("Then the after hook fires exactly once", func() {
				So(afters, ShouldEqual, 1)
				So(c.Ended(), ShouldBeTrue)
			})
		})

		Convey("When the window is moved after the contest ended", func() {
			c.Tick(ctx, start.Add(2*time.Hour))
			c.SetWindow(contest.NewWindow(start.Add(3*time.Hour), time.Hour))
			c.Tick(ctx, start.Add(2*time.Hour))
			c.Tick(ctx, start.Add(5*time.Hour))

			Convey("Then the latch holds and the hook does not fire again", func() {
				So(c.Phase(), ShouldEqual, contest.PhaseAfter)
				So(afters, ShouldEqual, 1)
			})
		})

		Convey("When the first tick already lands after the end", func() {
			st := c.Tick(ctx, start.Add(90*time.Minute))

			Convey("Then the contest is reported ended", func() {
				So(st.Phase, ShouldEqual, contest.PhaseAfter)
				So(afters, ShouldEqual, 1)
			})
		})
	})
}
