// Package contest derives the contest phase and countdown from the configured window.
package contest

import (
	"fmt"
	"time"
)

// Phase of the contest.
type Phase string

// Phases. Idle means no window is configured.
const (
	PhaseIdle   Phase = "idle"
	PhaseBefore Phase = "before"
	PhaseDuring Phase = "during"
	PhaseAfter  Phase = "after"
)

// Countdown labels shown next to the timer.
const (
	LabelStartsIn = "Starts in"
	LabelEndsIn   = "Ends in"
	LabelEnded    = "Contest ended"
)

const zeroHMS = "00:00:00"

// Window is the configured contest interval. Both ends are inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window from a start instant and a duration.
func NewWindow(start time.Time, d time.Duration) Window {
	return Window{Start: start, End: start.Add(d)}
}

// Configured reports whether both ends are set.
func (w Window) Configured() bool {
	return !w.Start.IsZero() && !w.End.IsZero()
}

// Duration of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// PhaseAt derives the phase at now.
func (w Window) PhaseAt(now time.Time) Phase {
	switch {
	case !w.Configured():
		return PhaseIdle
	case now.Before(w.Start):
		return PhaseBefore
	case !now.After(w.End):
		return PhaseDuring
	default:
		return PhaseAfter
	}
}

// Status is the projection of the clock shown to viewers.
type Status struct {
	Phase     Phase         `json:"phase"`
	Label     string        `json:"label"`
	Countdown string        `json:"countdown"`
	Remaining time.Duration `json:"-"`
}

// StatusAt derives the phase, label and countdown at now.
func (w Window) StatusAt(now time.Time) Status {
	st := Status{Phase: w.PhaseAt(now), Countdown: zeroHMS}
	switch st.Phase {
	case PhaseBefore:
		st.Label = LabelStartsIn
		st.Remaining = w.Start.Sub(now)
	case PhaseDuring:
		st.Label = LabelEndsIn
		st.Remaining = w.End.Sub(now)
	case PhaseAfter:
		st.Label = LabelEnded
	}
	st.Countdown = FormatHMS(st.Remaining)
	return st
}

// FormatHMS renders d as HH:MM:SS, truncated to whole seconds and clamped at zero.
// Hours are not capped at 99.
func FormatHMS(d time.Duration) string {
	if d <= 0 {
		return zeroHMS
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}
