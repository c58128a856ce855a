package board

import (
	"context"
	"time"

	"github.com/okian/scoreboard/internal/domain/sequencer"
)

// Cue actions.
const (
	CuePlay = "play"
	CueStop = "stop"
)

// CueEvent tells viewers to start or stop an audio cue.
type CueEvent struct {
	Cue      string `json:"cue"`
	Action   string `json:"action"`
	LengthMs int64  `json:"lengthMs,omitempty"`
}

type scheduler interface {
	ScheduleDeferred(d time.Duration, fn func(ctx context.Context)) sequencer.TaskID
}

// cuePlayer renders cues on the viewers. Viewers cannot report back, so completion is
// reported once the cue and its fade have elapsed on the board clock.
type cuePlayer struct {
	board *Board
	sched scheduler
}

func (p *cuePlayer) Play(ctx context.Context, cue sequencer.Cue, done func()) error {
	p.board.publish(ctx, TopicCue, CueEvent{
		Cue:      cue.Name,
		Action:   CuePlay,
		LengthMs: cue.Length().Milliseconds(),
	})
	p.sched.ScheduleDeferred(cue.Length(), func(context.Context) { done() })
	return nil
}

func (p *cuePlayer) Stop(ctx context.Context, cue sequencer.Cue) {
	p.board.publish(ctx, TopicCue, CueEvent{Cue: cue.Name, Action: CueStop})
}
