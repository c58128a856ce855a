package sequencer

import (
	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/pkg/logger"
)

// Option applies a configuration option to the Sequencer.
type Option func(*Sequencer)

// WithPlayer sets the audio player. Without one every cue is unavailable.
func WithPlayer(p Player) Option {
	return func(s *Sequencer) {
		s.player = p
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sequencer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTiming overrides the animation schedule.
func WithTiming(t Timing) Option {
	return func(s *Sequencer) {
		s.timing = t
	}
}

// WithSound sets the initial sound flag.
func WithSound(enabled bool) Option {
	return func(s *Sequencer) {
		s.sound = enabled
	}
}

// WithInitial seeds both the truth and the displayed list.
func WithInitial(teams []model.Team) Option {
	return func(s *Sequencer) {
		s.truth = teams
		s.displayed = teams
	}
}
