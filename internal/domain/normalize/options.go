package normalize

import "github.com/okian/scoreboard/internal/domain/model"

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithProblems sets the configured problem set. Rows with fewer cells than the set get
// NOT_ATTEMPTED entries for the missing problems.
func WithProblems(problems []model.Problem) Option {
	return func(n *Normalizer) {
		n.problems = append([]model.Problem(nil), problems...)
	}
}
