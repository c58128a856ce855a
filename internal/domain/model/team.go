// Package model contains the canonical scoreboard models passed between layers.
package model

import "fmt"

// ProblemStatus is the judged state of a team's attempts on one problem.
type ProblemStatus string

// Problem statuses.
const (
	StatusAccepted     ProblemStatus = "ACCEPTED"
	StatusWrongAnswer  ProblemStatus = "WRONG_ANSWER"
	StatusTimeLimit    ProblemStatus = "TIME_LIMIT"
	StatusPending      ProblemStatus = "PENDING"
	StatusNotAttempted ProblemStatus = "NOT_ATTEMPTED"
)

// Trend is informational and carried through unchanged.
type Trend string

// Trends.
const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendSame Trend = "same"
)

// Submission summarises one team's work on one problem.
type Submission struct {
	Status       ProblemStatus `json:"status"`
	Attempts     int           `json:"attempts"`
	Time         int           `json:"time"` // minutes since contest start, accepted only
	IsFirstBlood bool          `json:"isFirstBlood"`
}

// Team is the canonical entry of the standings.
type Team struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	University  string                `json:"university"`
	Solved      int                   `json:"solved"`
	Penalty     int                   `json:"penalty"`
	Rank        int                   `json:"rank"`
	Submissions map[string]Submission `json:"submissions"`
	Trend       Trend                 `json:"trend"`
}

// Problem describes one contest problem.
type Problem struct {
	ID    string `json:"id" koanf:"id" yaml:"id"`
	Label string `json:"label" koanf:"label" yaml:"label"`
	Name  string `json:"name" koanf:"name" yaml:"name"`
}

// ProblemID returns the synthetic id of the 0-based problem index i.
func ProblemID(i int) string {
	return fmt.Sprintf("p%d", i+1)
}

// ProblemLabel returns the letter label of the 0-based problem index i (A, B, ... Z, AA, AB ...).
func ProblemLabel(i int) string {
	label := ""
	for n := i; n >= 0; n = n/26 - 1 {
		label = string(rune('A'+n%26)) + label
	}
	return label
}

// DefaultProblems returns n problems p1..pn labelled from A.
func DefaultProblems(n int) []Problem {
	out := make([]Problem, n)
	for i := range out {
		label := ProblemLabel(i)
		out[i] = Problem{ID: ProblemID(i), Label: label, Name: "Problem " + label}
	}
	return out
}

// IDs returns the ordered ids of the teams.
func IDs(teams []Team) []string {
	out := make([]string, len(teams))
	for i, t := range teams {
		out[i] = t.ID
	}
	return out
}

// Clone returns a copy of teams that shares no slices with the input. Submission maps
// are treated as immutable once built and are shared.
func Clone(teams []Team) []Team {
	if teams == nil {
		return nil
	}
	out := make([]Team, len(teams))
	copy(out, teams)
	return out
}
