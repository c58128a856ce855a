// Package classify decides how a new canonical snapshot differs from the previous one.
package classify

import "github.com/okian/scoreboard/internal/domain/model"

// Change is the classification of a snapshot transition.
type Change int

// Changes in priority order.
const (
	Silent Change = iota
	TopTierShuffle
	LeaderChange
)

// Positions compared for a top-tier shuffle, 0-based and inclusive (ranks 2 to 5).
const (
	topTierFirst = 1
	topTierLast  = 4
)

func (c Change) String() string {
	switch c {
	case LeaderChange:
		return "leader_change"
	case TopTierShuffle:
		return "top_tier_shuffle"
	default:
		return "silent"
	}
}

// Classify compares two rank-sorted sequences by identity at fixed positions.
// A position missing from either side never counts as a change.
func Classify(prev, next []model.Team) Change {
	if differs(prev, next, 0) {
		return LeaderChange
	}
	for i := topTierFirst; i <= topTierLast; i++ {
		if differs(prev, next, i) {
			return TopTierShuffle
		}
	}
	return Silent
}

func differs(prev, next []model.Team, i int) bool {
	if i >= len(prev) || i >= len(next) {
		return false
	}
	return prev[i].ID != next[i].ID
}
