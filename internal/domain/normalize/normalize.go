// Package normalize converts raw standings rows into canonical teams.
package normalize

import (
	"sort"
	"strconv"
	"strings"

	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/types"
)

// Raw status strings produced by the scraper.
const (
	rawAccepted = "Accepted"
	rawFailed   = "Failed"
	rawPending  = "Pending"
)

const idPrefix = "team_"

// Normalizer maps raw rows to canonical teams for a configured problem set.
type Normalizer struct {
	problems []model.Problem
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Payload normalizes an undecoded ranking payload. Anything that is not an array of
// rows (bare or under "rows") yields an empty result, which callers must read as
// "no usable data".
func (n *Normalizer) Payload(payload []byte) []model.Team {
	rows, ok := types.DecodeRows(payload)
	if !ok {
		return []model.Team{}
	}
	return n.Rows(rows)
}

// Rows normalizes decoded rows in input order. Ranks are parsed, not recomputed;
// see Canonicalize.
func (n *Normalizer) Rows(rows []types.RawRow) []model.Team {
	teams := make([]model.Team, 0, len(rows))
	for i := range rows {
		teams = append(teams, n.team(i, &rows[i]))
	}
	return teams
}

func (n *Normalizer) team(pos int, row *types.RawRow) model.Team {
	name := row.TeamName.String()

	rank, ok := row.Rank.Int()
	if !ok || rank < 1 {
		rank = pos + 1
	}

	cells := row.ProblemList()
	size := len(cells)
	if len(n.problems) > size {
		size = len(n.problems)
	}
	subs := make(map[string]model.Submission, size)
	for i := 0; i < size; i++ {
		id := model.ProblemID(i)
		if i >= len(cells) {
			subs[id] = model.Submission{Status: model.StatusNotAttempted}
			continue
		}
		subs[id] = Submission(cells[i])
	}

	return model.Team{
		ID:          TeamID(pos, row),
		Name:        name,
		University:  "",
		Solved:      nonNegative(row.Score.Int()),
		Penalty:     nonNegative(row.Penalty.Int()),
		Rank:        rank,
		Submissions: subs,
		Trend:       model.TrendSame,
	}
}

// TeamID derives the identity of a row. An upstream team key wins; otherwise the team
// name is used. The rank is never part of the identity so a team keeps its id when it
// moves.
func TeamID(pos int, row *types.RawRow) string {
	if key := strings.TrimSpace(row.TeamID.String()); key != "" {
		return idPrefix + key
	}
	if name := strings.TrimSpace(row.TeamName.String()); name != "" {
		return idPrefix + name
	}
	return idPrefix + "#" + strconv.Itoa(pos+1)
}

// Submission normalizes one problem cell.
func Submission(p types.RawProblem) model.Submission {
	status := Status(p.Status.String())
	sub := model.Submission{
		Status:       status,
		Attempts:     Attempts(p.Penalty),
		IsFirstBlood: p.FirstSolve.Bool(),
	}
	if status == model.StatusAccepted {
		sub.Time = Minutes(p.Time.String())
	}
	return sub
}

// Status maps a raw status string.
func Status(raw string) model.ProblemStatus {
	switch raw {
	case rawAccepted:
		return model.StatusAccepted
	case rawFailed:
		return model.StatusWrongAnswer
	case rawPending:
		return model.StatusPending
	default:
		return model.StatusNotAttempted
	}
}

// Minutes parses an H:MM:SS string into whole minutes, dropping seconds. Hours and
// minutes are read from their leading digits ("0:19s:05" is 19). Input without three
// parts or without digits in either field yields 0.
func Minutes(raw string) int {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 3 {
		return 0
	}
	h, ok := types.LooseString(parts[0]).Int()
	if !ok || h < 0 {
		return 0
	}
	m, ok := types.LooseString(parts[1]).Int()
	if !ok || m < 0 {
		return 0
	}
	return h*60 + m
}

// Attempts parses a signed attempt counter such as "-2" by dropping the sign.
// Non-numeric values yield 0.
func Attempts(raw types.Loose) int {
	if s, ok := raw.Text(); ok {
		s = strings.TrimSpace(s)
		s = strings.TrimLeft(s, "-+")
		if n, ok := types.LooseString(s).Int(); ok {
			return abs(n)
		}
	}
	return 0
}

// Canonicalize returns a copy of teams sorted by solved descending then penalty
// ascending, with ranks reassigned to 1..N. Ties keep the upstream rank order.
func Canonicalize(teams []model.Team) []model.Team {
	out := model.Clone(teams)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Solved != b.Solved {
			return a.Solved > b.Solved
		}
		if a.Penalty != b.Penalty {
			return a.Penalty < b.Penalty
		}
		return a.Rank < b.Rank
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func nonNegative(n int, ok bool) int {
	if !ok || n < 0 {
		return 0
	}
	return n
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
