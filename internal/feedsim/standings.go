package feedsim

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
)

// Raw statuses as the scraper reports them.
const (
	statusAccepted     = "Accepted"
	statusFailed       = "Failed"
	statusPending      = "Pending"
	statusNotAttempted = "Not attempted"
)

// Step is the kind of mutation applied on one iteration.
type Step string

// Steps of the cadence.
const (
	StepLeaderSwap Step = "leader_swap"
	StepTopShuffle Step = "top_shuffle"
	StepSilent     Step = "silent"
)

// StepFor returns the cadence step of a 1-based iteration. Multiples of three swap the
// leader, other even iterations shuffle ranks 2 to 5, and the rest touch a lower team
// without moving it.
func StepFor(iteration int) Step {
	switch {
	case iteration%3 == 0:
		return StepLeaderSwap
	case iteration%2 == 0:
		return StepTopShuffle
	default:
		return StepSilent
	}
}

// Cell is one problem of one team.
type Cell struct {
	Status     string
	Seconds    int // contest time of the accepted submission
	Attempts   int // rejected attempts
	FirstSolve bool
}

// Team is one simulated team.
type Team struct {
	Name    string
	TeamID  string
	Solved  int
	Penalty int
	Cells   []Cell
}

// Standings is the mutable simulated field, kept sorted by solved desc, penalty asc.
type Standings struct {
	teams []*Team
	rnd   *rand.Rand
}

// NewStandings seeds a field from roster. Teams start with distinct results so the
// initial order is the roster order.
func NewStandings(r Roster, seed uint64) *Standings {
	s := &Standings{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	problems := max(r.Problems, 1)
	n := len(r.Teams)
	for i, e := range r.Teams {
		t := &Team{Name: e.Name, TeamID: e.TeamID, Cells: make([]Cell, problems)}
		for p := range t.Cells {
			t.Cells[p].Status = statusNotAttempted
		}
		solved := min((n-i)*problems/n, problems)
		for p := 0; p < solved; p++ {
			t.Cells[p] = Cell{Status: statusAccepted, Seconds: (p+1)*600 + i*60}
		}
		t.recompute()
		s.teams = append(s.teams, t)
	}
	s.sort()
	return s
}

// Teams returns the field in rank order.
func (s *Standings) Teams() []Team {
	out := make([]Team, len(s.teams))
	for i, t := range s.teams {
		out[i] = *t
		out[i].Cells = append([]Cell(nil), t.Cells...)
	}
	return out
}

// Leader returns the name of the first team.
func (s *Standings) Leader() string { return s.teams[0].Name }

// Advance applies the cadence step of iteration and returns it.
func (s *Standings) Advance(iteration int) Step {
	step := StepFor(iteration)
	switch step {
	case StepLeaderSwap:
		s.swap(0, 1)
	case StepTopShuffle:
		last := min(4, len(s.teams)-1)
		if last >= 2 {
			i := 1 + s.rnd.IntN(last)
			j := 1 + s.rnd.IntN(last)
			for j == i {
				j = 1 + s.rnd.IntN(last)
			}
			s.swap(i, j)
		}
	default:
		s.touch()
	}
	s.sort()
	return step
}

// swap exchanges the results of the teams at positions i and j.
func (s *Standings) swap(i, j int) {
	if i >= len(s.teams) || j >= len(s.teams) {
		return
	}
	a, b := s.teams[i], s.teams[j]
	a.Cells, b.Cells = b.Cells, a.Cells
	a.recompute()
	b.recompute()
	s.teams[i], s.teams[j] = b, a
}

// touch records a rejected or pending attempt on a team ranked 6 to 10. Solved and
// penalty stay the same, so the order does not move.
func (s *Standings) touch() {
	lo, hi := 5, min(9, len(s.teams)-1)
	if hi < lo {
		lo = len(s.teams) - 1
		hi = lo
	}
	t := s.teams[lo+s.rnd.IntN(hi-lo+1)]
	for _, p := range s.rnd.Perm(len(t.Cells)) {
		c := &t.Cells[p]
		if c.Status == statusAccepted {
			continue
		}
		if c.Status == statusPending {
			c.Status = statusFailed
			c.Attempts++
		} else {
			c.Status = statusPending
		}
		return
	}
}

func (s *Standings) sort() {
	sort.SliceStable(s.teams, func(i, j int) bool {
		a, b := s.teams[i], s.teams[j]
		if a.Solved != b.Solved {
			return a.Solved > b.Solved
		}
		return a.Penalty < b.Penalty
	})
	s.markFirstSolves()
}

// markFirstSolves flags the earliest accepted submission of every problem.
func (s *Standings) markFirstSolves() {
	if len(s.teams) == 0 {
		return
	}
	for p := range s.teams[0].Cells {
		var first *Cell
		for _, t := range s.teams {
			if p >= len(t.Cells) {
				continue
			}
			c := &t.Cells[p]
			c.FirstSolve = false
			if c.Status == statusAccepted && (first == nil || c.Seconds < first.Seconds) {
				first = c
			}
		}
		if first != nil {
			first.FirstSolve = true
		}
	}
}

func (t *Team) recompute() {
	t.Solved, t.Penalty = 0, 0
	for _, c := range t.Cells {
		if c.Status == statusAccepted {
			t.Solved++
			t.Penalty += c.Seconds/60 + 20*c.Attempts
		}
	}
}

// Row is one standings row in the scraper's shape: every number is a string.
type Row struct {
	Rank     string    `json:"rank"`
	TeamName string    `json:"teamName"`
	TeamID   string    `json:"teamId,omitempty"`
	Score    string    `json:"score"`
	Penalty  string    `json:"penalty"`
	Problems []RowCell `json:"problems"`
}

// RowCell is one problem cell of a Row.
type RowCell struct {
	Status     string `json:"status"`
	Time       string `json:"time"`
	Penalty    string `json:"penalty"`
	FirstSolve bool   `json:"firstSolve"`
}

// Rows renders the field as scraper rows.
func (s *Standings) Rows() []Row {
	out := make([]Row, len(s.teams))
	for i, t := range s.teams {
		row := Row{
			Rank:     strconv.Itoa(i + 1),
			TeamName: t.Name,
			TeamID:   t.TeamID,
			Score:    strconv.Itoa(t.Solved),
			Penalty:  strconv.Itoa(t.Penalty),
			Problems: make([]RowCell, len(t.Cells)),
		}
		for p, c := range t.Cells {
			cell := RowCell{Status: c.Status, FirstSolve: c.FirstSolve}
			if c.Status == statusAccepted {
				cell.Time = hms(c.Seconds)
			}
			if c.Attempts > 0 {
				cell.Penalty = "-" + strconv.Itoa(c.Attempts)
			}
			row.Problems[p] = cell
		}
		out[i] = row
	}
	return out
}

func hms(seconds int) string {
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}
