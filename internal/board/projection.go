package board

import (
	"github.com/okian/scoreboard/internal/domain/contest"
	"github.com/okian/scoreboard/internal/domain/model"
)

// Projection is what a viewer renders.
type Projection struct {
	Teams          []model.Team    `json:"teams"`
	Problems       []model.Problem `json:"problems"`
	Page           int             `json:"page"`
	PageSize       int             `json:"pageSize"`
	Pages          int             `json:"pages"`
	Total          int             `json:"total"`
	IsEmergency    bool            `json:"isEmergency"`
	IsGlitching    bool            `json:"isGlitching"`
	DroppingTeamID string          `json:"droppingTeamId,omitempty"`
	Phase          contest.Phase   `json:"phase"`
	Label          string          `json:"label"`
	Countdown      string          `json:"countdown"`
	SoundEnabled   bool            `json:"soundEnabled"`
	Ended          bool            `json:"ended"`
	Revision       uint64          `json:"revision"`
}

func (b *Board) project(page int) Projection {
	v := b.seq.View()
	st := b.phase.Status()
	p := Projection{
		Problems:       b.problems,
		PageSize:       b.pageSize,
		Total:          len(v.Displayed),
		IsEmergency:    v.IsEmergency(),
		IsGlitching:    v.IsGlitching(),
		DroppingTeamID: v.Dropping,
		Phase:          st.Phase,
		Label:          st.Label,
		Countdown:      st.Countdown,
		SoundEnabled:   v.Sound,
		Ended:          b.ended,
		Revision:       v.Revision,
	}
	p.Pages = pages(p.Total, b.pageSize)
	p.Teams = []model.Team{}
	if page < 1 {
		p.Teams = append(p.Teams, v.Displayed...)
		return p
	}
	p.Page = min(page, p.Pages)
	lo := (p.Page - 1) * b.pageSize
	hi := min(lo+b.pageSize, p.Total)
	p.Teams = append(p.Teams, v.Displayed[lo:hi]...)
	return p
}

func pages(total, size int) int {
	if total == 0 {
		return 1
	}
	return (total + size - 1) / size
}
