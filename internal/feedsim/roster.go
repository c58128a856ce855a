package feedsim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RosterEntry is one team of a roster fixture.
type RosterEntry struct {
	Name   string `yaml:"name"`
	TeamID string `yaml:"teamId"`
}

// Roster is the YAML fixture describing the simulated field.
type Roster struct {
	Problems int           `yaml:"problems"`
	Teams    []RosterEntry `yaml:"teams"`
}

// LoadRoster reads a roster fixture.
//
//	problems: 9
//	teams:
//	  - name: Alpha
//	    teamId: "101"
func LoadRoster(path string) (Roster, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Roster{}, fmt.Errorf("read roster: %w", err)
	}
	var r Roster
	if err := yaml.Unmarshal(b, &r); err != nil {
		return Roster{}, fmt.Errorf("parse roster: %w", err)
	}
	if len(r.Teams) < 2 {
		return Roster{}, fmt.Errorf("%w: roster needs at least two teams", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(r.Teams))
	for i, t := range r.Teams {
		if t.Name == "" {
			return Roster{}, fmt.Errorf("%w: team %d has no name", ErrInvalidConfig, i+1)
		}
		if _, dup := seen[t.Name]; dup {
			return Roster{}, fmt.Errorf("%w: duplicate team %q", ErrInvalidConfig, t.Name)
		}
		seen[t.Name] = struct{}{}
	}
	return r, nil
}

// GenerateRoster builds a roster of n teams named "Team 01", "Team 02" and so on.
func GenerateRoster(n, problems int) Roster {
	r := Roster{Problems: problems, Teams: make([]RosterEntry, n)}
	for i := range r.Teams {
		r.Teams[i] = RosterEntry{Name: fmt.Sprintf("Team %02d", i+1)}
	}
	return r
}
