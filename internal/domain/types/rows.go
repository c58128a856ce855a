package types

import (
	"bytes"
	"encoding/json"
	"time"
)

// RawRow is one standings row as produced by the scraper or re-emitted by the relay.
type RawRow struct {
	UserID   Loose           `json:"userId,omitempty"`
	TeamID   Loose           `json:"teamId,omitempty"`
	Rank     Loose           `json:"rank"`
	TeamName Loose           `json:"teamName"`
	Username Loose           `json:"username,omitempty"`
	Score    Loose           `json:"score"`
	Penalty  Loose           `json:"penalty"`
	Problems json.RawMessage `json:"problems"`
}

// RawProblem is one per-problem cell of a raw row.
type RawProblem struct {
	Status     Loose `json:"status"`
	Time       Loose `json:"time"`
	Penalty    Loose `json:"penalty"`
	FirstSolve Loose `json:"firstSolve"`
}

// ProblemList decodes the problem cells of the row. Cells that are not objects decode
// to zero values; a problems field that is not an array yields nil.
func (r RawRow) ProblemList() []RawProblem {
	var cells []json.RawMessage
	if err := json.Unmarshal(r.Problems, &cells); err != nil {
		return nil
	}
	out := make([]RawProblem, len(cells))
	for i, c := range cells {
		var p RawProblem
		if err := json.Unmarshal(c, &p); err != nil {
			p = RawProblem{}
		}
		out[i] = p
	}
	return out
}

// DecodeRows extracts the row list from a payload that is either a bare array or an
// object carrying the array under "rows". It reports false when no array is found.
// Elements that are not objects decode to zero rows so that one bad row never aborts
// the batch.
func DecodeRows(payload []byte) ([]RawRow, bool) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, false
	}
	if payload[0] == '{' {
		var env struct {
			Rows json.RawMessage `json:"rows"`
		}
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, false
		}
		payload = bytes.TrimSpace(env.Rows)
	}
	if len(payload) == 0 || payload[0] != '[' {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(payload, &elems); err != nil {
		return nil, false
	}
	rows := make([]RawRow, len(elems))
	for i, e := range elems {
		var row RawRow
		if err := json.Unmarshal(e, &row); err != nil {
			row = RawRow{}
		}
		rows[i] = row
	}
	return rows, true
}

// Snapshot is the relay buffer as broadcast to clients.
type Snapshot struct {
	Version int64    `json:"version"`
	TS      int64    `json:"ts"`
	Rows    []RawRow `json:"rows"`
}

// ContestTime is the configured contest window as exposed by the relay.
type ContestTime struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Duration  int       `json:"duration"` // minutes
}
