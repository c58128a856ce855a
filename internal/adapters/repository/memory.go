package repository

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/scoreboard/internal/domain/types"
	"github.com/okian/scoreboard/pkg/metrics"
)

// MemoryStore is the in-memory Store. It keeps only the latest snapshot.
type MemoryStore struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	snapshot types.Snapshot
	contest  *types.ContestTime
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		clock:    clockwork.NewRealClock(),
		snapshot: types.Snapshot{Rows: []types.RawRow{}},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.contest != nil {
		ct, err := deriveContest(*s.contest)
		if err != nil {
			s.contest = nil
		} else {
			s.contest = &ct
		}
	}
	return s
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, rows []types.RawRow) (types.Snapshot, error) {
	coerced := Coerce(rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = types.Snapshot{
		Version: s.snapshot.Version + 1,
		TS:      s.clock.Now().UnixMilli(),
		Rows:    coerced,
	}
	metrics.RecordSnapshotIngested(len(coerced), s.snapshot.Version)
	return s.snapshot, nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(_ context.Context) (types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, nil
}

// Top implements Store.
func (s *MemoryStore) Top(_ context.Context, n int) ([]types.RawRow, error) {
	if n <= 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	snap := s.snapshot
	s.mu.RUnlock()

	if snap.Version == 0 {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, ErrNotFound
	}
	if len(snap.Rows) < n {
		return nil, fmt.Errorf("%w: only %d row(s) available", ErrNotEnoughRows, len(snap.Rows))
	}
	sorted := make([]types.RawRow, len(snap.Rows))
	copy(sorted, snap.Rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rankOf(sorted[i]) < rankOf(sorted[j])
	})
	return sorted[:n], nil
}

// SetContest implements Store.
func (s *MemoryStore) SetContest(_ context.Context, ct types.ContestTime) (types.ContestTime, error) {
	ct, err := deriveContest(ct)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_contest")
		return types.ContestTime{}, err
	}
	s.mu.Lock()
	s.contest = &ct
	s.mu.Unlock()
	return ct, nil
}

// Contest implements Store.
func (s *MemoryStore) Contest(_ context.Context) (types.ContestTime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.contest == nil {
		return types.ContestTime{}, ErrNotFound
	}
	return *s.contest, nil
}

// Coerce rewrites producer rows into the relay shape: the team name doubles as user
// id and username, numeric columns become JSON numbers (null when not numeric) and
// problems pass through untouched.
func Coerce(rows []types.RawRow) []types.RawRow {
	out := make([]types.RawRow, len(rows))
	for i, r := range rows {
		out[i] = types.RawRow{
			UserID:   r.TeamName,
			TeamID:   r.TeamID,
			Rank:     number(r.Rank),
			TeamName: r.TeamName,
			Username: r.TeamName,
			Score:    number(r.Score),
			Penalty:  number(r.Penalty),
			Problems: r.Problems,
		}
	}
	return out
}

// number casts like a scripting-language Number(): absent is NaN, null and false are
// zero, true is one.
func number(l types.Loose) types.Loose {
	v := bytes.TrimSpace(l)
	switch {
	case len(v) == 0:
		return types.LooseNumber(math.NaN())
	case bytes.Equal(v, []byte("null")), bytes.Equal(v, []byte("false")):
		return types.LooseInt(0)
	case bytes.Equal(v, []byte("true")):
		return types.LooseInt(1)
	}
	if f, ok := l.Number(); ok {
		return types.LooseNumber(f)
	}
	return types.LooseNumber(math.NaN())
}

func rankOf(r types.RawRow) float64 {
	if f, ok := r.Rank.Number(); ok && !r.Rank.IsNull() {
		return f
	}
	return math.Inf(1)
}

func deriveContest(ct types.ContestTime) (types.ContestTime, error) {
	if ct.StartTime.IsZero() {
		return ct, fmt.Errorf("%w: start time is required", ErrInvalidContest)
	}
	switch {
	case !ct.EndTime.IsZero():
		if !ct.EndTime.After(ct.StartTime) {
			return ct, fmt.Errorf("%w: end time must be after start time", ErrInvalidContest)
		}
		ct.Duration = int(ct.EndTime.Sub(ct.StartTime) / time.Minute)
	case ct.Duration > 0:
		ct.EndTime = ct.StartTime.Add(time.Duration(ct.Duration) * time.Minute)
	default:
		return ct, fmt.Errorf("%w: duration or end time is required", ErrInvalidContest)
	}
	ct.EndTime = ct.EndTime.In(ct.StartTime.Location())
	return ct, nil
}
