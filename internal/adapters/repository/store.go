// Package repository holds the relay buffer: the latest standings snapshot as posted
// by the producer, and the configured contest time.
package repository

import (
	"context"

	"github.com/okian/scoreboard/internal/domain/types"
)

// Store provides read/write access to the relay state.
type Store interface {
	// Put coerces rows, bumps the version and stores them as the latest snapshot.
	Put(ctx context.Context, rows []types.RawRow) (types.Snapshot, error)

	// Latest returns the current snapshot. Before the first Put it is version 0
	// with no rows.
	Latest(ctx context.Context) (types.Snapshot, error)

	// Top returns the first n rows by rank.
	// Returns ErrNotFound before the first Put and ErrNotEnoughRows when fewer than
	// n rows are stored.
	Top(ctx context.Context, n int) ([]types.RawRow, error)

	// SetContest stores the contest time, deriving whichever of end time and
	// duration is missing.
	SetContest(ctx context.Context, ct types.ContestTime) (types.ContestTime, error)

	// Contest returns the contest time or ErrNotFound when unset.
	Contest(ctx context.Context) (types.ContestTime, error)
}
