package feedsim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/scoreboard/pkg/logger"
)

// Run posts standings on the configured cadence until the iterations are done or
// ctx is cancelled.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	log := logger.Get().Named("feed-sim")
	stats := &Stats{StartTime: time.Now()}

	roster := GenerateRoster(cfg.Teams, cfg.Problems)
	if cfg.RosterFile != "" {
		r, err := LoadRoster(cfg.RosterFile)
		if err != nil {
			return nil, err
		}
		if r.Problems == 0 {
			r.Problems = cfg.Problems
		}
		roster = r
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	standings := NewStandings(roster, seed)
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting feed simulation",
		logger.String("run", runID),
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("teams", len(roster.Teams)),
		logger.Int("problems", roster.Problems),
		logger.Duration("interval", cfg.Interval),
		logger.Int("iterations", cfg.Iterations))

	if !cfg.ContestStart.IsZero() {
		if err := client.SetContestTime(ctx, cfg.ContestStart, cfg.ContestDuration); err != nil {
			return nil, fmt.Errorf("set contest time: %w", err)
		}
		log.Info(ctx, "contest time set",
			logger.Time("start", cfg.ContestStart),
			logger.Int("minutes", cfg.ContestDuration))
	}

	var watcher *Watcher
	if cfg.Watch {
		w, err := NewWatcher(cfg.BaseURL, log.Named("watch"))
		if err != nil {
			return nil, err
		}
		watcher = w
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := w.Run(watchCtx); err != nil {
				log.Warn(ctx, "watcher stopped", logger.Error(err))
			}
		}()
	}

	err := loop(ctx, cfg, standings, client, stats, log)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	if watcher != nil {
		stats.Pushes = watcher.Pushes()
	}
	log.Info(ctx, "feed simulation finished",
		logger.String("run", runID),
		logger.Int("posted", stats.Posted),
		logger.Int("unchanged", stats.Unchanged),
		logger.Int("failed", stats.Failed),
		logger.Int("verified", stats.Verified),
		logger.Int64("pushes", stats.Pushes),
		logger.Duration("duration", stats.Duration))

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return stats, nil
	}
	return stats, err
}

func loop(ctx context.Context, cfg Config, s *Standings, c *Client, stats *Stats, log logger.Logger) error {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	// The first post publishes the initial field unchanged.
	for i := 0; cfg.Iterations == 0 || i < cfg.Iterations; i++ {
		step := StepSilent
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			step = s.Advance(i)
		}
		if err := post(ctx, cfg, s, c, stats, log, step); err != nil {
			return err
		}
	}
	return nil
}

func post(ctx context.Context, cfg Config, s *Standings, c *Client, stats *Stats, log logger.Logger, step Step) error {
	res, err := c.PostRanking(ctx, s.Rows())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stats.Failed++
		log.Error(ctx, "post failed", logger.Error(err))
		return nil
	}
	if res.Unchanged() {
		stats.Unchanged++
		log.Debug(ctx, "relay buffer unchanged", logger.String("step", string(step)))
		return nil
	}
	stats.Posted++
	log.Info(ctx, "standings posted",
		logger.Int64("version", res.Version),
		logger.String("step", string(step)),
		logger.String("leader", s.Leader()))

	if !cfg.Verify {
		return nil
	}
	snap, err := c.Ranking(ctx)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if err := verify(snap, res.Version, s.Leader()); err != nil {
		return err
	}
	stats.Verified++
	return nil
}

// verify checks that the relay holds the posted version with the expected leader.
// A newer version means another producer posted in between and is accepted.
func verify(snap RelaySnapshot, version int64, leader string) error {
	if snap.Version < version {
		return fmt.Errorf("%w: relay at version %d, posted %d", ErrVerify, snap.Version, version)
	}
	if snap.Version > version {
		return nil
	}
	if len(snap.Teams) == 0 || snap.Teams[0].Name != leader {
		got := ""
		if len(snap.Teams) > 0 {
			got = snap.Teams[0].Name
		}
		return fmt.Errorf("%w: leader %q, expected %q", ErrVerify, got, leader)
	}
	return nil
}
