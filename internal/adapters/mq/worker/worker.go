// Package worker consumes the delivery channel and hands canonical standings to the board.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/scoreboard/internal/adapters/mq/queue"
	"github.com/okian/scoreboard/internal/board"
	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/normalize"
	"github.com/okian/scoreboard/internal/domain/types"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

// Snapshot is what the worker reads off the queue.
type Snapshot = queue.Snapshot

// Queue defines how the worker receives snapshots.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Snapshot
}

// Normalizer turns raw rows into teams.
type Normalizer interface {
	Rows(rows []types.RawRow) []model.Team
}

// Applier receives canonical standings.
type Applier interface {
	Apply(ctx context.Context, teams []model.Team) (board.Result, error)
}

// Worker consumes snapshots.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is closed.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker is the single consumer of the delivery channel. Running exactly one
// keeps snapshots in arrival order.
type InMemoryWorker struct {
	queue      Queue
	normalizer Normalizer
	applier    Applier
	name       string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

var _ Worker = (*InMemoryWorker)(nil)

// NewInMemoryWorker creates a new worker.
func NewInMemoryWorker(q Queue, n Normalizer, a Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		normalizer: n,
		applier:    a,
		name:       "worker",
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case snap, ok := <-events:
			if !ok {
				w.logger.Info(ctx, "delivery channel closed")
				return
			}
			err := w.process(ctx, snap)
			switch {
			case errors.Is(err, board.ErrStopped):
				w.logger.Info(ctx, "board no longer accepts standings", logger.Int64("version", snap.Version))
				return
			case err != nil:
				w.logger.Error(ctx, "error processing snapshot", logger.Error(err))
			}
		}
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, snap Snapshot) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()

	teams := normalize.Canonicalize(w.normalizer.Rows(snap.Rows))
	if len(teams) == 0 {
		metrics.RecordSnapshotEmpty()
		w.logger.Debug(ctx, "snapshot without teams ignored", logger.Int64("version", snap.Version))
		return nil
	}

	res, err := w.applier.Apply(ctx, teams)
	if err != nil {
		metrics.RecordErrorByComponent("worker", "apply_error")
		return fmt.Errorf("apply snapshot %d: %w", snap.Version, err)
	}
	metrics.RecordSnapshotApplied(float64(time.Since(start).Milliseconds()))
	w.logger.Debug(ctx, "snapshot applied",
		logger.Int64("version", snap.Version),
		logger.Int("teams", len(teams)),
		logger.String("change", res.Kind),
		logger.Bool("animated", res.Animated))
	return nil
}
