// Package service wires the relay buffer, the delivery channel, the board engine and
// the websocket hub into the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/okian/scoreboard/internal/adapters/mq/queue"
	"github.com/okian/scoreboard/internal/adapters/mq/worker"
	"github.com/okian/scoreboard/internal/adapters/repository"
	"github.com/okian/scoreboard/internal/adapters/ws"
	"github.com/okian/scoreboard/internal/board"
	"github.com/okian/scoreboard/internal/domain/contest"
	"github.com/okian/scoreboard/internal/domain/dedupe"
	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/internal/domain/normalize"
	"github.com/okian/scoreboard/internal/domain/sequencer"
	"github.com/okian/scoreboard/internal/domain/types"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

const (
	stopTimeout  = 5 * time.Second
	greetTimeout = 2 * time.Second
)

// Service implements the API dependencies for the scoreboard.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   *repository.MemoryStore
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	board   *board.Board
	worker  *worker.InMemoryWorker
	hub     *ws.Hub

	// Configuration
	clock        clockwork.Clock
	queueSize    int
	dedupe       bool
	contest      *types.ContestTime
	problems     []model.Problem
	pageSize     int
	sound        bool
	tickInterval time.Duration
	origins      []string
	timing       *sequencer.Timing

	// State
	started bool
	cancel  context.CancelFunc
	group   *errgroup.Group

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock shared by the store and the board.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithQueueSize sets the capacity of the delivery channel.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupe turns off ignoring a post identical to the previous one when false.
func WithDedupe(enabled bool) Option {
	return func(s *Service) {
		s.dedupe = enabled
	}
}

// WithContest sets the initial contest window.
func WithContest(ct types.ContestTime) Option {
	return func(s *Service) {
		s.contest = &ct
	}
}

// WithProblems sets the problem columns.
func WithProblems(p []model.Problem) Option {
	return func(s *Service) {
		if len(p) > 0 {
			s.problems = p
		}
	}
}

// WithPageSize sets the number of teams per board page.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithSound sets whether audio starts enabled.
func WithSound(enabled bool) Option {
	return func(s *Service) {
		s.sound = enabled
	}
}

// WithTickInterval sets the contest clock period.
func WithTickInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithAllowedOrigins sets the websocket origin allowlist.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Service) {
		s.origins = origins
	}
}

// WithTiming overrides the animation schedule.
func WithTiming(t sequencer.Timing) Option {
	return func(s *Service) {
		s.timing = &t
	}
}

// New constructs a Service and its components. Nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{
		clock:        clockwork.NewRealClock(),
		queueSize:    64,
		dedupe:       true,
		problems:     model.DefaultProblems(9),
		pageSize:     20,
		sound:        true,
		tickInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	storeOpts := []repository.Option{repository.WithClock(s.clock)}
	if s.contest != nil {
		storeOpts = append(storeOpts, repository.WithContest(*s.contest))
	}
	s.store = repository.NewMemoryStore(storeOpts...)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithEnabled(s.dedupe))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	s.hub = ws.NewHub(
		ws.WithAllowedOrigins(s.origins),
		ws.WithSnapshot(func(ctx context.Context) (any, error) {
			return s.store.Latest(ctx)
		}),
		ws.WithState(func(ctx context.Context) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, greetTimeout)
			defer cancel()
			return s.board.View(ctx, 0)
		}),
	)

	boardOpts := []board.Option{
		board.WithClock(s.clock),
		board.WithPublisher(s.hub),
		board.WithOnEnded(s.teardown),
		board.WithSound(s.sound),
		board.WithProblems(s.problems),
		board.WithPageSize(s.pageSize),
		board.WithTickInterval(s.tickInterval),
	}
	if ct, err := s.store.Contest(context.Background()); err == nil {
		boardOpts = append(boardOpts, board.WithWindow(window(ct)))
	}
	if s.timing != nil {
		boardOpts = append(boardOpts, board.WithTiming(*s.timing))
	}
	s.board = board.New(boardOpts...)

	s.worker = worker.NewInMemoryWorker(s.queue,
		normalize.New(normalize.WithProblems(s.problems)),
		s.board)
	return s
}

// Start runs the board loop and the delivery consumer.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting scoreboard service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		if err := s.board.Run(gctx); err != nil {
			return fmt.Errorf("board: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.worker.Run(gctx)
		return nil
	})

	s.cancel = cancel
	s.group = g
	s.started = true
	metrics.UpdateQueueCapacity(s.queue.Capacity())
	s.logger.Info(ctx, "scoreboard service started",
		logger.Int("queueSize", s.queueSize),
		logger.Bool("dedupe", s.dedupe),
		logger.Int("problems", len(s.problems)),
		logger.Bool("contestConfigured", s.contest != nil))
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping scoreboard service...")

	_ = s.queue.Close()
	if err := s.worker.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker shutdown", logger.Error(err))
	}
	s.cancel()
	if err := s.group.Wait(); err != nil {
		s.logger.Error(ctx, "service stopped with error", logger.Error(err))
	}
	if err := s.hub.Close(); err != nil && !errors.Is(err, ws.ErrHubClosed) {
		s.logger.Warn(ctx, "hub close", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "scoreboard service stopped")
}

// Hub returns the websocket endpoint.
func (s *Service) Hub() *ws.Hub { return s.hub }

// Board returns the board engine.
func (s *Service) Board() *board.Board { return s.board }

// SeenAndRecord implements dedupe.Deduper.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord implements dedupe.Deduper.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size reports whether the deduper remembers a digest (1) or not (0).
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// Put stores a new relay snapshot.
func (s *Service) Put(ctx context.Context, rows []types.RawRow) (types.Snapshot, error) {
	return s.store.Put(ctx, rows)
}

// Latest returns the current relay snapshot.
func (s *Service) Latest(ctx context.Context) (types.Snapshot, error) {
	return s.store.Latest(ctx)
}

// Top returns the first n relay rows by rank.
func (s *Service) Top(ctx context.Context, n int) ([]types.RawRow, error) {
	return s.store.Top(ctx, n)
}

// Broadcast pushes the snapshot to joined viewers.
func (s *Service) Broadcast(ctx context.Context, snap types.Snapshot) {
	if err := s.hub.Publish(ctx, ws.TypeSendData, snap); err != nil {
		s.logger.Warn(ctx, "broadcast failed", logger.Int64("version", snap.Version), logger.Error(err))
	}
}

// Enqueue hands the snapshot to the board consumer.
func (s *Service) Enqueue(ctx context.Context, snap types.Snapshot) error {
	if err := s.queue.Enqueue(ctx, snap); err != nil {
		return fmt.Errorf("enqueue version %d: %w", snap.Version, err)
	}
	return nil
}

// SetContest stores the contest window.
func (s *Service) SetContest(ctx context.Context, ct types.ContestTime) (types.ContestTime, error) {
	return s.store.SetContest(ctx, ct)
}

// Contest returns the stored contest window.
func (s *Service) Contest(ctx context.Context) (types.ContestTime, error) {
	return s.store.Contest(ctx)
}

// ApplyWindow pushes a contest window to the board.
func (s *Service) ApplyWindow(ctx context.Context, ct types.ContestTime) error {
	return s.board.SetWindow(ctx, window(ct))
}

// View returns a page of the board projection.
func (s *Service) View(ctx context.Context, page int) (board.Projection, error) {
	return s.board.View(ctx, page)
}

// SetSound toggles audio on the board.
func (s *Service) SetSound(ctx context.Context, enabled bool) error {
	return s.board.SetSound(ctx, enabled)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	snap, _ := s.store.Latest(ctx)
	queueLen := s.queue.Len(ctx)
	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateWebsocketClients(s.hub.Clients())

	return map[string]interface{}{
		"started":       s.started,
		"relay_version": snap.Version,
		"relay_rows":    len(snap.Rows),
		"queueLength":   queueLen,
		"queueCapacity": s.queue.Capacity(),
		"queueClosed":   s.queue.IsClosed(),
		"dedupeSize":    s.deduper.Size(),
		"clients":       s.hub.Clients(),
		"joined":        s.hub.Joined(),
	}
}

// teardown runs on the board loop when the contest ends.
func (s *Service) teardown(ctx context.Context) {
	if err := s.queue.Close(); err != nil {
		s.logger.Warn(ctx, "delivery channel close", logger.Error(err))
		return
	}
	s.logger.Info(ctx, "delivery channel closed after contest end")
}

func window(ct types.ContestTime) contest.Window {
	return contest.Window{Start: ct.StartTime, End: ct.EndTime}
}
