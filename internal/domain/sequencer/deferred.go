package sequencer

import (
	"context"
	"sort"
	"time"
)

// TaskID identifies a deferred action.
type TaskID uint64

type task struct {
	id  TaskID
	due time.Time
	fn  func(ctx context.Context)
}

// ScheduleDeferred registers fn to run once d has elapsed on the sequencer clock.
// Deferred actions run from RunDue, in due order, ties broken by registration order.
func (s *Sequencer) ScheduleDeferred(d time.Duration, fn func(ctx context.Context)) TaskID {
	s.nextID++
	t := task{id: s.nextID, due: s.clock.Now().Add(d), fn: fn}
	i := sort.Search(len(s.tasks), func(i int) bool {
		return s.tasks[i].due.After(t.due)
	})
	s.tasks = append(s.tasks, task{})
	copy(s.tasks[i+1:], s.tasks[i:])
	s.tasks[i] = t
	return t.id
}

// CancelAll drops every pending deferred action.
func (s *Sequencer) CancelAll() int {
	n := len(s.tasks)
	s.tasks = nil
	return n
}

// NextDue reports when the earliest pending action is due.
func (s *Sequencer) NextDue() (time.Time, bool) {
	if len(s.tasks) == 0 {
		return time.Time{}, false
	}
	return s.tasks[0].due, true
}

// Pending returns the number of pending deferred actions.
func (s *Sequencer) Pending() int {
	return len(s.tasks)
}

// RunDue runs every action due at the current clock time, including actions that
// become due while running.
func (s *Sequencer) RunDue(ctx context.Context) int {
	now := s.clock.Now()
	ran := 0
	for len(s.tasks) > 0 && !s.tasks[0].due.After(now) {
		t := s.tasks[0]
		s.tasks = s.tasks[1:]
		t.fn(ctx)
		ran++
	}
	return ran
}
