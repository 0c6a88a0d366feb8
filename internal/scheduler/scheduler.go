// Package scheduler implements the cooperative run loop the robot's
// control tasks execute under. Tasks are registered once, before the loop
// starts, each with a fixed priority and period; the loop then dispatches
// at most one elapsed task per iteration, earliest deadline first, ties
// broken by priority. Nothing preempts a running task: each Tick runs to
// completion before the next dispatch, which is what lets tasks exchange
// data through share cells without locks.
//
// The scheduler is not safe for concurrent use. Register, RunOnce, Run,
// Suspend, Resume and Stats must all be called from the goroutine that
// owns the mission; anything that needs timing data elsewhere gets it
// through an event published by a task.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoRunnableTasks is returned by Run when every registered task is
// suspended (or none were registered), leaving the loop nothing to wait
// for. Only a task can resume a task, so this state cannot clear itself.
var ErrNoRunnableTasks = errors.New("scheduler: no runnable tasks")

// Scheduler is a fixed-priority, period-driven cooperative dispatcher.
// Higher priority values are more urgent.
type Scheduler struct {
	clock   Clock
	tasks   []*task
	byName  map[string]*task
	started bool
	ticks   uint64
}

// New creates a Scheduler driven by clock. A nil clock means wall time.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		clock:  clock,
		byName: make(map[string]*task),
	}
}

// Register adds a task to the dispatch table. The table is static: all
// registration happens before the first RunOnce, and a task lives for the
// whole run. Period must be positive; names must be unique.
func (s *Scheduler) Register(name string, priority int, period time.Duration, r Routine) error {
	if s.started {
		return fmt.Errorf("scheduler: cannot register %q after the loop has started", name)
	}
	if name == "" {
		return errors.New("scheduler: empty task name")
	}
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("scheduler: task %q already registered", name)
	}
	if period <= 0 {
		return fmt.Errorf("scheduler: task %q period must be positive, got %v", name, period)
	}
	if r == nil {
		return fmt.Errorf("scheduler: task %q has no routine", name)
	}

	t := &task{
		name:     name,
		priority: priority,
		period:   period,
		routine:  r,
		order:    len(s.tasks),
	}
	s.tasks = append(s.tasks, t)
	s.byName[name] = t
	return nil
}

// RunOnce dispatches the most urgent elapsed task, if any: lowest deadline
// first, ties by higher priority, then registration order. It reports the
// dispatched task's name, or ok=false when no deadline has elapsed. The
// first call arms every task's deadline to the current clock reading, so
// the opening dispatches run in pure priority order.
func (s *Scheduler) RunOnce() (name string, ok bool) {
	now := s.clock.Now()
	if !s.started {
		s.started = true
		for _, t := range s.tasks {
			t.deadline = now
		}
	}

	var best *task
	for _, t := range s.tasks {
		if t.suspended || t.deadline.After(now) {
			continue
		}
		if best == nil || dispatchBefore(t, best) {
			best = t
		}
	}
	if best == nil {
		return "", false
	}

	if late := now.Sub(best.deadline); late > best.maxLate {
		best.maxLate = late
	}
	best.runs++
	s.ticks++
	best.routine.Tick(now)

	// Advance from the old deadline, not from now, so cadence does not
	// drift when a dispatch lands late. If the task is already due again
	// it stays eligible and catches up over the next iterations; the
	// missed count is diagnostic only.
	best.deadline = best.deadline.Add(best.period)
	if !best.deadline.After(now) {
		best.missed++
	}
	return best.name, true
}

// dispatchBefore reports whether a should be dispatched ahead of b.
func dispatchBefore(a, b *task) bool {
	if !a.deadline.Equal(b.deadline) {
		return a.deadline.Before(b.deadline)
	}
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.order < b.order
}

// Run loops RunOnce until ctx is cancelled, sleeping on the clock between
// dispatches when no deadline has elapsed. Cancelling ctx is the stop
// signal; Run returns ctx.Err() once observed.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := s.RunOnce(); ok {
			continue
		}
		d, ok := s.untilNext(s.clock.Now())
		if !ok {
			return ErrNoRunnableTasks
		}
		if err := s.clock.Sleep(ctx, d); err != nil {
			return err
		}
	}
}

// untilNext returns how long until the earliest deadline among runnable
// tasks, or ok=false when there is none.
func (s *Scheduler) untilNext(now time.Time) (time.Duration, bool) {
	var (
		found bool
		next  time.Time
	)
	for _, t := range s.tasks {
		if t.suspended {
			continue
		}
		if !found || t.deadline.Before(next) {
			next = t.deadline
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return next.Sub(now), true
}

// Suspend removes a task from dispatch until Resume. Its deadline stops
// advancing while suspended.
func (s *Scheduler) Suspend(name string) error {
	t, exists := s.byName[name]
	if !exists {
		return fmt.Errorf("scheduler: task %q not found", name)
	}
	t.suspended = true
	return nil
}

// Resume returns a suspended task to dispatch with a fresh deadline at
// the current clock reading, so time spent suspended is not charged as
// missed periods.
func (s *Scheduler) Resume(name string) error {
	t, exists := s.byName[name]
	if !exists {
		return fmt.Errorf("scheduler: task %q not found", name)
	}
	if t.suspended {
		t.suspended = false
		t.deadline = s.clock.Now()
	}
	return nil
}

// Ticks returns the total number of dispatches so far.
func (s *Scheduler) Ticks() uint64 { return s.ticks }

// Stats snapshots every task's dispatch record in registration order.
func (s *Scheduler) Stats() []TaskStats {
	now := s.clock.Now()
	stats := make([]TaskStats, 0, len(s.tasks))
	for _, t := range s.tasks {
		st := TaskStats{
			Name:     t.name,
			Priority: t.priority,
			Period:   t.period,
			Runs:     t.runs,
			Missed:   t.missed,
			MaxLate:  t.maxLate,
		}
		switch {
		case t.suspended:
			st.State = TaskSuspended
		case s.started && !t.deadline.After(now):
			st.State = TaskReady
		default:
			st.State = TaskWaiting
		}
		stats = append(stats, st)
	}
	return stats
}
