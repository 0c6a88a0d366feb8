package scheduler

import "time"

// TaskState reports where a task sits in the dispatch cycle.
type TaskState int

const (
	TaskWaiting   TaskState = iota // next deadline has not arrived yet
	TaskReady                      // deadline elapsed, eligible for dispatch
	TaskSuspended                  // excluded from dispatch until resumed
)

func (s TaskState) String() string {
	switch s {
	case TaskWaiting:
		return "waiting"
	case TaskReady:
		return "ready"
	case TaskSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Routine is one task's unit of per-tick work. Tick must do a bounded
// amount of work and return; the loop is cooperative, so a Tick that
// blocks or spins stalls every other task. Faults are not returned;
// a routine that hits one records it in its own state machine and keeps
// accepting ticks.
type Routine interface {
	Tick(now time.Time)
}

// RoutineFunc adapts a plain function to the Routine interface.
type RoutineFunc func(now time.Time)

func (f RoutineFunc) Tick(now time.Time) { f(now) }

// task is a registered routine plus its dispatch bookkeeping. Owned by
// the Scheduler for the life of the run; callers refer to tasks by name.
type task struct {
	name     string
	priority int
	period   time.Duration
	routine  Routine

	order     int // registration order, final dispatch tie-break
	suspended bool
	deadline  time.Time
	runs      uint64
	missed    uint64
	maxLate   time.Duration
}

// TaskStats is a point-in-time snapshot of one task's dispatch record.
type TaskStats struct {
	Name     string
	Priority int
	Period   time.Duration
	State    TaskState
	Runs     uint64        // completed dispatches
	Missed   uint64        // periods that elapsed before the task's work for the previous one finished
	MaxLate  time.Duration // worst observed gap between deadline and dispatch
}
