package events

import (
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/scheduler"
	"github.com/LucaSlade/ME405-Romulus/internal/tasks"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	When() time.Time
}

// Topic constants
const (
	TopicMission   = "mission"   // supervisor phase machine activity
	TopicTask      = "task"      // subsystem task edges
	TopicScheduler = "scheduler" // dispatch diagnostics
	TopicRun       = "run"       // run lifecycle and periodic snapshots
)

// Event type constants
const (
	EventTypePhaseChanged    = "mission.phase_changed"
	EventTypeMissionFinished = "mission.finished"
	EventTypeMissionFaulted  = "mission.faulted"
	EventTypeBumpDetected    = "task.bump_detected"
	EventTypeLineLost        = "task.line_lost"
	EventTypeLineFound       = "task.line_found"
	EventTypeTaskFaulted     = "task.faulted"
	EventTypeDeadlineMissed  = "scheduler.deadline_missed"
	EventTypeRunStarted      = "run.started"
	EventTypeRunEnded        = "run.ended"
	EventTypeSnapshot        = "run.snapshot"
)

// PhaseChangedEvent is published on every supervisor phase transition.
// Cause names the machine event that fired: start, advance, bump,
// timeout, or stop.
type PhaseChangedEvent struct {
	From      string
	To        string
	Cause     string
	Tick      uint64 // supervisor tick count at the transition
	Timestamp time.Time
}

func (e PhaseChangedEvent) EventType() string { return EventTypePhaseChanged }
func (e PhaseChangedEvent) When() time.Time   { return e.Timestamp }

// MissionFinishedEvent is published when the course's terminal phase
// completes.
type MissionFinishedEvent struct {
	Course    string
	Ticks     uint64 // supervisor ticks from start to finish
	Timestamp time.Time
}

func (e MissionFinishedEvent) EventType() string { return EventTypeMissionFinished }
func (e MissionFinishedEvent) When() time.Time   { return e.Timestamp }

// MissionFaultedEvent is published when the supervisor gives up on the
// mission, with the motors commanded to stop.
type MissionFaultedEvent struct {
	Phase     string // phase that was active when the fault latched
	Reason    string
	Timestamp time.Time
}

func (e MissionFaultedEvent) EventType() string { return EventTypeMissionFaulted }
func (e MissionFaultedEvent) When() time.Time   { return e.Timestamp }

// BumpDetectedEvent is published when the supervisor consumes a
// collision event from the bump task.
type BumpDetectedEvent struct {
	Phase     string
	Left      bool
	Right     bool
	Timestamp time.Time
}

func (e BumpDetectedEvent) EventType() string { return EventTypeBumpDetected }
func (e BumpDetectedEvent) When() time.Time   { return e.Timestamp }

// LineLostEvent is published when the line follow task loses the line
// during a line phase. Retries counts losses in the current run.
type LineLostEvent struct {
	Phase     string
	Retries   uint64
	Timestamp time.Time
}

func (e LineLostEvent) EventType() string { return EventTypeLineLost }
func (e LineLostEvent) When() time.Time   { return e.Timestamp }

// LineFoundEvent is published when the line follow task reacquires the
// line after a loss.
type LineFoundEvent struct {
	Phase     string
	Timestamp time.Time
}

func (e LineFoundEvent) EventType() string { return EventTypeLineFound }
func (e LineFoundEvent) When() time.Time   { return e.Timestamp }

// TaskFaultedEvent is published when a subsystem task latches its fault
// state.
type TaskFaultedEvent struct {
	Task      string
	Reason    string
	Timestamp time.Time
}

func (e TaskFaultedEvent) EventType() string { return EventTypeTaskFaulted }
func (e TaskFaultedEvent) When() time.Time   { return e.Timestamp }

// DeadlineMissedEvent is published when a task's missed-deadline count
// grows. Missed is the cumulative count, MaxLate the worst observed
// lateness.
type DeadlineMissedEvent struct {
	Task      string
	Missed    uint64
	MaxLate   time.Duration
	Timestamp time.Time
}

func (e DeadlineMissedEvent) EventType() string { return EventTypeDeadlineMissed }
func (e DeadlineMissedEvent) When() time.Time   { return e.Timestamp }

// RunStartedEvent is published by the rig when a recorded run begins.
type RunStartedEvent struct {
	RunID     string
	Course    string
	Timestamp time.Time
}

func (e RunStartedEvent) EventType() string { return EventTypeRunStarted }
func (e RunStartedEvent) When() time.Time   { return e.Timestamp }

// RunEndedEvent is published by the rig when a recorded run ends.
// Result is "finished", "faulted", or "aborted".
type RunEndedEvent struct {
	RunID     string
	Result    string
	Ticks     uint64
	Timestamp time.Time
}

func (e RunEndedEvent) EventType() string { return EventTypeRunEnded }
func (e RunEndedEvent) When() time.Time   { return e.Timestamp }

// SnapshotEvent is a periodic full-status frame for observers: one
// coherent reading of every status share plus scheduler statistics.
// The supervisor counters are flattened in so a consumer needs no
// other source to render the mission.
type SnapshotEvent struct {
	Seq        uint64 // sensor poll sequence the frame was built from
	Phase      string
	PhaseTicks uint64 // supervisor ticks spent in the current phase
	Advance    int64  // mean encoder advance since phase entry
	Retries    uint64 // line losses observed this run
	Bumps      uint64 // collisions consumed this run
	Fault      string // supervisor fault reason, while faulted
	Line       tasks.LineStatus
	Heading    tasks.HeadingStatus
	Bump       tasks.BumpStatus
	Motor      tasks.MotorStatus
	Velocity   tasks.WheelVelocity
	Encoders   tasks.EncoderCounts
	IMU        tasks.IMUSample
	Command    tasks.EffortPair
	Stats      []scheduler.TaskStats
	Timestamp  time.Time
}

func (e SnapshotEvent) EventType() string { return EventTypeSnapshot }
func (e SnapshotEvent) When() time.Time   { return e.Timestamp }
