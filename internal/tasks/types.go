package tasks

import (
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/hw"
)

// EffortPair is a signed effort command or proposal for both wheels, in
// the ±hw.EffortLimit range.
type EffortPair struct {
	Left  float64
	Right float64
}

// Zero reports whether both efforts are exactly zero.
func (e EffortPair) Zero() bool { return e.Left == 0 && e.Right == 0 }

// EncoderCounts is one snapshot of the monotonically accumulating wheel
// encoder counts.
type EncoderCounts struct {
	Left  int64
	Right int64
}

// IMUSample is one snapshot of the inertial sensor.
type IMUSample struct {
	Ready   bool    // calibration complete
	Heading float64 // degrees, [0, 360), clockwise positive
	Rate    float64 // yaw rate, degrees per second
}

// BumpEvent records one collision: which switches were closed and when.
type BumpEvent struct {
	At       time.Time
	Switches [hw.BumpSwitchCount]bool
	Left     bool // any switch in the left cluster
	Right    bool // any switch in the right cluster
}

// LineMode is the mission supervisor's command to the line follow task.
type LineMode int

const (
	LineOff   LineMode = iota // hold in Idle
	LineTrack                 // follow the line
)

// LineState is the line follow task's state machine position.
type LineState int

const (
	LineIdle LineState = iota
	LineTracking
	LineLost
)

func (s LineState) String() string {
	switch s {
	case LineIdle:
		return "idle"
	case LineTracking:
		return "tracking"
	case LineLost:
		return "lost"
	default:
		return "unknown"
	}
}

// LineStatus is published every line follow tick.
type LineStatus struct {
	State    LineState
	Position float64 // last computed centroid, sensor-offset units
	Detected bool    // at least one element saw the line this tick
}

// HeadingMode is the mission supervisor's command to the heading task.
type HeadingMode int

const (
	HeadingOff HeadingMode = iota
	HeadingOn              // regulate toward the target heading cell
)

// HeadingCommand is the mission supervisor's target for the heading
// task. ToleranceDeg and SettleTicks override the task's configured
// defaults when positive; zero keeps the default, so a plain
// {TargetDeg: 90} is a complete command.
type HeadingCommand struct {
	TargetDeg    float64
	ToleranceDeg float64
	SettleTicks  int
}

// HeadingState is the heading task's state machine position: Turning
// while converging on the target, Holding once settled within tolerance.
type HeadingState int

const (
	HeadingIdle HeadingState = iota
	HeadingTurning
	HeadingHolding
)

func (s HeadingState) String() string {
	switch s {
	case HeadingIdle:
		return "idle"
	case HeadingTurning:
		return "turning"
	case HeadingHolding:
		return "holding"
	default:
		return "unknown"
	}
}

// HeadingStatus is published every heading tick.
type HeadingStatus struct {
	State    HeadingState
	Ready    bool    // IMU calibrated
	Filtered float64 // low-pass filtered heading, degrees [0, 360)
	Target   float64 // target of the last control step, degrees [0, 360)
	Error    float64 // shortest signed error to target, degrees [-180, 180)
	Settled  bool    // error within tolerance for the required run of ticks
}

// BumpMode is the mission supervisor's command to the bump task.
type BumpMode int

const (
	BumpOff   BumpMode = iota // ignore switches
	BumpArm                   // report the next closure
)

// BumpState is the bump task's state machine position.
type BumpState int

const (
	BumpIdle BumpState = iota
	BumpArmed
	BumpTriggered
)

func (s BumpState) String() string {
	switch s {
	case BumpIdle:
		return "idle"
	case BumpArmed:
		return "armed"
	case BumpTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// BumpStatus is published every bump tick.
type BumpStatus struct {
	State  BumpState
	Events uint64 // total closures reported since construction
}

// MotorState is the motor task's state machine position.
type MotorState int

const (
	MotorIdle MotorState = iota
	MotorRunning
	MotorFault
)

func (s MotorState) String() string {
	switch s {
	case MotorIdle:
		return "idle"
	case MotorRunning:
		return "running"
	case MotorFault:
		return "fault"
	default:
		return "unknown"
	}
}

// MotorStatus is published every motor tick. Reason is set while the
// task is in Fault and cleared by the external reset.
type MotorStatus struct {
	State   MotorState
	Applied EffortPair // last command actually sent to the driver
	Reason  string
}

// WheelVelocity is the motor task's encoder-derived speed estimate, in
// counts per second per wheel.
type WheelVelocity struct {
	Left  float64
	Right float64
}
