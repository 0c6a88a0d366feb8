package tasks

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/LucaSlade/ME405-Romulus/internal/hw"
	"github.com/LucaSlade/ME405-Romulus/internal/share"
)

// Motor turns the supervisor's final effort command into driver calls.
// Idle with both efforts at zero, Running otherwise. Any out-of-range
// command, driver rejection, or latched driver fault moves it to Fault
// with the wheels disabled; only an external reset (a change of the
// reset counter share) releases Fault. The task also differentiates the
// encoder share into a wheel velocity estimate each tick.
type Motor struct {
	drv      hw.MotorDriver
	command  *share.Cell[EffortPair]
	reset    *share.Cell[uint64]
	encoders *share.Cell[EncoderCounts]
	status   *share.CellWriter[MotorStatus]
	velocity *share.CellWriter[WheelVelocity]
	clk      dtClock

	state      MotorState
	lastReset  uint64
	lastCounts EncoderCounts
	counted    bool // lastCounts holds a real baseline
	applied    EffortPair
	reason     string
}

// NewMotor declares the motor status and velocity shares and returns
// the task. The command and reset shares belong to the mission
// supervisor, the encoder share to the sensor poll task.
func NewMotor(store *share.Store, drv hw.MotorDriver, command *share.Cell[EffortPair], reset *share.Cell[uint64], encoders *share.Cell[EncoderCounts], period time.Duration) (*Motor, error) {
	if drv == nil {
		return nil, errors.New("tasks: motor task needs a motor driver")
	}
	if command == nil || reset == nil || encoders == nil {
		return nil, errors.New("tasks: motor task needs command, reset, and encoder shares")
	}
	if period <= 0 {
		return nil, fmt.Errorf("tasks: period must be positive, got %v", period)
	}
	status, err := share.DeclareCell(store, CellMotorStatus, MotorStatus{})
	if err != nil {
		return nil, err
	}
	velocity, err := share.DeclareCell(store, CellMotorVelocity, WheelVelocity{})
	if err != nil {
		return nil, err
	}
	return &Motor{
		drv:       drv,
		command:   command,
		reset:     reset,
		encoders:  encoders,
		status:    status,
		velocity:  velocity,
		clk:       dtClock{period: period},
		lastReset: reset.Get(),
	}, nil
}

// Tick advances the state machine one step and republishes status.
func (t *Motor) Tick(now time.Time) {
	t.estimate(now)

	switch t.state {
	case MotorIdle:
		if cmd := t.command.Get(); !cmd.Zero() {
			t.drv.Enable()
			t.state = MotorRunning
			t.apply(cmd)
		}

	case MotorRunning:
		cmd := t.command.Get()
		if t.apply(cmd) && cmd.Zero() {
			t.drv.Disable()
			t.state = MotorIdle
		}

	case MotorFault:
		if r := t.reset.Get(); r != t.lastReset {
			t.lastReset = r
			t.reason = ""
			t.state = MotorIdle
		}
	}

	t.status.Set(MotorStatus{State: t.state, Applied: t.applied, Reason: t.reason})
}

// apply validates and forwards one command, faulting on any rejection.
// It reports whether the command was accepted.
func (t *Motor) apply(cmd EffortPair) bool {
	if !effortValid(cmd.Left) || !effortValid(cmd.Right) {
		t.fault(fmt.Sprintf("effort out of range: left=%v right=%v", cmd.Left, cmd.Right))
		return false
	}
	if err := t.drv.SetEfforts(cmd.Left, cmd.Right); err != nil {
		t.fault(fmt.Sprintf("driver rejected command: %v", err))
		return false
	}
	if t.drv.Fault() {
		t.fault("driver fault flag set")
		return false
	}
	t.applied = cmd
	return true
}

// estimate differentiates the encoder counts since the previous tick.
// The first tick only records the baseline; a velocity from counts
// accumulated before the task started would be garbage.
func (t *Motor) estimate(now time.Time) {
	counts := t.encoders.Get()
	dt := t.clk.dt(now).Seconds()
	if !t.counted {
		t.counted = true
		t.lastCounts = counts
		t.velocity.Set(WheelVelocity{})
		return
	}
	t.velocity.Set(WheelVelocity{
		Left:  float64(counts.Left-t.lastCounts.Left) / dt,
		Right: float64(counts.Right-t.lastCounts.Right) / dt,
	})
	t.lastCounts = counts
}

// Status is the motor status share.
func (t *Motor) Status() *share.Cell[MotorStatus] { return t.status.Cell() }

// Velocity is the wheel velocity estimate share, counts per second.
func (t *Motor) Velocity() *share.Cell[WheelVelocity] { return t.velocity.Cell() }

func (t *Motor) fault(reason string) {
	t.drv.Disable()
	t.state = MotorFault
	t.reason = reason
	t.applied = EffortPair{}
}

func effortValid(v float64) bool {
	return !math.IsNaN(v) && v >= -hw.EffortLimit && v <= hw.EffortLimit
}
